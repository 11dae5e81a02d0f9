package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

func addClient(m *WSManager, depth int) *client {
	c := &client{remote: "192.0.2.1:5000", send: make(chan []byte, depth)}
	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()
	return c
}

func TestNotify_QueuesFrame(t *testing.T) {
	m := NewWSManager(nil, nil, nil)
	c := addClient(m, sendBuffer)

	m.Notify(context.Background(), "ap0", domain.APStarted{Channel: 36})

	require.Len(t, c.send, 1)
	var msg struct {
		Type    string          `json:"type"`
		Iface   string          `json:"iface"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(<-c.send, &msg))
	assert.Equal(t, string(domain.KindAPStarted), msg.Type)
	assert.Equal(t, "ap0", msg.Iface)
	assert.JSONEq(t, `{"bssid":"00:00:00:00:00:00","channel":36}`, string(msg.Payload))
}

func TestBroadcast_StalledClientDoesNotBlock(t *testing.T) {
	m := NewWSManager(nil, nil, nil)
	stalled := addClient(m, 2)
	healthy := addClient(m, sendBuffer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			m.Notify(context.Background(), "wlan0", domain.MicFailureNotice{KeyID: i})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a stalled client")
	}

	assert.Equal(t, 1, m.Clients())
	assert.Len(t, healthy.send, 5)

	// The stalled client's queue was closed after its buffered frames.
	n := 0
	for range stalled.send {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestCloseAll_ClosesQueues(t *testing.T) {
	m := NewWSManager(nil, nil, nil)
	c := addClient(m, 1)

	m.closeAll()
	assert.Equal(t, 0, m.Clients())
	_, open := <-c.send
	assert.False(t, open)

	// Dropping an already closed client is harmless.
	m.drop(c)
}
