package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_NotifyAndList(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	bssid := domain.MustHWAddr("aa:bb:cc:dd:ee:ff")

	j.Notify(ctx, "wlan0", domain.ConnectResult{Success: true, BSSID: bssid})
	time.Sleep(2 * time.Millisecond)
	j.Notify(ctx, "wlan0", domain.Disconnected{Reason: domain.DisconnectInactivity, Code: 4})
	j.Notify(ctx, "ap0", domain.APStarted{BSSID: bssid, Channel: 36})
	require.NoError(t, j.Flush(ctx))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	entries, err := j.List(ctx, JournalFilter{Iface: "wlan0"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, string(domain.KindDisconnected), entries[0].Kind)
	assert.NotEmpty(t, entries[0].ID)

	var got domain.Disconnected
	require.NoError(t, json.Unmarshal([]byte(entries[0].Payload), &got))
	assert.Equal(t, domain.DisconnectInactivity, got.Reason)

	entries, err = j.List(ctx, JournalFilter{Kind: domain.KindAPStarted})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ap0", entries[0].Iface)
	assert.Contains(t, entries[0].Payload, `"bssid":"aa:bb:cc:dd:ee:ff"`)
}

func TestJournal_ListLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		j.Notify(ctx, "wlan0", domain.MicFailureNotice{KeyID: i})
	}
	require.NoError(t, j.Flush(ctx))

	entries, err := j.List(ctx, JournalFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestJournal_NotifyDoesNotWaitForStorage(t *testing.T) {
	j := newTestJournal(t)

	// A canceled caller context must neither block nor lose the entry.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueDepth; i++ {
			j.Notify(ctx, "ap0", domain.StationLeft{Reason: domain.ReasonUnspecified})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked")
	}

	require.NoError(t, j.Flush(context.Background()))
	n, err := j.Count(context.Background())
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestJournal_CloseStoresQueuedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewJournal(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		j.Notify(ctx, "wlan0", domain.MicFailureNotice{KeyID: i})
	}
	require.NoError(t, j.Close())

	// Late notifications after Close are ignored.
	j.Notify(ctx, "wlan0", domain.MicFailureNotice{})
	require.NoError(t, j.Flush(ctx))

	reopened, err := NewJournal(path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}
