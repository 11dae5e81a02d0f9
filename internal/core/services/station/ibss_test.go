package station

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/concurrency"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/peers"
)

var ibssBSSID = domain.MustHWAddr("02:00:00:00:00:99")

func peerMAC(i int) domain.HWAddr {
	return domain.HWAddr{0x02, 0xAA, 0, 0, byte(i >> 8), byte(i)}
}

func startIBSS(t *testing.T, m *Machine, auth domain.AuthType) {
	t.Helper()
	require.NoError(t, m.Handle(context.Background(), domain.IbssIndication{
		Kind: domain.IbssStarted, BSSID: ibssBSSID, SSID: "adhoc", Channel: 1, AuthType: auth,
	}))
}

func TestIBSS_JoinAndFirstPeer(t *testing.T) {
	m, rec, tr := newTestMachine(t)
	ctx := context.Background()
	startIBSS(t, m, domain.AuthOpen)

	assert.Equal(t, domain.IbssDisconnected, m.Snapshot().Info.State)
	assert.Equal(t, 1, tr.Sessions(concurrency.ModeIBSS))
	assert.Equal(t, domain.IbssJoined{BSSID: ibssBSSID, Channel: 1}, rec.Notes()[0])
	rec.reset()

	require.NoError(t, m.Handle(ctx, domain.IbssPeerJoined{StationID: 3, PeerMAC: peerMAC(1)}))
	st := m.Snapshot()
	assert.Equal(t, domain.IbssConnected, st.Info.State)
	assert.True(t, st.Info.Authenticated)
	assert.Equal(t, []string{"register:3:authenticated", "carrier_on", "start_queues", "notify:station_joined"}, rec.Ops())

	// Second peer does not toggle carrier again.
	rec.reset()
	require.NoError(t, m.Handle(ctx, domain.IbssPeerJoined{StationID: 4, PeerMAC: peerMAC(2)}))
	assert.Equal(t, []string{"register:4:authenticated", "notify:station_joined"}, rec.Ops())
}

func TestIBSS_SecuredPeerNeedsKey(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	startIBSS(t, m, domain.AuthRSNPSK)

	require.NoError(t, m.Handle(ctx, domain.IbssPeerJoined{StationID: 3, PeerMAC: peerMAC(1)}))
	assert.False(t, m.Snapshot().Info.Authenticated)

	require.NoError(t, m.Handle(ctx, domain.SetKeyComplete{Success: true, PeerMAC: peerMAC(1), CompletesAuth: true}))
	assert.True(t, m.Snapshot().Info.Authenticated)
	assert.Equal(t, domain.PeerAuthenticated, rec.registered[3].State)
}

func TestIBSS_DepartPromotesSlotZero(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	startIBSS(t, m, domain.AuthOpen)

	for i := 1; i <= 3; i++ {
		require.NoError(t, m.Handle(ctx, domain.IbssPeerJoined{StationID: i, PeerMAC: peerMAC(i)}))
	}
	require.NoError(t, m.Handle(ctx, domain.IbssPeerDeparted{StationID: 1, PeerMAC: peerMAC(1)}))

	slots := m.Snapshot().Info.IBSSPeers
	assert.True(t, slots[0].Used)
	assert.Equal(t, 2, slots[0].StationID)
	assert.Equal(t, 2, peers.CountSlots(slots[:]))
	assert.Equal(t, domain.StationLeft{MAC: peerMAC(1)}, rec.Notes()[len(rec.Notes())-1])
}

func TestIBSS_LastPeerLeaves(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	startIBSS(t, m, domain.AuthOpen)
	require.NoError(t, m.Handle(ctx, domain.IbssPeerJoined{StationID: 5, PeerMAC: peerMAC(5)}))
	rec.reset()

	// Departure identified by MAC only.
	require.NoError(t, m.Handle(ctx, domain.IbssPeerDeparted{StationID: 99, PeerMAC: peerMAC(5)}))
	st := m.Snapshot()
	assert.Equal(t, domain.IbssDisconnected, st.Info.State)
	assert.False(t, st.Info.Authenticated)
	assert.Equal(t, []string{"deregister:5", "stop_queues", "carrier_off", "notify:station_left"}, rec.Ops())
}

func TestIBSS_TableFullDropsPeer(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	startIBSS(t, m, domain.AuthOpen)

	for i := 0; i < domain.MaxIBSSPeers; i++ {
		require.NoError(t, m.Handle(ctx, domain.IbssPeerJoined{StationID: i + 1, PeerMAC: peerMAC(i)}))
	}
	rec.reset()

	require.NoError(t, m.Handle(ctx, domain.IbssPeerJoined{StationID: 40, PeerMAC: peerMAC(100)}))
	assert.Empty(t, rec.Ops())
	st := m.Snapshot()
	assert.Equal(t, domain.MaxIBSSPeers, peers.CountSlots(st.Info.IBSSPeers[:]))
}

func TestIBSS_InactiveDeregistersAll(t *testing.T) {
	m, rec, tr := newTestMachine(t)
	ctx := context.Background()
	startIBSS(t, m, domain.AuthOpen)
	for i := 1; i <= 3; i++ {
		require.NoError(t, m.Handle(ctx, domain.IbssPeerJoined{StationID: i, PeerMAC: peerMAC(i)}))
	}

	require.NoError(t, m.Handle(ctx, domain.IbssInactive{}))
	assert.Equal(t, domain.NotConnected, m.Snapshot().Info.State)
	assert.Empty(t, rec.registered)
	assert.Equal(t, 0, tr.Sessions(concurrency.ModeIBSS))
	notes := rec.Notes()
	assert.Equal(t, domain.Disconnected{Reason: domain.DisconnectInactivity, Code: domain.ReasonInactivity}, notes[len(notes)-1])
}

func TestIBSS_CorruptedSlotsAreFatal(t *testing.T) {
	s := State{Info: domain.ConnectionInfo{State: domain.IbssConnected}}
	s.Info.IBSSPeers[3] = domain.PeerSlot{StationID: 7, Used: true}

	_, _, err := Transition(s, domain.IbssLeave{}, Env{})
	assert.ErrorIs(t, err, peers.ErrInvariant)

	m, _, _ := newTestMachine(t)
	m.state = s
	err = m.Handle(context.Background(), domain.IbssLeave{})
	assert.ErrorIs(t, err, domain.ErrFatal)
	assert.ErrorIs(t, err, peers.ErrInvariant)
}

func TestIBSS_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	startIBSS(t, m, domain.AuthOpen)

	for step := 0; step < 2000; step++ {
		id := rng.Intn(domain.MaxStations-1) + 1
		var ev domain.RoamEvent
		if rng.Intn(2) == 0 {
			ev = domain.IbssPeerJoined{StationID: id, PeerMAC: peerMAC(id)}
		} else {
			ev = domain.IbssPeerDeparted{StationID: id, PeerMAC: peerMAC(id)}
		}
		require.NoError(t, m.Handle(ctx, ev))

		st := m.Snapshot()
		slots := st.Info.IBSSPeers[:]
		n := peers.CountSlots(slots)
		require.LessOrEqual(t, n, domain.MaxIBSSPeers)
		require.NoError(t, peers.CheckSlots(slots))
		require.Equal(t, n, len(rec.registered), "data path mirrors slots at step %d", step)
		if st.Info.Authenticated {
			require.True(t, st.Info.Connected())
		}
		if n == 0 {
			require.Equal(t, domain.IbssDisconnected, st.Info.State)
		} else {
			require.Equal(t, domain.IbssConnected, st.Info.State)
		}
	}
}
