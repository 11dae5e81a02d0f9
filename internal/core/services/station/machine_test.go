package station

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/concurrency"
)

var (
	self   = domain.MustHWAddr("02:11:22:33:44:55")
	apMAC  = domain.MustHWAddr("AA:BB:CC:DD:EE:FF")
	apMAC2 = domain.MustHWAddr("AA:BB:CC:DD:EE:01")
)

func newTestMachine(t *testing.T) (*Machine, *recorder, *concurrency.Tracker) {
	t.Helper()
	rec := newRecorder()
	tr := concurrency.NewTracker()
	m := NewMachine(Config{Iface: "wlan0", Self: self, LinkUpTimeout: 20 * time.Millisecond}, rec, rec, rec, tr, nil)
	return m, rec, tr
}

func assoc(auth domain.AuthType) domain.AssociationComplete {
	return domain.AssociationComplete{
		Success:   true,
		BSSID:     apMAC,
		SSID:      "lab",
		Channel:   6,
		AuthType:  auth,
		StationID: 1,
		QoS:       true,
	}
}

func TestAssociation_OpenIsAuthenticatedImmediately(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, assoc(domain.AuthOpen)))

	st := m.Snapshot()
	assert.Equal(t, domain.Associated, st.Info.State)
	assert.True(t, st.Info.Authenticated)
	assert.False(t, st.AuthPending)
	assert.Equal(t, domain.PeerAuthenticated, rec.registered[1].State)

	notes := rec.Notes()
	require.Len(t, notes, 1)
	res, ok := notes[0].(domain.ConnectResult)
	require.True(t, ok)
	assert.True(t, res.Success)
	assert.Equal(t, apMAC, res.BSSID)
}

func TestAssociation_QueuesStartAfterRegistration(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	require.NoError(t, m.Handle(context.Background(), assoc(domain.AuthRSNPSK)))

	ops := rec.Ops()
	reg := indexOf(ops, "register:1:preauth")
	require.GreaterOrEqual(t, reg, 0)
	assert.Less(t, reg, indexOf(ops, "carrier_on"))
	assert.Less(t, reg, indexOf(ops, "start_queues"))
	assert.Less(t, indexOf(ops, "wait_link_up"), indexOf(ops, "notify:connect_result"))
}

func TestAssociation_AuthenticatedOnlyAfterCompletingSetKey(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, assoc(domain.AuthRSNPSK)))
	assert.False(t, m.Snapshot().Info.Authenticated)
	assert.Equal(t, domain.PeerPreAuth, rec.registered[1].State)

	require.NoError(t, m.Handle(ctx, domain.SetKeyComplete{Success: true, PeerMAC: apMAC, CompletesAuth: false}))
	assert.False(t, m.Snapshot().Info.Authenticated)

	require.NoError(t, m.Handle(ctx, domain.SetKeyComplete{Success: true, PeerMAC: apMAC, CompletesAuth: true}))
	assert.True(t, m.Snapshot().Info.Authenticated)
	assert.Equal(t, domain.PeerAuthenticated, rec.registered[1].State)

	// A further key (rekey) does not touch the data path again.
	rec.reset()
	require.NoError(t, m.Handle(ctx, domain.SetKeyComplete{Success: true, PeerMAC: apMAC, CompletesAuth: true}))
	assert.Empty(t, rec.Ops())
}

func TestAssociation_Failure(t *testing.T) {
	m, rec, tr := newTestMachine(t)
	ev := assoc(domain.AuthRSNPSK)
	ev.Success = false
	ev.Status = 17

	require.NoError(t, m.Handle(context.Background(), ev))
	assert.Equal(t, domain.NotConnected, m.Snapshot().Info.State)
	assert.Empty(t, rec.registered)
	assert.Equal(t, 0, tr.Sessions(concurrency.ModeStation))

	notes := rec.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.ConnectResult{Success: false, BSSID: apMAC, Status: 17}, notes[0])
}

func TestAssociation_LinkUpTimeoutIsNotFatal(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	rec.noAck = true

	require.NoError(t, m.Handle(context.Background(), assoc(domain.AuthOpen)))
	assert.Equal(t, domain.Associated, m.Snapshot().Info.State)
	assert.Contains(t, rec.Ops(), "notify:connect_result")
}

func TestAssociation_RegistrationFailureKeepsAssociated(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	rec.registerFn = func(domain.PeerDescriptor) error { return assert.AnError }

	require.NoError(t, m.Handle(context.Background(), assoc(domain.AuthOpen)))
	assert.Equal(t, domain.Associated, m.Snapshot().Info.State)
}

func TestReassoc_OnlyChangesPeerState(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	require.NoError(t, m.Handle(ctx, assoc(domain.AuthOpen)))
	rec.reset()

	ev := assoc(domain.AuthOpen)
	ev.Reassoc = true
	require.NoError(t, m.Handle(ctx, ev))

	ops := rec.Ops()
	assert.Contains(t, ops, "set_state:1:authenticated")
	assert.NotContains(t, ops, "register:1:authenticated")
	assert.NotContains(t, ops, "deregister:1")
	_, roamed := rec.Notes()[0].(domain.Roamed)
	assert.True(t, roamed)
}

func TestAssociation_NewBSSWhileAssociatedStopsQueuesFirst(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	require.NoError(t, m.Handle(ctx, assoc(domain.AuthOpen)))
	rec.reset()

	ev := assoc(domain.AuthOpen)
	ev.BSSID = apMAC2
	ev.StationID = 2
	require.NoError(t, m.Handle(ctx, ev))

	ops := rec.Ops()
	stop := indexOf(ops, "stop_queues")
	dereg := indexOf(ops, "deregister:1")
	require.GreaterOrEqual(t, stop, 0, ops)
	require.GreaterOrEqual(t, dereg, 0, ops)
	assert.Less(t, stop, dereg)
	assert.Less(t, indexOf(ops, "carrier_off"), dereg)
	assert.Less(t, dereg, indexOf(ops, "register:2:authenticated"))
	assert.Less(t, indexOf(ops, "register:2:authenticated"), indexOf(ops, "start_queues"))

	st := m.Snapshot()
	assert.Equal(t, apMAC2, st.Info.BSSID)
	assert.Equal(t, 2, st.Info.StationID)
}

func TestTeardown_OrderAndNotification(t *testing.T) {
	m, rec, tr := newTestMachine(t)
	ctx := context.Background()
	require.NoError(t, m.Handle(ctx, assoc(domain.AuthOpen)))
	assert.Equal(t, 1, tr.Sessions(concurrency.ModeStation))
	rec.reset()

	require.NoError(t, m.Handle(ctx, domain.Disassociated{Reason: 8}))

	ops := rec.Ops()
	assert.Equal(t, []string{
		"stop_queues", "carrier_off", "deregister:1", "power_save:true", "notify:disconnected",
	}, ops)
	assert.Equal(t, domain.ConnectionInfo{}, m.Snapshot().Info)
	assert.Equal(t, 0, tr.Sessions(concurrency.ModeStation))
	assert.Equal(t, domain.Disconnected{Reason: domain.DisconnectPeer, Code: 8}, rec.Notes()[0])
}

func TestTeardown_DuplicateIsIgnored(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	require.NoError(t, m.Handle(ctx, assoc(domain.AuthOpen)))
	require.NoError(t, m.Handle(ctx, domain.LostLink{Reason: 0}))
	require.NoError(t, m.Handle(ctx, domain.Disassociated{Reason: 1}))

	assert.Equal(t, 1, rec.deregs[1])
	var disconnects int
	for _, n := range rec.Notes() {
		if n.Kind() == domain.KindDisconnected {
			disconnects++
		}
	}
	assert.Equal(t, 1, disconnects)
}

func TestDisconnectReasons(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.RoamEvent
		want domain.DisconnectReason
	}{
		{"lost link", domain.LostLink{}, domain.DisconnectInactivity},
		{"lost link unspecified", domain.LostLink{Reason: domain.ReasonUnspecified}, domain.DisconnectUnspecified},
		{"lost link inactivity code", domain.LostLink{Reason: domain.ReasonInactivity}, domain.DisconnectInactivity},
		{"lost link peer code", domain.LostLink{Reason: 7}, domain.DisconnectPeer},
		{"inactivity code", domain.Disassociated{Reason: domain.ReasonInactivity}, domain.DisconnectInactivity},
		{"unspecified", domain.Disassociated{Reason: domain.ReasonUnspecified}, domain.DisconnectUnspecified},
		{"zero", domain.Disassociated{}, domain.DisconnectUnspecified},
		{"peer code", domain.Disassociated{Reason: 3}, domain.DisconnectPeer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec, _ := newTestMachine(t)
			ctx := context.Background()
			require.NoError(t, m.Handle(ctx, assoc(domain.AuthOpen)))
			require.NoError(t, m.Handle(ctx, tt.ev))
			notes := rec.Notes()
			d, ok := notes[len(notes)-1].(domain.Disconnected)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.Reason)
		})
	}
}

func TestShouldRoamThenLostLink_SingleDeregisterAndNotification(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	require.NoError(t, m.Handle(ctx, assoc(domain.AuthRSNPSK)))
	require.NoError(t, m.Handle(ctx, domain.SetKeyComplete{Success: true, CompletesAuth: true}))
	rec.reset()

	require.NoError(t, m.Handle(ctx, domain.ShouldRoam{}))
	st := m.Snapshot()
	assert.True(t, st.RoamPending)
	assert.Equal(t, domain.Associated, st.Info.State)
	assert.False(t, st.Info.Authenticated)
	assert.Empty(t, rec.Notes())
	assert.False(t, m.Linked())

	require.NoError(t, m.Handle(ctx, domain.LostLink{}))

	assert.Equal(t, 1, rec.deregs[1])
	notes := rec.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.KindDisconnected, notes[0].Kind())
	assert.Equal(t, domain.NotConnected, m.Snapshot().Info.State)
}

func TestShouldRoamThenAssociation_Roamed(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	require.NoError(t, m.Handle(ctx, assoc(domain.AuthOpen)))
	require.NoError(t, m.Handle(ctx, domain.ShouldRoam{}))
	rec.reset()

	ev := assoc(domain.AuthOpen)
	ev.BSSID = apMAC2
	ev.StationID = 2
	require.NoError(t, m.Handle(ctx, ev))

	assert.Contains(t, rec.Ops(), "register:2:authenticated")
	notes := rec.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, domain.Roamed{BSSID: apMAC2, Channel: 6}, notes[0])
	assert.False(t, m.Snapshot().RoamPending)
}

func TestFtStart_StopsQueuesOnly(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()
	require.NoError(t, m.Handle(ctx, assoc(domain.AuthFTPSK)))
	rec.reset()

	require.NoError(t, m.Handle(ctx, domain.FtStart{}))
	assert.Equal(t, []string{"stop_queues"}, rec.Ops())
	assert.True(t, m.Linked())

	require.NoError(t, m.Handle(ctx, domain.FtResponse{IEs: []byte{55, 0}}))
	assert.Equal(t, domain.FTResponseNotice{IEs: []byte{55, 0}}, rec.Notes()[0])
}

func TestPassThroughNotifications(t *testing.T) {
	m, rec, _ := newTestMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Handle(ctx, domain.PmkNotify{BSSID: apMAC, PreAuth: true}))
	require.NoError(t, m.Handle(ctx, domain.MicFailure{PeerMAC: apMAC, Multicast: true, KeyID: 1}))

	notes := rec.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, domain.PMKIDCandidate{BSSID: apMAC, PreAuth: true}, notes[0])
	assert.Equal(t, domain.MicFailureNotice{PeerMAC: apMAC, Multicast: true, KeyID: 1}, notes[1])
}

func TestPowerSave_DisabledUnderConcurrency(t *testing.T) {
	m, rec, tr := newTestMachine(t)
	tr.OpenSession(concurrency.ModeSAP)

	require.NoError(t, m.Handle(context.Background(), assoc(domain.AuthOpen)))
	assert.Contains(t, rec.Ops(), "power_save:false")
}
