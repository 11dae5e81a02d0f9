package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wlcoord/internal/adapters/notify"
	"github.com/lcalzada-xor/wlcoord/internal/adapters/timer"
	"github.com/lcalzada-xor/wlcoord/internal/config"
	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/concurrency"
)

var (
	staMAC  = domain.MustHWAddr("02:00:00:00:00:01")
	apMAC   = domain.MustHWAddr("02:00:00:00:00:02")
	bssidA  = domain.MustHWAddr("02:00:00:00:0a:01")
	peerMAC = domain.MustHWAddr("02:00:00:00:bb:01")
)

func testAdapters() []config.AdapterConfig {
	return []config.AdapterConfig{
		{Name: "wlan0", Role: domain.RoleStation, MAC: staMAC, Privacy: config.OpenPrivacy},
		{
			Name: "ap0", Role: domain.RoleAP, MAC: apMAC, Country: "US",
			Privacy:           config.OpenPrivacy,
			InactivityTimeout: time.Minute,
			Keys:              []config.KeyConfig{{Index: 0, Cipher: domain.CipherWEP40, Key: "0102030405", Default: true}},
		},
	}
}

type linkFixture struct {
	links   *Links
	rec     *notify.Recorder
	clock   *timer.Manual
	tracker *concurrency.Tracker
	cancel  context.CancelFunc
	done    chan struct{}
}

func startLinks(t *testing.T) *linkFixture {
	t.Helper()
	f := &linkFixture{
		rec:     notify.NewRecorder(0),
		clock:   timer.NewManual(),
		tracker: concurrency.NewTracker(),
		done:    make(chan struct{}),
	}
	links, err := NewLinks(testAdapters(), LinkDeps{
		Tracker:       f.tracker,
		Notifier:      f.rec,
		Timers:        f.clock,
		LinkUpTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	f.links = links

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		defer close(f.done)
		links.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-f.done
	})
	return f
}

func TestLinks_StationLifecycle(t *testing.T) {
	f := startLinks(t)
	ctx := context.Background()

	id, err := f.links.PostRoam(ctx, "wlan0", domain.AssociationComplete{
		Success: true, BSSID: bssidA, SSID: "corp", Channel: 6,
		AuthType: domain.AuthOpen, StationID: 1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool { return f.rec.Count(domain.KindConnectResult) == 1 }, 2*time.Second, 10*time.Millisecond)

	st, ok := f.links.Link("wlan0")
	require.True(t, ok)
	assert.Equal(t, domain.Associated, st.Station.State)
	assert.True(t, st.Station.Authenticated)
	assert.True(t, st.Linked)
	assert.False(t, st.Stopped)

	regs := f.links.Registrations()
	require.Len(t, regs["wlan0"], 1)
	assert.Equal(t, bssidA, regs["wlan0"][0].MAC)
	assert.Equal(t, domain.PeerAuthenticated, regs["wlan0"][0].State)

	_, err = f.links.PostRoam(ctx, "wlan0", domain.Disassociated{Reason: domain.ReasonUnspecified})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.rec.Count(domain.KindDisconnected) == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, f.links.Registrations()["wlan0"])
	assert.Equal(t, 1, f.rec.Count(domain.KindConnectResult))
}

func TestLinks_Routing(t *testing.T) {
	f := startLinks(t)
	ctx := context.Background()

	_, err := f.links.PostRoam(ctx, "wlan9", domain.LostLink{})
	assert.ErrorIs(t, err, domain.ErrUnknownLink)

	_, err = f.links.PostSap(ctx, "wlan0", domain.StopBssComplete{})
	assert.ErrorIs(t, err, domain.ErrRoleMismatch)

	_, err = f.links.PostRoam(ctx, "ap0", domain.LostLink{})
	assert.ErrorIs(t, err, domain.ErrRoleMismatch)

	assert.Equal(t, []string{"wlan0"}, f.links.Names(domain.RoleStation))
	assert.Equal(t, []string{"ap0"}, f.links.Names(domain.RoleAP))

	_, ok := f.links.Link("nope")
	assert.False(t, ok)
	assert.Len(t, f.links.Links(), 2)
}

func TestLinks_APKeysAndInactivity(t *testing.T) {
	f := startLinks(t)
	ctx := context.Background()

	_, err := f.links.PostSap(ctx, "ap0", domain.StartBssComplete{Success: true, BSSID: apMAC, Channel: 36, Width: 20, BroadcastID: 0})
	require.NoError(t, err)

	ap, _ := f.links.Get("ap0")
	require.Eventually(t, func() bool { return ap.Status().Linked }, time.Second, 10*time.Millisecond)

	// The configured key was queued ahead of the start and applied by it.
	require.Eventually(t, func() bool { return len(ap.Table.Keys()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.CipherWEP40, ap.Table.Keys()[0].Key.Cipher)

	_, err = f.links.PostSap(ctx, "ap0", domain.StationAssocOrReassoc{StationID: 1, PeerMAC: peerMAC, QoS: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(ap.Status().Peers) == 2 }, time.Second, 10*time.Millisecond)

	_, err = f.links.PostSap(ctx, "ap0", domain.StationDisassoc{StationID: 1, PeerMAC: peerMAC})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.rec.Count(domain.KindStationLeft) == 1 }, time.Second, 10*time.Millisecond)

	// No stations left: the inactivity timer shuts the BSS down.
	require.Eventually(t, func() bool { return f.clock.Pending() > 0 }, time.Second, 10*time.Millisecond)
	f.clock.Advance(time.Minute)

	require.Eventually(t, func() bool { return f.rec.Count(domain.KindAPStopped) == 1 }, time.Second, 10*time.Millisecond)
	envs := f.rec.Envelopes()
	last := envs[len(envs)-1]
	assert.Equal(t, "ap0", last.Iface)
	assert.Equal(t, "inactivity", last.Notification.(domain.APStopped).Reason)
	assert.False(t, ap.Status().Linked)
	assert.Empty(t, ap.Table.Snapshot())
}

func TestNewLinks_RejectsDuplicates(t *testing.T) {
	adapters := append(testAdapters(), testAdapters()[0])
	_, err := NewLinks(adapters, LinkDeps{}, nil)
	assert.Error(t, err)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Addr:          "127.0.0.1:0",
		DBPath:        filepath.Join(t.TempDir(), "journal.db"),
		LinkUpTimeout: time.Second,
		QueueDepth:    16,
		Adapters:      testAdapters(),
	}
}

func TestApplication_New(t *testing.T) {
	cfg := testConfig(t)
	cfg.MockMode = true
	cfg.MockSeed = 3

	application, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.cleanup() })

	require.NotNil(t, application.Journal)
	require.NotNil(t, application.Simulator)
	assert.Equal(t, []string{"wlan0"}, application.Simulator.Stations)
	assert.Equal(t, []string{"ap0"}, application.Simulator.APs)

	// The journal is subscribed to the fan-out.
	application.Notifier.Notify(context.Background(), "ap0", domain.APStarted{Channel: 1})
	require.NoError(t, application.Journal.Flush(context.Background()))
	n, err := application.Journal.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestApplication_NewRejectsBadTokenHash(t *testing.T) {
	cfg := testConfig(t)
	cfg.APITokenHash = "not-a-bcrypt-hash"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestApplication_RunReplay(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = "off"
	cfg.ReplayPath = filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(cfg.ReplayPath, []byte(
		`{"iface":"wlan0","kind":"association_complete","payload":{"success":true,"bssid":"02:00:00:00:0a:01","auth_type":"open","station_id":1}}`+"\n"+
			`{"iface":"ap0","kind":"start_bss_complete","payload":{"success":true,"bssid":"02:00:00:00:00:02","channel":11}}`+"\n",
	), 0o600))

	application, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, application.Journal)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- application.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, l := range application.Links.Links() {
			if !l.Linked {
				return false
			}
		}
		return true
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
