package softap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/concurrency"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/peers"
	"github.com/lcalzada-xor/wlcoord/internal/telemetry"
)

// Config describes one AP adapter.
type Config struct {
	Iface             string
	Privacy           domain.Privacy
	InactivityTimeout time.Duration
	// MaxStations caps associated stations; 0 means the station-id space.
	MaxStations int
}

// Deps are the ports a Machine drives.
type Deps struct {
	DataPath ports.DataPath
	Keys     ports.KeyInstaller
	Device   ports.NetDevice
	Notifier ports.Notifier
	Policy   ports.ChannelPolicy
	Timers   ports.TimerFactory
	Tracker  *concurrency.Tracker
}

// Machine runs Transition for one AP adapter and executes its effects.
type Machine struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu    sync.RWMutex
	state State

	// timer and post are only touched from Handle.
	timer ports.Timer
	post  func(domain.SapEvent)
}

// NewMachine creates a machine in BSS_STOP.
func NewMachine(cfg Config, deps Deps, logger *slog.Logger) *Machine {
	if deps.Tracker == nil {
		deps.Tracker = concurrency.NewTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("iface", cfg.Iface, "role", domain.RoleAP),
		state: State{
			Info: domain.ApBssInfo{
				State:             domain.BssStop,
				Privacy:           cfg.Privacy,
				InactivityTimeout: cfg.InactivityTimeout,
			},
			Peers: peers.NewRegistry(cfg.MaxStations),
		},
	}
}

func (m *Machine) Iface() string     { return m.cfg.Iface }
func (m *Machine) Role() domain.Role { return domain.RoleAP }

// SetPoster sets where timer-generated events are delivered. It must feed
// the same serial queue that calls Handle.
func (m *Machine) SetPoster(post func(domain.SapEvent)) {
	m.post = post
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Linked reports whether the BSS is up.
func (m *Machine) Linked() bool {
	return m.Snapshot().Info.State == domain.BssStart
}

func (m *Machine) env() Env {
	env := Env{Now: time.Now(), CAC: m.deps.Tracker.CACStatus()}
	if m.deps.Policy != nil {
		env.IsDFS = m.deps.Policy.IsDFS
		env.Country = m.deps.Policy.CountryCode()
	}
	return env
}

// Handle applies one SAP event. Only errors wrapping domain.ErrFatal are
// returned.
func (m *Machine) Handle(ctx context.Context, ev domain.SapEvent) error {
	ctx, span := telemetry.Tracer("softap").Start(ctx, "softap."+ev.SapKind())
	defer span.End()
	span.SetAttributes(attribute.String("iface", m.cfg.Iface))

	telemetry.EventsHandled.WithLabelValues(m.cfg.Iface, ev.SapKind()).Inc()

	cur := m.Snapshot()
	next, effects, err := Transition(cur, ev, m.env())
	switch {
	case err == nil:
	case errors.Is(err, ErrUnexpectedEvent):
		m.logger.Debug("event ignored", "event", ev.SapKind(), "reason", err)
		return nil
	case errors.Is(err, ErrDropped):
		m.logger.Warn("event dropped", "event", ev.SapKind(), "error", err)
		return nil
	default:
		span.RecordError(err)
		m.logger.Error("bss state corrupted", "event", ev.SapKind(), "error", err)
		return fmt.Errorf("%w: %s: %w", domain.ErrFatal, m.cfg.Iface, err)
	}

	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	if cur.Info.State != next.Info.State {
		m.logger.Info("state change", "from", cur.Info.State, "to", next.Info.State, "event", ev.SapKind())
		telemetry.StateTransitions.WithLabelValues(m.cfg.Iface, cur.Info.State.String(), next.Info.State.String()).Inc()
	}

	for _, eff := range effects {
		m.apply(ctx, eff)
	}
	return nil
}

func (m *Machine) apply(ctx context.Context, eff Effect) {
	d := m.deps
	switch e := eff.(type) {
	case StopQueues:
		d.Device.StopQueues()
	case StartQueues:
		d.Device.StartQueues()
	case CarrierOff:
		d.Device.CarrierOff()
	case CarrierOn:
		d.Device.CarrierOn()
	case RegisterBroadcast:
		if err := d.DataPath.RegisterBroadcast(ctx, e.StationID, e.BSSID); err != nil {
			m.logger.Error("broadcast registration failed", "station_id", e.StationID, "error", err)
		}
	case DeregisterBroadcast:
		if err := d.DataPath.DeregisterBroadcast(ctx, e.StationID); err != nil {
			m.logger.Warn("broadcast deregistration failed", "station_id", e.StationID, "error", err)
		}
	case RegisterPeer:
		if err := d.DataPath.RegisterPeer(ctx, e.Desc); err != nil {
			m.logger.Error("peer registration failed", "station_id", e.Desc.StationID, "mac", e.Desc.MAC, "error", err)
		}
	case SetPeerState:
		if err := d.DataPath.SetPeerState(ctx, e.StationID, e.State); err != nil {
			m.logger.Error("peer state change failed", "station_id", e.StationID, "error", err)
		}
	case DeregisterPeer:
		if err := d.DataPath.DeregisterPeer(ctx, e.StationID); err != nil {
			m.logger.Warn("peer deregistration failed", "station_id", e.StationID, "error", err)
		}
	case InstallKey:
		if d.Keys == nil {
			m.logger.Warn("no key installer, group key discarded", "index", e.Key.Index)
			return
		}
		if err := d.Keys.InstallGroupKey(ctx, e.BSSID, e.Key); err != nil {
			m.logger.Error("group key installation failed", "index", e.Key.Index, "error", err)
		}
	case StartTimer:
		m.startTimer(e.After)
	case StopTimer:
		m.stopTimer()
	case AcquireDFS:
		if !d.Tracker.AcquireDFS(m.cfg.Iface, e.Channel) {
			m.logger.Warn("DFS reference already held", "channel", e.Channel)
		}
	case ReleaseDFS:
		if !d.Tracker.ReleaseDFS(m.cfg.Iface, e.Channel) {
			m.logger.Warn("DFS reference not held", "channel", e.Channel)
		}
	case SetCAC:
		d.Tracker.SetCACStatus(e.Status)
	case OpenSession:
		d.Tracker.OpenSession(e.Mode)
	case CloseSession:
		d.Tracker.CloseSession(e.Mode)
	case Notify:
		if d.Notifier != nil {
			d.Notifier.Notify(ctx, m.cfg.Iface, e.Notification)
		}
	default:
		m.logger.Error("unknown effect", "effect", fmt.Sprintf("%T", eff))
	}
}

func (m *Machine) startTimer(after time.Duration) {
	m.stopTimer()
	if m.deps.Timers == nil {
		m.logger.Warn("no timer factory, inactivity shutdown disabled")
		return
	}
	post := m.post
	m.timer = m.deps.Timers.AfterFunc(after, func() {
		if post != nil {
			post(domain.InactivityTimeout{})
		}
	})
	m.logger.Debug("inactivity timer started", "after", after)
}

func (m *Machine) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
