package station

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
	"github.com/lcalzada-xor/wlcoord/internal/telemetry"
)

// DefaultLinkUpTimeout bounds the wait for the link-up acknowledgment.
const DefaultLinkUpTimeout = 2 * time.Second

// Config identifies the adapter a Machine drives.
type Config struct {
	Iface         string
	Self          domain.HWAddr
	LinkUpTimeout time.Duration
}

// Machine runs Transition for one adapter and executes its effects. Handle
// must be called from a single goroutine; Snapshot may be called from any.
type Machine struct {
	cfg      Config
	dataPath ports.DataPath
	dev      ports.NetDevice
	notifier ports.Notifier
	tracker  *concurrency.Tracker
	logger   *slog.Logger

	mu    sync.RWMutex
	state State
}

// NewMachine creates a machine in NotConnected.
func NewMachine(cfg Config, dp ports.DataPath, dev ports.NetDevice, n ports.Notifier, tracker *concurrency.Tracker, logger *slog.Logger) *Machine {
	if cfg.LinkUpTimeout <= 0 {
		cfg.LinkUpTimeout = DefaultLinkUpTimeout
	}
	if tracker == nil {
		tracker = concurrency.NewTracker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:      cfg,
		dataPath: dp,
		dev:      dev,
		notifier: n,
		tracker:  tracker,
		logger:   logger.With("iface", cfg.Iface, "role", domain.RoleStation),
	}
}

func (m *Machine) Iface() string     { return m.cfg.Iface }
func (m *Machine) Role() domain.Role { return domain.RoleStation }

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Linked reports whether the adapter currently has a usable link.
func (m *Machine) Linked() bool {
	st := m.Snapshot()
	return st.Info.Connected() && !st.RoamPending
}

// Handle applies one SME roam event. It returns an error only when the
// adapter must stop; such errors wrap domain.ErrFatal.
func (m *Machine) Handle(ctx context.Context, ev domain.RoamEvent) error {
	ctx, span := telemetry.Tracer("station").Start(ctx, "station."+ev.RoamKind())
	defer span.End()
	span.SetAttributes(attribute.String("iface", m.cfg.Iface))

	telemetry.EventsHandled.WithLabelValues(m.cfg.Iface, ev.RoamKind()).Inc()

	cur := m.Snapshot()
	next, effects, err := Transition(cur, ev, Env{Self: m.cfg.Self, Now: time.Now()})
	switch {
	case err == nil:
	case errors.Is(err, ErrUnexpectedEvent):
		m.logger.Debug("event ignored", "event", ev.RoamKind(), "reason", err)
		return nil
	case errors.Is(err, ErrDropped):
		m.logger.Warn("event dropped", "event", ev.RoamKind(), "error", err)
		return nil
	default:
		span.RecordError(err)
		m.logger.Error("link state corrupted", "event", ev.RoamKind(), "error", err)
		return fmt.Errorf("%w: %s: %w", domain.ErrFatal, m.cfg.Iface, err)
	}

	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	if cur.Info.State != next.Info.State {
		m.logger.Info("state change", "from", cur.Info.State, "to", next.Info.State, "event", ev.RoamKind())
		telemetry.StateTransitions.WithLabelValues(m.cfg.Iface, cur.Info.State.String(), next.Info.State.String()).Inc()
	}

	for _, eff := range effects {
		m.apply(ctx, eff)
	}
	return nil
}

func (m *Machine) apply(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case StopQueues:
		m.dev.StopQueues()
	case StartQueues:
		m.dev.StartQueues()
	case CarrierOff:
		m.dev.CarrierOff()
	case CarrierOn:
		m.dev.CarrierOn()
	case WaitLinkUp:
		wctx, cancel := context.WithTimeout(ctx, m.cfg.LinkUpTimeout)
		err := m.dev.WaitLinkUp(wctx)
		cancel()
		if err != nil {
			telemetry.LinkUpTimeouts.WithLabelValues(m.cfg.Iface).Inc()
			m.logger.Warn("link-up not acknowledged", "timeout", m.cfg.LinkUpTimeout, "error", err)
		}
	case RegisterPeer:
		if err := m.dataPath.RegisterPeer(ctx, e.Desc); err != nil {
			m.logger.Error("peer registration failed", "station_id", e.Desc.StationID, "mac", e.Desc.MAC, "error", err)
		}
	case SetPeerState:
		if err := m.dataPath.SetPeerState(ctx, e.StationID, e.State); err != nil {
			m.logger.Error("peer state change failed", "station_id", e.StationID, "state", e.State, "error", err)
		}
	case DeregisterPeer:
		if err := m.dataPath.DeregisterPeer(ctx, e.StationID); err != nil {
			m.logger.Warn("peer deregistration failed", "station_id", e.StationID, "error", err)
		}
	case OpenSession:
		m.tracker.OpenSession(e.Mode)
	case CloseSession:
		m.tracker.CloseSession(e.Mode)
	case ApplyPowerSave:
		m.dev.SetPowerSave(m.tracker.PowerSaveAllowed())
	case RestorePowerSave:
		m.dev.SetPowerSave(true)
	case Notify:
		if m.notifier != nil {
			m.notifier.Notify(ctx, m.cfg.Iface, e.Notification)
		}
	default:
		m.logger.Error("unknown effect", "effect", fmt.Sprintf("%T", eff))
	}
}
