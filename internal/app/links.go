package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/wlcoord/internal/adapters/datapath"
	"github.com/lcalzada-xor/wlcoord/internal/adapters/netdev"
	"github.com/lcalzada-xor/wlcoord/internal/adapters/regdomain"
	"github.com/lcalzada-xor/wlcoord/internal/config"
	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/concurrency"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/link"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/softap"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/station"
)

// Ensure compliance
var _ ports.LinkDirectory = (*Links)(nil)

// LinkDeps are shared by every adapter of a process.
type LinkDeps struct {
	Tracker       *concurrency.Tracker
	Notifier      ports.Notifier
	Timers        ports.TimerFactory
	LinkUpTimeout time.Duration
	QueueDepth    int
	// DeviceOptions configure every simulated net device.
	DeviceOptions []netdev.Option
}

// Link is one configured adapter with its machine, queue and data path.
type Link struct {
	Name   string
	Role   domain.Role
	Table  *datapath.Table
	Device *netdev.Device

	sta  *station.Machine
	staQ *link.Dispatcher[domain.RoamEvent]
	ap   *softap.Machine
	apQ  *link.Dispatcher[domain.SapEvent]

	keys []domain.GroupKey
}

// Status returns a read-only snapshot of the adapter.
func (l *Link) Status() domain.LinkStatus {
	st := domain.LinkStatus{Iface: l.Name, Role: l.Role}
	var err error
	switch l.Role {
	case domain.RoleStation:
		snap := l.sta.Snapshot()
		info := snap.Info
		st.Station = &info
		st.IBSSPeers = info.ActiveIBSSPeers()
		st.Linked = l.sta.Linked()
		st.Stopped = l.staQ.Stopped()
		err = l.staQ.Err()
	case domain.RoleAP:
		snap := l.ap.Snapshot()
		info := snap.Info
		st.AP = &info
		st.Peers = snap.Peers.Used()
		st.Linked = l.ap.Linked()
		st.Stopped = l.apQ.Stopped()
		err = l.apQ.Err()
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}

// run drives the adapter's event loop until ctx ends or a fatal error.
func (l *Link) run(ctx context.Context, logger *slog.Logger) error {
	if l.Role == domain.RoleStation {
		return l.staQ.Run(ctx)
	}

	// Keys from the profile are queued ahead of any SME event.
	go func() {
		for _, k := range l.keys {
			if _, err := l.apQ.Post(ctx, domain.GroupKeyRequest{Key: k}); err != nil {
				logger.Warn("could not queue configured key", "iface", l.Name, "index", k.Index, "error", err)
				return
			}
		}
	}()
	return l.apQ.Run(ctx)
}

// Links is the process-wide directory of adapters.
type Links struct {
	logger *slog.Logger
	order  []*Link
	byName map[string]*Link
}

// NewLinks builds one machine and dispatcher per configured adapter.
func NewLinks(adapters []config.AdapterConfig, deps LinkDeps, logger *slog.Logger) (*Links, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Tracker == nil {
		deps.Tracker = concurrency.NewTracker()
	}
	ls := &Links{logger: logger, byName: make(map[string]*Link, len(adapters))}

	for _, a := range adapters {
		if _, dup := ls.byName[a.Name]; dup {
			return nil, fmt.Errorf("duplicate adapter %q", a.Name)
		}
		l := &Link{
			Name:   a.Name,
			Role:   a.Role,
			Table:  datapath.New(a.Name, a.MaxPeers, logger),
			Device: netdev.New(a.Name, logger, deps.DeviceOptions...),
		}

		switch a.Role {
		case domain.RoleStation:
			l.sta = station.NewMachine(station.Config{
				Iface:         a.Name,
				Self:          a.MAC,
				LinkUpTimeout: deps.LinkUpTimeout,
			}, l.Table, l.Device, deps.Notifier, deps.Tracker, logger)
			l.staQ = link.New[domain.RoamEvent](a.Name, l.sta, deps.QueueDepth, logger)

		case domain.RoleAP:
			keys, err := a.GroupKeys()
			if err != nil {
				return nil, fmt.Errorf("adapter %s: %w", a.Name, err)
			}
			l.keys = keys
			l.ap = softap.NewMachine(softap.Config{
				Iface:             a.Name,
				Privacy:           a.Privacy,
				InactivityTimeout: a.InactivityTimeout,
				MaxStations:       a.MaxPeers,
			}, softap.Deps{
				DataPath: l.Table,
				Keys:     l.Table,
				Device:   l.Device,
				Notifier: deps.Notifier,
				Policy:   regdomain.New(a.Country),
				Timers:   deps.Timers,
				Tracker:  deps.Tracker,
			}, logger)
			l.apQ = link.New[domain.SapEvent](a.Name, l.ap, deps.QueueDepth, logger)

			q, name := l.apQ, a.Name
			l.ap.SetPoster(func(ev domain.SapEvent) {
				if _, err := q.Post(context.Background(), ev); err != nil {
					logger.Warn("timer event not queued", "iface", name, "kind", ev.SapKind(), "error", err)
				}
			})

		default:
			return nil, fmt.Errorf("adapter %s: unknown role %q", a.Name, a.Role)
		}

		ls.order = append(ls.order, l)
		ls.byName[a.Name] = l
	}
	return ls, nil
}

// Run starts every adapter's event loop and blocks until ctx ends. A fatal
// error stops only the adapter that hit it.
func (ls *Links) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, l := range ls.order {
		wg.Add(1)
		go func(l *Link) {
			defer wg.Done()
			if err := l.run(ctx, ls.logger); err != nil {
				ls.logger.Error("adapter stopped", "iface", l.Name, "role", l.Role, "error", err)
			}
		}(l)
	}
	wg.Wait()
}

// Get returns the named adapter.
func (ls *Links) Get(iface string) (*Link, bool) {
	l, ok := ls.byName[iface]
	return l, ok
}

// Names returns adapter names of one role in configuration order.
func (ls *Links) Names(role domain.Role) []string {
	var out []string
	for _, l := range ls.order {
		if l.Role == role {
			out = append(out, l.Name)
		}
	}
	return out
}

// PostRoam queues a station event.
func (ls *Links) PostRoam(ctx context.Context, iface string, ev domain.RoamEvent) (string, error) {
	l, ok := ls.byName[iface]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownLink, iface)
	}
	if l.Role != domain.RoleStation {
		return "", fmt.Errorf("%w: %s is %s, got %s", domain.ErrRoleMismatch, iface, l.Role, ev.RoamKind())
	}
	return l.staQ.Post(ctx, ev)
}

// PostSap queues an AP event.
func (ls *Links) PostSap(ctx context.Context, iface string, ev domain.SapEvent) (string, error) {
	l, ok := ls.byName[iface]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownLink, iface)
	}
	if l.Role != domain.RoleAP {
		return "", fmt.Errorf("%w: %s is %s, got %s", domain.ErrRoleMismatch, iface, l.Role, ev.SapKind())
	}
	return l.apQ.Post(ctx, ev)
}

func (ls *Links) Links() []domain.LinkStatus {
	out := make([]domain.LinkStatus, 0, len(ls.order))
	for _, l := range ls.order {
		out = append(out, l.Status())
	}
	return out
}

func (ls *Links) Link(iface string) (domain.LinkStatus, bool) {
	l, ok := ls.byName[iface]
	if !ok {
		return domain.LinkStatus{}, false
	}
	return l.Status(), true
}

// Registrations returns every adapter's data-path table.
func (ls *Links) Registrations() map[string][]datapath.Entry {
	out := make(map[string][]datapath.Entry, len(ls.order))
	for _, l := range ls.order {
		out[l.Name] = l.Table.Snapshot()
	}
	return out
}
