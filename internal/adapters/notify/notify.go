// Package notify delivers link notifications to upper-layer consumers.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
)

// Compile-time interface guards.
var (
	_ ports.Notifier = (*Fanout)(nil)
	_ ports.Notifier = (*LogNotifier)(nil)
	_ ports.Notifier = (*Recorder)(nil)
)

// Fanout delivers every notification synchronously, in subscription order,
// to all subscribers. A panicking subscriber is logged and skipped.
type Fanout struct {
	mu     sync.RWMutex
	subs   []subscriber
	nextID uint64
	logger *slog.Logger
}

type subscriber struct {
	id uint64
	n  ports.Notifier
}

func NewFanout(logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{logger: logger.With("component", "notify")}
}

// Subscribe adds a consumer. Returns an unsubscribe function.
func (f *Fanout) Subscribe(n ports.Notifier) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs = append(f.subs, subscriber{id: id, n: n})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.subs {
			if s.id == id {
				f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
				return
			}
		}
	}
}

func (f *Fanout) Notify(ctx context.Context, iface string, n domain.Notification) {
	f.mu.RLock()
	subs := make([]subscriber, len(f.subs))
	copy(subs, f.subs)
	f.mu.RUnlock()

	for _, s := range subs {
		f.safeCall(ctx, s.n, iface, n)
	}
}

func (f *Fanout) safeCall(ctx context.Context, sub ports.Notifier, iface string, n domain.Notification) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("notification consumer panicked", "iface", iface, "kind", n.Kind(), "panic", r)
		}
	}()
	sub.Notify(ctx, iface, n)
}

// LogNotifier writes each notification as a structured log line.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "upper-layer")}
}

func (l *LogNotifier) Notify(ctx context.Context, iface string, n domain.Notification) {
	l.logger.InfoContext(ctx, "notification", "iface", iface, "kind", n.Kind(), "payload", n)
}

// Recorder keeps the most recent notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	limit int
	items []domain.Envelope
}

// NewRecorder keeps at most limit envelopes; 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(_ context.Context, iface string, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, domain.Envelope{Iface: iface, Kind: n.Kind(), Notification: n})
	if r.limit > 0 && len(r.items) > r.limit {
		r.items = append([]domain.Envelope(nil), r.items[len(r.items)-r.limit:]...)
	}
}

// Envelopes returns what was recorded, oldest first.
func (r *Recorder) Envelopes() []domain.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Envelope, len(r.items))
	copy(out, r.items)
	return out
}

// Count returns how many recorded notifications have the given kind.
func (r *Recorder) Count(kind domain.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.items {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
