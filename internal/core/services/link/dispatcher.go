// Package link serialises the events of one adapter: every event is handled
// to completion, in delivery order, before the next one starts.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// DefaultQueueDepth is the event buffer of a Dispatcher.
const DefaultQueueDepth = 64

// ErrStopped is returned by Post once the loop has exited.
var ErrStopped = errors.New("dispatcher stopped")

// Handler consumes events of one kind. Errors wrapping domain.ErrFatal stop
// the loop; others are logged.
type Handler[E any] interface {
	Handle(ctx context.Context, ev E) error
}

type eventIDKey struct{}

// EventID returns the correlation id of the event being handled, if any.
func EventID(ctx context.Context) string {
	id, _ := ctx.Value(eventIDKey{}).(string)
	return id
}

type queued[E any] struct {
	id string
	ev E
}

// Dispatcher owns the serial event queue of one adapter.
type Dispatcher[E any] struct {
	iface   string
	handler Handler[E]
	queue   chan queued[E]
	logger  *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	err      error
}

// New creates a dispatcher; depth <= 0 selects DefaultQueueDepth.
func New[E any](iface string, h Handler[E], depth int, logger *slog.Logger) *Dispatcher[E] {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher[E]{
		iface:   iface,
		handler: h,
		queue:   make(chan queued[E], depth),
		logger:  logger.With("component", "dispatcher", "iface", iface),
		done:    make(chan struct{}),
	}
}

// Iface is the adapter this dispatcher serves.
func (d *Dispatcher[E]) Iface() string { return d.iface }

// Post enqueues an event and returns its correlation id. It blocks while the
// queue is full.
func (d *Dispatcher[E]) Post(ctx context.Context, ev E) (string, error) {
	q := queued[E]{id: uuid.NewString(), ev: ev}
	select {
	case <-d.done:
		return "", ErrStopped
	default:
	}
	select {
	case d.queue <- q:
		return q.id, nil
	case <-d.done:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Run processes events until ctx ends or the handler reports a fatal error,
// which is returned.
func (d *Dispatcher[E]) Run(ctx context.Context) error {
	d.logger.Info("event loop started")
	defer d.stop(nil)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("event loop stopped")
			return nil
		case q := <-d.queue:
			hctx := context.WithValue(ctx, eventIDKey{}, q.id)
			if err := d.handler.Handle(hctx, q.ev); err != nil {
				if errors.Is(err, domain.ErrFatal) {
					d.logger.Error("event loop aborted", "event_id", q.id, "error", err)
					d.stop(err)
					return err
				}
				d.logger.Warn("event failed", "event_id", q.id, "event", fmt.Sprintf("%T", q.ev), "error", err)
			}
		}
	}
}

func (d *Dispatcher[E]) stop(err error) {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.err = err
		d.mu.Unlock()
		close(d.done)
	})
}

// Done is closed when the loop exits.
func (d *Dispatcher[E]) Done() <-chan struct{} {
	return d.done
}

// Err returns the fatal error that stopped the loop, if any.
func (d *Dispatcher[E]) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Stopped reports whether the loop has exited.
func (d *Dispatcher[E]) Stopped() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}
