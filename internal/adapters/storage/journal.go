package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/link"
	"github.com/lcalzada-xor/wlcoord/internal/telemetry"
)

// Ensure compliance
var _ ports.Notifier = (*Journal)(nil)

const (
	// DefaultListLimit caps List when no limit is given.
	DefaultListLimit = 100
	// queueDepth bounds the notifications waiting to be written.
	queueDepth = 256
)

// JournalEntry is the GORM model of one delivered notification.
type JournalEntry struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"index" json:"event_id,omitempty"`
	Iface     string    `gorm:"index" json:"iface"`
	Kind      string    `gorm:"index" json:"kind"`
	Payload   string    `json:"payload"` // JSON encoded notification
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// JournalFilter narrows List results. Zero fields match everything.
type JournalFilter struct {
	Iface string
	Kind  domain.NotificationKind
	Limit int
}

// journalOp is either an entry to store or a flush marker.
type journalOp struct {
	ctx     context.Context
	entry   *JournalEntry
	flushed chan struct{}
}

// Journal persists every notification it receives to SQLite. Writes happen
// on a background goroutine so Notify never blocks the caller.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan journalOp
	done   chan struct{}
}

// NewJournal opens (creating if needed) the journal database at path.
// Use ":memory:" for a throwaway journal.
func NewJournal(path string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, err
	}

	// Auto Migrate
	if err := db.AutoMigrate(&JournalEntry{}); err != nil {
		return nil, err
	}

	j := &Journal{
		db:     db,
		logger: log.With("component", "journal"),
		queue:  make(chan journalOp, queueDepth),
		done:   make(chan struct{}),
	}
	go j.writer()
	return j, nil
}

func (j *Journal) writer() {
	defer close(j.done)
	for op := range j.queue {
		if op.flushed != nil {
			close(op.flushed)
			continue
		}
		if err := j.db.WithContext(op.ctx).Create(op.entry).Error; err != nil {
			j.logger.Error("failed to save notification", "iface", op.entry.Iface, "kind", op.entry.Kind, "error", err)
		}
	}
}

// Notify queues the notification for storage. When the queue is full the
// notification is dropped and counted; storage failures are logged.
func (j *Journal) Notify(ctx context.Context, iface string, n domain.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		j.logger.Error("failed to encode notification", "kind", n.Kind(), "error", err)
		return
	}

	entry := JournalEntry{
		ID:        uuid.NewString(),
		EventID:   link.EventID(ctx),
		Iface:     iface,
		Kind:      string(n.Kind()),
		Payload:   string(payload),
		CreatedAt: time.Now(),
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- journalOp{ctx: context.WithoutCancel(ctx), entry: &entry}:
	default:
		telemetry.NotificationsDropped.WithLabelValues("journal").Inc()
		j.logger.Warn("journal queue full, notification dropped", "iface", iface, "kind", n.Kind())
	}
}

// Flush blocks until every notification queued before the call is stored.
func (j *Journal) Flush(ctx context.Context) error {
	op := journalOp{flushed: make(chan struct{})}

	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil
	}
	select {
	case j.queue <- op:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-op.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns matching entries, newest first.
func (j *Journal) List(ctx context.Context, f JournalFilter) ([]JournalEntry, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	q := j.db.WithContext(ctx).Model(&JournalEntry{})
	if f.Iface != "" {
		q = q.Where("iface = ?", f.Iface)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", string(f.Kind))
	}

	var entries []JournalEntry
	if err := q.Order("created_at desc, rowid desc").Limit(f.Limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.WithContext(ctx).Model(&JournalEntry{}).Count(&n).Error
	return n, err
}

// Close stores what is still queued and releases the underlying connection.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()
	<-j.done

	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
