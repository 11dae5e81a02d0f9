package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lcalzada-xor/wlcoord/internal/adapters/storage"
	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// maxJournalLimit caps ?limit= on the journal endpoint.
const maxJournalLimit = 1000

// JournalReader is the read side of the notification journal.
type JournalReader interface {
	List(ctx context.Context, f storage.JournalFilter) ([]storage.JournalEntry, error)
}

// JournalHandler serves persisted notifications.
type JournalHandler struct {
	Journal JournalReader
	Logger  *slog.Logger
}

// NewJournalHandler creates a new JournalHandler
func NewJournalHandler(j JournalReader, logger *slog.Logger) *JournalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JournalHandler{Journal: j, Logger: logger}
}

// HandleList returns journal entries, newest first. Supports ?iface=,
// ?kind= and ?limit=.
func (h *JournalHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	f := storage.JournalFilter{
		Iface: q.Get("iface"),
		Kind:  domain.NotificationKind(q.Get("kind")),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxJournalLimit {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	entries, err := h.Journal.List(r.Context(), f)
	if err != nil {
		h.Logger.Error("failed to fetch journal", "error", err)
		http.Error(w, "Failed to fetch journal", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
