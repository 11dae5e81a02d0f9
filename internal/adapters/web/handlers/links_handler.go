package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/wlcoord/internal/adapters/sme"
	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/link"
)

// maxEventBody bounds an injected event envelope.
const maxEventBody = 64 << 10

// LinkHandler serves link snapshots and accepts SME events for a link.
type LinkHandler struct {
	Links  ports.LinkDirectory
	Logger *slog.Logger
}

// NewLinkHandler creates a new LinkHandler
func NewLinkHandler(links ports.LinkDirectory, logger *slog.Logger) *LinkHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkHandler{Links: links, Logger: logger}
}

// HandleList returns every configured link.
func (h *LinkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"links": h.Links.Links()})
}

// HandleGet returns one link.
func (h *LinkHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	iface := mux.Vars(r)["iface"]
	st, ok := h.Links.Link(iface)
	if !ok {
		http.Error(w, "Link not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandlePostEvent queues one SME event envelope on the link named in the
// path. The envelope may omit iface; if present it must match.
func (h *LinkHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	iface := mux.Vars(r)["iface"]
	if !domain.IsValidInterface(iface) {
		http.Error(w, "Invalid interface name", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEventBody)
	var env sme.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if env.Iface != "" && env.Iface != iface {
		http.Error(w, "Envelope interface does not match path", http.StatusBadRequest)
		return
	}
	env.Iface = iface

	id, err := sme.Deliver(r.Context(), h.Links, iface, env)
	switch {
	case err == nil:
	case errors.Is(err, sme.ErrUnknownKind), errors.Is(err, sme.ErrBadPayload):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrUnknownLink):
		http.Error(w, "Link not found", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrRoleMismatch):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, link.ErrStopped):
		http.Error(w, "Link stopped: "+err.Error(), http.StatusServiceUnavailable)
		return
	default:
		h.Logger.Error("event injection failed", "iface", iface, "kind", env.Kind, "error", err)
		http.Error(w, "Failed to queue event", http.StatusInternalServerError)
		return
	}

	h.Logger.Info("event injected", "iface", iface, "kind", env.Kind, "event_id", id)
	writeJSON(w, http.StatusAccepted, map[string]string{"event_id": id, "status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
