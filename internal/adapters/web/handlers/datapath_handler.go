package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/wlcoord/internal/adapters/datapath"
)

// RegistrationLister exposes the data-path tables of every adapter.
type RegistrationLister interface {
	Registrations() map[string][]datapath.Entry
}

// DataPathHandler serves the peers currently registered with the data path.
type DataPathHandler struct {
	Tables RegistrationLister
}

func NewDataPathHandler(t RegistrationLister) *DataPathHandler {
	return &DataPathHandler{Tables: t}
}

func (h *DataPathHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"registrations": h.Tables.Registrations()})
}
