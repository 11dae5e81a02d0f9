// Package peers holds the fixed-size peer tables owned by a link state
// machine. Tables are plain values: a machine copies its table, mutates the
// copy and commits it, so transitions stay side-effect free.
package peers

import (
	"errors"
	"fmt"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// Errors
var (
	ErrInvalidID = errors.New("station id out of range")
	ErrInUse     = errors.New("station id already in use")
	ErrNotFound  = errors.New("station id not in use")
	ErrTableFull = errors.New("peer table full")
	ErrInvariant = errors.New("peer table invariant violated")
)

// Registry is an arena of peer records indexed by station id. The used flag
// marks live entries; ids are reusable as soon as an entry is removed.
type Registry struct {
	records [domain.MaxStations]domain.PeerRecord
	// limit caps non-broadcast entries; 0 means the whole arena.
	limit int
}

// NewRegistry creates an empty registry admitting at most limit stations.
func NewRegistry(limit int) Registry {
	if limit <= 0 || limit > domain.MaxStations {
		limit = domain.MaxStations
	}
	return Registry{limit: limit}
}

func validID(id int) bool {
	return id >= 0 && id < domain.MaxStations
}

// Add stores a record at rec.StationID.
func (r *Registry) Add(rec domain.PeerRecord) error {
	if !validID(rec.StationID) {
		return fmt.Errorf("%w: %d", ErrInvalidID, rec.StationID)
	}
	if r.records[rec.StationID].Used {
		return fmt.Errorf("%w: %d", ErrInUse, rec.StationID)
	}
	if !rec.Broadcast && r.limit > 0 && r.CountStations() >= r.limit {
		return fmt.Errorf("%w: %d stations", ErrTableFull, r.limit)
	}
	rec.Used = true
	r.records[rec.StationID] = rec
	return nil
}

// Update replaces a live record.
func (r *Registry) Update(rec domain.PeerRecord) error {
	if !validID(rec.StationID) {
		return fmt.Errorf("%w: %d", ErrInvalidID, rec.StationID)
	}
	if !r.records[rec.StationID].Used {
		return fmt.Errorf("%w: %d", ErrNotFound, rec.StationID)
	}
	rec.Used = true
	r.records[rec.StationID] = rec
	return nil
}

// Remove frees the slot of id and returns what was stored there.
func (r *Registry) Remove(id int) (domain.PeerRecord, bool) {
	if !validID(id) || !r.records[id].Used {
		return domain.PeerRecord{}, false
	}
	rec := r.records[id]
	r.records[id] = domain.PeerRecord{}
	return rec, true
}

func (r *Registry) Get(id int) (domain.PeerRecord, bool) {
	if !validID(id) || !r.records[id].Used {
		return domain.PeerRecord{}, false
	}
	return r.records[id], true
}

// FindByMAC returns the live non-broadcast record for mac.
func (r *Registry) FindByMAC(mac domain.HWAddr) (domain.PeerRecord, bool) {
	for _, rec := range r.records {
		if rec.Used && !rec.Broadcast && rec.MAC == mac {
			return rec, true
		}
	}
	return domain.PeerRecord{}, false
}

// SetAuthState records the forwarding state of a live record.
func (r *Registry) SetAuthState(id int, state domain.PeerAuthState) error {
	if !validID(id) || !r.records[id].Used {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	r.records[id].AuthState = state
	return nil
}

// Used returns every live record in id order, broadcast included.
func (r *Registry) Used() []domain.PeerRecord {
	var out []domain.PeerRecord
	for _, rec := range r.records {
		if rec.Used {
			out = append(out, rec)
		}
	}
	return out
}

// Stations returns the live non-broadcast records in id order.
func (r *Registry) Stations() []domain.PeerRecord {
	var out []domain.PeerRecord
	for _, rec := range r.records {
		if rec.Used && !rec.Broadcast {
			out = append(out, rec)
		}
	}
	return out
}

// CountStations counts live non-broadcast records.
func (r *Registry) CountStations() int {
	n := 0
	for _, rec := range r.records {
		if rec.Used && !rec.Broadcast {
			n++
		}
	}
	return n
}

// Limit is the configured station capacity.
func (r *Registry) Limit() int {
	return r.limit
}

// Reset drops every record but keeps the limit.
func (r *Registry) Reset() {
	r.records = [domain.MaxStations]domain.PeerRecord{}
}
