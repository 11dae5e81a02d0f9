// Package datapath is an in-memory traffic-forwarding layer. It tracks which
// peers may exchange frames on an adapter and in which authorization state.
package datapath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/telemetry"
)

// Errors
var (
	ErrAlreadyRegistered = errors.New("peer already registered")
	ErrNotRegistered     = errors.New("peer not registered")
	ErrRejected          = errors.New("data path rejected peer")
)

// Entry is one registered peer as seen by the traffic layer.
type Entry struct {
	Iface     string               `json:"iface"`
	StationID int                  `json:"station_id"`
	MAC       domain.HWAddr        `json:"mac"`
	Self      domain.HWAddr        `json:"self"`
	QoS       bool                 `json:"qos"`
	Broadcast bool                 `json:"broadcast,omitempty"`
	State     domain.PeerAuthState `json:"state"`
	Since     time.Time            `json:"since"`
}

// InstalledKey records a group key applied to a BSS.
type InstalledKey struct {
	BSSID domain.HWAddr   `json:"bssid"`
	Key   domain.GroupKey `json:"key"`
	At    time.Time       `json:"at"`
}

// Table implements ports.DataPath and ports.KeyInstaller for one adapter.
type Table struct {
	iface    string
	capacity int
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[int]Entry
	keys    []InstalledKey

	// Reject, when set, is consulted before every registration and may
	// refuse it. Used to model a layer out of resources.
	Reject func(desc domain.PeerDescriptor) error
}

// New creates an empty table. capacity bounds the number of simultaneously
// registered entries (broadcast included); 0 means the station-id space.
func New(iface string, capacity int, logger *slog.Logger) *Table {
	if capacity <= 0 || capacity > domain.MaxStations {
		capacity = domain.MaxStations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		iface:    iface,
		capacity: capacity,
		logger:   logger.With("component", "datapath", "iface", iface),
		entries:  make(map[int]Entry),
	}
}

func (t *Table) record(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	telemetry.DataPathOps.WithLabelValues(op, result).Inc()
}

func (t *Table) add(e Entry) error {
	if e.StationID < 0 || e.StationID >= domain.MaxStations {
		return fmt.Errorf("%w: invalid station id %d", ErrRejected, e.StationID)
	}
	if _, ok := t.entries[e.StationID]; ok {
		return fmt.Errorf("%w: id %d", ErrAlreadyRegistered, e.StationID)
	}
	if len(t.entries) >= t.capacity {
		return fmt.Errorf("%w: capacity %d exhausted", ErrRejected, t.capacity)
	}
	e.Iface = t.iface
	e.Since = time.Now()
	t.entries[e.StationID] = e
	telemetry.PeersRegistered.WithLabelValues(t.iface).Set(float64(len(t.entries)))
	return nil
}

// RegisterPeer adds a unicast peer.
func (t *Table) RegisterPeer(ctx context.Context, desc domain.PeerDescriptor) (err error) {
	defer func() { t.record("register", err) }()

	if t.Reject != nil {
		if rerr := t.Reject(desc); rerr != nil {
			return fmt.Errorf("%w: %v", ErrRejected, rerr)
		}
	}

	t.mu.Lock()
	err = t.add(Entry{
		StationID: desc.StationID,
		MAC:       desc.MAC,
		Self:      desc.Self,
		QoS:       desc.QoS,
		State:     desc.State,
	})
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.logger.Debug("peer registered", "station_id", desc.StationID, "mac", desc.MAC, "state", desc.State)
	return nil
}

// SetPeerState changes the authorization state of a registered peer.
func (t *Table) SetPeerState(ctx context.Context, stationID int, state domain.PeerAuthState) (err error) {
	defer func() { t.record("set_state", err) }()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[stationID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotRegistered, stationID)
	}
	e.State = state
	t.entries[stationID] = e
	t.logger.Debug("peer state", "station_id", stationID, "state", state)
	return nil
}

// DeregisterPeer removes a peer. Absent ids are ignored.
func (t *Table) DeregisterPeer(ctx context.Context, stationID int) error {
	t.remove(stationID)
	t.record("deregister", nil)
	return nil
}

// RegisterBroadcast adds the broadcast pseudo-peer of a BSS.
func (t *Table) RegisterBroadcast(ctx context.Context, stationID int, bssid domain.HWAddr) (err error) {
	defer func() { t.record("register_broadcast", err) }()

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(Entry{
		StationID: stationID,
		MAC:       domain.BroadcastAddr,
		Self:      bssid,
		Broadcast: true,
		State:     domain.PeerAuthenticated,
	})
}

// DeregisterBroadcast removes the broadcast pseudo-peer. Absent ids are ignored.
func (t *Table) DeregisterBroadcast(ctx context.Context, stationID int) error {
	t.remove(stationID)
	t.record("deregister_broadcast", nil)
	return nil
}

func (t *Table) remove(stationID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[stationID]; !ok {
		return
	}
	delete(t.entries, stationID)
	telemetry.PeersRegistered.WithLabelValues(t.iface).Set(float64(len(t.entries)))
	t.logger.Debug("peer deregistered", "station_id", stationID)
}

// InstallGroupKey records key material for a started BSS.
func (t *Table) InstallGroupKey(ctx context.Context, bssid domain.HWAddr, key domain.GroupKey) error {
	if len(key.Key) == 0 {
		t.record("install_key", ErrRejected)
		return fmt.Errorf("%w: empty key at index %d", ErrRejected, key.Index)
	}
	t.mu.Lock()
	t.keys = append(t.keys, InstalledKey{BSSID: bssid, Key: key, At: time.Now()})
	t.mu.Unlock()
	t.record("install_key", nil)
	t.logger.Info("group key installed", "bssid", bssid, "index", key.Index, "cipher", key.Cipher)
	return nil
}

// Lookup returns the entry registered under stationID.
func (t *Table) Lookup(stationID int) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[stationID]
	return e, ok
}

// Len returns the number of registered entries, broadcast included.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns the registered entries ordered by station id.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out
}

// Keys returns the group keys installed so far.
func (t *Table) Keys() []InstalledKey {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]InstalledKey, len(t.keys))
	copy(out, t.keys)
	return out
}
