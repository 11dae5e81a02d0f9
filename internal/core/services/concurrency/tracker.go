// Package concurrency keeps the little state that is genuinely shared between
// adapters: how many personas of each kind are up, which AP instances hold a
// DFS channel, and whether a channel availability check has completed.
package concurrency

import (
	"sync"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/telemetry"
)

// Mode is a concurrency persona.
type Mode int

const (
	ModeStation Mode = iota
	ModeSAP
	ModeIBSS
)

func (m Mode) String() string {
	switch m {
	case ModeStation:
		return "station"
	case ModeSAP:
		return "sap"
	case ModeIBSS:
		return "ibss"
	default:
		return "unknown"
	}
}

// Tracker is safe for concurrent use. Critical sections only compare and
// count; nothing blocks while the lock is held.
type Tracker struct {
	mu       sync.Mutex
	sessions map[Mode]int
	// owner -> DFS channel it acquired
	dfsHolders map[string]int
	cac        domain.CACStatus
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions:   make(map[Mode]int),
		dfsHolders: make(map[string]int),
	}
}

// OpenSession records a persona coming up.
func (t *Tracker) OpenSession(m Mode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[m]++
}

// CloseSession records a persona going down. Never drops below zero.
func (t *Tracker) CloseSession(m Mode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessions[m] > 0 {
		t.sessions[m]--
	}
}

func (t *Tracker) Sessions(m Mode) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[m]
}

// ActiveSessions is the number of personas up across all modes.
func (t *Tracker) ActiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.sessions {
		n += c
	}
	return n
}

// PowerSaveAllowed reports whether a station may keep power save enabled:
// only while it is the sole active persona.
func (t *Tracker) PowerSaveAllowed() bool {
	return t.ActiveSessions() <= 1
}

// AcquireDFS takes a DFS reference for owner on channel. An owner holds at
// most one reference; a second acquire is refused.
func (t *Tracker) AcquireDFS(owner string, channel int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, held := t.dfsHolders[owner]; held {
		return false
	}
	t.dfsHolders[owner] = channel
	telemetry.DFSRefCount.Set(float64(len(t.dfsHolders)))
	return true
}

// ReleaseDFS drops owner's reference, but only if it was taken for channel.
func (t *Tracker) ReleaseDFS(owner string, channel int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	held, ok := t.dfsHolders[owner]
	if !ok || held != channel {
		return false
	}
	delete(t.dfsHolders, owner)
	telemetry.DFSRefCount.Set(float64(len(t.dfsHolders)))
	return true
}

// DFSRefCount is the number of AP instances currently on a DFS channel.
func (t *Tracker) DFSRefCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dfsHolders)
}

func (t *Tracker) CACStatus() domain.CACStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cac
}

func (t *Tracker) SetCACStatus(s domain.CACStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cac = s
}
