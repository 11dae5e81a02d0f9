// Package timer provides the one-shot timers used for BSS inactivity.
package timer

import (
	"sort"
	"sync"
	"time"

	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
)

// Real creates timers backed by time.AfterFunc.
type Real struct{}

func (Real) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}

// Manual is a fake clock for tests. Timers fire only when Advance moves the
// clock past their deadline.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	m        *Manual
	deadline time.Duration
	f        func()
	stopped  bool
	fired    bool
}

// NewManual returns a manual clock at zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) AfterFunc(d time.Duration, f func()) ports.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{m: m, deadline: m.now + d, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward and runs every timer that expired, in
// deadline order. Callbacks run outside the lock.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	m.now += d
	var due, pending []*manualTimer
	for _, t := range m.timers {
		switch {
		case t.stopped:
		case t.deadline <= m.now:
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	m.timers = pending
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline < due[j].deadline })
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// Pending returns the number of armed timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}
