package concurrency

import (
	"fmt"
	"sync"
	"testing"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestTracker_Sessions(t *testing.T) {
	tr := NewTracker()
	assert.True(t, tr.PowerSaveAllowed())

	tr.OpenSession(ModeStation)
	assert.True(t, tr.PowerSaveAllowed())

	tr.OpenSession(ModeSAP)
	assert.Equal(t, 2, tr.ActiveSessions())
	assert.False(t, tr.PowerSaveAllowed())

	tr.CloseSession(ModeSAP)
	tr.CloseSession(ModeSAP)
	assert.Equal(t, 0, tr.Sessions(ModeSAP), "session count must not go negative")
	assert.Equal(t, 1, tr.ActiveSessions())
}

func TestTracker_DFSOwnership(t *testing.T) {
	tr := NewTracker()

	assert.True(t, tr.AcquireDFS("ap0", 52))
	assert.False(t, tr.AcquireDFS("ap0", 56), "one reference per owner")
	assert.True(t, tr.AcquireDFS("ap1", 100))
	assert.Equal(t, 2, tr.DFSRefCount())

	assert.False(t, tr.ReleaseDFS("ap0", 100), "release on a different channel is refused")
	assert.False(t, tr.ReleaseDFS("ap2", 52))
	assert.Equal(t, 2, tr.DFSRefCount())

	assert.True(t, tr.ReleaseDFS("ap0", 52))
	assert.False(t, tr.ReleaseDFS("ap0", 52))
	assert.Equal(t, 1, tr.DFSRefCount())
}

func TestTracker_CACStatus(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, domain.CACNeverDone, tr.CACStatus())
	tr.SetCACStatus(domain.CACAlreadyDone)
	assert.Equal(t, domain.CACAlreadyDone, tr.CACStatus())
}

func TestTracker_ConcurrentAcquireRelease(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("ap%d", i)
			for j := 0; j < 100; j++ {
				tr.AcquireDFS(owner, 52)
				assert.GreaterOrEqual(t, tr.DFSRefCount(), 0)
				tr.ReleaseDFS(owner, 52)
				tr.OpenSession(ModeSAP)
				tr.CloseSession(ModeSAP)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, tr.DFSRefCount())
	assert.Equal(t, 0, tr.ActiveSessions())
}
