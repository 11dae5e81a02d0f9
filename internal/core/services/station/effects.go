package station

import (
	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/concurrency"
)

// Effect is a side effect requested by Transition. The Machine executes
// effects in the order they are returned.
type Effect interface {
	effect()
}

type (
	StopQueues  struct{}
	StartQueues struct{}
	CarrierOff  struct{}
	CarrierOn   struct{}
	// WaitLinkUp waits, bounded, for the stack to acknowledge carrier-on.
	WaitLinkUp struct{}

	RegisterPeer struct {
		Desc domain.PeerDescriptor
	}
	SetPeerState struct {
		StationID int
		State     domain.PeerAuthState
	}
	DeregisterPeer struct {
		StationID int
	}

	OpenSession struct {
		Mode concurrency.Mode
	}
	CloseSession struct {
		Mode concurrency.Mode
	}
	// ApplyPowerSave disables power save while other personas are active.
	ApplyPowerSave   struct{}
	RestorePowerSave struct{}

	Notify struct {
		Notification domain.Notification
	}
)

func (StopQueues) effect()       {}
func (StartQueues) effect()      {}
func (CarrierOff) effect()       {}
func (CarrierOn) effect()        {}
func (WaitLinkUp) effect()       {}
func (RegisterPeer) effect()     {}
func (SetPeerState) effect()     {}
func (DeregisterPeer) effect()   {}
func (OpenSession) effect()      {}
func (CloseSession) effect()     {}
func (ApplyPowerSave) effect()   {}
func (RestorePowerSave) effect() {}
func (Notify) effect()           {}
