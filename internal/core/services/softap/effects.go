package softap

import (
	"time"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/concurrency"
)

// sessionMode is the persona an AP instance counts as.
const sessionMode = concurrency.ModeSAP

// Effect is a side effect requested by Transition, executed in order by the
// Machine.
type Effect interface {
	effect()
}

type (
	StopQueues  struct{}
	StartQueues struct{}
	CarrierOff  struct{}
	CarrierOn   struct{}

	RegisterBroadcast struct {
		StationID int
		BSSID     domain.HWAddr
	}
	DeregisterBroadcast struct {
		StationID int
	}
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

	InstallKey struct {
		BSSID domain.HWAddr
		Key   domain.GroupKey
	}

	StartTimer struct {
		After time.Duration
	}
	StopTimer struct{}

	AcquireDFS struct {
		Channel int
	}
	ReleaseDFS struct {
		Channel int
	}
	SetCAC struct {
		Status domain.CACStatus
	}

	OpenSession struct {
		Mode concurrency.Mode
	}
	CloseSession struct {
		Mode concurrency.Mode
	}

	Notify struct {
		Notification domain.Notification
	}
)

func (StopQueues) effect()          {}
func (StartQueues) effect()         {}
func (CarrierOff) effect()          {}
func (CarrierOn) effect()           {}
func (RegisterBroadcast) effect()   {}
func (DeregisterBroadcast) effect() {}
func (RegisterPeer) effect()        {}
func (SetPeerState) effect()        {}
func (DeregisterPeer) effect()      {}
func (InstallKey) effect()          {}
func (StartTimer) effect()          {}
func (StopTimer) effect()           {}
func (AcquireDFS) effect()          {}
func (ReleaseDFS) effect()          {}
func (SetCAC) effect()              {}
func (OpenSession) effect()         {}
func (CloseSession) effect()        {}
func (Notify) effect()              {}
