package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// DataPath is the traffic-forwarding layer every peer must be registered
// with before frames can be exchanged.
type DataPath interface {
	// RegisterPeer adds a peer. Fails if the id is already in use or the
	// layer rejects the descriptor.
	RegisterPeer(ctx context.Context, desc domain.PeerDescriptor) error

	// SetPeerState moves a registered peer between pre-auth and authenticated.
	SetPeerState(ctx context.Context, stationID int, state domain.PeerAuthState) error

	// DeregisterPeer removes a peer. Removing an absent id is not an error.
	DeregisterPeer(ctx context.Context, stationID int) error

	// RegisterBroadcast adds the broadcast pseudo-peer of a BSS.
	RegisterBroadcast(ctx context.Context, stationID int, bssid domain.HWAddr) error

	// DeregisterBroadcast removes the broadcast pseudo-peer. Idempotent.
	DeregisterBroadcast(ctx context.Context, stationID int) error
}

// KeyInstaller applies group/WEP key material for a started BSS.
type KeyInstaller interface {
	InstallGroupKey(ctx context.Context, bssid domain.HWAddr, key domain.GroupKey) error
}

// Notifier delivers events to the upper protocol consumers.
type Notifier interface {
	Notify(ctx context.Context, iface string, n domain.Notification)
}

// NetDevice is the kernel-network-stack side of one adapter.
type NetDevice interface {
	StopQueues()
	StartQueues()
	CarrierOff()
	CarrierOn()
	// WaitLinkUp blocks until the stack acknowledges carrier-on or ctx ends.
	WaitLinkUp(ctx context.Context) error
	SetPowerSave(enabled bool)
}

// ChannelPolicy answers regulatory questions about channels.
type ChannelPolicy interface {
	// IsDFS reports whether the channel needs a channel availability check.
	IsDFS(channel int) bool
	CountryCode() string
}

// Timer is a stoppable one-shot timer.
type Timer interface {
	Stop() bool
}

// TimerFactory creates timers; tests swap in a manual clock.
type TimerFactory interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// EventSink routes SME events to the serial queue of the named adapter.
// The returned string is the event's correlation id.
type EventSink interface {
	PostRoam(ctx context.Context, iface string, ev domain.RoamEvent) (string, error)
	PostSap(ctx context.Context, iface string, ev domain.SapEvent) (string, error)
}

// LinkDirectory lists the configured adapters and accepts events for them.
type LinkDirectory interface {
	EventSink
	Links() []domain.LinkStatus
	Link(iface string) (domain.LinkStatus, bool)
}
