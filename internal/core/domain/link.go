package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// MaxIBSSPeers bounds the peer slots of an IBSS connection.
	MaxIBSSPeers = 32
	// MaxStations is the size of the station-id space shared with the data path.
	MaxStations = 41
)

// Role is the persona an adapter runs as.
type Role string

const (
	RoleStation Role = "station"
	RoleAP      Role = "ap"
)

// ConnState is the station-side connection state.
type ConnState int

const (
	NotConnected ConnState = iota
	Associated
	IbssDisconnected
	IbssConnected
)

func (s ConnState) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case Associated:
		return "Associated"
	case IbssDisconnected:
		return "IbssDisconnected"
	case IbssConnected:
		return "IbssConnected"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

func (s ConnState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// BssState is the AP-side BSS state.
type BssState int

const (
	BssStop BssState = iota
	BssStart
)

func (s BssState) String() string {
	if s == BssStart {
		return "BSS_START"
	}
	return "BSS_STOP"
}

func (s BssState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// PeerAuthState is the forwarding state of a registered peer.
type PeerAuthState int

const (
	// PeerPreAuth forwards only EAPOL until keys are in place.
	PeerPreAuth PeerAuthState = iota
	PeerAuthenticated
)

func (s PeerAuthState) String() string {
	if s == PeerAuthenticated {
		return "authenticated"
	}
	return "preauth"
}

func (s PeerAuthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// PeerSlot is one IBSS peer entry of a station connection.
type PeerSlot struct {
	StationID int    `json:"station_id"`
	MAC       HWAddr `json:"mac"`
	Used      bool   `json:"used"`
}

// ConnectionInfo is the station-side view of the current link. It is zeroed
// on disconnect.
type ConnectionInfo struct {
	State           ConnState  `json:"state"`
	BSSID           HWAddr     `json:"bssid"`
	SSID            string     `json:"ssid"`
	Channel         int        `json:"channel"`
	AuthType        AuthType   `json:"auth_type"`
	UnicastCipher   CipherType `json:"unicast_cipher"`
	MulticastCipher CipherType `json:"multicast_cipher"`
	// StationID is the data-path id of the AP peer while Associated.
	StationID int  `json:"station_id"`
	QoS       bool `json:"qos"`
	// Authenticated mirrors the data-path key state. Only ever true while
	// Associated or IbssConnected.
	Authenticated bool                   `json:"authenticated"`
	IBSSPeers     [MaxIBSSPeers]PeerSlot `json:"-"`
	Since         time.Time              `json:"since,omitempty"`
}

// ActiveIBSSPeers returns the occupied IBSS slots in slot order.
func (c *ConnectionInfo) ActiveIBSSPeers() []PeerSlot {
	var out []PeerSlot
	for _, s := range c.IBSSPeers {
		if s.Used {
			out = append(out, s)
		}
	}
	return out
}

// Connected reports whether the state carries an authenticated-capable link.
func (c *ConnectionInfo) Connected() bool {
	return c.State == Associated || c.State == IbssConnected
}

// PeerRecord is one entry of an AP peer arena, indexed by StationID.
type PeerRecord struct {
	StationID int           `json:"station_id"`
	MAC       HWAddr        `json:"mac"`
	Used      bool          `json:"used"`
	QoS       bool          `json:"qos"`
	Broadcast bool          `json:"broadcast,omitempty"`
	AuthState PeerAuthState `json:"auth_state"`
	AuthType  AuthType      `json:"auth_type"`
	Nss       int           `json:"nss,omitempty"`
	RateFlags uint32        `json:"rate_flags,omitempty"`
	Since     time.Time     `json:"since,omitempty"`
}

// PeerDescriptor is what the data path needs to forward traffic for a peer.
type PeerDescriptor struct {
	StationID int
	MAC       HWAddr
	// Self is the local/BSSID address the peer is attached to.
	Self  HWAddr
	QoS   bool
	State PeerAuthState
}

// Privacy is the negotiated security configuration of a BSS.
type Privacy struct {
	AuthType        AuthType   `json:"auth_type" toml:"auth_type"`
	UnicastCipher   CipherType `json:"unicast_cipher" toml:"unicast_cipher"`
	MulticastCipher CipherType `json:"multicast_cipher" toml:"multicast_cipher"`
	WPSActive       bool       `json:"wps_active" toml:"wps_active"`
}

// RequiresPreAuth reports whether a newly associated peer must start in the
// pre-authenticated forwarding state.
func (p Privacy) RequiresPreAuth() bool {
	if p.WPSActive {
		return true
	}
	return p.AuthType.RequiresUpperLayerAuth()
}

// CACStatus is the process-wide channel availability check progress.
type CACStatus int

const (
	CACNeverDone CACStatus = iota
	CACInProgress
	CACAlreadyDone
)

func (s CACStatus) String() string {
	switch s {
	case CACInProgress:
		return "in-progress"
	case CACAlreadyDone:
		return "already-done"
	default:
		return "never-done"
	}
}

func (s CACStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ApBssInfo is the AP-side view of one BSS instance.
type ApBssInfo struct {
	State       BssState `json:"state"`
	BSSID       HWAddr   `json:"bssid"`
	Channel     int      `json:"channel"`
	Width       int      `json:"width_mhz"`
	CenterFreq0 int      `json:"center_freq0,omitempty"`
	CenterFreq1 int      `json:"center_freq1,omitempty"`
	Privacy     Privacy  `json:"privacy"`
	BroadcastID int      `json:"broadcast_id"`
	// PendingKeys are applied once the BSS actually starts.
	PendingKeys       []GroupKey    `json:"-"`
	InactivityTimeout time.Duration `json:"inactivity_timeout"`
	TimerRunning      bool          `json:"timer_running"`
	DFSBlockTx        bool          `json:"dfs_cac_block_tx"`
	// DFSHeldChannel is the channel this BSS holds a DFS reference for, 0 if none.
	DFSHeldChannel int       `json:"dfs_held_channel,omitempty"`
	Since          time.Time `json:"since,omitempty"`
}

// LinkStatus is a read-only view of one adapter for the API and health checks.
type LinkStatus struct {
	Iface  string `json:"iface"`
	Role   Role   `json:"role"`
	Linked bool   `json:"linked"`
	// Stopped is set once the adapter's event queue has halted.
	Stopped bool   `json:"stopped"`
	Error   string `json:"error,omitempty"`

	Station   *ConnectionInfo `json:"station,omitempty"`
	IBSSPeers []PeerSlot      `json:"ibss_peers,omitempty"`
	AP        *ApBssInfo      `json:"ap,omitempty"`
	Peers     []PeerRecord    `json:"peers,omitempty"`
}
