package domain

// RoamEvent is an SME roam-callback event consumed by the station link state
// machine. Each kind carries only the fields meaningful for it.
type RoamEvent interface {
	RoamKind() string
}

// SapEvent is an SME SAP-callback event consumed by the AP link state machine.
type SapEvent interface {
	SapKind() string
}

// ReasonCode is an IEEE 802.11 reason code.
type ReasonCode uint16

const (
	ReasonUnspecified ReasonCode = 1
	ReasonInactivity  ReasonCode = 4
)

// ---- station (roam callback) ----

type AssociationComplete struct {
	Success         bool       `json:"success"`
	Reassoc         bool       `json:"reassoc"`
	BSSID           HWAddr     `json:"bssid"`
	SSID            string     `json:"ssid"`
	Channel         int        `json:"channel"`
	AuthType        AuthType   `json:"auth_type"`
	UnicastCipher   CipherType `json:"unicast_cipher"`
	MulticastCipher CipherType `json:"multicast_cipher"`
	StationID       int        `json:"station_id"`
	QoS             bool       `json:"qos"`
	ReqIEs          []byte     `json:"req_ies,omitempty"`
	RspIEs          []byte     `json:"rsp_ies,omitempty"`
	Status          int        `json:"status"`
}

// SetKeyComplete reports a key installation. CompletesAuth is set when the
// installed key finishes authentication without a further upper-layer
// exchange (the group key after a 4-way handshake).
type SetKeyComplete struct {
	Success       bool   `json:"success"`
	PeerMAC       HWAddr `json:"peer_mac"`
	CompletesAuth bool   `json:"completes_auth"`
}

type MicFailure struct {
	PeerMAC   HWAddr `json:"peer_mac"`
	Multicast bool   `json:"multicast"`
	KeyID     int    `json:"key_id"`
	TSC       []byte `json:"tsc,omitempty"`
}

type Disassociated struct {
	Reason ReasonCode `json:"reason"`
}

type LostLink struct {
	Reason ReasonCode `json:"reason"`
}

type IbssLeave struct{}

// IbssIndicationKind distinguishes forming a new IBSS from joining one.
type IbssIndicationKind string

const (
	IbssStarted     IbssIndicationKind = "started"
	IbssJoinSuccess IbssIndicationKind = "join_success"
)

type IbssIndication struct {
	Kind     IbssIndicationKind `json:"kind"`
	BSSID    HWAddr             `json:"bssid"`
	SSID     string             `json:"ssid"`
	Channel  int                `json:"channel"`
	AuthType AuthType           `json:"auth_type"`
}

// IbssPeerJoined is IbssConnectStatusUpdate(newPeer).
type IbssPeerJoined struct {
	StationID int    `json:"station_id"`
	PeerMAC   HWAddr `json:"peer_mac"`
	QoS       bool   `json:"qos"`
}

// IbssPeerDeparted is IbssConnectStatusUpdate(peerDeparted).
type IbssPeerDeparted struct {
	StationID int    `json:"station_id"`
	PeerMAC   HWAddr `json:"peer_mac"`
}

// IbssInactive is IbssConnectStatusUpdate(inactive).
type IbssInactive struct{}

type FtStart struct{}

type ShouldRoam struct{}

type FtResponse struct {
	IEs []byte `json:"ies,omitempty"`
}

type PmkNotify struct {
	BSSID   HWAddr `json:"bssid"`
	PreAuth bool   `json:"preauth"`
}

func (AssociationComplete) RoamKind() string { return "association_complete" }
func (SetKeyComplete) RoamKind() string      { return "set_key_complete" }
func (MicFailure) RoamKind() string          { return "mic_failure" }
func (Disassociated) RoamKind() string       { return "disassociated" }
func (LostLink) RoamKind() string            { return "lost_link" }
func (IbssLeave) RoamKind() string           { return "ibss_leave" }
func (IbssIndication) RoamKind() string      { return "ibss_indication" }
func (IbssPeerJoined) RoamKind() string      { return "ibss_peer_joined" }
func (IbssPeerDeparted) RoamKind() string    { return "ibss_peer_departed" }
func (IbssInactive) RoamKind() string        { return "ibss_inactive" }
func (FtStart) RoamKind() string             { return "ft_start" }
func (ShouldRoam) RoamKind() string          { return "should_roam" }
func (FtResponse) RoamKind() string          { return "ft_response" }
func (PmkNotify) RoamKind() string           { return "pmk_notify" }

// ---- access point (SAP callback) ----

type StartBssComplete struct {
	Success     bool   `json:"success"`
	BSSID       HWAddr `json:"bssid"`
	Channel     int    `json:"channel"`
	Width       int    `json:"width"`
	CenterFreq0 int    `json:"center_freq0"`
	CenterFreq1 int    `json:"center_freq1"`
	BroadcastID int    `json:"broadcast_id"`
	Status      int    `json:"status"`
}

type StopBssComplete struct {
	Status int `json:"status"`
}

type MacTriggeredStop struct {
	Reason string `json:"reason"`
}

type DisconnectAllPeers struct{}

type StationAssocOrReassoc struct {
	StationID int    `json:"station_id"`
	PeerMAC   HWAddr `json:"peer_mac"`
	QoS       bool   `json:"qos"`
	Reassoc   bool   `json:"reassoc"`
	AssocIEs  []byte `json:"assoc_ies,omitempty"`
	Nss       int    `json:"nss"`
	RateFlags uint32 `json:"rate_flags"`
}

type StationSetKeyComplete struct {
	StationID int  `json:"station_id"`
	Success   bool `json:"success"`
}

type StationDisassoc struct {
	StationID int        `json:"station_id"`
	PeerMAC   HWAddr     `json:"peer_mac"`
	Reason    ReasonCode `json:"reason"`
}

type StationMicFailure struct {
	PeerMAC   HWAddr `json:"peer_mac"`
	Multicast bool   `json:"multicast"`
	KeyID     int    `json:"key_id"`
}

type CacStart struct {
	Channel int `json:"channel"`
}

type CacEnd struct {
	Channel int `json:"channel"`
}

type CacInterrupted struct {
	Channel int `json:"channel"`
}

type RadarDetect struct {
	Channels []int `json:"channels"`
}

type ChannelChange struct {
	Channel     int `json:"channel"`
	Width       int `json:"width"`
	CenterFreq0 int `json:"center_freq0"`
	CenterFreq1 int `json:"center_freq1"`
}

type UnknownStaJoin struct {
	PeerMAC HWAddr `json:"peer_mac"`
}

type MaxAssocExceeded struct {
	PeerMAC HWAddr `json:"peer_mac"`
}

// InactivityTimeout is posted by the BSS inactivity timer.
type InactivityTimeout struct{}

// GroupKeyRequest carries group/WEP key material from the upper layer. It is
// delivered through the same serial queue as SME events.
type GroupKeyRequest struct {
	Key GroupKey `json:"key"`
}

func (StartBssComplete) SapKind() string      { return "start_bss_complete" }
func (StopBssComplete) SapKind() string       { return "stop_bss_complete" }
func (MacTriggeredStop) SapKind() string      { return "mac_triggered_stop" }
func (DisconnectAllPeers) SapKind() string    { return "disconnect_all_peers" }
func (StationAssocOrReassoc) SapKind() string { return "station_assoc" }
func (StationSetKeyComplete) SapKind() string { return "station_set_key_complete" }
func (StationDisassoc) SapKind() string       { return "station_disassoc" }
func (StationMicFailure) SapKind() string     { return "station_mic_failure" }
func (CacStart) SapKind() string              { return "cac_start" }
func (CacEnd) SapKind() string                { return "cac_end" }
func (CacInterrupted) SapKind() string        { return "cac_interrupted" }
func (RadarDetect) SapKind() string           { return "radar_detect" }
func (ChannelChange) SapKind() string         { return "channel_change" }
func (UnknownStaJoin) SapKind() string        { return "unknown_sta_join" }
func (MaxAssocExceeded) SapKind() string      { return "max_assoc_exceeded" }
func (InactivityTimeout) SapKind() string     { return "inactivity_timeout" }
func (GroupKeyRequest) SapKind() string       { return "group_key_request" }
