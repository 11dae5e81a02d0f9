package domain

// NotificationKind names an upper-layer notification for journals and streams.
type NotificationKind string

const (
	KindConnectResult   NotificationKind = "connect_result"
	KindDisconnected    NotificationKind = "disconnected"
	KindRoamed          NotificationKind = "roamed"
	KindMicFailure      NotificationKind = "mic_failure"
	KindRadarEvent      NotificationKind = "radar_event"
	KindChannelSwitch   NotificationKind = "channel_switch"
	KindStationJoined   NotificationKind = "station_joined"
	KindStationLeft     NotificationKind = "station_left"
	KindStationRejected NotificationKind = "station_rejected"
	KindAPStarted       NotificationKind = "ap_started"
	KindAPStopped       NotificationKind = "ap_stopped"
	KindIbssJoined      NotificationKind = "ibss_joined"
	KindFTResponse      NotificationKind = "ft_response"
	KindPMKIDCandidate  NotificationKind = "pmkid_candidate"
)

// Notification is an event delivered to the supplicant-equivalent consumer.
type Notification interface {
	Kind() NotificationKind
}

type ConnectResult struct {
	Success bool   `json:"success"`
	BSSID   HWAddr `json:"bssid"`
	ReqIEs  []byte `json:"req_ies,omitempty"`
	RspIEs  []byte `json:"rsp_ies,omitempty"`
	Status  int    `json:"status"`
}

// DisconnectReason separates an inactivity timeout from other causes for
// upper-layer diagnostics.
type DisconnectReason string

const (
	DisconnectUnspecified DisconnectReason = "unspecified"
	DisconnectInactivity  DisconnectReason = "inactivity"
	DisconnectPeer        DisconnectReason = "peer"
	DisconnectLocal       DisconnectReason = "local"
)

type Disconnected struct {
	Reason DisconnectReason `json:"reason"`
	Code   ReasonCode       `json:"code"`
}

type Roamed struct {
	BSSID   HWAddr `json:"bssid"`
	Channel int    `json:"channel"`
	ReqIEs  []byte `json:"req_ies,omitempty"`
	RspIEs  []byte `json:"rsp_ies,omitempty"`
}

type MicFailureNotice struct {
	PeerMAC   HWAddr `json:"peer_mac"`
	Multicast bool   `json:"multicast"`
	KeyID     int    `json:"key_id"`
	TSC       []byte `json:"tsc,omitempty"`
}

// RadarKind is the DFS sub-event reported on the radar channel.
type RadarKind string

const (
	RadarCACStart       RadarKind = "cac_start"
	RadarCACEnd         RadarKind = "cac_end"
	RadarCACInterrupted RadarKind = "cac_interrupted"
	RadarDetected       RadarKind = "radar_detected"
)

type RadarEvent struct {
	Type        RadarKind `json:"type"`
	Channel     int       `json:"channel"`
	CountryCode string    `json:"country_code"`
}

type ChannelSwitch struct {
	Channel     int `json:"channel"`
	Width       int `json:"width"`
	CenterFreq0 int `json:"center_freq0"`
	CenterFreq1 int `json:"center_freq1"`
}

type StationJoined struct {
	MAC      HWAddr `json:"mac"`
	AssocIEs []byte `json:"assoc_ies,omitempty"`
	Reassoc  bool   `json:"reassoc,omitempty"`
}

type StationLeft struct {
	MAC    HWAddr     `json:"mac"`
	Reason ReasonCode `json:"reason,omitempty"`
}

type StationRejected struct {
	MAC    HWAddr `json:"mac"`
	Reason string `json:"reason"`
}

type APStarted struct {
	BSSID   HWAddr `json:"bssid"`
	Channel int    `json:"channel"`
}

type APStopped struct {
	Reason string `json:"reason"`
	Status int    `json:"status,omitempty"`
}

type IbssJoined struct {
	BSSID   HWAddr `json:"bssid"`
	Channel int    `json:"channel"`
}

type FTResponseNotice struct {
	IEs []byte `json:"ies,omitempty"`
}

type PMKIDCandidate struct {
	BSSID   HWAddr `json:"bssid"`
	PreAuth bool   `json:"preauth"`
}

func (ConnectResult) Kind() NotificationKind    { return KindConnectResult }
func (Disconnected) Kind() NotificationKind     { return KindDisconnected }
func (Roamed) Kind() NotificationKind           { return KindRoamed }
func (MicFailureNotice) Kind() NotificationKind { return KindMicFailure }
func (RadarEvent) Kind() NotificationKind       { return KindRadarEvent }
func (ChannelSwitch) Kind() NotificationKind    { return KindChannelSwitch }
func (StationJoined) Kind() NotificationKind    { return KindStationJoined }
func (StationLeft) Kind() NotificationKind      { return KindStationLeft }
func (StationRejected) Kind() NotificationKind  { return KindStationRejected }
func (APStarted) Kind() NotificationKind        { return KindAPStarted }
func (APStopped) Kind() NotificationKind        { return KindAPStopped }
func (IbssJoined) Kind() NotificationKind       { return KindIbssJoined }
func (FTResponseNotice) Kind() NotificationKind { return KindFTResponse }
func (PMKIDCandidate) Kind() NotificationKind   { return KindPMKIDCandidate }

// Envelope tags a notification with the adapter it came from.
type Envelope struct {
	Iface        string           `json:"iface"`
	Kind         NotificationKind `json:"kind"`
	Notification Notification     `json:"payload"`
}
