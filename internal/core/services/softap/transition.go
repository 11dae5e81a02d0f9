// Package softap implements the access-point link state machine: BSS start
// and stop, per-station registration, inactivity shutdown and DFS/CAC
// bookkeeping.
package softap

import (
	"errors"
	"fmt"
	"time"

	"github.com/lcalzada-xor/wlcoord/internal/adapters/ie"
	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/peers"
)

// Errors
var (
	ErrUnexpectedEvent = errors.New("event not expected in current state")
	ErrDropped         = errors.New("event dropped")
)

// Stop reasons reported in APStopped.
const (
	ReasonStopBss       = "stop_bss"
	ReasonMacTriggered  = "mac_triggered"
	ReasonDisconnectAll = "disconnect_all"
	ReasonInactivity    = "inactivity"
	ReasonStartFailed   = "start_failed"
)

// State is everything the AP machine owns for one BSS.
type State struct {
	Info  domain.ApBssInfo
	Peers peers.Registry
}

// Env carries the inputs Transition needs besides state and event.
type Env struct {
	Now time.Time
	// IsDFS reports whether a channel needs a channel availability check.
	IsDFS   func(channel int) bool
	Country string
	// CAC is the process-wide CAC status when the event is handled.
	CAC domain.CACStatus
}

func (e Env) isDFS(ch int) bool {
	return e.IsDFS != nil && e.IsDFS(ch)
}

// Transition computes the next state and its effects without performing
// them. ErrUnexpectedEvent and ErrDropped leave the state untouched; any other
// error is fatal for the adapter.
func Transition(s State, ev domain.SapEvent, env Env) (State, []Effect, error) {
	switch e := ev.(type) {
	case domain.StartBssComplete:
		return startBss(s, e, env)
	case domain.StopBssComplete:
		return teardown(s, ev, ReasonStopBss, e.Status, false)
	case domain.MacTriggeredStop:
		reason := e.Reason
		if reason == "" {
			reason = ReasonMacTriggered
		}
		return teardown(s, ev, reason, 0, false)
	case domain.DisconnectAllPeers:
		return teardown(s, ev, ReasonDisconnectAll, 0, false)
	case domain.InactivityTimeout:
		if s.Info.State != domain.BssStart || !s.Info.TimerRunning || s.Peers.CountStations() > 0 {
			return s, nil, unexpected(s, ev)
		}
		s.Info.TimerRunning = false
		return teardown(s, ev, ReasonInactivity, 0, false)
	case domain.StationAssocOrReassoc:
		return stationAssoc(s, e, env)
	case domain.StationSetKeyComplete:
		return stationSetKey(s, e)
	case domain.StationDisassoc:
		return stationDisassoc(s, e)
	case domain.StationMicFailure:
		return s, []Effect{Notify{domain.MicFailureNotice{
			PeerMAC: e.PeerMAC, Multicast: e.Multicast, KeyID: e.KeyID,
		}}}, nil
	case domain.CacStart:
		s.Info.DFSBlockTx = true
		return s, radar(s, env, domain.RadarCACStart, e.Channel, domain.CACInProgress), nil
	case domain.CacEnd:
		s.Info.DFSBlockTx = false
		return s, radar(s, env, domain.RadarCACEnd, e.Channel, domain.CACAlreadyDone), nil
	case domain.CacInterrupted:
		return s, radar(s, env, domain.RadarCACInterrupted, e.Channel, domain.CACNeverDone), nil
	case domain.RadarDetect:
		s.Info.DFSBlockTx = true
		ch := 0
		if len(e.Channels) > 0 {
			ch = e.Channels[0]
		}
		return s, radar(s, env, domain.RadarDetected, ch, domain.CACNeverDone), nil
	case domain.ChannelChange:
		return channelChange(s, e, env)
	case domain.UnknownStaJoin:
		return s, []Effect{Notify{domain.StationRejected{MAC: e.PeerMAC, Reason: "unknown station"}}}, nil
	case domain.MaxAssocExceeded:
		return s, []Effect{Notify{domain.StationRejected{MAC: e.PeerMAC, Reason: "max associations exceeded"}}}, nil
	case domain.GroupKeyRequest:
		if s.Info.State == domain.BssStart {
			return s, []Effect{InstallKey{BSSID: s.Info.BSSID, Key: e.Key}}, nil
		}
		s.Info.PendingKeys = append(append([]domain.GroupKey(nil), s.Info.PendingKeys...), e.Key)
		return s, nil, nil
	default:
		return s, nil, fmt.Errorf("%w: unknown event %T", ErrUnexpectedEvent, ev)
	}
}

func unexpected(s State, ev domain.SapEvent) error {
	return fmt.Errorf("%w: %s in %s", ErrUnexpectedEvent, ev.SapKind(), s.Info.State)
}

func radar(s State, env Env, kind domain.RadarKind, ch int, cac domain.CACStatus) []Effect {
	if ch == 0 {
		ch = s.Info.Channel
	}
	return []Effect{
		SetCAC{Status: cac},
		Notify{domain.RadarEvent{Type: kind, Channel: ch, CountryCode: env.Country}},
	}
}

func startBss(s State, e domain.StartBssComplete, env Env) (State, []Effect, error) {
	if s.Info.State == domain.BssStart {
		if e.Success {
			return s, nil, unexpected(s, e)
		}
		return teardown(s, e, ReasonStartFailed, e.Status, true)
	}
	if !e.Success {
		return teardown(s, e, ReasonStartFailed, e.Status, true)
	}

	info := s.Info
	info.State = domain.BssStart
	info.BSSID = e.BSSID
	info.Channel = e.Channel
	info.Width = e.Width
	info.CenterFreq0 = e.CenterFreq0
	info.CenterFreq1 = e.CenterFreq1
	info.BroadcastID = e.BroadcastID
	info.Since = env.Now

	reg := s.Peers
	reg.Reset()
	if err := reg.Add(domain.PeerRecord{
		StationID: e.BroadcastID,
		MAC:       domain.BroadcastAddr,
		Broadcast: true,
		AuthState: domain.PeerAuthenticated,
		Since:     env.Now,
	}); err != nil {
		// Never leave the BSS half started.
		return teardown(s, e, ReasonStartFailed, e.Status, true)
	}

	effects := []Effect{RegisterBroadcast{StationID: e.BroadcastID, BSSID: e.BSSID}}
	for _, k := range info.PendingKeys {
		effects = append(effects, InstallKey{BSSID: e.BSSID, Key: k})
	}
	info.PendingKeys = nil

	if info.InactivityTimeout > 0 {
		info.TimerRunning = true
		effects = append(effects, StartTimer{After: info.InactivityTimeout})
	}
	if env.isDFS(e.Channel) {
		info.DFSHeldChannel = e.Channel
		info.DFSBlockTx = env.CAC != domain.CACAlreadyDone
		effects = append(effects, AcquireDFS{Channel: e.Channel})
	}
	effects = append(effects,
		OpenSession{Mode: sessionMode},
		CarrierOn{},
		StartQueues{},
		Notify{domain.APStarted{BSSID: e.BSSID, Channel: e.Channel}},
	)

	return State{Info: info, Peers: reg}, effects, nil
}

// checkBroadcast verifies the registry holds at most one broadcast record and
// that it is the one the BSS was started with.
func checkBroadcast(s State) error {
	var found []int
	for _, rec := range s.Peers.Used() {
		if rec.Broadcast {
			found = append(found, rec.StationID)
		}
	}
	switch {
	case len(found) > 1:
		return fmt.Errorf("%w: %d broadcast records", peers.ErrInvariant, len(found))
	case len(found) == 1 && found[0] != s.Info.BroadcastID:
		return fmt.Errorf("%w: broadcast record at %d, BSS uses %d", peers.ErrInvariant, found[0], s.Info.BroadcastID)
	}
	return nil
}

// teardown releases everything the BSS holds and returns to BSS_STOP. Unless
// force is set, a BSS that is already stopped ignores the request.
func teardown(s State, ev domain.SapEvent, reason string, status int, force bool) (State, []Effect, error) {
	wasStarted := s.Info.State == domain.BssStart
	if !wasStarted && !force && len(s.Peers.Used()) == 0 {
		return s, nil, unexpected(s, ev)
	}
	if err := checkBroadcast(s); err != nil {
		return s, nil, err
	}

	effects := []Effect{StopQueues{}, CarrierOff{}}
	for _, rec := range s.Peers.Stations() {
		effects = append(effects, DeregisterPeer{StationID: rec.StationID})
	}
	for _, rec := range s.Peers.Used() {
		if rec.Broadcast {
			effects = append(effects, DeregisterBroadcast{StationID: rec.StationID})
		}
	}
	if s.Info.TimerRunning {
		effects = append(effects, StopTimer{})
	}
	if s.Info.DFSHeldChannel != 0 {
		effects = append(effects, ReleaseDFS{Channel: s.Info.DFSHeldChannel})
	}
	if wasStarted {
		effects = append(effects, CloseSession{Mode: sessionMode})
	}
	effects = append(effects, Notify{domain.APStopped{Reason: reason, Status: status}})

	reg := s.Peers
	reg.Reset()
	info := domain.ApBssInfo{
		State:             domain.BssStop,
		Privacy:           s.Info.Privacy,
		InactivityTimeout: s.Info.InactivityTimeout,
	}
	if !wasStarted {
		// Keys queued for a start that failed stay queued for the retry.
		info.PendingKeys = s.Info.PendingKeys
	}
	return State{Info: info, Peers: reg}, effects, nil
}

func peerAuthType(info domain.ApBssInfo, assocIEs []byte) domain.AuthType {
	if len(assocIEs) == 0 {
		return info.Privacy.AuthType
	}
	auth, _, _, err := ie.NegotiatedSecurity(assocIEs)
	if err != nil {
		return domain.AuthUnknown
	}
	return auth
}

func stationAssoc(s State, e domain.StationAssocOrReassoc, env Env) (State, []Effect, error) {
	if s.Info.State != domain.BssStart {
		return s, nil, unexpected(s, e)
	}

	next := s
	var effects []Effect

	if old, ok := next.Peers.Get(e.StationID); ok {
		if old.Broadcast {
			return s, nil, fmt.Errorf("%w: station id %d is the broadcast peer", ErrDropped, e.StationID)
		}
		next.Peers.Remove(e.StationID)
		effects = append(effects, DeregisterPeer{StationID: e.StationID})
	} else if old, ok := next.Peers.FindByMAC(e.PeerMAC); ok {
		// Same station back under a new id.
		next.Peers.Remove(old.StationID)
		effects = append(effects, DeregisterPeer{StationID: old.StationID})
	}

	state := domain.PeerAuthenticated
	if s.Info.Privacy.RequiresPreAuth() {
		state = domain.PeerPreAuth
	}
	err := next.Peers.Add(domain.PeerRecord{
		StationID: e.StationID,
		MAC:       e.PeerMAC,
		QoS:       e.QoS,
		AuthState: state,
		AuthType:  peerAuthType(s.Info, e.AssocIEs),
		Nss:       e.Nss,
		RateFlags: e.RateFlags,
		Since:     env.Now,
	})
	if err != nil {
		reason := "invalid station id"
		if errors.Is(err, peers.ErrTableFull) {
			reason = "peer table full"
		}
		return s, []Effect{Notify{domain.StationRejected{MAC: e.PeerMAC, Reason: reason}}}, nil
	}

	effects = append(effects, RegisterPeer{Desc: domain.PeerDescriptor{
		StationID: e.StationID,
		MAC:       e.PeerMAC,
		Self:      s.Info.BSSID,
		QoS:       e.QoS,
		State:     state,
	}})
	if next.Info.TimerRunning {
		next.Info.TimerRunning = false
		effects = append(effects, StopTimer{})
	}
	effects = append(effects, Notify{domain.StationJoined{MAC: e.PeerMAC, AssocIEs: e.AssocIEs, Reassoc: e.Reassoc}})
	return next, effects, nil
}

func stationSetKey(s State, e domain.StationSetKeyComplete) (State, []Effect, error) {
	rec, ok := s.Peers.Get(e.StationID)
	if !ok || rec.Broadcast {
		return s, nil, unexpected(s, e)
	}
	if !e.Success {
		return s, nil, fmt.Errorf("%w: key installation failed for station %d", ErrDropped, e.StationID)
	}
	if rec.AuthState == domain.PeerAuthenticated {
		return s, nil, nil
	}
	if err := s.Peers.SetAuthState(e.StationID, domain.PeerAuthenticated); err != nil {
		return s, nil, fmt.Errorf("%w: %w", ErrDropped, err)
	}
	return s, []Effect{SetPeerState{StationID: e.StationID, State: domain.PeerAuthenticated}}, nil
}

func stationDisassoc(s State, e domain.StationDisassoc) (State, []Effect, error) {
	rec, ok := s.Peers.Get(e.StationID)
	if !ok || rec.Broadcast {
		rec, ok = s.Peers.FindByMAC(e.PeerMAC)
	}
	if !ok {
		return s, nil, unexpected(s, e)
	}

	s.Peers.Remove(rec.StationID)
	effects := []Effect{DeregisterPeer{StationID: rec.StationID}}
	if s.Info.State == domain.BssStart && s.Peers.CountStations() == 0 &&
		s.Info.InactivityTimeout > 0 && !s.Info.TimerRunning {
		s.Info.TimerRunning = true
		effects = append(effects, StartTimer{After: s.Info.InactivityTimeout})
	}
	effects = append(effects, Notify{domain.StationLeft{MAC: rec.MAC, Reason: e.Reason}})
	return s, effects, nil
}

func channelChange(s State, e domain.ChannelChange, env Env) (State, []Effect, error) {
	if s.Info.State != domain.BssStart {
		return s, nil, unexpected(s, e)
	}

	var effects []Effect
	info := s.Info
	if info.DFSHeldChannel != 0 && info.DFSHeldChannel != e.Channel {
		effects = append(effects, ReleaseDFS{Channel: info.DFSHeldChannel})
		info.DFSHeldChannel = 0
	}
	if env.isDFS(e.Channel) {
		if info.DFSHeldChannel == 0 {
			info.DFSHeldChannel = e.Channel
			effects = append(effects, AcquireDFS{Channel: e.Channel})
		}
		info.DFSBlockTx = env.CAC != domain.CACAlreadyDone
	} else {
		info.DFSBlockTx = false
	}

	info.Channel = e.Channel
	info.Width = e.Width
	info.CenterFreq0 = e.CenterFreq0
	info.CenterFreq1 = e.CenterFreq1

	effects = append(effects, Notify{domain.ChannelSwitch{
		Channel: e.Channel, Width: e.Width, CenterFreq0: e.CenterFreq0, CenterFreq1: e.CenterFreq1,
	}})
	s.Info = info
	return s, effects, nil
}
