// Package station implements the client-side link state machine: it turns SME
// roam callbacks into connection state, data-path registrations, carrier and
// queue control, and upper-layer notifications.
package station

import (
	"errors"
	"fmt"
	"time"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/concurrency"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/peers"
)

// Errors
var (
	// ErrUnexpectedEvent means the event has no meaning in the current state
	// and was ignored.
	ErrUnexpectedEvent = errors.New("event not expected in current state")
	// ErrDropped means the event was valid but could not be applied.
	ErrDropped = errors.New("event dropped")
)

// State is everything the station machine owns for one adapter.
type State struct {
	Info domain.ConnectionInfo `json:"connection"`
	// AuthPending is set while the AP peer waits for the key exchange.
	AuthPending bool `json:"auth_pending"`
	// RoamPending is set between ShouldRoam and the next association result
	// or teardown. The AP peer is already deregistered.
	RoamPending bool `json:"roam_pending"`
	// FTPending is set between FtStart and the reassociation it leads to.
	FTPending bool `json:"ft_pending"`
}

// Env carries the inputs Transition needs besides state and event.
type Env struct {
	// Self is the adapter's own address.
	Self domain.HWAddr
	Now  time.Time
}

// Transition computes the next state and the effects that realise it. It has
// no side effects. Errors wrapping ErrUnexpectedEvent or ErrDropped leave the
// state untouched; an error wrapping peers.ErrInvariant is fatal.
func Transition(s State, ev domain.RoamEvent, env Env) (State, []Effect, error) {
	switch e := ev.(type) {
	case domain.AssociationComplete:
		return associationComplete(s, e, env)
	case domain.SetKeyComplete:
		return setKeyComplete(s, e)
	case domain.MicFailure:
		return s, []Effect{Notify{domain.MicFailureNotice{
			PeerMAC: e.PeerMAC, Multicast: e.Multicast, KeyID: e.KeyID, TSC: e.TSC,
		}}}, nil
	case domain.Disassociated:
		return disconnect(s, disassocReason(e.Reason), e.Reason)
	case domain.LostLink:
		return disconnect(s, lostLinkReason(e.Reason), e.Reason)
	case domain.IbssLeave:
		if !isIBSS(s.Info.State) {
			return s, nil, unexpected(s, ev)
		}
		return disconnect(s, domain.DisconnectLocal, 0)
	case domain.IbssInactive:
		if !isIBSS(s.Info.State) {
			return s, nil, unexpected(s, ev)
		}
		return disconnect(s, domain.DisconnectInactivity, domain.ReasonInactivity)
	case domain.IbssIndication:
		return ibssIndication(s, e, env)
	case domain.IbssPeerJoined:
		return ibssPeerJoined(s, e, env)
	case domain.IbssPeerDeparted:
		return ibssPeerDeparted(s, e)
	case domain.FtStart:
		if s.Info.State != domain.Associated {
			return s, nil, unexpected(s, ev)
		}
		s.FTPending = true
		return s, []Effect{StopQueues{}}, nil
	case domain.ShouldRoam:
		return shouldRoam(s, ev)
	case domain.FtResponse:
		return s, []Effect{Notify{domain.FTResponseNotice{IEs: e.IEs}}}, nil
	case domain.PmkNotify:
		return s, []Effect{Notify{domain.PMKIDCandidate{BSSID: e.BSSID, PreAuth: e.PreAuth}}}, nil
	default:
		return s, nil, fmt.Errorf("%w: unknown event %T", ErrUnexpectedEvent, ev)
	}
}

func unexpected(s State, ev domain.RoamEvent) error {
	return fmt.Errorf("%w: %s in %s", ErrUnexpectedEvent, ev.RoamKind(), s.Info.State)
}

func isIBSS(st domain.ConnState) bool {
	return st == domain.IbssDisconnected || st == domain.IbssConnected
}

func peerState(auth domain.AuthType) domain.PeerAuthState {
	if auth.RequiresUpperLayerAuth() {
		return domain.PeerPreAuth
	}
	return domain.PeerAuthenticated
}

func disassocReason(code domain.ReasonCode) domain.DisconnectReason {
	switch code {
	case domain.ReasonInactivity:
		return domain.DisconnectInactivity
	case 0, domain.ReasonUnspecified:
		return domain.DisconnectUnspecified
	default:
		return domain.DisconnectPeer
	}
}

// lostLinkReason reports a beacon-loss style link drop as inactivity unless
// the SME supplied a reason code.
func lostLinkReason(code domain.ReasonCode) domain.DisconnectReason {
	if code == 0 {
		return domain.DisconnectInactivity
	}
	return disassocReason(code)
}

func associationComplete(s State, e domain.AssociationComplete, env Env) (State, []Effect, error) {
	prev := s.Info.State
	if isIBSS(prev) {
		return s, nil, unexpected(s, e)
	}

	if !e.Success {
		var effects []Effect
		if prev == domain.Associated {
			var err error
			effects, err = teardownEffects(s)
			if err != nil {
				return s, nil, err
			}
		}
		effects = append(effects, Notify{domain.ConnectResult{
			Success: false, BSSID: e.BSSID, ReqIEs: e.ReqIEs, RspIEs: e.RspIEs, Status: e.Status,
		}})
		return State{}, effects, nil
	}

	roamed := prev == domain.Associated && (e.Reassoc || s.RoamPending || s.FTPending)
	state := peerState(e.AuthType)
	desc := domain.PeerDescriptor{
		StationID: e.StationID,
		MAC:       e.BSSID,
		Self:      env.Self,
		QoS:       e.QoS,
		State:     state,
	}

	var effects []Effect
	switch {
	case prev == domain.Associated && !s.RoamPending && e.Reassoc && e.StationID == s.Info.StationID:
		// The AP peer survived the reassociation; only its state changes.
		effects = append(effects, SetPeerState{StationID: e.StationID, State: state})
	case prev == domain.Associated && !s.RoamPending:
		effects = append(effects,
			StopQueues{}, CarrierOff{},
			DeregisterPeer{StationID: s.Info.StationID},
			RegisterPeer{Desc: desc},
		)
	default:
		effects = append(effects, RegisterPeer{Desc: desc})
	}
	effects = append(effects, CarrierOn{}, StartQueues{}, WaitLinkUp{})
	if prev == domain.NotConnected {
		effects = append(effects, OpenSession{Mode: concurrency.ModeStation})
	}
	effects = append(effects, ApplyPowerSave{})

	if roamed {
		effects = append(effects, Notify{domain.Roamed{
			BSSID: e.BSSID, Channel: e.Channel, ReqIEs: e.ReqIEs, RspIEs: e.RspIEs,
		}})
	} else {
		effects = append(effects, Notify{domain.ConnectResult{
			Success: true, BSSID: e.BSSID, ReqIEs: e.ReqIEs, RspIEs: e.RspIEs, Status: e.Status,
		}})
	}

	return State{
		Info: domain.ConnectionInfo{
			State:           domain.Associated,
			BSSID:           e.BSSID,
			SSID:            e.SSID,
			Channel:         e.Channel,
			AuthType:        e.AuthType,
			UnicastCipher:   e.UnicastCipher,
			MulticastCipher: e.MulticastCipher,
			StationID:       e.StationID,
			QoS:             e.QoS,
			Authenticated:   state == domain.PeerAuthenticated,
			Since:           env.Now,
		},
		AuthPending: state == domain.PeerPreAuth,
	}, effects, nil
}

func setKeyComplete(s State, e domain.SetKeyComplete) (State, []Effect, error) {
	switch s.Info.State {
	case domain.Associated:
		if s.RoamPending || !s.AuthPending {
			return s, nil, nil
		}
		if !e.Success {
			return s, nil, fmt.Errorf("%w: key installation failed for %s", ErrDropped, e.PeerMAC)
		}
		if !e.CompletesAuth {
			return s, nil, nil
		}
		s.AuthPending = false
		s.Info.Authenticated = true
		return s, []Effect{SetPeerState{StationID: s.Info.StationID, State: domain.PeerAuthenticated}}, nil

	case domain.IbssConnected:
		idx := peers.FindSlotByMAC(s.Info.IBSSPeers[:], e.PeerMAC)
		if idx < 0 {
			return s, nil, fmt.Errorf("%w: no IBSS peer %s", ErrDropped, e.PeerMAC)
		}
		if !e.Success || !e.CompletesAuth {
			return s, nil, nil
		}
		s.Info.Authenticated = true
		return s, []Effect{SetPeerState{StationID: s.Info.IBSSPeers[idx].StationID, State: domain.PeerAuthenticated}}, nil

	default:
		return s, nil, unexpected(s, e)
	}
}

// teardownEffects stops traffic and releases every peer of the current
// connection. Callers append the notification.
func teardownEffects(s State) ([]Effect, error) {
	effects := []Effect{StopQueues{}, CarrierOff{}}
	mode := concurrency.ModeStation

	switch s.Info.State {
	case domain.Associated:
		if !s.RoamPending {
			effects = append(effects, DeregisterPeer{StationID: s.Info.StationID})
		}
	case domain.IbssDisconnected, domain.IbssConnected:
		mode = concurrency.ModeIBSS
		if err := peers.CheckSlots(s.Info.IBSSPeers[:]); err != nil {
			return nil, err
		}
		for _, p := range s.Info.ActiveIBSSPeers() {
			effects = append(effects, DeregisterPeer{StationID: p.StationID})
		}
	}

	return append(effects, CloseSession{Mode: mode}, RestorePowerSave{}), nil
}

func disconnect(s State, reason domain.DisconnectReason, code domain.ReasonCode) (State, []Effect, error) {
	if s.Info.State == domain.NotConnected {
		return s, nil, fmt.Errorf("%w: already disconnected", ErrUnexpectedEvent)
	}
	effects, err := teardownEffects(s)
	if err != nil {
		return s, nil, err
	}
	effects = append(effects, Notify{domain.Disconnected{Reason: reason, Code: code}})
	return State{}, effects, nil
}

func shouldRoam(s State, ev domain.RoamEvent) (State, []Effect, error) {
	if s.Info.State != domain.Associated || s.RoamPending {
		return s, nil, unexpected(s, ev)
	}
	effects := []Effect{StopQueues{}, DeregisterPeer{StationID: s.Info.StationID}}
	s.RoamPending = true
	s.AuthPending = false
	s.Info.Authenticated = false
	return s, effects, nil
}

func ibssIndication(s State, e domain.IbssIndication, env Env) (State, []Effect, error) {
	var effects []Effect
	switch s.Info.State {
	case domain.NotConnected:
		s = State{Info: domain.ConnectionInfo{
			State:    domain.IbssDisconnected,
			AuthType: e.AuthType,
			Since:    env.Now,
		}}
		effects = append(effects, OpenSession{Mode: concurrency.ModeIBSS})
	case domain.IbssDisconnected, domain.IbssConnected:
		// Coalesced into another IBSS; peers stay.
	default:
		return s, nil, unexpected(s, e)
	}
	s.Info.BSSID = e.BSSID
	s.Info.SSID = e.SSID
	s.Info.Channel = e.Channel

	effects = append(effects, Notify{domain.IbssJoined{BSSID: e.BSSID, Channel: e.Channel}})
	return s, effects, nil
}

func ibssPeerJoined(s State, e domain.IbssPeerJoined, env Env) (State, []Effect, error) {
	if !isIBSS(s.Info.State) {
		return s, nil, unexpected(s, e)
	}

	info := s.Info
	if _, err := peers.AddSlot(info.IBSSPeers[:], e.StationID, e.PeerMAC); err != nil {
		if errors.Is(err, peers.ErrInvariant) {
			return s, nil, err
		}
		return s, nil, fmt.Errorf("%w: IBSS peer %s: %w", ErrDropped, e.PeerMAC, err)
	}

	state := peerState(info.AuthType)
	effects := []Effect{RegisterPeer{Desc: domain.PeerDescriptor{
		StationID: e.StationID,
		MAC:       e.PeerMAC,
		Self:      env.Self,
		QoS:       e.QoS,
		State:     state,
	}}}

	if info.State == domain.IbssDisconnected {
		info.State = domain.IbssConnected
		info.Authenticated = state == domain.PeerAuthenticated
		effects = append(effects, CarrierOn{}, StartQueues{})
	}
	effects = append(effects, Notify{domain.StationJoined{MAC: e.PeerMAC}})

	s.Info = info
	return s, effects, nil
}

func ibssPeerDeparted(s State, e domain.IbssPeerDeparted) (State, []Effect, error) {
	if !isIBSS(s.Info.State) {
		return s, nil, unexpected(s, e)
	}

	info := s.Info
	id := e.StationID
	if peers.FindSlot(info.IBSSPeers[:], id) < 0 {
		idx := peers.FindSlotByMAC(info.IBSSPeers[:], e.PeerMAC)
		if idx < 0 {
			return s, nil, fmt.Errorf("%w: unknown IBSS peer %s", ErrUnexpectedEvent, e.PeerMAC)
		}
		id = info.IBSSPeers[idx].StationID
	}
	mac := info.IBSSPeers[peers.FindSlot(info.IBSSPeers[:], id)].MAC

	if _, err := peers.RemoveSlot(info.IBSSPeers[:], id); err != nil {
		return s, nil, err
	}

	effects := []Effect{DeregisterPeer{StationID: id}}
	if peers.CountSlots(info.IBSSPeers[:]) == 0 {
		info.State = domain.IbssDisconnected
		info.Authenticated = false
		effects = append(effects, StopQueues{}, CarrierOff{})
	}
	effects = append(effects, Notify{domain.StationLeft{MAC: mac}})

	s.Info = info
	return s, effects, nil
}
