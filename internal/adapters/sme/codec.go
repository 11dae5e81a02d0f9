// Package sme is the event source side of the coordinator: a JSON envelope
// codec for SME callbacks, a JSON-lines replayer and a simulated SME.
package sme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
)

// Errors
var (
	ErrUnknownKind = errors.New("unknown event kind")
	ErrBadPayload  = errors.New("invalid event payload")
	ErrNoIface     = errors.New("event has no interface")
)

// Envelope is the wire form of one SME event.
type Envelope struct {
	Iface   string          `json:"iface,omitempty"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func decodeRoam[T domain.RoamEvent](p []byte) (domain.RoamEvent, error) {
	var v T
	if len(p) > 0 {
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
	}
	return v, nil
}

func decodeSap[T domain.SapEvent](p []byte) (domain.SapEvent, error) {
	var v T
	if len(p) > 0 {
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
	}
	return v, nil
}

var roamDecoders = map[string]func([]byte) (domain.RoamEvent, error){
	domain.AssociationComplete{}.RoamKind(): decodeRoam[domain.AssociationComplete],
	domain.SetKeyComplete{}.RoamKind():      decodeRoam[domain.SetKeyComplete],
	domain.MicFailure{}.RoamKind():          decodeRoam[domain.MicFailure],
	domain.Disassociated{}.RoamKind():       decodeRoam[domain.Disassociated],
	domain.LostLink{}.RoamKind():            decodeRoam[domain.LostLink],
	domain.IbssLeave{}.RoamKind():           decodeRoam[domain.IbssLeave],
	domain.IbssIndication{}.RoamKind():      decodeRoam[domain.IbssIndication],
	domain.IbssPeerJoined{}.RoamKind():      decodeRoam[domain.IbssPeerJoined],
	domain.IbssPeerDeparted{}.RoamKind():    decodeRoam[domain.IbssPeerDeparted],
	domain.IbssInactive{}.RoamKind():        decodeRoam[domain.IbssInactive],
	domain.FtStart{}.RoamKind():             decodeRoam[domain.FtStart],
	domain.ShouldRoam{}.RoamKind():          decodeRoam[domain.ShouldRoam],
	domain.FtResponse{}.RoamKind():          decodeRoam[domain.FtResponse],
	domain.PmkNotify{}.RoamKind():           decodeRoam[domain.PmkNotify],
}

var sapDecoders = map[string]func([]byte) (domain.SapEvent, error){
	domain.StartBssComplete{}.SapKind():      decodeSap[domain.StartBssComplete],
	domain.StopBssComplete{}.SapKind():       decodeSap[domain.StopBssComplete],
	domain.MacTriggeredStop{}.SapKind():      decodeSap[domain.MacTriggeredStop],
	domain.DisconnectAllPeers{}.SapKind():    decodeSap[domain.DisconnectAllPeers],
	domain.StationAssocOrReassoc{}.SapKind(): decodeSap[domain.StationAssocOrReassoc],
	domain.StationSetKeyComplete{}.SapKind(): decodeSap[domain.StationSetKeyComplete],
	domain.StationDisassoc{}.SapKind():       decodeSap[domain.StationDisassoc],
	domain.StationMicFailure{}.SapKind():     decodeSap[domain.StationMicFailure],
	domain.CacStart{}.SapKind():              decodeSap[domain.CacStart],
	domain.CacEnd{}.SapKind():                decodeSap[domain.CacEnd],
	domain.CacInterrupted{}.SapKind():        decodeSap[domain.CacInterrupted],
	domain.RadarDetect{}.SapKind():           decodeSap[domain.RadarDetect],
	domain.ChannelChange{}.SapKind():         decodeSap[domain.ChannelChange],
	domain.UnknownStaJoin{}.SapKind():        decodeSap[domain.UnknownStaJoin],
	domain.MaxAssocExceeded{}.SapKind():      decodeSap[domain.MaxAssocExceeded],
	domain.InactivityTimeout{}.SapKind():     decodeSap[domain.InactivityTimeout],
	domain.GroupKeyRequest{}.SapKind():       decodeSap[domain.GroupKeyRequest],
}

// IsRoamKind reports whether kind names a station (roam callback) event.
func IsRoamKind(kind string) bool {
	_, ok := roamDecoders[kind]
	return ok
}

// IsSapKind reports whether kind names an AP (SAP callback) event.
func IsSapKind(kind string) bool {
	_, ok := sapDecoders[kind]
	return ok
}

// Decode returns the event carried by env: a domain.RoamEvent or a
// domain.SapEvent.
func Decode(env Envelope) (any, error) {
	if d, ok := roamDecoders[env.Kind]; ok {
		return d(env.Payload)
	}
	if d, ok := sapDecoders[env.Kind]; ok {
		return d(env.Payload)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
}

// Encode wraps a domain.RoamEvent or domain.SapEvent in an envelope.
func Encode(iface string, ev any) (Envelope, error) {
	var kind string
	switch e := ev.(type) {
	case domain.RoamEvent:
		kind = e.RoamKind()
	case domain.SapEvent:
		kind = e.SapKind()
	default:
		return Envelope{}, fmt.Errorf("%w: %T", ErrUnknownKind, ev)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Iface: iface, Kind: kind, Payload: payload}, nil
}

// Deliver decodes env and posts it to the adapter it names, or to iface
// when the envelope carries none.
func Deliver(ctx context.Context, sink ports.EventSink, iface string, env Envelope) (string, error) {
	if env.Iface != "" {
		iface = env.Iface
	}
	if iface == "" {
		return "", ErrNoIface
	}
	ev, err := Decode(env)
	if err != nil {
		return "", err
	}
	switch e := ev.(type) {
	case domain.RoamEvent:
		return sink.PostRoam(ctx, iface, e)
	case domain.SapEvent:
		return sink.PostSap(ctx, iface, e)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
}
