package sme

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
)

// rsnPSK is an RSN element advertising CCMP with PSK key management.
var rsnPSK = []byte{
	48, 20,
	1, 0,
	0x00, 0x0f, 0xac, 4,
	1, 0, 0x00, 0x0f, 0xac, 4,
	1, 0, 0x00, 0x0f, 0xac, 2,
	0, 0,
}

var simBSSIDs = []domain.HWAddr{
	domain.MustHWAddr("02:00:00:00:0a:01"),
	domain.MustHWAddr("02:00:00:00:0a:02"),
	domain.MustHWAddr("02:00:00:00:0a:03"),
}

var simSSIDs = []string{"corp-wlan", "guest", "lab-5g"}

// Channels the simulated AP picks from; 52 and 100 need a CAC.
var simChannels = []int{1, 6, 11, 36, 52, 100}

// Simulator generates plausible SME callback sequences for station and AP
// adapters so the coordinator can be exercised without a radio.
type Simulator struct {
	Sink     ports.EventSink
	Stations []string
	APs      []string
	// Pause returns the delay between two events. Nil picks 500ms to 2s.
	Pause func() time.Duration

	rng    *rand.Rand
	logger *slog.Logger
}

// NewSimulator creates a Simulator seeded with seed.
func NewSimulator(sink ports.EventSink, stations, aps []string, seed int64, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		Sink:     sink,
		Stations: stations,
		APs:      aps,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   logger.With("component", "sme-simulator"),
	}
}

// Start runs random station and AP cycles until ctx is cancelled.
func (s *Simulator) Start(ctx context.Context) error {
	s.logger.Info("starting simulated SME", "stations", s.Stations, "aps", s.APs)
	if len(s.Stations)+len(s.APs) == 0 {
		return fmt.Errorf("simulator: no adapters configured")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulated SME stopping")
			return nil
		default:
		}

		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// RunCycle plays one complete scenario on one randomly picked adapter.
func (s *Simulator) RunCycle(ctx context.Context) error {
	n := s.rng.Intn(len(s.Stations) + len(s.APs))
	if n < len(s.Stations) {
		iface := s.Stations[n]
		return s.playRoam(ctx, iface, s.StationScript())
	}
	iface := s.APs[n-len(s.Stations)]
	return s.playSap(ctx, iface, s.APScript())
}

// StationScript returns a connect, optional roam, disconnect sequence.
func (s *Simulator) StationScript() []domain.RoamEvent {
	i := s.rng.Intn(len(simBSSIDs))
	bssid := simBSSIDs[i]
	ssid := simSSIDs[i]

	evs := []domain.RoamEvent{
		domain.AssociationComplete{
			Success:         true,
			BSSID:           bssid,
			SSID:            ssid,
			Channel:         simChannels[s.rng.Intn(3)],
			AuthType:        domain.AuthRSNPSK,
			UnicastCipher:   domain.CipherCCMP,
			MulticastCipher: domain.CipherCCMP,
			StationID:       1,
			QoS:             true,
			ReqIEs:          rsnPSK,
		},
		domain.SetKeyComplete{Success: true, PeerMAC: bssid},
		domain.SetKeyComplete{Success: true, PeerMAC: bssid, CompletesAuth: true},
		domain.PmkNotify{BSSID: simBSSIDs[(i+1)%len(simBSSIDs)], PreAuth: true},
	}

	if s.rng.Float32() < 0.5 {
		next := simBSSIDs[(i+1)%len(simBSSIDs)]
		evs = append(evs,
			domain.ShouldRoam{},
			domain.AssociationComplete{
				Success:         true,
				Reassoc:         true,
				BSSID:           next,
				SSID:            ssid,
				Channel:         simChannels[s.rng.Intn(3)],
				AuthType:        domain.AuthRSNPSK,
				UnicastCipher:   domain.CipherCCMP,
				MulticastCipher: domain.CipherCCMP,
				StationID:       2,
				QoS:             true,
				ReqIEs:          rsnPSK,
			},
			domain.SetKeyComplete{Success: true, PeerMAC: next, CompletesAuth: true},
		)
	}

	if s.rng.Float32() < 0.3 {
		evs = append(evs, domain.LostLink{Reason: domain.ReasonInactivity})
	} else {
		evs = append(evs, domain.Disassociated{Reason: domain.ReasonUnspecified})
	}
	return evs
}

// APScript returns a start, CAC if needed, station churn, stop sequence.
func (s *Simulator) APScript() []domain.SapEvent {
	bssid := simBSSIDs[s.rng.Intn(len(simBSSIDs))]
	ch := simChannels[s.rng.Intn(len(simChannels))]

	evs := []domain.SapEvent{
		domain.StartBssComplete{Success: true, BSSID: bssid, Channel: ch, Width: 20, BroadcastID: 0},
	}
	if ch >= 52 && ch <= 144 {
		evs = append(evs, domain.CacStart{Channel: ch}, domain.CacEnd{Channel: ch})
	}

	stations := 1 + s.rng.Intn(4)
	for id := 1; id <= stations; id++ {
		mac := domain.HWAddr{0x02, 0x00, 0x00, 0x00, 0xbb, byte(id)}
		evs = append(evs,
			domain.StationAssocOrReassoc{StationID: id, PeerMAC: mac, QoS: true, AssocIEs: rsnPSK, Nss: 2},
			domain.StationSetKeyComplete{StationID: id, Success: true},
		)
	}

	// Some stations leave before the BSS goes down.
	for id := 1; id <= stations; id++ {
		if s.rng.Float32() < 0.5 {
			mac := domain.HWAddr{0x02, 0x00, 0x00, 0x00, 0xbb, byte(id)}
			evs = append(evs, domain.StationDisassoc{StationID: id, PeerMAC: mac, Reason: 8})
		}
	}

	if s.rng.Float32() < 0.2 {
		evs = append(evs, domain.MacTriggeredStop{Reason: "simulated"})
	} else {
		evs = append(evs, domain.StopBssComplete{})
	}
	return evs
}

func (s *Simulator) playRoam(ctx context.Context, iface string, evs []domain.RoamEvent) error {
	for _, ev := range evs {
		id, err := s.Sink.PostRoam(ctx, iface, ev)
		if err != nil {
			return fmt.Errorf("post %s to %s: %w", ev.RoamKind(), iface, err)
		}
		s.logger.Debug("simulated event", "iface", iface, "kind", ev.RoamKind(), "event_id", id)
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) playSap(ctx context.Context, iface string, evs []domain.SapEvent) error {
	for _, ev := range evs {
		id, err := s.Sink.PostSap(ctx, iface, ev)
		if err != nil {
			return fmt.Errorf("post %s to %s: %w", ev.SapKind(), iface, err)
		}
		s.logger.Debug("simulated event", "iface", iface, "kind", ev.SapKind(), "event_id", id)
		if err := s.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) wait(ctx context.Context) error {
	d := time.Duration(500+s.rng.Intn(1500)) * time.Millisecond
	if s.Pause != nil {
		d = s.Pause()
	}
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
