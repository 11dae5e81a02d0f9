package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// AdapterConfig describes one wireless adapter and the persona it runs.
type AdapterConfig struct {
	Name string        `toml:"name"`
	Role domain.Role   `toml:"role"`
	MAC  domain.HWAddr `toml:"mac"`
	// MaxPeers bounds the data-path table; 0 means the full station-id space.
	MaxPeers int    `toml:"max_peers"`
	Country  string `toml:"country"`

	// AP only.
	Privacy           domain.Privacy `toml:"privacy"`
	InactivityTimeout time.Duration  `toml:"-"`
	Keys              []KeyConfig    `toml:"keys"`

	RawInactivity string `toml:"inactivity_timeout"`
}

// KeyConfig is a group/WEP key queued at startup. Key is hex.
type KeyConfig struct {
	Index   int               `toml:"index"`
	Cipher  domain.CipherType `toml:"cipher"`
	Key     string            `toml:"key"`
	Default bool              `toml:"default"`
}

// GroupKeys decodes the configured keys.
func (a AdapterConfig) GroupKeys() ([]domain.GroupKey, error) {
	keys := make([]domain.GroupKey, 0, len(a.Keys))
	for i, k := range a.Keys {
		raw, err := hex.DecodeString(strings.ReplaceAll(k.Key, ":", ""))
		if err != nil {
			return nil, fmt.Errorf("key[%d]: %w", i, err)
		}
		keys = append(keys, domain.GroupKey{Index: k.Index, Cipher: k.Cipher, Key: raw, Default: k.Default})
	}
	return keys, nil
}

// OpenPrivacy is used by adapters that configure no privacy table.
var OpenPrivacy = domain.Privacy{
	AuthType:        domain.AuthOpen,
	UnicastCipher:   domain.CipherNone,
	MulticastCipher: domain.CipherNone,
}

type profileFile struct {
	Country  string          `toml:"country"`
	Adapters []AdapterConfig `toml:"adapter"`
}

// LoadProfile reads a TOML adapter profile:
//
//	country = "US"
//
//	[[adapter]]
//	name = "wlan0"
//	role = "station"
//	mac  = "02:00:00:00:00:01"
//
//	[[adapter]]
//	name = "ap0"
//	role = "ap"
//	inactivity_timeout = "5m"
//	[adapter.privacy]
//	auth_type = "rsn-psk"
//	unicast_cipher = "ccmp"
//	multicast_cipher = "ccmp"
//
// A top-level country applies to adapters that set none. Adapters without a
// mac get 02:00:00:00:00:NN by position.
func LoadProfile(path string) ([]AdapterConfig, error) {
	var raw profileFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load profile (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load profile (%s): unknown keys %v", path, undecoded)
	}

	for i := range raw.Adapters {
		a := &raw.Adapters[i]
		a.Name = strings.TrimSpace(a.Name)
		if a.Country == "" {
			a.Country = raw.Country
		}
		if a.Privacy == (domain.Privacy{}) {
			a.Privacy = OpenPrivacy
		}
		if a.MAC.IsZero() {
			a.MAC = domain.HWAddr{0x02, 0, 0, 0, 0, byte(i + 1)}
		}
		if a.RawInactivity != "" {
			d, err := time.ParseDuration(a.RawInactivity)
			if err != nil {
				return nil, fmt.Errorf("adapter[%d] inactivity_timeout: %w", i, err)
			}
			a.InactivityTimeout = d
		}
	}

	if err := ValidateAdapters(raw.Adapters); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return raw.Adapters, nil
}

// ValidateAdapters checks names, roles and limits of an adapter list.
func ValidateAdapters(adapters []AdapterConfig) error {
	if len(adapters) == 0 {
		return fmt.Errorf("no adapters configured")
	}
	seen := make(map[string]bool, len(adapters))
	for i, a := range adapters {
		if err := ValidateAdapter(a); err != nil {
			return fmt.Errorf("adapter[%d] invalid: %w", i, err)
		}
		if seen[a.Name] {
			return fmt.Errorf("adapter[%d] invalid: duplicate name %q", i, a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}

func ValidateAdapter(a AdapterConfig) error {
	if !domain.IsValidInterface(a.Name) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidInterfaceName, a.Name)
	}
	switch a.Role {
	case domain.RoleStation, domain.RoleAP:
	default:
		return fmt.Errorf("role must be %q or %q, got %q", domain.RoleStation, domain.RoleAP, a.Role)
	}
	if a.MAC.IsZero() || a.MAC == domain.BroadcastAddr {
		return fmt.Errorf("%w: %s is not a unicast address", domain.ErrInvalidMAC, a.MAC)
	}
	if a.MaxPeers < 0 || a.MaxPeers > domain.MaxStations {
		return fmt.Errorf("max_peers must be within 0..%d", domain.MaxStations)
	}
	if a.InactivityTimeout < 0 {
		return fmt.Errorf("inactivity_timeout must not be negative")
	}
	if a.Country != "" && len(a.Country) != 2 {
		return fmt.Errorf("country must be a two-letter code, got %q", a.Country)
	}
	if a.Role == domain.RoleStation && (len(a.Keys) > 0 || a.InactivityTimeout > 0) {
		return fmt.Errorf("keys and inactivity_timeout apply to ap adapters only")
	}
	if _, err := a.GroupKeys(); err != nil {
		return err
	}
	return nil
}
