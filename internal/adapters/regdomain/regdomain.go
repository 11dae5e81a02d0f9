// Package regdomain holds the static channel tables used by the link state
// machines: which 5 GHz channels need radar detection and how channels map
// to centre frequencies.
package regdomain

import (
	"strings"
)

// DefaultCountry is used when no country code is configured.
const DefaultCountry = "00"

// dfsRange is the inclusive 5 GHz channel range subject to DFS (UNII-2 and
// UNII-2e).
var dfsRange = [2]int{52, 144}

// Policy implements ports.ChannelPolicy for one regulatory domain.
type Policy struct {
	country string
}

// New returns a policy for the given ISO country code.
func New(country string) *Policy {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = DefaultCountry
	}
	return &Policy{country: country}
}

// IsDFS reports whether the channel requires a channel availability check.
func (p *Policy) IsDFS(channel int) bool {
	return channel >= dfsRange[0] && channel <= dfsRange[1]
}

// CountryCode returns the configured country code.
func (p *Policy) CountryCode() string {
	return p.country
}

// ChannelToFrequency returns the centre frequency in MHz of a 2.4 or 5 GHz
// channel, or 0 if the channel is not valid in either band.
func ChannelToFrequency(channel int) int {
	switch {
	case channel == 14:
		return 2484
	case channel >= 1 && channel <= 13:
		return 2407 + channel*5
	case channel >= 32 && channel <= 177:
		return 5000 + channel*5
	default:
		return 0
	}
}

// FrequencyToChannel is the inverse of ChannelToFrequency, also accepting 6 GHz.
func FrequencyToChannel(freq int) int {
	// 2.4 GHz band (channels 1-14)
	if freq >= 2412 && freq <= 2484 {
		if freq == 2484 {
			return 14
		}
		return (freq - 2407) / 5
	}

	// 5 GHz band
	if freq >= 5160 && freq <= 5885 {
		return (freq - 5000) / 5
	}

	// 6 GHz band - WiFi 6E (channels 1-233)
	if freq >= 5955 && freq <= 7115 {
		return (freq - 5950) / 5
	}

	return 0
}
