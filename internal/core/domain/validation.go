package domain

import (
	"errors"
	"fmt"
	"net"
	"regexp"
)

// Validation Helpers

var (
	macRegex       = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}([0-9A-Fa-f]{2})$`)
	interfaceRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

// Domain Errors for addresses and interface names.
var (
	ErrInvalidInterfaceName = errors.New("invalid interface name")
	ErrInvalidMAC           = errors.New("invalid MAC address")
)

// IsValidMAC checks if the string is a valid MAC address
func IsValidMAC(mac string) bool {
	return macRegex.MatchString(mac)
}

// IsValidInterface checks if the string is a safe interface name (alphanumeric + - _)
func IsValidInterface(iface string) bool {
	// Length check (Linux interfaces are usually short, IFNAMSIZ is 16)
	if len(iface) == 0 || len(iface) > 16 {
		return false
	}
	return interfaceRegex.MatchString(iface)
}

// HWAddr is a 6-byte IEEE 802 MAC address (BSSID, peer address, self address).
type HWAddr [6]byte

// BroadcastAddr is ff:ff:ff:ff:ff:ff.
var BroadcastAddr = HWAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseHWAddr parses "aa:bb:cc:dd:ee:ff" or "aa-bb-cc-dd-ee-ff".
func ParseHWAddr(s string) (HWAddr, error) {
	var a HWAddr
	if !IsValidMAC(s) {
		return a, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	hw, err := net.ParseMAC(s)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidMAC, err)
	}
	copy(a[:], hw)
	return a, nil
}

// MustHWAddr is ParseHWAddr for constants and tests.
func MustHWAddr(s string) HWAddr {
	a, err := ParseHWAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a HWAddr) String() string {
	return net.HardwareAddr(a[:]).String()
}

// IsZero reports whether the address is 00:00:00:00:00:00.
func (a HWAddr) IsZero() bool {
	return a == HWAddr{}
}

// MarshalText encodes the address in colon notation.
func (a HWAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts the colon or dash notation. An empty string is the zero address.
func (a *HWAddr) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = HWAddr{}
		return nil
	}
	parsed, err := ParseHWAddr(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
