package domain

import (
	"fmt"
	"strings"
)

// AuthType is the negotiated authentication / key management type of a link.
type AuthType int

const (
	// AuthUnknown is returned for suites the translator does not recognise.
	// It is never silently replaced by a default.
	AuthUnknown AuthType = iota
	AuthOpen
	AuthShared
	AuthWPA
	AuthWPAPSK
	AuthRSN
	AuthRSNPSK
	AuthFT8021X
	AuthFTPSK
	AuthRSN8021XSHA256
	AuthRSNPSKSHA256
	AuthSAE
	AuthFTSAE
	AuthOWE
)

var authNames = map[AuthType]string{
	AuthUnknown:        "unknown",
	AuthOpen:           "open",
	AuthShared:         "shared",
	AuthWPA:            "wpa",
	AuthWPAPSK:         "wpa-psk",
	AuthRSN:            "rsn",
	AuthRSNPSK:         "rsn-psk",
	AuthFT8021X:        "ft-8021x",
	AuthFTPSK:          "ft-psk",
	AuthRSN8021XSHA256: "rsn-8021x-sha256",
	AuthRSNPSKSHA256:   "rsn-psk-sha256",
	AuthSAE:            "sae",
	AuthFTSAE:          "ft-sae",
	AuthOWE:            "owe",
}

func (a AuthType) String() string {
	if s, ok := authNames[a]; ok {
		return s
	}
	return fmt.Sprintf("auth(%d)", int(a))
}

// RequiresUpperLayerAuth reports whether a link negotiated with this type
// stays pre-authenticated until the supplicant finishes its key exchange.
// Open and static-key (shared/WEP) links are authenticated as soon as they
// associate. AuthUnknown counts as secured.
func (a AuthType) RequiresUpperLayerAuth() bool {
	switch a {
	case AuthOpen, AuthShared:
		return false
	default:
		return true
	}
}

func (a AuthType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AuthType) UnmarshalText(text []byte) error {
	v, err := ParseAuthType(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAuthType maps a name such as "rsn-psk" back to its AuthType.
func ParseAuthType(s string) (AuthType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AuthOpen, nil
	}
	for k, v := range authNames {
		if v == s {
			return k, nil
		}
	}
	return AuthUnknown, fmt.Errorf("unknown auth type %q", s)
}

// CipherType is a negotiated unicast or group cipher.
type CipherType int

const (
	CipherUnknown CipherType = iota
	CipherNone
	CipherWEP40
	CipherWEP104
	CipherTKIP
	CipherCCMP
	CipherGCMP128
	CipherGCMP256
	CipherCCMP256
	CipherBIPCMAC128
	CipherGroupNotAllowed
)

var cipherNames = map[CipherType]string{
	CipherUnknown:         "unknown",
	CipherNone:            "none",
	CipherWEP40:           "wep40",
	CipherWEP104:          "wep104",
	CipherTKIP:            "tkip",
	CipherCCMP:            "ccmp",
	CipherGCMP128:         "gcmp128",
	CipherGCMP256:         "gcmp256",
	CipherCCMP256:         "ccmp256",
	CipherBIPCMAC128:      "bip-cmac128",
	CipherGroupNotAllowed: "group-not-allowed",
}

func (c CipherType) String() string {
	if s, ok := cipherNames[c]; ok {
		return s
	}
	return fmt.Sprintf("cipher(%d)", int(c))
}

// IsWEP reports whether the cipher is a static WEP key.
func (c CipherType) IsWEP() bool {
	return c == CipherWEP40 || c == CipherWEP104
}

func (c CipherType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CipherType) UnmarshalText(text []byte) error {
	v, err := ParseCipherType(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCipherType maps a name such as "ccmp" back to its CipherType.
func ParseCipherType(s string) (CipherType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CipherNone, nil
	}
	for k, v := range cipherNames {
		if v == s {
			return k, nil
		}
	}
	return CipherUnknown, fmt.Errorf("unknown cipher type %q", s)
}

// GroupKey is group/WEP key material supplied by the upper layer. For an AP
// it is queued until the BSS has started.
type GroupKey struct {
	Index  int        `json:"index"`
	Cipher CipherType `json:"cipher"`
	Key    []byte     `json:"key"`
	// Default marks the WEP default transmit key.
	Default bool `json:"default,omitempty"`
}
