package ie

import (
	"bytes"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// Table selects the OUI namespace a suite selector is read in.
type Table int

const (
	// TableRSN is the IEEE 00-0F-AC namespace.
	TableRSN Table = iota
	// TableWPA is the legacy Microsoft 00-50-F2 namespace.
	TableWPA
)

func (t Table) String() string {
	if t == TableWPA {
		return "wpa"
	}
	return "rsn"
}

var (
	rsnOUI    = []byte{0x00, 0x0F, 0xAC}
	wpaSuiteO = []byte{0x00, 0x50, 0xF2}
)

func (t Table) oui() []byte {
	if t == TableWPA {
		return wpaSuiteO
	}
	return rsnOUI
}

var rsnAKM = map[byte]domain.AuthType{
	1:  domain.AuthRSN,
	2:  domain.AuthRSNPSK,
	3:  domain.AuthFT8021X,
	4:  domain.AuthFTPSK,
	5:  domain.AuthRSN8021XSHA256,
	6:  domain.AuthRSNPSKSHA256,
	8:  domain.AuthSAE,
	9:  domain.AuthFTSAE,
	18: domain.AuthOWE,
}

var wpaAKM = map[byte]domain.AuthType{
	1: domain.AuthWPA,
	2: domain.AuthWPAPSK,
}

var rsnCipher = map[byte]domain.CipherType{
	0:  domain.CipherNone, // use group cipher
	1:  domain.CipherWEP40,
	2:  domain.CipherTKIP,
	4:  domain.CipherCCMP,
	5:  domain.CipherWEP104,
	6:  domain.CipherBIPCMAC128,
	7:  domain.CipherGroupNotAllowed,
	8:  domain.CipherGCMP128,
	9:  domain.CipherGCMP256,
	10: domain.CipherCCMP256,
}

var wpaCipher = map[byte]domain.CipherType{
	0: domain.CipherNone,
	1: domain.CipherWEP40,
	2: domain.CipherTKIP,
	4: domain.CipherCCMP,
	5: domain.CipherWEP104,
}

// TranslateAKM maps an AKM suite selector. Unknown OUIs or types yield
// AuthUnknown.
func TranslateAKM(t Table, s [4]byte) domain.AuthType {
	if !bytes.Equal(s[:3], t.oui()) {
		return domain.AuthUnknown
	}
	table := rsnAKM
	if t == TableWPA {
		table = wpaAKM
	}
	if a, ok := table[s[3]]; ok {
		return a
	}
	return domain.AuthUnknown
}

// TranslateCipher maps a cipher suite selector. Unknown OUIs or types yield
// CipherUnknown.
func TranslateCipher(t Table, s [4]byte) domain.CipherType {
	if !bytes.Equal(s[:3], t.oui()) {
		return domain.CipherUnknown
	}
	table := rsnCipher
	if t == TableWPA {
		table = wpaCipher
	}
	if c, ok := table[s[3]]; ok {
		return c
	}
	return domain.CipherUnknown
}

// Translate reads one 4-byte suite selector as both an AKM and a cipher suite
// of the given table. The caller picks the half that matches the field the
// selector came from; a selector meaningless in one namespace comes back as
// the explicit unknown sentinel there.
func Translate(s [4]byte, t Table) (domain.AuthType, domain.CipherType) {
	return TranslateAKM(t, s), TranslateCipher(t, s)
}
