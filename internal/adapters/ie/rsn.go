package ie

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// SecurityInfo is a decoded RSN or WPA element in abstract terms.
type SecurityInfo struct {
	Table           Table
	Version         uint16
	GroupCipher     domain.CipherType
	PairwiseCiphers []domain.CipherType
	AKMSuites       []domain.AuthType
	Capabilities    RSNCapabilities
}

// RSNCapabilities represents the capabilities field of RSN IE
type RSNCapabilities struct {
	PreAuth          bool
	NoPairwise       bool
	PTKSAReplayCount uint8
	GTKSAReplayCount uint8
	MFPRequired      bool
	MFPCapable       bool
	PeerKeyEnabled   bool
}

// AuthType is the first advertised AKM, or AuthUnknown when none is.
func (s *SecurityInfo) AuthType() domain.AuthType {
	if len(s.AKMSuites) == 0 {
		return domain.AuthUnknown
	}
	return s.AKMSuites[0]
}

// PairwiseCipher is the first advertised pairwise cipher, falling back to the
// group cipher when the element lists none.
func (s *SecurityInfo) PairwiseCipher() domain.CipherType {
	if len(s.PairwiseCiphers) == 0 {
		return s.GroupCipher
	}
	return s.PairwiseCiphers[0]
}

// ParseSecurityElement decodes a full RSN (EID 48) or WPA (EID 221 with the
// 00:50:F2:01 header) element. Any other element is rejected.
func ParseSecurityElement(elem []byte) (*SecurityInfo, error) {
	if len(elem) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooShort, len(elem))
	}
	id, length := int(elem[0]), int(elem[1])
	body := elem[2:]
	if length != len(body) {
		return nil, fmt.Errorf("%w: length field %d, body %d", ErrMalformedIE, length, len(body))
	}

	switch {
	case id == TagRSN:
		return parseSuites(TableRSN, body)
	case id == TagVendorSpecific && isWPAVendorIE(body):
		return parseSuites(TableWPA, body[len(wpaOUI):])
	default:
		return nil, fmt.Errorf("%w: element id %d", ErrUnknownElement, id)
	}
}

// ParseRSN parses the body of IE 48 (RSN Information Element).
func ParseRSN(data []byte) (*SecurityInfo, error) {
	return parseSuites(TableRSN, data)
}

// parseSuites decodes version, group suite, pairwise list, AKM list and (RSN
// only) capabilities. Optional trailing fields may be absent; a list whose
// count runs past the body is malformed.
func parseSuites(table Table, data []byte) (*SecurityInfo, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooShort, len(data))
	}
	if len(data) > maxElementBody {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, len(data))
	}

	info := &SecurityInfo{Table: table}
	offset := 0

	info.Version = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	if offset+4 > len(data) {
		return info, nil
	}
	info.GroupCipher = TranslateCipher(table, suite(data[offset:]))
	offset += 4

	if offset+2 > len(data) {
		return info, nil
	}
	count := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	if offset+4*count > len(data) {
		return nil, fmt.Errorf("%w: %d pairwise suites overrun body", ErrMalformedIE, count)
	}
	for i := 0; i < count; i++ {
		info.PairwiseCiphers = append(info.PairwiseCiphers, TranslateCipher(table, suite(data[offset:])))
		offset += 4
	}

	if offset+2 > len(data) {
		return info, nil
	}
	count = int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	if offset+4*count > len(data) {
		return nil, fmt.Errorf("%w: %d AKM suites overrun body", ErrMalformedIE, count)
	}
	for i := 0; i < count; i++ {
		info.AKMSuites = append(info.AKMSuites, TranslateAKM(table, suite(data[offset:])))
		offset += 4
	}

	if table == TableRSN && offset+2 <= len(data) {
		info.Capabilities = parseRSNCapabilities(binary.LittleEndian.Uint16(data[offset:]))
	}

	return info, nil
}

func suite(b []byte) [4]byte {
	var s [4]byte
	copy(s[:], b[:4])
	return s
}

func parseRSNCapabilities(caps uint16) RSNCapabilities {
	return RSNCapabilities{
		PreAuth:          (caps & 0x0001) != 0,
		NoPairwise:       (caps & 0x0002) != 0,
		PTKSAReplayCount: uint8((caps >> 2) & 0x03),
		GTKSAReplayCount: uint8((caps >> 4) & 0x03),
		MFPRequired:      (caps & 0x0040) != 0,
		MFPCapable:       (caps & 0x0080) != 0,
		PeerKeyEnabled:   (caps & 0x0200) != 0,
	}
}

// NegotiatedSecurity finds the security element in an association IE buffer
// and returns its auth type and pairwise/group ciphers. A buffer without any
// security element is an open association.
func NegotiatedSecurity(ies []byte) (domain.AuthType, domain.CipherType, domain.CipherType, error) {
	elem, err := FindSecurityIE(ies)
	if errors.Is(err, ErrIENotFound) {
		return domain.AuthOpen, domain.CipherNone, domain.CipherNone, nil
	}
	if err != nil {
		return domain.AuthUnknown, domain.CipherUnknown, domain.CipherUnknown, err
	}
	info, err := ParseSecurityElement(elem)
	if err != nil {
		return domain.AuthUnknown, domain.CipherUnknown, domain.CipherUnknown, err
	}
	return info.AuthType(), info.PairwiseCipher(), info.GroupCipher, nil
}
