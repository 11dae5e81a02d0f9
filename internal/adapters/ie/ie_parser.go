// Package ie decodes the security information elements exchanged during
// association and maps their suite selectors to abstract auth/cipher types.
package ie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/gopacket/layers"
)

// Element IDs of the security elements.
const (
	TagRSN            = int(layers.Dot11InformationElementIDRSNInfo)
	TagVendorSpecific = int(layers.Dot11InformationElementIDVendor) // 0xDD
)

// maxElementBody is the largest body a one-octet length field can describe.
const maxElementBody = 255

// Errors
var (
	ErrMalformedIE    = errors.New("malformed information element")
	ErrIENotFound     = errors.New("information element not found")
	ErrTooShort       = errors.New("security element too short")
	ErrTooLong        = errors.New("security element too long")
	ErrUnknownElement = errors.New("unrecognized security element")
)

// wpaOUI is the Microsoft vendor OUI + type 1 that marks a WPA1 element.
var wpaOUI = []byte{0x00, 0x50, 0xF2, 0x01}

// WalkIEs calls callback for each element of an IE buffer in order. A
// truncated element stops the walk with ErrMalformedIE; the elements before
// it have already been reported.
func WalkIEs(data []byte, callback func(id int, data []byte)) error {
	offset := 0
	limit := len(data)

	for offset < limit {
		// Needs at least 2 bytes (ID and Length)
		if offset+2 > limit {
			return fmt.Errorf("%w: dangling header at offset %d", ErrMalformedIE, offset)
		}

		id := int(data[offset])
		length := int(data[offset+1])
		offset += 2

		if offset+length > limit {
			return fmt.Errorf("%w: element %d claims %d bytes, %d left", ErrMalformedIE, id, length, limit-offset)
		}

		callback(id, data[offset:offset+length])
		offset += length
	}
	return nil
}

// isWPAVendorIE reports whether a vendor-specific body is a WPA1 element.
func isWPAVendorIE(body []byte) bool {
	return len(body) >= 4 && bytes.Equal(body[:4], wpaOUI)
}

// FindSecurityIE returns the first RSN element, or failing that the first
// WPA vendor element, of an IE buffer as a full element (EID + length + body).
func FindSecurityIE(data []byte) ([]byte, error) {
	var rsn, wpa []byte
	err := WalkIEs(data, func(id int, val []byte) {
		switch {
		case id == TagRSN && rsn == nil:
			rsn = element(id, val)
		case id == TagVendorSpecific && wpa == nil && isWPAVendorIE(val):
			wpa = element(id, val)
		}
	})
	if rsn != nil {
		return rsn, nil
	}
	if wpa != nil {
		return wpa, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, ErrIENotFound
}

func element(id int, body []byte) []byte {
	out := make([]byte, 0, len(body)+2)
	out = append(out, byte(id), byte(len(body)))
	return append(out, body...)
}
