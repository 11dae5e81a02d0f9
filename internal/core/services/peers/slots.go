package peers

import (
	"fmt"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
)

// IBSS peer slots. Slot 0 holds the primary peer and must be occupied
// whenever any other slot is.

// CheckSlots verifies the slot-0 invariant.
func CheckSlots(slots []domain.PeerSlot) error {
	if len(slots) == 0 {
		return nil
	}
	if slots[0].Used {
		return nil
	}
	for i, s := range slots[1:] {
		if s.Used {
			return fmt.Errorf("%w: slot 0 empty while slot %d holds station %d", ErrInvariant, i+1, s.StationID)
		}
	}
	return nil
}

// FindSlot returns the index of the slot holding stationID, or -1.
func FindSlot(slots []domain.PeerSlot, stationID int) int {
	for i, s := range slots {
		if s.Used && s.StationID == stationID {
			return i
		}
	}
	return -1
}

// FindSlotByMAC returns the index of the slot holding mac, or -1.
func FindSlotByMAC(slots []domain.PeerSlot, mac domain.HWAddr) int {
	for i, s := range slots {
		if s.Used && s.MAC == mac {
			return i
		}
	}
	return -1
}

// CountSlots counts occupied slots.
func CountSlots(slots []domain.PeerSlot) int {
	n := 0
	for _, s := range slots {
		if s.Used {
			n++
		}
	}
	return n
}

// AddSlot places a peer in the first free slot and returns its index.
func AddSlot(slots []domain.PeerSlot, stationID int, mac domain.HWAddr) (int, error) {
	if !validID(stationID) {
		return -1, fmt.Errorf("%w: %d", ErrInvalidID, stationID)
	}
	if err := CheckSlots(slots); err != nil {
		return -1, err
	}
	if FindSlot(slots, stationID) >= 0 {
		return -1, fmt.Errorf("%w: %d", ErrInUse, stationID)
	}
	for i := range slots {
		if !slots[i].Used {
			slots[i] = domain.PeerSlot{StationID: stationID, MAC: mac, Used: true}
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d peers", ErrTableFull, len(slots))
}

// RemoveSlot clears the slot holding stationID. When slot 0 is cleared the
// next occupied slot is moved into it. Reports whether anything was removed.
func RemoveSlot(slots []domain.PeerSlot, stationID int) (bool, error) {
	if err := CheckSlots(slots); err != nil {
		return false, err
	}
	idx := FindSlot(slots, stationID)
	if idx < 0 {
		return false, nil
	}
	slots[idx] = domain.PeerSlot{}
	if idx != 0 {
		return true, nil
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Used {
			slots[0] = slots[i]
			slots[i] = domain.PeerSlot{}
			break
		}
	}
	return true, nil
}

// ClearSlots empties every slot and returns what was there.
func ClearSlots(slots []domain.PeerSlot) []domain.PeerSlot {
	var out []domain.PeerSlot
	for i := range slots {
		if slots[i].Used {
			out = append(out, slots[i])
		}
		slots[i] = domain.PeerSlot{}
	}
	return out
}
