package anchorstore

import (
	"encoding/binary"
	"fmt"

	"github.com/forestrie/go-anchorstore/pagemem"
)

// The persistent state frame bridges a single restart. It is written past
// the highest allocated slot so that arbitrarily sized snapshots never
// collide with the slot region, at the cost of being overwritten by the
// next anchor allocation.
//
//	unusedMemoryStart: magic "IIPS"  4 bytes
//	                   length        8 bytes little endian
//	                   encoded state length bytes

// WritePersistentState frames and writes the CBOR encoding of state at the
// first unused slot address, growing the memory as needed. Encoding is
// infallible for the snapshot shapes this layer is used with; the tail
// reserve makes growth reliable for any reasonably sized snapshot, a
// refusal at the host level is fatal and surfaces unwrapped.
func (s *Storage) WritePersistentState(state any) error {
	address := s.header.UnusedMemoryStart()

	encoded, err := s.codec.MarshalCBOR(state)
	if err != nil {
		return fmt.Errorf("failed to encode persistent state: %w", err)
	}

	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], uint64(len(encoded)))

	w := pagemem.NewWriter(s.memory, address)
	if _, err = w.Write(persistentStateMagic[:]); err != nil {
		return err
	}
	if _, err = w.Write(length[:]); err != nil {
		return err
	}
	if _, err = w.Write(encoded); err != nil {
		return err
	}
	s.log.Debugf("wrote %d byte persistent state at address %d", len(encoded), address)
	return nil
}

// ReadPersistentState locates the frame at the first unused slot address
// and decodes its payload into state.
//
// ErrPersistentStateNotFound is the common, expected result: nothing was
// ever written there, or the frame has since been overwritten by a slot.
// The full width magic check keeps stale slot bytes from being mistaken
// for a frame. A *pagemem.OutOfBounds error means the magic was present
// but the memory ends mid frame, it carries the available versus attempted
// addresses. A decode failure on a complete frame wraps
// ErrPersistentStateDecode.
func (s *Storage) ReadPersistentState(state any) error {
	address := s.header.UnusedMemoryStart()

	if address > s.memory.Size()*pagemem.PageSize {
		// the address where the frame would start is not allocated yet,
		// do not attempt a read
		return ErrPersistentStateNotFound
	}

	r := pagemem.NewReader(s.memory, address)

	var magic [4]byte
	n, err := r.Read(magic[:])
	if err != nil || n != len(magic) || magic != persistentStateMagic {
		return ErrPersistentStateNotFound
	}

	var length [8]byte
	n, err = r.Read(length[:])
	if err != nil {
		return err
	}
	if n != len(length) {
		maxAddress := address + uint64(len(magic)) + uint64(n)
		return &pagemem.OutOfBounds{MaxAddress: maxAddress, AttemptedAddress: maxAddress + 1}
	}

	size := binary.LittleEndian.Uint64(length[:])

	// The length field is untrusted, bound the allocation by the bytes
	// actually addressable. A claim past the allocated end could never be
	// satisfied, it is the same truncation the content read would find.
	contentStart := address + uint64(len(magic)) + uint64(len(length))
	if available := s.memory.Size()*pagemem.PageSize - contentStart; size > available {
		maxAddress := contentStart + available
		return &pagemem.OutOfBounds{MaxAddress: maxAddress, AttemptedAddress: maxAddress + 1}
	}

	data := make([]byte, size)
	if _, err = r.Read(data); err != nil {
		return err
	}

	if err = s.codec.UnmarshalInto(data, state); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistentStateDecode, err)
	}
	return nil
}
