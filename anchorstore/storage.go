package anchorstore

import (
	"encoding/binary"
	"fmt"

	"github.com/datatrails/go-datatrails-common/cbor"
	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/forestrie/go-anchorstore/pagemem"
)

// Storage owns the header and the memory handle for one store. It is the
// only writer of either for the life of the process; the host serializes
// all calls, so no internal locking is used.
type Storage struct {
	header Header
	memory pagemem.Memory
	codec  cbor.CBORCodec
	log    logger.Logger
}

// NewStorage creates a store managing the anchor numbers in
// [idRangeLo, idRangeHi) over the given memory. Nothing is written until
// Flush, callers wanting immediate persistence must flush explicitly.
func NewStorage(log logger.Logger, memory pagemem.Memory, idRangeLo, idRangeHi uint64) (*Storage, error) {
	header, err := NewHeader(idRangeLo, idRangeHi)
	if err != nil {
		return nil, err
	}
	codec, err := NewCBORCodec()
	if err != nil {
		return nil, err
	}
	return &Storage{header: header, memory: memory, codec: codec, log: log}, nil
}

// FromMemory attaches to a store previously flushed to the given memory.
// ErrMemoryEmpty is returned if the memory has no allocated pages yet. Any
// header validation failure is fatal for the memory and no Storage is
// returned.
func FromMemory(log logger.Logger, memory pagemem.Memory) (*Storage, error) {
	if memory.Size() < 1 {
		return nil, ErrMemoryEmpty
	}

	b := make([]byte, HeaderSize)
	memory.Read(0, b)

	var header Header
	if err := DecodeHeader(&header, b); err != nil {
		return nil, err
	}
	codec, err := NewCBORCodec()
	if err != nil {
		return nil, err
	}
	log.Debugf(
		"attached storage: layout version %d, %d anchors in [%d, %d)",
		header.Version, header.AnchorCount, header.IDRangeLo, header.IDRangeHi)
	return &Storage{header: header, memory: memory, codec: codec, log: log}, nil
}

// Flush writes the serialized header to address 0, growing the memory by
// one page if it was previously empty. The write never extends past the
// first page, so growth failure here means the memory is unusable.
func (s *Storage) Flush() error {
	w := pagemem.NewWriter(s.memory, 0)
	if _, err := w.Write(EncodeHeader(&s.header)); err != nil {
		return fmt.Errorf("failed to flush storage header: %w", err)
	}
	return nil
}

// Salt returns the stored salt. ok is false while the salt is unset.
func (s *Storage) Salt() (Salt, bool) {
	if s.header.Salt == emptySalt {
		return Salt{}, false
	}
	return s.header.Salt, true
}

// SetSalt records the salt and immediately flushes the header.
func (s *Storage) SetSalt(salt Salt) error {
	s.header.Salt = salt
	return s.Flush()
}

// AnchorCount returns the number of anchors allocated so far.
func (s *Storage) AnchorCount() uint32 {
	return s.header.AnchorCount
}

// Version returns the stored layout version.
func (s *Storage) Version() uint8 {
	return s.header.Version
}

// AnchorRange returns the configured [lo, hi) anchor number interval.
func (s *Storage) AnchorRange() (uint64, uint64) {
	return s.header.IDRangeLo, s.header.IDRangeHi
}

// EntrySizeLimit returns the largest encoded entry a slot can hold.
func (s *Storage) EntrySizeLimit() int {
	return s.header.EntrySizeLimit()
}

// RecordAddress returns the slot address for recordNumber. No bounds are
// checked against the allocated count.
func (s *Storage) RecordAddress(recordNumber uint32) uint64 {
	return s.header.RecordAddress(recordNumber)
}

// UnusedMemoryStart returns the address of the first byte past the highest
// allocated slot.
func (s *Storage) UnusedMemoryStart() uint64 {
	return s.header.UnusedMemoryStart()
}

// AllocateAnchor assigns and returns the next anchor number, flushing the
// updated count. Allocation claims the slot at the previous unused memory
// start, invalidating any persistent state frame written there.
func (s *Storage) AllocateAnchor() (uint64, error) {
	anchor := s.header.IDRangeLo + uint64(s.header.AnchorCount)
	if anchor >= s.header.IDRangeHi {
		return 0, fmt.Errorf("%w: [%d, %d)", ErrRangeFull, s.header.IDRangeLo, s.header.IDRangeHi)
	}
	s.header.AnchorCount++
	if err := s.Flush(); err != nil {
		s.header.AnchorCount--
		return 0, err
	}
	s.log.Debugf("allocated anchor %d (%d of %d)",
		anchor, s.header.AnchorCount, s.header.IDRangeHi-s.header.IDRangeLo)
	return anchor, nil
}

// allocatedRecordNumber maps an anchor number to its slot record number,
// rejecting numbers outside the configured range or not yet allocated.
func (s *Storage) allocatedRecordNumber(anchor uint64) (uint32, error) {
	if anchor < s.header.IDRangeLo || anchor >= s.header.IDRangeHi {
		return 0, &AnchorOutOfRangeError{Anchor: anchor, RangeLo: s.header.IDRangeLo, RangeHi: s.header.IDRangeHi}
	}
	recordNumber := uint32(anchor - s.header.IDRangeLo)
	if recordNumber >= s.header.AnchorCount {
		return 0, fmt.Errorf("%w: %d", ErrAnchorUnallocated, anchor)
	}
	return recordNumber, nil
}

// WriteEntry stores the encoded entry in the slot for anchor, prefixed
// with its 2 byte little endian length. The entry bytes are opaque at this
// layer, interpretation belongs to the caller.
func (s *Storage) WriteEntry(anchor uint64, entry []byte) error {
	recordNumber, err := s.allocatedRecordNumber(anchor)
	if err != nil {
		return err
	}
	if limit := s.header.EntrySizeLimit(); len(entry) > limit {
		return &EntrySizeExceededError{Size: len(entry), Limit: limit}
	}

	b := make([]byte, entryLenBytes+len(entry))
	binary.LittleEndian.PutUint16(b[:entryLenBytes], uint16(len(entry)))
	copy(b[entryLenBytes:], entry)

	w := pagemem.NewWriter(s.memory, s.header.RecordAddress(recordNumber))
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to write entry for anchor %d: %w", anchor, err)
	}
	return nil
}

// ReadEntry returns the encoded entry stored in the slot for anchor. A
// slot whose page was grown but never written reads back as an empty
// entry, pages are zeroed on growth. If the slot's page was never grown
// the anchor is reported as unallocated.
func (s *Storage) ReadEntry(anchor uint64) ([]byte, error) {
	recordNumber, err := s.allocatedRecordNumber(anchor)
	if err != nil {
		return nil, err
	}
	address := s.header.RecordAddress(recordNumber)

	r := pagemem.NewReader(s.memory, address)
	lenBuf := make([]byte, entryLenBytes)
	n, err := r.Read(lenBuf)
	if err != nil || n != entryLenBytes {
		// the slot has been allocated but its page was never written
		return nil, fmt.Errorf("%w: %d", ErrAnchorUnallocated, anchor)
	}

	size := int(binary.LittleEndian.Uint16(lenBuf))
	if limit := s.header.EntrySizeLimit(); size > limit {
		return nil, &MalformedEntryError{Anchor: anchor, Size: size, Limit: limit}
	}

	entry := make([]byte, size)
	n, err = r.Read(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry for anchor %d: %w", anchor, err)
	}
	if n != size {
		maxAddress := address + entryLenBytes + uint64(n)
		return nil, fmt.Errorf("failed to read entry for anchor %d: %w", anchor,
			&pagemem.OutOfBounds{MaxAddress: maxAddress, AttemptedAddress: maxAddress + 1})
	}
	return entry, nil
}
