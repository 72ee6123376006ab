package anchorstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (

	// Header layout
	//
	// .     | magic | ver | count | rangeLo | rangeHi | size | salt  | offset | migration |
	// .     | 0 - 2 |  3  | 4 - 7 | 8 -  15 | 16 - 23 |24  25|26 - 57|58 -  65| 66 -   73 |
	// bytes |   3   |  1  |   4   |    8    |    8    |   2  |  32   |    8   |   4 + 4   |
	//
	// All multi byte fields are little endian. The offsets of the leading
	// fields, through firstEntryOffset, can never change: they are the
	// cross version contract that lets any supported build locate the
	// magic, version and anchor count of any other.

	HeaderMagicFirstByte = 0
	HeaderMagicSize      = 3
	HeaderMagicEnd       = HeaderMagicFirstByte + HeaderMagicSize

	HeaderVersionFirstByte = HeaderMagicEnd
	HeaderVersionSize      = 1
	HeaderVersionEnd       = HeaderVersionFirstByte + HeaderVersionSize

	HeaderAnchorCountFirstByte = HeaderVersionEnd
	HeaderAnchorCountSize      = 4
	HeaderAnchorCountEnd       = HeaderAnchorCountFirstByte + HeaderAnchorCountSize

	HeaderRangeLoFirstByte = HeaderAnchorCountEnd
	HeaderRangeLoSize      = 8
	HeaderRangeLoEnd       = HeaderRangeLoFirstByte + HeaderRangeLoSize

	HeaderRangeHiFirstByte = HeaderRangeLoEnd
	HeaderRangeHiSize      = 8
	HeaderRangeHiEnd       = HeaderRangeHiFirstByte + HeaderRangeHiSize

	HeaderEntrySizeFirstByte = HeaderRangeHiEnd
	HeaderEntrySizeSize      = 2
	HeaderEntrySizeEnd       = HeaderEntrySizeFirstByte + HeaderEntrySizeSize

	HeaderSaltFirstByte = HeaderEntrySizeEnd
	HeaderSaltSize      = 32
	HeaderSaltEnd       = HeaderSaltFirstByte + HeaderSaltSize

	HeaderEntryOffsetFirstByte = HeaderSaltEnd
	HeaderEntryOffsetSize      = 8
	HeaderEntryOffsetEnd       = HeaderEntryOffsetFirstByte + HeaderEntryOffsetSize

	// HeaderFixedSize bounds the fields whose offsets are stable across
	// every supported version.
	HeaderFixedSize = HeaderEntryOffsetEnd

	// The migration fields only carry meaning for the intermediate layout
	// version. They are preserved verbatim so re-flushing a loaded header
	// never corrupts a store with a migration in progress.
	HeaderNewLayoutStartFirstByte     = HeaderFixedSize
	HeaderNewLayoutStartSize          = 4
	HeaderNewLayoutStartEnd           = HeaderNewLayoutStartFirstByte + HeaderNewLayoutStartSize
	HeaderMigrationBatchSizeFirstByte = HeaderNewLayoutStartEnd
	HeaderMigrationBatchSizeSize      = 4
	HeaderMigrationBatchSizeEnd       = HeaderMigrationBatchSizeFirstByte + HeaderMigrationBatchSizeSize

	// HeaderSize is the full serialized window read from and written to
	// address 0.
	HeaderSize = HeaderMigrationBatchSizeEnd
)

const (
	// Versions below the oldest use entry encodings that are no longer
	// understood, versions above the newest belong to a future format.
	// Both are fatal on load, nothing in between is recoverable.
	LayoutVersionOldest uint8 = 3
	LayoutVersionNewest uint8 = 5
	// LayoutVersionCurrent is assigned to freshly initialized stores.
	LayoutVersionCurrent = LayoutVersionNewest
)

var headerMagic = [3]byte{'I', 'I', 'C'}

// Salt is the random value mixed into anchor derived secrets by the host.
// The all zero value is the "unset" sentinel.
type Salt [32]byte

var emptySalt Salt

// Header is the fixed offset metadata record at the start of the region.
type Header struct {
	Version            uint8
	AnchorCount        uint32
	IDRangeLo          uint64
	IDRangeHi          uint64
	EntrySize          uint16
	Salt               Salt
	FirstEntryOffset   uint64
	NewLayoutStart     uint32
	MigrationBatchSize uint32
}

// NewHeader returns a header for a fresh store managing the anchor numbers
// in [idRangeLo, idRangeHi), at the current layout version with default
// geometry and no salt.
func NewHeader(idRangeLo, idRangeHi uint64) (Header, error) {
	if idRangeHi < idRangeLo {
		return Header{}, fmt.Errorf("%w: [%d, %d)", ErrAnchorRangeInvalid, idRangeLo, idRangeHi)
	}
	if idRangeHi-idRangeLo > DefaultRangeSize {
		return Header{}, fmt.Errorf(
			"%w: [%d, %d) (max %d entries)", ErrAnchorRangeTooLarge, idRangeLo, idRangeHi, DefaultRangeSize)
	}
	return Header{
		Version:          LayoutVersionCurrent,
		IDRangeLo:        idRangeLo,
		IDRangeHi:        idRangeHi,
		EntrySize:        DefaultEntrySize,
		FirstEntryOffset: EntryOffset,
	}, nil
}

func (h Header) MarshalBinary() ([]byte, error) {
	return EncodeHeader(&h), nil
}

func (h *Header) UnmarshalBinary(b []byte) error {
	return DecodeHeader(h, b)
}

// EncodeHeader encodes the header in the prescribed fixed offset format.
// The result is always exactly HeaderSize bytes.
func EncodeHeader(h *Header) []byte {
	b := make([]byte, HeaderSize)

	copy(b[HeaderMagicFirstByte:HeaderMagicEnd], headerMagic[:])
	b[HeaderVersionFirstByte] = h.Version
	binary.LittleEndian.PutUint32(b[HeaderAnchorCountFirstByte:HeaderAnchorCountEnd], h.AnchorCount)
	binary.LittleEndian.PutUint64(b[HeaderRangeLoFirstByte:HeaderRangeLoEnd], h.IDRangeLo)
	binary.LittleEndian.PutUint64(b[HeaderRangeHiFirstByte:HeaderRangeHiEnd], h.IDRangeHi)
	binary.LittleEndian.PutUint16(b[HeaderEntrySizeFirstByte:HeaderEntrySizeEnd], h.EntrySize)
	copy(b[HeaderSaltFirstByte:HeaderSaltEnd], h.Salt[:])
	binary.LittleEndian.PutUint64(b[HeaderEntryOffsetFirstByte:HeaderEntryOffsetEnd], h.FirstEntryOffset)
	binary.LittleEndian.PutUint32(b[HeaderNewLayoutStartFirstByte:HeaderNewLayoutStartEnd], h.NewLayoutStart)
	binary.LittleEndian.PutUint32(b[HeaderMigrationBatchSizeFirstByte:HeaderMigrationBatchSizeEnd], h.MigrationBatchSize)
	return b
}

// DecodeHeader decodes and validates a header window. Magic and version
// failures are fatal for the store: no field of a header that fails here
// may be used.
func DecodeHeader(h *Header, b []byte) error {
	if len(b) < HeaderSize {
		return ErrHeaderTooShort
	}
	if !bytes.Equal(b[HeaderMagicFirstByte:HeaderMagicEnd], headerMagic[:]) {
		return fmt.Errorf("%w: %q", ErrHeaderBadMagic, b[HeaderMagicFirstByte:HeaderMagicEnd])
	}
	version := b[HeaderVersionFirstByte]
	if version < LayoutVersionOldest {
		return fmt.Errorf("%w: version %d", ErrLayoutVersionTooOld, version)
	}
	if version > LayoutVersionNewest {
		return fmt.Errorf("%w: version %d", ErrLayoutVersionUnknown, version)
	}

	h.Version = version
	h.AnchorCount = binary.LittleEndian.Uint32(b[HeaderAnchorCountFirstByte:HeaderAnchorCountEnd])
	h.IDRangeLo = binary.LittleEndian.Uint64(b[HeaderRangeLoFirstByte:HeaderRangeLoEnd])
	h.IDRangeHi = binary.LittleEndian.Uint64(b[HeaderRangeHiFirstByte:HeaderRangeHiEnd])
	h.EntrySize = binary.LittleEndian.Uint16(b[HeaderEntrySizeFirstByte:HeaderEntrySizeEnd])
	copy(h.Salt[:], b[HeaderSaltFirstByte:HeaderSaltEnd])
	h.FirstEntryOffset = binary.LittleEndian.Uint64(b[HeaderEntryOffsetFirstByte:HeaderEntryOffsetEnd])
	h.NewLayoutStart = binary.LittleEndian.Uint32(b[HeaderNewLayoutStartFirstByte:HeaderNewLayoutStartEnd])
	h.MigrationBatchSize = binary.LittleEndian.Uint32(b[HeaderMigrationBatchSizeFirstByte:HeaderMigrationBatchSizeEnd])
	return nil
}

// RecordAddress returns the slot address for recordNumber under this
// header's geometry.
func (h *Header) RecordAddress(recordNumber uint32) uint64 {
	return RecordAddress(h.FirstEntryOffset, h.EntrySize, recordNumber)
}

// EntrySizeLimit returns the largest encoded entry a slot can hold.
func (h *Header) EntrySizeLimit() int {
	return EntrySizeLimit(h.EntrySize)
}

// UnusedMemoryStart returns the address of the first byte not assigned to
// an allocated anchor. The tail reserve guarantees this address exists
// even when the range is fully allocated.
func (h *Header) UnusedMemoryStart() uint64 {
	return h.RecordAddress(h.AnchorCount)
}
