package anchorstore

import (
	"github.com/forestrie/go-anchorstore/pagemem"
)

const (
	// These constants fix the slot region geometry. All addresses in the
	// store are derived from them plus the header fields, so any change
	// here is a layout version change.

	// EntryOffset is where the slot region starts. The first page is
	// reserved for the header, the second gives flex for future header
	// growth without a data migration.
	EntryOffset = 2 * pagemem.PageSize
	// DefaultEntrySize is the fixed slot width for freshly initialized
	// stores.
	DefaultEntrySize uint16 = 4096

	gib = 1 << 30
	// StableMemorySize is the assumed total addressable region.
	StableMemorySize uint64 = 32 * gib
	// StableMemoryReserve is held back past the last possible slot, both
	// for future features and so the persistent state frame always has
	// addressable space after a full slot region.
	StableMemoryReserve uint64 = 8 * gib / 10

	// entryLenBytes is the width of the length prefix inside each slot.
	entryLenBytes = 2
)

// DefaultRangeSize is the maximum number of anchors a single store can
// hold: the region past the entry offset, less the tail reserve, divided
// into default sized slots.
const DefaultRangeSize = (StableMemorySize - EntryOffset - StableMemoryReserve) / uint64(DefaultEntrySize)

var persistentStateMagic = [4]byte{'I', 'I', 'P', 'S'}

// RecordAddress returns the byte address of the slot for recordNumber
// given the region geometry. It is pure arithmetic, no bounds are checked
// against the allocated anchor count. The 64 bit offset space is wide
// enough for every record number up to the configured range upper bound.
func RecordAddress(firstEntryOffset uint64, entrySize uint16, recordNumber uint32) uint64 {
	return firstEntryOffset + uint64(recordNumber)*uint64(entrySize)
}

// EntrySizeLimit returns the largest encoded entry that fits in a slot of
// entrySize bytes, allowing for the length prefix.
func EntrySizeLimit(entrySize uint16) int {
	return int(entrySize) - entryLenBytes
}
