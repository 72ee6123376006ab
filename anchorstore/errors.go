package anchorstore

import (
	"errors"
	"fmt"
)

// Layout errors. All of these are unrecoverable: a header that fails to
// validate means every subsequent address computation would be against a
// misunderstood layout, so callers are expected to propagate them fatally
// rather than retry or fall back.
var (
	ErrAnchorRangeInvalid   = errors.New("improper anchor range, the lower bound must not exceed the upper")
	ErrAnchorRangeTooLarge  = errors.New("anchor range is too large for a single store")
	ErrHeaderTooShort       = errors.New("too few bytes to hold a complete storage header")
	ErrHeaderBadMagic       = errors.New("storage header: invalid magic")
	ErrLayoutVersionTooOld  = errors.New("layout version is no longer supported: either reinstall (wiping the memory) or migrate using a previous build")
	ErrLayoutVersionUnknown = errors.New("unsupported layout version")
)

// ErrMemoryEmpty distinguishes attaching to memory that has never been
// written from a corrupt header. It is not a failure of the memory.
var ErrMemoryEmpty = errors.New("the memory has no allocated pages, no store is present")

// ErrRangeFull is returned by AllocateAnchor once every number in the
// configured range has been assigned.
var ErrRangeFull = errors.New("the anchor range is fully allocated")

// ErrAnchorUnallocated is returned for entry reads and writes addressing a
// number inside the configured range that has not been allocated yet.
var ErrAnchorUnallocated = errors.New("anchor has not been allocated")

// Persistent state errors. ErrPersistentStateNotFound is the expected
// result on most restarts, nothing exceptional. A decode failure is kept
// distinct from truncation (*pagemem.OutOfBounds) because it signals a
// content version mismatch rather than a shortened region.
var (
	ErrPersistentStateNotFound = errors.New("no persistent state found")
	ErrPersistentStateDecode   = errors.New("failed to decode persistent state")
)

// AnchorOutOfRangeError reports an anchor number outside the configured
// [RangeLo, RangeHi) interval of the store.
type AnchorOutOfRangeError struct {
	Anchor  uint64
	RangeLo uint64
	RangeHi uint64
}

func (e *AnchorOutOfRangeError) Error() string {
	return fmt.Sprintf("anchor %d is out of range [%d, %d)", e.Anchor, e.RangeLo, e.RangeHi)
}

// EntrySizeExceededError reports an entry too large for its slot.
type EntrySizeExceededError struct {
	Size  int
	Limit int
}

func (e *EntrySizeExceededError) Error() string {
	return fmt.Sprintf("attempted to store an entry of size %d which is larger than the max allowed entry size %d", e.Size, e.Limit)
}

// MalformedEntryError reports a slot whose stored length prefix is not
// consistent with the slot geometry.
type MalformedEntryError struct {
	Anchor uint64
	Size   int
	Limit  int
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("entry for anchor %d claims %d bytes, exceeding the %d byte slot limit", e.Anchor, e.Size, e.Limit)
}
