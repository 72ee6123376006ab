// Package pagemem provides a flat, linearly addressable memory region that
// grows in fixed-size pages. It is the backing store for the anchorstore
// layout and deliberately mirrors the narrow host interface that layout is
// defined against: size in pages, monotonic growth, and strict offset
// addressed reads and writes.
//
// The strict Memory operations perform no partial transfers. Accessing any
// byte outside the allocated region will panic. Callers that need to work
// at the allocated boundary use [Reader] and [Writer], which truncate and
// grow respectively.
package pagemem

import "fmt"

// PageSize is the unit, in bytes, by which a Memory grows. Pages are never
// released.
const PageSize = 65536

// Memory is a byte addressable region sized in pages.
type Memory interface {
	// Size returns the number of currently allocated pages.
	Size() uint64
	// Grow allocates delta additional zeroed pages, returning the
	// previous page count. ok is false if the growth was refused, in
	// which case the region is unchanged.
	Grow(delta uint64) (uint64, bool)
	// Read fills dst from the bytes at offset. The full range must be
	// allocated, out of range will panic.
	Read(offset uint64, dst []byte)
	// Write copies src to the bytes at offset. The full range must be
	// allocated, out of range will panic. Write never grows the region.
	Write(offset uint64, src []byte)
}

// VolatileMemory is a process local, slice backed Memory. The zero value is
// an empty region that can grow without bound.
type VolatileMemory struct {
	data     []byte
	maxPages uint64
}

// NewVolatileMemory returns an empty region with no growth limit.
func NewVolatileMemory() *VolatileMemory {
	return &VolatileMemory{}
}

// NewBoundedMemory returns an empty region that refuses to grow beyond
// maxPages. Used to exercise growth failure handling.
func NewBoundedMemory(maxPages uint64) *VolatileMemory {
	return &VolatileMemory{maxPages: maxPages}
}

func (m *VolatileMemory) Size() uint64 {
	return uint64(len(m.data)) / PageSize
}

func (m *VolatileMemory) Grow(delta uint64) (uint64, bool) {
	prev := m.Size()
	if m.maxPages != 0 && prev+delta > m.maxPages {
		return prev, false
	}
	m.data = append(m.data, make([]byte, delta*PageSize)...)
	return prev, true
}

func (m *VolatileMemory) Read(offset uint64, dst []byte) {
	end := offset + uint64(len(dst))
	if end > uint64(len(m.data)) {
		panic(fmt.Sprintf("pagemem: read of [%d, %d) exceeds the %d allocated bytes", offset, end, len(m.data)))
	}
	copy(dst, m.data[offset:end])
}

func (m *VolatileMemory) Write(offset uint64, src []byte) {
	end := offset + uint64(len(src))
	if end > uint64(len(m.data)) {
		panic(fmt.Sprintf("pagemem: write of [%d, %d) exceeds the %d allocated bytes", offset, end, len(m.data)))
	}
	copy(m.data[offset:end], src)
}
