package pagemem

import (
	"errors"
	"fmt"
)

// ErrGrowFailed is returned by Writer when the underlying memory refuses to
// allocate the pages needed to complete a write.
var ErrGrowFailed = errors.New("cannot grow memory to complete the write")

// OutOfBounds reports a read that started at or beyond the allocated end of
// a memory region. MaxAddress is the first address past the allocated
// bytes, AttemptedAddress is the first address the caller tried to read
// beyond it.
type OutOfBounds struct {
	MaxAddress       uint64
	AttemptedAddress uint64
}

func (e *OutOfBounds) Error() string {
	return fmt.Sprintf("out of bounds: %d bytes allocated, attempted access at address %d", e.MaxAddress, e.AttemptedAddress)
}

// Reader reads sequentially from a Memory starting at a byte offset. Reads
// that run past the allocated end are truncated and report the short count.
// A Reader never grows the memory.
type Reader struct {
	mem    Memory
	offset uint64
}

func NewReader(mem Memory, offset uint64) *Reader {
	return &Reader{mem: mem, offset: offset}
}

// Read implements io.Reader over the allocated bytes. A read starting at or
// past the allocated end fails with *OutOfBounds rather than returning 0
// bytes, so that callers can distinguish "nothing allocated here" from a
// zero length request.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	limit := r.mem.Size() * PageSize
	if r.offset >= limit {
		return 0, &OutOfBounds{MaxAddress: limit, AttemptedAddress: r.offset}
	}
	n := uint64(len(p))
	if available := limit - r.offset; n > available {
		n = available
	}
	r.mem.Read(r.offset, p[:n])
	r.offset += n
	return int(n), nil
}

// Writer writes sequentially to a Memory starting at a byte offset, growing
// the memory page by page as required.
type Writer struct {
	mem    Memory
	offset uint64
}

func NewWriter(mem Memory, offset uint64) *Writer {
	return &Writer{mem: mem, offset: offset}
}

// Write implements io.Writer. The memory is grown, if necessary, before any
// bytes are copied, so a failed write leaves the previous contents intact.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end := w.offset + uint64(len(p))
	if allocated := w.mem.Size() * PageSize; end > allocated {
		pages := (end - allocated + PageSize - 1) / PageSize
		if _, ok := w.mem.Grow(pages); !ok {
			return 0, fmt.Errorf("%w: %d additional pages refused", ErrGrowFailed, pages)
		}
	}
	w.mem.Write(w.offset, p)
	w.offset = end
	return len(p), nil
}
