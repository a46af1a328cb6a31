// Package linmem supplies the flat linear memory the selector table windows
// into. It stands in for the host-level allocator: callers receive 32-bit
// linear addresses, and segment descriptors are based at those addresses.
//
// Addresses below 0x10000 are never handed out. The legacy compatibility
// layer treats that range as already-segmented, and a live descriptor must
// never end up with base 0 (ambiguous with the null/free state).
package linmem

import (
	"fmt"
	"sync"

	"github.com/compat16/ldtkit/internal/buf"
)

// LowRangeTop is the first linear address the arena will allocate. The
// range below it belongs to the legacy address space.
const LowRangeTop = 0x10000

const allocAlign = 16

// Arena is a bump allocator over one contiguous linear region. On unix the
// region is an anonymous mapping; elsewhere it is ordinary heap memory.
type Arena struct {
	mu      sync.Mutex
	data    []byte
	next    uint32
	release func() error
}

// New creates an arena of the given size in bytes. The usable range starts
// at LowRangeTop, so size must exceed it.
func New(size int) (*Arena, error) {
	if size <= LowRangeTop {
		return nil, fmt.Errorf("linmem: arena size %d not above low range (%d)", size, LowRangeTop)
	}
	if size > int(^uint32(0)) {
		return nil, fmt.Errorf("linmem: arena size %d exceeds 32-bit address space", size)
	}
	data, release, err := reserve(size)
	if err != nil {
		return nil, fmt.Errorf("linmem: %w", err)
	}
	return &Arena{
		data:    data,
		next:    LowRangeTop,
		release: release,
	}, nil
}

// Alloc hands out a linear address for size bytes. The region is zeroed.
func (a *Arena) Alloc(size uint32) (uint32, error) {
	if size == 0 {
		return 0, fmt.Errorf("linmem: %w", ErrBadSize)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	addr := a.next
	end, ok := buf.AddOverflowSafe(int(addr), int(size))
	if !ok || end > len(a.data) {
		return 0, fmt.Errorf("linmem: %w (%d bytes)", ErrExhausted, size)
	}
	a.next = uint32((end + allocAlign - 1) &^ (allocAlign - 1))
	if int(a.next) > len(a.data) {
		a.next = uint32(len(a.data))
	}
	return addr, nil
}

// View returns the memory window [base, base+length) or ok = false when the
// range falls outside the arena.
func (a *Arena) View(base, length uint32) ([]byte, bool) {
	return buf.Slice(a.data, int(base), int(length))
}

// Size returns the total arena size in bytes.
func (a *Arena) Size() uint32 {
	return uint32(len(a.data))
}

// Close releases the backing region. The arena must not be used afterwards.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.release == nil {
		return nil
	}
	err := a.release()
	a.release = nil
	a.data = nil
	return err
}
