package ldt

import (
	"sync"

	"github.com/compat16/ldtkit/internal/format"
)

const (
	// TableSize is the fixed slot capacity of the descriptor table.
	TableSize = 8192

	// FirstUsableIndex is the lowest slot index the allocator will hand
	// out. The slots below it are reserved for the compatibility layer's
	// own fixed segments, and slot 0 must stay permanently free so the
	// null selector never resolves.
	FirstUsableIndex = 512
)

const bitsPerWord = 64

// Table is the process-wide descriptor table. Every emulated execution
// context references the same table; one lock serializes all slot-state
// mutation so no two callers can be handed overlapping selector runs and no
// reader can observe a half-written descriptor.
//
// The allocation bitmap is the sole authority on whether a slot's
// descriptor is live. Freeing wipes the descriptor, so a stale selector can
// never be silently reinterpreted as a live window over reused memory.
type Table struct {
	mu        sync.Mutex
	entries   [TableSize]format.Descriptor
	allocated [TableSize / bitsPerWord]uint64
	contexts  []*Context
}

// NewTable creates an empty descriptor table.
func NewTable() *Table {
	return &Table{}
}

// checkIndex validates that sel addresses a table slot at all.
func checkIndex(sel Selector) error {
	if sel.IsNull() {
		return ErrInvalidSelector
	}
	if sel.Index() >= TableSize {
		return ErrInvalidSelector
	}
	return nil
}

func (t *Table) isAllocatedLocked(index int) bool {
	return t.allocated[index/bitsPerWord]&(1<<(index%bitsPerWord)) != 0
}

func (t *Table) markLocked(index int) {
	t.allocated[index/bitsPerWord] |= 1 << (index % bitsPerWord)
}

func (t *Table) clearLocked(index int) {
	t.allocated[index/bitsPerWord] &^= 1 << (index % bitsPerWord)
}

// IsAllocated reports whether the selector's slot is live. The null
// selector and out-of-range values report false.
func (t *Table) IsAllocated(sel Selector) bool {
	if checkIndex(sel) != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isAllocatedLocked(sel.Index())
}

// Entry returns the descriptor at the selector's slot. Querying a free or
// out-of-range selector fails loudly; legacy code that relied on undefined
// results must go through an execution context instead.
func (t *Table) Entry(sel Selector) (format.Descriptor, error) {
	if err := checkIndex(sel); err != nil {
		return format.Descriptor{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entryLocked(sel)
}

func (t *Table) entryLocked(sel Selector) (format.Descriptor, error) {
	index := sel.Index()
	if !t.isAllocatedLocked(index) {
		return format.Descriptor{}, ErrFreeSelector
	}
	return t.entries[index], nil
}

// SetEntry installs a descriptor at an allocated slot. A descriptor with
// base and limit both zero is rejected: that pattern is indistinguishable
// from the free state.
func (t *Table) SetEntry(sel Selector, d format.Descriptor) error {
	if err := checkIndex(sel); err != nil {
		return err
	}
	if d.Base() == 0 && d.Limit() == 0 {
		return ErrInvalidEntry
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setEntryLocked(sel, d)
}

func (t *Table) setEntryLocked(sel Selector, d format.Descriptor) error {
	index := sel.Index()
	if !t.isAllocatedLocked(index) {
		return ErrFreeSelector
	}
	t.entries[index] = d
	return nil
}

// Base returns the linear base address of the selector's segment.
func (t *Table) Base(sel Selector) (uint32, error) {
	d, err := t.Entry(sel)
	if err != nil {
		return 0, err
	}
	return d.Base(), nil
}

// SetBase rewrites only the base of the selector's descriptor.
func (t *Table) SetBase(sel Selector, base uint32) error {
	return t.update(sel, func(d *format.Descriptor) {
		d.SetBase(base)
	})
}

// Limit returns the highest valid offset within the selector's segment.
func (t *Table) Limit(sel Selector) (uint32, error) {
	d, err := t.Entry(sel)
	if err != nil {
		return 0, err
	}
	return d.Limit(), nil
}

// SetLimit rewrites only the limit of the selector's descriptor.
func (t *Table) SetLimit(sel Selector, limit uint32) error {
	return t.update(sel, func(d *format.Descriptor) {
		d.SetLimit(limit)
	})
}

// AccessRights returns the selector's raw rights bytes for callers that
// must expose descriptor internals verbatim.
func (t *Table) AccessRights(sel Selector) (uint16, error) {
	d, err := t.Entry(sel)
	if err != nil {
		return 0, err
	}
	return d.AccessRights(), nil
}

// SetAccessRights installs caller-supplied rights bytes on the selector's
// descriptor.
func (t *Table) SetAccessRights(sel Selector, rights uint16) error {
	return t.update(sel, func(d *format.Descriptor) {
		d.SetAccessRights(rights)
	})
}

// AdvanceBase adds delta to the base of the descriptor addressed by a
// segmented pointer. Legacy huge-pointer arithmetic steps through regions
// larger than one segment this way.
func (t *Table) AdvanceBase(p format.SegPtr, delta uint32) error {
	return t.update(Selector(p.Sel()), func(d *format.Descriptor) {
		d.SetBase(d.Base() + delta)
	})
}

// update applies fn to the selector's descriptor under the table lock.
func (t *Table) update(sel Selector, fn func(*format.Descriptor)) error {
	if err := checkIndex(sel); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	index := sel.Index()
	if !t.isAllocatedLocked(index) {
		return ErrFreeSelector
	}
	fn(&t.entries[index])
	return nil
}

// SpanCount derives the number of selectors covering a block from the
// first slot's limit. Free slots report a single-selector span.
func (t *Table) SpanCount(sel Selector) int {
	limit, err := t.Limit(sel)
	if err != nil {
		return 1
	}
	return int(limit>>16) + 1
}
