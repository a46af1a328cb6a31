package ldt

import "github.com/compat16/ldtkit/internal/format"

// Block operations manage runs of consecutive selectors jointly windowing
// one linear region larger than a single segment's 64KiB span. A block is
// addressed by its first selector; the first slot's descriptor carries the
// full remaining limit of the region, so the slot count is recoverable
// from it alone.
//
// Each operation is a single critical section: slot marking and descriptor
// writes happen under one lock hold, so no caller can observe a live slot
// carrying the free-pattern descriptor or a first-slot limit that
// disagrees with the run actually marked in the bitmap.

// AllocBlock reserves a block of selectors windowing [base, base+size) and
// returns its first selector. A zero size or an exhausted table yields the
// null selector; on failure no slot is left allocated.
func (t *Table) AllocBlock(base, size uint32, flags format.Flags) Selector {
	if size == 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	sel := t.allocRunLocked(spanSlots(size))
	if sel != 0 {
		t.setSpanLocked(sel.Index(), base, size, flags)
	}
	return sel
}

// FreeBlock releases every selector of the block, deriving the slot count
// from the first descriptor under the same lock hold that clears the
// slots. Freeing a null or already-released block selector is a no-op; a
// pinned slot anywhere in the run blocks the whole release.
func (t *Table) FreeBlock(sel Selector) error {
	if sel.IsNull() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	index := sel.Index()
	if !t.isAllocatedLocked(index) {
		return nil
	}
	count := t.spanCountLocked(sel)
	last, ok := runEnd(index, count)
	if !ok {
		return ErrInvalidSelector
	}
	for i := index; i < last; i++ {
		if t.isAllocatedLocked(i) && t.pinnedLocked(i) {
			return ErrPinned
		}
	}
	t.freeRunLocked(index, count)
	return nil
}

// ResizeBlock changes the block to window [base, base+size) and returns
// the selector addressing it.
//
// Growing claims the slots immediately following the block when they are
// free, so callers holding the old selector keep a valid handle. When they
// are occupied (or the table ends) the block is relocated and the returned
// selector differs; the old value is then invalid. Shrinking frees the
// trailing slots and keeps the selector. The original descriptor flags are
// re-applied across the resulting run, and the descriptors are rewritten
// before the lock is released.
//
// A zero size is treated as one byte, matching the legacy entry point this
// implements. A free or null selector yields the null selector.
func (t *Table) ResizeBlock(sel Selector, base, size uint32) Selector {
	if checkIndex(sel) != nil {
		return 0
	}
	if size == 0 {
		size = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	index := sel.Index()
	if !t.isAllocatedLocked(index) {
		return 0
	}
	flags := t.entries[index].Flags()
	oldCount := t.spanCountLocked(sel)
	newCount := spanSlots(size)

	switch {
	case newCount > oldCount:
		inPlace := index+newCount <= TableSize
		if inPlace {
			for i := oldCount; i < newCount; i++ {
				if t.isAllocatedLocked(index + i) {
					inPlace = false
					break
				}
			}
		}
		if inPlace {
			for i := oldCount; i < newCount; i++ {
				t.markLocked(index + i)
			}
		} else {
			t.freeRunLocked(index, oldCount)
			sel = t.allocRunLocked(newCount)
		}
	case newCount < oldCount:
		t.freeRunLocked(index+newCount, oldCount-newCount)
	}
	if sel == 0 {
		return 0
	}
	t.setSpanLocked(sel.Index(), base, size, flags)
	return sel
}

// setSpanLocked writes the descriptors of a freshly sized run: per slot
// the base advances by one segment span and the limit shrinks by the
// same, so the first slot always encodes the block's full remaining span.
func (t *Table) setSpanLocked(index int, base, size uint32, flags format.Flags) {
	var d format.Descriptor
	d.SetBase(base)
	d.SetLimit(size - 1)
	d.SetFlags(flags)
	// A one-byte region at base 0 would encode as 0/0; force limit 1 to
	// keep the entry distinguishable from a free slot.
	if base == 0 && size == 1 {
		d.SetLimit(1)
	}
	count := spanSlots(size)
	for i := 0; ; i++ {
		t.entries[index+i] = d
		if i+1 == count {
			return
		}
		d.SetBase(d.Base() + format.SegmentSpan)
		d.SetLimit(d.Limit() - format.SegmentSpan)
	}
}

// spanSlots returns the number of selectors needed to cover size bytes.
func spanSlots(size uint32) int {
	return int((uint64(size) + format.SegmentSpan - 1) / format.SegmentSpan)
}
