package ldt

import "github.com/compat16/ldtkit/internal/format"

// AllocRun finds and reserves a run of count contiguous free slots,
// returning the selector of the run's first slot. It returns the null
// selector when count is zero or no run of the requested length exists.
//
// The scan is first-fit from FirstUsableIndex upward: the run counter
// resets to zero at every allocated slot and the first run long enough
// wins. This favors low, previously-freed regions to bound fragmentation
// over the table's lifetime, at the cost of possibly skipping a larger free
// run further up. Legacy callers observe this allocation order; keep it.
func (t *Table) AllocRun(count int) Selector {
	if count <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocRunLocked(count)
}

func (t *Table) allocRunLocked(count int) Selector {
	size := 0
	for i := FirstUsableIndex; i < TableSize; i++ {
		if t.isAllocatedLocked(i) {
			size = 0
			continue
		}
		size++
		if size < count {
			continue
		}
		first := i - count + 1
		for j := first; j <= i; j++ {
			t.markLocked(j)
		}
		return FromIndex(first)
	}
	return 0
}

// AllocArray reserves a selector run and presets every slot to the
// base-0/limit-1 data descriptor. The limit of 1 keeps a fresh,
// still-unconfigured entry distinguishable from the null/free state.
func (t *Table) AllocArray(count int) Selector {
	if count <= 0 {
		return 0
	}
	var d format.Descriptor
	d.SetBase(0)
	d.SetLimit(1)
	d.SetFlags(format.FlagsData)

	t.mu.Lock()
	defer t.mu.Unlock()
	sel := t.allocRunLocked(count)
	if sel == 0 {
		return 0
	}
	index := sel.Index()
	for i := 0; i < count; i++ {
		t.entries[index+i] = d
	}
	return sel
}

// CopySelector clones an existing selector's whole run into freshly
// allocated slots. A null source yields one uninitialized slot.
func (t *Table) CopySelector(src Selector) Selector {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 1
	if !src.IsNull() {
		count = t.spanCountLocked(src)
	}
	sel := t.allocRunLocked(count)
	if sel == 0 || src.IsNull() {
		return sel
	}
	for i := 0; i < count; i++ {
		t.entries[sel.Index()+i] = t.entries[src.Index()+i]
	}
	return sel
}

// Free releases one slot. The descriptor is wiped as defense against stale
// aliasing, and any execution context caching the selector in its segment
// registers has that cache reset to the null selector first. Freeing a
// selector pinned by a context is a caller bug and mutates nothing.
func (t *Table) Free(sel Selector) error {
	if err := checkIndex(sel); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	index := sel.Index()
	if !t.isAllocatedLocked(index) {
		return ErrFreeSelector
	}
	if t.pinnedLocked(index) {
		return ErrPinned
	}
	t.freeSlotLocked(index)
	return nil
}

// FreeRun releases count slots starting at sel, in increasing order.
// Already-free slots in the run are skipped, so releasing a block twice is
// harmless. If any slot in the run is pinned, nothing is freed.
func (t *Table) FreeRun(sel Selector, count int) error {
	if err := checkIndex(sel); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	index := sel.Index()
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

func (t *Table) spanCountLocked(sel Selector) int {
	index := sel.Index()
	if !t.isAllocatedLocked(index) {
		return 1
	}
	return int(t.entries[index].Limit()>>16) + 1
}

func (t *Table) freeRunLocked(index, count int) {
	last, ok := runEnd(index, count)
	if !ok {
		return
	}
	for i := index; i < last; i++ {
		if t.isAllocatedLocked(i) {
			t.freeSlotLocked(i)
		}
	}
}

func (t *Table) freeSlotLocked(index int) {
	t.neutralizeLocked(FromIndex(index))
	t.entries[index] = format.Descriptor{}
	t.clearLocked(index)
}

// runEnd bounds [index, index+count) to the table, rejecting nonsense runs.
func runEnd(index, count int) (int, bool) {
	if count <= 0 {
		return 0, false
	}
	last := index + count
	if last > TableSize {
		last = TableSize
	}
	return last, true
}
