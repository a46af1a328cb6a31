package ldt

import (
	"errors"
	"fmt"

	"github.com/compat16/ldtkit/internal/format"
)

// NumCachedRegs is the number of segment registers an execution context
// keeps loaded with table selectors while it runs.
const NumCachedRegs = 2

// EntrySource answers descriptor queries for a context whose table state
// lives with a remote owner (for example behind a process boundary). The
// allocated result distinguishes "the owner has no allocation at that
// slot" from transport or handle failure.
type EntrySource interface {
	DescriptorEntry(index int) (d format.Descriptor, allocated bool, err error)
}

// Context is one emulated execution context attached to the shared table.
// Its cached segment registers are weak references: the table resets them
// to the null selector when the selector they hold is freed, because the
// legacy context cannot be interrupted to repair a dangling segment
// register itself.
type Context struct {
	table  *Table
	remote EntrySource
	regs   [NumCachedRegs]Selector
	pinned map[int]struct{}
}

// NewContext attaches a new local execution context to the table.
func (t *Table) NewContext() *Context {
	return t.newContext(nil)
}

// NewRemoteContext attaches a context whose descriptor state is owned
// remotely and queried through src.
func (t *Table) NewRemoteContext(src EntrySource) *Context {
	return t.newContext(src)
}

func (t *Table) newContext(src EntrySource) *Context {
	c := &Context{
		table:  t,
		remote: src,
		pinned: make(map[int]struct{}),
	}
	t.mu.Lock()
	t.contexts = append(t.contexts, c)
	t.mu.Unlock()
	return c
}

// Detach unregisters the context. Its cached registers stop being
// neutralized and its pins are dropped.
func (c *Context) Detach() {
	t := c.table
	if t == nil {
		return
	}
	t.mu.Lock()
	for i, other := range t.contexts {
		if other == c {
			t.contexts = append(t.contexts[:i], t.contexts[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	c.table = nil
}

// SetCachedReg loads a selector into one of the context's cached segment
// registers.
func (c *Context) SetCachedReg(reg int, sel Selector) {
	if reg < 0 || reg >= NumCachedRegs || c.table == nil {
		return
	}
	c.table.mu.Lock()
	c.regs[reg] = sel
	c.table.mu.Unlock()
}

// CachedReg returns the selector currently loaded in a cached register.
// A register whose selector was freed reads back as the null selector.
func (c *Context) CachedReg(reg int) Selector {
	if reg < 0 || reg >= NumCachedRegs || c.table == nil {
		return 0
	}
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	return c.regs[reg]
}

// Pin protects a selector from being freed while this context depends on
// it. Free reports ErrPinned instead of tearing the segment down.
func (c *Context) Pin(sel Selector) error {
	if err := checkIndex(sel); err != nil {
		return err
	}
	t := c.table
	if t == nil {
		return ErrBadContext
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isAllocatedLocked(sel.Index()) {
		return ErrFreeSelector
	}
	c.pinned[sel.Index()] = struct{}{}
	return nil
}

// Unpin releases a pin. Unpinning a selector that was never pinned is a
// no-op.
func (c *Context) Unpin(sel Selector) {
	t := c.table
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(c.pinned, sel.Index())
	t.mu.Unlock()
}

// DescriptorEntry resolves the descriptor a selector denotes for this
// context.
//
// Flat selectors (table-origin bit clear) do not live in the table: the
// null selector resolves to the null descriptor and every other flat value
// resolves to the host's flat 4GiB data descriptor. This is a deliberate
// relaxation: the host's live segment registers are not modeled here, so
// there is no basis for accepting some flat values and rejecting the rest,
// and all of them describe the same flat address space anyway. Table
// selectors go to the remote owner when one is attached, otherwise to the
// local table.
// A slot the owner reports unallocated yields ErrEntryNotFound; a broken
// or detached context yields ErrBadContext. Callers branch on the two.
func (c *Context) DescriptorEntry(sel Selector) (format.Descriptor, error) {
	if c == nil || c.table == nil {
		return format.Descriptor{}, ErrBadContext
	}
	if sel&SelectorTableBit == 0 {
		if sel.IsNull() {
			return format.Descriptor{}, nil
		}
		return flatDescriptor(), nil
	}
	if c.remote != nil {
		d, allocated, err := c.remote.DescriptorEntry(sel.Index())
		if err != nil {
			return format.Descriptor{}, fmt.Errorf("remote descriptor query: %w", ErrBadContext)
		}
		if !allocated {
			return format.Descriptor{}, ErrEntryNotFound
		}
		return d, nil
	}
	d, err := c.table.Entry(sel)
	if errors.Is(err, ErrFreeSelector) {
		return format.Descriptor{}, ErrEntryNotFound
	}
	return d, err
}

func flatDescriptor() format.Descriptor {
	var d format.Descriptor
	d.SetBase(0)
	d.SetLimit(0xFFFFFFFF)
	d.SetFlags(format.FlagsData | format.Flag32Bit)
	return d
}

// neutralizeLocked resets every cached register holding sel's slot across
// all attached contexts. Called on the free path with the table locked.
func (t *Table) neutralizeLocked(sel Selector) {
	for _, c := range t.contexts {
		for i := range c.regs {
			if !c.regs[i].IsNull() && c.regs[i].SameSlot(sel) {
				c.regs[i] = 0
			}
		}
	}
}

// pinnedLocked reports whether any attached context pinned the slot.
func (t *Table) pinnedLocked(index int) bool {
	for _, c := range t.contexts {
		if _, ok := c.pinned[index]; ok {
			return true
		}
	}
	return false
}
