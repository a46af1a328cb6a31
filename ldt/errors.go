package ldt

import "errors"

var (
	// ErrInvalidSelector indicates a null or out-of-range selector value.
	ErrInvalidSelector = errors.New("ldt: invalid selector")

	// ErrFreeSelector indicates a selector whose slot is not allocated.
	ErrFreeSelector = errors.New("ldt: selector not allocated")

	// ErrInvalidEntry indicates a descriptor write with an internally
	// inconsistent base/limit pair (both zero on a live slot).
	ErrInvalidEntry = errors.New("ldt: inconsistent descriptor entry")

	// ErrPinned indicates an attempt to free a selector pinned by an
	// active execution context.
	ErrPinned = errors.New("ldt: selector pinned by active context")

	// ErrEntryNotFound indicates the owning context reports no allocation
	// at the queried slot.
	ErrEntryNotFound = errors.New("ldt: no entry at slot")

	// ErrBadContext indicates an invalid or detached execution context.
	ErrBadContext = errors.New("ldt: invalid execution context")
)
