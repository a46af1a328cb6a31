package ldt

import "github.com/compat16/ldtkit/internal/format"

// Selector identifies one descriptor-table slot plus access-context bits.
//
//	bits 15:3  slot index
//	bit  2     table origin (set => descriptor table, clear => flat/global)
//	bits 1:0   requested privilege level
//
// Value 0 is the null selector. Selectors handed out by the table always
// carry the table-origin bit and privilege level 3.
type Selector uint16

const (
	indexShift = 3

	// SelectorTableBit marks a selector as resolving through the
	// descriptor table rather than the host's flat segments.
	SelectorTableBit Selector = 4

	rplMask Selector = 3

	// selectorLowBits is what the table stamps on every selector it
	// hands out: table origin plus ring 3.
	selectorLowBits Selector = SelectorTableBit | rplMask
)

// FromIndex builds the selector for a slot index.
func FromIndex(index int) Selector {
	return Selector(index)<<indexShift | selectorLowBits
}

// Index returns the slot index encoded in the selector.
func (s Selector) Index() int {
	return int(s >> indexShift)
}

// IsNull reports whether s is the null selector, ignoring the privilege
// bits.
func (s Selector) IsNull() bool {
	return s&^rplMask == 0
}

// SameSlot reports whether two selector values address the same slot,
// ignoring origin and privilege bits.
func (s Selector) SameSlot(o Selector) bool {
	return (s^o)&^selectorLowBits == 0
}

// SegPtr packs s with an offset into the segmented wire form.
func (s Selector) SegPtr(off uint16) format.SegPtr {
	return format.MakeSegPtr(uint16(s), off)
}
