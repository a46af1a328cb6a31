package format

import "fmt"

// SegPtr is a segmented pointer: a 16-bit selector in the high half and a
// 16-bit offset in the low half. This is the wire representation crossing
// the 16/32-bit compatibility boundary and must stay bit-exact.
type SegPtr uint32

// MakeSegPtr packs a selector and an offset into a segmented pointer.
func MakeSegPtr(sel, off uint16) SegPtr {
	return SegPtr(uint32(sel)<<16 | uint32(off))
}

// Sel returns the selector half.
func (p SegPtr) Sel() uint16 {
	return uint16(p >> 16)
}

// Off returns the offset half.
func (p SegPtr) Off() uint16 {
	return uint16(p)
}

// String formats the pointer in the conventional sel:off form.
func (p SegPtr) String() string {
	return fmt.Sprintf("%04x:%04x", p.Sel(), p.Off())
}
