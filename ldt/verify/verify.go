// Package verify answers whether a segmented pointer may be dereferenced.
// Checks combine the descriptor's type bits with its limit, so a pointer is
// rejected both for pointing into a free or incompatible segment and for
// running past the segment's end.
package verify

import (
	"github.com/compat16/ldtkit/internal/format"
	"github.com/compat16/ldtkit/internal/legacystr"
	"github.com/compat16/ldtkit/ldt"
)

// Access is the kind of dereference being validated.
type Access int

const (
	Execute Access = iota
	Read
	Write
)

// Validator checks segmented pointers against a descriptor table. The
// memory view is only consulted for string validation and may be nil if
// CheckString is never called.
type Validator struct {
	t   *ldt.Table
	mem ldt.Memory
}

func New(t *ldt.Table, mem ldt.Memory) *Validator {
	return &Validator{t: t, mem: mem}
}

// Check reports whether length bytes at p can be accessed as requested.
// A zero length is always valid once the selector itself checks out for
// read and write; execute validates the entry point offset alone.
func (v *Validator) Check(p format.SegPtr, length uint32, access Access) bool {
	sel := ldt.Selector(p.Sel())
	if sel.IsNull() {
		return false
	}
	d, err := v.t.Entry(sel)
	if err != nil {
		return false
	}

	switch access {
	case Execute:
		// Code segment wanted; conforming, readable and accessed bits
		// do not matter.
		if (d.TypeBits()^uint8(format.FlagsCode))&0x18 != 0 {
			return false
		}
		return uint32(p.Off()) <= d.Limit()
	case Read:
		if !readable(d) {
			return false
		}
	case Write:
		// Writable data segment wanted; expand-down and accessed bits
		// do not matter.
		if (d.TypeBits()^uint8(format.FlagsData))&^uint8(5) != 0 {
			return false
		}
	default:
		return false
	}
	return inBounds(d, p.Off(), length)
}

// CheckString validates a NUL-terminated string at p for reading. The
// declared size is clamped to the string's actual length plus its
// terminator before the limit check, matching how 16-bit callers pass
// buffers larger than the strings they hold.
func (v *Validator) CheckString(p format.SegPtr, size uint32) bool {
	sel := ldt.Selector(p.Sel())
	if sel.IsNull() {
		return false
	}
	d, err := v.t.Entry(sel)
	if err != nil {
		return false
	}
	if !readable(d) {
		return false
	}

	if n, ok := v.strLen(d, p.Off()); ok && n < size {
		size = n + 1
	}
	return inBounds(d, p.Off(), size)
}

// readable accepts data segments and readable code segments.
func readable(d format.Descriptor) bool {
	if d.TypeBits()&0x10 == 0 { // system descriptor
		return false
	}
	if d.TypeBits()&0x0A == 0x08 { // non-readable code segment
		return false
	}
	return true
}

func inBounds(d format.Descriptor, off uint16, length uint32) bool {
	if length == 0 {
		return true
	}
	return uint32(off)+length-1 <= d.Limit()
}

// strLen measures the NUL-terminated string starting at off, looking no
// further than the segment limit.
func (v *Validator) strLen(d format.Descriptor, off uint16) (uint32, bool) {
	if v.mem == nil || uint32(off) > d.Limit() {
		return 0, false
	}
	view, ok := v.mem.View(d.Base()+uint32(off), d.Limit()-uint32(off)+1)
	if !ok {
		return 0, false
	}
	idx := legacystr.TerminatorIndex(view)
	if idx < 0 {
		return 0, false
	}
	return uint32(idx), true
}
