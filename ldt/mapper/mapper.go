// Package mapper converts between linear addresses and segmented pointers.
// Linear pointers above the low 64KiB get a data-segment window allocated
// over them; values below pass through unchanged in both directions, so a
// real-mode style address keeps meaning the same bytes.
package mapper

import (
	"github.com/compat16/ldtkit/internal/format"
	"github.com/compat16/ldtkit/internal/legacystr"
	"github.com/compat16/ldtkit/ldt"
)

// Mapper hands out short-lived selector windows over linear memory.
type Mapper struct {
	t   *ldt.Table
	mem ldt.Memory
}

func New(t *ldt.Table, mem ldt.Memory) *Mapper {
	return &Mapper{t: t, mem: mem}
}

// MapLinear returns a segmented pointer addressing the linear address ptr.
// Addresses inside the low 64KiB map to selector zero with the address as
// offset. Everything else gets a fresh 64KiB data window based at ptr; a
// zero result means the table is exhausted.
func (m *Mapper) MapLinear(ptr uint32) format.SegPtr {
	if ptr < format.SegmentSpan {
		return format.SegPtr(ptr)
	}
	sel := m.t.AllocBlock(ptr, format.SegmentSpan, format.FlagsData)
	if sel == 0 {
		return 0
	}
	return sel.SegPtr(0)
}

// Release frees the selector window behind a pointer handed out by
// MapLinear. Passthrough pointers carry no selector and are a no-op, so
// callers can release unconditionally.
func (m *Mapper) Release(p format.SegPtr) error {
	sel := ldt.Selector(p.Sel())
	if sel.IsNull() {
		return nil
	}
	return m.t.FreeBlock(sel)
}

// Linear resolves a segmented pointer back to its linear address. Pointers
// on the null selector resolve to their offset; a pointer through a free
// selector resolves to zero.
func (m *Mapper) Linear(p format.SegPtr) uint32 {
	sel := ldt.Selector(p.Sel())
	if sel.IsNull() {
		return uint32(p.Off())
	}
	base, err := m.t.Base(sel)
	if err != nil {
		return 0
	}
	return base + uint32(p.Off())
}

// AliasToData allocates a new selector describing the same memory as sel
// but typed as a data segment. Returns zero on a free source selector or
// an exhausted table.
func (m *Mapper) AliasToData(sel ldt.Selector) ldt.Selector {
	return m.alias(sel, format.FlagsData)
}

// AliasToCode is the executable counterpart of AliasToData.
func (m *Mapper) AliasToCode(sel ldt.Selector) ldt.Selector {
	return m.alias(sel, format.FlagsCode)
}

// AliasInto installs at dst a copy of src's descriptor with the executable
// bit flipped, turning dst into the opposite-typed alias of src. Unlike
// AliasToCode/AliasToData this reuses a selector the caller already owns:
// dst must be allocated and its previous descriptor is replaced.
func (m *Mapper) AliasInto(src, dst ldt.Selector) error {
	d, err := m.t.Entry(src)
	if err != nil {
		return err
	}
	d.ToggleCodeData()
	return m.t.SetEntry(dst, d)
}

func (m *Mapper) alias(sel ldt.Selector, flags format.Flags) ldt.Selector {
	d, err := m.t.Entry(sel)
	if err != nil {
		return 0
	}
	alias := m.t.AllocArray(1)
	if alias == 0 {
		return 0
	}
	d.SetFlags(d.Flags()&format.Flag32Bit | flags)
	if err := m.t.SetEntry(alias, d); err != nil {
		_ = m.t.Free(alias)
		return 0
	}
	return alias
}

// Read copies up to len(buf) bytes from offset within the segment sel
// describes and returns how many were copied. A free selector or an
// offset past the limit reads nothing; a run past the limit is clamped.
func (m *Mapper) Read(sel ldt.Selector, offset uint32, buf []byte) uint32 {
	view, n := m.window(sel, offset, uint32(len(buf)))
	if n == 0 {
		return 0
	}
	copy(buf[:n], view)
	return n
}

// Write is the mirror of Read, copying bytes into the segment.
func (m *Mapper) Write(sel ldt.Selector, offset uint32, buf []byte) uint32 {
	view, n := m.window(sel, offset, uint32(len(buf)))
	if n == 0 {
		return 0
	}
	copy(view, buf[:n])
	return n
}

// ReadString decodes the NUL-terminated legacy string at p. The search
// for the terminator stops at the segment limit; a string running off the
// end of its segment, a free selector and a null selector all come back
// not-ok.
func (m *Mapper) ReadString(p format.SegPtr) (string, bool) {
	sel := ldt.Selector(p.Sel())
	if sel.IsNull() {
		return "", false
	}
	d, err := m.t.Entry(sel)
	if err != nil || uint32(p.Off()) > d.Limit() {
		return "", false
	}
	view, ok := m.mem.View(d.Base()+uint32(p.Off()), d.Limit()-uint32(p.Off())+1)
	if !ok {
		return "", false
	}
	if legacystr.TerminatorIndex(view) < 0 {
		return "", false
	}
	s, err := legacystr.DecodeZ(view)
	if err != nil {
		return "", false
	}
	return s, true
}

// window resolves a clamped byte view over [offset, offset+count) of the
// segment. Returns a zero count when the selector is free, the offset is
// past the limit or the memory view cannot be produced.
func (m *Mapper) window(sel ldt.Selector, offset, count uint32) ([]byte, uint32) {
	d, err := m.t.Entry(sel)
	if err != nil {
		return nil, 0
	}
	limit := d.Limit()
	if offset > limit || count == 0 {
		return nil, 0
	}
	if offset+count > limit+1 {
		count = limit + 1 - offset
	}
	view, ok := m.mem.View(d.Base()+offset, count)
	if !ok {
		return nil, 0
	}
	return view, count
}
