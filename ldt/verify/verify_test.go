package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compat16/ldtkit/internal/format"
	"github.com/compat16/ldtkit/internal/linmem"
	"github.com/compat16/ldtkit/ldt"
)

// fixture hands out a table, an arena backing it and a validator, plus a
// helper that installs a descriptor and returns its selector.
type fixture struct {
	tab   *ldt.Table
	arena *linmem.Arena
	v     *Validator
}

func newFixture(t *testing.T) *fixture {
	arena, err := linmem.New(0x40000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = arena.Close() })

	tab := ldt.NewTable()
	return &fixture{tab: tab, arena: arena, v: New(tab, arena)}
}

func (f *fixture) install(t *testing.T, base, limit uint32, flags format.Flags) ldt.Selector {
	sel := f.tab.AllocRun(1)
	require.NotEqual(t, ldt.Selector(0), sel)

	var d format.Descriptor
	d.SetBase(base)
	d.SetLimit(limit)
	d.SetFlags(flags)
	require.NoError(t, f.tab.SetEntry(sel, d))
	return sel
}

func TestCheck_NullAndFreeSelectors(t *testing.T) {
	f := newFixture(t)

	for _, access := range []Access{Execute, Read, Write} {
		assert.False(t, f.v.Check(format.MakeSegPtr(0, 0), 1, access))
		assert.False(t, f.v.Check(format.MakeSegPtr(3, 0), 1, access),
			"low selector bits alone do not make a selector live")
		free := ldt.FromIndex(ldt.FirstUsableIndex + 7)
		assert.False(t, f.v.Check(free.SegPtr(0), 1, access))
	}
}

func TestCheck_SegmentTypes(t *testing.T) {
	f := newFixture(t)

	data := f.install(t, 0x20000, 0xFFF, format.FlagsData)
	code := f.install(t, 0x20000, 0xFFF, format.FlagsCode)

	assert.True(t, f.v.Check(code.SegPtr(0), 0, Execute))
	assert.False(t, f.v.Check(data.SegPtr(0), 0, Execute), "data segment is not executable")

	assert.True(t, f.v.Check(data.SegPtr(0), 16, Read))
	assert.True(t, f.v.Check(code.SegPtr(0), 16, Read), "flags mark code readable")

	assert.True(t, f.v.Check(data.SegPtr(0), 16, Write))
	assert.False(t, f.v.Check(code.SegPtr(0), 16, Write), "code segment is never writable")
}

func TestCheck_SystemDescriptorRejected(t *testing.T) {
	f := newFixture(t)

	sel := f.tab.AllocRun(1)
	var d format.Descriptor
	d.SetBase(0x20000)
	d.SetLimit(0xFFF)
	d[5] = 0x82 // present LDT system descriptor
	require.NoError(t, f.tab.SetEntry(sel, d))

	assert.False(t, f.v.Check(sel.SegPtr(0), 1, Read))
	assert.False(t, f.v.Check(sel.SegPtr(0), 1, Write))
}

func TestCheck_Bounds(t *testing.T) {
	f := newFixture(t)
	sel := f.install(t, 0x20000, 0x0FFF, format.FlagsData)

	assert.True(t, f.v.Check(sel.SegPtr(0), 0x1000, Read), "last byte sits exactly on the limit")
	assert.False(t, f.v.Check(sel.SegPtr(0), 0x1001, Read))
	assert.True(t, f.v.Check(sel.SegPtr(0x0FFF), 1, Read))
	assert.False(t, f.v.Check(sel.SegPtr(0x1000), 1, Read))
	assert.True(t, f.v.Check(sel.SegPtr(0x1000), 0, Read), "zero length never faults")

	code := f.install(t, 0x20000, 0x0FFF, format.FlagsCode)
	assert.True(t, f.v.Check(code.SegPtr(0x0FFF), 0, Execute))
	assert.False(t, f.v.Check(code.SegPtr(0x1000), 0, Execute))
}

func TestCheckString_ClampsToTerminator(t *testing.T) {
	f := newFixture(t)

	base, err := f.arena.Alloc(0x100)
	require.NoError(t, err)
	view, ok := f.arena.View(base, 0x100)
	require.True(t, ok)
	copy(view, "hello\x00")

	// Limit cuts the segment off right after the terminator.
	sel := f.install(t, base, 6, format.FlagsData)

	assert.True(t, f.v.CheckString(sel.SegPtr(0), 6))
	assert.True(t, f.v.CheckString(sel.SegPtr(0), 0x4000),
		"oversized declared buffers clamp to the string length")
	assert.True(t, f.v.CheckString(sel.SegPtr(2), 0x4000))
	assert.False(t, f.v.CheckString(sel.SegPtr(7), 1), "offset past the limit")
}

func TestCheckString_UnterminatedFailsBounds(t *testing.T) {
	f := newFixture(t)

	base, err := f.arena.Alloc(0x10)
	require.NoError(t, err)
	view, ok := f.arena.View(base, 0x10)
	require.True(t, ok)
	for i := range view {
		view[i] = 'x'
	}

	sel := f.install(t, base, 0x0F, format.FlagsData)

	// No terminator inside the segment, so the declared size stands and
	// must fit the limit on its own.
	assert.True(t, f.v.CheckString(sel.SegPtr(0), 0x10))
	assert.False(t, f.v.CheckString(sel.SegPtr(0), 0x11))
}
