package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compat16/ldtkit/internal/format"
	"github.com/compat16/ldtkit/internal/linmem"
	"github.com/compat16/ldtkit/ldt"
)

type fixture struct {
	tab   *ldt.Table
	arena *linmem.Arena
	m     *Mapper
}

func newFixture(t *testing.T) *fixture {
	arena, err := linmem.New(0x80000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = arena.Close() })

	tab := ldt.NewTable()
	return &fixture{tab: tab, arena: arena, m: New(tab, arena)}
}

func TestMapLinear_LowAddressPassesThrough(t *testing.T) {
	f := newFixture(t)

	p := f.m.MapLinear(0x1234)
	assert.Equal(t, format.SegPtr(0x1234), p)
	assert.Equal(t, uint32(0x1234), f.m.Linear(p))

	// Nothing to release on a passthrough pointer.
	assert.NoError(t, f.m.Release(p))
}

func TestMapLinear_RoundTrip(t *testing.T) {
	f := newFixture(t)
	const addr = 0x23456

	p := f.m.MapLinear(addr)
	require.NotEqual(t, format.SegPtr(0), p)
	assert.Equal(t, uint16(0), p.Off(), "mapped pointers start at offset zero")

	sel := ldt.Selector(p.Sel())
	base, err := f.tab.Base(sel)
	require.NoError(t, err)
	assert.Equal(t, uint32(addr), base)

	limit, err := f.tab.Limit(sel)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFF), limit, "the window spans a full segment")

	assert.Equal(t, uint32(addr), f.m.Linear(p))
	assert.Equal(t, uint32(addr+0x42), f.m.Linear(format.MakeSegPtr(p.Sel(), 0x42)))

	require.NoError(t, f.m.Release(p))
	assert.False(t, f.tab.IsAllocated(sel))
	assert.NoError(t, f.m.Release(p), "release after release is a no-op")
}

func TestLinear_FreeSelectorResolvesToZero(t *testing.T) {
	f := newFixture(t)
	p := ldt.FromIndex(ldt.FirstUsableIndex + 3).SegPtr(0x10)
	assert.Equal(t, uint32(0), f.m.Linear(p))
}

func TestAlias_FlipsSegmentType(t *testing.T) {
	f := newFixture(t)

	data := f.tab.AllocBlock(0x20000, 0x1000, format.FlagsData)
	require.NotEqual(t, ldt.Selector(0), data)

	code := f.m.AliasToCode(data)
	require.NotEqual(t, ldt.Selector(0), code)
	assert.NotEqual(t, data, code)

	d, err := f.tab.Entry(code)
	require.NoError(t, err)
	assert.Equal(t, format.FlagsCode, d.Flags())
	assert.Equal(t, uint32(0x20000), d.Base())
	assert.Equal(t, uint32(0x0FFF), d.Limit())

	// Flipping back yields a data descriptor over the same memory.
	back := f.m.AliasToData(code)
	require.NotEqual(t, ldt.Selector(0), back)
	b, err := f.tab.Entry(back)
	require.NoError(t, err)
	assert.Equal(t, format.FlagsData, b.Flags())
	assert.Equal(t, uint32(0x20000), b.Base())
}

func TestAlias_Keeps32BitFlag(t *testing.T) {
	f := newFixture(t)

	sel := f.tab.AllocBlock(0x20000, 0x1000, format.FlagsData|format.Flag32Bit)
	alias := f.m.AliasToCode(sel)
	require.NotEqual(t, ldt.Selector(0), alias)

	d, err := f.tab.Entry(alias)
	require.NoError(t, err)
	assert.Equal(t, format.FlagsCode|format.Flag32Bit, d.Flags())
}

func TestAlias_FreeSourceFails(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, ldt.Selector(0), f.m.AliasToData(ldt.FromIndex(ldt.FirstUsableIndex)))
}

// TestAliasInto covers the in-place variant: the caller supplies the
// destination selector and its descriptor is replaced by the flipped copy.
func TestAliasInto(t *testing.T) {
	f := newFixture(t)

	src := f.tab.AllocBlock(0x20000, 0x1000, format.FlagsData)
	dst := f.tab.AllocArray(1)
	require.NotEqual(t, ldt.Selector(0), dst)

	require.NoError(t, f.m.AliasInto(src, dst))
	d, err := f.tab.Entry(dst)
	require.NoError(t, err)
	assert.Equal(t, format.FlagsCode, d.Flags(), "data source installs as code")
	assert.Equal(t, uint32(0x20000), d.Base())
	assert.Equal(t, uint32(0x0FFF), d.Limit())

	// Flipping the alias back in place restores the data type.
	require.NoError(t, f.m.AliasInto(dst, dst))
	d, err = f.tab.Entry(dst)
	require.NoError(t, err)
	assert.Equal(t, format.FlagsData, d.Flags())
	assert.Equal(t, uint32(0x20000), d.Base())

	free := ldt.FromIndex(ldt.FirstUsableIndex + 40)
	assert.ErrorIs(t, f.m.AliasInto(free, dst), ldt.ErrFreeSelector)
	assert.ErrorIs(t, f.m.AliasInto(src, free), ldt.ErrFreeSelector)
}

func TestReadWrite_Bounded(t *testing.T) {
	f := newFixture(t)

	base, err := f.arena.Alloc(0x100)
	require.NoError(t, err)
	sel := f.tab.AllocBlock(base, 0x20, format.FlagsData)
	require.NotEqual(t, ldt.Selector(0), sel)

	payload := []byte("segment payload")
	assert.Equal(t, uint32(len(payload)), f.m.Write(sel, 4, payload))

	got := make([]byte, len(payload))
	assert.Equal(t, uint32(len(payload)), f.m.Read(sel, 4, got))
	assert.Equal(t, payload, got)

	// Runs past the limit are clamped to the bytes that exist.
	big := make([]byte, 0x40)
	assert.Equal(t, uint32(0x20-0x10), f.m.Read(sel, 0x10, big))
	assert.Equal(t, uint32(0x20-0x10), f.m.Write(sel, 0x10, big))

	// Offset past the limit reads and writes nothing.
	assert.Equal(t, uint32(0), f.m.Read(sel, 0x20, got))
	assert.Equal(t, uint32(0), f.m.Write(sel, 0x20, payload))

	// So does a free selector.
	require.NoError(t, f.tab.FreeBlock(sel))
	assert.Equal(t, uint32(0), f.m.Read(sel, 0, got))
}

func TestReadString(t *testing.T) {
	f := newFixture(t)

	base, err := f.arena.Alloc(0x40)
	require.NoError(t, err)
	view, ok := f.arena.View(base, 0x40)
	require.True(t, ok)
	copy(view, "caf\xe9\x00") // Windows-1252 encoded "café"

	sel := f.tab.AllocBlock(base, 0x40, format.FlagsData)
	require.NotEqual(t, ldt.Selector(0), sel)

	s, ok := f.m.ReadString(sel.SegPtr(0))
	require.True(t, ok)
	assert.Equal(t, "café", s)

	s, ok = f.m.ReadString(sel.SegPtr(1))
	require.True(t, ok)
	assert.Equal(t, "afé", s)

	_, ok = f.m.ReadString(format.MakeSegPtr(0, 0x10))
	assert.False(t, ok, "null selector")
	_, ok = f.m.ReadString(sel.SegPtr(0x40))
	assert.False(t, ok, "offset past the limit")

	// A segment of x's with no terminator.
	unterm := f.tab.AllocBlock(base+0x20, 0x10, format.FlagsData)
	tail, ok := f.arena.View(base+0x20, 0x10)
	require.True(t, ok)
	for i := range tail {
		tail[i] = 'x'
	}
	_, ok = f.m.ReadString(unterm.SegPtr(0))
	assert.False(t, ok)
}
