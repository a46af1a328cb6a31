package format

import (
	"fmt"

	"github.com/compat16/ldtkit/internal/buf"
)

// Flags carries the 5-bit descriptor type (system/segment bit included) in
// its low bits plus the 32-bit default-size flag in bit 6. This matches the
// convention used by legacy loaders when stamping fresh descriptors.
type Flags uint8

const (
	// FlagsData is a read/write, accessed data segment.
	FlagsData Flags = 0x13

	// FlagsCode is a readable, accessed code segment.
	FlagsCode Flags = 0x1B

	// Flag32Bit marks a segment with 32-bit default operand size.
	Flag32Bit Flags = 0x40
)

// Descriptor is one raw segment descriptor in hardware layout.
//
// Byte layout (little-endian):
//
//	Offset  Size  Field
//	0x00    2     Limit 15:0
//	0x02    2     Base 15:0
//	0x04    1     Base 23:16
//	0x05    1     Access: present (bit 7), DPL (bits 6:5), 5-bit type
//	0x06    1     Limit 19:16 (low nibble); granularity (bit 7),
//	              32-bit default (bit 6), long mode (bit 5), AVL (bit 4)
//	0x07    1     Base 31:24
//
// The zero value is the null descriptor, which doubles as the free-slot
// state in the selector table.
type Descriptor [DescriptorSize]byte

// IsZero reports whether d is the null descriptor.
func (d Descriptor) IsZero() bool {
	return d == Descriptor{}
}

// Base returns the 32-bit linear address the segment maps to.
func (d Descriptor) Base() uint32 {
	return uint32(buf.U16LE(d[baseLowOffset:])) |
		uint32(d[baseMidOffset])<<16 |
		uint32(d[baseHighOffset])<<24
}

// SetBase stores a 32-bit linear base address across the three base fields.
func (d *Descriptor) SetBase(base uint32) {
	buf.PutU16LE(d[baseLowOffset:], uint16(base))
	d[baseMidOffset] = byte(base >> 16)
	d[baseHighOffset] = byte(base >> 24)
}

// Limit returns the highest valid offset within the segment. Page-granular
// limits decode to their byte value (low 12 bits forced to 1).
func (d Descriptor) Limit() uint32 {
	limit := uint32(buf.U16LE(d[limitLowOffset:])) |
		uint32(d[limitHighOffset]&0x0F)<<16
	if d[limitHighOffset]&flagGranularity != 0 {
		limit = limit<<GranularityShift | (1<<GranularityShift - 1)
	}
	return limit
}

// SetLimit stores a limit, switching to page granularity when it does not
// fit in 20 bits. Limits above 2^20 with a non-page-aligned tail are a
// caller contract violation and round up silently, like the hardware format.
func (d *Descriptor) SetLimit(limit uint32) {
	granular := limit > MaxByteLimit
	if granular {
		limit >>= GranularityShift
	}
	buf.PutU16LE(d[limitLowOffset:], uint16(limit))
	d[limitHighOffset] &^= 0x0F | flagGranularity
	d[limitHighOffset] |= byte(limit>>16) & 0x0F
	if granular {
		d[limitHighOffset] |= flagGranularity
	}
}

// Flags returns the 5-bit type plus the 32-bit default-size flag.
func (d Descriptor) Flags() Flags {
	f := Flags(d[accessOffset] & accessTypeMask)
	if d[limitHighOffset]&flagDefaultBig != 0 {
		f |= Flag32Bit
	}
	return f
}

// SetFlags stamps the type bits and forces the descriptor present at
// privilege level 3, the way legacy-compatibility descriptors are always
// installed.
func (d *Descriptor) SetFlags(f Flags) {
	d[accessOffset] = accessPresent | accessDPLMask | byte(f)&accessTypeMask
	if f&Flag32Bit != 0 {
		d[limitHighOffset] |= flagDefaultBig
	} else {
		d[limitHighOffset] &^= flagDefaultBig
	}
}

// TypeBits returns the raw 5-bit type, system/segment bit included.
// Validity checks mask this directly so conforming/readable/accessed
// sub-bits can be ignored where the rules call for it.
func (d Descriptor) TypeBits() uint8 {
	return d[accessOffset] & accessTypeMask
}

// Present reports whether the present bit is set.
func (d Descriptor) Present() bool {
	return d[accessOffset]&accessPresent != 0
}

// DPL returns the descriptor privilege level.
func (d Descriptor) DPL() uint8 {
	return (d[accessOffset] & accessDPLMask) >> 5
}

// IsSystem reports whether this is a system descriptor (segment bit clear).
func (d Descriptor) IsSystem() bool {
	return d.TypeBits()&typeSegment == 0
}

// ToggleCodeData flips the executable bit, turning a code descriptor into
// its data alias and back. System descriptors are left to the caller to
// reject first.
func (d *Descriptor) ToggleCodeData() {
	d[accessOffset] ^= typeCodeData
}

// AccessRights returns the two raw rights bytes: the access byte in the low
// half and the flag nibble in the high half.
func (d Descriptor) AccessRights() uint16 {
	return uint16(d[accessOffset]) | uint16(d[limitHighOffset]&0xF0)<<8
}

// SetAccessRights installs caller-supplied rights bytes. The present, DPL
// and segment bits of the access byte are forced on, and only the flag
// nibble of the high byte is taken, so a caller cannot smuggle in a
// non-present or system descriptor through this path.
func (d *Descriptor) SetAccessRights(v uint16) {
	d[accessOffset] = byte(v) | accessPresent | accessDPLMask | typeSegment
	d[limitHighOffset] = d[limitHighOffset]&0x0F | byte(v>>8)&0xF0
}

// Decode reads a raw descriptor from the first 8 bytes of b.
func Decode(b []byte) (Descriptor, error) {
	if len(b) < DescriptorSize {
		return Descriptor{}, fmt.Errorf("descriptor: %w (have %d, need %d)",
			ErrTruncated, len(b), DescriptorSize)
	}
	var d Descriptor
	copy(d[:], b)
	return d, nil
}

// Encode appends the raw descriptor bytes to dst and returns the result.
func (d Descriptor) Encode(dst []byte) []byte {
	return append(dst, d[:]...)
}
