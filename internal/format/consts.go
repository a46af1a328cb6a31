// Package format houses the bit-exact codec for x86 segment descriptors and
// segmented pointers. The goal is to keep the encoding focused and
// allocation-free so higher-level packages can manage descriptor state in a
// more ergonomic form while staying interoperable with anything that inspects
// raw descriptors.
package format

const (
	// DescriptorSize is the size of one raw segment descriptor in bytes.
	DescriptorSize = 8

	// SegmentSpan is the number of bytes addressable through a single
	// selector (16-bit offset space).
	SegmentSpan = 0x10000

	// MaxByteLimit is the highest limit encodable with byte granularity.
	// Larger limits switch to 4KiB page granularity.
	MaxByteLimit = 0xFFFFF

	// GranularityShift is the page-granularity scale factor (4KiB pages).
	GranularityShift = 12
)

// Field offsets within the 8-byte descriptor.
const (
	limitLowOffset  = 0x00 // limit 15:0
	baseLowOffset   = 0x02 // base 15:0
	baseMidOffset   = 0x04 // base 23:16
	accessOffset    = 0x05 // present, DPL, 5-bit type
	limitHighOffset = 0x06 // limit 19:16 plus granularity/default flags
	baseHighOffset  = 0x07 // base 31:24
)

// Access-byte bit assignments.
const (
	accessPresent  = 0x80 // present bit
	accessDPLMask  = 0x60 // descriptor privilege level (bits 6:5)
	accessTypeMask = 0x1F // 5-bit type, including the system/segment bit

	typeSegment  = 0x10 // clear => system descriptor
	typeCodeData = 0x08 // set => code, clear => data
)

// Flag-byte (0x06) high-nibble bit assignments.
const (
	flagGranularity = 0x80 // limit counted in 4KiB pages
	flagDefaultBig  = 0x40 // 32-bit default operand size
)
