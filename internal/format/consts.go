// Package format houses the low-level, allocation-free codec for the
// Honeybee hive file: the header layout, the packed successor records, and
// the byte-addressed direct map (spec.md §3 DATA MODEL, §6 EXTERNAL
// INTERFACES "Hive file format"). Higher-level packages (hive, hive/builder,
// walker) orchestrate these primitives; this package never allocates beyond
// what the caller hands it.
package format

// Magic is the eight-byte little-endian signature at the start of every
// hive file: the ASCII bytes "HONEYBEE".
var Magic = []byte{'H', 'O', 'N', 'E', 'Y', 'B', 'E', 'E'}

const (
	// HeaderSize is the fixed size, in bytes, of the hive header that
	// precedes the packed record table.
	HeaderSize = 32

	// MagicOffset, MagicSize locate the signature within the header.
	MagicOffset = 0x00
	MagicSize   = 8

	// BlockCountOffset locates the uint64 block count.
	BlockCountOffset = 0x08

	// UVIPSlideOffset locates the uint64 base virtual address (the lowest
	// block's Start) that every stored IP is relative to.
	UVIPSlideOffset = 0x10

	// DirectMapCountOffset locates the uint64 number of entries in the
	// direct map (one per byte of executable extent).
	DirectMapCountOffset = 0x18

	// RecordSize is the size in bytes of one packed hive record: two
	// little-endian uint64 fields, successor_indices then successor_ips
	// (spec.md §3 "Hive record").
	RecordSize = 16

	// DirectMapEntrySize is the size in bytes of one direct-map slot.
	DirectMapEntrySize = 4

	// NotCode is the direct-map value of a byte that is not part of any
	// known block. Block 0's own slots hold the same value; hive.Lookup
	// tells the two apart by position.
	NotCode uint32 = 0

	// IndirectSentinel is the successor-slot value meaning "indirect or
	// unknown — ask the decoder" (2^31 - 1, fits the 31-bit id field).
	IndirectSentinel uint32 = (1 << 31) - 1

	// MaxDirectMapCount is the largest direct_map_count the 32-bit-indexed
	// design can address (spec.md §1 Non-goals: >4GiB binaries unsupported).
	MaxDirectMapCount = uint64(1) << 32
)

// Bit layout of a packed record's successor_indices field (spec.md §3):
//
//	bit 0        conditional flag
//	bits 1..31   taken successor id (31 bits)
//	bit 32       unused (always 0)
//	bits 33..63  not-taken successor id (31 bits)
const (
	CondFlagBit       = 0
	TakenIndexShift   = 1
	TakenIndexMask    = uint64(IndirectSentinel) << TakenIndexShift
	NotTakenIndexBit  = 33
	NotTakenIndexMask = uint64(IndirectSentinel) << NotTakenIndexBit
)

// Bit layout of a packed record's successor_ips field (spec.md §3):
//
//	bits 0..31   taken successor's slid virtual IP
//	bits 32..63  not-taken successor's slid virtual IP
const (
	TakenIPShift    = 0
	NotTakenIPShift = 32
)
