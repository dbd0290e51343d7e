// Package block defines the basic-block data model shared by the extractor,
// the hive builder, and the hive reader.
//
// A Block is the output of the extractor's linear sweep and the input to the
// hive builder: a maximal run of instructions terminated by exactly one
// control-flow instruction. Blocks are produced in ascending Start order and
// never overlap.
package block

// Category classifies how a block's terminator transfers control.
type Category uint8

const (
	// Conditional is a conditional branch: two successors, taken and
	// not-taken, both known statically.
	Conditional Category = iota

	// UnconditionalDirect is an unconditional branch or call whose target is
	// a literal PC-relative displacement, known statically.
	UnconditionalDirect

	// IndirectOrUnknown is a branch, call, return, or syscall-family
	// instruction whose target cannot be resolved at build time. The walker
	// must consult the decoder's TIP cache for these.
	IndirectOrUnknown
)

// String renders the category name for diagnostics.
func (c Category) String() string {
	switch c {
	case Conditional:
		return "conditional"
	case UnconditionalDirect:
		return "unconditional_direct"
	case IndirectOrUnknown:
		return "indirect_or_unknown"
	default:
		return "unknown"
	}
}

// Block is a basic block as produced by the extractor (spec.md §3, "Basic
// block (input to hive)").
type Block struct {
	// Start is the block's virtual address, inclusive.
	Start uint64

	// Length is the number of bytes from Start up to, but not including,
	// the terminator instruction.
	Length uint32

	// TerminatorSize is the encoded length in bytes of the terminator
	// instruction.
	TerminatorSize uint8

	Category Category

	// DirectTarget is the computed virtual address of the terminator's
	// target when Category is Conditional or UnconditionalDirect and the
	// terminator has a literal PC-relative displacement. It is unused (zero)
	// otherwise.
	DirectTarget uint64

	// HasDirectTarget reports whether DirectTarget is meaningful. It says
	// nothing about whether the target is a known block: the hive builder
	// treats a DirectTarget that matches no block's Start (e.g. a jump
	// outside the swept image) as indirect, as it does a block with
	// HasDirectTarget == false.
	HasDirectTarget bool
}

// End returns the address one past the last byte covered by the block,
// i.e. Start + Length + TerminatorSize.
func (b Block) End() uint64 {
	return b.Start + uint64(b.Length) + uint64(b.TerminatorSize)
}

// Conditional reports whether the block ends in a conditional branch.
func (b Block) Conditional() bool {
	return b.Category == Conditional
}
