package extractor

import (
	"sort"

	"github.com/honeybee/honeybee/block"
	"github.com/honeybee/honeybee/internal/x86block"
)

// Section is one executable region of a binary image: Data holds the raw
// bytes and VAddr is the virtual address of Data[0].
type Section struct {
	VAddr uint64
	Data  []byte
}

// Extract sweeps every section and returns the basic blocks it finds,
// merged and sorted into ascending Start order (spec.md §4.1, "Edge cases":
// overlapping executable sections are all swept; the hive builder is the
// one that rejects overlap).
func Extract(sections []Section) []block.Block {
	var blocks []block.Block
	for _, s := range sections {
		blocks = append(blocks, sweepSection(s)...)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })
	return blocks
}

// sweepSection performs the linear sweep described in spec.md §4.1: decode
// one instruction at a time, accumulating a run; on a terminator, emit a
// block and resume the run at the next byte. A decode failure ends the
// sweep for this section.
func sweepSection(s Section) []block.Block {
	var blocks []block.Block

	runStart := 0
	pos := 0
	for pos < len(s.Data) {
		vaddr := s.VAddr + uint64(pos)
		inst, ok := x86block.Decode(s.Data, pos, vaddr)
		if !ok {
			return blocks
		}

		pos += inst.Length
		if !inst.Terminator {
			continue
		}

		blocks = append(blocks, block.Block{
			Start:           s.VAddr + uint64(runStart),
			Length:          uint32(pos - inst.Length - runStart),
			TerminatorSize:  uint8(inst.Length),
			Category:        inst.Category,
			DirectTarget:    inst.Target,
			HasDirectTarget: inst.HasTarget,
		})
		runStart = pos
	}

	return blocks
}
