package builder

import (
	"fmt"
	"os"
	"sort"

	"github.com/honeybee/honeybee/block"
	"github.com/honeybee/honeybee/hive"
	"github.com/honeybee/honeybee/internal/format"
)

// Build packs blocks into a hive file at path, following spec.md §4.2's
// five-step procedure: compute uvip_slide/direct_map_count, resolve direct
// successors by binary search, pack records, write header + records +
// direct map, and (optionally) validate the result.
//
// blocks must already be in ascending Start order, as produced by the
// extractor; Build does not sort them, only checks the ordering holds.
func Build(blocks []block.Block, path string, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if len(blocks) == 0 {
		return format.ErrNoBlocks
	}
	if err := checkNonOverlapping(blocks); err != nil {
		return err
	}

	uvipSlide := blocks[0].Start
	last := blocks[len(blocks)-1]
	directMapCount := last.End() - uvipSlide
	if directMapCount >= format.MaxDirectMapCount {
		return fmt.Errorf("builder: %w", format.ErrTooLarge)
	}

	blockCount := uint64(len(blocks))
	recordTable := make([]byte, format.RecordSize*blockCount)
	for i := range blocks {
		successorIndices, successorIPs := packRecord(blocks, i, uvipSlide)
		format.PutRecord(recordTable, uint64(i), successorIndices, successorIPs)
	}

	directMap := make([]byte, format.DirectMapEntrySize*directMapCount)
	fillDirectMap(directMap, blocks, uvipSlide)

	header := make([]byte, format.HeaderSize)
	format.PutHeader(header, format.Header{
		BlockCount:     blockCount,
		UVIPSlide:      uvipSlide,
		DirectMapCount: directMapCount,
	})

	buf := make([]byte, 0, len(header)+len(recordTable)+len(directMap))
	buf = append(buf, header...)
	buf = append(buf, recordTable...)
	buf = append(buf, directMap...)

	if err := os.WriteFile(path, buf, os.FileMode(opts.FileMode)); err != nil {
		return fmt.Errorf("builder: write %s: %w", path, err)
	}

	if opts.Validate {
		h, err := hive.Open(path)
		if err != nil {
			return fmt.Errorf("builder: reopen for validation: %w", err)
		}
		defer h.Close()
		if err := h.Validate(); err != nil {
			return fmt.Errorf("builder: built hive failed validation: %w", err)
		}
	}

	return nil
}

// checkNonOverlapping confirms blocks are sorted by Start and that no
// block's range intersects the next.
func checkNonOverlapping(blocks []block.Block) error {
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Start < blocks[i-1].End() {
			return fmt.Errorf("builder: %w: block %d [%#x,%#x) overlaps block %d starting at %#x",
				format.ErrOverlappingBlocks, i-1, blocks[i-1].Start, blocks[i-1].End(), i, blocks[i].Start)
		}
	}
	return nil
}

// packRecord computes the successor_indices/successor_ips pair for
// blocks[i] (spec.md §4.2 steps 2-3).
func packRecord(blocks []block.Block, i int, uvipSlide uint64) (successorIndices, successorIPs uint64) {
	b := blocks[i]

	taken := format.IndirectSentinel
	var takenIP uint32
	if b.Category != block.IndirectOrUnknown && b.HasDirectTarget {
		if id, ok := resolveTarget(blocks, b.DirectTarget); ok {
			taken = id
			takenIP = uint32(blocks[id].Start - uvipSlide)
		}
	}

	s := format.Successors{Conditional: b.Conditional(), Taken: taken}
	var notTakenIP uint32
	if b.Conditional() {
		// The not-taken edge is always fallthrough to the next block in
		// program order, landing at this block's own end (spec.md §4.2 step
		// 3: "its IP is start_i + length_i + terminator_size_i"), not
		// necessarily at blocks[i+1].Start — those only coincide when the
		// two blocks are contiguous.
		if i+1 < len(blocks) {
			s.NotTaken = uint32(i + 1)
			notTakenIP = uint32(b.End() - uvipSlide)
		} else {
			s.NotTaken = format.IndirectSentinel
		}
	}

	return format.PackSuccessorIndices(s), format.PackSuccessorIPs(takenIP, notTakenIP)
}

// resolveTarget binary-searches blocks for one whose Start equals target,
// returning its id.
func resolveTarget(blocks []block.Block, target uint64) (uint32, bool) {
	i := sort.Search(len(blocks), func(i int) bool { return blocks[i].Start >= target })
	if i < len(blocks) && blocks[i].Start == target {
		return uint32(i), true
	}
	return 0, false
}

// fillDirectMap walks blocks in order, writing zeros for any gap before a
// block and the block's id across its covered bytes (spec.md §4.2 step 5).
func fillDirectMap(directMap []byte, blocks []block.Block, uvipSlide uint64) {
	for i, b := range blocks {
		start := b.Start - uvipSlide
		end := b.End() - uvipSlide
		for off := start; off < end; off++ {
			format.PutU32(directMap, int(off)*format.DirectMapEntrySize, uint32(i))
		}
	}
}
