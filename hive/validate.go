package hive

import (
	"fmt"

	"github.com/honeybee/honeybee/internal/format"
)

// Validate performs a structural sanity pass over the opened hive: it
// re-checks the header invariants, confirms every record's in-range
// successor ids actually address a block, and confirms every non-zero
// direct-map slot names an in-range block id. It does not confirm that the
// direct map's byte ranges exactly match each block's [start, end) extent;
// that property is established once, at build time, by hive/builder.
func (h *Hive) Validate() error {
	if h.header.DirectMapCount >= format.MaxDirectMapCount {
		return fmt.Errorf("hive: %w", format.ErrTooLarge)
	}

	n := h.header.BlockCount
	table := h.recordTable()
	for id := uint64(0); id < n; id++ {
		indices, _ := format.ReadRecord(table, id)
		s := format.UnpackSuccessorIndices(indices)
		if err := validSuccessor(s.Taken, n); err != nil {
			return fmt.Errorf("hive: block %d taken successor: %w", id, err)
		}
		if s.Conditional {
			if err := validSuccessor(s.NotTaken, n); err != nil {
				return fmt.Errorf("hive: block %d not-taken successor: %w", id, err)
			}
		}
	}

	dm := h.directMapBytes()
	for idx := uint64(0); idx < h.header.DirectMapCount; idx++ {
		v := format.ReadU32(dm, int(idx)*format.DirectMapEntrySize)
		if v == format.NotCode {
			continue
		}
		if uint64(v) >= n {
			return fmt.Errorf("hive: direct map slot %d references out-of-range block %d", idx, v)
		}
	}

	return nil
}

func validSuccessor(id uint32, blockCount uint64) error {
	if id == format.IndirectSentinel {
		return nil
	}
	if uint64(id) >= blockCount {
		return fmt.Errorf("out-of-range successor id %d >= block count %d", id, blockCount)
	}
	return nil
}
