package builder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/honeybee/honeybee/block"
	"github.com/honeybee/honeybee/hive"
	"github.com/honeybee/honeybee/internal/format"
)

// linear: block0 -> block1 -> block2 (indirect), all direct/fallthrough.
func linearBlocks() []block.Block {
	return []block.Block{
		{Start: 0x1000, Length: 4, TerminatorSize: 1, Category: block.UnconditionalDirect, DirectTarget: 0x1008, HasDirectTarget: true},
		{Start: 0x1008, Length: 4, TerminatorSize: 1, Category: block.UnconditionalDirect, DirectTarget: 0x1010, HasDirectTarget: true},
		{Start: 0x1010, Length: 4, TerminatorSize: 1, Category: block.IndirectOrUnknown},
	}
}

func TestBuildLinearChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linear.hive")
	require.NoError(t, Build(linearBlocks(), path, nil))

	h, err := hive.Open(path)
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, uint64(3), h.BlockCount())
	require.Equal(t, uint64(0x1000), h.UVIPSlide())
	require.Equal(t, uint64(0x15), h.DirectMapCount())

	s, _, err := h.Record(0)
	require.NoError(t, err)
	require.False(t, s.Conditional)
	require.Equal(t, uint32(1), s.Taken)

	s, _, err = h.Record(2)
	require.NoError(t, err)
	require.Equal(t, uint32(format.IndirectSentinel), s.Taken)

	id, ok := h.Lookup(0)
	require.True(t, ok)
	require.Equal(t, uint32(0), id)

	id, ok = h.Lookup(0x10)
	require.True(t, ok)
	require.Equal(t, uint32(2), id)

	require.NoError(t, h.Validate())
}

func TestBuildConditionalFallthrough(t *testing.T) {
	blocks := []block.Block{
		{Start: 0x2000, Length: 4, TerminatorSize: 2, Category: block.Conditional, DirectTarget: 0x2010, HasDirectTarget: true},
		{Start: 0x2006, Length: 4, TerminatorSize: 1, Category: block.IndirectOrUnknown},
		{Start: 0x2010, Length: 4, TerminatorSize: 1, Category: block.IndirectOrUnknown},
	}
	path := filepath.Join(t.TempDir(), "cond.hive")
	require.NoError(t, Build(blocks, path, nil))

	h, err := hive.Open(path)
	require.NoError(t, err)
	defer h.Close()

	s, ips, err := h.Record(0)
	require.NoError(t, err)
	require.True(t, s.Conditional)
	require.Equal(t, uint32(2), s.Taken)
	require.Equal(t, uint32(1), s.NotTaken)
	takenIP, notTakenIP := format.UnpackSuccessorIPs(ips)
	require.Equal(t, uint32(0x10), takenIP)
	require.Equal(t, uint32(0x6), notTakenIP)
}

// TestBuildConditionalFallthroughNonContiguous covers a conditional block
// whose fallthrough successor does not start immediately at b.End() — e.g.
// a gap between independently-swept sections. The not-taken IP must still
// be the block's own end, not the next block's Start (spec.md §4.2 step 3).
func TestBuildConditionalFallthroughNonContiguous(t *testing.T) {
	blocks := []block.Block{
		{Start: 0x2000, Length: 4, TerminatorSize: 2, Category: block.Conditional, DirectTarget: 0x2020, HasDirectTarget: true},
		{Start: 0x2010, Length: 4, TerminatorSize: 1, Category: block.IndirectOrUnknown},
		{Start: 0x2020, Length: 4, TerminatorSize: 1, Category: block.IndirectOrUnknown},
	}
	path := filepath.Join(t.TempDir(), "cond-gap.hive")
	require.NoError(t, Build(blocks, path, nil))

	h, err := hive.Open(path)
	require.NoError(t, err)
	defer h.Close()

	s, ips, err := h.Record(0)
	require.NoError(t, err)
	require.True(t, s.Conditional)
	require.Equal(t, uint32(2), s.Taken)
	require.Equal(t, uint32(1), s.NotTaken)
	_, notTakenIP := format.UnpackSuccessorIPs(ips)
	require.Equal(t, uint32(0x6), notTakenIP, "not-taken IP must be block 0's own end (0x2006-0x2000), not block 1's Start (0x2010-0x2000)")
}

func TestBuildRejectsEmptyBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.hive")
	err := Build(nil, path, nil)
	require.ErrorIs(t, err, format.ErrNoBlocks)
}

func TestBuildRejectsOverlappingBlocks(t *testing.T) {
	blocks := []block.Block{
		{Start: 0x1000, Length: 8, TerminatorSize: 1, Category: block.IndirectOrUnknown},
		{Start: 0x1004, Length: 4, TerminatorSize: 1, Category: block.IndirectOrUnknown},
	}
	path := filepath.Join(t.TempDir(), "overlap.hive")
	err := Build(blocks, path, nil)
	require.ErrorIs(t, err, format.ErrOverlappingBlocks)
}

func TestBuildTreatsUnresolvedDirectTargetAsIndirect(t *testing.T) {
	blocks := []block.Block{
		{Start: 0x1000, Length: 4, TerminatorSize: 1, Category: block.UnconditionalDirect, DirectTarget: 0xdeadbeef, HasDirectTarget: true},
		{Start: 0x1005, Length: 4, TerminatorSize: 1, Category: block.IndirectOrUnknown},
	}
	path := filepath.Join(t.TempDir(), "unresolved.hive")
	require.NoError(t, Build(blocks, path, nil))

	h, err := hive.Open(path)
	require.NoError(t, err)
	defer h.Close()

	s, _, err := h.Record(0)
	require.NoError(t, err)
	require.Equal(t, uint32(format.IndirectSentinel), s.Taken)
}
