package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/honeybee/honeybee/block"
)

func TestExtractSingleSectionLinearThenRet(t *testing.T) {
	// mov eax, 1 ; ret
	code := []byte{0xB8, 0x01, 0x00, 0x00, 0x00, 0xC3}
	blocks := Extract([]Section{{VAddr: 0x1000, Data: code}})

	require.Len(t, blocks, 1)
	require.Equal(t, uint64(0x1000), blocks[0].Start)
	require.Equal(t, uint32(5), blocks[0].Length)
	require.Equal(t, uint8(1), blocks[0].TerminatorSize)
	require.Equal(t, block.IndirectOrUnknown, blocks[0].Category)
}

func TestExtractConditionalBranch(t *testing.T) {
	// test eax, eax ; je +0 ; ret
	code := []byte{0x85, 0xC0, 0x74, 0x00, 0xC3}
	blocks := Extract([]Section{{VAddr: 0x2000, Data: code}})

	require.Len(t, blocks, 2)
	require.Equal(t, uint64(0x2000), blocks[0].Start)
	require.Equal(t, block.Conditional, blocks[0].Category)
	require.True(t, blocks[0].HasDirectTarget)
	require.Equal(t, uint64(0x2004), blocks[0].DirectTarget)
	require.Equal(t, uint64(0x2004), blocks[1].Start)
}

func TestExtractStopsOnDecodeFailure(t *testing.T) {
	// valid ret, then an unrecognized SSE opcode
	code := []byte{0xC3, 0x0F, 0x10, 0xC0}
	blocks := Extract([]Section{{VAddr: 0x3000, Data: code}})

	require.Len(t, blocks, 1)
	require.Equal(t, uint64(0x3000), blocks[0].Start)
}

func TestExtractMultipleSectionsMerged(t *testing.T) {
	a := Section{VAddr: 0x5000, Data: []byte{0xC3}}
	b := Section{VAddr: 0x1000, Data: []byte{0xC3}}
	blocks := Extract([]Section{a, b})

	require.Len(t, blocks, 2)
	require.Equal(t, uint64(0x1000), blocks[0].Start)
	require.Equal(t, uint64(0x5000), blocks[1].Start)
}

func TestExtractEmptySection(t *testing.T) {
	blocks := Extract([]Section{{VAddr: 0x1000, Data: nil}})
	require.Empty(t, blocks)
}
