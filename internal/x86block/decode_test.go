package x86block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/honeybee/honeybee/block"
)

func TestDecodeJmpRel8(t *testing.T) {
	code := []byte{0xEB, 0x05} // jmp +5
	inst, ok := Decode(code, 0, 0x1000)
	require.True(t, ok)
	require.True(t, inst.Terminator)
	require.Equal(t, block.UnconditionalDirect, inst.Category)
	require.Equal(t, 2, inst.Length)
	require.Equal(t, uint64(0x1000+2+5), inst.Target)
}

func TestDecodeJccRel32(t *testing.T) {
	code := []byte{0x0F, 0x84, 0x10, 0x00, 0x00, 0x00} // je +16
	inst, ok := Decode(code, 0, 0x2000)
	require.True(t, ok)
	require.True(t, inst.Terminator)
	require.Equal(t, block.Conditional, inst.Category)
	require.Equal(t, 6, inst.Length)
	require.Equal(t, uint64(0x2000+6+0x10), inst.Target)
}

func TestDecodeCallRel32(t *testing.T) {
	code := []byte{0xE8, 0x00, 0x00, 0x00, 0x00} // call +0
	inst, ok := Decode(code, 0, 0x3000)
	require.True(t, ok)
	require.True(t, inst.Terminator)
	require.Equal(t, block.UnconditionalDirect, inst.Category)
	require.Equal(t, uint64(0x3005), inst.Target)
}

func TestDecodeRet(t *testing.T) {
	code := []byte{0xC3}
	inst, ok := Decode(code, 0, 0x4000)
	require.True(t, ok)
	require.True(t, inst.Terminator)
	require.Equal(t, block.IndirectOrUnknown, inst.Category)
	require.False(t, inst.HasTarget)
	require.Equal(t, 1, inst.Length)
}

func TestDecodeIndirectCall(t *testing.T) {
	// ff d0 = call rax
	code := []byte{0xFF, 0xD0}
	inst, ok := Decode(code, 0, 0x5000)
	require.True(t, ok)
	require.True(t, inst.Terminator)
	require.Equal(t, block.IndirectOrUnknown, inst.Category)
	require.Equal(t, 2, inst.Length)
}

func TestDecodeSyscall(t *testing.T) {
	code := []byte{0x0F, 0x05}
	inst, ok := Decode(code, 0, 0x6000)
	require.True(t, ok)
	require.True(t, inst.Terminator)
	require.Equal(t, block.IndirectOrUnknown, inst.Category)
}

func TestDecodeNonTerminatorMov(t *testing.T) {
	// 48 89 d8 = mov rax, rbx (REX.W + 0x89 /r, modrm 11 011 000)
	code := []byte{0x48, 0x89, 0xD8}
	inst, ok := Decode(code, 0, 0x7000)
	require.True(t, ok)
	require.False(t, inst.Terminator)
	require.Equal(t, 3, inst.Length)
}

func TestDecodeNonTerminatorMovImm32(t *testing.T) {
	// b8 2a 00 00 00 = mov eax, 0x2a
	code := []byte{0xB8, 0x2A, 0x00, 0x00, 0x00}
	inst, ok := Decode(code, 0, 0x8000)
	require.True(t, ok)
	require.False(t, inst.Terminator)
	require.Equal(t, 5, inst.Length)
}

func TestDecodeUnrecognizedOpcodeFails(t *testing.T) {
	// 0F 10 xx — SSE MOVUPS, outside the covered subset.
	code := []byte{0x0F, 0x10, 0xC0}
	_, ok := Decode(code, 0, 0x9000)
	require.False(t, ok)
}

func TestDecodeTruncatedInstructionFails(t *testing.T) {
	code := []byte{0xE9, 0x01, 0x02} // jmp rel32 but only 2 bytes of displacement
	_, ok := Decode(code, 0, 0xA000)
	require.False(t, ok)
}
