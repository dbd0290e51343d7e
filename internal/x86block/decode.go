package x86block

import "github.com/honeybee/honeybee/block"

// Instruction is the minimal decode result the extractor needs: how many
// bytes the instruction occupies, and — if it is a control-flow terminator
// — enough to build a block.Block record.
type Instruction struct {
	Length     int
	Terminator bool
	Category   block.Category
	Target     uint64
	HasTarget  bool
}

// legacyPrefix reports whether b is one of the x86-64 legacy prefix bytes
// this decoder recognizes (operand/address size, segment overrides, lock,
// repeat).
func legacyPrefix(b byte) bool {
	switch b {
	case 0x66, 0x67, 0xF0, 0xF2, 0xF3, 0x2E, 0x36, 0x3E, 0x26, 0x64, 0x65:
		return true
	default:
		return false
	}
}

// Decode decodes one instruction starting at code[pos], where vaddr is the
// virtual address of code[pos]. It reports ok=false when it encounters an
// encoding outside the subset it understands; callers (the extractor) treat
// that as a decode failure and stop sweeping the current section, per
// spec.md §4.1's documented edge case.
func Decode(code []byte, pos int, vaddr uint64) (Instruction, bool) {
	start := pos
	n := len(code)

	var rexW, rexPresent bool
	for pos < n && legacyPrefix(code[pos]) {
		pos++
	}
	if pos < n && code[pos] >= 0x40 && code[pos] <= 0x4F {
		rexW = code[pos]&0x08 != 0
		rexPresent = true
		pos++
	}
	_ = rexPresent
	if pos >= n {
		return Instruction{}, false
	}

	op := code[pos]
	opPos := pos
	pos++

	switch {
	case op == 0x0F:
		return decodeTwoByte(code, start, pos, vaddr)

	case op >= 0x70 && op <= 0x7F:
		// Jcc rel8
		if pos >= n {
			return Instruction{}, false
		}
		rel := int8(code[pos])
		pos++
		return terminatorResult(start, pos, vaddr, block.Conditional, rel8Target(vaddr, pos-start, rel), true), true

	case op == 0xEB:
		if pos >= n {
			return Instruction{}, false
		}
		rel := int8(code[pos])
		pos++
		return terminatorResult(start, pos, vaddr, block.UnconditionalDirect, rel8Target(vaddr, pos-start, rel), true), true

	case op == 0xE9:
		rel, ok := readI32(code, pos)
		if !ok {
			return Instruction{}, false
		}
		pos += 4
		return terminatorResult(start, pos, vaddr, block.UnconditionalDirect, rel32Target(vaddr, pos-start, rel), true), true

	case op == 0xE8:
		rel, ok := readI32(code, pos)
		if !ok {
			return Instruction{}, false
		}
		pos += 4
		return terminatorResult(start, pos, vaddr, block.UnconditionalDirect, rel32Target(vaddr, pos-start, rel), true), true

	case op == 0xC2:
		if pos+2 > n {
			return Instruction{}, false
		}
		pos += 2
		return terminatorResult(start, pos, vaddr, block.IndirectOrUnknown, 0, false), true

	case op == 0xC3:
		return terminatorResult(start, pos, vaddr, block.IndirectOrUnknown, 0, false), true

	case op == 0xCC:
		return terminatorResult(start, pos, vaddr, block.IndirectOrUnknown, 0, false), true

	case op == 0xCD:
		if pos >= n {
			return Instruction{}, false
		}
		pos++
		return terminatorResult(start, pos, vaddr, block.IndirectOrUnknown, 0, false), true

	case op == 0xFF:
		if pos >= n {
			return Instruction{}, false
		}
		modrm := code[pos]
		reg := (modrm >> 3) & 0x7
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return Instruction{}, false
		}
		pos += mlen
		switch reg {
		case 2, 3, 4, 5:
			// CALL/CALLF/JMP/JMPF r/m: target unknown until runtime.
			return terminatorResult(start, pos, vaddr, block.IndirectOrUnknown, 0, false), true
		default:
			return Instruction{Length: pos - start}, true
		}

	default:
		length, ok := decodeLegacyNonTerminator(code, opPos, pos, rexW)
		if !ok {
			return Instruction{}, false
		}
		// length is counted from the opcode; add the prefix/REX bytes.
		return Instruction{Length: opPos - start + length}, true
	}
}

func decodeTwoByte(code []byte, start, pos int, vaddr uint64) (Instruction, bool) {
	n := len(code)
	if pos >= n {
		return Instruction{}, false
	}
	op2 := code[pos]
	pos++

	switch {
	case op2 >= 0x80 && op2 <= 0x8F:
		rel, ok := readI32(code, pos)
		if !ok {
			return Instruction{}, false
		}
		pos += 4
		return terminatorResult(start, pos, vaddr, block.Conditional, rel32Target(vaddr, pos-start, rel), true), true

	case op2 == 0x05, op2 == 0x07:
		// SYSCALL / SYSRET
		return terminatorResult(start, pos, vaddr, block.IndirectOrUnknown, 0, false), true

	case op2 == 0x1F:
		// multi-byte NOP
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return Instruction{}, false
		}
		pos += mlen
		return Instruction{Length: pos - start}, true

	case op2 == 0xAF, op2 == 0xB6, op2 == 0xB7, op2 == 0xBE, op2 == 0xBF:
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return Instruction{}, false
		}
		pos += mlen
		return Instruction{Length: pos - start}, true

	default:
		// Unrecognized two-byte opcode (SSE/AVX families, etc.): outside
		// the subset this scanner covers.
		return Instruction{}, false
	}
}

// decodeLegacyNonTerminator covers the one-byte opcode subset common in
// compiler-generated code that never terminates a basic block.
func decodeLegacyNonTerminator(code []byte, opPos, pos int, rexW bool) (int, bool) {
	n := len(code)
	op := code[opPos]
	start := opPos
	_ = rexW

	switch {
	case op <= 0x3D && (op&0x07) <= 0x05 && op != 0x0F:
		// ALU family: /r forms (no imm), AL,imm8 forms, eAX,imm32 forms.
		switch op & 0x07 {
		case 0x04: // AL, imm8
			if pos >= n {
				return 0, false
			}
			return pos + 1 - start, true
		case 0x05: // eAX, imm32
			if pos+4 > n {
				return 0, false
			}
			return pos + 4 - start, true
		default: // /r forms
			mlen, ok := modRMLen(code, pos)
			if !ok {
				return 0, false
			}
			return pos + mlen - start, true
		}

	case op >= 0x50 && op <= 0x5F:
		return pos - start, true

	case op == 0x68:
		if pos+4 > n {
			return 0, false
		}
		return pos + 4 - start, true

	case op == 0x6A:
		if pos+1 > n {
			return 0, false
		}
		return pos + 1 - start, true

	case op == 0x69:
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return 0, false
		}
		if pos+mlen+4 > n {
			return 0, false
		}
		return pos + mlen + 4 - start, true

	case op == 0x6B:
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return 0, false
		}
		if pos+mlen+1 > n {
			return 0, false
		}
		return pos + mlen + 1 - start, true

	case op == 0x80, op == 0x83, op == 0xC0, op == 0xC1, op == 0xC6:
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return 0, false
		}
		if pos+mlen+1 > n {
			return 0, false
		}
		return pos + mlen + 1 - start, true

	case op == 0x81, op == 0xC7:
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return 0, false
		}
		if pos+mlen+4 > n {
			return 0, false
		}
		return pos + mlen + 4 - start, true

	case op == 0x84, op == 0x85, op == 0x86, op == 0x87,
		op == 0x88, op == 0x89, op == 0x8A, op == 0x8B, op == 0x8D, op == 0x8F,
		op == 0xD0, op == 0xD1, op == 0xD2, op == 0xD3, op == 0xFE:
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return 0, false
		}
		return pos + mlen - start, true

	case op == 0xF6:
		modrm, ok := peek(code, pos)
		if !ok {
			return 0, false
		}
		reg := (modrm >> 3) & 0x7
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return 0, false
		}
		if reg == 0 || reg == 1 { // TEST Eb, imm8
			if pos+mlen+1 > n {
				return 0, false
			}
			return pos + mlen + 1 - start, true
		}
		return pos + mlen - start, true

	case op == 0xF7:
		modrm, ok := peek(code, pos)
		if !ok {
			return 0, false
		}
		reg := (modrm >> 3) & 0x7
		mlen, ok := modRMLen(code, pos)
		if !ok {
			return 0, false
		}
		if reg == 0 || reg == 1 { // TEST Ev, imm32
			if pos+mlen+4 > n {
				return 0, false
			}
			return pos + mlen + 4 - start, true
		}
		return pos + mlen - start, true

	case op == 0x90, op == 0x98, op == 0x99, op == 0x9C, op == 0x9D, op == 0xC9,
		op == 0xF4, op == 0xF8, op == 0xF9, op == 0xFA, op == 0xFB, op == 0xFC, op == 0xFD:
		return pos - start, true

	case op >= 0x91 && op <= 0x97:
		return pos - start, true

	case op == 0xA8:
		if pos+1 > n {
			return 0, false
		}
		return pos + 1 - start, true

	case op == 0xA9:
		if pos+4 > n {
			return 0, false
		}
		return pos + 4 - start, true

	case op >= 0xB0 && op <= 0xB7:
		if pos+1 > n {
			return 0, false
		}
		return pos + 1 - start, true

	case op >= 0xB8 && op <= 0xBF:
		immSize := 4
		if rexW {
			immSize = 8
		}
		if pos+immSize > n {
			return 0, false
		}
		return pos + immSize - start, true

	default:
		return 0, false
	}
}

func peek(code []byte, pos int) (byte, bool) {
	if pos >= len(code) {
		return 0, false
	}
	return code[pos], true
}

func terminatorResult(start, end int, vaddr uint64, cat block.Category, target uint64, hasTarget bool) Instruction {
	return Instruction{
		Length:     end - start,
		Terminator: true,
		Category:   cat,
		Target:     target,
		HasTarget:  hasTarget,
	}
}

func rel8Target(vaddr uint64, instrLen int, rel int8) uint64 {
	return vaddr + uint64(instrLen) + uint64(int64(rel))
}

func rel32Target(vaddr uint64, instrLen int, rel int32) uint64 {
	return vaddr + uint64(instrLen) + uint64(int64(rel))
}

func readI32(code []byte, pos int) (int32, bool) {
	if pos+4 > len(code) {
		return 0, false
	}
	v := uint32(code[pos]) | uint32(code[pos+1])<<8 | uint32(code[pos+2])<<16 | uint32(code[pos+3])<<24
	return int32(v), true
}

// modRMLen returns the number of bytes consumed starting at code[pos] by a
// ModRM byte plus any SIB and displacement bytes it implies.
func modRMLen(code []byte, pos int) (int, bool) {
	if pos >= len(code) {
		return 0, false
	}
	modrm := code[pos]
	mod := modrm >> 6
	rm := modrm & 0x7

	length := 1 // the ModRM byte itself

	if mod == 0b11 {
		return length, true
	}

	hasSIB := rm == 0b100
	if hasSIB {
		if pos+length >= len(code) {
			return 0, false
		}
		sib := code[pos+length]
		length++
		base := sib & 0x7
		if mod == 0b00 && base == 0b101 {
			length += 4 // disp32, no base
		}
	} else if mod == 0b00 && rm == 0b101 {
		length += 4 // RIP-relative disp32
	}

	switch mod {
	case 0b01:
		length++ // disp8
	case 0b10:
		length += 4 // disp32
	}

	if pos+length > len(code) {
		return 0, false
	}
	return length, true
}
