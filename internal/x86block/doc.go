// Package x86block is the minimal terminator-classifying instruction
// scanner that stands in for the full x86-64 disassembler spec.md
// deliberately treats as an external black box. It does not decode operands
// or produce mnemonics; it decodes just enough of an instruction's prefix
// and opcode bytes to report its length and, if it is a control-flow
// terminator, its block.Category and (if statically known) direct target.
//
// The decode-one-then-classify-terminator shape mirrors the linear-sweep
// loop a full disassembler would use internally, scaled down to the subset
// of x86-64 encodings Honeybee's block extractor actually needs.
package x86block
