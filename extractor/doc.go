// Package extractor implements the block extractor: given a binary's
// executable sections, emit the ordered sequence of basic blocks that
// covers every reachable byte (spec.md §4.1).
//
// Extract performs a linear sweep per section using internal/x86block as
// its instruction scanner. A decode failure ends the sweep for that section
// only; other sections are unaffected, matching spec.md's documented edge
// case.
package extractor
