package format

import "errors"

var (
	// ErrSignatureMismatch indicates a hive file had an unexpected magic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")

	// ErrTruncated indicates the buffer lacked the bytes required for a
	// structure (header, record table, or direct map).
	ErrTruncated = errors.New("format: truncated buffer")

	// ErrTooLarge indicates the executable image's direct map would need
	// more than 2^32 entries, violating the hive's 32-bit-indexed design
	// (spec.md §1 Non-goals).
	ErrTooLarge = errors.New("format: direct map exceeds 32-bit index space")

	// ErrNoBlocks indicates the builder was asked to pack zero blocks.
	ErrNoBlocks = errors.New("format: no blocks to build")

	// ErrOverlappingBlocks indicates two input blocks claim the same byte
	// range.
	ErrOverlappingBlocks = errors.New("format: overlapping blocks")

	// ErrBoundsCheck indicates a buffer access exceeded bounds.
	ErrBoundsCheck = errors.New("format: buffer bounds exceeded")
)
