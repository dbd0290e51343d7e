// Package builder turns an ordered list of basic blocks into a hive file:
// the offline half of Honeybee (spec.md §4.2 "Hive builder").
//
// # Overview
//
// Build computes the hive-wide uvip_slide and direct_map_count, resolves
// each block's direct-branch target to a successor block id via binary
// search, packs one 16-byte record per block, and writes header + record
// table + direct map to disk in a single pass.
//
//	blocks := []block.Block{ /* from extractor.Extract */ }
//	if err := builder.Build(blocks, "/tmp/target.hive", nil); err != nil {
//	    log.Fatal(err)
//	}
//
// # Failures
//
// Build reports and aborts on zero blocks, overlapping blocks, and images
// whose executable extent would overflow the hive's 32-bit direct map.
package builder
