// Package walker implements the block walker: the hot loop that combines a
// hive's successor tables with a decoder's TNT/TIP caches to reconstruct the
// sequence of basic blocks a traced program executed (spec.md §4.5 "Block
// walker").
//
// Run starts from the decoder's first indirect target (the trace's initial
// PSB+TIP) and then, at each block, consumes exactly one TNT bit for a
// conditional terminator or one indirect target for an unresolved one,
// translating the selected successor id/IP pair into the next iteration's
// state. Both successor lobes of a record are always read before either is
// used; which one is kept depends only on the decoder's answer, not on a
// branch taken beforehand, matching the reference decoder's
// fetch-both-then-select shape (spec.md §4.5 "Rationale").
//
//	w := walker.New(h, dec, walker.ReportBlockIP, slide)
//	err := w.Run(func(report uint64) error {
//	    fmt.Println(report)
//	    return nil
//	})
//
// Run returns nil on END_OF_STREAM, the sink's own error if the sink aborts
// the walk, or the decoder/hive error otherwise (TRACE_DESYNC, NO_MAP, and
// so on, per spec.md §7).
package walker
