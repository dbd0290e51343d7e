// Package decoder implements the Intel Processor Trace packet decoder
// (spec.md §4.3 "PT packet decoder", §4.4 "Decoder caches"): a pull-based
// state machine that consumes raw PT bytes and fills two caches — a TNT
// (taken/not-taken) bit ring and a single-slot indirect/override target
// pair — that the walker package drains.
//
// A Decoder is bound to one trace buffer at a time via Reset. The buffer
// must be followed immediately by one stop-codon byte (0x55); the decoder
// relies on this sentinel rather than a length check in its hot dispatch
// loop (spec.md §4.3 "Stop-codon convention").
//
//	d := decoder.New()
//	d.Reset(traceBytes)
//	if err := d.SyncForward(); err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    taken, overrideIP, isOverride, err := d.QueryTNT()
//	    ...
//	}
//
// The dispatch loop (decodeUntilCachesFilled) is the hot path: it is a
// single tight switch on the first packet byte, with no per-handler
// function calls, mirroring the teacher's computed-goto dispatch table
// (spec.md §9 "Computed-goto dispatch").
package decoder
