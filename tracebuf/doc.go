// Package tracebuf implements the trace-buffer handoff contract between the
// kernel PT capture driver and the decoder (spec.md §6 "Trace buffer
// handoff"). Acquire is the only entry point: it fetches a CPU's trace
// lengths, maps its buffer via bindings.Driver, and stamps the stop codon
// the decoder's dispatch loop relies on in place of a length check.
//
//	drv, err := bindings.Open("/dev/honeybee")
//	...
//	buf, err := tracebuf.Acquire(drv, cpuID)
//	...
//	defer buf.Close()
//	d := decoder.New()
//	d.Reset(buf.Bytes)
package tracebuf
