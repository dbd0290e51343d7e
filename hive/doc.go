// Package hive provides read-only access to a built hive file: the
// header, the packed successor record table, and the byte-addressed direct
// map produced by hive/builder.
//
// A hive is an immutable artifact once built. Opening one maps the whole
// file read-only (internal/mmfile) and decodes accessors directly over that
// mapping; nothing in this package allocates per-lookup.
//
//	h, err := hive.Open("/path/to/target.hive")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//
//	blockID := h.DirectMap(addr - h.UVIPSlide())
//	succ, ips, err := h.Record(uint64(blockID))
//
// Hive instances are safe for concurrent read access from multiple
// goroutines; there is no mutation API.
package hive
