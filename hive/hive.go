package hive

import (
	"errors"
	"fmt"

	"github.com/honeybee/honeybee/internal/format"
	"github.com/honeybee/honeybee/internal/mmfile"
)

// ErrBlockIDOutOfRange indicates a requested block id is >= BlockCount.
var ErrBlockIDOutOfRange = errors.New("hive: block id out of range")

// Hive is an opened, read-only hive file: header, record table, and direct
// map, all views over a single memory mapping.
type Hive struct {
	data    []byte
	release func() error
	header  format.Header
}

// Open maps path into memory and parses its header. The returned Hive must
// be closed with Close when no longer needed.
func Open(path string) (*Hive, error) {
	data, release, err := mmfile.Map(path)
	if err != nil {
		return nil, fmt.Errorf("hive: open %s: %w", path, err)
	}

	h, err := hiveFromBytes(data, release)
	if err != nil {
		_ = release()
		return nil, err
	}
	return h, nil
}

func hiveFromBytes(data []byte, release func() error) (*Hive, error) {
	hdr, err := format.ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("hive: %w", err)
	}

	wantLen := format.DirectMapOffset(hdr.BlockCount) + int64(hdr.DirectMapCount)*format.DirectMapEntrySize
	if int64(len(data)) < wantLen {
		return nil, fmt.Errorf("hive: %w: have %d bytes, need %d", format.ErrTruncated, len(data), wantLen)
	}

	return &Hive{data: data, release: release, header: hdr}, nil
}

// Close releases the underlying mapping. It is safe to call once.
func (h *Hive) Close() error {
	if h == nil || h.release == nil {
		return nil
	}
	err := h.release()
	h.release = nil
	h.data = nil
	return err
}

// BlockCount is the number of basic blocks in the hive.
func (h *Hive) BlockCount() uint64 { return h.header.BlockCount }

// UVIPSlide is the base virtual address every stored IP is relative to: the
// lowest block's start address.
func (h *Hive) UVIPSlide() uint64 { return h.header.UVIPSlide }

// DirectMapCount is the number of entries in the direct map, one per byte of
// the binary's executable extent.
func (h *Hive) DirectMapCount() uint64 { return h.header.DirectMapCount }

func (h *Hive) recordTable() []byte {
	start := format.RecordTableOffset
	end := start + int(h.header.BlockCount)*format.RecordSize
	return h.data[start:end]
}

func (h *Hive) directMapBytes() []byte {
	start := format.DirectMapOffset(h.header.BlockCount)
	end := start + int64(h.header.DirectMapCount)*format.DirectMapEntrySize
	return h.data[start:end]
}

// Record returns the decoded successor indices and successor IPs for block
// id. It fails with ErrBlockIDOutOfRange if id >= BlockCount.
func (h *Hive) Record(id uint64) (format.Successors, uint64, error) {
	if id >= h.header.BlockCount {
		return format.Successors{}, 0, ErrBlockIDOutOfRange
	}
	indices, ips := format.ReadRecord(h.recordTable(), id)
	return format.UnpackSuccessorIndices(indices), ips, nil
}

// RawRecord returns the undecoded successor_indices/successor_ips pair for
// block id, for callers (the walker hot loop) that want to do their own bit
// arithmetic without allocating a Successors value.
func (h *Hive) RawRecord(id uint64) (successorIndices, successorIPs uint64) {
	return format.ReadRecord(h.recordTable(), id)
}

// DirectMap returns the block id stored at direct-map index idx (idx is a
// byte offset relative to UVIPSlide), or format.NotCode if idx is out of
// range or the byte is not part of any block.
func (h *Hive) DirectMap(idx uint64) uint32 {
	if idx >= h.header.DirectMapCount {
		return format.NotCode
	}
	return format.ReadU32(h.directMapBytes(), int(idx)*format.DirectMapEntrySize)
}

// Lookup resolves a slid virtual address (relative to UVIPSlide) to a block
// id via the direct map. Block 0 starts at UVIPSlide and its slots hold id
// 0, the same value as NotCode, so a zero slot resolves to block 0 only
// when every slot before it is zero too. It returns ok=false if the address
// is out of range or lands on any other NotCode byte.
func (h *Hive) Lookup(slidAddr uint64) (id uint32, ok bool) {
	if slidAddr >= h.header.DirectMapCount {
		return 0, false
	}
	v := h.DirectMap(slidAddr)
	if v != format.NotCode {
		return v, true
	}
	for idx := uint64(0); idx < slidAddr; idx++ {
		if h.DirectMap(idx) != format.NotCode {
			return 0, false
		}
	}
	return 0, true
}
