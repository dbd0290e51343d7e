package format

// Header is a decoded view of the 32-byte hive header (spec.md §6).
type Header struct {
	BlockCount     uint64
	UVIPSlide      uint64
	DirectMapCount uint64
}

// ParseHeader validates the magic and decodes the fixed header fields from
// the front of a hive file.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTruncated
	}
	for i, want := range Magic {
		if b[MagicOffset+i] != want {
			return Header{}, ErrSignatureMismatch
		}
	}
	return Header{
		BlockCount:     ReadU64(b, BlockCountOffset),
		UVIPSlide:      ReadU64(b, UVIPSlideOffset),
		DirectMapCount: ReadU64(b, DirectMapCountOffset),
	}, nil
}

// PutHeader encodes h into the first HeaderSize bytes of b.
func PutHeader(b []byte, h Header) {
	copy(b[MagicOffset:MagicOffset+MagicSize], Magic)
	PutU64(b, BlockCountOffset, h.BlockCount)
	PutU64(b, UVIPSlideOffset, h.UVIPSlide)
	PutU64(b, DirectMapCountOffset, h.DirectMapCount)
}

// RecordTableOffset is the absolute byte offset where the packed record
// table begins.
const RecordTableOffset = HeaderSize

// DirectMapOffset returns the absolute byte offset where the direct map
// begins, given the number of blocks in the record table.
func DirectMapOffset(blockCount uint64) int64 {
	return int64(RecordTableOffset) + int64(blockCount)*RecordSize
}

// Successors is the decoded view of a record's successor_indices field.
type Successors struct {
	Conditional bool
	Taken       uint32 // block id, or IndirectSentinel
	NotTaken    uint32 // block id, or IndirectSentinel; meaningful only if Conditional
}

// PackSuccessorIndices encodes s into the 64-bit successor_indices layout
// (spec.md §3 "Hive record").
func PackSuccessorIndices(s Successors) uint64 {
	var v uint64
	if s.Conditional {
		v |= 1 << CondFlagBit
	}
	v |= uint64(s.Taken) << TakenIndexShift
	v |= uint64(s.NotTaken) << NotTakenIndexBit
	return v
}

// UnpackSuccessorIndices decodes the successor_indices field.
func UnpackSuccessorIndices(v uint64) Successors {
	return Successors{
		Conditional: v&1 != 0,
		Taken:       uint32((v & TakenIndexMask) >> TakenIndexShift),
		NotTaken:    uint32((v & NotTakenIndexMask) >> NotTakenIndexBit),
	}
}

// PackSuccessorIPs packs the taken/not-taken slid virtual IPs (each
// truncated to 32 bits, per spec.md §3) into the 64-bit successor_ips field.
func PackSuccessorIPs(takenIP, notTakenIP uint32) uint64 {
	return uint64(takenIP)<<TakenIPShift | uint64(notTakenIP)<<NotTakenIPShift
}

// UnpackSuccessorIPs decodes the successor_ips field into its taken and
// not-taken 32-bit slid IPs.
func UnpackSuccessorIPs(v uint64) (takenIP, notTakenIP uint32) {
	return uint32(v >> TakenIPShift), uint32(v >> NotTakenIPShift)
}

// ReadRecord decodes the record for block id at the record table that
// begins at table[0:].
func ReadRecord(table []byte, id uint64) (successorIndices, successorIPs uint64) {
	off := int(id) * RecordSize
	return ReadU64(table, off), ReadU64(table, off+8)
}

// PutRecord encodes one record into table at the slot for block id.
func PutRecord(table []byte, id uint64, successorIndices, successorIPs uint64) {
	off := int(id) * RecordSize
	PutU64(table, off, successorIndices)
	PutU64(table, off+8, successorIPs)
}
