package decoder

import (
	"encoding/binary"

	"github.com/honeybee/honeybee/internal/buf"
)

// Stats holds packet-kind counters accumulated across a Decoder's lifetime,
// for diagnostics (grounded on the teacher's habit of returning a small
// plain-counters struct alongside a stateful component, see
// hive/merge.StorageStats). It is not consulted by the decoder itself.
type Stats struct {
	PSBResyncs       uint64
	ShortTNTPackets  uint64
	LongTNTPackets   uint64
	TNTBitsProduced  uint64
	TIPPackets       uint64
	TIPPGEPackets    uint64
	TIPPGDPackets    uint64
	FUPPackets       uint64
	OverflowPackets  uint64
	UnsupportedCount uint64
}

// Decoder is a pull-based Intel Processor Trace packet decoder (spec.md
// §4.3). It is bound to one trace buffer at a time via Reset and is not
// safe for concurrent use.
type Decoder struct {
	buf    []byte
	cursor int
	bound  bool

	lastTIP     uint64
	inOverflow  bool

	tnt      tntCache
	indirect indirectCache

	Stats Stats
}

// New returns an unbound Decoder. Call Reset before use.
func New() *Decoder {
	return &Decoder{}
}

// Reset binds the decoder to trace, discarding all prior state including
// the TNT ring and any queued indirect/override target. trace must end with
// the stop-codon byte (0x55); the dispatch loop relies on this sentinel
// instead of a length check (spec.md §4.3 "Stop-codon convention").
func (d *Decoder) Reset(trace []byte) {
	d.buf = trace
	d.cursor = 0
	d.bound = len(trace) > 0
	d.lastTIP = 0
	d.inOverflow = false
	d.tnt.reset()
	d.indirect.reset()
	d.Stats = Stats{}
}

// SyncForward locates the next PSB pattern at or after the cursor, failing
// with ErrCouldNotSync if none exists before the stop codon (spec.md §4.3
// "Sync-forward"). On success the cursor sits at the first byte of the PSB.
func (d *Decoder) SyncForward() error {
	if !d.bound {
		return ErrNotBound
	}

	limit := len(d.buf) - 1 - lenPSB
	for i := d.cursor; i <= limit; i++ {
		if bytesEqual(d.buf[i:i+lenPSB], psbPattern[:]) {
			d.cursor = i
			d.Stats.PSBResyncs++
			return nil
		}
	}
	return ErrCouldNotSync
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// decodeUntilCachesFilled runs the hot dispatch loop: it advances the
// cursor packet by packet until the TNT cache is near full, an indirect or
// override target has just been produced (the caller must be given a
// chance to drain it before more TIPs can queue), the stop codon is
// reached, or an unsupported packet is hit.
func (d *Decoder) decodeUntilCachesFilled() Status {
	for {
		if d.cursor >= len(d.buf) {
			return Internal
		}
		b0 := d.buf[d.cursor]

		switch classify(b0) {
		case kindPad:
			d.cursor++
			for d.cursor < len(d.buf) && d.buf[d.cursor] == 0 {
				d.cursor++
			}

		case kindStopCodon:
			return EndOfStream

		case kindMode:
			d.cursor += lenMode

		case kindShortTNT:
			d.Stats.ShortTNTPackets++
			marker := highestSetBit(uint64(b0))
			d.pushTNTRange(uint64(b0), marker, 1)
			d.cursor++
			if d.tnt.isNearFull() {
				return NoError
			}

		case kindTIP:
			d.Stats.TIPPackets++
			val, ok := d.getIPVal()
			if ok {
				d.indirect.setIndirect(val)
			}
			return NoError

		case kindTIPPGE:
			d.Stats.TIPPGEPackets++
			prev := d.lastTIP
			val, ok := d.getIPVal()
			d.inOverflow = false
			if ok && val != prev {
				d.indirect.setOverride(val)
				return NoError
			}

		case kindTIPPGD:
			d.Stats.TIPPGDPackets++
			d.getIPVal()

		case kindTIPFUP:
			d.Stats.FUPPackets++
			val, ok := d.getIPVal()
			if d.inOverflow {
				if ok {
					d.indirect.setOverride(val)
				}
				d.inOverflow = false
				return NoError
			}

		case kindLevel2:
			status, handled := d.decodeLevel2()
			if !handled {
				return status
			}
			if d.tnt.isNearFull() {
				return NoError
			}

		default:
			d.Stats.UnsupportedCount++
			return UnsupportedPacket
		}
	}
}

// decodeLevel2 dispatches a 0x02-prefixed packet on its second byte.
// handled is false when the caller must return status immediately (an
// unsupported/malformed encoding); handled is true when the loop should
// keep dispatching, which includes an overflow packet (it only sets
// inOverflow).
func (d *Decoder) decodeLevel2() (status Status, handled bool) {
	if d.cursor+1 >= len(d.buf) {
		return Internal, false
	}
	switch d.buf[d.cursor+1] {
	case level2CBR:
		d.cursor += lenCBR
		return NoError, true

	case level2PSBEnd:
		d.cursor += lenPSBEnd
		return NoError, true

	case level2PSB:
		d.cursor += lenPSB
		return NoError, true

	case level2MNT:
		d.cursor += lenMNT
		return NoError, true

	case level2LTNT:
		d.Stats.LongTNTPackets++
		payload := readU64Padded(d.buf, d.cursor+2) & (1<<48 - 1)
		marker := highestSetBit(payload)
		d.pushTNTRange(payload, marker, 0)
		d.cursor += lenLTNT
		return NoError, true

	case level2OVF:
		d.inOverflow = true
		d.Stats.OverflowPackets++
		d.cursor += lenOVF
		return NoError, true

	case level2PIP, level2TS, level2VMCS, level2TMA:
		d.Stats.UnsupportedCount++
		return UnsupportedPacket, false

	default:
		d.Stats.UnsupportedCount++
		return UnsupportedPacket, false
	}
}

// pushTNTRange pushes the bits of value in positions [marker-1, offset]
// into the TNT ring, most-significant bit first (spec.md §4.3 "short TNT"
// / "long TNT"). offset is 1 for short TNT (bit 0 is the packet's opcode
// discriminator, never a TNT decision) and 0 for long TNT (the opcode is
// fully carried by the two-byte prefix, so every bit of the 48-bit payload
// below the marker is a real decision).
func (d *Decoder) pushTNTRange(value uint64, marker int, offset int) {
	for i := marker - 1; i >= offset; i-- {
		bit := int8((value >> uint(i)) & 1)
		d.tnt.pushBack(bit)
		d.Stats.TNTBitsProduced++
	}
}

// getIPVal decompresses a TIP-family packet's IP against lastTIP (spec.md
// §4.3 "IP compression"), advances the cursor past the opcode byte and any
// payload, and updates lastTIP when a new value was supplied. ok is false
// when the packet carried no IP (a zero length field), in which case val
// is meaningless and lastTIP is unchanged.
func (d *Decoder) getIPVal() (val uint64, ok bool) {
	b0 := d.buf[d.cursor]
	d.cursor++
	length := int(b0>>tipShift) & 0x7
	if length == 0 {
		return 0, false
	}

	payload := readU64Padded(d.buf, d.cursor)

	lowMask := ^uint64(0) >> uint((4-length)*16)
	highMask := ^uint64(0) << uint(length*16)
	combined := (payload & lowMask) | (d.lastTIP & highMask)

	// Sign-extend from bit 47: shift the 48-bit value into the top of a
	// 64-bit word and arithmetic-shift it back down.
	val = uint64(int64(combined<<16) >> 16)
	d.lastTIP = val
	d.cursor += length * 2
	return val, true
}

// readU64Padded reads a little-endian uint64 from b at off, zero-padding
// any bytes past len(b) (a payload straddling a truncated trace buffer's
// tail still decodes, just against zero high bytes, rather than panicking).
// buf.Slice is the same bounds-check the teacher uses ahead of its own
// variable-length field reads (internal/format/nk.go, vk.go).
func readU64Padded(b []byte, off int) uint64 {
	if full, ok := buf.Slice(b, off, 8); ok {
		return binary.LittleEndian.Uint64(full)
	}
	var raw [8]byte
	if off >= 0 && off <= len(b) {
		copy(raw[:], b[off:])
	}
	return binary.LittleEndian.Uint64(raw[:])
}

// QueryTNT returns the next taken/not-taken decision (spec.md §4.4
// "query_tnt"). If the ring is empty the decoder is run first. If the ring
// is still empty afterward and an override target is pending, that target
// is returned instead (isOverride true) and the slot is cleared. If
// neither is available, err is the decode pass's own error when it did not
// end with NoError (ErrEndOfStream once the stop codon is reached), and
// ErrTraceDesync otherwise.
func (d *Decoder) QueryTNT() (taken bool, overrideIP uint64, isOverride bool, err error) {
	if !d.bound {
		return false, 0, false, ErrNotBound
	}

	var pending error
	if d.tnt.isEmpty() {
		if status := d.decodeUntilCachesFilled(); status != NoError {
			// A batch that hit end-of-stream or an unsupported packet may
			// still have pushed bits before yielding; drain those first
			// and only surface the status if nothing usable came of it.
			pending = statusError(status)
		}
	}

	if bit, ok := d.tnt.popFront(); ok {
		return bit != 0, 0, false, nil
	}

	if target, isOvr, ok := d.indirect.query(); ok && isOvr {
		return false, target, true, nil
	}

	if pending != nil {
		return false, 0, false, pending
	}
	return false, 0, false, ErrTraceDesync
}

// QueryIndirect returns the next indirect-branch or override target
// (spec.md §4.4 "query_indirect"). An override target always takes
// priority over a queued indirect target. If neither is available the
// decoder is run and the query retried once. A decode pass that does not
// end with NoError returns its own error (ErrEndOfStream once the stop
// codon is reached); if the slots are still empty after a NoError pass,
// err is ErrTraceDesync.
func (d *Decoder) QueryIndirect() (target uint64, isOverride bool, err error) {
	if !d.bound {
		return 0, false, ErrNotBound
	}

	if target, isOverride, ok := d.indirect.query(); ok {
		return target, isOverride, nil
	}

	status := d.decodeUntilCachesFilled()
	if status != NoError {
		return 0, false, statusError(status)
	}

	if target, isOverride, ok := d.indirect.query(); ok {
		return target, isOverride, nil
	}

	return 0, false, ErrTraceDesync
}

// EndOfStream reports whether the decoder's cursor sits on the stop codon,
// i.e. a subsequent query would find nothing left to decode.
func (d *Decoder) EndOfStream() bool {
	return d.bound && d.cursor < len(d.buf) && d.buf[d.cursor] == StopCodon
}
