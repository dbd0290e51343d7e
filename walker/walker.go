package walker

import (
	"errors"
	"fmt"

	"github.com/honeybee/honeybee/decoder"
	"github.com/honeybee/honeybee/hive"
	"github.com/honeybee/honeybee/internal/format"
)

// ErrNoMap reports that the walker computed a block id out of range, or the
// direct map returned NotCode for a supposedly valid address (spec.md §7
// "NO_MAP").
var ErrNoMap = errors.New("walker: address not covered by hive")

// ReportMode selects what value Run passes to the sink for each visited
// block (spec.md §4.5 step 1, made an explicit build-time choice per
// SPEC_FULL §4 "Edge-hash reporting mode").
type ReportMode uint8

const (
	// ReportBlockIP reports each block's unslid virtual address.
	ReportBlockIP ReportMode = iota

	// ReportEdgeHash reports an AFL-style edge hash of the current and
	// previous block instead of a raw address.
	ReportEdgeHash
)

// Sink receives one report per visited block. Returning an error aborts the
// walk; Run propagates it unchanged (spec.md §5 "Cancellation").
type Sink func(report uint64) error

// Walker drives a Decoder against a Hive, translating TNT bits and indirect
// targets into a stream of block reports (spec.md §4.5 "Block walker"). A
// Walker owns neither the hive nor the decoder; both may outlive it, and the
// decoder must already be Reset onto the trace buffer to walk.
type Walker struct {
	h    *hive.Hive
	dec  *decoder.Decoder
	mode ReportMode

	// slide is the runtime ASLR bias: an IP from the trace minus slide and
	// the hive's UVIPSlide recovers the address used to index the direct map
	// (spec.md §6 "Trace buffer handoff", glossary "Slide").
	slide uint64

	lastReport uint64
}

// New returns a Walker over h, pulling from dec, reporting in mode, with the
// given trace slide. dec must already be synced (SyncForward) before Run.
func New(h *hive.Hive, dec *decoder.Decoder, mode ReportMode, slide uint64) *Walker {
	return &Walker{h: h, dec: dec, mode: mode, slide: slide}
}

// Run walks the trace to completion, calling sink once per visited block.
// It returns nil on a clean end-of-stream, the sink's error if sink returns
// one, or a wrapped decoder/hive error otherwise (spec.md §4.5
// "Termination").
func (w *Walker) Run(sink Sink) error {
	target, _, err := w.dec.QueryIndirect()
	if err != nil {
		return terminal(err)
	}

	index, err := w.resolve(target)
	if err != nil {
		return err
	}
	vip := target - w.slide - w.h.UVIPSlide()

	for {
		if err := sink(w.reportKey(vip)); err != nil {
			return err
		}

		if uint64(index) >= w.h.BlockCount() {
			return fmt.Errorf("%w: block id %d", ErrNoMap, index)
		}

		rawIndices, rawIPs := w.h.RawRecord(uint64(index))
		succ := format.UnpackSuccessorIndices(rawIndices)
		takenIP, notTakenIP := format.UnpackSuccessorIPs(rawIPs)

		nextIndex := succ.Taken
		nextVIP := uint64(takenIP)
		resolved := false

		if succ.Conditional {
			taken, overrideIP, isOverride, err := w.dec.QueryTNT()
			if err != nil {
				return terminal(err)
			}
			switch {
			case isOverride:
				nextIndex, err = w.resolve(overrideIP)
				if err != nil {
					return err
				}
				nextVIP = overrideIP - w.slide - w.h.UVIPSlide()
				resolved = true
			case taken:
				// nextIndex/nextVIP already hold the taken lobe.
			default:
				nextIndex = succ.NotTaken
				nextVIP = uint64(notTakenIP)
			}
		}

		if !resolved && nextIndex == format.IndirectSentinel {
			target, _, err := w.dec.QueryIndirect()
			if err != nil {
				return terminal(err)
			}
			nextIndex, err = w.resolve(target)
			if err != nil {
				return err
			}
			nextVIP = target - w.slide - w.h.UVIPSlide()
		}

		index, vip = nextIndex, nextVIP
	}
}

// resolve translates a runtime IP (decoder/trace-slide space) into a block
// id via the hive's direct map (spec.md §4.5 steps 4 and 6: "subtract the
// trace slide first").
func (w *Walker) resolve(runtimeIP uint64) (uint32, error) {
	id, ok := w.h.Lookup(runtimeIP - w.slide - w.h.UVIPSlide())
	if !ok {
		return 0, fmt.Errorf("%w: ip %#x", ErrNoMap, runtimeIP)
	}
	return id, nil
}

// reportKey computes the sink value for the block whose own (uvip_slide
// relative) address is vip, per the chosen ReportMode (spec.md §4.5 step 1).
func (w *Walker) reportKey(vip uint64) uint64 {
	if w.mode == ReportEdgeHash {
		key := (w.lastReport << 1) ^ (vip & 0xFFFFFFFF)
		w.lastReport = key
		return key
	}
	return vip + w.h.UVIPSlide()
}

// terminal converts a clean end-of-stream into nil; every other decoder
// error (TraceDesync, UnsupportedPacket, Internal) propagates unchanged.
func terminal(err error) error {
	if errors.Is(err, decoder.ErrEndOfStream) {
		return nil
	}
	return err
}
