package decoder

import "errors"

// Status is the decoder's result code, propagated unchanged up through the
// walker to the caller (spec.md §7 "Error handling design").
type Status int

const (
	// NoError is normal success: the dispatch loop yielded because a cache
	// is near full, not because the stream ended or failed.
	NoError Status = iota

	// EndOfStream reports that the stop codon was consumed. This is an
	// expected terminal status, not a failure.
	EndOfStream

	// CouldNotSync reports that SyncForward found no PSB before the stop
	// codon.
	CouldNotSync

	// TraceDesync reports that a query asked for a TNT bit or an indirect
	// target and the decoder could supply neither, even after running the
	// dispatch loop. This almost always means the hive and the traced
	// binary disagree.
	TraceDesync

	// UnsupportedPacket reports a well-formed but unimplemented packet
	// (PIP, VMCS, or a time-family packet) in the stream.
	UnsupportedPacket

	// Internal reports an unreachable invariant violation.
	Internal
)

// String renders the status name for diagnostics.
func (s Status) String() string {
	switch s {
	case NoError:
		return "NO_ERROR"
	case EndOfStream:
		return "END_OF_STREAM"
	case CouldNotSync:
		return "COULD_NOT_SYNC"
	case TraceDesync:
		return "TRACE_DESYNC"
	case UnsupportedPacket:
		return "UNSUPPORTED_PACKET"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrEndOfStream wraps Status EndOfStream. It is an expected terminal
	// condition, not a failure, but callers need a distinguishable error to
	// stop on rather than mistaking an empty post-EOF cache for desync.
	ErrEndOfStream = errors.New("decoder: " + EndOfStream.String())

	// ErrCouldNotSync wraps Status CouldNotSync for errors.Is callers.
	ErrCouldNotSync = errors.New("decoder: " + CouldNotSync.String())

	// ErrTraceDesync wraps Status TraceDesync.
	ErrTraceDesync = errors.New("decoder: " + TraceDesync.String())

	// ErrUnsupportedPacket wraps Status UnsupportedPacket.
	ErrUnsupportedPacket = errors.New("decoder: " + UnsupportedPacket.String())

	// ErrInternal wraps Status Internal.
	ErrInternal = errors.New("decoder: " + Internal.String())

	// ErrNotBound indicates a method was called before Reset bound a trace
	// buffer to the decoder.
	ErrNotBound = errors.New("decoder: not bound to a trace buffer")
)

// statusError converts a Status into its sentinel error. It returns nil
// only for NoError; EndOfStream converts to ErrEndOfStream because callers
// (the query methods) must be able to tell "the dispatch loop yielded
// because a cache filled" apart from "the stream is over", even though
// neither is a decode failure.
func statusError(s Status) error {
	switch s {
	case NoError:
		return nil
	case EndOfStream:
		return ErrEndOfStream
	case CouldNotSync:
		return ErrCouldNotSync
	case TraceDesync:
		return ErrTraceDesync
	case UnsupportedPacket:
		return ErrUnsupportedPacket
	default:
		return ErrInternal
	}
}
