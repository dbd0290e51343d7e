package tracebuf

import (
	"fmt"

	"github.com/honeybee/honeybee/decoder"
)

// Driver is the subset of *bindings.Driver that Acquire needs, kept as an
// interface so it can be exercised against a fake in tests without real PT
// hardware (spec.md §6 "Trace buffer handoff").
type Driver interface {
	GetTraceLengths(cpuID uint16) (packetBytes, bufferBytes uint64, err error)
	MapTraceBuffer(cpuID uint16, length uint64) ([]byte, error)
	Unmap(data []byte) error
}

// Buffer is a mapped trace buffer ready to hand to a decoder: Bytes always
// ends with the stop-codon sentinel (spec.md §4.3 "Stop-codon convention").
// Close releases the underlying mapping.
type Buffer struct {
	Bytes   []byte
	release func() error
}

// Close releases the mapping backing Bytes. It is safe to call once.
func (b *Buffer) Close() error {
	if b.release == nil {
		return nil
	}
	err := b.release()
	b.release = nil
	return err
}

// Acquire fetches cpuID's trace lengths, maps its buffer, and prepares it
// for the decoder (spec.md §6 "Trace buffer handoff"): if the trace filled
// the buffer exactly, the packet byte count is truncated by one to make
// room for the stop codon, which is then written at the truncation point.
// GetTraceLengths is only valid while cpuID is not tracing; Acquire does
// not itself stop tracing.
func Acquire(d Driver, cpuID uint16) (*Buffer, error) {
	packetBytes, bufferBytes, err := d.GetTraceLengths(cpuID)
	if err != nil {
		return nil, fmt.Errorf("tracebuf: get trace lengths for cpu %d: %w", cpuID, err)
	}
	if bufferBytes == 0 {
		return nil, fmt.Errorf("tracebuf: cpu %d has no allocated trace buffer", cpuID)
	}

	mapped, err := d.MapTraceBuffer(cpuID, bufferBytes)
	if err != nil {
		return nil, fmt.Errorf("tracebuf: map cpu %d: %w", cpuID, err)
	}

	if packetBytes >= bufferBytes {
		packetBytes = bufferBytes - 1
	}
	mapped[packetBytes] = decoder.StopCodon

	return &Buffer{
		Bytes:   mapped[:packetBytes+1],
		release: func() error { return d.Unmap(mapped) },
	}, nil
}
