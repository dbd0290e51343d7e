package tracebuf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/honeybee/honeybee/decoder"
)

// fakeDriver backs MapTraceBuffer with a plain Go slice so Acquire can be
// exercised without real PT hardware.
type fakeDriver struct {
	packetBytes, bufferBytes uint64
	lengthsErr               error
	mapErr                   error
	unmapped                 [][]byte
}

func (f *fakeDriver) GetTraceLengths(uint16) (uint64, uint64, error) {
	if f.lengthsErr != nil {
		return 0, 0, f.lengthsErr
	}
	return f.packetBytes, f.bufferBytes, nil
}

func (f *fakeDriver) MapTraceBuffer(_ uint16, length uint64) ([]byte, error) {
	if f.mapErr != nil {
		return nil, f.mapErr
	}
	return make([]byte, length), nil
}

func (f *fakeDriver) Unmap(data []byte) error {
	f.unmapped = append(f.unmapped, data)
	return nil
}

func TestAcquireNormalTrace(t *testing.T) {
	d := &fakeDriver{packetBytes: 10, bufferBytes: 64}
	buf, err := Acquire(d, 0)
	require.NoError(t, err)
	defer buf.Close()

	require.Len(t, buf.Bytes, 11)
	require.Equal(t, byte(decoder.StopCodon), buf.Bytes[10])
}

// TestAcquireExactFillTruncates is spec.md §6's documented truncation: a
// trace that filled its buffer exactly loses its last packet byte to the
// stop codon rather than leaving no room for the sentinel.
func TestAcquireExactFillTruncates(t *testing.T) {
	d := &fakeDriver{packetBytes: 64, bufferBytes: 64}
	buf, err := Acquire(d, 0)
	require.NoError(t, err)
	defer buf.Close()

	require.Len(t, buf.Bytes, 64)
	require.Equal(t, byte(decoder.StopCodon), buf.Bytes[63])
}

func TestAcquirePropagatesLengthsError(t *testing.T) {
	d := &fakeDriver{lengthsErr: errors.New("cpu busy")}
	_, err := Acquire(d, 3)
	require.Error(t, err)
}

func TestAcquirePropagatesMapError(t *testing.T) {
	d := &fakeDriver{packetBytes: 4, bufferBytes: 16, mapErr: errors.New("mmap failed")}
	_, err := Acquire(d, 0)
	require.Error(t, err)
}

func TestAcquireRejectsUnallocatedBuffer(t *testing.T) {
	d := &fakeDriver{packetBytes: 0, bufferBytes: 0}
	_, err := Acquire(d, 0)
	require.Error(t, err)
}

func TestCloseUnmapsOnce(t *testing.T) {
	d := &fakeDriver{packetBytes: 4, bufferBytes: 16}
	buf, err := Acquire(d, 0)
	require.NoError(t, err)

	require.NoError(t, buf.Close())
	require.NoError(t, buf.Close())
	require.Len(t, d.unmapped, 1)
}
