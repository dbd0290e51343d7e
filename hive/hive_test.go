package hive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/honeybee/honeybee/internal/format"
)

// writeTestHive assembles a minimal 3-block hive: block 0 falls through to
// block 1 unconditionally, block 1 branches conditionally to block 2 taken /
// back to block 0 not-taken, block 2 ends in an indirect jump.
func writeTestHive(t *testing.T) string {
	t.Helper()

	const blockCount = 3
	// Blocks: [0,4) [4,8) [8,12), each 4 bytes, uvip_slide = 0x1000.
	const uvipSlide = 0x1000
	const directMapCount = 12

	recordTable := make([]byte, format.RecordSize*blockCount)
	format.PutRecord(recordTable, 0,
		format.PackSuccessorIndices(format.Successors{Taken: 1}),
		format.PackSuccessorIPs(4, 0))
	format.PutRecord(recordTable, 1,
		format.PackSuccessorIndices(format.Successors{Conditional: true, Taken: 2, NotTaken: 0}),
		format.PackSuccessorIPs(8, 0))
	format.PutRecord(recordTable, 2,
		format.PackSuccessorIndices(format.Successors{Taken: format.IndirectSentinel}),
		format.PackSuccessorIPs(0, 0))

	directMap := make([]byte, format.DirectMapEntrySize*directMapCount)
	for i := 0; i < 4; i++ {
		format.PutU32(directMap, i*format.DirectMapEntrySize, 0)
	}
	for i := 4; i < 8; i++ {
		format.PutU32(directMap, i*format.DirectMapEntrySize, 1)
	}
	for i := 8; i < 12; i++ {
		format.PutU32(directMap, i*format.DirectMapEntrySize, 2)
	}

	header := make([]byte, format.HeaderSize)
	format.PutHeader(header, format.Header{
		BlockCount:     blockCount,
		UVIPSlide:      uvipSlide,
		DirectMapCount: directMapCount,
	})

	buf := append(header, recordTable...)
	buf = append(buf, directMap...)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.hive")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestOpenAndAccessors(t *testing.T) {
	path := writeTestHive(t)

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, uint64(3), h.BlockCount())
	require.Equal(t, uint64(0x1000), h.UVIPSlide())
	require.Equal(t, uint64(12), h.DirectMapCount())

	s, _, err := h.Record(0)
	require.NoError(t, err)
	require.False(t, s.Conditional)
	require.Equal(t, uint32(1), s.Taken)

	s, ips, err := h.Record(1)
	require.NoError(t, err)
	require.True(t, s.Conditional)
	require.Equal(t, uint32(2), s.Taken)
	require.Equal(t, uint32(0), s.NotTaken)
	takenIP, _ := format.UnpackSuccessorIPs(ips)
	require.Equal(t, uint32(8), takenIP)
}

func TestRecordOutOfRange(t *testing.T) {
	h, err := Open(writeTestHive(t))
	require.NoError(t, err)
	defer h.Close()

	_, _, err = h.Record(3)
	require.ErrorIs(t, err, ErrBlockIDOutOfRange)
}

func TestDirectMapLookup(t *testing.T) {
	h, err := Open(writeTestHive(t))
	require.NoError(t, err)
	defer h.Close()

	id, ok := h.Lookup(0)
	require.True(t, ok)
	require.Equal(t, uint32(0), id)

	id, ok = h.Lookup(5)
	require.True(t, ok)
	require.Equal(t, uint32(1), id)

	id, ok = h.Lookup(9)
	require.True(t, ok)
	require.Equal(t, uint32(2), id)

	_, ok = h.Lookup(1000)
	require.False(t, ok)
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.hive")
	header := make([]byte, format.HeaderSize)
	format.PutHeader(header, format.Header{BlockCount: 5, DirectMapCount: 100})
	require.NoError(t, os.WriteFile(path, header, 0o644))

	_, err := Open(path)
	require.Error(t, err)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.hive")
	require.NoError(t, os.WriteFile(path, make([]byte, format.HeaderSize), 0o644))

	_, err := Open(path)
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedHive(t *testing.T) {
	h, err := Open(writeTestHive(t))
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Validate())
}

func TestValidateRejectsOutOfRangeSuccessor(t *testing.T) {
	path := writeTestHive(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	table := data[format.RecordTableOffset : format.RecordTableOffset+format.RecordSize]
	format.PutRecord(table, 0, format.PackSuccessorIndices(format.Successors{Taken: 99}), 0)
	copy(data[format.RecordTableOffset:format.RecordTableOffset+format.RecordSize], table)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	err = h.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "out-of-range")
}

func TestValidateRejectsOutOfRangeDirectMapEntry(t *testing.T) {
	path := writeTestHive(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	dmOff := format.DirectMapOffset(3)
	format.PutU32(data, int(dmOff), 77)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Close()

	err = h.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "direct map slot")
}
