// Package bindings is the low-level ioctl/mmap client for the kernel PT
// capture driver (spec.md §6 "Kernel driver ioctl surface"). It is a thin,
// allocation-light wrapper: one Go struct per C packet, sized to match the
// kernel's layout exactly, and one method per ioctl. Nothing here decodes
// PT bytes or touches a hive; tracebuf builds on top of it to produce the
// {pointer, packet_bytes} pair the decoder consumes.
//
// The driver itself, and the MSR programming behind it, are out of scope
// (spec.md §1 "Deliberately out of scope"); this package models only the
// ioctl surface it exposes, grounded directly on the original driver's
// hb_driver_packets.h.
package bindings

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// HB_DRIVER_PACKET_IOC_MAGIC in the original header.
const iocMagic = 0xab

// Linux's _IOC "read" direction, matching the driver's _IOR-only ioctls.
const iocRead = 2

// iocR reproduces the Linux _IOR(type, nr, size) macro: direction(2) in the
// top two bits, magic, ioctl number, and payload size packed into one
// request code.
func iocR(nr, size uintptr) uintptr {
	return iocRead<<30 | iocMagic<<8 | nr | size<<16
}

// rangeFilter mirrors hb_driver_packet_range_filter.
type rangeFilter struct {
	StartAddress uint64
	StopAddress  uint64
	Enabled      uint8
}

// configureBuffersPacket mirrors hb_driver_packet_configure_buffers.
type configureBuffersPacket struct {
	Count          uint32
	PageCountPower uint8
}

// setEnabledPacket mirrors hb_driver_packet_set_enabled.
type setEnabledPacket struct {
	CPUID       uint16
	Enabled     uint8
	ResetOutput uint8
}

// ConfigureTraceFilterCount is HB_DRIVER_PACKET_CONFIGURE_TRACE_FILTER_COUNT:
// the number of range filters a CONFIGURE_TRACE call carries, regardless of
// how many the hardware actually honors.
const ConfigureTraceFilterCount = 4

// configureTracePacket mirrors hb_driver_packet_configure_trace.
type configureTracePacket struct {
	CPUID   uint16
	Filters [ConfigureTraceFilterCount]rangeFilter
	PID     uint64
}

// getTraceLengthsPacket mirrors hb_driver_packet_get_trace_lengths. The two
// C pointer fields become uintptrs holding the addresses of this call's out
// parameters; the kernel writes through them directly.
type getTraceLengthsPacket struct {
	CPUID          uint16
	PacketBytesOut uintptr
	BufferBytesOut uintptr
}

var (
	iocConfigureBuffers = iocR(1, unsafe.Sizeof(configureBuffersPacket{}))
	iocSetEnabled       = iocR(2, unsafe.Sizeof(setEnabledPacket{}))
	iocConfigureTrace   = iocR(3, unsafe.Sizeof(configureTracePacket{}))
	iocGetTraceLengths  = iocR(4, unsafe.Sizeof(getTraceLengthsPacket{}))
)

// RangeFilter is one address-range trace filter (spec.md §6
// "CONFIGURE_TRACE"): addresses in [Start, Stop) are traced when Enabled.
type RangeFilter struct {
	Start, Stop uint64
	Enabled     bool
}

// Driver is an open handle to the kernel PT capture device.
type Driver struct {
	f *os.File
}

// Open opens the kernel driver's control device (conventionally a character
// device such as /dev/honeybee).
func Open(path string) (*Driver, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("bindings: open %s: %w", path, err)
	}
	return &Driver{f: f}, nil
}

// Close releases the driver handle.
func (d *Driver) Close() error {
	return d.f.Close()
}

func (d *Driver) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// ConfigureBuffers (re)allocates ToPA buffers of 2^pageCountPower pages per
// CPU (spec.md §6 "CONFIGURE_BUFFERS"). It is invalid while any CPU is
// tracing.
func (d *Driver) ConfigureBuffers(count uint32, pageCountPower uint8) error {
	req := configureBuffersPacket{Count: count, PageCountPower: pageCountPower}
	return d.ioctl(iocConfigureBuffers, unsafe.Pointer(&req))
}

// SetEnabled starts or stops PT on one CPU (spec.md §6 "SET_ENABLED").
// Tracing must be disabled before the buffer is read; the stop codon is
// written by the consumer (tracebuf.Acquire), not by the driver.
// resetOutput, when true, also resets the CPU's output pointer.
func (d *Driver) SetEnabled(cpuID uint16, enabled, resetOutput bool) error {
	req := setEnabledPacket{
		CPUID:       cpuID,
		Enabled:     boolToU8(enabled),
		ResetOutput: boolToU8(resetOutput),
	}
	return d.ioctl(iocSetEnabled, unsafe.Pointer(&req))
}

// ConfigureTrace binds cpuID's trace to pid's address space and installs up
// to ConfigureTraceFilterCount address-range filters (spec.md §6
// "CONFIGURE_TRACE"). pid must already have exec'd into its own address
// space; the kernel exchanges it for a CR3 value internally. Only the first
// N filters the hardware supports are honored.
func (d *Driver) ConfigureTrace(cpuID uint16, pid uint64, filters [ConfigureTraceFilterCount]RangeFilter) error {
	var req configureTracePacket
	req.CPUID = cpuID
	req.PID = pid
	for i, f := range filters {
		req.Filters[i] = rangeFilter{
			StartAddress: f.Start,
			StopAddress:  f.Stop,
			Enabled:      boolToU8(f.Enabled),
		}
	}
	return d.ioctl(iocConfigureTrace, unsafe.Pointer(&req))
}

// GetTraceLengths reports how many packet bytes are valid and how large
// cpuID's allocated trace buffer is (spec.md §6 "GET_TRACE_LENGTHS"). Valid
// only while the CPU is not tracing.
func (d *Driver) GetTraceLengths(cpuID uint16) (packetBytes, bufferBytes uint64, err error) {
	req := getTraceLengthsPacket{
		CPUID:          cpuID,
		PacketBytesOut: uintptr(unsafe.Pointer(&packetBytes)),
		BufferBytesOut: uintptr(unsafe.Pointer(&bufferBytes)),
	}
	ioctlErr := d.ioctl(iocGetTraceLengths, unsafe.Pointer(&req))
	runtime.KeepAlive(&packetBytes)
	runtime.KeepAlive(&bufferBytes)
	if ioctlErr != nil {
		return 0, 0, ioctlErr
	}
	return packetBytes, bufferBytes, nil
}

// MapTraceBuffer maps cpuID's trace buffer, sized length bytes, using the
// driver's per-CPU offset convention (spec.md §6 "Trace buffer handoff":
// the capture layer "mmaps the CPU's buffer at offset page_size × cpu_id",
// letting one file descriptor vend every CPU's buffer). The mapping is
// writable because the consumer must stamp the stop codon into it (spec.md
// §6); the mapping must be released with Unmap.
func (d *Driver) MapTraceBuffer(cpuID uint16, length uint64) ([]byte, error) {
	offset := int64(os.Getpagesize()) * int64(cpuID)
	data, err := unix.Mmap(int(d.f.Fd()), offset, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("bindings: mmap cpu %d: %w", cpuID, err)
	}
	return data, nil
}

// Unmap releases a mapping returned by MapTraceBuffer.
func (d *Driver) Unmap(data []byte) error {
	return Unmap(data)
}

// Unmap releases a mapping returned by MapTraceBuffer.
func Unmap(data []byte) error {
	return unix.Munmap(data)
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
