package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/honeybee/honeybee/bindings"
	"github.com/honeybee/honeybee/decoder"
	"github.com/honeybee/honeybee/hive"
	"github.com/honeybee/honeybee/tracebuf"
	"github.com/honeybee/honeybee/walker"
)

// runCoverage implements the CLI's sole operation (spec.md §6 "CLI
// (coverage front-end)"): launch the target under one address-range PT
// filter, walk the resulting trace through hivePath, and print the
// resulting block and edge coverage.
func runCoverage(cmd *cobra.Command, args []string) error {
	dashAt := cmd.ArgsLenAtDash()
	if dashAt != 3 {
		return fmt.Errorf("usage: %s", cmd.Use)
	}

	hivePath := args[0]
	filterStart, err := parseHexAddr(args[1])
	if err != nil {
		return fmt.Errorf("filter start: %w", err)
	}
	filterStop, err := parseHexAddr(args[2])
	if err != nil {
		return fmt.Errorf("filter stop: %w", err)
	}
	target := args[3]
	targetArgs := args[4:]

	h, err := hive.Open(hivePath)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := h.Validate(); err != nil {
		return fmt.Errorf("hive validation: %w", err)
	}

	drv, err := bindings.Open(driverPath)
	if err != nil {
		return err
	}
	defer drv.Close()

	blocks, edges, err := trace(drv, h, filterStart, filterStop, target, targetArgs)
	if err != nil {
		return err
	}

	fmt.Println(len(blocks))
	fmt.Println(len(edges))
	for _, b := range blocks {
		fmt.Println(b)
	}
	for _, e := range edges {
		fmt.Println(e)
	}
	return nil
}

// trace launches target under PT capture filtered to [filterStart,
// filterStop), walks the resulting trace against h, and returns the
// distinct blocks and edges reached.
//
// Starting the target stopped at its own exec trap and only enabling PT
// once CONFIGURE_TRACE has bound to its pid keeps the race between "process
// runs" and "capture is armed" as small as this binary can make it without a
// real launcher, whose process-control sophistication is out of scope here.
func trace(drv *bindings.Driver, h *hive.Hive, filterStart, filterStop uint64, target string, targetArgs []string) ([]uint64, []uint64, error) {
	child := exec.Command(target, targetArgs...)
	child.Stdout = os.Stderr
	child.Stderr = os.Stderr
	child.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
	if err := child.Start(); err != nil {
		return nil, nil, fmt.Errorf("start target: %w", err)
	}
	pid := child.Process.Pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, nil, fmt.Errorf("wait for target exec stop: %w", err)
	}

	filters := [bindings.ConfigureTraceFilterCount]bindings.RangeFilter{
		{Start: filterStart, Stop: filterStop, Enabled: true},
	}
	if err := drv.ConfigureTrace(traceCPU, uint64(pid), filters); err != nil {
		return nil, nil, fmt.Errorf("configure trace: %w", err)
	}
	if err := drv.SetEnabled(traceCPU, true, true); err != nil {
		return nil, nil, fmt.Errorf("enable trace: %w", err)
	}

	if err := unix.PtraceCont(pid, 0); err != nil {
		return nil, nil, fmt.Errorf("resume target: %w", err)
	}
	printVerbose("honeybee: tracing pid %d\n", pid)

	_ = child.Wait() // the target's own exit status isn't this command's concern

	if err := drv.SetEnabled(traceCPU, false, false); err != nil {
		return nil, nil, fmt.Errorf("disable trace: %w", err)
	}

	buf, err := tracebuf.Acquire(drv, traceCPU)
	if err != nil {
		return nil, nil, err
	}
	defer buf.Close()

	dec := decoder.New()
	dec.Reset(buf.Bytes)
	if err := dec.SyncForward(); err != nil {
		return nil, nil, fmt.Errorf("sync trace: %w", err)
	}

	// TODO(honeybee): derive the runtime slide from /proc/<pid>/maps instead
	// of assuming the target loaded at its link address.
	const slide = 0

	w := walker.New(h, dec, walker.ReportBlockIP, slide)
	return collectCoverage(w)
}

// collectCoverage drains w, reducing its block-IP report stream to the
// distinct blocks visited and the distinct AFL-style edge hashes between
// consecutive reports (spec.md §4.5 step 1's edge-hash formula, applied
// here outside the walker so a single pass yields both coverage sets the
// CLI's output format requires).
func collectCoverage(w *walker.Walker) ([]uint64, []uint64, error) {
	seenBlocks := make(map[uint64]bool)
	seenEdges := make(map[uint64]bool)
	var blocks, edges []uint64
	var lastHash uint64

	err := w.Run(func(report uint64) error {
		if !seenBlocks[report] {
			seenBlocks[report] = true
			blocks = append(blocks, report)
		}
		hash := (lastHash << 1) ^ (report & 0xFFFFFFFF)
		lastHash = hash
		if !seenEdges[hash] {
			seenEdges[hash] = true
			edges = append(edges, hash)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk trace: %w", err)
	}
	return blocks, edges, nil
}

func parseHexAddr(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}
