package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	quiet   bool
)

// driverPath is the kernel PT capture device. Not exposed as a flag: the
// CLI's argument contract is deliberately just the positional one below.
const driverPath = "/dev/honeybee"

// traceCPU is the CPU the target is traced on. Pinning the target process to
// a CPU is the launcher's job and out of scope here.
const traceCPU = uint16(0)

var rootCmd = &cobra.Command{
	Use:   "honeybee <hive> <filter-start-hex> <filter-stop-hex> -- <target> [args...]",
	Short: "Trace a target binary through a hive and report its block/edge coverage",
	Long: `honeybee launches a target binary under kernel Processor Trace
capture, filtered to one address range, and walks the resulting trace
through a prebuilt hive to produce a coverage report: the set of basic
blocks reached and the set of edges taken between them.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.MinimumNArgs(4),
	RunE:          runCoverage,
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable progress output on stderr")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output on stderr")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%s\n", err)
		os.Exit(1)
	}
}

// printVerbose writes a progress line to stderr. stdout is reserved
// exclusively for the documented coverage report.
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "honeybee: "+format, args...)
}
