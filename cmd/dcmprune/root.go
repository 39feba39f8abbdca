package main

import (
	"fmt"
	"os"

	"dcmnode/dcmprune/pkg/cli"

	"github.com/spf13/cobra"
)

// DefaultConfigPath is read when --config is not given. It may be absent.
const DefaultConfigPath = "/etc/dcmprune/config.yaml"

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dcmprune",
	Short: "dcmprune - retention for DICOM storage nodes",
	Long: `dcmprune keeps the disk of a DICOM storage node from filling up.

When free space on the storage root drops below the configured threshold it
deletes the oldest stored objects, across all AE directories, until the
threshold is met again or the per-run cap is reached. Every deletion is
reflected in the per-AE catalog, and objects still being received are never
touched.

Exit codes:
  0  success (including no-op, skipped and cancelled runs)
  1  failure
  2  configuration error
  3  storage root unavailable`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", DefaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
