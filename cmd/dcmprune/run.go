package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"dcmnode/dcmprune/pkg/cli"
	"dcmnode/dcmprune/pkg/config"
	"dcmnode/dcmprune/pkg/retention"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var runFlags struct {
	root         string
	threshold    string
	maxDeletions int
	ageKey       string
	dryRun       bool
	format       string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one retention pass",
	Long: `Run one retention pass over the storage root and exit.

If free space already meets the threshold nothing is touched. Otherwise the
oldest objects across all AE directories are deleted until the threshold is
met, the per-run cap is reached or no candidates remain. If another pass is
already running this one is skipped.

Examples:
  # Keep 15% of the filesystem free
  dcmprune run --root /var/lib/dcmtk/db --threshold 15%

  # Keep 200 GiB free, at most 5000 deletions
  dcmprune run --threshold 200GiB --max-deletions 5000

  # Show what would be deleted
  dcmprune run --dry-run --format json`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.root, "root", "", "override storage root")
	runCmd.Flags().StringVarP(&runFlags.threshold, "threshold", "t", "", `override free space threshold ("15%" or "20GiB")`)
	runCmd.Flags().IntVar(&runFlags.maxDeletions, "max-deletions", 0, "override per-run deletion cap (0 = unlimited)")
	runCmd.Flags().StringVar(&runFlags.ageKey, "age-key", "", "override eviction order: received, study_date, mtime")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "plan evictions without deleting anything")
	runCmd.Flags().StringVarP(&runFlags.format, "format", "f", "text", "output format: text, json")
}

func runPrune(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(runFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewConfigError("format", "run output supports text and json")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	ev, runErr := eng.pruner.Invoke(ctx)

	if path := cfg.Telemetry.Metrics.TextfilePath; path != "" && cfg.Telemetry.Metrics.Enabled {
		if err := eng.collector.WriteTextfile(path); err != nil {
			slog.Warn("failed to write metrics textfile", "error", err)
		}
	}

	if err := printEvent(cmd.OutOrStdout(), format, ev); err != nil {
		return err
	}

	if runErr != nil {
		return cli.NewCommandError("run", runErr)
	}
	return nil
}

// applyRunFlags overrides the loaded configuration with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Storage.Root = runFlags.root
	}
	if flags.Changed("threshold") {
		cfg.Retention.Threshold = runFlags.threshold
	}
	if flags.Changed("max-deletions") {
		cfg.Retention.MaxDeletions = runFlags.maxDeletions
	}
	if flags.Changed("age-key") {
		cfg.Retention.AgeKey = runFlags.ageKey
	}
	if flags.Changed("dry-run") {
		cfg.Retention.DryRun = runFlags.dryRun
	}
}

func printEvent(w io.Writer, format cli.OutputFormat, ev *retention.Event) error {
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(w, ev)
	}
	return cli.NewFormatter(cli.FormatText).FormatTo(w, summarizeEvent(ev))
}

// summarizeEvent renders the human-readable report of a run.
func summarizeEvent(ev *retention.Event) string {
	var b strings.Builder

	mode := ""
	if ev.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(&b, "Run %s%s: %s\n", ev.RunID, mode, ev.Outcome)
	fmt.Fprintf(&b, "  Root:       %s\n", ev.Root)

	if ev.Skipped {
		b.WriteString("  Another run holds the lock; nothing was done.")
		return b.String()
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, "  Error:      %s", ev.Error)
		return b.String()
	}

	fmt.Fprintf(&b, "  Threshold:  %s (%s required free)\n", ev.Threshold, humanize.IBytes(ev.RequiredFree))
	fmt.Fprintf(&b, "  Free:       %s -> %s of %s\n",
		humanize.IBytes(ev.FreeBefore), humanize.IBytes(ev.FreeAfter), humanize.IBytes(ev.TotalBytes))

	verb := "Evicted"
	if ev.DryRun {
		verb = "Would evict"
	}
	fmt.Fprintf(&b, "  %s: %s objects, %s\n", verb, humanize.Comma(int64(ev.EvictedCount())), humanize.IBytes(ev.BytesReclaimed))

	if ev.CapReached {
		fmt.Fprintf(&b, "  Cap of %d deletions reached.\n", ev.Cap)
	}
	if ev.DeletionFailures > 0 {
		fmt.Fprintf(&b, "  Deletion failures: %d\n", ev.DeletionFailures)
	}
	if n := ev.AnomalyCount(retention.AnomalyIndexInconsistent); n > 0 {
		fmt.Fprintf(&b, "  Index repairs: %d\n", n)
	}
	if ev.ManifestPath != "" {
		fmt.Fprintf(&b, "  Manifest:   %s\n", ev.ManifestPath)
	}
	fmt.Fprintf(&b, "  Duration:   %s", ev.Duration.Round(time.Millisecond))

	return b.String()
}
