package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"dcmnode/dcmprune/pkg/cli"
	"dcmnode/dcmprune/pkg/retention"
	"dcmnode/dcmprune/pkg/retention/journal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyFlags struct {
	since     time.Duration
	outcome   string
	limit     int
	offset    int
	format    string
	olderThan time.Duration

	manifestFormat string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past retention runs",
	Long: `List retention runs recorded in the journal, newest first.

The journal must be enabled (journal.enabled: true).

Examples:
  # Runs in the last day
  dcmprune history --since 24h

  # Failed runs as CSV
  dcmprune history --outcome failed --format csv

  # Drop journal rows older than 30 days
  dcmprune history prune --older-than 720h

  # Objects evicted by one archived run
  dcmprune history manifest /var/lib/dcmprune/manifests/evicted-<run>.json`,
	RunE: runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old journal rows",
	RunE:  runHistoryPrune,
}

var historyManifestCmd = &cobra.Command{
	Use:   "manifest <path>",
	Short: "Show the objects listed in an eviction manifest",
	Long: `Show an eviction manifest written by a run with
retention.archive_manifests set. The journal is not needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryManifest,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)
	historyCmd.AddCommand(historyManifestCmd)

	historyCmd.Flags().DurationVar(&historyFlags.since, "since", 0, "only runs started within this window")
	historyCmd.Flags().StringVar(&historyFlags.outcome, "outcome", "", "filter by outcome (noop, satisfied, cap_reached, exhausted, skipped, cancelled, failed)")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", journal.DefaultQueryLimit, "max results")
	historyCmd.Flags().IntVar(&historyFlags.offset, "offset", 0, "pagination offset")
	historyCmd.Flags().StringVarP(&historyFlags.format, "format", "f", "text", "output format: text, json, csv")

	historyPruneCmd.Flags().DurationVar(&historyFlags.olderThan, "older-than", 0, "delete rows older than this (required)")
	_ = historyPruneCmd.MarkFlagRequired("older-than")

	historyManifestCmd.Flags().StringVarP(&historyFlags.manifestFormat, "format", "f", "text", "output format: text, json, csv")
}

func openConfiguredJournal(cmd *cobra.Command) (journal.Journal, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	if !cfg.Journal.Enabled {
		return nil, cli.NewConfigError("journal.enabled", "the run journal is disabled")
	}
	return openJournal(cfg)
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(historyFlags.format)
	if err != nil {
		return err
	}

	query := &journal.Query{
		Outcome: historyFlags.outcome,
		Limit:   historyFlags.limit,
		Offset:  historyFlags.offset,
	}
	if historyFlags.since > 0 {
		since := time.Now().Add(-historyFlags.since)
		query.Since = &since
	}
	if err := query.Validate(); err != nil {
		return cli.NewConfigError("query", err.Error())
	}

	j, err := openConfiguredJournal(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	entries, err := j.Query(ctx, query)
	if err != nil {
		return cli.NewCommandError("history", err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case cli.FormatJSON:
		return cli.NewFormatter(format).FormatTo(out, entries)
	case cli.FormatCSV:
		return cli.NewFormatter(format).FormatTo(out, historyRows(entries))
	default:
		if err := writeHistory(out, entries); err != nil {
			return err
		}
		if total, err := j.Count(ctx, query); err == nil && total > int64(len(entries)) {
			fmt.Fprintf(out, "\nShowing %d of %d runs.\n", len(entries), total)
		}
		return nil
	}
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	if historyFlags.olderThan <= 0 {
		return cli.NewConfigError("older-than", "must be positive")
	}

	j, err := openConfiguredJournal(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	deleted, err := j.Prune(ctx, time.Now().Add(-historyFlags.olderThan))
	if err != nil {
		return cli.NewCommandError("history prune", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d journal rows\n", deleted)
	return nil
}

func runHistoryManifest(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(historyFlags.manifestFormat)
	if err != nil {
		return err
	}

	m, err := retention.ReadManifest(args[0])
	if err != nil {
		return cli.NewCommandError("history manifest", err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case cli.FormatJSON:
		return cli.NewFormatter(format).FormatTo(out, m)
	case cli.FormatCSV:
		return cli.NewFormatter(format).FormatTo(out, manifestRows(m.Objects))
	default:
		return printManifest(out, m)
	}
}

type historyRows []*journal.Entry

func (r historyRows) CSVHeader() []string {
	return []string{
		"run_id", "started_at", "duration_ms", "root", "threshold", "outcome", "dry_run",
		"free_before", "free_after", "required_free", "evicted", "bytes_reclaimed",
		"deletion_failures", "anomalies", "cap_reached", "error",
	}
}

func (r historyRows) CSVRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, e := range r {
		rows = append(rows, []string{
			e.RunID,
			e.StartedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(e.Duration.Milliseconds(), 10),
			e.Root,
			e.Threshold,
			e.Outcome,
			strconv.FormatBool(e.DryRun),
			strconv.FormatUint(e.FreeBefore, 10),
			strconv.FormatUint(e.FreeAfter, 10),
			strconv.FormatUint(e.RequiredFree, 10),
			strconv.Itoa(e.Evicted),
			strconv.FormatUint(e.BytesReclaimed, 10),
			strconv.Itoa(e.DeletionFailures),
			strconv.Itoa(e.Anomalies),
			strconv.FormatBool(e.CapReached),
			e.Error,
		})
	}
	return rows
}

func writeHistory(w io.Writer, entries []*journal.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN ID\tOUTCOME\tEVICTED\tRECLAIMED\tFREE AFTER\tFAILURES\tDURATION")
	for _, e := range entries {
		outcome := e.Outcome
		if e.DryRun {
			outcome += " (dry run)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.RunID,
			outcome,
			e.Evicted,
			humanize.IBytes(e.BytesReclaimed),
			humanize.IBytes(e.FreeAfter),
			e.DeletionFailures,
			e.Duration.Round(time.Millisecond),
		)
	}
	return tw.Flush()
}

type manifestRows []retention.EvictedObject

func (r manifestRows) CSVHeader() []string {
	return []string{"ae_title", "path", "size", "age", "age_from", "study_uid", "series_uid", "instance_uid"}
}

func (r manifestRows) CSVRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, o := range r {
		rows = append(rows, []string{
			o.AETitle,
			o.Path,
			strconv.FormatInt(o.Size, 10),
			o.Age.UTC().Format(time.RFC3339),
			o.AgeFrom,
			o.StudyUID,
			o.SeriesUID,
			o.InstanceUID,
		})
	}
	return rows
}

func printManifest(w io.Writer, m *retention.Manifest) error {
	header := "Run:        " + m.RunID
	if m.DryRun {
		header += " (dry run)"
	}
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "Created:    %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Root:       %s\n", m.Root)
	fmt.Fprintf(w, "Threshold:  %s\n", m.Threshold)
	fmt.Fprintf(w, "Reclaimed:  %s in %d objects\n\n", humanize.IBytes(m.BytesReclaimed), len(m.Objects))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AE\tPATH\tSIZE\tAGE\tFROM")
	for _, o := range m.Objects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			o.AETitle,
			o.Path,
			humanize.IBytes(uint64(o.Size)),
			o.Age.Local().Format("2006-01-02 15:04:05"),
			o.AgeFrom,
		)
	}
	return tw.Flush()
}
