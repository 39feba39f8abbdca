package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"dcmnode/dcmprune/pkg/cli"
	"dcmnode/dcmprune/pkg/retention"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusFlags struct {
	root   string
	next   int
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report free space and catalog consistency",
	Long: `Report free space on the storage root, whether the threshold is met, and
how each AE catalog compares with the files on disk. Nothing is deleted or
rewritten.

Examples:
  dcmprune status
  dcmprune status --next 20 --format json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.root, "root", "", "override storage root")
	statusCmd.Flags().IntVar(&statusFlags.next, "next", 10, "list the next N eviction candidates")
	statusCmd.Flags().StringVarP(&statusFlags.format, "format", "f", "text", "output format: text, json, csv")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(statusFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("root") {
		cfg.Storage.Root = statusFlags.root
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	l, rc, err := retention.FromConfig(cfg)
	if err != nil {
		return cli.NewConfigError("retention", err.Error())
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	status, err := retention.NewPruner(l, rc).Inspect(ctx, statusFlags.next)
	if err != nil {
		return cli.NewCommandError("status", err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case cli.FormatJSON:
		return cli.NewFormatter(format).FormatTo(out, status)
	case cli.FormatCSV:
		return cli.NewFormatter(format).FormatTo(out, aeStatusRows(status.AEs))
	default:
		return writeStatus(out, status)
	}
}

// aeStatusRows renders the per-AE table as CSV.
type aeStatusRows []retention.AEStatus

func (r aeStatusRows) CSVHeader() []string {
	return []string{"ae_title", "entries", "files", "bytes", "in_progress", "orphans", "young_unindexed", "stale", "index_corrupt", "index_error"}
}

func (r aeStatusRows) CSVRows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, ae := range r {
		rows = append(rows, []string{
			ae.Title,
			fmt.Sprint(ae.Entries),
			fmt.Sprint(ae.Files),
			fmt.Sprint(ae.Bytes),
			fmt.Sprint(ae.InProgress),
			fmt.Sprint(ae.Orphans),
			fmt.Sprint(ae.YoungUnindexed),
			fmt.Sprint(ae.Stale),
			fmt.Sprint(ae.IndexCorrupt),
			ae.IndexError,
		})
	}
	return rows
}

func writeStatus(w io.Writer, s *retention.Status) error {
	state := "below threshold"
	if s.Satisfied {
		state = "ok"
	}

	fmt.Fprintf(w, "Storage root: %s\n", s.Root)
	fmt.Fprintf(w, "Free:         %s of %s (%.1f%%), %s\n",
		humanize.IBytes(s.Usage.Free), humanize.IBytes(s.Usage.Total), s.Usage.FreePercent(), state)
	fmt.Fprintf(w, "Threshold:    %s (%s required free)\n", s.Threshold, humanize.IBytes(s.RequiredFree))
	fmt.Fprintf(w, "Age key:      %s\n", s.AgeKey)
	if s.LockHeld {
		fmt.Fprintln(w, "A retention run is in progress.")
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AE TITLE\tENTRIES\tFILES\tSIZE\tIN PROGRESS\tORPHANS\tSTALE\tINDEX")
	for _, ae := range s.AEs {
		index := "ok"
		switch {
		case ae.IndexCorrupt:
			index = "corrupt"
		case ae.IndexError != "":
			index = "unreadable"
		case !ae.Consistent():
			index = "inconsistent"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\t%d\t%d\t%s\n",
			ae.Title, ae.Entries, ae.Files, humanize.IBytes(uint64(ae.Bytes)),
			ae.InProgress, ae.Orphans, ae.Stale, index)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.Next) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nNext %d eviction candidates:\n", len(s.Next))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AE TITLE\tPATH\tSIZE\tAGE")
	for _, o := range s.Next {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s (%s)\n",
			o.AETitle, o.Path, humanize.IBytes(uint64(o.Size)), humanize.Time(o.Age), strings.ReplaceAll(o.AgeFrom, "_", " "))
	}
	return tw.Flush()
}
