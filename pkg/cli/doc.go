/*
Package cli provides command-line interface utilities for dcmprune.

The cli package includes output formatters, exit code mapping and signal
helpers used by the dcmprune command.

Output Formatting:

Commands print results as text, JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, event); err != nil {
		return err
	}

CSV output needs data implementing CSVRecords.

Exit Codes:

The host's cron only sees the exit status, so errors map onto a small set
of codes:

	0  success, including no-op and skipped runs
	1  any other failure
	2  configuration error
	3  storage root unavailable

	os.Exit(cli.ExitCode(err))

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
