// Package logging provides the structured logger used by dcmprune.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON and text formats
//   - Context-aware logging with run, AE and object identifiers
//   - Configurable log levels (debug, info, warn, error)
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	slog.SetDefault(logger.Slog())
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithAETitle(ctx, "DCMTK_STR_SCP")
//	slog.InfoContext(ctx, "object evicted", "size_bytes", 524288)
//	// {"level":"INFO","msg":"object evicted","run_id":"…","ae_title":"DCMTK_STR_SCP",...}
//
// Context fields are added by the handler, so any *slog.Logger derived from
// Logger.Slog picks them up from the context passed to the *Context methods.
//
// Logs are written to stderr by default. Command output (tables, JSON
// reports) goes to stdout and stays machine readable.
package logging
