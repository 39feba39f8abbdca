package journal

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the journal tables. Times are unix nanoseconds so both
// drivers read them back identically.
const Schema = `
CREATE TABLE IF NOT EXISTS retention_runs (
    run_id TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    duration_ns INTEGER NOT NULL,
    root TEXT NOT NULL,
    threshold TEXT NOT NULL,
    outcome TEXT NOT NULL,
    dry_run BOOLEAN NOT NULL DEFAULT 0,

    total_bytes INTEGER NOT NULL DEFAULT 0,
    free_before INTEGER NOT NULL DEFAULT 0,
    free_after INTEGER NOT NULL DEFAULT 0,
    required_free INTEGER NOT NULL DEFAULT 0,

    evicted INTEGER NOT NULL DEFAULT 0,
    bytes_reclaimed INTEGER NOT NULL DEFAULT 0,
    deletion_failures INTEGER NOT NULL DEFAULT 0,
    anomalies INTEGER NOT NULL DEFAULT 0,
    cap_reached BOOLEAN NOT NULL DEFAULT 0,

    error TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_retention_runs_started_at ON retention_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_retention_runs_outcome ON retention_runs(outcome);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const selectColumns = `run_id, started_at, duration_ns, root, threshold, outcome, dry_run,
    total_bytes, free_before, free_after, required_free,
    evicted, bytes_reclaimed, deletion_failures, anomalies, cap_reached, error`
