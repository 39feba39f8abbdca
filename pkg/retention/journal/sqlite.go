package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverModernc is the pure Go driver registered by modernc.org/sqlite.
	DriverModernc = "sqlite"

	// DriverMattn is the cgo driver registered by github.com/mattn/go-sqlite3.
	DriverMattn = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite journal backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the database/sql driver: DriverModernc or DriverMattn.
	// Default: DriverModernc
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 4
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 2
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// MaxAge drops entries older than this when the journal is opened and
	// after every Record. Zero keeps everything.
	MaxAge time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "/var/lib/dcmprune/journal.db",
		Driver:       DriverModernc,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
		MaxAge:       90 * 24 * time.Hour,
	}
}

// dsn builds a data source name that sets busy_timeout on every pooled
// connection. The two drivers spell connection pragmas differently.
func (c *SQLiteConfig) dsn() (string, error) {
	ms := c.BusyTimeout.Milliseconds()
	switch c.Driver {
	case DriverModernc:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", c.Path, ms), nil
	case DriverMattn:
		return fmt.Sprintf("file:%s?_busy_timeout=%d", c.Path, ms), nil
	default:
		return "", fmt.Errorf("unknown sqlite driver %q", c.Driver)
	}
}

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	config *SQLiteConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLiteJournal opens (creating if needed) the journal database.
func NewSQLiteJournal(config *SQLiteConfig) (*SQLiteJournal, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}

	logger := slog.Default().With("component", "retention.journal.sqlite")

	dsn, err := config.dsn()
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	j := &SQLiteJournal{
		db:     db,
		config: config,
		now:    time.Now,
		logger: logger,
	}

	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	if err := j.expire(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite journal initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
		"max_age", config.MaxAge,
	)

	return j, nil
}

// initialize sets up the database schema and enables WAL mode.
func (j *SQLiteJournal) initialize() error {
	if j.config.WALMode {
		if _, err := j.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
		j.logger.Debug("WAL mode enabled")
	}

	if _, err := j.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := j.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := j.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return NewStorageError("sqlite", "get_schema_version", err)
	}

	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// expire drops entries older than MaxAge.
func (j *SQLiteJournal) expire(ctx context.Context) error {
	if j.config.MaxAge <= 0 {
		return nil
	}
	removed, err := j.Prune(ctx, j.now().Add(-j.config.MaxAge))
	if err != nil {
		return err
	}
	if removed > 0 {
		j.logger.Debug("journal entries expired", "count", removed, "max_age", j.config.MaxAge)
	}
	return nil
}

// Record inserts one run summary and drops entries older than MaxAge.
func (j *SQLiteJournal) Record(ctx context.Context, e *Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO retention_runs (
			run_id, started_at, duration_ns, root, threshold, outcome, dry_run,
			total_bytes, free_before, free_after, required_free,
			evicted, bytes_reclaimed, deletion_failures, anomalies, cap_reached, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID,
		e.StartedAt.UnixNano(),
		int64(e.Duration),
		e.Root,
		e.Threshold,
		e.Outcome,
		e.DryRun,
		clampInt64(e.TotalBytes),
		clampInt64(e.FreeBefore),
		clampInt64(e.FreeAfter),
		clampInt64(e.RequiredFree),
		e.Evicted,
		clampInt64(e.BytesReclaimed),
		e.DeletionFailures,
		e.Anomalies,
		e.CapReached,
		nullString(e.Error),
	)
	if err != nil {
		return NewStorageError("sqlite", "record", err)
	}

	return j.expire(ctx)
}

// Query returns matching run summaries, newest first.
func (j *SQLiteJournal) Query(ctx context.Context, q *Query) ([]*Entry, error) {
	if err := q.Validate(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}

	where, args := buildWhereClause(q)

	sqlQuery := "SELECT " + selectColumns + " FROM retention_runs" + where +
		" ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, q.limit(), q.Offset)

	rows, err := j.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanRow(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}

	return entries, nil
}

// Count returns the number of matching run summaries.
func (j *SQLiteJournal) Count(ctx context.Context, q *Query) (int64, error) {
	where, args := buildWhereClause(q)

	var count int64
	err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM retention_runs"+where, args...).Scan(&count)
	if err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Prune deletes run summaries that started before cutoff.
func (j *SQLiteJournal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := j.db.ExecContext(ctx, "DELETE FROM retention_runs WHERE started_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	return count, nil
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	if err := j.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

func buildWhereClause(q *Query) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	if q.Since != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Until != nil {
		conditions = append(conditions, "started_at <= ?")
		args = append(args, q.Until.UnixNano())
	}
	if q.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, q.Outcome)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(rows rowScanner) (*Entry, error) {
	var (
		e                                           Entry
		startedAt, duration                         int64
		total, freeBefore, freeAfter, required, rec int64
		errText                                     sql.NullString
	)

	err := rows.Scan(
		&e.RunID,
		&startedAt,
		&duration,
		&e.Root,
		&e.Threshold,
		&e.Outcome,
		&e.DryRun,
		&total,
		&freeBefore,
		&freeAfter,
		&required,
		&e.Evicted,
		&rec,
		&e.DeletionFailures,
		&e.Anomalies,
		&e.CapReached,
		&errText,
	)
	if err != nil {
		return nil, err
	}

	e.StartedAt = time.Unix(0, startedAt).UTC()
	e.Duration = time.Duration(duration)
	e.TotalBytes = uint64(total)
	e.FreeBefore = uint64(freeBefore)
	e.FreeAfter = uint64(freeAfter)
	e.RequiredFree = uint64(required)
	e.BytesReclaimed = uint64(rec)
	e.Error = errText.String

	return &e, nil
}

// clampInt64 converts byte counts for storage. database/sql rejects uint64
// values with the high bit set.
func clampInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
