// Package journal keeps a queryable history of retention runs.
//
// Every run already ends with a summary log line. When the journal is
// enabled the same summary is also written as one row, so operators can
// answer "what did the last week of runs evict" with `dcmprune history`
// instead of grepping the host's logs.
//
// Two backends implement Journal:
//
//   - SQLiteJournal: a single-file database. Driver "sqlite" is the pure Go
//     modernc.org/sqlite, "sqlite3" is the cgo github.com/mattn/go-sqlite3.
//   - MemoryJournal: for tests and for runs with the journal disabled.
//
// Example:
//
//	j, err := journal.NewSQLiteJournal(&journal.SQLiteConfig{
//	    Path:   "/var/lib/dcmprune/journal.db",
//	    Driver: "sqlite",
//	})
//	defer j.Close()
//
//	err = j.Record(ctx, &journal.Entry{RunID: id, Outcome: "satisfied", ...})
//	runs, err := j.Query(ctx, &journal.Query{Outcome: "failed", Limit: 20})
package journal
