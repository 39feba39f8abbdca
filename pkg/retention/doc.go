// Package retention keeps the DICOM storage root below its disk usage
// threshold by evicting the oldest stored objects first.
//
// # Runs
//
// A run (Pruner.Prune, or Pruner.Invoke with the configured policy) moves
// through Idle → Measuring → Evicting → Idle:
//
//  1. The storage root is checked and the run lock taken without waiting.
//     A held lock ends the run as skipped.
//  2. Free space is measured. When it already meets the threshold the run
//     ends here without walking any directory.
//  3. Every AE directory is scanned and matched against its index. Objects
//     are ordered by the configured age key, oldest first.
//  4. Objects are deleted one at a time until the projected free space
//     meets the threshold, the per-run cap is reached, or no candidate is
//     left. A failed deletion is logged and skipped.
//  5. Each touched index is rewritten once, under its advisory lock.
//
// Files are always removed before their index entries, so an interrupted
// run can leave a stale entry but never a file hidden from the index.
//
// # Anomalies
//
// Index/filesystem mismatches (corrupt catalog, file without entry, entry
// without file) are reported as IndexInconsistent and repaired on commit.
// Deletion errors are reported as DeletionFailed. Neither aborts the run;
// only StorageUnavailable does.
//
// # Scheduling
//
// Scheduler fires Invoke on a cron expression for daemon mode. One-shot
// mode is driven by the host's cron calling `dcmprune run`.
package retention
