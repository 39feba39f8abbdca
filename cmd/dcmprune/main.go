// dcmprune keeps a DICOM storage node's disk from filling up.
//
// It evicts the oldest stored objects, across every AE directory of the
// storage root, until free space is back above a threshold, and keeps the
// per-AE catalogs in step with the files that remain.
//
// Usage:
//
//	# One pass, as run from cron
//	dcmprune run --root /var/lib/dcmtk/db --threshold 15%
//
//	# Plan a pass without deleting anything
//	dcmprune run --dry-run --format json
//
//	# Long-running scheduler with /metrics and health probes
//	dcmprune daemon --config /etc/dcmprune/config.yaml
//
//	# Inspect the storage root and the catalogs
//	dcmprune status
//
//	# Past runs recorded in the journal
//	dcmprune history --since 24h
package main

import "os"

func main() {
	os.Exit(Execute())
}
