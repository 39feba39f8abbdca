package retention

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"dcmnode/dcmprune/pkg/config"
	"dcmnode/dcmprune/pkg/storage/diskspace"
	"dcmnode/dcmprune/pkg/storage/layout"
)

// AgeKey selects which timestamp orders eviction candidates.
type AgeKey string

const (
	// AgeKeyReceived orders by the index received_at, falling back to the
	// file modification time.
	AgeKeyReceived AgeKey = "received"

	// AgeKeyStudyDate orders by the DICOM study date, falling back to
	// received_at and then the file modification time.
	AgeKeyStudyDate AgeKey = "study_date"

	// AgeKeyMTime orders by file modification time only.
	AgeKeyMTime AgeKey = "mtime"
)

// ParseAgeKey parses an age key name.
func ParseAgeKey(s string) (AgeKey, error) {
	switch k := AgeKey(strings.ToLower(strings.TrimSpace(s))); k {
	case AgeKeyReceived, AgeKeyStudyDate, AgeKeyMTime:
		return k, nil
	case "":
		return AgeKeyReceived, nil
	default:
		return "", fmt.Errorf("unknown age key %q (want received, study_date or mtime)", s)
	}
}

// LockFileName is the run lock created in the storage root when no lock
// path is configured.
const LockFileName = ".dcmprune.lock"

// Config contains the eviction policy of a Pruner.
type Config struct {
	// Threshold is the free space to keep.
	Threshold diskspace.Threshold

	// MaxDeletions caps evictions per run. Zero or negative is unlimited.
	MaxDeletions int

	// AgeKey selects the eviction order.
	AgeKey AgeKey

	// DryRun plans evictions without deleting files or rewriting indexes.
	DryRun bool

	// Schedule is the cron expression used by Scheduler.
	Schedule string

	// LockPath is the run lock file. Empty means "<root>/.dcmprune.lock".
	LockPath string

	// ArchivePath receives a JSON manifest of every run's evictions.
	// Empty disables manifests.
	ArchivePath string

	// IndexLockTimeout bounds the wait for an index lock on commit.
	IndexLockTimeout time.Duration

	// OrphanGrace is the minimum age of an unindexed file before it is
	// adopted or evicted.
	OrphanGrace time.Duration
}

// DefaultConfig returns the default retention policy.
func DefaultConfig() *Config {
	return &Config{
		Threshold:        diskspace.MustParseThreshold(config.DefaultThreshold),
		MaxDeletions:     config.DefaultMaxDeletions,
		AgeKey:           AgeKeyReceived,
		Schedule:         config.DefaultSchedule,
		IndexLockTimeout: config.DefaultIndexLockTimeout,
		OrphanGrace:      config.DefaultOrphanGrace,
	}
}

// lockPath returns the run lock for root.
func (c *Config) lockPath(root string) string {
	if c.LockPath != "" {
		return c.LockPath
	}
	return filepath.Join(root, LockFileName)
}

// FromConfig builds the storage layout and the retention policy from the
// application configuration.
func FromConfig(cfg *config.Config) (*layout.Layout, *Config, error) {
	threshold, err := diskspace.ParseThreshold(cfg.Retention.Threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("retention.threshold: %w", err)
	}

	ageKey, err := ParseAgeKey(cfg.Retention.AgeKey)
	if err != nil {
		return nil, nil, fmt.Errorf("retention.age_key: %w", err)
	}

	l := &layout.Layout{
		Root:               cfg.Storage.Root,
		AETitles:           cfg.Storage.AETitles,
		QRConfigPath:       cfg.Storage.QRConfigPath,
		IndexName:          cfg.Storage.IndexName,
		InProgressSuffixes: cfg.Storage.InProgressSuffixes,
	}

	rc := &Config{
		Threshold:        threshold,
		MaxDeletions:     cfg.Retention.MaxDeletions,
		AgeKey:           ageKey,
		DryRun:           cfg.Retention.DryRun,
		Schedule:         cfg.Retention.Schedule,
		LockPath:         cfg.Retention.LockPath,
		ArchivePath:      cfg.Retention.ArchiveManifests,
		IndexLockTimeout: cfg.Storage.IndexLockTimeout,
		OrphanGrace:      cfg.Storage.OrphanGrace,
	}

	return l, rc, nil
}
