package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest lists the objects evicted by one run.
type Manifest struct {
	RunID          string          `json:"run_id"`
	CreatedAt      time.Time       `json:"created_at"`
	Root           string          `json:"root"`
	Threshold      string          `json:"threshold"`
	DryRun         bool            `json:"dry_run"`
	BytesReclaimed uint64          `json:"bytes_reclaimed"`
	Objects        []EvictedObject `json:"objects"`
}

// ManifestName returns the file name of a run's manifest.
func ManifestName(runID string, at time.Time) string {
	return fmt.Sprintf("evicted-%s-%s.json", runID, at.UTC().Format("20060102T150405Z"))
}

// archive writes the manifest of ev into dir. Failures are logged; the
// evictions have already happened.
func (p *Pruner) archive(ctx context.Context, dir string, ev *Event) {
	path, err := writeManifest(dir, ev, p.now())
	if err != nil {
		p.logger.WarnContext(ctx, "failed to write eviction manifest",
			"archive_path", dir,
			"error", err,
		)
		return
	}

	ev.ManifestPath = path
	p.logger.InfoContext(ctx, "eviction manifest written",
		"manifest", path,
		"objects", len(ev.Evicted),
	)
}

func writeManifest(dir string, ev *Event, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	m := Manifest{
		RunID:          ev.RunID,
		CreatedAt:      now.UTC(),
		Root:           ev.Root,
		Threshold:      ev.Threshold,
		DryRun:         ev.DryRun,
		BytesReclaimed: ev.BytesReclaimed,
		Objects:        ev.Evicted,
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestName(ev.RunID, now))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	return path, nil
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
