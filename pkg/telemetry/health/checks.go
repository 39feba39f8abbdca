package health

import (
	"context"
	"fmt"
	"time"

	"dcmnode/dcmprune/pkg/retention"
	"dcmnode/dcmprune/pkg/storage/layout"
)

// StorageRootCheck fails when the storage root cannot be listed.
func StorageRootCheck(l *layout.Layout) CheckFunc {
	return func(ctx context.Context) error {
		if err := l.CheckRoot(); err != nil {
			return fmt.Errorf("storage root %s: %w", l.Root, err)
		}
		return nil
	}
}

// LastRunCheck fails when the most recent retention run failed, or when
// no run has completed within maxAge. A daemon that has not run yet is
// healthy. A zero maxAge disables the staleness test.
func LastRunCheck(last func() (*retention.Event, error), maxAge time.Duration, now func() time.Time) CheckFunc {
	return func(ctx context.Context) error {
		ev, err := last()
		if ev == nil && err == nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("last run failed: %w", err)
		}
		if ev.Outcome == retention.OutcomeFailed {
			return fmt.Errorf("last run %s failed: %s", ev.RunID, ev.Error)
		}
		if maxAge > 0 {
			if age := now().Sub(ev.TriggeredAt); age > maxAge {
				return fmt.Errorf("last run %s is %s old", ev.RunID, age.Round(time.Second))
			}
		}
		return nil
	}
}
