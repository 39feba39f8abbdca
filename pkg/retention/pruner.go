package retention

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dcmnode/dcmprune/pkg/retention/journal"
	"dcmnode/dcmprune/pkg/storage/diskspace"
	"dcmnode/dcmprune/pkg/storage/layout"
	"dcmnode/dcmprune/pkg/storage/lock"
	"dcmnode/dcmprune/pkg/telemetry/logging"
	"dcmnode/dcmprune/pkg/telemetry/metrics"
	"dcmnode/dcmprune/pkg/telemetry/tracing"
)

// Option configures a Pruner.
type Option func(*Pruner)

// WithProbe sets the free space probe. Default: diskspace.StatfsProbe.
func WithProbe(probe diskspace.Probe) Option {
	return func(p *Pruner) { p.probe = probe }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pruner) { p.logger = logger.With("component", "retention") }
}

// WithMetrics records run metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pruner) { p.metrics = c }
}

// WithJournal writes one journal entry per run.
func WithJournal(j journal.Journal) Option {
	return func(p *Pruner) { p.journal = j }
}

// WithTracer emits a span tree per run on t. Default: no tracing.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pruner) { p.tracer = t }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pruner) { p.now = now }
}

// Pruner evicts the oldest objects of a storage root until its free space
// meets the threshold.
type Pruner struct {
	mu     sync.RWMutex
	layout *layout.Layout
	config *Config

	probe   diskspace.Probe
	logger  *slog.Logger
	metrics *metrics.Collector
	journal journal.Journal
	tracer  trace.Tracer
	now     func() time.Time
	remove  func(path string) error
}

// NewPruner creates a pruner for the storage layout l.
func NewPruner(l *layout.Layout, config *Config, opts ...Option) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		layout: l,
		config: config,
		probe:  diskspace.StatfsProbe{},
		logger: slog.Default().With("component", "retention"),
		tracer: tracing.Noop(),
		now:    time.Now,
		remove: os.Remove,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// SetConfig replaces the layout and policy used by later runs. A run in
// progress keeps the values it started with.
func (p *Pruner) SetConfig(l *layout.Layout, config *Config) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.layout = l
	p.config = config
}

// Config returns the current layout and policy.
func (p *Pruner) Config() (*layout.Layout, *Config) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.layout, p.config
}

// Invoke runs one pass with the configured root, threshold and cap.
func (p *Pruner) Invoke(ctx context.Context) (*Event, error) {
	l, cfg := p.Config()
	return p.run(ctx, l, cfg, cfg.Threshold, cfg.MaxDeletions)
}

// Prune runs one pass over root. limit <= 0 means no per-run cap.
//
// The returned event is never nil. The error is non-nil only when the run
// aborted; it matches ErrStorageUnavailable when the root could not be
// read or measured. A run skipped because another one holds the lock
// returns a skipped event and no error.
func (p *Pruner) Prune(ctx context.Context, root string, threshold diskspace.Threshold, limit int) (*Event, error) {
	l, cfg := p.Config()
	return p.run(ctx, l.WithRoot(root), cfg, threshold, limit)
}

func (p *Pruner) run(ctx context.Context, l *layout.Layout, cfg *Config, threshold diskspace.Threshold, limit int) (*Event, error) {
	start := p.now()

	ev := &Event{
		RunID:       uuid.NewString(),
		TriggeredAt: start.UTC(),
		Root:        l.Root,
		Threshold:   threshold.String(),
		AgeKey:      cfg.AgeKey,
		Cap:         limit,
		DryRun:      cfg.DryRun,
		Evicted:     []EvictedObject{},
		Anomalies:   []Anomaly{},
	}
	ctx = logging.WithRunID(ctx, ev.RunID)

	ctx, span := p.tracer.Start(ctx, "retention.run")
	defer span.End()
	tracing.SetRunAttributes(span, ev.RunID, ev.Root, ev.Threshold, ev.DryRun)

	err := p.execute(ctx, l, cfg, threshold, limit, ev)
	if err != nil {
		ev.Outcome = OutcomeFailed
		ev.Error = err.Error()
	}
	ev.Duration = p.now().Sub(start)

	tracing.SetResultAttributes(span, string(ev.Outcome), len(ev.Evicted), ev.BytesReclaimed, len(ev.Anomalies))
	tracing.SetStatus(span, err)

	p.finish(ctx, ev)
	return ev, err
}

func (p *Pruner) execute(ctx context.Context, l *layout.Layout, cfg *Config, threshold diskspace.Threshold, limit int, ev *Event) error {
	if err := l.CheckRoot(); err != nil {
		return NewStorageUnavailableError(l.Root, "stat", err)
	}

	lockPath := cfg.lockPath(l.Root)
	runLock, err := lock.TryAcquire(lockPath)
	if errors.Is(err, lock.ErrLocked) {
		ev.Skipped = true
		ev.Outcome = OutcomeSkipped
		p.logger.InfoContext(ctx, "another run holds the lock, skipping",
			"event", "SkippedConcurrentRun",
			"lock_path", lockPath,
		)
		return nil
	}
	if err != nil {
		return NewStorageUnavailableError(l.Root, "lock", err)
	}
	defer runLock.Release()

	usage, err := p.probe.Measure(l.Root)
	if err != nil {
		return NewStorageUnavailableError(l.Root, "statfs", err)
	}

	required := threshold.Required(usage.Total)
	ev.TotalBytes = usage.Total
	ev.FreeBefore = usage.Free
	ev.FreeAfter = usage.Free
	ev.ProjectedFree = usage.Free
	ev.RequiredFree = required
	p.metrics.UpdateDiskUsage(usage.Free, usage.Total, required)

	if usage.Free >= required {
		ev.Outcome = OutcomeNoop
		return nil
	}

	p.logger.InfoContext(ctx, "free space below threshold",
		"free", humanize.IBytes(usage.Free),
		"required", humanize.IBytes(required),
		"short_by", humanize.IBytes(required-usage.Free),
	)

	now := p.now()
	surveyCtx, surveySpan := p.tracer.Start(ctx, "retention.survey")
	states, err := p.survey(surveyCtx, l, cfg, now)
	surveySpan.SetAttributes(attribute.Int(tracing.AttrAEDirs, len(states)))
	tracing.SetError(surveySpan, err)
	surveySpan.End()
	if err != nil {
		if ctx.Err() != nil {
			ev.Outcome = OutcomeCancelled
			return nil
		}
		return err
	}

	for _, st := range states {
		for _, a := range st.anomalies {
			p.report(ctx, ev, a)
		}
	}

	candidates := orderCandidates(states)
	evictCtx, evictSpan := p.tracer.Start(ctx, "retention.evict",
		trace.WithAttributes(attribute.Int(tracing.AttrCandidates, len(candidates))),
	)
	p.evict(evictCtx, cfg, candidates, limit, ev)
	evictSpan.SetAttributes(
		attribute.Int(tracing.AttrEvicted, len(ev.Evicted)),
		attribute.Int(tracing.AttrFailures, ev.DeletionFailures),
	)
	evictSpan.End()

	if cfg.DryRun {
		if cfg.ArchivePath != "" && len(ev.Evicted) > 0 {
			p.archive(ctx, cfg.ArchivePath, ev)
		}
		return nil
	}

	// Evictions already happened; the catalogs must follow even if the
	// caller has given up.
	commitCtx := context.WithoutCancel(ctx)
	for _, st := range states {
		p.commit(commitCtx, l, cfg, st, now, ev)
	}

	if after, err := p.probe.Measure(l.Root); err != nil {
		p.logger.WarnContext(ctx, "could not measure free space after run, reporting projection",
			"error", err,
		)
		ev.FreeAfter = ev.ProjectedFree
	} else {
		ev.FreeAfter = after.Free
		p.metrics.UpdateDiskUsage(after.Free, after.Total, threshold.Required(after.Total))
	}

	if cfg.ArchivePath != "" && len(ev.Evicted) > 0 {
		p.archive(commitCtx, cfg.ArchivePath, ev)
	}

	return nil
}

// evict deletes candidates in order until the projected free space meets
// the requirement, limit objects were evicted, the candidates run out or ctx
// is cancelled.
func (p *Pruner) evict(ctx context.Context, cfg *Config, candidates []candidate, limit int, ev *Event) {
	projected := ev.FreeBefore
	ev.Outcome = OutcomeExhausted

	for _, c := range candidates {
		if projected >= ev.RequiredFree {
			ev.Outcome = OutcomeSatisfied
			break
		}
		if limit > 0 && len(ev.Evicted) >= limit {
			ev.CapReached = true
			ev.Outcome = OutcomeCapReached
			break
		}
		if ctx.Err() != nil {
			ev.Outcome = OutcomeCancelled
			break
		}

		objectID := ""
		if c.entry != nil {
			objectID = c.entry.ObjectID
		}
		octx := logging.WithAETitle(ctx, c.object.AETitle)
		if objectID != "" {
			octx = logging.WithObjectID(octx, objectID)
		}

		if !cfg.DryRun {
			if err := p.remove(c.object.AbsPath); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					c.state.drop[c.object.RelPath] = true
					p.report(octx, ev, newAnomaly(AnomalyIndexInconsistent, c.object.AETitle, objectID, c.object.RelPath, &IndexInconsistentError{
						AETitle: c.object.AETitle,
						Path:    c.object.RelPath,
						Reason:  "file vanished before eviction",
					}))
					continue
				}
				ev.DeletionFailures++
				p.metrics.RecordDeletionFailure()
				p.report(octx, ev, newAnomaly(AnomalyDeletionFailed, c.object.AETitle, objectID, c.object.RelPath, &DeletionFailedError{
					AETitle: c.object.AETitle,
					Path:    c.object.RelPath,
					Cause:   err,
				}))
				continue
			}
			c.state.evicted[c.object.RelPath] = true
			c.state.drop[c.object.RelPath] = true
		}

		size := c.object.Size
		if size < 0 {
			size = 0
		}
		projected += uint64(size)
		ev.BytesReclaimed += uint64(size)
		ev.Evicted = append(ev.Evicted, evictedObject(c))

		msg := "object evicted"
		if cfg.DryRun {
			msg = "object would be evicted"
		} else {
			p.metrics.RecordEviction(c.object.AETitle, size)
		}
		p.logger.InfoContext(octx, msg,
			"path", c.object.RelPath,
			"size", size,
			"age", c.age,
			"age_from", c.ageFrom,
		)
	}

	if ev.Outcome == OutcomeExhausted && projected >= ev.RequiredFree {
		ev.Outcome = OutcomeSatisfied
	}
	ev.ProjectedFree = projected
}

func evictedObject(c candidate) EvictedObject {
	o := EvictedObject{
		AETitle: c.object.AETitle,
		Path:    c.object.RelPath,
		Size:    c.object.Size,
		Age:     c.age,
		AgeFrom: c.ageFrom,
	}
	if c.entry != nil {
		o.ObjectID = c.entry.ObjectID
		o.StudyUID = c.entry.StudyUID
		o.SeriesUID = c.entry.SeriesUID
		o.InstanceUID = c.entry.InstanceUID
		o.StudyDate = c.entry.StudyDate
	}
	return o
}

// report logs an anomaly and adds it to the event.
func (p *Pruner) report(ctx context.Context, ev *Event, a Anomaly) {
	ev.Anomalies = append(ev.Anomalies, a)
	p.metrics.RecordAnomaly(string(a.Kind))

	attrs := []any{"anomaly", string(a.Kind), "detail", a.Detail}
	if a.AETitle != "" && logging.GetAETitle(ctx) == "" {
		attrs = append(attrs, "ae_title", a.AETitle)
	}
	if a.Path != "" {
		attrs = append(attrs, "path", a.Path)
	}
	p.logger.WarnContext(ctx, string(a.Kind), attrs...)
}

// finish emits the summary line, metrics and journal entry of a run.
func (p *Pruner) finish(ctx context.Context, ev *Event) {
	attrs := []any{
		"outcome", string(ev.Outcome),
		"evicted", len(ev.Evicted),
		"bytes_reclaimed", ev.BytesReclaimed,
		"reclaimed", humanize.IBytes(ev.BytesReclaimed),
		"deletion_failures", ev.DeletionFailures,
		"anomalies", len(ev.Anomalies),
		"free_before", ev.FreeBefore,
		"free_after", ev.FreeAfter,
		"required_free", ev.RequiredFree,
		"threshold", ev.Threshold,
		"cap", ev.Cap,
		"dry_run", ev.DryRun,
		"duration", ev.Duration,
	}

	if ev.Outcome == OutcomeFailed {
		p.logger.ErrorContext(ctx, "retention run failed", append(attrs, "error", ev.Error)...)
	} else {
		p.logger.InfoContext(ctx, "retention run complete", attrs...)
	}

	p.metrics.RecordRun(string(ev.Outcome), ev.Duration)

	if p.journal != nil {
		if err := p.journal.Record(context.WithoutCancel(ctx), ev.JournalEntry()); err != nil {
			p.logger.WarnContext(ctx, "failed to journal retention run", "error", err)
		}
	}
}
