package retention

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dcmnode/dcmprune/pkg/storage/index"
	"dcmnode/dcmprune/pkg/storage/layout"
	"dcmnode/dcmprune/pkg/telemetry/logging"
	"dcmnode/dcmprune/pkg/telemetry/tracing"
)

// AdoptedPrefix marks object ids given to files that were found without an
// index entry.
const AdoptedPrefix = "adopted:"

// commit rewrites the catalog of one AE directory: entries whose file is
// gone are dropped, old enough unindexed files are adopted and a corrupt
// catalog is rebuilt from the filesystem.
func (p *Pruner) commit(ctx context.Context, l *layout.Layout, cfg *Config, st *aeState, now time.Time, ev *Event) {
	if st.unreadable || !st.changed() {
		return
	}

	ctx = logging.WithAETitle(ctx, st.ae.Title)

	ctx, span := p.tracer.Start(ctx, "retention.commit",
		trace.WithAttributes(attribute.String(tracing.AttrAETitle, st.ae.Title)),
	)
	defer span.End()

	if st.corrupt {
		p.rebuild(ctx, l, cfg, st, now, ev)
		return
	}

	var dropped, adopted int
	err := st.store.Update(ctx, func(current []index.Entry) ([]index.Entry, error) {
		dropped, adopted = 0, 0

		next := make([]index.Entry, 0, len(current)+len(st.orphans))
		paths := make(map[string]bool, len(current))
		ids := make(map[string]bool, len(current))

		for _, e := range current {
			if st.drop[e.Path] && !exists(layout.AbsPath(st.ae, e.Path)) {
				dropped++
				continue
			}
			next = append(next, e)
			paths[e.Path] = true
			ids[e.ObjectID] = true
		}

		for _, o := range st.orphans {
			if st.evicted[o.RelPath] || paths[o.RelPath] || !exists(o.AbsPath) {
				continue
			}
			e := adoptEntry(o)
			if ids[e.ObjectID] || e.Validate() != nil {
				continue
			}
			next = append(next, e)
			adopted++
		}

		return next, nil
	})

	if errors.Is(err, index.ErrCorrupt) {
		// Someone wrote a broken catalog after the survey.
		st.corrupt = true
		p.rebuild(ctx, l, cfg, st, now, ev)
		return
	}
	if err != nil {
		tracing.SetError(span, err)
		p.report(ctx, ev, newAnomaly(AnomalyIndexInconsistent, st.ae.Title, "", "", &IndexInconsistentError{
			AETitle: st.ae.Title,
			Path:    st.store.Path(),
			Reason:  "index not updated, stale entries remain until the next run",
			Cause:   err,
		}))
		return
	}

	p.logger.InfoContext(ctx, "index committed",
		"index_path", st.store.Path(),
		"dropped", dropped,
		"adopted", adopted,
	)
}

// rebuild replaces a corrupt catalog with one entry per file on disk. The
// corrupt file is kept beside it.
func (p *Pruner) rebuild(ctx context.Context, l *layout.Layout, cfg *Config, st *aeState, now time.Time, ev *Event) {
	span := trace.SpanFromContext(ctx)

	objects, err := l.Scan(ctx, st.ae)
	if err != nil {
		tracing.SetError(span, err)
		p.report(ctx, ev, newAnomaly(AnomalyIndexInconsistent, st.ae.Title, "", "", &IndexInconsistentError{
			AETitle: st.ae.Title,
			Reason:  "index not rebuilt, AE directory could not be rescanned",
			Cause:   err,
		}))
		return
	}

	entries := make([]index.Entry, 0, len(objects))
	for _, o := range objects {
		if o.InProgress || now.Sub(o.ModTime) < cfg.OrphanGrace {
			continue
		}
		e := adoptEntry(o)
		if e.Validate() != nil {
			continue
		}
		entries = append(entries, e)
	}

	moved, err := st.store.Rebuild(ctx, entries, now)
	if err != nil {
		tracing.SetError(span, err)
		p.report(ctx, ev, newAnomaly(AnomalyIndexInconsistent, st.ae.Title, "", "", &IndexInconsistentError{
			AETitle: st.ae.Title,
			Path:    st.store.Path(),
			Reason:  "index not rebuilt",
			Cause:   err,
		}))
		return
	}

	p.logger.WarnContext(ctx, "index rebuilt from filesystem",
		"index_path", st.store.Path(),
		"quarantine_path", moved,
		"entries", len(entries),
	)
}

// adoptEntry builds a catalog entry for an unindexed file.
func adoptEntry(o layout.Object) index.Entry {
	return index.Entry{
		ObjectID:   AdoptedPrefix + o.RelPath,
		ReceivedAt: o.ModTime.UTC(),
		Size:       o.Size,
		Path:       o.RelPath,
	}
}

// exists reports whether path is still present. Errors other than
// "not exist" count as present so the entry is kept.
func exists(path string) bool {
	_, err := os.Lstat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
