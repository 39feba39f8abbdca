package retention

import (
	"context"
	"errors"
	"sort"
	"time"

	"dcmnode/dcmprune/pkg/storage/index"
	"dcmnode/dcmprune/pkg/storage/layout"
)

// Where an age came from.
const (
	ageFromStudyDate  = "study_date"
	ageFromReceivedAt = "received_at"
	ageFromMTime      = "mtime"
)

// candidate is one evictable object.
type candidate struct {
	state   *aeState
	object  layout.Object
	entry   *index.Entry // nil when the object has no usable index entry
	age     time.Time
	ageFrom string
}

// aeState is one AE directory as seen by a run: its files, its catalog and
// how the two match up. Commit uses it to rewrite the catalog.
type aeState struct {
	ae    layout.AEDir
	store *index.Store

	entries []index.Entry
	objects []layout.Object

	// corrupt means the catalog could not be parsed. It is rebuilt from
	// the filesystem on commit.
	corrupt bool
	// unreadable means the catalog could not be read for another reason.
	// It is left untouched.
	unreadable bool
	loadErr    error

	candidates []candidate
	orphans    []layout.Object // unindexed files older than the grace
	young      int             // unindexed files inside the grace
	inProgress int
	stale      []index.Entry // entries whose file is missing
	bytes      int64

	anomalies []Anomaly

	// Paths whose entries go on commit, if their file is gone by then.
	drop map[string]bool
	// Paths removed by this run.
	evicted map[string]bool
}

// changed reports whether commit has anything to write.
func (st *aeState) changed() bool {
	return st.corrupt || len(st.drop) > 0 || len(st.orphans) > 0
}

// survey scans every AE directory and matches files with catalog entries.
func (p *Pruner) survey(ctx context.Context, l *layout.Layout, cfg *Config, now time.Time) ([]*aeState, error) {
	dirs, err := l.AEDirs()
	if err != nil {
		return nil, NewStorageUnavailableError(l.Root, "list AE directories", err)
	}

	states := make([]*aeState, 0, len(dirs))
	for _, ae := range dirs {
		st, err := p.surveyAE(ctx, l, cfg, ae, now)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// One unreadable AE directory must not stop the others.
			states = append(states, &aeState{
				ae:         ae,
				unreadable: true,
				loadErr:    err,
				anomalies: []Anomaly{newAnomaly(AnomalyIndexInconsistent, ae.Title, "", "", &IndexInconsistentError{
					AETitle: ae.Title,
					Reason:  "AE directory could not be scanned",
					Cause:   err,
				})},
			})
			continue
		}
		states = append(states, st)
	}
	return states, nil
}

func (p *Pruner) surveyAE(ctx context.Context, l *layout.Layout, cfg *Config, ae layout.AEDir, now time.Time) (*aeState, error) {
	st := &aeState{
		ae:      ae,
		store:   l.IndexStore(ae).WithLockTimeout(cfg.IndexLockTimeout),
		drop:    make(map[string]bool),
		evicted: make(map[string]bool),
	}

	objects, err := l.Scan(ctx, ae)
	if err != nil {
		return nil, err
	}
	st.objects = objects

	entries, err := st.store.Load()
	if err != nil {
		st.loadErr = err
		reason := "index unreadable, ordering by modification time"
		if errors.Is(err, index.ErrCorrupt) {
			st.corrupt = true
			reason = "index corrupt, ordering by modification time"
		} else {
			st.unreadable = true
		}
		st.anomalies = append(st.anomalies, newAnomaly(AnomalyIndexInconsistent, ae.Title, "", "", &IndexInconsistentError{
			AETitle: ae.Title,
			Path:    st.store.Path(),
			Reason:  reason,
			Cause:   err,
		}))
	}
	st.entries = entries

	byPath := make(map[string]*index.Entry, len(entries))
	for i := range entries {
		byPath[entries[i].Path] = &entries[i]
	}
	seen := make(map[string]bool, len(entries))

	for _, o := range objects {
		e, indexed := byPath[o.RelPath]
		if indexed {
			seen[o.RelPath] = true
		}
		if o.InProgress {
			st.inProgress++
			continue
		}
		st.bytes += o.Size

		switch {
		case indexed:
			age, from := ageOf(cfg.AgeKey, o, e)
			st.candidates = append(st.candidates, candidate{state: st, object: o, entry: e, age: age, ageFrom: from})

		case st.corrupt || st.unreadable:
			st.candidates = append(st.candidates, candidate{state: st, object: o, age: o.ModTime, ageFrom: ageFromMTime})

		case now.Sub(o.ModTime) < cfg.OrphanGrace:
			st.young++

		default:
			st.orphans = append(st.orphans, o)
			st.anomalies = append(st.anomalies, newAnomaly(AnomalyIndexInconsistent, ae.Title, "", o.RelPath, &IndexInconsistentError{
				AETitle: ae.Title,
				Path:    o.RelPath,
				Reason:  "file has no index entry, using modification time",
			}))
			st.candidates = append(st.candidates, candidate{state: st, object: o, age: o.ModTime, ageFrom: ageFromMTime})
		}
	}

	for _, e := range entries {
		if seen[e.Path] {
			continue
		}
		st.stale = append(st.stale, e)
		st.drop[e.Path] = true
		st.anomalies = append(st.anomalies, newAnomaly(AnomalyIndexInconsistent, ae.Title, e.ObjectID, e.Path, &IndexInconsistentError{
			AETitle: ae.Title,
			Path:    e.Path,
			Reason:  "index entry has no file",
		}))
	}

	return st, nil
}

// ageOf returns the age key of an object and which field it came from.
func ageOf(key AgeKey, o layout.Object, e *index.Entry) (time.Time, string) {
	if e != nil {
		switch key {
		case AgeKeyStudyDate:
			if t, ok := e.StudyTime(); ok {
				return t, ageFromStudyDate
			}
			fallthrough
		case AgeKeyReceived:
			if !e.ReceivedAt.IsZero() {
				return e.ReceivedAt, ageFromReceivedAt
			}
		}
	}
	return o.ModTime, ageFromMTime
}

// orderCandidates collects the candidates of every AE directory, oldest
// first. Ties are broken by AE title, then path, so the order is total.
func orderCandidates(states []*aeState) []candidate {
	var all []candidate
	for _, st := range states {
		all = append(all, st.candidates...)
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.age.Equal(b.age) {
			return a.age.Before(b.age)
		}
		if a.object.AETitle != b.object.AETitle {
			return a.object.AETitle < b.object.AETitle
		}
		return a.object.RelPath < b.object.RelPath
	})
	return all
}

func newAnomaly(kind AnomalyKind, aeTitle, objectID, path string, err error) Anomaly {
	return Anomaly{
		Kind:     kind,
		AETitle:  aeTitle,
		ObjectID: objectID,
		Path:     path,
		Detail:   err.Error(),
	}
}
