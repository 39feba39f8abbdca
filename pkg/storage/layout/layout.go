// Package layout maps the DICOM storage root onto AE directories and the
// object files inside them.
//
// The storage root holds one directory per Application Entity title. AE
// directories are taken, in order of preference, from the configured AE
// titles, from the AETable of the dcmqrscp configuration (storage areas
// under the root only), or from the subdirectories of the root.
//
// Files still being written by the storage service carry an in-progress
// marker (a configured suffix such as ".part", or a leading dot) and are
// reported with InProgress set so callers never evict or catalogue them.
package layout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dcmnode/dcmprune/pkg/storage/index"
)

// DefaultInProgressSuffixes are the temp-file conventions of the storage
// service.
var DefaultInProgressSuffixes = []string{".tmp", ".part", ".partial"}

// Layout describes the storage root.
type Layout struct {
	// Root is the storage root directory.
	Root string

	// AETitles restricts the engine to these AE directories. Empty means
	// discover them.
	AETitles []string

	// QRConfigPath is an optional dcmqrscp.cfg used for discovery.
	QRConfigPath string

	// IndexName is the catalog file name in each AE directory.
	IndexName string

	// InProgressSuffixes mark files the storage service is still writing.
	InProgressSuffixes []string
}

// AEDir is one AE subtree.
type AEDir struct {
	Title string
	Path  string
}

// Object is one file found under an AE directory.
type Object struct {
	AETitle    string
	RelPath    string // slash separated, relative to the AE directory
	AbsPath    string
	Size       int64
	ModTime    time.Time
	InProgress bool
}

// WithRoot returns a copy of l rooted at root.
func (l *Layout) WithRoot(root string) *Layout {
	c := *l
	c.Root = root
	return &c
}

func (l *Layout) indexName() string {
	if l.IndexName == "" {
		return index.DefaultName
	}
	return l.IndexName
}

func (l *Layout) suffixes() []string {
	if l.InProgressSuffixes == nil {
		return DefaultInProgressSuffixes
	}
	return l.InProgressSuffixes
}

// CheckRoot verifies the root exists, is a directory and can be listed.
func (l *Layout) CheckRoot() error {
	info, err := os.Stat(l.Root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", l.Root)
	}

	d, err := os.Open(l.Root)
	if err != nil {
		return err
	}
	defer d.Close()

	if _, err := d.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// IndexStore returns the catalog store of an AE directory.
func (l *Layout) IndexStore(ae AEDir) *index.Store {
	return index.NewStore(filepath.Join(ae.Path, l.indexName()))
}

// AEDirs lists the AE directories under the root, sorted by title.
// Configured titles whose directory does not exist yet are skipped. An
// unreadable dcmqrscp.cfg falls back to subdirectory discovery.
func (l *Layout) AEDirs() ([]AEDir, error) {
	var dirs []AEDir

	switch {
	case len(l.AETitles) > 0:
		for _, title := range l.AETitles {
			dirs = append(dirs, AEDir{Title: title, Path: filepath.Join(l.Root, title)})
		}

	case l.QRConfigPath != "":
		entries, err := LoadQRConfig(l.QRConfigPath)
		if err != nil {
			slog.Warn("dcmqrscp config unusable, discovering AE directories from subdirectories",
				"component", "storage.layout",
				"path", l.QRConfigPath,
				"error", err,
			)
			if dirs, err = l.subdirs(); err != nil {
				return nil, err
			}
			break
		}
		for _, e := range entries {
			if !within(l.Root, e.StorageArea) {
				slog.Debug("storage area outside root ignored",
					"component", "storage.layout",
					"ae_title", e.Title,
					"storage_area", e.StorageArea,
				)
				continue
			}
			dirs = append(dirs, AEDir{Title: e.Title, Path: filepath.Clean(e.StorageArea)})
		}

	default:
		var err error
		if dirs, err = l.subdirs(); err != nil {
			return nil, err
		}
	}

	existing := dirs[:0]
	for _, d := range dirs {
		info, err := os.Stat(d.Path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			existing = append(existing, d)
		}
	}

	sort.Slice(existing, func(i, j int) bool { return existing[i].Title < existing[j].Title })
	return existing, nil
}

func (l *Layout) subdirs() ([]AEDir, error) {
	children, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, err
	}
	var dirs []AEDir
	for _, c := range children {
		if !c.IsDir() || strings.HasPrefix(c.Name(), ".") {
			continue
		}
		dirs = append(dirs, AEDir{Title: c.Name(), Path: filepath.Join(l.Root, c.Name())})
	}
	return dirs, nil
}

// IsInProgress reports whether a file name carries a write-in-progress
// marker.
func (l *Layout) IsInProgress(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, s := range l.suffixes() {
		if s != "" && strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// isCatalogFile reports whether name is the catalog, its lock file or a
// quarantined copy. These are never objects.
func (l *Layout) isCatalogFile(name string) bool {
	idx := l.indexName()
	return name == idx || strings.HasPrefix(name, idx+".")
}

// Scan walks an AE directory and returns its regular files in lexical order.
// Hidden directories are treated as in-progress and not descended into.
func (l *Layout) Scan(ctx context.Context, ae AEDir) ([]Object, error) {
	var objects []Object

	err := filepath.WalkDir(ae.Path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if p != ae.Path && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if p == filepath.Join(ae.Path, name) && l.isCatalogFile(name) {
			return nil
		}

		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// Removed or renamed by the storage service mid-walk.
			return nil
		}
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(ae.Path, p)
		if err != nil {
			return err
		}

		objects = append(objects, Object{
			AETitle:    ae.Title,
			RelPath:    filepath.ToSlash(rel),
			AbsPath:    p,
			Size:       info.Size(),
			ModTime:    info.ModTime(),
			InProgress: l.IsInProgress(name),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", ae.Path, err)
	}

	return objects, nil
}

// AbsPath resolves a catalog path inside an AE directory.
func AbsPath(ae AEDir, rel string) string {
	return filepath.Join(ae.Path, filepath.FromSlash(rel))
}

func within(root, p string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
