// Package index reads and rewrites the per-AE object catalog kept next to the
// stored DICOM files.
//
// # Format
//
// The catalog is a JSON-lines file (one object per line):
//
//	{"object_id":"1.2.840...","study_uid":"1.2...","series_uid":"1.2...",
//	 "instance_uid":"1.2...","study_date":"20240117",
//	 "received_at":"2024-01-17T08:12:44Z","size":524288,
//	 "path":"1.2.840.../1.2.840....dcm"}
//
// Paths are slash separated and relative to the AE directory. Object ids and
// paths are unique within one catalog.
//
// # Updates
//
// The storage service appends to the catalog while it runs. Store.Update
// serialises with it through an advisory lock on "<index>.lock", re-reads the
// current catalog, applies the change and replaces the file by writing a temp
// file in the same directory and renaming it over the old one. Readers never
// observe a torn file.
package index

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// StudyDateLayout is the DICOM DA value representation.
const StudyDateLayout = "20060102"

// Entry is one catalogued object.
type Entry struct {
	ObjectID    string    `json:"object_id"`
	StudyUID    string    `json:"study_uid,omitempty"`
	SeriesUID   string    `json:"series_uid,omitempty"`
	InstanceUID string    `json:"instance_uid,omitempty"`
	StudyDate   string    `json:"study_date,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
	Size        int64     `json:"size"`
	Path        string    `json:"path"`
}

// StudyTime parses StudyDate. ok is false when it is empty or malformed.
func (e *Entry) StudyTime() (t time.Time, ok bool) {
	if e.StudyDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(StudyDateLayout, e.StudyDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Validate checks the fields every entry must carry.
func (e *Entry) Validate() error {
	if e.ObjectID == "" {
		return fmt.Errorf("object_id is required")
	}
	if e.Path == "" {
		return fmt.Errorf("path is required")
	}
	if e.Size < 0 {
		return fmt.Errorf("size must be non-negative")
	}
	if path.IsAbs(e.Path) || strings.Contains(e.Path, "\\") {
		return fmt.Errorf("path %q must be relative and slash separated", e.Path)
	}
	if clean := path.Clean(e.Path); clean != e.Path || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path %q escapes the AE directory or is not clean", e.Path)
	}
	return nil
}
