package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrCorrupt is matched by every CorruptError.
var ErrCorrupt = errors.New("index corrupt")

// maxLineBytes bounds one catalog record.
const maxLineBytes = 1 << 20

// CorruptError describes why a catalog could not be parsed.
type CorruptError struct {
	Path  string // catalog file, empty when decoding a bare reader
	Line  int    // 1-based line number, 0 when not line specific
	Cause error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("index corrupt [path=%s, line=%d]: %v", e.Path, e.Line, e.Cause)
	case e.Line > 0:
		return fmt.Sprintf("index corrupt [line=%d]: %v", e.Line, e.Cause)
	case e.Path != "":
		return fmt.Sprintf("index corrupt [path=%s]: %v", e.Path, e.Cause)
	default:
		return fmt.Sprintf("index corrupt: %v", e.Cause)
	}
}

// Unwrap returns the underlying cause.
func (e *CorruptError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrCorrupt) true.
func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

// Decode reads a JSON-lines catalog. Blank lines are ignored. Any malformed
// record, invalid entry or duplicate object id or path makes the whole
// catalog corrupt.
func Decode(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		entries []Entry
		ids     = make(map[string]int)
		paths   = make(map[string]int)
		line    int
	)

	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, &CorruptError{Line: line, Cause: err}
		}
		if err := e.Validate(); err != nil {
			return nil, &CorruptError{Line: line, Cause: err}
		}
		if prev, dup := ids[e.ObjectID]; dup {
			return nil, &CorruptError{Line: line, Cause: fmt.Errorf("duplicate object_id %q (first on line %d)", e.ObjectID, prev)}
		}
		if prev, dup := paths[e.Path]; dup {
			return nil, &CorruptError{Line: line, Cause: fmt.Errorf("duplicate path %q (first on line %d)", e.Path, prev)}
		}
		ids[e.ObjectID] = line
		paths[e.Path] = line

		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, &CorruptError{Line: line + 1, Cause: err}
	}

	return entries, nil
}

// Encode writes entries as JSON lines.
func Encode(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("encode entry %q: %w", entries[i].ObjectID, err)
		}
	}

	return bw.Flush()
}
