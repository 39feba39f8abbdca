// Package diskspace measures filesystem capacity and evaluates free-space
// thresholds for the storage root.
//
// A threshold is either an absolute byte count ("20GiB", "500 MB") or a
// percentage of the filesystem size ("15%"). The retention engine compares
// the available bytes reported by a Probe against Threshold.Required.
//
//	t, err := diskspace.ParseThreshold("15%")
//	usage, err := diskspace.StatfsProbe{}.Measure("/var/lib/dcmtk/db")
//	if !t.Satisfied(usage) {
//	    // evict
//	}
package diskspace

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ErrUnsupported is returned by StatfsProbe on platforms without statfs.
var ErrUnsupported = errors.New("disk space measurement not supported on this platform")

// Usage is a point-in-time capacity measurement of one filesystem.
type Usage struct {
	// Total is the filesystem size in bytes.
	Total uint64 `json:"total_bytes"`

	// Free is the number of bytes available to unprivileged writers.
	Free uint64 `json:"free_bytes"`
}

// FreePercent returns Free as a percentage of Total.
func (u Usage) FreePercent() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Free) / float64(u.Total) * 100
}

// Probe measures the filesystem backing a path.
type Probe interface {
	Measure(path string) (Usage, error)
}

// Threshold is the minimum free space the storage root must keep.
// Exactly one of Bytes or Percent is set.
type Threshold struct {
	Bytes   uint64
	Percent float64
}

// ParseThreshold parses "15%" style percentages and human readable byte
// sizes such as "20GiB", "500 MB" or "1048576".
func ParseThreshold(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("threshold is empty")
	}

	if strings.HasSuffix(s, "%") {
		p, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			return Threshold{}, fmt.Errorf("invalid percentage threshold %q: %w", s, err)
		}
		if p <= 0 || p > 100 || math.IsNaN(p) {
			return Threshold{}, fmt.Errorf("percentage threshold %q must be in (0, 100]", s)
		}
		return Threshold{Percent: p}, nil
	}

	b, err := humanize.ParseBytes(s)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid byte threshold %q: %w", s, err)
	}
	if b == 0 {
		return Threshold{}, fmt.Errorf("byte threshold %q must be greater than zero", s)
	}
	return Threshold{Bytes: b}, nil
}

// MustParseThreshold is like ParseThreshold but panics on error.
func MustParseThreshold(s string) Threshold {
	t, err := ParseThreshold(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IsZero reports whether the threshold is unset.
func (t Threshold) IsZero() bool {
	return t.Bytes == 0 && t.Percent == 0
}

// Required returns the number of free bytes needed on a filesystem of the
// given total size. Percentages are rounded up to the next byte.
func (t Threshold) Required(total uint64) uint64 {
	if t.Percent > 0 {
		return uint64(math.Ceil(float64(total) * t.Percent / 100))
	}
	return t.Bytes
}

// Satisfied reports whether u has at least the required free space.
func (t Threshold) Satisfied(u Usage) bool {
	return u.Free >= t.Required(u.Total)
}

// String renders the threshold in the form ParseThreshold accepts. Byte
// thresholds use an IEC or SI unit when that parses back to the same
// value and fall back to a plain byte count.
func (t Threshold) String() string {
	if t.Percent > 0 {
		return strconv.FormatFloat(t.Percent, 'f', -1, 64) + "%"
	}
	for _, s := range []string{humanize.IBytes(t.Bytes), humanize.Bytes(t.Bytes)} {
		if b, err := humanize.ParseBytes(s); err == nil && b == t.Bytes {
			return s
		}
	}
	return strconv.FormatUint(t.Bytes, 10) + " B"
}
