package layout

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// QREntry is one AETable line of a dcmqrscp configuration:
//
//	AETitle  StorageArea  Access  Quota  Peers
//	DCMTK_STR_SCP /var/lib/dcmtk/db/DCMTK_STR_SCP RW (500, 1gb) ANY
type QREntry struct {
	Title       string
	StorageArea string
	Access      string
	MaxStudies  int
	MaxBytes    string
	Peers       string
}

var (
	aeTableBegin = regexp.MustCompile(`(?i)^AETable\s+BEGIN\b`)
	aeTableEnd   = regexp.MustCompile(`(?i)^AETable\s+END\b`)
	aeTableLine  = regexp.MustCompile(`^(\S+)\s+(\S+)\s+(\S+)\s+\(\s*(\d+)\s*,\s*([^)]*?)\s*\)\s*(.*)$`)
)

// ParseQRConfig extracts the AETable block of a dcmqrscp.cfg file. Lines
// outside the block, comments and lines that do not follow the AETable
// grammar are ignored.
func ParseQRConfig(r io.Reader) ([]QREntry, error) {
	scanner := bufio.NewScanner(r)

	var (
		entries []QREntry
		inTable bool
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case aeTableBegin.MatchString(line):
			inTable = true
			continue
		case aeTableEnd.MatchString(line):
			inTable = false
			continue
		case !inTable:
			continue
		}

		m := aeTableLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		maxStudies, err := strconv.Atoi(m[4])
		if err != nil {
			continue
		}

		entries = append(entries, QREntry{
			Title:       strings.Trim(m[1], `"`),
			StorageArea: strings.Trim(m[2], `"`),
			Access:      m[3],
			MaxStudies:  maxStudies,
			MaxBytes:    m[5],
			Peers:       strings.TrimSpace(m[6]),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dcmqrscp config: %w", err)
	}

	return entries, nil
}

// LoadQRConfig reads and parses a dcmqrscp.cfg file.
func LoadQRConfig(path string) ([]QREntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dcmqrscp config %s: %w", path, err)
	}
	defer f.Close()

	return ParseQRConfig(f)
}
