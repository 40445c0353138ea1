// Package alias provides the vendor alias directory used during
// normalization: read-only reference data mapping raw vendor identifiers and
// display names, as they appear in the extracts, to canonical vendor codes.
package alias

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Directory resolves raw vendor strings to canonical vendor codes. Exact
// lookups are tried first on a normalized form; when that fails, the closest
// known alias within the configured edit distance is used, so the small
// spelling drifts between the ERP's reports still resolve. Lookups are pure;
// the directory is immutable after construction.
type Directory struct {
	exact       map[string]string
	names       []string // sorted normalized aliases, for the fuzzy scan
	maxDistance int
}

// Option configures a Directory.
type Option func(*Directory)

// WithMaxDistance sets the maximum levenshtein distance accepted by the
// fuzzy fallback. Zero disables fuzzy resolution entirely.
func WithMaxDistance(d int) Option {
	return func(dir *Directory) {
		dir.maxDistance = d
	}
}

// New builds a Directory from alias → canonical-code pairs.
func New(aliases map[string]string, opts ...Option) *Directory {
	dir := &Directory{
		exact:       make(map[string]string, len(aliases)),
		maxDistance: 3,
	}
	for _, opt := range opts {
		opt(dir)
	}
	for raw, code := range aliases {
		key := normalizeName(raw)
		if key == "" {
			continue
		}
		dir.exact[key] = code
		dir.names = append(dir.names, key)
	}
	sort.Strings(dir.names)
	return dir
}

// LoadFile reads a two-column CSV of (alias, vendor code) pairs.
func LoadFile(path string, opts ...Option) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open alias file: %w", err)
	}
	defer f.Close()
	return Load(f, opts...)
}

// Load reads (alias, vendor code) pairs from a CSV stream.
func Load(r io.Reader, opts ...Option) (*Directory, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	aliases := make(map[string]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read alias record: %w", err)
		}
		aliases[record[0]] = strings.TrimSpace(record[1])
	}
	return New(aliases, opts...), nil
}

// Resolve returns the canonical vendor code for a raw identifier or name.
func (d *Directory) Resolve(raw string) (string, bool) {
	key := normalizeName(raw)
	if key == "" {
		return "", false
	}
	if code, ok := d.exact[key]; ok {
		return code, true
	}
	if d.maxDistance <= 0 {
		return "", false
	}

	// Closest alias wins; names is sorted, so equal distances resolve to the
	// lexicographically smallest alias and the result is deterministic.
	best := ""
	bestDist := d.maxDistance + 1
	for _, name := range d.names {
		dist := levenshtein.ComputeDistance(key, name)
		if dist < bestDist {
			best = name
			bestDist = dist
		}
	}
	if best == "" {
		return "", false
	}
	return d.exact[best], true
}

// Size returns the number of known aliases.
func (d *Directory) Size() int {
	return len(d.names)
}

// normalizeName upper-cases and collapses interior whitespace so lookups are
// insensitive to the spacing quirks of scraped report grids.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}
