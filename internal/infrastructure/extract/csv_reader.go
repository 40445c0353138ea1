// Package extract turns the files produced by the extraction collaborator
// (CSV exports of the ERP's payables register and trial-balance grids) into
// the raw rows the reconciliation engine consumes.
package extract

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/recon/backend/internal/domain/recon"
	"golang.org/x/text/encoding/charmap"
)

// Required headers per source, in the canonical form produced by
// normalizeHeader. Files missing any of them are rejected up front.
var requiredHeaders = map[recon.Source][]string{
	recon.SourcePayables: {recon.ColVendor, recon.ColDocument, recon.ColAmount},
	recon.SourceLedger:   {recon.ColVendorCode, recon.ColCurrentBalance},
}

// Reader parses one extract file into raw rows.
type Reader struct {
	source        recon.Source
	schemaVersion int
	delimiter     rune
}

// Option is a functional option for Reader configuration.
type Option func(*Reader)

// WithDelimiter sets the field delimiter (default is semicolon, the ERP's
// export separator).
func WithDelimiter(d rune) Option {
	return func(r *Reader) {
		r.delimiter = d
	}
}

// WithSchemaVersion overrides the schema version declared on the produced
// rows. Used when the extraction collaborator announces a version explicitly.
func WithSchemaVersion(v int) Option {
	return func(r *Reader) {
		r.schemaVersion = v
	}
}

// NewReader creates a Reader for one source's extract.
func NewReader(source recon.Source, opts ...Option) *Reader {
	r := &Reader{
		source:        source,
		schemaVersion: recon.ExpectedSchemaVersion(source),
		delimiter:     ';',
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile parses an extract file from disk.
func (r *Reader) ReadFile(path string) ([]recon.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extract: %w", err)
	}
	defer f.Close()
	return r.Read(f)
}

// Read parses an extract stream. The ERP exports either UTF-8 (optionally
// with a BOM) or Windows-1252; both are accepted.
func (r *Reader) Read(input io.Reader) ([]recon.RawRow, error) {
	decoded, err := decode(input)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	reader.Comma = r.delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = normalizeHeader(h)
	}
	if missing := missingHeaders(headers, requiredHeaders[r.source]); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, strings.Join(missing, ", "))
	}

	var rows []recon.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading row %d: %w", len(rows)+2, err)
		}

		fields := make(map[string]string, len(headers))
		empty := true
		for i, name := range headers {
			if i >= len(record) {
				fields[name] = ""
				continue
			}
			value := strings.TrimSpace(record[i])
			fields[name] = value
			if value != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, recon.RawRow{
			Source:        r.source,
			SchemaVersion: r.schemaVersion,
			Fields:        fields,
		})
	}
	return rows, nil
}

// decode strips a UTF-8 BOM and falls back to Windows-1252 when the content
// is not valid UTF-8.
func decode(input io.Reader) (io.Reader, error) {
	buf := bufio.NewReader(input)

	head, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read extract: %w", err)
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = buf.Discard(3)
	}

	content, err := io.ReadAll(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read extract: %w", err)
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(content) {
		content, err = charmap.Windows1252.NewDecoder().Bytes(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
	}
	return bytes.NewReader(content), nil
}

// normalizeHeader canonicalizes a header cell: lower-cased, trimmed, interior
// whitespace collapsed to underscores, accents folded to their base letters.
// "Código Fornecedor" and "codigo_fornecedor" address the same column.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Join(strings.Fields(h), "_")
	var b strings.Builder
	for _, r := range h {
		if folded, ok := accentFold[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// accentFold covers the accented letters that occur in the ERP's Portuguese
// column names.
var accentFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'ã': 'a', 'â': 'a',
	'é': 'e', 'ê': 'e',
	'í': 'i',
	'ó': 'o', 'õ': 'o', 'ô': 'o',
	'ú': 'u', 'ü': 'u',
	'ç': 'c',
}

func missingHeaders(headers, required []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, h := range required {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	return missing
}
