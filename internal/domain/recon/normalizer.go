package recon

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/recon/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AliasDirectory resolves a raw vendor identifier or display name to a
// canonical vendor code. It is read-only reference data for the duration of a
// run; see internal/infrastructure/alias for the production implementation.
type AliasDirectory interface {
	Resolve(raw string) (vendorID string, ok bool)
}

// Rejection records a row the Normalizer refused, with enough context for a
// human to find the row in the source extract. Rejections never abort a run.
type Rejection struct {
	Source   Source
	RowIndex int
	Code     string
	Reason   string
}

// Normalizer converts raw extracted rows into canonical LedgerEntry values.
// Currency strings are parsed with an explicit decimal parser and dates with
// the configured layouts; a row whose vendor cannot be resolved is rejected,
// never silently dropped.
type Normalizer struct {
	aliases     AliasDirectory
	dateLayouts []string
}

// canonicalVendorCode matches identifiers that are already canonical vendor
// codes and need no alias lookup: a single token of letters, digits and
// separators, as emitted by the ERP's supplier register.
var canonicalVendorCode = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,31}$`)

// NewNormalizer creates a Normalizer. When no date layouts are supplied the
// Brazilian day-first layout and ISO dates are accepted.
func NewNormalizer(aliases AliasDirectory, dateLayouts ...string) *Normalizer {
	if len(dateLayouts) == 0 {
		dateLayouts = []string{"02/01/2006", "2006-01-02"}
	}
	return &Normalizer{aliases: aliases, dateLayouts: dateLayouts}
}

// Normalize converts the rows of one extract. It returns the canonical
// entries, the per-row rejections, and an error only for fatal conditions
// (a schema-version mismatch means no row of the extract can be trusted).
func (n *Normalizer) Normalize(source Source, rows []RawRow, extractedAt time.Time) ([]LedgerEntry, []Rejection, error) {
	if !source.IsValid() {
		return nil, nil, shared.ErrInvalidInput
	}
	for _, row := range rows {
		if row.SchemaVersion != ExpectedSchemaVersion(source) {
			return nil, nil, fmt.Errorf("%s extract declares schema v%d, expected v%d: %w",
				source, row.SchemaVersion, ExpectedSchemaVersion(source), shared.ErrSchemaVersionMismatch)
		}
	}

	entries := make([]LedgerEntry, 0, len(rows))
	rejections := make([]Rejection, 0)
	for i, row := range rows {
		entry, rej := n.NormalizeRow(source, row, i, extractedAt)
		if rej != nil {
			rejections = append(rejections, *rej)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, rejections, nil
}

// NormalizeRow converts a single row, returning either an entry or a
// rejection.
func (n *Normalizer) NormalizeRow(source Source, row RawRow, rowIndex int, extractedAt time.Time) (*LedgerEntry, *Rejection) {
	var (
		rawVendor, vendorName, documentRef string
		rawAmount, rawDate, rawStatus      string
	)
	switch source {
	case SourcePayables:
		rawVendor = strings.TrimSpace(row.Field(ColVendor))
		vendorName = rawVendor
		documentRef = strings.TrimSpace(row.Field(ColDocument))
		rawAmount = row.Field(ColAmount)
		rawDate = row.Field(ColDueDate)
		rawStatus = row.Field(ColStatus)
	case SourceLedger:
		rawVendor = strings.TrimSpace(row.Field(ColVendorCode))
		vendorName = strings.TrimSpace(row.Field(ColVendorDesc))
		if rawVendor == "" {
			rawVendor = vendorName
		}
		documentRef = strings.TrimSpace(row.Field(ColDocument))
		rawAmount = row.Field(ColCurrentBalance)
		rawDate = row.Field(ColPostingDate)
		rawStatus = row.Field(ColStatus)
	}

	vendorID, ok := n.resolveVendor(rawVendor)
	if !ok {
		return nil, &Rejection{
			Source:   source,
			RowIndex: rowIndex,
			Code:     shared.ErrUnresolvedVendor.Code,
			Reason:   fmt.Sprintf("vendor %q has no canonical code", rawVendor),
		}
	}

	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return nil, &Rejection{
			Source:   source,
			RowIndex: rowIndex,
			Code:     shared.ErrInvalidInput.Code,
			Reason:   fmt.Sprintf("amount %q: %v", rawAmount, err),
		}
	}

	entryDate, err := n.parseDate(rawDate)
	if err != nil {
		return nil, &Rejection{
			Source:   source,
			RowIndex: rowIndex,
			Code:     shared.ErrInvalidInput.Code,
			Reason:   fmt.Sprintf("date %q: %v", rawDate, err),
		}
	}
	if entryDate.IsZero() {
		entryDate = extractedAt
	}

	if vendorName == "" {
		vendorName = rawVendor
	}
	return &LedgerEntry{
		ID:          uuid.New(),
		Source:      source,
		VendorID:    vendorID,
		VendorName:  vendorName,
		DocumentRef: documentRef,
		EntryDate:   entryDate,
		Amount:      amount,
		Status:      ParseStatus(rawStatus),
		ExtractedAt: extractedAt,
		InputIndex:  rowIndex,
	}, nil
}

// resolveVendor returns the canonical vendor code for a raw identifier. Raw
// values that already look like canonical codes pass through upper-cased;
// everything else goes through the alias directory.
func (n *Normalizer) resolveVendor(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if canonicalVendorCode.MatchString(raw) {
		return strings.ToUpper(raw), true
	}
	if n.aliases == nil {
		return "", false
	}
	return n.aliases.Resolve(raw)
}

// parseDate parses with the configured layouts. An empty value is allowed
// (the extract timestamp stands in); a value that parses to different
// instants under more than one layout is ambiguous and rejected.
func (n *Normalizer) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	var (
		parsed time.Time
		found  bool
	)
	for _, layout := range n.dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if found && !t.Equal(parsed) {
			return time.Time{}, fmt.Errorf("ambiguous under configured layouts")
		}
		parsed = t
		found = true
	}
	if !found {
		return time.Time{}, fmt.Errorf("does not match any configured layout")
	}
	return parsed, nil
}

// ParseAmount parses a currency string into a fixed-precision decimal. It
// accepts the ERP's Brazilian formatting ("R$ 1.234,56", trailing-minus and
// parenthesised negatives) as well as plain machine formats ("1234.56").
// Binary floating point is never involved. The result carries exactly two
// decimal places.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimSpace(s)

	switch {
	case strings.Contains(s, ","):
		// Brazilian format: dots are thousands separators, comma is the
		// decimal mark.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		// Dots only, more than one: thousands separators without a decimal
		// part ("1.234.567").
		s = strings.ReplaceAll(s, ".", "")
	case strings.Count(s, ".") == 1:
		// A single dot followed by exactly three digits is a thousands
		// separator in the ERP's locale; anything else is a decimal point.
		if idx := strings.Index(s, "."); len(s)-idx-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %w", err)
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(2), nil
}

// ParseStatus maps the source systems' status vocabulary onto the canonical
// entry status. Unrecognized values become EntryStatusUnknown rather than an
// error; status is advisory, amounts are authoritative.
func ParseStatus(raw string) EntryStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "aberto", "em aberto", "a vencer", "vencido", "pendente", "open":
		return EntryStatusOpen
	case "baixado", "pago", "liquidado", "quitado", "settled", "paid":
		return EntryStatusSettled
	default:
		return EntryStatusUnknown
	}
}
