package recon

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Source identifies which extract a canonical entry was normalized from.
type Source string

const (
	SourcePayables Source = "PAYABLES" // accounts-payable register ("Títulos a Pagar")
	SourceLedger   Source = "LEDGER"   // general-ledger trial balance ("Balancete")
)

// IsValid checks if the source is a valid Source
func (s Source) IsValid() bool {
	return s == SourcePayables || s == SourceLedger
}

// String returns the string representation
func (s Source) String() string {
	return string(s)
}

// EntryStatus represents the settlement status carried by a source row.
type EntryStatus string

const (
	EntryStatusOpen    EntryStatus = "OPEN"
	EntryStatusSettled EntryStatus = "SETTLED"
	EntryStatusUnknown EntryStatus = "UNKNOWN"
)

// IsValid checks if the status is a valid EntryStatus
func (s EntryStatus) IsValid() bool {
	return s == EntryStatusOpen || s == EntryStatusSettled || s == EntryStatusUnknown
}

// String returns the string representation
func (s EntryStatus) String() string {
	return string(s)
}

// LedgerEntry is the canonical representation both extracts are normalized
// into. Amount is always rounded to two decimal places in the currency of
// record; VendorID is never empty (rows that cannot resolve a vendor are
// rejected by the Normalizer instead).
type LedgerEntry struct {
	ID          uuid.UUID
	Source      Source
	VendorID    string
	VendorName  string
	DocumentRef string // empty when the source row carried no document
	EntryDate   time.Time
	Amount      decimal.Decimal
	Status      EntryStatus
	ExtractedAt time.Time

	// InputIndex preserves the position of the originating row inside its
	// extract. Greedy tie-breaks in the Matcher depend on it.
	InputIndex int
}

// MatchKey is the deterministic key used by the Matcher's exact pass.
type MatchKey struct {
	VendorID    string
	DocumentRef string
}

// Key derives the entry's MatchKey. The second return value is false when the
// entry carries no document reference; such entries are ineligible for the
// exact pass and fall through to fuzzy matching.
func (e *LedgerEntry) Key() (MatchKey, bool) {
	ref := NormalizeDocumentRef(e.DocumentRef)
	if ref == "" {
		return MatchKey{}, false
	}
	return MatchKey{VendorID: e.VendorID, DocumentRef: ref}, true
}

// NormalizeDocumentRef canonicalizes a raw document reference: case-folded,
// whitespace stripped, leading zeros trimmed. A reference consisting only of
// zeros normalizes to "0".
func NormalizeDocumentRef(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	ref := b.String()
	if ref == "" {
		return ""
	}
	trimmed := strings.TrimLeft(ref, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
