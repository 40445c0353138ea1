package recon

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscrepancyKind classifies the difference found for a matched pair or
// orphan.
type DiscrepancyKind string

const (
	KindAmountMismatch DiscrepancyKind = "AMOUNT_MISMATCH"
	KindStatusMismatch DiscrepancyKind = "STATUS_MISMATCH"
	KindPayablesOrphan DiscrepancyKind = "PAYABLES_ORPHAN"
	KindLedgerOrphan   DiscrepancyKind = "LEDGER_ORPHAN"
	KindNone           DiscrepancyKind = "NONE"
)

// IsValid checks if the kind is a valid DiscrepancyKind
func (k DiscrepancyKind) IsValid() bool {
	switch k {
	case KindAmountMismatch, KindStatusMismatch, KindPayablesOrphan, KindLedgerOrphan, KindNone:
		return true
	}
	return false
}

// String returns the string representation
func (k DiscrepancyKind) String() string {
	return string(k)
}

// SeverityTier returns the kind's position in the priority total order. Lower
// is more urgent: amount mismatches and orphans share the top tier, status
// mismatches come next, clean matches last.
func (k DiscrepancyKind) SeverityTier() int {
	switch k {
	case KindAmountMismatch, KindPayablesOrphan, KindLedgerOrphan:
		return 1
	case KindStatusMismatch:
		return 2
	default:
		return 3
	}
}

// Discrepancy is the typed difference computed for one matched pair or
// orphan. Delta follows the ledger-minus-payables sign convention; for
// orphans it is the signed amount of the present side with the missing side
// treated as zero. Created by the Differ; only the Prioritizer mutates it (to
// assign PriorityRank) and only the run orchestration sets IsNew.
type Discrepancy struct {
	ID           uuid.UUID
	Kind         DiscrepancyKind
	Pair         MatchedPair
	Delta        decimal.Decimal
	AgeDays      int
	PriorityRank int
	IsNew        bool
}

// IdentityKey returns the stable key used to compare a discrepancy against a
// prior run when marking new findings: vendor, normalized document, kind.
func (d Discrepancy) IdentityKey() string {
	return d.Pair.VendorID() + "\x1f" + NormalizeDocumentRef(d.Pair.DocumentRef()) + "\x1f" + string(d.Kind)
}

// ageDays counts whole days between a reference instant and the given time,
// clamped at zero.
func ageDays(asOf, since time.Time) int {
	if since.IsZero() || since.After(asOf) {
		return 0
	}
	return int(asOf.Sub(since).Hours() / 24)
}
