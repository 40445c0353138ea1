package recon

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Differ computes a typed discrepancy for every matched pair and orphan. It
// is a pure function of its inputs and the configured thresholds; it never
// mutates the pairs it is given.
type Differ struct {
	materiality         decimal.Decimal
	includeCleanMatches bool
}

// NewDiffer creates a Differ. materiality is the minimum absolute delta that
// makes an amount difference reportable; includeCleanMatches controls whether
// kind=None results appear in the output at all.
func NewDiffer(materiality decimal.Decimal, includeCleanMatches bool) *Differ {
	return &Differ{materiality: materiality, includeCleanMatches: includeCleanMatches}
}

// Diff computes the discrepancy set for a run's pairs. asOf anchors the age
// computation (normally the run's ExecutedAt).
func (d *Differ) Diff(pairs []MatchedPair, asOf time.Time) []Discrepancy {
	out := make([]Discrepancy, 0, len(pairs))
	for _, pair := range pairs {
		disc := d.diffPair(pair, asOf)
		if disc.Kind == KindNone && !d.includeCleanMatches {
			continue
		}
		out = append(out, disc)
	}
	return out
}

func (d *Differ) diffPair(pair MatchedPair, asOf time.Time) Discrepancy {
	switch {
	case pair.Ledger == nil:
		// Present only in the payables register; delta is ledger minus
		// payables with the missing side at zero.
		return Discrepancy{
			ID:      uuid.New(),
			Kind:    KindPayablesOrphan,
			Pair:    pair,
			Delta:   pair.Payables.Amount.Neg(),
			AgeDays: ageDays(asOf, pair.Payables.ExtractedAt),
		}
	case pair.Payables == nil:
		return Discrepancy{
			ID:      uuid.New(),
			Kind:    KindLedgerOrphan,
			Pair:    pair,
			Delta:   pair.Ledger.Amount,
			AgeDays: ageDays(asOf, pair.Ledger.ExtractedAt),
		}
	}

	delta := pair.Ledger.Amount.Sub(pair.Payables.Amount)
	age := ageDays(asOf, olderDate(pair.Payables.EntryDate, pair.Ledger.EntryDate))

	kind := KindNone
	if delta.Abs().GreaterThan(d.materiality) {
		kind = KindAmountMismatch
	} else if pair.Payables.Status != pair.Ledger.Status {
		kind = KindStatusMismatch
	}
	return Discrepancy{
		ID:      uuid.New(),
		Kind:    kind,
		Pair:    pair,
		Delta:   delta,
		AgeDays: age,
	}
}

func olderDate(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.Before(b) {
		return a
	}
	return b
}
