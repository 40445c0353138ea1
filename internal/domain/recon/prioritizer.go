package recon

import (
	"sort"
)

// Prioritizer assigns every discrepancy of a run a dense 1-based priority
// rank under a total order: kind severity, then absolute delta descending,
// then age descending, then vendor and document as the final deterministic
// tie-break. Two runs over the same discrepancy set always assign the same
// ranks.
type Prioritizer struct{}

// NewPrioritizer creates a Prioritizer.
func NewPrioritizer() *Prioritizer {
	return &Prioritizer{}
}

// Rank sorts the discrepancies into priority order and assigns ranks 1..N
// with no gaps and no duplicates. The input slice is sorted in place and
// returned.
func (p *Prioritizer) Rank(discrepancies []Discrepancy) []Discrepancy {
	sort.SliceStable(discrepancies, func(i, j int) bool {
		a, b := discrepancies[i], discrepancies[j]
		if at, bt := a.Kind.SeverityTier(), b.Kind.SeverityTier(); at != bt {
			return at < bt
		}
		if cmp := a.Delta.Abs().Cmp(b.Delta.Abs()); cmp != 0 {
			return cmp > 0
		}
		if a.AgeDays != b.AgeDays {
			return a.AgeDays > b.AgeDays
		}
		if av, bv := a.Pair.VendorID(), b.Pair.VendorID(); av != bv {
			return av < bv
		}
		if ad, bd := NormalizeDocumentRef(a.Pair.DocumentRef()), NormalizeDocumentRef(b.Pair.DocumentRef()); ad != bd {
			return ad < bd
		}
		// Orphans on opposite sides can tie on everything above; side keeps
		// the order fully defined.
		return string(a.Kind) < string(b.Kind)
	})
	for i := range discrepancies {
		discrepancies[i].PriorityRank = i + 1
	}
	return discrepancies
}
