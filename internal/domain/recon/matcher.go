package recon

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/recon/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MatchedPair pairs the two canonical entries that represent the same vendor
// obligation. Exactly one side is nil for an orphan. Within a run an entry
// belongs to at most one pair.
type MatchedPair struct {
	ID       uuid.UUID
	Payables *LedgerEntry
	Ledger   *LedgerEntry
}

// IsOrphan reports whether only one side of the pair is present.
func (p MatchedPair) IsOrphan() bool {
	return p.Payables == nil || p.Ledger == nil
}

// VendorID returns the vendor of whichever side is present.
func (p MatchedPair) VendorID() string {
	if p.Payables != nil {
		return p.Payables.VendorID
	}
	return p.Ledger.VendorID
}

// VendorName returns the vendor display name of whichever side is present.
func (p MatchedPair) VendorName() string {
	if p.Payables != nil {
		return p.Payables.VendorName
	}
	return p.Ledger.VendorName
}

// DocumentRef returns the document reference of whichever side is present.
func (p MatchedPair) DocumentRef() string {
	if p.Payables != nil {
		return p.Payables.DocumentRef
	}
	return p.Ledger.DocumentRef
}

// Diagnostic is a row- or group-level finding accumulated during a run and
// surfaced alongside the discrepancy output, never swallowed.
type Diagnostic struct {
	Code   string
	Source Source
	Detail string
}

// MatchResult is the outcome of pairing the two extracts.
type MatchResult struct {
	Pairs       []MatchedPair
	Diagnostics []Diagnostic
}

// Matcher pairs payables entries with ledger entries. The exact pass matches
// 1:1 MatchKey groups; ambiguous groups are deferred to the fuzzy pass and
// logged for audit. The fuzzy pass greedily pairs same-vendor entries within
// the configured amount tolerance and date window. All candidate orderings
// are explicit sorts, so identical inputs always yield identical pairings
// regardless of map iteration order.
type Matcher struct {
	amountTolerance decimal.Decimal
	dateWindow      time.Duration
}

// NewMatcher creates a Matcher with the given fuzzy-pass tolerances.
func NewMatcher(amountTolerance decimal.Decimal, dateWindowDays int) *Matcher {
	return &Matcher{
		amountTolerance: amountTolerance,
		dateWindow:      time.Duration(dateWindowDays) * 24 * time.Hour,
	}
}

// Match produces the maximal pairing of the two entry sets plus orphan pairs
// for everything left unmatched.
func (m *Matcher) Match(payables, ledger []LedgerEntry) MatchResult {
	var result MatchResult
	matchedP := make(map[uuid.UUID]bool)
	matchedL := make(map[uuid.UUID]bool)

	result.Pairs, result.Diagnostics = m.exactPass(payables, ledger, matchedP, matchedL)

	fuzzyPairs := m.fuzzyPass(unmatched(payables, matchedP), unmatched(ledger, matchedL), matchedP, matchedL)
	result.Pairs = append(result.Pairs, fuzzyPairs...)

	for _, e := range unmatched(payables, matchedP) {
		result.Pairs = append(result.Pairs, MatchedPair{ID: uuid.New(), Payables: e})
	}
	for _, e := range unmatched(ledger, matchedL) {
		result.Pairs = append(result.Pairs, MatchedPair{ID: uuid.New(), Ledger: e})
	}
	return result
}

// exactPass groups both sides by MatchKey and matches groups holding exactly
// one entry per side. Groups with several entries on either side are left for
// the fuzzy pass rather than resolved arbitrarily.
func (m *Matcher) exactPass(payables, ledger []LedgerEntry, matchedP, matchedL map[uuid.UUID]bool) ([]MatchedPair, []Diagnostic) {
	type group struct {
		payables []*LedgerEntry
		ledger   []*LedgerEntry
	}
	groups := make(map[MatchKey]*group)
	keyed := func(entries []LedgerEntry, side Source) {
		for i := range entries {
			key, ok := entries[i].Key()
			if !ok {
				continue
			}
			g := groups[key]
			if g == nil {
				g = &group{}
				groups[key] = g
			}
			if side == SourcePayables {
				g.payables = append(g.payables, &entries[i])
			} else {
				g.ledger = append(g.ledger, &entries[i])
			}
		}
	}
	keyed(payables, SourcePayables)
	keyed(ledger, SourceLedger)

	keys := make([]MatchKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].VendorID != keys[j].VendorID {
			return keys[i].VendorID < keys[j].VendorID
		}
		return keys[i].DocumentRef < keys[j].DocumentRef
	})

	var pairs []MatchedPair
	var diags []Diagnostic
	for _, key := range keys {
		g := groups[key]
		if len(g.payables) == 1 && len(g.ledger) == 1 {
			pairs = append(pairs, MatchedPair{ID: uuid.New(), Payables: g.payables[0], Ledger: g.ledger[0]})
			matchedP[g.payables[0].ID] = true
			matchedL[g.ledger[0].ID] = true
			continue
		}
		if len(g.payables) > 1 || len(g.ledger) > 1 {
			diags = append(diags, Diagnostic{
				Code: shared.ErrAmbiguousExactMatch.Code,
				Detail: fmt.Sprintf("vendor %s document %s: %d payables and %d ledger entries share the key; deferred to fuzzy pass",
					key.VendorID, key.DocumentRef, len(g.payables), len(g.ledger)),
			})
		}
	}
	return pairs, diags
}

// fuzzyCandidate is a potential pairing considered by the fuzzy pass.
type fuzzyCandidate struct {
	payables    *LedgerEntry
	ledger      *LedgerEntry
	amountDelta decimal.Decimal
	dateDelta   time.Duration
}

// fuzzyPass pairs still-unmatched entries of the same vendor whose amounts
// fall within the tolerance and whose dates fall within the window. The
// greedy selection order is smallest amount delta, then smallest date delta,
// then stable input order.
func (m *Matcher) fuzzyPass(payables, ledger []*LedgerEntry, matchedP, matchedL map[uuid.UUID]bool) []MatchedPair {
	byVendorL := make(map[string][]*LedgerEntry)
	for _, e := range ledger {
		byVendorL[e.VendorID] = append(byVendorL[e.VendorID], e)
	}

	var candidates []fuzzyCandidate
	for _, p := range payables {
		for _, l := range byVendorL[p.VendorID] {
			amountDelta := l.Amount.Sub(p.Amount).Abs()
			if amountDelta.GreaterThan(m.amountTolerance) {
				continue
			}
			dateDelta := l.EntryDate.Sub(p.EntryDate)
			if dateDelta < 0 {
				dateDelta = -dateDelta
			}
			if dateDelta > m.dateWindow {
				continue
			}
			candidates = append(candidates, fuzzyCandidate{
				payables:    p,
				ledger:      l,
				amountDelta: amountDelta,
				dateDelta:   dateDelta,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if cmp := a.amountDelta.Cmp(b.amountDelta); cmp != 0 {
			return cmp < 0
		}
		if a.dateDelta != b.dateDelta {
			return a.dateDelta < b.dateDelta
		}
		if a.payables.InputIndex != b.payables.InputIndex {
			return a.payables.InputIndex < b.payables.InputIndex
		}
		return a.ledger.InputIndex < b.ledger.InputIndex
	})

	var pairs []MatchedPair
	for _, c := range candidates {
		if matchedP[c.payables.ID] || matchedL[c.ledger.ID] {
			continue
		}
		pairs = append(pairs, MatchedPair{ID: uuid.New(), Payables: c.payables, Ledger: c.ledger})
		matchedP[c.payables.ID] = true
		matchedL[c.ledger.ID] = true
	}
	return pairs
}

// unmatched returns pointers to the entries not yet claimed by a pair, in
// input order.
func unmatched(entries []LedgerEntry, matched map[uuid.UUID]bool) []*LedgerEntry {
	var out []*LedgerEntry
	for i := range entries {
		if !matched[entries[i].ID] {
			out = append(out, &entries[i])
		}
	}
	return out
}
