package recon

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func disc(kind DiscrepancyKind, vendorID, docRef, delta string, ageDays int) Discrepancy {
	d, err := decimal.NewFromString(delta)
	if err != nil {
		panic(err)
	}
	day := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	e := entry(SourcePayables, vendorID, docRef, "0", day, 0)
	return Discrepancy{
		Kind:    kind,
		Pair:    MatchedPair{Payables: &e},
		Delta:   d,
		AgeDays: ageDays,
	}
}

func TestPrioritizerRank(t *testing.T) {
	t.Run("ranks are dense starting at one", func(t *testing.T) {
		discs := []Discrepancy{
			disc(KindStatusMismatch, "V1", "A", "1.00", 0),
			disc(KindAmountMismatch, "V2", "B", "50.00", 0),
			disc(KindPayablesOrphan, "V3", "C", "-500.00", 0),
			disc(KindNone, "V4", "D", "0.00", 0),
		}
		ranked := NewPrioritizer().Rank(discs)

		seen := make(map[int]bool)
		for i, d := range ranked {
			assert.Equal(t, i+1, d.PriorityRank)
			assert.False(t, seen[d.PriorityRank])
			seen[d.PriorityRank] = true
		}
	})

	t.Run("amount mismatches and orphans outrank status mismatches outrank clean", func(t *testing.T) {
		discs := []Discrepancy{
			disc(KindNone, "V1", "A", "0.00", 0),
			disc(KindStatusMismatch, "V2", "B", "900.00", 10),
			disc(KindAmountMismatch, "V3", "C", "-50.00", 0),
			disc(KindLedgerOrphan, "V4", "D", "25.00", 0),
		}
		ranked := NewPrioritizer().Rank(discs)

		assert.Equal(t, KindAmountMismatch, ranked[0].Kind)
		assert.Equal(t, KindLedgerOrphan, ranked[1].Kind)
		assert.Equal(t, KindStatusMismatch, ranked[2].Kind)
		assert.Equal(t, KindNone, ranked[3].Kind)
	})

	t.Run("a large amount mismatch outranks a smaller status mismatch", func(t *testing.T) {
		discs := []Discrepancy{
			disc(KindStatusMismatch, "V1", "A", "5.00", 0),
			disc(KindAmountMismatch, "V2", "B", "-50.00", 0),
		}
		ranked := NewPrioritizer().Rank(discs)
		assert.Equal(t, KindAmountMismatch, ranked[0].Kind)
		assert.Equal(t, 1, ranked[0].PriorityRank)
	})

	t.Run("within a tier larger absolute deltas come first", func(t *testing.T) {
		discs := []Discrepancy{
			disc(KindAmountMismatch, "V1", "A", "10.00", 0),
			disc(KindAmountMismatch, "V2", "B", "-300.00", 0),
			disc(KindAmountMismatch, "V3", "C", "200.00", 0),
		}
		ranked := NewPrioritizer().Rank(discs)
		assert.Equal(t, "-300", ranked[0].Delta.String())
		assert.Equal(t, "200", ranked[1].Delta.String())
		assert.Equal(t, "10", ranked[2].Delta.String())
	})

	t.Run("delta ties break on age then vendor", func(t *testing.T) {
		discs := []Discrepancy{
			disc(KindAmountMismatch, "V2", "A", "100.00", 5),
			disc(KindAmountMismatch, "V1", "B", "100.00", 5),
			disc(KindAmountMismatch, "V3", "C", "100.00", 30),
		}
		ranked := NewPrioritizer().Rank(discs)
		assert.Equal(t, "V3", ranked[0].Pair.VendorID())
		assert.Equal(t, "V1", ranked[1].Pair.VendorID())
		assert.Equal(t, "V2", ranked[2].Pair.VendorID())
	})

	t.Run("ranking is deterministic under shuffled input", func(t *testing.T) {
		var discs []Discrepancy
		kinds := []DiscrepancyKind{KindAmountMismatch, KindStatusMismatch, KindPayablesOrphan, KindLedgerOrphan}
		for i := 0; i < 40; i++ {
			discs = append(discs, disc(kinds[i%len(kinds)], "V1", "DOC", "100.00", i%3))
		}
		baseline := NewPrioritizer().Rank(append([]Discrepancy(nil), discs...))

		rng := rand.New(rand.NewSource(7))
		for trial := 0; trial < 5; trial++ {
			shuffled := append([]Discrepancy(nil), discs...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			ranked := NewPrioritizer().Rank(shuffled)
			for i := range ranked {
				assert.Equal(t, baseline[i].Kind, ranked[i].Kind)
				assert.Equal(t, baseline[i].PriorityRank, ranked[i].PriorityRank)
			}
		}
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		ranked := NewPrioritizer().Rank(nil)
		require.Empty(t, ranked)
	})
}
