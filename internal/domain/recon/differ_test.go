package recon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDiffer(includeClean bool) *Differ {
	return NewDiffer(decimal.NewFromFloat(10.00), includeClean)
}

func pairOf(p, l LedgerEntry) MatchedPair {
	return MatchedPair{Payables: &p, Ledger: &l}
}

func TestDifferMatchedPairs(t *testing.T) {
	day := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	t.Run("material amount difference yields AmountMismatch", func(t *testing.T) {
		pair := pairOf(
			entry(SourcePayables, "V1", "INV-1", "1000.00", day, 0),
			entry(SourceLedger, "V1", "INV-1", "950.00", day, 0),
		)
		discs := testDiffer(false).Diff([]MatchedPair{pair}, asOf)
		require.Len(t, discs, 1)
		assert.Equal(t, KindAmountMismatch, discs[0].Kind)
		assert.Equal(t, "-50", discs[0].Delta.String())
	})

	t.Run("delta within materiality with differing status yields StatusMismatch", func(t *testing.T) {
		p := entry(SourcePayables, "V1", "INV-1", "100.00", day, 0)
		l := entry(SourceLedger, "V1", "INV-1", "105.00", day, 0)
		l.Status = EntryStatusSettled

		discs := testDiffer(false).Diff([]MatchedPair{pairOf(p, l)}, asOf)
		require.Len(t, discs, 1)
		assert.Equal(t, KindStatusMismatch, discs[0].Kind)
		assert.Equal(t, "5", discs[0].Delta.String())
	})

	t.Run("clean matches are dropped unless configured", func(t *testing.T) {
		pair := pairOf(
			entry(SourcePayables, "V1", "INV-1", "100.00", day, 0),
			entry(SourceLedger, "V1", "INV-1", "100.00", day, 0),
		)
		assert.Empty(t, testDiffer(false).Diff([]MatchedPair{pair}, asOf))

		discs := testDiffer(true).Diff([]MatchedPair{pair}, asOf)
		require.Len(t, discs, 1)
		assert.Equal(t, KindNone, discs[0].Kind)
		assert.True(t, discs[0].Delta.IsZero())
	})

	t.Run("delta exactly at the threshold is not material", func(t *testing.T) {
		pair := pairOf(
			entry(SourcePayables, "V1", "INV-1", "100.00", day, 0),
			entry(SourceLedger, "V1", "INV-1", "110.00", day, 0),
		)
		discs := testDiffer(true).Diff([]MatchedPair{pair}, asOf)
		require.Len(t, discs, 1)
		assert.Equal(t, KindNone, discs[0].Kind)
	})

	t.Run("age counts from the older of the two dates", func(t *testing.T) {
		p := entry(SourcePayables, "V1", "INV-1", "1000.00", day, 0)
		l := entry(SourceLedger, "V1", "INV-1", "900.00", day.AddDate(0, 0, 10), 0)

		discs := testDiffer(false).Diff([]MatchedPair{pairOf(p, l)}, asOf)
		require.Len(t, discs, 1)
		assert.Equal(t, 16, discs[0].AgeDays)
	})
}

func TestDifferOrphans(t *testing.T) {
	day := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	asOf := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	t.Run("payables orphan carries a negative delta", func(t *testing.T) {
		e := entry(SourcePayables, "V1", "INV-002", "500.00", day, 0)
		discs := testDiffer(false).Diff([]MatchedPair{{Payables: &e}}, asOf)
		require.Len(t, discs, 1)
		assert.Equal(t, KindPayablesOrphan, discs[0].Kind)
		assert.Equal(t, "-500", discs[0].Delta.String())
	})

	t.Run("ledger orphan carries a positive delta", func(t *testing.T) {
		e := entry(SourceLedger, "V1", "INV-003", "300.00", day, 0)
		discs := testDiffer(false).Diff([]MatchedPair{{Ledger: &e}}, asOf)
		require.Len(t, discs, 1)
		assert.Equal(t, KindLedgerOrphan, discs[0].Kind)
		assert.Equal(t, "300", discs[0].Delta.String())
	})

	t.Run("orphan age counts from extraction", func(t *testing.T) {
		e := entry(SourcePayables, "V1", "INV-002", "500.00", day, 0)
		e.ExtractedAt = asOf.AddDate(0, 0, -3)
		discs := testDiffer(false).Diff([]MatchedPair{{Payables: &e}}, asOf)
		require.Len(t, discs, 1)
		assert.Equal(t, 3, discs[0].AgeDays)
	})
}
