package recon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/recon/backend/internal/domain/recon"
	"github.com/recon/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunStore is an in-memory recon.RunStore for service tests.
type fakeRunStore struct {
	mu      sync.Mutex
	nextID  int64
	runs    map[int64]*recon.RunRecord
	entries map[int64][]recon.LedgerEntry
	pairs   map[int64][]recon.MatchedPair
	discs   map[int64][]recon.Discrepancy

	beginCalls int
	failCommit bool
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		runs:    make(map[int64]*recon.RunRecord),
		entries: make(map[int64][]recon.LedgerEntry),
		pairs:   make(map[int64][]recon.MatchedPair),
		discs:   make(map[int64][]recon.Discrepancy),
	}
}

func (f *fakeRunStore) BeginRun(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginCalls++
	for _, r := range f.runs {
		if r.Status == recon.RunStatusInProgress {
			return 0, shared.ErrRunAlreadyInProgress
		}
	}
	f.nextID++
	f.runs[f.nextID] = &recon.RunRecord{RunID: f.nextID, ExecutedAt: time.Now(), Status: recon.RunStatusInProgress}
	return f.nextID, nil
}

func (f *fakeRunStore) CommitRun(ctx context.Context, runID int64, entries []recon.LedgerEntry, pairs []recon.MatchedPair, discrepancies []recon.Discrepancy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCommit {
		return shared.ErrCommitFailure
	}
	run, ok := f.runs[runID]
	if !ok {
		return shared.ErrNotFound
	}
	run.Status = recon.RunStatusCommitted
	run.EntryCount = len(entries)
	run.DiscrepancyCount = len(discrepancies)
	f.entries[runID] = entries
	f.pairs[runID] = pairs
	f.discs[runID] = discrepancies
	return nil
}

func (f *fakeRunStore) AbandonRun(ctx context.Context, runID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return shared.ErrNotFound
	}
	if run.Status == recon.RunStatusInProgress {
		run.Status = recon.RunStatusAbandoned
	}
	return nil
}

func (f *fakeRunStore) GetRun(ctx context.Context, runID int64) (*recon.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *run
	return &copied, nil
}

func (f *fakeRunStore) GetPriorRun(ctx context.Context) (*recon.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *recon.RunRecord
	for _, r := range f.runs {
		if r.Status != recon.RunStatusCommitted {
			continue
		}
		if latest == nil || r.RunID > latest.RunID {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeRunStore) ListRuns(ctx context.Context, limit int) ([]recon.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runs []recon.RunRecord
	for id := f.nextID; id >= 1; id-- {
		if r, ok := f.runs[id]; ok && r.Status == recon.RunStatusCommitted {
			runs = append(runs, *r)
			if limit > 0 && len(runs) == limit {
				break
			}
		}
	}
	return runs, nil
}

func (f *fakeRunStore) ListDiscrepancies(ctx context.Context, runID int64) ([]recon.Discrepancy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[runID]; !ok {
		return nil, shared.ErrNotFound
	}
	return append([]recon.Discrepancy(nil), f.discs[runID]...), nil
}

var _ recon.RunStore = (*fakeRunStore)(nil)

// neverRun declines every trigger consultation.
type neverRun struct{}

func (neverRun) ShouldRun(time.Time) bool { return false }

func payablesRow(fornecedor, titulo, valor, vencimento, situacao string) recon.RawRow {
	return recon.RawRow{
		Source:        recon.SourcePayables,
		SchemaVersion: recon.PayablesSchemaVersion,
		Fields: map[string]string{
			"fornecedor": fornecedor,
			"titulo":     titulo,
			"valor":      valor,
			"vencimento": vencimento,
			"situacao":   situacao,
		},
	}
}

func ledgerRow(codigo, descricao, titulo, saldo, data string) recon.RawRow {
	return recon.RawRow{
		Source:        recon.SourceLedger,
		SchemaVersion: recon.LedgerSchemaVersion,
		Fields: map[string]string{
			"codigo_fornecedor":    codigo,
			"descricao_fornecedor": descricao,
			"titulo":               titulo,
			"saldo_atual":          saldo,
			"data_lancamento":      data,
		},
	}
}

func runInstant() time.Time {
	return time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
}

func TestReconciliationService_Execute(t *testing.T) {
	t.Run("commits discrepancies in priority order", func(t *testing.T) {
		store := newFakeRunStore()
		svc := NewReconciliationService(store, nil)

		payables := []recon.RawRow{
			payablesRow("V001", "INV-1", "100,00", "10/08/2026", "aberto"),
			payablesRow("V002", "INV-9", "200,00", "12/08/2026", "aberto"),
		}
		ledger := []recon.RawRow{
			ledgerRow("V001", "Acme Ltda", "INV-1", "150,00", "10/08/2026"),
		}

		result, err := svc.Execute(context.Background(), payables, ledger, runInstant())
		require.NoError(t, err)
		assert.False(t, result.Skipped)
		assert.Equal(t, 3, result.EntryCount)

		require.Len(t, result.Discrepancies, 2)
		// The 200.00 orphan outranks the 50.00 mismatch on |delta|.
		assert.Equal(t, recon.KindPayablesOrphan, result.Discrepancies[0].Kind)
		assert.Equal(t, 1, result.Discrepancies[0].PriorityRank)
		assert.True(t, result.Discrepancies[0].Delta.Equal(decimal.RequireFromString("-200")))
		assert.Equal(t, recon.KindAmountMismatch, result.Discrepancies[1].Kind)
		assert.Equal(t, 2, result.Discrepancies[1].PriorityRank)
		assert.True(t, result.Discrepancies[1].Delta.Equal(decimal.RequireFromString("50")))

		run, err := store.GetRun(context.Background(), result.RunID)
		require.NoError(t, err)
		assert.Equal(t, recon.RunStatusCommitted, run.Status)
	})

	t.Run("first run marks every discrepancy new", func(t *testing.T) {
		store := newFakeRunStore()
		svc := NewReconciliationService(store, nil)

		result, err := svc.Execute(context.Background(),
			[]recon.RawRow{payablesRow("V001", "INV-1", "100,00", "10/08/2026", "aberto")},
			nil, runInstant())
		require.NoError(t, err)
		require.Len(t, result.Discrepancies, 1)
		assert.True(t, result.Discrepancies[0].IsNew)
	})

	t.Run("repeat findings are not new on the next run", func(t *testing.T) {
		store := newFakeRunStore()
		svc := NewReconciliationService(store, nil)

		payables := []recon.RawRow{
			payablesRow("V001", "INV-1", "100,00", "10/08/2026", "aberto"),
		}
		_, err := svc.Execute(context.Background(), payables, nil, runInstant())
		require.NoError(t, err)

		payables = append(payables, payablesRow("V002", "INV-2", "300,00", "11/08/2026", "aberto"))
		second, err := svc.Execute(context.Background(), payables, nil, runInstant().AddDate(0, 0, 1))
		require.NoError(t, err)
		require.Len(t, second.Discrepancies, 2)

		byVendor := map[string]bool{}
		for _, d := range second.Discrepancies {
			byVendor[d.Pair.VendorID()] = d.IsNew
		}
		assert.False(t, byVendor["V001"])
		assert.True(t, byVendor["V002"])
	})

	t.Run("declined trigger skips without touching the store", func(t *testing.T) {
		store := newFakeRunStore()
		svc := NewReconciliationService(store, nil, WithTrigger(neverRun{}))

		result, err := svc.Execute(context.Background(),
			[]recon.RawRow{payablesRow("V001", "INV-1", "100,00", "", "aberto")},
			nil, runInstant())
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Zero(t, store.beginCalls)
	})

	t.Run("schema mismatch aborts and abandons the run", func(t *testing.T) {
		store := newFakeRunStore()
		svc := NewReconciliationService(store, nil)

		bad := payablesRow("V001", "INV-1", "100,00", "", "aberto")
		bad.SchemaVersion = 99

		_, err := svc.Execute(context.Background(), []recon.RawRow{bad}, nil, runInstant())
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrSchemaVersionMismatch)

		run, err := store.GetRun(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, recon.RunStatusAbandoned, run.Status)
	})

	t.Run("commit failure abandons the run", func(t *testing.T) {
		store := newFakeRunStore()
		store.failCommit = true
		svc := NewReconciliationService(store, nil)

		_, err := svc.Execute(context.Background(),
			[]recon.RawRow{payablesRow("V001", "INV-1", "100,00", "", "aberto")},
			nil, runInstant())
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrCommitFailure)

		run, err := store.GetRun(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, recon.RunStatusAbandoned, run.Status)
	})

	t.Run("concurrent run rejected while one is in progress", func(t *testing.T) {
		store := newFakeRunStore()
		_, err := store.BeginRun(context.Background())
		require.NoError(t, err)

		svc := NewReconciliationService(store, nil)
		_, err = svc.Execute(context.Background(), nil, nil, runInstant())
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrRunAlreadyInProgress)
	})

	t.Run("surfaces normalization rejections without dropping the run", func(t *testing.T) {
		store := newFakeRunStore()
		svc := NewReconciliationService(store, nil)

		payables := []recon.RawRow{
			payablesRow("", "INV-1", "100,00", "", "aberto"),
			payablesRow("V002", "INV-2", "200,00", "", "aberto"),
		}
		result, err := svc.Execute(context.Background(), payables, nil, runInstant())
		require.NoError(t, err)
		require.Len(t, result.Rejections, 1)
		assert.Equal(t, shared.ErrUnresolvedVendor.Code, result.Rejections[0].Code)
		assert.Equal(t, 1, result.EntryCount)
	})
}

func TestReconciliationService_RepeatedRunsProduceSameDiscrepancies(t *testing.T) {
	build := func() ([]recon.RawRow, []recon.RawRow) {
		payables := []recon.RawRow{
			payablesRow("V001", "INV-1", "100,00", "10/08/2026", "aberto"),
			payablesRow("V002", "INV-9", "200,00", "12/08/2026", "aberto"),
			payablesRow("V003", "INV-4", "75,50", "15/08/2026", "aberto"),
		}
		ledger := []recon.RawRow{
			ledgerRow("V001", "Acme Ltda", "INV-1", "150,00", "10/08/2026"),
			ledgerRow("V003", "Gama SA", "INV-4", "75,50", "15/08/2026"),
			ledgerRow("V004", "Delta ME", "INV-7", "320,00", "14/08/2026"),
		}
		return payables, ledger
	}

	type finding struct {
		rank    int
		kind    recon.DiscrepancyKind
		vendor  string
		docRef  string
		delta   string
		ageDays int
	}
	runOnce := func(svc *ReconciliationService) []finding {
		payables, ledger := build()
		result, err := svc.Execute(context.Background(), payables, ledger, runInstant())
		require.NoError(t, err)
		findings := make([]finding, len(result.Discrepancies))
		for i, d := range result.Discrepancies {
			findings[i] = finding{
				rank:    d.PriorityRank,
				kind:    d.Kind,
				vendor:  d.Pair.VendorID(),
				docRef:  d.Pair.DocumentRef(),
				delta:   d.Delta.String(),
				ageDays: d.AgeDays,
			}
		}
		return findings
	}

	store := newFakeRunStore()
	svc := NewReconciliationService(store, nil)

	first := runOnce(svc)
	second := runOnce(svc)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	// Both commits persisted the same discrepancy set under distinct run IDs.
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, runs[0].DiscrepancyCount, runs[1].DiscrepancyCount)
	assert.Equal(t, runs[0].EntryCount, runs[1].EntryCount)
}

func TestReconciliationService_ParallelNormalizationIsDeterministic(t *testing.T) {
	build := func() ([]recon.RawRow, []recon.RawRow) {
		var payables, ledger []recon.RawRow
		amounts := []string{"100,00", "250,50", "13,99", "1.234,56", "75,00", "980,10"}
		for i, amount := range amounts {
			doc := "INV-" + string(rune('A'+i))
			payables = append(payables, payablesRow("V00"+string(rune('1'+i)), doc, amount, "10/08/2026", "aberto"))
			ledger = append(ledger, ledgerRow("V00"+string(rune('1'+i)), "Vendor", doc, amount, "10/08/2026"))
		}
		// One unmatched side to force an orphan.
		payables = append(payables, payablesRow("V009", "INV-Z", "42,00", "10/08/2026", "aberto"))
		return payables, ledger
	}

	runWith := func(concurrency int) *RunResult {
		store := newFakeRunStore()
		params := recon.DefaultParams()
		params.Concurrency = concurrency
		params.IncludeCleanMatches = true
		svc := NewReconciliationService(store, nil, WithParams(params))

		payables, ledger := build()
		result, err := svc.Execute(context.Background(), payables, ledger, runInstant())
		require.NoError(t, err)
		return result
	}

	sequential := runWith(1)
	parallel := runWith(8)

	require.Equal(t, len(sequential.Discrepancies), len(parallel.Discrepancies))
	for i := range sequential.Discrepancies {
		s, p := sequential.Discrepancies[i], parallel.Discrepancies[i]
		assert.Equal(t, s.Kind, p.Kind)
		assert.Equal(t, s.PriorityRank, p.PriorityRank)
		assert.Equal(t, s.Pair.VendorID(), p.Pair.VendorID())
		assert.True(t, s.Delta.Equal(p.Delta))
	}
}
