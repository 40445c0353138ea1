package recon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/recon/backend/internal/domain/recon"
	"go.uber.org/zap"
)

// RunResult is the outcome of one reconciliation execution.
type RunResult struct {
	RunID         int64
	ExecutedAt    time.Time
	Skipped       bool
	EntryCount    int
	Discrepancies []recon.Discrepancy
	Rejections    []recon.Rejection
	Diagnostics   []recon.Diagnostic
}

// ReconciliationService orchestrates a full run: normalize both extracts,
// match, diff, rank, mark new findings against the prior run, and commit
// atomically. Everything before CommitRun is in-memory; a failure or
// cancellation abandons the in-progress run and leaves the store's last
// committed run untouched.
type ReconciliationService struct {
	store   recon.RunStore
	aliases recon.AliasDirectory
	trigger recon.RunTrigger
	params  recon.Params
	logger  *zap.Logger
}

// ReconciliationServiceOption is a functional option for configuring ReconciliationService
type ReconciliationServiceOption func(*ReconciliationService)

// WithTrigger sets the run trigger consulted before each execution.
func WithTrigger(trigger recon.RunTrigger) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		s.trigger = trigger
	}
}

// WithParams overrides the engine parameters.
func WithParams(params recon.Params) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		s.params = params
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ReconciliationServiceOption {
	return func(s *ReconciliationService) {
		s.logger = logger.Named("recon")
	}
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(store recon.RunStore, aliases recon.AliasDirectory, opts ...ReconciliationServiceOption) *ReconciliationService {
	s := &ReconciliationService{
		store:   store,
		aliases: aliases,
		trigger: recon.AlwaysRun{},
		params:  recon.DefaultParams(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute performs one reconciliation over the two extracts. now anchors both
// the trigger decision and the run's ExecutedAt.
func (s *ReconciliationService) Execute(ctx context.Context, payablesRows, ledgerRows []recon.RawRow, now time.Time) (*RunResult, error) {
	if !s.trigger.ShouldRun(now) {
		s.logger.Info("run not due, skipping", zap.Time("now", now))
		return &RunResult{Skipped: true}, nil
	}

	runID, err := s.store.BeginRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	log := s.logger.With(zap.Int64("run_id", runID))
	log.Info("run started",
		zap.Int("payables_rows", len(payablesRows)),
		zap.Int("ledger_rows", len(ledgerRows)))

	result, err := s.execute(ctx, runID, payablesRows, ledgerRows, now, log)
	if err != nil {
		if abandonErr := s.store.AbandonRun(context.WithoutCancel(ctx), runID); abandonErr != nil {
			log.Error("failed to abandon run", zap.Error(abandonErr))
		}
		log.Warn("run abandoned", zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (s *ReconciliationService) execute(ctx context.Context, runID int64, payablesRows, ledgerRows []recon.RawRow, now time.Time, log *zap.Logger) (*RunResult, error) {
	normalizer := recon.NewNormalizer(s.aliases, s.params.DateLayouts...)

	payables, payablesRej, err := s.normalizeSource(ctx, normalizer, recon.SourcePayables, payablesRows, now)
	if err != nil {
		return nil, fmt.Errorf("normalize payables: %w", err)
	}
	ledger, ledgerRej, err := s.normalizeSource(ctx, normalizer, recon.SourceLedger, ledgerRows, now)
	if err != nil {
		return nil, fmt.Errorf("normalize ledger: %w", err)
	}
	rejections := append(payablesRej, ledgerRej...)
	if len(rejections) > 0 {
		log.Warn("rows rejected during normalization", zap.Int("count", len(rejections)))
	}

	matcher := recon.NewMatcher(s.params.AmountTolerance, s.params.DateWindowDays)
	matchResult := matcher.Match(payables, ledger)

	differ := recon.NewDiffer(s.params.MaterialityThreshold, s.params.IncludeCleanMatches)
	discrepancies := differ.Diff(matchResult.Pairs, now)

	discrepancies = recon.NewPrioritizer().Rank(discrepancies)

	if err := s.markNewFindings(ctx, discrepancies); err != nil {
		return nil, fmt.Errorf("mark new findings: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]recon.LedgerEntry, 0, len(payables)+len(ledger))
	entries = append(entries, payables...)
	entries = append(entries, ledger...)
	if err := s.store.CommitRun(ctx, runID, entries, matchResult.Pairs, discrepancies); err != nil {
		return nil, fmt.Errorf("commit run: %w", err)
	}

	log.Info("run committed",
		zap.Int("entries", len(entries)),
		zap.Int("pairs", len(matchResult.Pairs)),
		zap.Int("discrepancies", len(discrepancies)))

	return &RunResult{
		RunID:         runID,
		ExecutedAt:    now,
		EntryCount:    len(entries),
		Discrepancies: discrepancies,
		Rejections:    rejections,
		Diagnostics:   matchResult.Diagnostics,
	}, nil
}

// normalizeSource converts one extract's rows on a bounded worker pool.
// Workers pick rows independently; the output is re-sorted by input index so
// parallel and sequential execution produce identical entry sequences.
func (s *ReconciliationService) normalizeSource(ctx context.Context, normalizer *recon.Normalizer, source recon.Source, rows []recon.RawRow, extractedAt time.Time) ([]recon.LedgerEntry, []recon.Rejection, error) {
	workers := s.params.Concurrency
	if workers <= 1 || len(rows) < 2 {
		return normalizer.Normalize(source, rows, extractedAt)
	}

	// Schema mismatch is fatal for the whole extract, checked before any
	// worker starts.
	for _, row := range rows {
		if row.SchemaVersion != recon.ExpectedSchemaVersion(source) {
			// Delegate to the sequential path for the canonical error.
			return normalizer.Normalize(source, rows, extractedAt)
		}
	}

	if workers > len(rows) {
		workers = len(rows)
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		entries    []recon.LedgerEntry
		rejections []recon.Rejection
	)
	indexes := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				entry, rej := normalizer.NormalizeRow(source, rows[i], i, extractedAt)
				mu.Lock()
				if rej != nil {
					rejections = append(rejections, *rej)
				} else {
					entries = append(entries, *entry)
				}
				mu.Unlock()
			}
		}()
	}

	for i := range rows {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].InputIndex < entries[j].InputIndex })
	sort.Slice(rejections, func(i, j int) bool { return rejections[i].RowIndex < rejections[j].RowIndex })
	return entries, rejections, nil
}

// markNewFindings flags the discrepancies whose identity was absent from the
// prior committed run. On the very first run everything is new.
func (s *ReconciliationService) markNewFindings(ctx context.Context, discrepancies []recon.Discrepancy) error {
	prior, err := s.store.GetPriorRun(ctx)
	if err != nil {
		return err
	}
	if prior == nil {
		for i := range discrepancies {
			discrepancies[i].IsNew = true
		}
		return nil
	}

	priorDiscs, err := s.store.ListDiscrepancies(ctx, prior.RunID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(priorDiscs))
	for _, d := range priorDiscs {
		known[d.IdentityKey()] = true
	}
	for i := range discrepancies {
		discrepancies[i].IsNew = !known[discrepancies[i].IdentityKey()]
	}
	return nil
}
