package recon

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/recon/backend/internal/domain/recon"
	"github.com/shopspring/decimal"
)

// ReportRow is one line of the discrepancy report, already in priority order.
// PayablesAmount and LedgerAmount are nil for the absent side of an orphan.
type ReportRow struct {
	PriorityRank   int              `json:"priority_rank"`
	Kind           string           `json:"kind"`
	VendorID       string           `json:"vendor_id"`
	VendorName     string           `json:"vendor_name"`
	DocumentRef    string           `json:"document_ref,omitempty"`
	PayablesAmount *decimal.Decimal `json:"payables_amount,omitempty"`
	LedgerAmount   *decimal.Decimal `json:"ledger_amount,omitempty"`
	Delta          decimal.Decimal  `json:"delta"`
	AgeDays        int              `json:"age_days"`
	IsNew          bool             `json:"is_new"`
}

// KindSummary aggregates one discrepancy kind over a run.
type KindSummary struct {
	Kind          string          `json:"kind"`
	Count         int             `json:"count"`
	TotalAbsDelta decimal.Decimal `json:"total_abs_delta"`
}

// Report is the projection of a committed run handed to reporting
// collaborators.
type Report struct {
	RunID      int64         `json:"run_id"`
	ExecutedAt time.Time     `json:"executed_at"`
	Rows       []ReportRow   `json:"rows"`
	Summaries  []KindSummary `json:"summaries"`
}

// ReportService projects committed runs into ordered report rows with
// per-kind summaries.
type ReportService struct {
	store recon.RunStore
}

// NewReportService creates a new ReportService
func NewReportService(store recon.RunStore) *ReportService {
	return &ReportService{store: store}
}

// BuildReport assembles the report for a committed run. Rows come back in
// priority-rank order; summaries are ordered by severity, worst first.
func (s *ReportService) BuildReport(ctx context.Context, runID int64) (*Report, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %d: %w", runID, err)
	}

	discrepancies, err := s.store.ListDiscrepancies(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load discrepancies for run %d: %w", runID, err)
	}

	report := &Report{
		RunID:      run.RunID,
		ExecutedAt: run.ExecutedAt,
		Rows:       make([]ReportRow, 0, len(discrepancies)),
	}

	totals := make(map[recon.DiscrepancyKind]*KindSummary)
	for _, d := range discrepancies {
		report.Rows = append(report.Rows, rowFromDiscrepancy(d))

		summary, ok := totals[d.Kind]
		if !ok {
			summary = &KindSummary{Kind: d.Kind.String(), TotalAbsDelta: decimal.Zero}
			totals[d.Kind] = summary
		}
		summary.Count++
		summary.TotalAbsDelta = summary.TotalAbsDelta.Add(d.Delta.Abs())
	}

	for _, summary := range totals {
		report.Summaries = append(report.Summaries, *summary)
	}
	sort.Slice(report.Summaries, func(i, j int) bool {
		a, b := recon.DiscrepancyKind(report.Summaries[i].Kind), recon.DiscrepancyKind(report.Summaries[j].Kind)
		if at, bt := a.SeverityTier(), b.SeverityTier(); at != bt {
			return at < bt
		}
		return a < b
	})

	return report, nil
}

func rowFromDiscrepancy(d recon.Discrepancy) ReportRow {
	row := ReportRow{
		PriorityRank: d.PriorityRank,
		Kind:         d.Kind.String(),
		VendorID:     d.Pair.VendorID(),
		VendorName:   d.Pair.VendorName(),
		DocumentRef:  d.Pair.DocumentRef(),
		Delta:        d.Delta,
		AgeDays:      d.AgeDays,
		IsNew:        d.IsNew,
	}
	if d.Pair.Payables != nil {
		amount := d.Pair.Payables.Amount
		row.PayablesAmount = &amount
	}
	if d.Pair.Ledger != nil {
		amount := d.Pair.Ledger.Amount
		row.LedgerAmount = &amount
	}
	return row
}
