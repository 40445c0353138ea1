package recon

import (
	"context"
)

// RunStore is the durable, append-only record of reconciliation runs. A run
// becomes visible to readers only after CommitRun succeeds; a failed commit
// leaves no partial run behind. At most one run may be in progress per store:
// BeginRun fails with shared.ErrRunAlreadyInProgress otherwise.
type RunStore interface {
	// BeginRun registers a new in-progress run and returns its monotonic
	// identifier.
	BeginRun(ctx context.Context) (int64, error)

	// CommitRun atomically persists the run's full output and marks it
	// committed.
	CommitRun(ctx context.Context, runID int64, entries []LedgerEntry, pairs []MatchedPair, discrepancies []Discrepancy) error

	// AbandonRun marks an in-progress run as abandoned so a later run can
	// begin. Committed runs are untouched.
	AbandonRun(ctx context.Context, runID int64) error

	// GetRun returns a run's metadata.
	GetRun(ctx context.Context, runID int64) (*RunRecord, error)

	// GetPriorRun returns the most recently committed run, or nil when none
	// exists yet.
	GetPriorRun(ctx context.Context) (*RunRecord, error)

	// ListRuns returns committed runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// ListDiscrepancies returns a committed run's discrepancies ordered by
	// priority rank ascending.
	ListDiscrepancies(ctx context.Context, runID int64) ([]Discrepancy, error)
}
