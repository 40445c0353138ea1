package recon

import (
	"time"
)

// RunStatus tracks a run's lifecycle in the store.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "IN_PROGRESS"
	RunStatusCommitted  RunStatus = "COMMITTED"
	RunStatusAbandoned  RunStatus = "ABANDONED"
)

// IsValid checks if the status is a valid RunStatus
func (s RunStatus) IsValid() bool {
	return s == RunStatusInProgress || s == RunStatusCommitted || s == RunStatusAbandoned
}

// String returns the string representation
func (s RunStatus) String() string {
	return string(s)
}

// RunRecord is the durable metadata of one reconciliation run. A run owns the
// entries, pairs and discrepancies produced in it; they are never shared
// across runs. Immutable once committed.
type RunRecord struct {
	RunID            int64
	ExecutedAt       time.Time
	Status           RunStatus
	EntryCount       int
	DiscrepancyCount int
}

// IsCommitted reports whether the run completed successfully.
func (r *RunRecord) IsCommitted() bool {
	return r.Status == RunStatusCommitted
}
