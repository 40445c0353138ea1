package recon

import (
	"time"
)

// RunTrigger decides whether a reconciliation run should execute at a given
// instant. Calendar logic lives outside the core; the pipeline only consults
// this interface.
type RunTrigger interface {
	ShouldRun(now time.Time) bool
}

// AlwaysRun is a trigger that never declines. Useful for manual invocations
// and tests.
type AlwaysRun struct{}

// ShouldRun implements RunTrigger.
func (AlwaysRun) ShouldRun(time.Time) bool { return true }
