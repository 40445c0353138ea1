package recon

import (
	"github.com/shopspring/decimal"
)

// Params bundles the engine configuration. Every threshold is an explicit
// input; nothing here is baked into component logic.
type Params struct {
	// MaterialityThreshold is the minimum absolute amount delta treated as a
	// reportable amount mismatch.
	MaterialityThreshold decimal.Decimal

	// AmountTolerance is the maximum absolute amount delta the fuzzy pass
	// accepts when pairing same-vendor entries (rounding and tax
	// adjustments).
	AmountTolerance decimal.Decimal

	// DateWindowDays is the maximum date distance the fuzzy pass accepts.
	DateWindowDays int

	// IncludeCleanMatches controls whether kind=None results are emitted.
	IncludeCleanMatches bool

	// DateLayouts are the accepted date formats, in Go reference-time
	// notation.
	DateLayouts []string

	// Concurrency bounds the worker pool normalizing rows. Values below 1
	// mean sequential.
	Concurrency int
}

// DefaultParams returns the documented default configuration: materiality of
// 10.00 and a fuzzy tolerance of 0.05 within a five-day window, Brazilian
// day-first dates.
func DefaultParams() Params {
	return Params{
		MaterialityThreshold: decimal.NewFromFloat(10.00),
		AmountTolerance:      decimal.NewFromFloat(0.05),
		DateWindowDays:       5,
		IncludeCleanMatches:  false,
		DateLayouts:          []string{"02/01/2006", "2006-01-02"},
		Concurrency:          4,
	}
}
