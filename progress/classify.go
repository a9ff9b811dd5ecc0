package progress

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Activity state
// =============================================================================

type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusDelayed    Status = "Delayed"
	StatusOnTrack    Status = "On Track"
	StatusAhead      Status = "Ahead"
	StatusCompleted  Status = "Completed"
)

// StatusTolerancePct is the band, in percentage points, around equal planned
// and actual progress that still counts as on track.
const StatusTolerancePct = 5

var (
	hundred   = decimal.NewFromInt(100)
	tolerance = decimal.NewFromInt(StatusTolerancePct)
)

// =============================================================================
// CLASSIFIER
// =============================================================================

type Progress struct {
	PlannedPct decimal.Decimal
	ActualPct  decimal.Decimal
	Status     Status
}

// Classify converts capped quantities into progress percentages and a status.
//
//	pct = min(100, quantity x rate / totalValue x 100), 0 when totalValue is 0
func Classify(plannedCapped, actualCapped, rate, totalValue decimal.Decimal) Progress {
	planned := ProgressPct(plannedCapped, rate, totalValue)
	actual := ProgressPct(actualCapped, rate, totalValue)
	return Progress{
		PlannedPct: planned,
		ActualPct:  actual,
		Status:     ClassifyStatus(planned, actual),
	}
}

// ProgressPct is the share of totalValue covered by quantity at rate.
func ProgressPct(quantity, rate, totalValue decimal.Decimal) decimal.Decimal {
	if !totalValue.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	pct := quantity.Mul(rate).Div(totalValue).Mul(hundred)
	return decimal.Max(decimal.Zero, decimal.Min(hundred, pct))
}

// ClassifyStatus evaluates the status rules in order; the first match wins.
//  1. planned > 0, actual = 0                        -> Delayed
//  2. actual = 0                                     -> Not Started
//  3. actual >= 100, or planned >= 100 and actual >= planned -> Completed
//  4. planned - actual > tolerance                   -> Delayed
//  5. actual - planned > tolerance                   -> Ahead
//  6. otherwise                                      -> On Track
func ClassifyStatus(plannedPct, actualPct decimal.Decimal) Status {
	switch {
	case plannedPct.IsPositive() && actualPct.IsZero():
		return StatusDelayed
	case actualPct.IsZero():
		return StatusNotStarted
	case actualPct.GreaterThanOrEqual(hundred),
		plannedPct.GreaterThanOrEqual(hundred) && actualPct.GreaterThanOrEqual(plannedPct):
		return StatusCompleted
	case plannedPct.Sub(actualPct).GreaterThan(tolerance):
		return StatusDelayed
	case actualPct.Sub(plannedPct).GreaterThan(tolerance):
		return StatusAhead
	default:
		return StatusOnTrack
	}
}
