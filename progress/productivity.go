/*
productivity.go - Daily output rates for an activity

PURPOSE:
  Computes three quantity-per-day figures:
    Natural:  the pace implied by spreading the planned scope over the
              planned duration
    Actual:   the pace achieved on days that carry actual records
    Required: the pace needed to finish the remaining quantity in time

FLOOR RULE:
  Required never drops below Natural. When the naive remaining/remainingDays
  figure suggests a slower pace, the original pace is still demanded.

  Reported = ceil(max(Natural, Required))

COMPLETED WORK:
  When nothing remains, the reported requirement is 0/day and the badge is
  "completed"; no division happens. Required still equals Natural, so the
  floor holds for every input.
*/
package progress

import (
	"github.com/shopspring/decimal"
)

// DefaultRemainingDays is used when no deadline or duration is known and
// quantity still remains.
const DefaultRemainingDays = 30

// =============================================================================
// BADGE
// =============================================================================

type Badge string

const (
	BadgeCompleted Badge = "completed"
	BadgeOnPace    Badge = "on_pace"
	BadgeBehind    Badge = "behind"
)

// =============================================================================
// PLANNER
// =============================================================================

type ProductivityInput struct {
	PlannedCapped decimal.Decimal
	ActualCapped  decimal.Decimal
	Remaining     decimal.Decimal
	TotalUnits    decimal.Decimal

	// HasPlanned is false when no planned record was counted; Natural then
	// spreads TotalUnits instead of the planned sum.
	HasPlanned bool

	TotalDurationDays int
	RemainingDays     int
	ActualDaysWorked  int
}

type Productivity struct {
	Natural  decimal.Decimal
	Actual   decimal.Decimal
	Required decimal.Decimal
	Reported decimal.Decimal
	Badge    Badge
}

// Plan computes the productivity figures. Every division is guarded; a zero
// divisor yields a zero rate.
func Plan(in ProductivityInput) Productivity {
	scope := in.PlannedCapped
	if !in.HasPlanned {
		scope = in.TotalUnits
	}
	natural := perDay(scope, in.TotalDurationDays)

	actual := natural
	if in.ActualDaysWorked > 0 {
		actual = perDay(in.ActualCapped, in.ActualDaysWorked)
	}

	if !in.Remaining.IsPositive() {
		return Productivity{
			Natural:  natural,
			Actual:   actual,
			Required: natural,
			Reported: decimal.Zero,
			Badge:    BadgeCompleted,
		}
	}

	required := decimal.Max(natural, perDay(in.Remaining, in.RemainingDays))
	p := Productivity{
		Natural:  natural,
		Actual:   actual,
		Required: required,
		Reported: decimal.Max(natural, required).Ceil(),
		Badge:    BadgeBehind,
	}
	if actual.GreaterThanOrEqual(required) {
		p.Badge = BadgeOnPace
	}
	return p
}

func perDay(quantity decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return quantity.Div(decimal.NewFromInt(int64(days)))
}

// ResolveRemainingDays walks the remaining-days chain:
//  1. days from today until the deadline, at least 1
//  2. the planned total duration
//  3. the activity's calendar duration
//  4. DefaultRemainingDays
//
// Returns 0 when nothing remains.
func ResolveRemainingDays(today, deadline Date, totalDurationDays, calendarDuration int, remaining decimal.Decimal) int {
	if !remaining.IsPositive() {
		return 0
	}
	if !today.IsZero() && !deadline.IsZero() {
		return max(1, DaysBetween(today, deadline))
	}
	if totalDurationDays > 0 {
		return totalDurationDays
	}
	if calendarDuration > 0 {
		return calendarDuration
	}
	return DefaultRemainingDays
}

// TotalDuration is the planned duration in days: the span between planned
// start and end, falling back to the calendar duration.
func TotalDuration(plannedStart, plannedEnd Date, calendarDuration int) int {
	if d := DaysBetween(plannedStart, plannedEnd); d > 0 {
		return d
	}
	if calendarDuration > 0 {
		return calendarDuration
	}
	return 0
}
