/*
aggregate.go - Capped planned/actual quantities for one activity

PURPOSE:
  Sums the KPI records that belong to an activity, split by input type,
  "as of" a cutoff day, and bounds the result by the activity's scope.

CUTOFF:
  Records dated after asOf are excluded. The default cutoff is yesterday
  (see DefaultAsOf): today's and future-dated entries are never counted as
  committed progress. Records with no usable date cannot be placed before
  the cutoff and are skipped too.

CAPPING:
  Logged quantities can exceed the scoped total after re-measurement or
  duplicate entry. Whenever TotalUnits > 0:
    Planned = min(PlannedRaw, TotalUnits)
    Actual  = min(ActualRaw, TotalUnits)
  Remaining = max(0, TotalUnits - Actual)

  The raw sums stay available so callers can surface a data-quality warning.

MONETARY VALUE:
  A record's value is its Value field, unless Value equals Quantity (the
  quantity was typed into the value column) or is unset; then it is
  Quantity x rate, where rate comes from the record, else the activity,
  else TotalValue / TotalUnits.

SEE ALSO:
  - match.go:    Which records belong to the activity (strict mode)
  - classify.go: Turns capped quantities into percentages
*/
package progress

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITIES - Aggregation result
// =============================================================================

type Quantities struct {
	// Uncapped sums of matched records up to the cutoff
	PlannedRaw decimal.Decimal
	ActualRaw  decimal.Decimal

	// Capped at TotalUnits
	Planned   decimal.Decimal
	Actual    decimal.Decimal
	Remaining decimal.Decimal

	// Uncapped monetary sums
	PlannedValue decimal.Decimal
	ActualValue  decimal.Decimal

	PlannedRecords int
	ActualRecords  int

	// Distinct calendar days carrying an actual record
	ActualDaysWorked int
}

// PlannedOverScope reports whether planned records exceeded the scope.
func (q Quantities) PlannedOverScope() bool { return q.PlannedRaw.GreaterThan(q.Planned) }

// ActualOverScope reports whether actual records exceeded the scope.
func (q Quantities) ActualOverScope() bool { return q.ActualRaw.GreaterThan(q.Actual) }

// HasPlanned reports whether any planned record was counted.
func (q Quantities) HasPlanned() bool { return q.PlannedRecords > 0 }

// HasActual reports whether any actual record was counted.
func (q Quantities) HasActual() bool { return q.ActualRecords > 0 }

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregate matches kpis to activity in strict mode and sums them as of asOf.
func Aggregate(activity Activity, kpis []KPIRecord, asOf Date) Quantities {
	return aggregateMatched(activity, MatchRecords(activity, kpis, MatchStrict), asOf)
}

// CountedRecords returns the matched records that fall on or before asOf.
func CountedRecords(matched []KPIRecord, asOf Date) []KPIRecord {
	var out []KPIRecord
	for _, k := range matched {
		if counted(k, asOf) {
			out = append(out, k)
		}
	}
	return out
}

func counted(k KPIRecord, asOf Date) bool {
	if !k.InputType.Valid() || k.Date.IsZero() {
		return false
	}
	return asOf.IsZero() || k.Date.BeforeOrEqual(asOf)
}

func aggregateMatched(activity Activity, matched []KPIRecord, asOf Date) Quantities {
	q := Quantities{
		PlannedRaw:   decimal.Zero,
		ActualRaw:    decimal.Zero,
		PlannedValue: decimal.Zero,
		ActualValue:  decimal.Zero,
	}
	actualDays := make(map[Date]bool)

	for _, k := range matched {
		if !counted(k, asOf) {
			continue
		}
		value := RecordValue(k, activity)
		switch k.InputType {
		case InputPlanned:
			q.PlannedRaw = q.PlannedRaw.Add(k.Quantity)
			q.PlannedValue = q.PlannedValue.Add(value)
			q.PlannedRecords++
		case InputActual:
			q.ActualRaw = q.ActualRaw.Add(k.Quantity)
			q.ActualValue = q.ActualValue.Add(value)
			q.ActualRecords++
			actualDays[k.Date] = true
		}
	}
	q.ActualDaysWorked = len(actualDays)

	q.Planned = CapQuantity(q.PlannedRaw, activity.TotalUnits)
	q.Actual = CapQuantity(q.ActualRaw, activity.TotalUnits)
	q.Remaining = decimal.Max(decimal.Zero, activity.TotalUnits.Sub(q.Actual))
	return q
}

// CapQuantity bounds sum by total when total > 0; otherwise sum is returned.
func CapQuantity(sum, total decimal.Decimal) decimal.Decimal {
	if total.IsPositive() && sum.GreaterThan(total) {
		return total
	}
	return sum
}

// =============================================================================
// RATE AND VALUE
// =============================================================================

// ActivityRate is the activity's value per unit: its explicit rate, else
// TotalValue / TotalUnits, else zero.
func ActivityRate(a Activity) decimal.Decimal {
	if a.Rate.IsPositive() {
		return a.Rate
	}
	if a.TotalUnits.IsPositive() {
		return a.TotalValue.Div(a.TotalUnits)
	}
	return decimal.Zero
}

// ResolveRate picks the rate for a record: the record's own, then the
// activity's.
func ResolveRate(k KPIRecord, a Activity) decimal.Decimal {
	if k.Rate.IsPositive() {
		return k.Rate
	}
	return ActivityRate(a)
}

// RecordValue returns the monetary value of a record.
func RecordValue(k KPIRecord, a Activity) decimal.Decimal {
	if !k.Value.IsZero() && !k.Value.Equal(k.Quantity) {
		return k.Value
	}
	return k.Quantity.Mul(ResolveRate(k, a))
}
