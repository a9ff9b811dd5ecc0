package progress

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OPTIONS
// =============================================================================

type Options struct {
	// Today anchors remaining-days arithmetic. Defaults to Today().
	Today Date

	// AsOf is the aggregation cutoff. Defaults to DefaultAsOf(Today).
	AsOf Date
}

func (o Options) withDefaults() Options {
	if o.Today.IsZero() {
		o.Today = Today()
	}
	if o.AsOf.IsZero() {
		o.AsOf = DefaultAsOf(o.Today)
	}
	return o
}

// Warnings attached to a derivation.
const (
	WarnPlannedOverScope = "planned quantity exceeds total units and was capped"
	WarnActualOverScope  = "actual quantity exceeds total units and was capped"
	WarnNoRate           = "no rate available; monetary progress is zero"
	WarnNoTotalValue     = "total value is zero; progress percentages are zero"
	WarnNoPlannedDates   = "planned start or end could not be resolved"
	WarnNoMatches        = "no KPI records matched this activity"
)

// =============================================================================
// DERIVE - Full pipeline for one activity
// =============================================================================

// Derive recomputes every derived field of activity from kpis.
func Derive(activity Activity, kpis []KPIRecord, ref *Reference, opts Options) Derived {
	return deriveMatched(activity, MatchRecords(activity, kpis, MatchStrict), ref, opts.withDefaults())
}

// DeriveAll derives every activity against one shared index. The output is
// aligned with activities.
func DeriveAll(activities []Activity, kpis []KPIRecord, ref *Reference, opts Options) []Derived {
	opts = opts.withDefaults()
	idx := NewIndex(kpis)
	out := make([]Derived, len(activities))
	for i, a := range activities {
		out[i] = deriveMatched(a, idx.Match(a, MatchStrict), ref, opts)
	}
	return out
}

func deriveMatched(activity Activity, matched []KPIRecord, ref *Reference, opts Options) Derived {
	a := withReferenceRate(activity, ref)

	q := aggregateMatched(a, matched, opts.AsOf)
	rate := ActivityRate(a)
	prog := Classify(q.Planned, q.Actual, rate, a.TotalValue)

	ps := plannedStart(a, matched, ref)
	pe := plannedEnd(a, matched, ref)
	totalDuration := TotalDuration(ps, pe, a.CalendarDuration)
	remainingDays := ResolveRemainingDays(opts.Today, a.Deadline, totalDuration, a.CalendarDuration, q.Remaining)

	d := Derived{
		ActivityID: a.ID,
		Quantities: q,
		Progress:   prog,
		Productivity: Plan(ProductivityInput{
			PlannedCapped:     q.Planned,
			ActualCapped:      q.Actual,
			Remaining:         q.Remaining,
			TotalUnits:        a.TotalUnits,
			HasPlanned:        q.HasPlanned(),
			TotalDurationDays: totalDuration,
			RemainingDays:     remainingDays,
			ActualDaysWorked:  q.ActualDaysWorked,
		}),
		TotalDurationDays: totalDuration,
		RemainingDays:     remainingDays,
		PlannedStartDate:  ps,
		PlannedEndDate:    pe,
		ActualStartDate:   actualStart(a, matched),
		ActualEndDate:     actualEnd(a, matched),
		MatchedRecords:    len(matched),
	}

	if q.PlannedOverScope() {
		d.Warnings = append(d.Warnings, WarnPlannedOverScope)
	}
	if q.ActualOverScope() {
		d.Warnings = append(d.Warnings, WarnActualOverScope)
	}
	if !rate.IsPositive() {
		d.Warnings = append(d.Warnings, WarnNoRate)
	}
	if !a.TotalValue.IsPositive() {
		d.Warnings = append(d.Warnings, WarnNoTotalValue)
	}
	if ps.IsZero() || pe.IsZero() {
		d.Warnings = append(d.Warnings, WarnNoPlannedDates)
	}
	if len(matched) == 0 {
		d.Warnings = append(d.Warnings, WarnNoMatches)
	}
	return d
}

// withReferenceRate returns a copy of a carrying the reference rate when the
// activity has no rate of its own and none can be derived from its totals.
func withReferenceRate(a Activity, ref *Reference) Activity {
	if ActivityRate(a).IsPositive() {
		return a
	}
	if rate, ok := ref.Rate(projectIdentity(a.ProjectFullCode, a.ProjectCode), a.ActivityName); ok {
		a.Rate = rate
		return a
	}
	if rate, ok := ref.Rate(a.ProjectCode, a.ActivityName); ok {
		a.Rate = rate
	}
	return a
}

// EffectiveRate is the rate Derive classifies with.
func EffectiveRate(a Activity, ref *Reference) decimal.Decimal {
	return ActivityRate(withReferenceRate(a, ref))
}

// =============================================================================
// DATA QUALITY
// =============================================================================

// Unmatched returns the records that belong to no activity in strict mode,
// in input order.
func Unmatched(kpis []KPIRecord, activities []Activity) []KPIRecord {
	idx := NewIndex(kpis)
	claimed := make([]bool, len(kpis))
	for _, a := range activities {
		for _, i := range idx.matchPositions(a, MatchStrict) {
			claimed[i] = true
		}
	}
	var out []KPIRecord
	for i, k := range kpis {
		if !claimed[i] {
			out = append(out, k)
		}
	}
	return out
}

// =============================================================================
// PROJECT SUMMARY - Value-weighted roll-up
// =============================================================================

type Summary struct {
	ProjectCode string
	Activities  int

	TotalValue   decimal.Decimal
	PlannedValue decimal.Decimal // sum of PlannedPct x TotalValue
	ActualValue  decimal.Decimal // sum of ActualPct x TotalValue

	PlannedPct decimal.Decimal
	ActualPct  decimal.Decimal
	Status     Status

	StatusCounts map[Status]int
	Warnings     int
}

// InProject reports whether a belongs to the project identified by code
// (full or base). An empty code selects every activity.
func InProject(a Activity, code string) bool {
	c := normalizeCode(code)
	if c == "" {
		return true
	}
	return c == normalizeCode(a.ProjectFullCode) || c == normalizeCode(a.ProjectCode)
}

// Summarize rolls derived activities of one project into value-weighted
// percentages. derived must be aligned with activities.
func Summarize(projectCode string, activities []Activity, derived []Derived) (Summary, error) {
	if len(activities) != len(derived) {
		return Summary{}, fmt.Errorf("summarize: %d activities but %d derivations", len(activities), len(derived))
	}
	s := Summary{
		ProjectCode:  projectCode,
		TotalValue:   decimal.Zero,
		PlannedValue: decimal.Zero,
		ActualValue:  decimal.Zero,
		PlannedPct:   decimal.Zero,
		ActualPct:    decimal.Zero,
		StatusCounts: make(map[Status]int),
	}
	for i, a := range activities {
		if !InProject(a, projectCode) {
			continue
		}
		d := derived[i]
		s.Activities++
		s.StatusCounts[d.Progress.Status]++
		s.Warnings += len(d.Warnings)
		if !a.TotalValue.IsPositive() {
			continue
		}
		s.TotalValue = s.TotalValue.Add(a.TotalValue)
		s.PlannedValue = s.PlannedValue.Add(a.TotalValue.Mul(d.Progress.PlannedPct).Div(hundred))
		s.ActualValue = s.ActualValue.Add(a.TotalValue.Mul(d.Progress.ActualPct).Div(hundred))
	}
	if s.TotalValue.IsPositive() {
		s.PlannedPct = s.PlannedValue.Div(s.TotalValue).Mul(hundred)
		s.ActualPct = s.ActualValue.Div(s.TotalValue).Mul(hundred)
	}
	s.Status = ClassifyStatus(s.PlannedPct, s.ActualPct)
	return s, nil
}
