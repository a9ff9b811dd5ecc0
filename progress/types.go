/*
Package progress provides the BOQ/KPI reconciliation and derivation engine.

PURPOSE:
  BOQ activities (planned scope per project/zone) and KPI records (daily
  planned/actual quantities) are entered independently and share no key.
  This package infers which KPI records belong to which activity and derives
  the progress figures a report shows for each activity.

KEY CONCEPTS IN THIS FILE (types.go):
  - Activity:  A BOQ line, the authoritative total scope of a piece of work
  - KPIRecord: One day's logged planned or actual quantity
  - Project:   Reference data (codes, start date) used as a date fallback
  - MatchKey:  Normalized identity; ingest derives ids for id-less rows from it
  - Derived:   The recomputed fields for one activity

PIPELINE:
  Zone Normalizer -> Key Matcher -> {Date Resolver, Quantity Aggregator}
    -> Progress & Status Classifier -> Productivity Planner

  Every call recomputes from the raw collections. Nothing is cached between
  calls and inputs are never mutated.

DESIGN PRINCIPLES:
  1. Pure: no I/O, no globals, safe to call in any order
  2. Precision: decimal.Decimal for quantities, rates and values
  3. Total: bad input degrades to zeros/defaults, never to an error

SEE ALSO:
  - zone.go:         Zone canonicalization
  - match.go:        KPI-to-activity matching
  - dates.go:        Date parsing and fallback chains
  - aggregate.go:    Capped planned/actual sums
  - classify.go:     Progress percentages and status
  - productivity.go: Daily output rates
  - derive.go:       Per-activity composition
*/
package progress

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT TYPE - Which partition a KPI record belongs to
// =============================================================================

type InputType string

const (
	InputPlanned InputType = "planned"
	InputActual  InputType = "actual"
)

func (t InputType) Valid() bool { return t == InputPlanned || t == InputActual }

// =============================================================================
// BOQ ACTIVITY - Planned unit of work
// =============================================================================

type Activity struct {
	ID string

	// Identity
	ProjectCode     string
	ProjectFullCode string // project code + optional "-<sub>" suffix
	ActivityName    string
	Description     string // free text, used for zone fallback
	ZoneLabel       string

	// Scope
	TotalUnits decimal.Decimal // authoritative ceiling
	Unit       string
	Rate       decimal.Decimal // value per unit, zero when absent
	TotalValue decimal.Decimal

	// Planning
	PlannedStart     Date
	Deadline         Date
	CalendarDuration int // days

	// Explicit actual dates, when the source carries them
	ActualStart Date
	ActualEnd   Date

	// Raw values of legacy date fields, in priority order
	LegacyStartDates []string
	LegacyEndDates   []string
}

// =============================================================================
// KPI RECORD - One day's logged quantity
// =============================================================================

type KPIRecord struct {
	ID string

	ProjectCode     string
	ProjectFullCode string
	ActivityName    string
	Description     string
	ZoneLabel       string

	InputType InputType
	Quantity  decimal.Decimal
	Value     decimal.Decimal // zero when unset
	Rate      decimal.Decimal // zero when unset
	Date      Date
}

// =============================================================================
// PROJECT - Reference data
// =============================================================================

type Project struct {
	Code      string
	FullCode  string
	Name      string
	Type      string
	StartDate Date
}

// =============================================================================
// MATCH KEY - Normalized identity
// =============================================================================
//
// Two rows with the same key name the same work. Matching applies the looser
// zone and sub-code rules on top; the key itself is what content-derived
// record ids are built from.

type MatchKey struct {
	Project  string
	Activity string
	Zone     string
}

// ActivityKey returns the normalized identity of an activity.
func ActivityKey(a Activity) MatchKey {
	return MatchKey{
		Project:  projectIdentity(a.ProjectFullCode, a.ProjectCode),
		Activity: normalizeName(a.ActivityName),
		Zone:     EffectiveZone(a.ZoneLabel, a.Description, a.ProjectFullCode, a.ProjectCode),
	}
}

// KPIKey returns the normalized identity of a KPI record.
func KPIKey(k KPIRecord) MatchKey {
	return MatchKey{
		Project:  projectIdentity(k.ProjectFullCode, k.ProjectCode),
		Activity: normalizeName(k.ActivityName),
		Zone:     EffectiveZone(k.ZoneLabel, k.Description, k.ProjectFullCode, k.ProjectCode),
	}
}

// =============================================================================
// DERIVED - Recomputed fields for one activity
// =============================================================================

type Derived struct {
	ActivityID string

	Quantities Quantities
	Progress   Progress

	Productivity      Productivity
	TotalDurationDays int
	RemainingDays     int

	PlannedStartDate Date
	PlannedEndDate   Date
	ActualStartDate  Date
	ActualEndDate    Date

	MatchedRecords int
	Warnings       []string
}
