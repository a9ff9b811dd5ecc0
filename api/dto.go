/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Complex response wrappers

ENCODING:
  Quantities, values and percentages are decimals encoded as JSON strings
  ("12.5") so clients never round them. Dates are YYYY-MM-DD and omitted
  when unknown.

REQUEST BODIES:
  POST bodies are not typed here. They are loose JSON arrays parsed by the
  ingest package so spreadsheet-style field names are accepted.

SEE ALSO:
  - handlers.go: Uses these types
  - ingest/parse.go: Accepted field aliases
*/
package api

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/warp/progress-engine/ingest"
	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// PROJECTS
// =============================================================================

// ProjectDTO represents a project in API responses.
type ProjectDTO struct {
	Code      string `json:"code"`
	FullCode  string `json:"full_code,omitempty"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"type,omitempty"`
	StartDate string `json:"start_date,omitempty"`
}

// SummaryDTO is the value-weighted roll-up of one project.
type SummaryDTO struct {
	ProjectCode  string          `json:"project_code"`
	Activities   int             `json:"activities"`
	TotalValue   decimal.Decimal `json:"total_value"`
	PlannedValue decimal.Decimal `json:"planned_value"`
	ActualValue  decimal.Decimal `json:"actual_value"`
	PlannedPct   decimal.Decimal `json:"planned_pct"`
	ActualPct    decimal.Decimal `json:"actual_pct"`
	Status       string          `json:"status"`
	StatusCounts map[string]int  `json:"status_counts"`
	Warnings     int             `json:"warnings"`
	AsOf         string          `json:"as_of"`
}

// =============================================================================
// ACTIVITIES
// =============================================================================

// ActivityDTO is a BOQ line with its derived fields.
type ActivityDTO struct {
	ID               string          `json:"id"`
	ProjectCode      string          `json:"project_code"`
	ProjectFullCode  string          `json:"project_full_code,omitempty"`
	ActivityName     string          `json:"activity_name"`
	Description      string          `json:"description,omitempty"`
	ZoneLabel        string          `json:"zone,omitempty"`
	TotalUnits       decimal.Decimal `json:"total_units"`
	Unit             string          `json:"unit,omitempty"`
	Rate             decimal.Decimal `json:"rate"`
	TotalValue       decimal.Decimal `json:"total_value"`
	PlannedStart     string          `json:"planned_start,omitempty"`
	Deadline         string          `json:"deadline,omitempty"`
	CalendarDuration int             `json:"calendar_duration,omitempty"`
	Derived          *DerivedDTO     `json:"derived,omitempty"`
}

// DerivedDTO carries the recomputed fields of an activity.
type DerivedDTO struct {
	PlannedQuantity   decimal.Decimal `json:"planned_quantity"`
	ActualQuantity    decimal.Decimal `json:"actual_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	PlannedRaw        decimal.Decimal `json:"planned_raw"`
	ActualRaw         decimal.Decimal `json:"actual_raw"`
	PlannedValue      decimal.Decimal `json:"planned_value"`
	ActualValue       decimal.Decimal `json:"actual_value"`

	PlannedPct decimal.Decimal `json:"planned_pct"`
	ActualPct  decimal.Decimal `json:"actual_pct"`
	Status     string          `json:"status"`

	Productivity ProductivityDTO `json:"productivity"`

	TotalDurationDays int `json:"total_duration_days"`
	RemainingDays     int `json:"remaining_days"`

	PlannedStartDate string `json:"planned_start_date,omitempty"`
	PlannedEndDate   string `json:"planned_end_date,omitempty"`
	ActualStartDate  string `json:"actual_start_date,omitempty"`
	ActualEndDate    string `json:"actual_end_date,omitempty"`

	MatchedRecords int      `json:"matched_records"`
	Warnings       []string `json:"warnings"`
}

// ProductivityDTO carries the per-day rates.
type ProductivityDTO struct {
	Natural  decimal.Decimal `json:"natural_per_day"`
	Actual   decimal.Decimal `json:"actual_per_day"`
	Required decimal.Decimal `json:"required_per_day"`
	Reported decimal.Decimal `json:"reported_per_day"`
	Badge    string          `json:"badge"`
}

// =============================================================================
// KPI RECORDS
// =============================================================================

// KPIRecordDTO represents one logged quantity.
type KPIRecordDTO struct {
	ID              string          `json:"id"`
	ProjectCode     string          `json:"project_code"`
	ProjectFullCode string          `json:"project_full_code,omitempty"`
	ActivityName    string          `json:"activity_name"`
	Description     string          `json:"description,omitempty"`
	ZoneLabel       string          `json:"zone,omitempty"`
	InputType       string          `json:"input_type"`
	Quantity        decimal.Decimal `json:"quantity"`
	Value           decimal.Decimal `json:"value"`
	Date            string          `json:"date,omitempty"`

	// Counted is false when the record is undated or after the cutoff.
	Counted *bool `json:"counted,omitempty"`
}

// =============================================================================
// INGESTION
// =============================================================================

// IngestResponse reports the outcome of a POSTed batch.
type IngestResponse struct {
	Received   int          `json:"received"`
	Stored     int          `json:"stored"`
	Duplicates int          `json:"duplicates,omitempty"`
	Skipped    []SkippedDTO `json:"skipped"`
}

// SkippedDTO explains why a row was rejected.
type SkippedDTO struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toProjectDTO(p progress.Project) ProjectDTO {
	return ProjectDTO{
		Code:      p.Code,
		FullCode:  p.FullCode,
		Name:      p.Name,
		Type:      p.Type,
		StartDate: p.StartDate.String(),
	}
}

// toActivityDTO reports the rate derivation classified with, which may come
// from TotalValue/TotalUnits or the reference table.
func toActivityDTO(a progress.Activity, d *progress.Derived, ref *progress.Reference) ActivityDTO {
	dto := ActivityDTO{
		ID:               a.ID,
		ProjectCode:      a.ProjectCode,
		ProjectFullCode:  a.ProjectFullCode,
		ActivityName:     a.ActivityName,
		Description:      a.Description,
		ZoneLabel:        a.ZoneLabel,
		TotalUnits:       a.TotalUnits,
		Unit:             a.Unit,
		Rate:             progress.EffectiveRate(a, ref),
		TotalValue:       a.TotalValue,
		PlannedStart:     a.PlannedStart.String(),
		Deadline:         a.Deadline.String(),
		CalendarDuration: a.CalendarDuration,
	}
	if d != nil {
		derived := toDerivedDTO(*d)
		dto.Derived = &derived
	}
	return dto
}

func toDerivedDTO(d progress.Derived) DerivedDTO {
	warnings := d.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return DerivedDTO{
		PlannedQuantity:   d.Quantities.Planned,
		ActualQuantity:    d.Quantities.Actual,
		RemainingQuantity: d.Quantities.Remaining,
		PlannedRaw:        d.Quantities.PlannedRaw,
		ActualRaw:         d.Quantities.ActualRaw,
		PlannedValue:      d.Quantities.PlannedValue,
		ActualValue:       d.Quantities.ActualValue,
		PlannedPct:        d.Progress.PlannedPct,
		ActualPct:         d.Progress.ActualPct,
		Status:            string(d.Progress.Status),
		Productivity: ProductivityDTO{
			Natural:  d.Productivity.Natural,
			Actual:   d.Productivity.Actual,
			Required: d.Productivity.Required,
			Reported: d.Productivity.Reported,
			Badge:    string(d.Productivity.Badge),
		},
		TotalDurationDays: d.TotalDurationDays,
		RemainingDays:     d.RemainingDays,
		PlannedStartDate:  d.PlannedStartDate.String(),
		PlannedEndDate:    d.PlannedEndDate.String(),
		ActualStartDate:   d.ActualStartDate.String(),
		ActualEndDate:     d.ActualEndDate.String(),
		MatchedRecords:    d.MatchedRecords,
		Warnings:          warnings,
	}
}

func toKPIRecordDTO(k progress.KPIRecord) KPIRecordDTO {
	return KPIRecordDTO{
		ID:              k.ID,
		ProjectCode:     k.ProjectCode,
		ProjectFullCode: k.ProjectFullCode,
		ActivityName:    k.ActivityName,
		Description:     k.Description,
		ZoneLabel:       k.ZoneLabel,
		InputType:       string(k.InputType),
		Quantity:        k.Quantity,
		Value:           k.Value,
		Date:            k.Date.String(),
	}
}

func toSummaryDTO(s progress.Summary, asOf progress.Date) SummaryDTO {
	counts := make(map[string]int, len(s.StatusCounts))
	for status, n := range s.StatusCounts {
		counts[string(status)] = n
	}
	return SummaryDTO{
		ProjectCode:  s.ProjectCode,
		Activities:   s.Activities,
		TotalValue:   s.TotalValue,
		PlannedValue: s.PlannedValue,
		ActualValue:  s.ActualValue,
		PlannedPct:   s.PlannedPct.Round(2),
		ActualPct:    s.ActualPct.Round(2),
		Status:       string(s.Status),
		StatusCounts: counts,
		Warnings:     s.Warnings,
		AsOf:         asOf.String(),
	}
}

func toSkippedDTOs(errs []error) []SkippedDTO {
	out := make([]SkippedDTO, 0, len(errs))
	for i, err := range errs {
		dto := SkippedDTO{Index: i, Error: err.Error()}
		var re *ingest.RecordError
		if errors.As(err, &re) {
			dto.Index = re.Index
			dto.ID = re.ID
			dto.Error = re.Err.Error()
		}
		out = append(out, dto)
	}
	return out
}
