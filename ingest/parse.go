/*
Package ingest normalizes loosely shaped records into the engine's strict
types.

PURPOSE:
  Activities, KPI records and projects reach the system from spreadsheets,
  forms and older exports. The same field can appear under several names
  and the same number as text with thousands separators. This package is
  the single place where that variety is resolved, so the engine only ever
  sees progress.Activity, progress.KPIRecord and progress.Project.

FIELD ALIASES:
  Each field has an ordered alias list. The first alias carrying a
  non-empty value wins. Date fields walk their list until one parses.

VALIDATION:
  - Activity: activity name and a project code are required
  - KPI:      activity name, project code, input type and quantity
  - Project:  a code is required
  - Quantities may not be negative
  Records without an id get a name-based UUID derived from their content,
  so re-reading the same row yields the same id.

BATCHES:
  ParseActivities / ParseKPIs / ParseProjects never abort: good records are
  returned, bad ones are reported as *RecordError values.

SEE ALSO:
  - record.go:  Alias lookup and number coercion
  - dataset.go: JSON payloads and dataset files
  - rates.go:   YAML rate tables
*/
package ingest

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// FIELD ALIASES
// =============================================================================

var (
	idFields          = []string{"id", "_id", "uuid"}
	projectCodeFields = []string{"project_code", "project", "project_id", "code"}
	fullCodeFields    = []string{"project_full_code", "full_code", "sub_project_code", "project_sub_code"}
	activityFields    = []string{"activity_name", "activity", "item", "task", "name"}
	descriptionFields = []string{"description", "desc", "details", "remarks"}
	zoneFields        = []string{"zone", "zone_label", "zone_name", "area", "location"}

	totalUnitsFields = []string{"total_units", "total_quantity", "boq_quantity", "quantity", "qty"}
	unitFields       = []string{"unit", "uom", "unit_of_measure"}
	rateFields       = []string{"rate", "unit_rate", "unit_price"}
	totalValueFields = []string{"total_value", "boq_value", "amount", "value"}

	plannedStartFields = []string{"planned_start_date", "planned_start", "start_date"}
	deadlineFields     = []string{"deadline", "planned_end_date", "planned_completion_date", "planned_end", "end_date"}
	durationFields     = []string{"calendar_duration", "duration_days", "duration"}
	actualStartFields  = []string{"actual_start_date", "actual_start"}
	actualEndFields    = []string{"actual_end_date", "actual_end", "actual_completion_date"}
	legacyStartFields  = []string{"start", "begin_date", "commencement_date", "mobilization_date"}
	legacyEndFields    = []string{"finish", "finish_date", "completion_date", "end"}

	kpiIDFields      = []string{"id", "_id", "kpi_id", "record_id", "uuid"}
	inputTypeFields  = []string{"input_type", "type", "kind", "entry_type"}
	kpiQtyFields     = []string{"quantity", "qty", "achieved_quantity", "planned_quantity"}
	kpiValueFields   = []string{"value", "amount", "total_value"}
	kpiDateFields    = []string{"date", "kpi_date", "entry_date", "record_date", "work_date", "reported_at", "created_at"}
	projectNameField = []string{"project_name", "name", "title"}
	projectTypeField = []string{"project_type", "type", "category"}
	projectStartDate = []string{"project_start_date", "start_date", "commencement_date"}
)

// =============================================================================
// ACTIVITY
// =============================================================================

// ParseActivity normalizes one BOQ activity row.
func ParseActivity(r Record) (progress.Activity, error) {
	const kind = "activity"

	a := progress.Activity{
		ID:              r.String(idFields...),
		ProjectCode:     r.String(projectCodeFields...),
		ProjectFullCode: r.String(fullCodeFields...),
		ActivityName:    r.String(activityFields...),
		Description:     r.String(descriptionFields...),
		ZoneLabel:       r.String(zoneFields...),
		Unit:            r.String(unitFields...),
		PlannedStart:    r.Date(plannedStartFields...),
		Deadline:        r.Date(deadlineFields...),
		ActualStart:     r.Date(actualStartFields...),
		ActualEnd:       r.Date(actualEndFields...),

		LegacyStartDates: r.Raw(legacyStartFields...),
		LegacyEndDates:   r.Raw(legacyEndFields...),
	}
	if a.ActivityName == "" {
		return progress.Activity{}, missing(kind, activityFields[0])
	}
	if err := resolveCodes(kind, &a.ProjectCode, &a.ProjectFullCode); err != nil {
		return progress.Activity{}, err
	}

	var err error
	if a.TotalUnits, err = quantity(r, kind, totalUnitsFields); err != nil {
		return progress.Activity{}, err
	}
	if a.Rate, err = quantity(r, kind, rateFields); err != nil {
		return progress.Activity{}, err
	}
	if a.TotalValue, err = quantity(r, kind, totalValueFields); err != nil {
		return progress.Activity{}, err
	}
	duration, _, err := r.Int(durationFields...)
	if err != nil || duration < 0 {
		return progress.Activity{}, invalid(kind, durationFields[0], r.String(durationFields...), err)
	}
	a.CalendarDuration = duration

	if a.ID == "" {
		a.ID = activityContentID(a)
	}
	return a, nil
}

// ParseActivities parses a batch, skipping bad rows.
func ParseActivities(records []Record) ([]progress.Activity, []error) {
	return parseBatch(records, idFields, ParseActivity)
}

// =============================================================================
// KPI RECORD
// =============================================================================

// ParseKPI normalizes one KPI row. A row without a usable date is accepted;
// it is kept in the log but never counted by aggregation.
func ParseKPI(r Record) (progress.KPIRecord, error) {
	const kind = "kpi"

	k := progress.KPIRecord{
		ID:              r.String(kpiIDFields...),
		ProjectCode:     r.String(projectCodeFields...),
		ProjectFullCode: r.String(fullCodeFields...),
		ActivityName:    r.String(activityFields...),
		Description:     r.String(descriptionFields...),
		ZoneLabel:       r.String(zoneFields...),
		Date:            r.Date(kpiDateFields...),
	}
	if k.ActivityName == "" {
		return progress.KPIRecord{}, missing(kind, activityFields[0])
	}
	if err := resolveCodes(kind, &k.ProjectCode, &k.ProjectFullCode); err != nil {
		return progress.KPIRecord{}, err
	}

	raw := r.String(inputTypeFields...)
	if raw == "" {
		return progress.KPIRecord{}, missing(kind, inputTypeFields[0])
	}
	input, ok := ParseInputType(raw)
	if !ok {
		return progress.KPIRecord{}, invalid(kind, inputTypeFields[0], raw, nil)
	}
	k.InputType = input

	qty, present, err := r.Decimal(kpiQtyFields...)
	switch {
	case !present:
		return progress.KPIRecord{}, missing(kind, kpiQtyFields[0])
	case err != nil:
		return progress.KPIRecord{}, invalid(kind, kpiQtyFields[0], r.String(kpiQtyFields...), err)
	case qty.IsNegative():
		return progress.KPIRecord{}, invalid(kind, kpiQtyFields[0], qty.String(), ErrNegativeQuantity)
	}
	k.Quantity = qty

	if k.Value, err = quantity(r, kind, kpiValueFields); err != nil {
		return progress.KPIRecord{}, err
	}
	if k.Rate, err = quantity(r, kind, rateFields); err != nil {
		return progress.KPIRecord{}, err
	}

	if k.ID == "" {
		k.ID = kpiContentID(k)
	}
	return k, nil
}

// ParseKPIs parses a batch, skipping bad rows.
func ParseKPIs(records []Record) ([]progress.KPIRecord, []error) {
	return parseBatch(records, kpiIDFields, ParseKPI)
}

// =============================================================================
// CONTENT IDS
// =============================================================================

// recordNamespace scopes the name-based ids of rows that arrive without one.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("progress-engine/records"))

// activityContentID identifies a BOQ line by its normalized project codes,
// activity name and zone.
func activityContentID(a progress.Activity) string {
	key := progress.ActivityKey(a)
	return contentID("activity",
		strings.ToUpper(strings.TrimSpace(a.ProjectCode)),
		strings.ToUpper(strings.TrimSpace(a.ProjectFullCode)),
		key.Activity, key.Zone)
}

// kpiContentID identifies a KPI row by its identity, input type, date and
// quantity. Two id-less rows equal in all of these are the same row.
func kpiContentID(k progress.KPIRecord) string {
	key := progress.KPIKey(k)
	return contentID("kpi",
		strings.ToUpper(strings.TrimSpace(k.ProjectCode)),
		strings.ToUpper(strings.TrimSpace(k.ProjectFullCode)),
		key.Activity, key.Zone,
		string(k.InputType), k.Date.String(), k.Quantity.String())
}

func contentID(kind string, parts ...string) string {
	name := kind + "\x00" + strings.Join(parts, "\x00")
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// ParseInputType maps the spellings seen in KPI logs to an input type.
func ParseInputType(raw string) (progress.InputType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "planned", "plan", "target", "scheduled", "baseline":
		return progress.InputPlanned, true
	case "actual", "done", "achieved", "completed", "executed":
		return progress.InputActual, true
	default:
		return "", false
	}
}

// =============================================================================
// PROJECT
// =============================================================================

// ParseProject normalizes one project reference row.
func ParseProject(r Record) (progress.Project, error) {
	const kind = "project"

	p := progress.Project{
		Code:      r.String("code", "project_code", "project"),
		FullCode:  r.String(fullCodeFields...),
		Name:      r.String(projectNameField...),
		Type:      r.String(projectTypeField...),
		StartDate: r.Date(projectStartDate...),
	}
	if p.Code == "" && p.FullCode == "" {
		return progress.Project{}, missing(kind, "code")
	}
	if err := resolveCodes(kind, &p.Code, &p.FullCode); err != nil {
		return progress.Project{}, err
	}
	return p, nil
}

// ParseProjects parses a batch, skipping bad rows.
func ParseProjects(records []Record) ([]progress.Project, []error) {
	return parseBatch(records, []string{"code", "project_code"}, ParseProject)
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveCodes requires at least one project code and fills a missing base
// code from the full code ("P5066-2" -> "P5066").
func resolveCodes(kind string, base, full *string) error {
	if *base == "" && *full == "" {
		return missing(kind, projectCodeFields[0])
	}
	if *base == "" {
		*base = BaseCode(*full)
	}
	return nil
}

// BaseCode strips a trailing "-<sub>" from a full project code.
func BaseCode(full string) string {
	full = strings.TrimSpace(full)
	if i := strings.LastIndex(full, "-"); i > 0 {
		return full[:i]
	}
	return full
}

func quantity(r Record, kind string, aliases []string) (decimal.Decimal, error) {
	v, present, err := r.Decimal(aliases...)
	if !present {
		return v, nil
	}
	if err != nil {
		return v, invalid(kind, aliases[0], r.String(aliases...), err)
	}
	if v.IsNegative() {
		return v, invalid(kind, aliases[0], v.String(), ErrNegativeQuantity)
	}
	return v, nil
}

func parseBatch[T any](records []Record, ids []string, parse func(Record) (T, error)) ([]T, []error) {
	var (
		out  []T
		errs []error
	)
	for i, r := range records {
		v, err := parse(r)
		if err != nil {
			errs = append(errs, &RecordError{Index: i, ID: r.String(ids...), Err: err})
			continue
		}
		out = append(out, v)
	}
	return out, errs
}
