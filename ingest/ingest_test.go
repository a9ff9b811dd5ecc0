package ingest_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/progress-engine/ingest"
	"github.com/warp/progress-engine/progress"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// =============================================================================
// ACTIVITY PARSING
// =============================================================================

func TestParseActivity_AliasesAndCoercion(t *testing.T) {
	// GIVEN: A row exported with spreadsheet-style headers
	r := ingest.Record{
		"ID":                "boq-7",
		"Project Code":      "P5066",
		"Project-Full-Code": "P5066-2",
		"Activity":          "Excavation",
		"Zone Name":         "Zone 2",
		"Total Quantity":    "1,250.5",
		"UOM":               "m3",
		"Unit Rate":         json.Number("50"),
		"Total Value":       62525.0,
		"Planned Start":     "04/01/2025",
		"Deadline":          "2025-04-30T00:00:00Z",
		"Duration":          "29",
		"Commencement Date": "2025-03-15",
	}

	// WHEN: Parsing
	a, err := ingest.ParseActivity(r)

	// THEN: Every field lands in the strict shape
	require.NoError(t, err)
	assert.Equal(t, "boq-7", a.ID)
	assert.Equal(t, "P5066", a.ProjectCode)
	assert.Equal(t, "P5066-2", a.ProjectFullCode)
	assert.Equal(t, "Excavation", a.ActivityName)
	assert.Equal(t, "Zone 2", a.ZoneLabel)
	assert.True(t, a.TotalUnits.Equal(dec("1250.5")), "total units=%s", a.TotalUnits)
	assert.Equal(t, "m3", a.Unit)
	assert.True(t, a.Rate.Equal(dec("50")))
	assert.True(t, a.TotalValue.Equal(dec("62525")))
	assert.Equal(t, "2025-04-01", a.PlannedStart.String())
	assert.Equal(t, "2025-04-30", a.Deadline.String())
	assert.Equal(t, 29, a.CalendarDuration)
	assert.Equal(t, []string{"2025-03-15"}, a.LegacyStartDates)
}

func TestParseActivity_DerivesBaseCodeAndID(t *testing.T) {
	a, err := ingest.ParseActivity(ingest.Record{
		"project_full_code": "P5066-12",
		"activity_name":     "Backfilling",
	})

	require.NoError(t, err)
	assert.Equal(t, "P5066", a.ProjectCode)
	assert.NotEmpty(t, a.ID, "generated id")
	assert.True(t, a.TotalUnits.IsZero())
}

func TestParse_IDlessRowsGetStableIDs(t *testing.T) {
	// GIVEN: Id-less rows, the second spelled differently but naming the same work
	activity := ingest.Record{"project_full_code": "P5066-2", "activity_name": "Excavation", "zone": "Zone 2"}
	respelled := ingest.Record{"Project Full Code": " p5066-2 ", "Activity": "EXCAVATION", "Zone": "zone 2"}
	kpi := ingest.Record{
		"project_full_code": "P5066-2", "activity_name": "Excavation", "zone": "Zone 2",
		"input_type": "actual", "quantity": "8", "date": "2025-04-01",
	}

	// WHEN: Parsing them repeatedly
	a1, err := ingest.ParseActivity(activity)
	require.NoError(t, err)
	a2, err := ingest.ParseActivity(activity)
	require.NoError(t, err)
	a3, err := ingest.ParseActivity(respelled)
	require.NoError(t, err)
	k1, err := ingest.ParseKPI(kpi)
	require.NoError(t, err)
	k2, err := ingest.ParseKPI(kpi)
	require.NoError(t, err)

	other := ingest.Record{}
	for key, v := range kpi {
		other[key] = v
	}
	other["date"] = "2025-04-02"
	k3, err := ingest.ParseKPI(other)
	require.NoError(t, err)

	// THEN: The same content always yields the same id
	assert.Equal(t, a1.ID, a2.ID)
	assert.Equal(t, a1.ID, a3.ID, "normalized codes, names and zones")
	assert.Equal(t, k1.ID, k2.ID)
	assert.NotEqual(t, k1.ID, k3.ID, "another day is another record")
	assert.NotEqual(t, a1.ID, k1.ID)
}

func TestParseActivity_Rejections(t *testing.T) {
	cases := []struct {
		name string
		rec  ingest.Record
		want error
	}{
		{"no name", ingest.Record{"project_code": "P5066"}, ingest.ErrMissingField},
		{"no project", ingest.Record{"activity_name": "Excavation"}, ingest.ErrMissingField},
		{"bad units", ingest.Record{"project_code": "P5066", "activity_name": "Excavation", "total_units": "lots"}, ingest.ErrInvalidField},
		{"negative units", ingest.Record{"project_code": "P5066", "activity_name": "Excavation", "total_units": -5.0}, ingest.ErrNegativeQuantity},
		{"negative duration", ingest.Record{"project_code": "P5066", "activity_name": "Excavation", "duration": "-3"}, ingest.ErrInvalidField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ingest.ParseActivity(tc.rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, ingest.IsClientError(err))

			var fe *ingest.FieldError
			assert.True(t, errors.As(err, &fe))
			assert.Equal(t, "activity", fe.Kind)
		})
	}
}

// =============================================================================
// KPI PARSING
// =============================================================================

func TestParseKPI_InputTypeSpellings(t *testing.T) {
	for raw, want := range map[string]progress.InputType{
		"Planned":  progress.InputPlanned,
		"target":   progress.InputPlanned,
		" ACTUAL ": progress.InputActual,
		"done":     progress.InputActual,
		"achieved": progress.InputActual,
	} {
		got, ok := ingest.ParseInputType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ingest.ParseInputType("forecast")
	assert.False(t, ok)
}

func TestParseKPI_DateFallbackChain(t *testing.T) {
	// GIVEN: The primary date field is garbage, a later alias is usable
	k, err := ingest.ParseKPI(ingest.Record{
		"project":    "P5066-2",
		"activity":   "Excavation",
		"input_type": "actual",
		"qty":        "8",
		"date":       "n/a",
		"entry_date": "04/05/2025",
	})

	require.NoError(t, err)
	assert.Equal(t, "2025-04-05", k.Date.String())
	assert.Equal(t, progress.InputActual, k.InputType)
	assert.True(t, k.Quantity.Equal(dec("8")))
	assert.Equal(t, "P5066-2", k.ProjectCode, "a lone code is kept as given")
}

func TestParseKPI_UndatedRecordAccepted(t *testing.T) {
	k, err := ingest.ParseKPI(ingest.Record{
		"project_code": "P5066", "activity_name": "Excavation", "type": "planned", "quantity": 3,
	})

	require.NoError(t, err)
	assert.True(t, k.Date.IsZero())
	assert.True(t, k.Quantity.Equal(dec("3")))
}

func TestParseKPI_Rejections(t *testing.T) {
	base := func() ingest.Record {
		return ingest.Record{"project_code": "P5066", "activity_name": "Excavation", "input_type": "actual", "quantity": "1"}
	}

	r := base()
	delete(r, "input_type")
	_, err := ingest.ParseKPI(r)
	assert.ErrorIs(t, err, ingest.ErrMissingField)

	r = base()
	r["input_type"] = "forecast"
	_, err = ingest.ParseKPI(r)
	assert.ErrorIs(t, err, ingest.ErrInvalidField)

	r = base()
	delete(r, "quantity")
	_, err = ingest.ParseKPI(r)
	assert.ErrorIs(t, err, ingest.ErrMissingField)

	r = base()
	r["quantity"] = "-2"
	_, err = ingest.ParseKPI(r)
	assert.ErrorIs(t, err, ingest.ErrNegativeQuantity)
}

func TestParseKPIs_BatchSkipsBadRows(t *testing.T) {
	records := []ingest.Record{
		{"id": "k1", "project_code": "P5066", "activity_name": "Excavation", "input_type": "actual", "quantity": "1"},
		{"id": "k2", "project_code": "P5066", "activity_name": "Excavation", "input_type": "???", "quantity": "1"},
		{"id": "k3", "project_code": "P5066", "activity_name": "Excavation", "input_type": "planned", "quantity": "2"},
	}

	kpis, errs := ingest.ParseKPIs(records)

	require.Len(t, kpis, 2)
	assert.Equal(t, "k1", kpis[0].ID)
	assert.Equal(t, "k3", kpis[1].ID)
	require.Len(t, errs, 1)

	var re *ingest.RecordError
	require.True(t, errors.As(errs[0], &re))
	assert.Equal(t, 1, re.Index)
	assert.Equal(t, "k2", re.ID)
	assert.ErrorIs(t, errs[0], ingest.ErrInvalidField)
}

// =============================================================================
// PAYLOADS AND FILES
// =============================================================================

func TestDecodeRecords(t *testing.T) {
	recs, err := ingest.DecodeRecords(strings.NewReader(`[{"quantity": 12.345678901234567890}, {"quantity": "3"}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, json.Number("12.345678901234567890"), recs[0]["quantity"], "numbers keep full precision")

	recs, err = ingest.DecodeRecords(strings.NewReader(`{"quantity": 1}`))
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = ingest.DecodeRecords(strings.NewReader("  "))
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = ingest.DecodeRecords(strings.NewReader(`[1, 2]`))
	assert.ErrorIs(t, err, ingest.ErrDecode)
}

func TestLoadDataset(t *testing.T) {
	// GIVEN: A dataset file with one bad KPI row
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"projects": [{"code": "P5066", "full_code": "P5066-2", "start_date": "2025-01-15"}],
		"activities": [{"id": "a1", "project_full_code": "P5066-2", "activity_name": "Excavation", "total_units": 100}],
		"kpis": [
			{"id": "k1", "project_full_code": "P5066-2", "activity_name": "Excavation", "input_type": "actual", "quantity": 8, "date": "2025-04-01"},
			{"id": "k2", "project_full_code": "P5066-2", "activity_name": "Excavation", "quantity": 8}
		]
	}`), 0o644))

	// WHEN: Loading
	ds, err := ingest.LoadDataset(path)

	// THEN: Good rows parse, the bad one is reported
	require.NoError(t, err)
	assert.Len(t, ds.Projects, 1)
	assert.Equal(t, "2025-01-15", ds.Projects[0].StartDate.String())
	assert.Len(t, ds.Activities, 1)
	assert.Len(t, ds.KPIs, 1)
	require.Len(t, ds.Skipped, 1)
	assert.Contains(t, ds.Skipped[0].Error(), "kpis: record 1 (k2)")
}

func TestLoadDataset_MissingFile(t *testing.T) {
	_, err := ingest.LoadDataset(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseRateTable(t *testing.T) {
	rt, err := ingest.ParseRateTable([]byte(`
projects:
  - code: P5066
    full_code: P5066-2
    type: pipeline
    start_date: 2025-01-15
  - full_code: P7000-1
rates:
  - activity: Excavation
    rate: 50
  - project: P5066-2
    activity: Excavation
    rate: "55.25"
`))

	require.NoError(t, err)
	require.Len(t, rt.Projects, 2)
	assert.Equal(t, "2025-01-15", rt.Projects[0].StartDate.String())
	assert.Equal(t, "P7000", rt.Projects[1].Code)
	require.Len(t, rt.Rates, 2)
	assert.True(t, rt.Rates[1].Rate.Equal(dec("55.25")))

	ref := rt.Reference()
	rate, ok := ref.Rate("P5066-2", "excavation")
	assert.True(t, ok)
	assert.True(t, rate.Equal(dec("55.25")))
	assert.Equal(t, "pipeline", ref.ProjectType("P5066-2", ""))
}

func TestParseRateTable_UnknownKeyRejected(t *testing.T) {
	_, err := ingest.ParseRateTable([]byte("rates:\n  - activty: Excavation\n    rate: 5\n"))
	assert.Error(t, err)
}

func TestParseRateTable_Empty(t *testing.T) {
	rt, err := ingest.ParseRateTable(nil)
	require.NoError(t, err)
	assert.Empty(t, rt.Rates)
}
