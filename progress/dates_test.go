package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// DATE PARSING TESTS
// =============================================================================

func TestResolveDate_RoundTripFormats(t *testing.T) {
	// GIVEN: The same calendar day in three encodings
	// THEN: All resolve to 2025-04-07
	want := progress.NewDate(2025, time.April, 7)

	assert.Equal(t, want, progress.ResolveDate("2025-04-07T00:00:00Z"))
	assert.Equal(t, want, progress.ResolveDate("04/07/2025"))
	assert.Equal(t, want, progress.ResolveDate("2025-04-07"))
	assert.Equal(t, "2025-04-07", progress.ResolveDate("2025-04-07T23:59:59+05:00").String())
}

func TestResolveDate_NoTimezoneShift(t *testing.T) {
	// GIVEN: A late-evening timestamp in a zone east of UTC
	// THEN: The calendar day as written is kept
	ts := time.Date(2025, time.April, 7, 23, 30, 0, 0, time.FixedZone("UTC+10", 10*3600))
	assert.Equal(t, progress.NewDate(2025, time.April, 7), progress.ResolveDate(ts))
	assert.Equal(t, progress.NewDate(2025, time.April, 7), progress.ResolveDate(&ts))
}

func TestResolveDate_Unparseable(t *testing.T) {
	var nilTime *time.Time
	for _, in := range []any{nil, "", "   ", "not a date", "2025-02-30", "13/01/2025", 42, nilTime} {
		assert.True(t, progress.ResolveDate(in).IsZero(), "input=%v", in)
	}
}

func TestResolveDate_LastResortLayouts(t *testing.T) {
	want := progress.NewDate(2025, time.April, 7)
	assert.Equal(t, want, progress.ResolveDate("2025/04/07"))
	assert.Equal(t, want, progress.ResolveDate("07-Apr-2025"))
	assert.Equal(t, want, progress.ResolveDate("April 7, 2025"))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 29, progress.DaysBetween(day("2025-04-01"), day("2025-04-30")))
	assert.Equal(t, -1, progress.DaysBetween(day("2025-04-02"), day("2025-04-01")))
	assert.Equal(t, 0, progress.DaysBetween(progress.Date{}, day("2025-04-01")))
	// crosses month and leap day
	assert.Equal(t, 2, progress.DaysBetween(day("2024-02-28"), day("2024-03-01")))
}

// =============================================================================
// DATE CHAIN TESTS
// =============================================================================

func TestResolvePlannedStart_Chain(t *testing.T) {
	ref := progress.NewReference([]progress.Project{
		{Code: "P5066", FullCode: "P5066-2", StartDate: day("2025-01-15")},
	}, nil)

	a := excavation("P5066-2", "")
	a.LegacyStartDates = []string{"garbage", "2024-12-01"}

	// 5. legacy fields only
	assert.Equal(t, "2024-12-01", progress.ResolvePlannedStart(a, nil, nil).String())

	// 4. project start
	assert.Equal(t, "2025-01-15", progress.ResolvePlannedStart(a, nil, ref).String())

	// 3. deadline minus duration
	a.Deadline = day("2025-04-30")
	a.CalendarDuration = 20
	assert.Equal(t, "2025-04-10", progress.ResolvePlannedStart(a, nil, ref).String())

	// 2. explicit planned start
	a.PlannedStart = day("2025-04-05")
	assert.Equal(t, "2025-04-05", progress.ResolvePlannedStart(a, nil, ref).String())

	// 1. earliest planned KPI wins, regardless of record order
	kpis := []progress.KPIRecord{
		kpi("P5066-2", "Excavation", "", progress.InputPlanned, "1", "2025-04-03"),
		kpi("P5066-2", "Excavation", "", progress.InputPlanned, "1", "2025-04-02"),
		kpi("P5066-2", "Excavation", "", progress.InputActual, "1", "2025-03-01"),
	}
	assert.Equal(t, "2025-04-02", progress.ResolvePlannedStart(a, kpis, ref).String())
}

func TestResolvePlannedEnd_Chain(t *testing.T) {
	a := excavation("P5066-2", "")
	a.LegacyEndDates = []string{"2025-12-31"}
	kpis := []progress.KPIRecord{
		kpi("P5066-2", "Excavation", "", progress.InputPlanned, "1", "2025-04-20"),
		kpi("P5066-2", "Excavation", "", progress.InputPlanned, "1", "2025-04-02"),
	}

	assert.Equal(t, "2025-12-31", progress.ResolvePlannedEnd(a, nil, nil).String())
	assert.Equal(t, "2025-04-20", progress.ResolvePlannedEnd(a, kpis, nil).String())

	a.CalendarDuration = 10
	assert.Equal(t, "2025-04-12", progress.ResolvePlannedEnd(a, kpis, nil).String(), "planned start 04-02 + 10 days")

	a.Deadline = day("2025-04-30")
	assert.Equal(t, "2025-04-30", progress.ResolvePlannedEnd(a, kpis, nil).String())
}

func TestResolveActualDates(t *testing.T) {
	a := excavation("P5066-2", "")
	a.ActualStart = day("2025-01-01")
	a.ActualEnd = day("2025-01-31")

	assert.Equal(t, "2025-01-01", progress.ResolveActualStart(a, nil).String())
	assert.Equal(t, "2025-01-31", progress.ResolveActualEnd(a, nil).String())

	kpis := []progress.KPIRecord{
		kpi("P5066-2", "Excavation", "", progress.InputActual, "1", "2025-04-05"),
		kpi("P5066-2", "Excavation", "", progress.InputActual, "1", "2025-04-01"),
		kpi("P5066-2", "Excavation", "", progress.InputPlanned, "1", "2025-03-01"),
	}
	assert.Equal(t, "2025-04-01", progress.ResolveActualStart(a, kpis).String())
	assert.Equal(t, "2025-04-05", progress.ResolveActualEnd(a, kpis).String())
}

func TestDefaultAsOf_IsYesterday(t *testing.T) {
	assert.Equal(t, "2025-02-28", progress.DefaultAsOf(day("2025-03-01")).String())
}
