package progress_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// END-TO-END DERIVATION TESTS
// =============================================================================

// scenario builds the reference activity: 100 units at 50, due 2025-04-30,
// with ten planned records of 10 (04-01..04-10) and five actual records of 8
// (04-01..04-05).
func scenario() (progress.Activity, []progress.KPIRecord) {
	a := excavation("P5066-2", "Zone 2")
	a.PlannedStart = day("2025-04-01")
	a.Deadline = day("2025-04-30")

	var kpis []progress.KPIRecord
	for i := 1; i <= 10; i++ {
		kpis = append(kpis, kpi("P5066-2", "Excavation", "Zone 2", progress.InputPlanned, "10", fmt.Sprintf("2025-04-%02d", i)))
	}
	for i := 1; i <= 5; i++ {
		kpis = append(kpis, kpi("P5066-2", "Excavation", "Zone 2", progress.InputActual, "8", fmt.Sprintf("2025-04-%02d", i)))
	}
	return a, kpis
}

func TestDerive_EndToEndScenario(t *testing.T) {
	// GIVEN: The reference scenario evaluated as of 2025-04-15
	a, kpis := scenario()

	// WHEN: Deriving
	d := progress.Derive(a, kpis, nil, progress.Options{
		Today: day("2025-04-16"),
		AsOf:  day("2025-04-15"),
	})

	// THEN: Quantities, percentages and status follow
	assert.True(t, d.Quantities.Planned.Equal(dec("100")), "planned=%s", d.Quantities.Planned)
	assert.True(t, d.Quantities.Actual.Equal(dec("40")), "actual=%s", d.Quantities.Actual)
	assert.True(t, d.Quantities.Remaining.Equal(dec("60")), "remaining=%s", d.Quantities.Remaining)
	assert.True(t, d.Progress.ActualPct.Equal(dec("40")), "actual pct=%s", d.Progress.ActualPct)
	assert.True(t, d.Progress.PlannedPct.Equal(dec("100")), "planned pct=%s", d.Progress.PlannedPct)
	assert.Equal(t, progress.StatusDelayed, d.Progress.Status)

	assert.Equal(t, "act-1", d.ActivityID)
	assert.Equal(t, 15, d.MatchedRecords)
	assert.Equal(t, "2025-04-01", d.PlannedStartDate.String())
	assert.Equal(t, "2025-04-30", d.PlannedEndDate.String())
	assert.Equal(t, "2025-04-01", d.ActualStartDate.String())
	assert.Equal(t, "2025-04-05", d.ActualEndDate.String())
	assert.Equal(t, 29, d.TotalDurationDays)
	assert.Equal(t, 14, d.RemainingDays)

	// 60 units over 14 days beats the natural 100/29 per day
	assert.True(t, d.Productivity.Required.GreaterThan(d.Productivity.Natural))
	assert.True(t, d.Productivity.Reported.Equal(dec("5")), "reported=%s", d.Productivity.Reported)
	assert.True(t, d.Productivity.Actual.Equal(dec("8")))
	assert.Equal(t, progress.BadgeOnPace, d.Productivity.Badge)
	assert.Empty(t, d.Warnings)
}

func TestDerive_DefaultCutoffIsYesterday(t *testing.T) {
	a, kpis := scenario()

	// WHEN: Only Today is given, 2025-04-03
	d := progress.Derive(a, kpis, nil, progress.Options{Today: day("2025-04-03")})

	// THEN: Records of 04-01 and 04-02 count, today's do not
	assert.True(t, d.Quantities.Planned.Equal(dec("20")), "planned=%s", d.Quantities.Planned)
	assert.True(t, d.Quantities.Actual.Equal(dec("16")), "actual=%s", d.Quantities.Actual)
}

func TestDerive_DoesNotMutateInputs(t *testing.T) {
	a, kpis := scenario()
	a.Rate = dec("0")
	a.TotalValue = dec("0")
	before := a
	kpisBefore := append([]progress.KPIRecord(nil), kpis...)

	ref := progress.NewReference(nil, []progress.RateEntry{{ActivityName: "excavation", Rate: dec("25")}})
	progress.Derive(a, kpis, ref, progress.Options{Today: day("2025-04-16")})

	assert.Equal(t, before, a)
	assert.Equal(t, kpisBefore, kpis)
}

func TestDerive_ReferenceRateIsLastResort(t *testing.T) {
	a, kpis := scenario()
	a.Rate = dec("0")
	a.TotalUnits = dec("100")
	a.TotalValue = dec("2500")

	ref := progress.NewReference(nil, []progress.RateEntry{
		{ProjectCode: "P5066-2", ActivityName: "Excavation", Rate: dec("25")},
	})

	// TotalValue / TotalUnits is available, so the table is not consulted
	assert.True(t, progress.EffectiveRate(a, ref).Equal(dec("25")))
	a.TotalValue = dec("5000")
	assert.True(t, progress.EffectiveRate(a, ref).Equal(dec("50")))

	// Without totals the table supplies the rate
	a.TotalUnits = dec("0")
	a.TotalValue = dec("0")
	assert.True(t, progress.EffectiveRate(a, ref).Equal(dec("25")))

	d := progress.Derive(a, kpis, ref, progress.Options{Today: day("2025-04-16")})
	assert.Contains(t, d.Warnings, progress.WarnNoTotalValue)
	assert.NotContains(t, d.Warnings, progress.WarnNoRate)
}

func TestDerive_WarnsOnOverScopeAndNoMatches(t *testing.T) {
	a, kpis := scenario()
	a.TotalUnits = dec("30")

	d := progress.Derive(a, kpis, nil, progress.Options{Today: day("2025-04-16")})
	assert.Contains(t, d.Warnings, progress.WarnPlannedOverScope)
	assert.Contains(t, d.Warnings, progress.WarnActualOverScope)
	assert.True(t, d.Quantities.Actual.Equal(dec("30")))

	lonely := excavation("P9999", "")
	lonely.ProjectCode = "P9999"
	d = progress.Derive(lonely, kpis, nil, progress.Options{Today: day("2025-04-16")})
	assert.Contains(t, d.Warnings, progress.WarnNoMatches)
	assert.Contains(t, d.Warnings, progress.WarnNoPlannedDates)
	assert.Equal(t, progress.StatusNotStarted, d.Progress.Status)
}

func TestDeriveAll_MatchesPerActivityDerive(t *testing.T) {
	a, kpis := scenario()
	other := excavation("P5066-12", "Zone 12")
	other.ID = "act-2"
	kpis = append(kpis, kpi("P5066-12", "Excavation", "Zone 12", progress.InputActual, "3", "2025-04-02"))
	opts := progress.Options{Today: day("2025-04-16"), AsOf: day("2025-04-15")}

	all := progress.DeriveAll([]progress.Activity{a, other}, kpis, nil, opts)

	require.Len(t, all, 2)
	assert.Equal(t, progress.Derive(a, kpis, nil, opts), all[0])
	assert.Equal(t, progress.Derive(other, kpis, nil, opts), all[1])
	assert.True(t, all[1].Quantities.Actual.Equal(dec("3")))
}

// =============================================================================
// DATA QUALITY AND ROLL-UP
// =============================================================================

func TestUnmatched_ListsOrphanRecords(t *testing.T) {
	a, kpis := scenario()
	orphan := kpi("P5066-2", "Backfilling", "Zone 2", progress.InputActual, "1", "2025-04-01")
	wrongZone := kpi("P5066-2", "Excavation", "Zone 12", progress.InputActual, "1", "2025-04-01")
	kpis = append(kpis, orphan, wrongZone)

	got := progress.Unmatched(kpis, []progress.Activity{a})

	assert.Equal(t, []progress.KPIRecord{orphan, wrongZone}, got)
}

func TestSummarize_ValueWeighted(t *testing.T) {
	// GIVEN: Two activities, one worth 3x the other
	big := progress.Activity{ProjectCode: "P5066", TotalValue: dec("3000")}
	small := progress.Activity{ProjectCode: "P5066", TotalValue: dec("1000")}
	foreign := progress.Activity{ProjectCode: "P7000", TotalValue: dec("9000")}
	derived := []progress.Derived{
		{Progress: progress.Progress{PlannedPct: dec("100"), ActualPct: dec("100"), Status: progress.StatusCompleted}},
		{Progress: progress.Progress{PlannedPct: dec("100"), ActualPct: dec("0"), Status: progress.StatusDelayed}},
		{Progress: progress.Progress{PlannedPct: dec("0"), ActualPct: dec("0"), Status: progress.StatusNotStarted}},
	}

	// WHEN: Summarizing P5066
	s, err := progress.Summarize("P5066", []progress.Activity{big, small, foreign}, derived)

	// THEN: 3000 of 4000 is done
	require.NoError(t, err)
	assert.Equal(t, 2, s.Activities)
	assert.True(t, s.TotalValue.Equal(dec("4000")))
	assert.True(t, s.PlannedPct.Equal(dec("100")))
	assert.True(t, s.ActualPct.Equal(dec("75")), "actual=%s", s.ActualPct)
	assert.Equal(t, progress.StatusDelayed, s.Status)
	assert.Equal(t, map[progress.Status]int{progress.StatusCompleted: 1, progress.StatusDelayed: 1}, s.StatusCounts)
}

func TestSummarize_MisalignedInput(t *testing.T) {
	_, err := progress.Summarize("", []progress.Activity{{}}, nil)
	assert.Error(t, err)
}

func TestReference_Lookups(t *testing.T) {
	ref := progress.NewReference([]progress.Project{
		{Code: "P5066", FullCode: "P5066-2", Type: "pipeline"},
		{Code: "P5066", FullCode: "P5066-12", Type: "civil"},
	}, []progress.RateEntry{
		{ActivityName: "Excavation", Rate: dec("40")},
		{ProjectCode: "P5066-2", ActivityName: "Excavation", Rate: dec("45")},
		{ActivityName: "Ignored", Rate: dec("0")},
	})

	assert.Equal(t, "civil", ref.ProjectType("P5066-12", "P5066"))
	assert.Equal(t, "pipeline", ref.ProjectType("", "P5066"), "base code keeps the first project")
	projects := ref.Projects()
	require.Len(t, projects, 2)
	assert.Equal(t, "P5066-12", projects[0].FullCode, "ordered by code")
	assert.Equal(t, "P5066-2", projects[1].FullCode)

	rate, ok := ref.Rate("P5066-2", "excavation")
	assert.True(t, ok)
	assert.True(t, rate.Equal(dec("45")))

	rate, ok = ref.Rate("P7000", "Excavation")
	assert.True(t, ok)
	assert.True(t, rate.Equal(dec("40")))

	_, ok = ref.Rate("", "Ignored")
	assert.False(t, ok)

	var empty *progress.Reference
	_, ok = empty.Project("P5066", "")
	assert.False(t, ok)
}
