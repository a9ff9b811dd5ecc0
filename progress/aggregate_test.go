package progress_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// QUANTITY AGGREGATOR TESTS
// =============================================================================

func TestAggregate_CappingInvariant(t *testing.T) {
	// GIVEN: Raw sums far beyond the activity's 100 units
	a := excavation("P5066-2", "")
	var kpis []progress.KPIRecord
	for i := 1; i <= 20; i++ {
		date := fmt.Sprintf("2025-04-%02d", i)
		kpis = append(kpis,
			kpi("P5066-2", "Excavation", "", progress.InputPlanned, "50", date),
			kpi("P5066-2", "Excavation", "", progress.InputActual, "25", date),
		)
	}

	// WHEN: Aggregating
	q := progress.Aggregate(a, kpis, day("2025-04-30"))

	// THEN: Capped sums never exceed total units, raw sums are preserved
	assert.True(t, q.Planned.Equal(dec("100")), "planned=%s", q.Planned)
	assert.True(t, q.Actual.Equal(dec("100")), "actual=%s", q.Actual)
	assert.True(t, q.PlannedRaw.Equal(dec("1000")))
	assert.True(t, q.ActualRaw.Equal(dec("500")))
	assert.True(t, q.Remaining.IsZero())
	assert.True(t, q.PlannedOverScope())
	assert.True(t, q.ActualOverScope())
}

func TestAggregate_NoCapWhenTotalUnitsZero(t *testing.T) {
	a := excavation("P5066-2", "")
	a.TotalUnits = dec("0")
	kpis := []progress.KPIRecord{
		kpi("P5066-2", "Excavation", "", progress.InputActual, "30", "2025-04-01"),
	}

	q := progress.Aggregate(a, kpis, day("2025-04-30"))

	assert.True(t, q.Actual.Equal(dec("30")))
	assert.True(t, q.Remaining.IsZero(), "remaining never negative")
	assert.False(t, q.ActualOverScope())
}

func TestAggregate_CutoffExcludesLaterAndUndatedRecords(t *testing.T) {
	// GIVEN: Records before, on and after the cutoff, plus one without a date
	a := excavation("P5066-2", "")
	kpis := []progress.KPIRecord{
		kpi("P5066-2", "Excavation", "", progress.InputActual, "10", "2025-04-14"),
		kpi("P5066-2", "Excavation", "", progress.InputActual, "10", "2025-04-15"),
		kpi("P5066-2", "Excavation", "", progress.InputActual, "10", "2025-04-16"),
		kpi("P5066-2", "Excavation", "", progress.InputActual, "10", ""),
	}

	// WHEN: Aggregating as of 2025-04-15
	q := progress.Aggregate(a, kpis, day("2025-04-15"))

	// THEN: Only the first two count
	assert.True(t, q.Actual.Equal(dec("20")), "actual=%s", q.Actual)
	assert.Equal(t, 2, q.ActualRecords)
	assert.Equal(t, 2, q.ActualDaysWorked)
	assert.True(t, q.Remaining.Equal(dec("80")))
}

func TestAggregate_DistinctDaysWorked(t *testing.T) {
	a := excavation("P5066-2", "")
	kpis := []progress.KPIRecord{
		kpi("P5066-2", "Excavation", "", progress.InputActual, "5", "2025-04-01"),
		kpi("P5066-2", "Excavation", "", progress.InputActual, "5", "2025-04-01"),
		kpi("P5066-2", "Excavation", "", progress.InputActual, "5", "2025-04-02"),
	}

	q := progress.Aggregate(a, kpis, day("2025-04-30"))

	assert.Equal(t, 3, q.ActualRecords)
	assert.Equal(t, 2, q.ActualDaysWorked)
}

func TestAggregate_IgnoresOtherSubProjects(t *testing.T) {
	a := excavation("P5066-12", "")
	kpis := []progress.KPIRecord{
		kpi("P5066-12", "Excavation", "", progress.InputActual, "7", "2025-04-01"),
		kpi("P5066-2", "Excavation", "", progress.InputActual, "90", "2025-04-01"),
	}

	q := progress.Aggregate(a, kpis, day("2025-04-30"))

	assert.True(t, q.Actual.Equal(dec("7")))
}

func TestRecordValue(t *testing.T) {
	a := excavation("P5066-2", "")

	k := kpi("P5066-2", "Excavation", "", progress.InputActual, "4", "2025-04-01")
	assert.True(t, progress.RecordValue(k, a).Equal(dec("200")), "quantity x activity rate")

	k.Value = dec("4")
	assert.True(t, progress.RecordValue(k, a).Equal(dec("200")), "value equal to quantity is recomputed")

	k.Value = dec("150")
	assert.True(t, progress.RecordValue(k, a).Equal(dec("150")), "explicit value kept")

	k.Value = dec("0")
	k.Rate = dec("10")
	assert.True(t, progress.RecordValue(k, a).Equal(dec("40")), "record rate wins")
}

func TestActivityRate_FallsBackToTotals(t *testing.T) {
	a := excavation("P5066-2", "")
	a.Rate = dec("0")
	assert.True(t, progress.ActivityRate(a).Equal(dec("50")), "5000 / 100")

	a.TotalUnits = dec("0")
	assert.True(t, progress.ActivityRate(a).IsZero())
}
