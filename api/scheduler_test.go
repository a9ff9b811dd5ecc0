package api_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/progress-engine/api"
	"github.com/warp/progress-engine/ingest"
	"github.com/warp/progress-engine/progress"
	"github.com/warp/progress-engine/store/memory"
)

func newScheduler(t *testing.T) (*api.DataQualityScheduler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := memory.New()
	h := api.NewHandler(s, ingest.RateTable{}, api.NewMetrics(reg))
	h.Clock = func() progress.Date { return progress.NewDate(2025, 4, 16) }

	trench := progress.Activity{
		ID:              "trench",
		ProjectCode:     "P5066",
		ProjectFullCode: "P5066-2",
		ActivityName:    "Trenching",
		ZoneLabel:       "Zone 2",
		TotalUnits:      decimal.NewFromInt(10),
		Rate:            decimal.NewFromInt(5),
		TotalValue:      decimal.NewFromInt(50),
		PlannedStart:    progress.NewDate(2025, 4, 1),
		Deadline:        progress.NewDate(2025, 4, 30),
	}
	idle := trench
	idle.ID = "idle"
	idle.ActivityName = "Reinstatement"

	kpi := func(id, name string, qty int64) progress.KPIRecord {
		return progress.KPIRecord{
			ID:              id,
			ProjectCode:     "P5066",
			ProjectFullCode: "P5066-2",
			ActivityName:    name,
			ZoneLabel:       "Zone 2",
			InputType:       progress.InputActual,
			Quantity:        decimal.NewFromInt(qty),
			Date:            progress.NewDate(2025, 4, 2),
		}
	}

	_, err := api.StoreDataset(context.Background(), s, ingest.Dataset{
		Activities: []progress.Activity{trench, idle},
		KPIs: []progress.KPIRecord{
			kpi("k-1", "Trenching", 8),
			kpi("k-2", "Trenching", 8),
			kpi("k-3", "Backfilling", 1),
		},
	})
	require.NoError(t, err)
	return api.NewDataQualityScheduler(h, zerolog.Nop()), reg
}

func TestDataQualityScheduler_RunNow(t *testing.T) {
	// GIVEN: An over-scope line, a line with no records and one orphan
	sched, reg := newScheduler(t)

	// WHEN: Running a check
	report, err := sched.RunNow(context.Background())

	// THEN: Each problem is counted and the gauge follows
	require.NoError(t, err)
	assert.Equal(t, 2, report.Activities)
	assert.Equal(t, 3, report.KPIRecords)
	assert.Equal(t, 1, report.Unmatched)
	assert.Equal(t, 1, report.OverScope)
	assert.Equal(t, 1, report.NoMatches)
	assert.Equal(t, "2025-04-15", report.AsOf)
	assert.Equal(t, report, sched.Last())

	expected := `
# HELP progress_engine_data_quality_unmatched_kpi_records KPI records that matched no activity at the last check.
# TYPE progress_engine_data_quality_unmatched_kpi_records gauge
progress_engine_data_quality_unmatched_kpi_records 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"progress_engine_data_quality_unmatched_kpi_records"))
}

func TestDataQualityScheduler_StartRunsImmediately(t *testing.T) {
	sched, _ := newScheduler(t)
	sched.CheckInterval = time.Hour

	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return !sched.Last().CheckedAt.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, sched.Last().Unmatched)
}

func TestDataQualityScheduler_Disabled(t *testing.T) {
	sched, _ := newScheduler(t)
	sched.Enabled = false

	sched.Start()
	sched.Stop()

	assert.True(t, sched.Last().CheckedAt.IsZero())
}

func TestDataQualityScheduler_StopIsIdempotent(t *testing.T) {
	sched, _ := newScheduler(t)
	sched.CheckInterval = time.Millisecond

	sched.Start()
	sched.Start()
	sched.Stop()
	sched.Stop()
}
