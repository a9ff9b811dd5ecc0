// Package storetest holds the behaviour every store.Store must share. Each
// implementation runs it from its own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/progress-engine/progress"
	"github.com/warp/progress-engine/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run executes the contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"ProjectsUpsertByKey", testProjectsUpsertByKey},
		{"ActivitiesRoundTripAndOrder", testActivitiesRoundTripAndOrder},
		{"GetActivityNotFound", testGetActivityNotFound},
		{"KPIAppendIsIdempotent", testKPIAppendIsIdempotent},
		{"KPIBatchRejectsMissingID", testKPIBatchRejectsMissingID},
		{"SnapshotLoadsEverything", testSnapshotLoadsEverything},
		{"Reset", testReset},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tc.fn(t, s)
		})
	}
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func day(s string) progress.Date { return progress.ResolveDate(s) }

func sampleActivity(id string) progress.Activity {
	return progress.Activity{
		ID:               id,
		ProjectCode:      "P5066",
		ProjectFullCode:  "P5066-2",
		ActivityName:     "Excavation",
		Description:      "Trench excavation",
		ZoneLabel:        "Zone 2",
		TotalUnits:       d("100.5"),
		Unit:             "m3",
		Rate:             d("50"),
		TotalValue:       d("5025"),
		PlannedStart:     day("2025-04-01"),
		Deadline:         day("2025-04-30"),
		CalendarDuration: 29,
		LegacyStartDates: []string{"2025-03-15"},
	}
}

func sampleKPI(id, qty string) progress.KPIRecord {
	return progress.KPIRecord{
		ID:              id,
		ProjectCode:     "P5066",
		ProjectFullCode: "P5066-2",
		ActivityName:    "Excavation",
		ZoneLabel:       "Zone 2",
		InputType:       progress.InputActual,
		Quantity:        d(qty),
		Date:            day("2025-04-02"),
	}
}

func testProjectsUpsertByKey(t *testing.T, s store.Store) {
	ctx := context.Background()

	// GIVEN: Two sub-projects sharing a base code
	require.NoError(t, s.SaveProjects(ctx, []progress.Project{
		{Code: "P5066", FullCode: "P5066-2", Name: "Trunk", StartDate: day("2025-01-15")},
		{Code: "P5066", FullCode: "P5066-12", Name: "Spur"},
	}))

	// WHEN: One is saved again with a new name
	require.NoError(t, s.SaveProjects(ctx, []progress.Project{
		{Code: "P5066", FullCode: "P5066-2", Name: "Trunk line", Type: "pipeline"},
	}))

	// THEN: It is updated in place, ordered by key
	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "P5066-12", projects[0].FullCode)
	assert.Equal(t, "Trunk line", projects[1].Name)
	assert.Equal(t, "pipeline", projects[1].Type)
	assert.True(t, projects[1].StartDate.IsZero(), "upsert replaces the whole row")

	err = s.SaveProjects(ctx, []progress.Project{{Name: "no code"}})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
}

func testActivitiesRoundTripAndOrder(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveActivities(ctx, []progress.Activity{sampleActivity("b"), sampleActivity("a")}))

	updated := sampleActivity("b")
	updated.TotalUnits = d("120")
	require.NoError(t, s.SaveActivities(ctx, []progress.Activity{updated}))

	got, err := s.GetActivity(ctx, "b")
	require.NoError(t, err)
	want := sampleActivity("b")
	assert.Equal(t, want.ProjectFullCode, got.ProjectFullCode)
	assert.Equal(t, want.ZoneLabel, got.ZoneLabel)
	assert.Equal(t, want.Unit, got.Unit)
	assert.True(t, got.TotalUnits.Equal(d("120")), "total units=%s", got.TotalUnits)
	assert.True(t, got.Rate.Equal(want.Rate))
	assert.True(t, got.TotalValue.Equal(want.TotalValue))
	assert.Equal(t, "2025-04-01", got.PlannedStart.String())
	assert.Equal(t, "2025-04-30", got.Deadline.String())
	assert.True(t, got.ActualStart.IsZero())
	assert.Equal(t, 29, got.CalendarDuration)
	assert.Equal(t, []string{"2025-03-15"}, got.LegacyStartDates)
	assert.Empty(t, got.LegacyEndDates)

	all, err := s.ListActivities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID, "first insertion order survives an update")
	assert.Equal(t, "a", all[1].ID)

	err = s.SaveActivities(ctx, []progress.Activity{{ActivityName: "no id"}})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)
}

func testGetActivityNotFound(t *testing.T, s store.Store) {
	_, err := s.GetActivity(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrActivityNotFound)
	assert.True(t, store.IsNotFound(err))
}

func testKPIAppendIsIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()

	// GIVEN: One record already logged
	require.NoError(t, s.AppendKPI(ctx, sampleKPI("k1", "8")))
	assert.ErrorIs(t, s.AppendKPI(ctx, sampleKPI("k1", "9")), store.ErrDuplicateKPI)

	// WHEN: A batch re-sends it alongside new ones, one repeated in the batch
	res, err := s.AppendKPIs(ctx, []progress.KPIRecord{
		sampleKPI("k1", "8"),
		sampleKPI("k2", "4"),
		sampleKPI("k3", "2.25"),
		sampleKPI("k2", "4"),
	})

	// THEN: Only new records are appended, in order
	require.NoError(t, err)
	assert.Equal(t, store.BatchResult{Appended: 2, Duplicates: 2}, res)

	kpis, err := s.ListKPIs(ctx)
	require.NoError(t, err)
	require.Len(t, kpis, 3)
	assert.Equal(t, []string{"k1", "k2", "k3"}, []string{kpis[0].ID, kpis[1].ID, kpis[2].ID})
	assert.True(t, kpis[0].Quantity.Equal(d("8")), "the original record is never overwritten")
	assert.True(t, kpis[2].Quantity.Equal(d("2.25")))
	assert.Equal(t, progress.InputActual, kpis[2].InputType)
	assert.Equal(t, "2025-04-02", kpis[2].Date.String())
	assert.Equal(t, "Zone 2", kpis[2].ZoneLabel)

	exists, err := s.KPIExists(ctx, "k3")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.KPIExists(ctx, "k9")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testKPIBatchRejectsMissingID(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.AppendKPIs(ctx, []progress.KPIRecord{sampleKPI("k1", "1"), sampleKPI("", "1")})
	assert.ErrorIs(t, err, store.ErrInvalidRecord)

	kpis, err := s.ListKPIs(ctx)
	require.NoError(t, err)
	assert.Empty(t, kpis, "a rejected batch writes nothing")
}

func testSnapshotLoadsEverything(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveProjects(ctx, []progress.Project{{Code: "P5066", FullCode: "P5066-2"}}))
	require.NoError(t, s.SaveActivities(ctx, []progress.Activity{sampleActivity("a1")}))
	_, err := s.AppendKPIs(ctx, []progress.KPIRecord{sampleKPI("k1", "8"), sampleKPI("k2", "8")})
	require.NoError(t, err)

	snap, err := store.LoadSnapshot(ctx, s)

	require.NoError(t, err)
	assert.Len(t, snap.Projects, 1)
	assert.Len(t, snap.Activities, 1)
	assert.Len(t, snap.KPIs, 2)

	// The snapshot feeds the engine directly
	derived := progress.DeriveAll(snap.Activities, snap.KPIs, nil, progress.Options{Today: day("2025-04-10")})
	require.Len(t, derived, 1)
	assert.True(t, derived[0].Quantities.Actual.Equal(d("16")))
}

func testReset(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.SaveActivities(ctx, []progress.Activity{sampleActivity("a1")}))
	require.NoError(t, s.AppendKPI(ctx, sampleKPI("k1", "1")))

	require.NoError(t, s.Reset(ctx))

	snap, err := store.LoadSnapshot(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, snap.Activities)
	assert.Empty(t, snap.KPIs)

	// IDs are free again after a reset
	assert.NoError(t, s.AppendKPI(ctx, sampleKPI("k1", "1")))
}
