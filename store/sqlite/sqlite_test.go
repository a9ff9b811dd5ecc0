package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/progress-engine/progress"
	"github.com/warp/progress-engine/store"
	"github.com/warp/progress-engine/store/sqlite"
	"github.com/warp/progress-engine/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: A file-backed database with one record
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendKPI(ctx, progress.KPIRecord{
		ID:           "k1",
		ProjectCode:  "P5066",
		ActivityName: "Excavation",
		InputType:    progress.InputPlanned,
		Quantity:     decimal.RequireFromString("12.3456789012345678"),
	}))
	require.NoError(t, s.Close())

	// WHEN: Reopening it
	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	// THEN: The record and its exact quantity are back, and still block a replay
	kpis, err := s.ListKPIs(ctx)
	require.NoError(t, err)
	require.Len(t, kpis, 1)
	assert.Equal(t, "12.3456789012345678", kpis[0].Quantity.String())
	assert.True(t, kpis[0].Date.IsZero())
	assert.ErrorIs(t, s.AppendKPI(ctx, kpis[0]), store.ErrDuplicateKPI)
}
