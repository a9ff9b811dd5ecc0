package progress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/progress-engine/progress"
)

// =============================================================================
// STATUS CLASSIFIER TESTS
// =============================================================================

func TestClassifyStatus_Rules(t *testing.T) {
	cases := []struct {
		planned, actual string
		want            progress.Status
	}{
		{"40", "0", progress.StatusDelayed},
		{"40", "43", progress.StatusOnTrack},
		{"40", "50", progress.StatusAhead},
		{"0", "0", progress.StatusNotStarted},
		{"40", "100", progress.StatusCompleted},
		{"100", "100", progress.StatusCompleted},
		{"100", "40", progress.StatusDelayed},
		{"40", "35", progress.StatusOnTrack}, // exactly on the band edge
		{"40", "34.9", progress.StatusDelayed},
		{"40", "45", progress.StatusOnTrack},
		{"0", "10", progress.StatusAhead},
	}
	for _, tc := range cases {
		got := progress.ClassifyStatus(dec(tc.planned), dec(tc.actual))
		assert.Equal(t, tc.want, got, "planned=%s actual=%s", tc.planned, tc.actual)
	}
}

func TestClassify_Percentages(t *testing.T) {
	// GIVEN: 40 of 100 units done at rate 50, total value 5000
	p := progress.Classify(dec("100"), dec("40"), dec("50"), dec("5000"))

	assert.True(t, p.PlannedPct.Equal(dec("100")), "planned=%s", p.PlannedPct)
	assert.True(t, p.ActualPct.Equal(dec("40")), "actual=%s", p.ActualPct)
	assert.Equal(t, progress.StatusDelayed, p.Status)
}

func TestClassify_ZeroTotalValue(t *testing.T) {
	p := progress.Classify(dec("100"), dec("40"), dec("50"), dec("0"))

	assert.True(t, p.PlannedPct.IsZero())
	assert.True(t, p.ActualPct.IsZero())
	assert.Equal(t, progress.StatusNotStarted, p.Status)
}

func TestProgressPct_CappedAtHundred(t *testing.T) {
	assert.True(t, progress.ProgressPct(dec("300"), dec("50"), dec("5000")).Equal(dec("100")))
}
