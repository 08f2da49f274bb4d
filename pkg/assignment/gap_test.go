package assignment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkBasedRelativeDualityGap(t *testing.T) {
	gap := NewLinkBasedRelativeDualityGap()
	require.NoError(t, gap.IncreaseConvexityBound(60))
	require.NoError(t, gap.IncreaseConvexityBound(40))
	gap.IncreaseMeasuredNetworkCost(110)

	g, err := gap.ComputeGap()
	require.NoError(t, err)
	assert.InDelta(t, 0.1, g, 1e-12)
	assert.Equal(t, g, gap.GetGap())
	assert.False(t, gap.IsZeroBound())

	gap.Reset()
	assert.True(t, gap.IsZeroBound())
	gap.IncreaseMeasuredNetworkCost(5)
	g, err = gap.ComputeGap()
	require.NoError(t, err)
	assert.Equal(t, 0.0, g, "zero bound yields a zero gap")

	assert.ErrorIs(t, gap.IncreaseConvexityBound(-1), ErrNegativeConvexityBound)
	assert.ErrorIs(t, gap.IncreaseConvexityBound(math.NaN()), ErrNegativeConvexityBound)
}

func TestStopCriterion(t *testing.T) {
	sc := StopCriterion{Epsilon: 1e-3, MaxIterations: 5}

	gapOf := func(bound, measured float64) *LinkBasedRelativeDualityGap {
		g := NewLinkBasedRelativeDualityGap()
		require.NoError(t, g.IncreaseConvexityBound(bound))
		g.IncreaseMeasuredNetworkCost(measured)
		_, err := g.ComputeGap()
		require.NoError(t, err)
		return g
	}

	testCases := []struct {
		name       string
		iteration  int
		gap        *LinkBasedRelativeDualityGap
		wantStop   bool
		wantReason TerminationReason
	}{
		{name: "zero bound on first iteration", iteration: 1, gap: gapOf(0, 0), wantStop: true, wantReason: Converged},
		{name: "first iteration never converges", iteration: 1, gap: gapOf(100, 100), wantStop: false, wantReason: Running},
		{name: "gap below epsilon", iteration: 2, gap: gapOf(100, 100.01), wantStop: true, wantReason: Converged},
		{name: "gap above epsilon", iteration: 3, gap: gapOf(100, 120), wantStop: false, wantReason: Running},
		{name: "iteration cap", iteration: 5, gap: gapOf(100, 120), wantStop: true, wantReason: MaxIterationsReached},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			stop, reason := sc.Check(tt.iteration, tt.gap)
			assert.Equal(t, tt.wantStop, stop)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestTerminationReasonString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "max_iterations_reached", MaxIterationsReached.String())
	assert.Equal(t, "running", Running.String())
}
