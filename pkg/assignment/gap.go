package assignment

import (
	"errors"
	"fmt"
	"math"

	"github.com/TrafficPLANit/PLANit-sub005/pkg"
)

var ErrNegativeConvexityBound = errors.New("convexity bound is negative")

// LinkBasedRelativeDualityGap is (measured - bound) / bound where bound is the sum of
// demand * shortest path cost and measured the sum of cost * flow over all segments and modes.
type LinkBasedRelativeDualityGap struct {
	convexityBound      float64
	measuredNetworkCost float64
	gap                 float64
}

func NewLinkBasedRelativeDualityGap() *LinkBasedRelativeDualityGap {
	return &LinkBasedRelativeDualityGap{}
}

// Reset starts a new iteration.
func (g *LinkBasedRelativeDualityGap) Reset() {
	g.convexityBound = 0
	g.measuredNetworkCost = 0
	g.gap = 0
}

func (g *LinkBasedRelativeDualityGap) IncreaseConvexityBound(value float64) error {
	if value < 0 || math.IsNaN(value) {
		return fmt.Errorf("%w: increment %v", ErrNegativeConvexityBound, value)
	}
	g.convexityBound += value
	return nil
}

func (g *LinkBasedRelativeDualityGap) IncreaseMeasuredNetworkCost(value float64) {
	g.measuredNetworkCost += value
}

// IsZeroBound reports an empty assignment (no demand or only zero cost paths).
func (g *LinkBasedRelativeDualityGap) IsZeroBound() bool {
	return math.Abs(g.convexityBound) <= pkg.ZERO_BOUND_EPSILON
}

func (g *LinkBasedRelativeDualityGap) ComputeGap() (float64, error) {
	if g.convexityBound < 0 {
		return 0, fmt.Errorf("%w: %v", ErrNegativeConvexityBound, g.convexityBound)
	}
	if g.IsZeroBound() {
		g.gap = 0
		return 0, nil
	}
	g.gap = (g.measuredNetworkCost - g.convexityBound) / g.convexityBound
	return g.gap, nil
}

func (g *LinkBasedRelativeDualityGap) GetGap() float64 {
	return g.gap
}

func (g *LinkBasedRelativeDualityGap) GetConvexityBound() float64 {
	return g.convexityBound
}

func (g *LinkBasedRelativeDualityGap) GetMeasuredNetworkCost() float64 {
	return g.measuredNetworkCost
}

// StopCriterion decides termination after an iteration.
type StopCriterion struct {
	Epsilon       float64
	MaxIterations int
}

// Check returns whether to stop after the gap of iterate iteration (1-based) is known, and why.
// Iterate 1 is plain all-or-nothing on the initial costs and only stops on a zero bound.
func (sc StopCriterion) Check(iteration int, gap *LinkBasedRelativeDualityGap) (bool, TerminationReason) {
	if gap.IsZeroBound() {
		return true, Converged
	}
	if iteration >= 2 && math.Abs(gap.GetGap()) <= sc.Epsilon {
		return true, Converged
	}
	if iteration >= sc.MaxIterations {
		return true, MaxIterationsReached
	}
	return false, Running
}

// dot returns sum(costs[i] * flows[i]) over segments carrying flow.
func dot(costs, flows []float64) float64 {
	sum := 0.0
	for i, f := range flows {
		if f != 0 {
			sum += costs[i] * f
		}
	}
	return sum
}
