package assignment

import (
	"time"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
)

type TerminationReason uint8

const (
	Running TerminationReason = iota
	Converged
	MaxIterationsReached
)

func (t TerminationReason) String() string {
	switch t {
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max_iterations_reached"
	default:
		return "running"
	}
}

// IterationResult is the convergence log entry of one iteration.
type IterationResult struct {
	Iteration           int
	Gap                 float64
	ConvexityBound      float64
	MeasuredNetworkCost float64
	StepSize            float64
	Duration            time.Duration
}

// ModeResult holds the final state of one mode. Flows are pcu/h, costs hours.
type ModeResult struct {
	Mode             *da.Mode
	Flows            []float64
	Costs            []float64
	Skims            *ODSkim // nil unless skims were requested
	Paths            *ODPaths
	DroppedDemand    float64 // vehicles/h of unreachable od pairs in the last iteration
	UnreachablePairs int
}

type TimePeriodResult struct {
	TimePeriod     *demand.TimePeriod
	Modes          []*ModeResult // ascending mode id
	Iterations     int
	Termination    TerminationReason
	Gap            float64
	ConvergenceLog []IterationResult
	Duration       time.Duration
}

func (r *TimePeriodResult) GetModeResult(modeId da.Index) *ModeResult {
	for _, m := range r.Modes {
		if m.Mode.GetID() == modeId {
			return m
		}
	}
	return nil
}

// TotalFlows returns the pcu/h of all modes per segment.
func (r *TimePeriodResult) TotalFlows() []float64 {
	if len(r.Modes) == 0 {
		return nil
	}
	total := make([]float64, len(r.Modes[0].Flows))
	for _, m := range r.Modes {
		for i, f := range m.Flows {
			total[i] += f
		}
	}
	return total
}

// AssignmentResult holds the results of every time period that finished without error.
type AssignmentResult struct {
	RunId       string
	TimePeriods []*TimePeriodResult // ascending time period id
}

func (r *AssignmentResult) GetTimePeriodResult(timePeriodId da.Index) *TimePeriodResult {
	for _, tp := range r.TimePeriods {
		if tp.TimePeriod.GetID() == timePeriodId {
			return tp
		}
	}
	return nil
}
