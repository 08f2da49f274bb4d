package costfunction

import (
	"errors"
	"fmt"
	"math"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
)

var (
	ErrNegativeCost        = errors.New("cost function produced a negative cost")
	ErrUnsupportedNetwork  = errors.New("cost function does not support this network")
	ErrInvalidSegmentArray = errors.New("per-segment array does not match the number of edge segments")
	ErrNotInitialized      = errors.New("cost function used before Initialize")
	ErrUnknownCostFunction = errors.New("unknown cost function")
)

// CostFunction maps (mode, edge segment, flow) to a travel time in hours. Flows are the combined
// pcu/h of all modes on the segment.
type CostFunction interface {
	Name() string
	// Initialize precomputes per time period state. It must be called before any other method.
	Initialize(graph *da.Graph, modes *da.Modes, period *demand.TimePeriod) error
	GetSegmentCost(mode *da.Mode, segmentId da.Index, flow float64) (float64, error)
	GetDTravelTimeDFlow(mode *da.Mode, segmentId da.Index, flow float64) float64
	// PopulateCosts writes the cost of every edge segment for mode into costs.
	PopulateCosts(mode *da.Mode, flows []float64, costs []float64) error
}

// checkCost rejects negative and NaN costs. +Inf is a valid cost.
func checkCost(name string, mode *da.Mode, segmentId da.Index, cost float64) error {
	if cost < 0 || math.IsNaN(cost) {
		return fmt.Errorf("%w: %s cost %v for mode %s on edge segment %d", ErrNegativeCost, name, cost,
			mode.GetExternalId(), segmentId)
	}
	return nil
}

func checkArrays(graph *da.Graph, arrays ...[]float64) error {
	n := graph.NumberOfEdgeSegments()
	for _, arr := range arrays {
		if len(arr) != n {
			return fmt.Errorf("%w: got %d slots, network has %d edge segments", ErrInvalidSegmentArray, len(arr), n)
		}
	}
	return nil
}

// freeFlowTimes returns length / max speed (hours) of every segment for mode, +Inf where mode
// is not allowed.
func freeFlowTimes(graph *da.Graph, mode *da.Mode) []float64 {
	times := make([]float64, graph.NumberOfEdgeSegments())
	for _, s := range graph.GetEdgeSegments() {
		times[s.GetID()] = graph.GetFreeFlowTravelTime(mode, s.GetID())
	}
	return times
}
