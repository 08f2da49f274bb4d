package costfunction

import (
	"fmt"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
)

const FREE_FLOW = "freeflow"

// FreeFlowFunction is the flow independent cost length / max speed.
type FreeFlowFunction struct {
	graph     *da.Graph
	freeFlow  [][]float64 // per mode id, per segment id
	populated bool
}

func NewFreeFlowCostFunction() *FreeFlowFunction {
	return &FreeFlowFunction{}
}

func (ff *FreeFlowFunction) Name() string {
	return FREE_FLOW
}

func (ff *FreeFlowFunction) Initialize(graph *da.Graph, modes *da.Modes, period *demand.TimePeriod) error {
	ff.graph = graph
	ff.freeFlow = make([][]float64, modes.Count())
	for _, m := range modes.All() {
		times := freeFlowTimes(graph, m)
		for s, cost := range times {
			if err := checkCost(FREE_FLOW, m, da.Index(s), cost); err != nil {
				return err
			}
		}
		ff.freeFlow[m.GetID()] = times
	}
	ff.populated = true
	return nil
}

func (ff *FreeFlowFunction) GetSegmentCost(mode *da.Mode, segmentId da.Index, flow float64) (float64, error) {
	if !ff.populated {
		return 0, ErrNotInitialized
	}
	if int(mode.GetID()) >= len(ff.freeFlow) {
		return 0, fmt.Errorf("free flow cost: mode %s not registered at initialization", mode.GetExternalId())
	}
	return ff.freeFlow[mode.GetID()][segmentId], nil
}

func (ff *FreeFlowFunction) GetDTravelTimeDFlow(mode *da.Mode, segmentId da.Index, flow float64) float64 {
	return 0
}

func (ff *FreeFlowFunction) PopulateCosts(mode *da.Mode, flows []float64, costs []float64) error {
	if !ff.populated {
		return ErrNotInitialized
	}
	if err := checkArrays(ff.graph, costs); err != nil {
		return err
	}
	copy(costs, ff.freeFlow[mode.GetID()])
	return nil
}
