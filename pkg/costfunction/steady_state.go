package costfunction

import (
	"fmt"
	"math"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
	"go.uber.org/zap"
)

const STEADY_STATE = "steadystate"

// SteadyStateFunction is freeFlow + hypocritical delay + hypercritical delay, where the
// hypocritical delay follows the free flow branch of a fundamental diagram at the inflow rate and
// the hypercritical delay is the average queueing time (in-out)*T/(2*out) over the period.
type SteadyStateFunction struct {
	diagramType string
	log         *zap.Logger

	graph       *da.Graph
	periodHours float64
	lengths     []float64
	freeFlow    [][]float64            // per mode id, per segment id
	diagrams    [][]FundamentalDiagram // per mode id, per segment id, nil when flow independent
}

func NewSteadyStateCostFunction(diagramType string, log *zap.Logger) (*SteadyStateFunction, error) {
	switch diagramType {
	case "":
		diagramType = NEWELL_DIAGRAM
	case NEWELL_DIAGRAM, QUADRATIC_LINEAR_DIAGRAM:
	default:
		return nil, fmt.Errorf("unknown fundamental diagram %q", diagramType)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SteadyStateFunction{diagramType: diagramType, log: log}, nil
}

func (ss *SteadyStateFunction) Name() string {
	return STEADY_STATE
}

func (ss *SteadyStateFunction) Initialize(graph *da.Graph, modes *da.Modes, period *demand.TimePeriod) error {
	if graph.NumberOfLayers() > 1 {
		return fmt.Errorf("%w: %s supports a single network layer, got %d", ErrUnsupportedNetwork, STEADY_STATE,
			graph.NumberOfLayers())
	}
	if period == nil {
		return fmt.Errorf("%s needs a time period to compute queueing delay", STEADY_STATE)
	}
	ss.graph = graph
	ss.periodHours = period.GetDurationHours()

	n := graph.NumberOfEdgeSegments()
	ss.lengths = make([]float64, n)
	for id := 0; id < n; id++ {
		ss.lengths[id] = graph.GetSegmentLength(da.Index(id))
	}

	ss.freeFlow = make([][]float64, modes.Count())
	ss.diagrams = make([][]FundamentalDiagram, modes.Count())
	for _, m := range modes.All() {
		freeFlow := freeFlowTimes(graph, m)
		diagrams := make([]FundamentalDiagram, n)
		for _, s := range graph.GetEdgeSegments() {
			id := s.GetID()
			if err := checkCost(STEADY_STATE, m, id, freeFlow[id]); err != nil {
				return err
			}
			if s.IsConnectoid() || math.IsInf(freeFlow[id], 1) || ss.lengths[id] == 0 {
				continue
			}
			fd, err := ss.newDiagram(graph, m, s)
			if err != nil {
				return fmt.Errorf("mode %s edge segment %d: %w", m.GetExternalId(), id, err)
			}
			diagrams[id] = fd
		}
		ss.freeFlow[m.GetID()] = freeFlow
		ss.diagrams[m.GetID()] = diagrams
	}
	return nil
}

func (ss *SteadyStateFunction) newDiagram(graph *da.Graph, mode *da.Mode, s *da.EdgeSegment) (FundamentalDiagram, error) {
	freeSpeed := graph.GetMaxSpeed(mode, s.GetID())
	jamDensity := graph.GetMaxDensity(s.GetID())
	if ss.diagramType == QUADRATIC_LINEAR_DIAGRAM {
		return NewQuadraticLinearFundamentalDiagram(freeSpeed, graph.GetCriticalSpeed(mode, s.GetID()),
			s.GetCapacity(), jamDensity)
	}
	return NewNewellFundamentalDiagram(freeSpeed, s.GetCapacity(), jamDensity)
}

func (ss *SteadyStateFunction) cost(mode *da.Mode, segmentId da.Index, inflow, outflow float64) (float64, error) {
	freeFlow := ss.freeFlow[mode.GetID()][segmentId]
	fd := ss.diagrams[mode.GetID()][segmentId]
	if fd == nil {
		return freeFlow, nil
	}

	hypoCriticalDelay := ss.lengths[segmentId]/fd.SpeedAtFlow(math.Min(inflow, fd.GetCapacity())) - freeFlow
	hypoCriticalDelay = math.Max(hypoCriticalDelay, 0)

	hyperCriticalDelay := 0.0
	switch {
	case inflow > 0 && outflow <= 0:
		ss.log.Warn("steady state segment has inflow but no outflow, cost is infinite",
			zap.String("mode", mode.GetExternalId()), zap.Uint32("segment", uint32(segmentId)),
			zap.Float64("inflow", inflow))
		return math.Inf(1), nil
	case inflow > outflow:
		hyperCriticalDelay = (inflow - outflow) * 0.5 * ss.periodHours / outflow
	}

	cost := freeFlow + hypoCriticalDelay + hyperCriticalDelay
	if err := checkCost(STEADY_STATE, mode, segmentId, cost); err != nil {
		return 0, err
	}
	return cost, nil
}

func (ss *SteadyStateFunction) defaultOutflow(mode *da.Mode, segmentId da.Index, inflow float64) float64 {
	fd := ss.diagrams[mode.GetID()][segmentId]
	if fd == nil {
		return inflow
	}
	return math.Min(inflow, fd.GetCapacity())
}

// GetSegmentCost evaluates the cost with outflow min(inflow, capacity).
func (ss *SteadyStateFunction) GetSegmentCost(mode *da.Mode, segmentId da.Index, flow float64) (float64, error) {
	if ss.diagrams == nil {
		return 0, ErrNotInitialized
	}
	return ss.cost(mode, segmentId, flow, ss.defaultOutflow(mode, segmentId, flow))
}

// GetSegmentCostWithOutflow evaluates the cost for an explicitly given outflow rate.
func (ss *SteadyStateFunction) GetSegmentCostWithOutflow(mode *da.Mode, segmentId da.Index,
	inflow, outflow float64) (float64, error) {
	if ss.diagrams == nil {
		return 0, ErrNotInitialized
	}
	return ss.cost(mode, segmentId, inflow, outflow)
}

// GetDTravelTimeDFlow is the slope of the hypocritical delay below capacity and the slope of the
// queueing delay, 0.5*T/capacity, at or above it.
func (ss *SteadyStateFunction) GetDTravelTimeDFlow(mode *da.Mode, segmentId da.Index, flow float64) float64 {
	if ss.diagrams == nil {
		return 0
	}
	fd := ss.diagrams[mode.GetID()][segmentId]
	if fd == nil {
		return 0
	}
	if flow >= fd.GetCapacity() {
		return 0.5 * ss.periodHours / fd.GetCapacity()
	}
	const h = 1e-3
	lo := math.Max(flow-h, 0)
	hi := math.Min(flow+h, fd.GetCapacity())
	if hi <= lo {
		return 0
	}
	length := ss.lengths[segmentId]
	return (length/fd.SpeedAtFlow(hi) - length/fd.SpeedAtFlow(lo)) / (hi - lo)
}

func (ss *SteadyStateFunction) PopulateCosts(mode *da.Mode, flows []float64, costs []float64) error {
	if ss.diagrams == nil {
		return ErrNotInitialized
	}
	if err := checkArrays(ss.graph, flows, costs); err != nil {
		return err
	}
	for id, inflow := range flows {
		cost, err := ss.cost(mode, da.Index(id), inflow, ss.defaultOutflow(mode, da.Index(id), inflow))
		if err != nil {
			return err
		}
		costs[id] = cost
	}
	return nil
}

// PopulateCostsWithOutflows is PopulateCosts with explicit outflow rates per segment.
func (ss *SteadyStateFunction) PopulateCostsWithOutflows(mode *da.Mode, inflows, outflows []float64,
	costs []float64) error {
	if ss.diagrams == nil {
		return ErrNotInitialized
	}
	if err := checkArrays(ss.graph, inflows, outflows, costs); err != nil {
		return err
	}
	for id := range inflows {
		cost, err := ss.cost(mode, da.Index(id), inflows[id], outflows[id])
		if err != nil {
			return err
		}
		costs[id] = cost
	}
	return nil
}
