package costfunction

import (
	"fmt"
	"math"

	"github.com/TrafficPLANit/PLANit-sub005/pkg"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
)

const BPR = "bpr"

type BPRParameters struct {
	Alpha float64
	Beta  float64
}

func (p BPRParameters) valid() bool {
	return p.Alpha >= 0 && p.Beta >= 0 && !math.IsNaN(p.Alpha) && !math.IsNaN(p.Beta)
}

type pairKey struct {
	first da.Index
	mode  da.Index
}

// BPRParameterRegistry resolves alpha/beta per (segment, mode): a segment override first, then
// the segment type default for the mode, then the mode default, then the global default.
type BPRParameterRegistry struct {
	global          BPRParameters
	byMode          map[da.Index]BPRParameters
	bySegmentType   map[pairKey]BPRParameters
	segmentOverride map[pairKey]BPRParameters
}

func NewBPRParameterRegistry() *BPRParameterRegistry {
	return &BPRParameterRegistry{
		global:          BPRParameters{Alpha: pkg.DEFAULT_BPR_ALPHA, Beta: pkg.DEFAULT_BPR_BETA},
		byMode:          make(map[da.Index]BPRParameters),
		bySegmentType:   make(map[pairKey]BPRParameters),
		segmentOverride: make(map[pairKey]BPRParameters),
	}
}

func (r *BPRParameterRegistry) SetDefault(p BPRParameters) error {
	if !p.valid() {
		return fmt.Errorf("bpr default alpha=%v beta=%v must be non-negative", p.Alpha, p.Beta)
	}
	r.global = p
	return nil
}

func (r *BPRParameterRegistry) SetModeDefault(modeId da.Index, p BPRParameters) error {
	if !p.valid() {
		return fmt.Errorf("bpr mode %d alpha=%v beta=%v must be non-negative", modeId, p.Alpha, p.Beta)
	}
	r.byMode[modeId] = p
	return nil
}

func (r *BPRParameterRegistry) SetSegmentTypeDefault(segmentTypeId, modeId da.Index, p BPRParameters) error {
	if !p.valid() {
		return fmt.Errorf("bpr segment type %d mode %d alpha=%v beta=%v must be non-negative", segmentTypeId,
			modeId, p.Alpha, p.Beta)
	}
	r.bySegmentType[pairKey{first: segmentTypeId, mode: modeId}] = p
	return nil
}

func (r *BPRParameterRegistry) SetSegmentOverride(segmentId, modeId da.Index, p BPRParameters) error {
	if !p.valid() {
		return fmt.Errorf("bpr segment %d mode %d alpha=%v beta=%v must be non-negative", segmentId, modeId,
			p.Alpha, p.Beta)
	}
	r.segmentOverride[pairKey{first: segmentId, mode: modeId}] = p
	return nil
}

func (r *BPRParameterRegistry) Resolve(segment *da.EdgeSegment, modeId da.Index) BPRParameters {
	if p, ok := r.segmentOverride[pairKey{first: segment.GetID(), mode: modeId}]; ok {
		return p
	}
	if p, ok := r.bySegmentType[pairKey{first: segment.GetSegmentType(), mode: modeId}]; ok {
		return p
	}
	if p, ok := r.byMode[modeId]; ok {
		return p
	}
	return r.global
}

// bprSegment caches everything the cost evaluation needs for one (mode, segment).
type bprSegment struct {
	freeFlow float64
	capacity float64
	alpha    float64
	beta     float64
	fixed    bool // connectoid or disallowed: cost does not depend on flow
}

// BPRFunction is freeFlow * (1 + alpha * (flow/capacity)^beta).
type BPRFunction struct {
	params   *BPRParameterRegistry
	graph    *da.Graph
	segments [][]bprSegment // per mode id, per segment id
}

func NewBPRCostFunction(params *BPRParameterRegistry) *BPRFunction {
	if params == nil {
		params = NewBPRParameterRegistry()
	}
	return &BPRFunction{params: params}
}

func (b *BPRFunction) Name() string {
	return BPR
}

func (b *BPRFunction) GetParameters() *BPRParameterRegistry {
	return b.params
}

func (b *BPRFunction) Initialize(graph *da.Graph, modes *da.Modes, period *demand.TimePeriod) error {
	b.graph = graph
	b.segments = make([][]bprSegment, modes.Count())
	for _, m := range modes.All() {
		freeFlow := freeFlowTimes(graph, m)
		segs := make([]bprSegment, len(freeFlow))
		for _, s := range graph.GetEdgeSegments() {
			id := s.GetID()
			if err := checkCost(BPR, m, id, freeFlow[id]); err != nil {
				return err
			}
			p := b.params.Resolve(s, m.GetID())
			segs[id] = bprSegment{
				freeFlow: freeFlow[id],
				capacity: s.GetCapacity(),
				alpha:    p.Alpha,
				beta:     p.Beta,
				fixed:    s.IsConnectoid() || math.IsInf(freeFlow[id], 1) || s.GetCapacity() <= 0,
			}
		}
		b.segments[m.GetID()] = segs
	}
	return nil
}

func (b *BPRFunction) segment(mode *da.Mode, segmentId da.Index) (*bprSegment, error) {
	if b.segments == nil {
		return nil, ErrNotInitialized
	}
	if int(mode.GetID()) >= len(b.segments) {
		return nil, fmt.Errorf("bpr: mode %s not registered at initialization", mode.GetExternalId())
	}
	return &b.segments[mode.GetID()][segmentId], nil
}

func (s *bprSegment) cost(flow float64) float64 {
	if s.fixed || s.alpha == 0 {
		return s.freeFlow
	}
	return s.freeFlow * (1 + s.alpha*math.Pow(flow/s.capacity, s.beta))
}

func (b *BPRFunction) GetSegmentCost(mode *da.Mode, segmentId da.Index, flow float64) (float64, error) {
	s, err := b.segment(mode, segmentId)
	if err != nil {
		return 0, err
	}
	cost := s.cost(flow)
	if err := checkCost(BPR, mode, segmentId, cost); err != nil {
		return 0, err
	}
	return cost, nil
}

// GetDTravelTimeDFlow returns (beta-1) * freeFlow * alpha * (flow/capacity)^(beta-1), assuming beta > 1.
func (b *BPRFunction) GetDTravelTimeDFlow(mode *da.Mode, segmentId da.Index, flow float64) float64 {
	s, err := b.segment(mode, segmentId)
	if err != nil || s.fixed {
		return 0
	}
	return (s.beta - 1) * s.freeFlow * s.alpha * math.Pow(flow/s.capacity, s.beta-1)
}

func (b *BPRFunction) PopulateCosts(mode *da.Mode, flows []float64, costs []float64) error {
	if b.segments == nil {
		return ErrNotInitialized
	}
	if err := checkArrays(b.graph, flows, costs); err != nil {
		return err
	}
	segs := b.segments[mode.GetID()]
	for id := range segs {
		cost := segs[id].cost(flows[id])
		if err := checkCost(BPR, mode, da.Index(id), cost); err != nil {
			return err
		}
		costs[id] = cost
	}
	return nil
}
