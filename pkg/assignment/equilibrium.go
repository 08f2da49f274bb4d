package assignment

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/concurrent"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/costfunction"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidInitialCosts = errors.New("initial costs must have one non-negative slot per edge segment")

// IterationListener receives the convergence log entry of every iteration. Listeners of different
// time periods may be called concurrently.
type IterationListener func(tp *demand.TimePeriod, it IterationResult)

type costKey struct {
	mode       da.Index
	timePeriod da.Index // allTimePeriods applies to every period
}

const allTimePeriods = da.Index(math.MaxUint32)

// EquilibriumAssignment runs a static traffic assignment for every time period of the demands.
// The graph is read only during a run.
type EquilibriumAssignment struct {
	runId        string
	graph        *da.Graph
	demands      *demand.Demands
	cfg          Config
	log          *zap.Logger
	listeners    []IterationListener
	initialCosts map[costKey][]float64
}

func NewEquilibriumAssignment(graph *da.Graph, demands *demand.Demands, cfg Config,
	log *zap.Logger) (*EquilibriumAssignment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if demands.NumberOfZones() != graph.NumberOfZones() {
		return nil, fmt.Errorf("demands cover %d zones, network has %d", demands.NumberOfZones(), graph.NumberOfZones())
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EquilibriumAssignment{
		runId:        uuid.NewString(),
		graph:        graph,
		demands:      demands,
		cfg:          cfg,
		log:          log,
		initialCosts: make(map[costKey][]float64),
	}, nil
}

func (ea *EquilibriumAssignment) GetRunId() string {
	return ea.runId
}

func (ea *EquilibriumAssignment) GetConfig() Config {
	return ea.cfg
}

func (ea *EquilibriumAssignment) AddIterationListener(l IterationListener) {
	ea.listeners = append(ea.listeners, l)
}

// SetInitialCosts seeds the costs of mode in every time period instead of costs at zero flow.
func (ea *EquilibriumAssignment) SetInitialCosts(modeId da.Index, costs []float64) error {
	return ea.SetInitialCostsForPeriod(allTimePeriods, modeId, costs)
}

// SetInitialCostsForPeriod seeds the costs of mode in one time period. It takes precedence over
// SetInitialCosts.
func (ea *EquilibriumAssignment) SetInitialCostsForPeriod(timePeriodId, modeId da.Index, costs []float64) error {
	if len(costs) != ea.graph.NumberOfEdgeSegments() {
		return fmt.Errorf("%w: mode %d got %d slots, network has %d", ErrInvalidInitialCosts, modeId, len(costs),
			ea.graph.NumberOfEdgeSegments())
	}
	for id, c := range costs {
		if c < 0 || math.IsNaN(c) {
			return fmt.Errorf("%w: mode %d edge segment %d cost %v", ErrInvalidInitialCosts, modeId, id, c)
		}
	}
	seeded := make([]float64, len(costs))
	copy(seeded, costs)
	ea.initialCosts[costKey{mode: modeId, timePeriod: timePeriodId}] = seeded
	return nil
}

func (ea *EquilibriumAssignment) getInitialCosts(timePeriodId, modeId da.Index) ([]float64, bool) {
	if c, ok := ea.initialCosts[costKey{mode: modeId, timePeriod: timePeriodId}]; ok {
		return c, true
	}
	c, ok := ea.initialCosts[costKey{mode: modeId, timePeriod: allTimePeriods}]
	return c, ok
}

type periodOutcome struct {
	timePeriod *demand.TimePeriod
	result     *TimePeriodResult
	err        error
}

// Run assigns every time period. A failing time period does not stop the others: the result
// holds every successful period and the error combines the failures.
func (ea *EquilibriumAssignment) Run() (*AssignmentResult, error) {
	metrics.RunStarted()
	defer metrics.RunFinished()

	if ea.cfg.CheckConnectivity {
		ea.reportDisconnectedZones()
	}

	periods := ea.demands.GetTimePeriods().All()
	ea.log.Sugar().Infof("run %s: assigning %d time periods with %s cost and %s smoothing", ea.runId,
		len(periods), ea.cfg.CostFunction.Name, ea.cfg.Smoothing)

	outcomes := concurrent.Run(ea.cfg.ParallelTimePeriods, periods, func(tp *demand.TimePeriod) periodOutcome {
		res, err := ea.RunTimePeriod(tp)
		return periodOutcome{timePeriod: tp, result: res, err: err}
	})
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].timePeriod.GetID() < outcomes[j].timePeriod.GetID()
	})

	result := &AssignmentResult{RunId: ea.runId, TimePeriods: make([]*TimePeriodResult, 0, len(outcomes))}
	var err error
	for _, o := range outcomes {
		if o.err != nil {
			metrics.ObserveTimePeriod("error", 0)
			ea.log.Error("time period failed", zap.String("time_period", o.timePeriod.GetExternalId()),
				zap.Error(o.err))
			err = multierr.Append(err, o.err)
			continue
		}
		result.TimePeriods = append(result.TimePeriods, o.result)
	}
	return result, err
}

type modeState struct {
	mode   *da.Mode
	od     *demand.ODMatrix
	loader *NetworkLoader
	flows  []float64 // current iterate, pcu/h
	costs  []float64 // costs the next loading uses, hours
	loaded *ModeLoadResult
}

func (ms *modeState) load(opts LoadOptions) error {
	loaded, err := ms.loader.Load(ms.mode, ms.od, ms.costs, opts)
	if err != nil {
		return err
	}
	ms.loaded = loaded
	return nil
}

// RunTimePeriod iterates loading, smoothing and cost updates for one time period until the gap
// drops below the tolerance or the iteration cap is reached.
func (ea *EquilibriumAssignment) RunTimePeriod(tp *demand.TimePeriod) (*TimePeriodResult, error) {
	start := time.Now()
	res, err := ea.runTimePeriod(tp)
	if err != nil {
		return nil, fmt.Errorf("time period %s: %w", tp.GetExternalId(), err)
	}
	res.Duration = time.Since(start)
	metrics.ObserveTimePeriod(res.Termination.String(), res.Iterations)
	ea.log.Sugar().Infof("time period %s: %s after %d iterations, gap %g (%v)", tp.GetExternalId(),
		res.Termination, res.Iterations, res.Gap, res.Duration)
	return res, nil
}

func (ea *EquilibriumAssignment) runTimePeriod(tp *demand.TimePeriod) (*TimePeriodResult, error) {
	g := ea.graph
	n := g.NumberOfEdgeSegments()

	costFn, err := costfunction.NewCostFunction(ea.cfg.CostFunction, ea.log)
	if err != nil {
		return nil, err
	}
	if err := costFn.Initialize(g, g.GetModes(), tp); err != nil {
		return nil, err
	}
	smoothing, err := NewSmoothing(ea.cfg.Smoothing, ea.cfg.FixedStep)
	if err != nil {
		return nil, err
	}

	zeroFlows := make([]float64, n)
	states := make([]*modeState, 0, 2)
	for _, modeId := range ea.demands.ModesOf(tp.GetID()) {
		mode := g.GetModes().Get(modeId)
		if mode == nil {
			return nil, fmt.Errorf("demand references unknown mode id %d", modeId)
		}
		ms := &modeState{
			mode:   mode,
			od:     ea.demands.Get(modeId, tp.GetID()),
			loader: NewNetworkLoader(g, ea.cfg.DemandEpsilon, ea.log),
			flows:  make([]float64, n),
			costs:  make([]float64, n),
		}
		if seeded, ok := ea.getInitialCosts(tp.GetID(), modeId); ok {
			copy(ms.costs, seeded)
			// a seeded cost never opens a segment the mode may not use
			for _, s := range g.GetEdgeSegments() {
				if !s.IsModeAllowed(modeId) {
					ms.costs[s.GetID()] = math.Inf(1)
				}
			}
		} else if err := costFn.PopulateCosts(mode, zeroFlows, ms.costs); err != nil {
			return nil, err
		}
		states = append(states, ms)
	}

	gapFn := NewLinkBasedRelativeDualityGap()
	stop := StopCriterion{Epsilon: ea.cfg.GapEpsilon, MaxIterations: ea.cfg.MaxIterations}
	res := &TimePeriodResult{TimePeriod: tp, ConvergenceLog: make([]IterationResult, 0, 16)}

	// pending is the iterate smoothed in the previous pass. Its gap needs shortest paths under its
	// own costs, which the next loading provides, so it is judged one pass later and emitted as is.
	var pending *IterationResult
	for iteration := 1; ; iteration++ {
		passStart := time.Now()
		gapFn.Reset()

		if err := ea.loadModes(states, LoadOptions{}); err != nil {
			return nil, err
		}
		for _, ms := range states {
			if err := gapFn.IncreaseConvexityBound(ms.loaded.ConvexityBound); err != nil {
				return nil, fmt.Errorf("mode %s: %w", ms.mode.GetExternalId(), err)
			}
			gapFn.IncreaseMeasuredNetworkCost(dot(ms.costs, ms.flows))
		}

		emptyStart := false
		if pending != nil {
			gap, err := gapFn.ComputeGap()
			if err != nil {
				return nil, err
			}
			pending.Gap = gap
			pending.ConvexityBound = gapFn.GetConvexityBound()
			pending.MeasuredNetworkCost = gapFn.GetMeasuredNetworkCost()
			pending.Duration += time.Since(passStart)
			ea.recordIteration(tp, res, *pending)
			if done, reason := stop.Check(pending.Iteration, gapFn); done {
				res.Iterations = pending.Iteration
				res.Termination = reason
				res.Gap = gap
				break
			}
		} else {
			emptyStart = gapFn.IsZeroBound()
		}

		totalResidual := 0.0
		for _, ms := range states {
			r := residual(ms.flows, ms.loaded.Flows)
			totalResidual += r * r
		}
		smoothing.UpdateStep(iteration, math.Sqrt(totalResidual))
		for _, ms := range states {
			ms.flows = smoothing.Smooth(ms.flows, ms.loaded.Flows)
		}

		combined := make([]float64, n)
		for _, ms := range states {
			for i, f := range ms.flows {
				combined[i] += f
			}
		}
		for _, ms := range states {
			if err := costFn.PopulateCosts(ms.mode, combined, ms.costs); err != nil {
				return nil, err
			}
		}

		pending = &IterationResult{
			Iteration: iteration,
			StepSize:  smoothing.GetStepSize(),
			Duration:  time.Since(passStart),
		}
		if emptyStart {
			// zero bound: no demand, or only zero cost paths
			ea.recordIteration(tp, res, *pending)
			res.Iterations = iteration
			res.Termination = Converged
			break
		}
	}

	if ea.cfg.RecordSkims || ea.cfg.RecordPaths {
		// skims and paths follow the costs of the emitted flows
		opts := LoadOptions{RecordSkims: ea.cfg.RecordSkims, RecordPaths: ea.cfg.RecordPaths}
		if err := ea.loadModes(states, opts); err != nil {
			return nil, err
		}
	}

	res.Modes = make([]*ModeResult, 0, len(states))
	for _, ms := range states {
		metrics.AddUnreachablePairs(ms.mode.GetExternalId(), ms.loaded.UnreachablePairs)
		res.Modes = append(res.Modes, &ModeResult{
			Mode:             ms.mode,
			Flows:            ms.flows,
			Costs:            ms.costs,
			Skims:            ms.loaded.Skims,
			Paths:            ms.loaded.Paths,
			DroppedDemand:    ms.loaded.DroppedDemand,
			UnreachablePairs: ms.loaded.UnreachablePairs,
		})
	}
	return res, nil
}

func (ea *EquilibriumAssignment) recordIteration(tp *demand.TimePeriod, res *TimePeriodResult, it IterationResult) {
	res.ConvergenceLog = append(res.ConvergenceLog, it)
	metrics.ObserveIteration(tp.GetExternalId(), it.Gap, it.Duration)
	ea.log.Info("iteration finished", zap.String("time_period", tp.GetExternalId()),
		zap.Int("iteration", it.Iteration), zap.Float64("gap", it.Gap),
		zap.Float64("convexity_bound", it.ConvexityBound),
		zap.Float64("measured_cost", it.MeasuredNetworkCost))
	for _, l := range ea.listeners {
		l(tp, it)
	}
}

// loadModes loads every mode, in parallel when configured. Each mode owns its loader and arrays;
// the caller only touches shared accumulators after this returns.
func (ea *EquilibriumAssignment) loadModes(states []*modeState, opts LoadOptions) error {
	if !ea.cfg.ParallelModes || len(states) < 2 {
		for _, ms := range states {
			if err := ms.load(opts); err != nil {
				return err
			}
		}
		return nil
	}

	var eg errgroup.Group
	for _, ms := range states {
		ms := ms
		eg.Go(func() error {
			return ms.load(opts)
		})
	}
	return eg.Wait()
}

// reportDisconnectedZones warns about od pairs with demand that no path can serve.
func (ea *EquilibriumAssignment) reportDisconnectedZones() {
	g := ea.graph
	for _, mode := range g.GetModes().All() {
		var matrices []*demand.ODMatrix
		for _, tp := range ea.demands.GetTimePeriods().All() {
			if od := ea.demands.Get(mode.GetID(), tp.GetID()); od != nil {
				matrices = append(matrices, od)
			}
		}
		if len(matrices) == 0 {
			continue
		}

		connectivity := g.RunKosaraju(mode)
		disconnected := 0
		for _, pair := range connectivity.DisconnectedZonePairs() {
			for _, od := range matrices {
				if od.Get(pair.Origin, pair.Destination) > ea.cfg.DemandEpsilon {
					disconnected++
					break
				}
			}
		}
		if disconnected > 0 {
			ea.log.Sugar().Warnf("mode %s: %d od pairs with demand are not connected (%d strongly connected components)",
				mode.GetExternalId(), disconnected, connectivity.NumberOfComponents())
		}
	}
}
