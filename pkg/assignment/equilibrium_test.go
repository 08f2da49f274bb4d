package assignment

import (
	"math"
	"sync"
	"testing"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/costfunction"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEquilibriumAssignmentZeroDemand(t *testing.T) {
	net := newTwoRouteNetwork(t)
	ea, err := NewEquilibriumAssignment(net.graph, net.demands(t, 0, "am"), DefaultConfig(), zap.NewNop())
	require.NoError(t, err)

	res, err := ea.Run()
	require.NoError(t, err)
	require.Len(t, res.TimePeriods, 1)
	tp := res.TimePeriods[0]
	assert.Equal(t, Converged, tp.Termination)
	assert.Equal(t, 1, tp.Iterations)
	assert.Equal(t, 0.0, tp.Gap)
	for _, f := range tp.TotalFlows() {
		assert.Equal(t, 0.0, f)
	}
	assert.Equal(t, ea.GetRunId(), res.RunId)
}

func TestEquilibriumAssignmentConverges(t *testing.T) {
	net := newTwoRouteNetwork(t)
	cfg := DefaultConfig()
	cfg.MaxIterations = 2000
	cfg.GapEpsilon = 1e-2
	ea, err := NewEquilibriumAssignment(net.graph, net.demands(t, 3000, "am"), cfg, zap.NewNop())
	require.NoError(t, err)

	res, err := ea.Run()
	require.NoError(t, err)
	tp := res.TimePeriods[0]
	assert.Equal(t, Converged, tp.Termination)
	assert.LessOrEqual(t, math.Abs(tp.Gap), cfg.GapEpsilon)
	require.Len(t, tp.ConvergenceLog, tp.Iterations)
	for i, it := range tp.ConvergenceLog {
		assert.Equal(t, i+1, it.Iteration)
		assert.GreaterOrEqual(t, it.Gap, -1e-9)
		assert.InDelta(t, 1/float64(i+1), it.StepSize, 1e-12)
	}

	car := tp.GetModeResult(net.car.GetID())
	require.NotNil(t, car)
	assert.InDelta(t, 3000, car.Flows[net.fast]+car.Flows[net.slow], 1e-6)
	assert.Greater(t, car.Flows[net.fast], 0.0)
	assert.Greater(t, car.Flows[net.slow], 0.0)
	assert.InEpsilon(t, car.Costs[net.fast], car.Costs[net.slow], 0.05, "used routes have near equal cost")
}

func TestEquilibriumAssignmentReportsGapOfEmittedFlows(t *testing.T) {
	testCases := []struct {
		name          string
		smoothing     string
		costFunction  costfunction.Options
		mustConverge  bool
		maxIterations int
	}{
		{name: "msa bpr", smoothing: MSA, costFunction: costfunction.Options{Name: costfunction.BPR},
			mustConverge: true, maxIterations: 2000},
		{name: "sra bpr", smoothing: SRA, costFunction: costfunction.Options{Name: costfunction.BPR},
			maxIterations: 2000},
		{name: "fixed step bpr", smoothing: FIXED_STEP, costFunction: costfunction.Options{Name: costfunction.BPR},
			maxIterations: 200},
		{name: "msa steady state newell", smoothing: MSA, mustConverge: true, maxIterations: 2000,
			costFunction: costfunction.Options{Name: costfunction.STEADY_STATE,
				FundamentalDiagram: costfunction.NEWELL_DIAGRAM}},
		{name: "msa steady state quadratic-linear", smoothing: MSA, mustConverge: true, maxIterations: 2000,
			costFunction: costfunction.Options{Name: costfunction.STEADY_STATE,
				FundamentalDiagram: costfunction.QUADRATIC_LINEAR_DIAGRAM}},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			net := newTwoRouteNetwork(t)
			d := net.demands(t, 3000, "am")
			cfg := DefaultConfig()
			cfg.Smoothing = tt.smoothing
			cfg.CostFunction = tt.costFunction
			cfg.MaxIterations = tt.maxIterations
			cfg.GapEpsilon = 1e-2
			ea, err := NewEquilibriumAssignment(net.graph, d, cfg, zap.NewNop())
			require.NoError(t, err)

			res, err := ea.Run()
			require.NoError(t, err)
			tp := res.TimePeriods[0]
			if tt.mustConverge {
				require.Equal(t, Converged, tp.Termination)
			}
			require.Len(t, tp.ConvergenceLog, tp.Iterations)
			assert.Equal(t, tp.Gap, tp.ConvergenceLog[len(tp.ConvergenceLog)-1].Gap)

			own := emittedGap(t, net.graph, d, tp)
			assert.InDelta(t, own, tp.Gap, 1e-9, "reported gap belongs to the emitted flows")
			if tp.Termination == Converged {
				assert.LessOrEqual(t, own, cfg.GapEpsilon)
			}
		})
	}
}

func TestEquilibriumAssignmentSteadyState(t *testing.T) {
	run := func(t *testing.T, diagram string) *ModeResult {
		net := newTwoRouteNetwork(t)
		d := net.demands(t, 3000, "am")
		cfg := DefaultConfig()
		cfg.MaxIterations = 5000
		cfg.GapEpsilon = 1e-3
		cfg.CostFunction = costfunction.Options{Name: costfunction.STEADY_STATE, FundamentalDiagram: diagram}
		ea, err := NewEquilibriumAssignment(net.graph, d, cfg, zap.NewNop())
		require.NoError(t, err)

		res, err := ea.Run()
		require.NoError(t, err)
		tp := res.TimePeriods[0]
		assert.Equal(t, Converged, tp.Termination)
		assert.LessOrEqual(t, emittedGap(t, net.graph, d, tp), cfg.GapEpsilon)
		car := tp.GetModeResult(net.car.GetID())
		require.NotNil(t, car)
		assert.InDelta(t, 3000, car.Flows[net.fast]+car.Flows[net.slow], 1e-6)
		return car
	}
	net := newTwoRouteNetwork(t)

	// fast queues above 1000 pcu/h until its cost reaches the 1.5 h of slow, at 2000 pcu/h
	newell := run(t, costfunction.NEWELL_DIAGRAM)
	assert.InDelta(t, 2000, newell.Flows[net.fast], 50)
	assert.InDelta(t, 1.5, newell.Costs[net.fast], 0.03)
	assert.InDelta(t, 1.5, newell.Costs[net.slow], 1e-9, "slow stays below capacity")

	// speeds drop towards 45 km/h before capacity, so fast attracts less demand
	ql := run(t, costfunction.QUADRATIC_LINEAR_DIAGRAM)
	assert.Less(t, ql.Flows[net.fast], newell.Flows[net.fast]-100)
	assert.Greater(t, ql.Costs[net.slow], 1.5)
	assert.InEpsilon(t, ql.Costs[net.fast], ql.Costs[net.slow], 0.02)
}

func TestEquilibriumAssignmentUnreachableDestination(t *testing.T) {
	net := newTwoRouteNetwork(t)
	tps := demand.NewTimePeriods()
	tp, err := tps.Register(net.ctx, "am", "am", 0, 3600)
	require.NoError(t, err)
	d := demand.NewDemands(net.graph.NumberOfZones(), tps)
	od := d.GetOrCreate(net.car.GetID(), tp.GetID())
	require.NoError(t, od.Set(net.zoneO, net.zoneD, 1000))
	require.NoError(t, od.Set(net.zoneO, net.zoneE, 77))

	cfg := DefaultConfig()
	cfg.MaxIterations = 20
	cfg.RecordSkims = true
	ea, err := NewEquilibriumAssignment(net.graph, d, cfg, zap.NewNop())
	require.NoError(t, err)

	res, err := ea.Run()
	require.NoError(t, err)
	require.Len(t, res.TimePeriods, 1)
	tpRes := res.TimePeriods[0]
	car := tpRes.GetModeResult(net.car.GetID())
	require.NotNil(t, car)

	assert.Equal(t, 77.0, car.DroppedDemand)
	assert.Equal(t, 1, car.UnreachablePairs)
	assert.InDelta(t, 1000, car.Flows[net.fast]+car.Flows[net.slow], 1e-6)
	assert.InDelta(t, 1000, car.Flows[net.originIn], 1e-6, "only the reachable pair leaves the origin")
	assert.True(t, math.IsInf(car.Skims.Get(net.zoneO, net.zoneE), 1))
	assert.GreaterOrEqual(t, tpRes.Gap, 0.0)
	for _, it := range tpRes.ConvergenceLog {
		assert.GreaterOrEqual(t, it.Gap, -1e-9)
	}
}

func TestEquilibriumAssignmentMaxIterations(t *testing.T) {
	net := newTwoRouteNetwork(t)
	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	cfg.GapEpsilon = 1e-9
	cfg.RecordSkims = true
	cfg.RecordPaths = true
	ea, err := NewEquilibriumAssignment(net.graph, net.demands(t, 3000, "am"), cfg, zap.NewNop())
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []IterationResult
	ea.AddIterationListener(func(_ *demand.TimePeriod, it IterationResult) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, it)
	})

	res, err := ea.Run()
	require.NoError(t, err)
	tp := res.TimePeriods[0]
	assert.Equal(t, MaxIterationsReached, tp.Termination)
	assert.Equal(t, 3, tp.Iterations)
	assert.Len(t, seen, 3)

	// all on fast, then half/half, then one third on fast
	car := tp.GetModeResult(net.car.GetID())
	assert.InDelta(t, 1000, car.Flows[net.fast], 1e-9)
	assert.InDelta(t, 2000, car.Flows[net.slow], 1e-9)
	assert.InDelta(t, 1.5, car.Costs[net.fast], 1e-9)
	assert.InDelta(t, 2.25, car.Costs[net.slow], 1e-9)

	// skims and paths follow the final costs
	require.NotNil(t, car.Skims)
	assert.InDelta(t, 1.5, car.Skims.Get(net.zoneO, net.zoneD), 1e-9)
	path, ok := car.Paths.Get(net.zoneO, net.zoneD)
	require.True(t, ok)
	assert.Contains(t, path, net.fast)
	assert.NotContains(t, path, net.slow)
}

func TestEquilibriumAssignmentInitialCosts(t *testing.T) {
	net := newTwoRouteNetwork(t)
	cfg := DefaultConfig()
	cfg.MaxIterations = 1
	ea, err := NewEquilibriumAssignment(net.graph, net.demands(t, 3000, "am", "pm"), cfg, zap.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, ea.SetInitialCosts(net.car.GetID(), []float64{1}), ErrInvalidInitialCosts)
	negative := net.freeFlowCosts()
	negative[net.fast] = -1
	assert.ErrorIs(t, ea.SetInitialCosts(net.car.GetID(), negative), ErrInvalidInitialCosts)

	slowFirst := net.freeFlowCosts()
	slowFirst[net.fast] = 10
	require.NoError(t, ea.SetInitialCosts(net.car.GetID(), slowFirst))
	pm, ok := ea.demands.GetTimePeriods().GetByExternalId("pm")
	require.True(t, ok)
	require.NoError(t, ea.SetInitialCostsForPeriod(pm.GetID(), net.car.GetID(), net.freeFlowCosts()))

	res, err := ea.Run()
	require.NoError(t, err)
	require.Len(t, res.TimePeriods, 2)

	am := res.TimePeriods[0].GetModeResult(net.car.GetID())
	assert.Equal(t, 3000.0, am.Flows[net.slow])
	assert.Equal(t, 0.0, am.Flows[net.fast])

	pmRes := res.GetTimePeriodResult(pm.GetID()).GetModeResult(net.car.GetID())
	assert.Equal(t, 3000.0, pmRes.Flows[net.fast], "period seeding takes precedence")
}

func TestEquilibriumAssignmentFailingPeriod(t *testing.T) {
	net := newTwoRouteNetwork(t)
	d := net.demands(t, 3000, "am", "pm")
	pm, ok := d.GetTimePeriods().GetByExternalId("pm")
	require.True(t, ok)
	require.NoError(t, d.Register(da.Index(7), pm.GetID(), demand.NewODMatrix(net.graph.NumberOfZones())))

	cfg := DefaultConfig()
	cfg.MaxIterations = 5
	cfg.ParallelTimePeriods = 2
	ea, err := NewEquilibriumAssignment(net.graph, d, cfg, zap.NewNop())
	require.NoError(t, err)

	res, err := ea.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time period pm")
	require.Len(t, res.TimePeriods, 1)
	assert.Equal(t, "am", res.TimePeriods[0].TimePeriod.GetExternalId())
}

func TestNewEquilibriumAssignmentErrors(t *testing.T) {
	net := newTwoRouteNetwork(t)

	_, err := NewEquilibriumAssignment(net.graph, demand.NewDemands(1, demand.NewTimePeriods()), DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Smoothing = "bogus"
	_, err = NewEquilibriumAssignment(net.graph, net.demands(t, 1, "am"), cfg, nil)
	assert.Error(t, err)
}
