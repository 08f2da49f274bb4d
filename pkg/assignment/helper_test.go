package assignment

import (
	"testing"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// twoRouteNetwork has zones O and D joined by two parallel one-way links:
// fast (60 km, 1 lane, 1 h free flow) and slow (90 km, 2 lanes, 1.5 h free flow).
// Zone E has no connectoids.
type twoRouteNetwork struct {
	ctx        *da.IdContext
	graph      *da.Graph
	car        *da.Mode
	fast, slow da.Index // edge segment ids
	zoneO      da.Index
	zoneD      da.Index
	zoneE      da.Index
	originIn   da.Index // centroid O -> o
}

func newTwoRouteNetwork(t *testing.T) *twoRouteNetwork {
	t.Helper()
	ctx := da.NewIdContext()
	modes := da.NewModes()
	car, err := modes.RegisterPredefined(ctx, da.CAR)
	require.NoError(t, err)
	b := da.NewGraphBuilder(ctx, modes)
	road, err := b.AddSegmentType("road", 1000, 150, map[da.Index]da.ModeProperties{car.GetID(): {MaxSpeed: 60, CriticalSpeed: 45}})
	require.NoError(t, err)

	o, err := b.AddVertex("o", 0, 0, false)
	require.NoError(t, err)
	d, err := b.AddVertex("d", 0, 0, false)
	require.NoError(t, err)
	allowed := da.NewModeSet(car.GetID())
	fastEdge, err := b.AddLink("fast", o, d, 60, road, 1, 0, allowed, false)
	require.NoError(t, err)
	slowEdge, err := b.AddLink("slow", o, d, 90, road, 2, 0, allowed, false)
	require.NoError(t, err)

	zoneO, _, err := b.AddZoneWithCentroid("O", 0, 0, false)
	require.NoError(t, err)
	zoneD, _, err := b.AddZoneWithCentroid("D", 0, 0, false)
	require.NoError(t, err)
	zoneE, _, err := b.AddZoneWithCentroid("E", 0, 0, false)
	require.NoError(t, err)
	_, err = b.AddConnectoid(zoneO, o, 0, allowed)
	require.NoError(t, err)
	_, err = b.AddConnectoid(zoneD, d, 0, allowed)
	require.NoError(t, err)

	g, err := b.Build()
	require.NoError(t, err)

	net := &twoRouteNetwork{ctx: ctx, graph: g, car: car, zoneO: zoneO, zoneD: zoneD, zoneE: zoneE}
	for _, s := range g.GetEdgeSegments() {
		switch {
		case s.GetEdgeId() == fastEdge:
			net.fast = s.GetID()
		case s.GetEdgeId() == slowEdge:
			net.slow = s.GetID()
		case s.IsConnectoid() && s.GetUpstream() == g.GetZone(zoneO).GetCentroid():
			net.originIn = s.GetID()
		}
	}
	return net
}

// freeFlowCosts are the car free flow travel times in hours.
func (n *twoRouteNetwork) freeFlowCosts() []float64 {
	costs := make([]float64, n.graph.NumberOfEdgeSegments())
	for _, s := range n.graph.GetEdgeSegments() {
		costs[s.GetID()] = n.graph.GetFreeFlowTravelTime(n.car, s.GetID())
	}
	return costs
}

// demands registers one time period per external id, each with a car matrix holding
// odDemand from O to D.
func (n *twoRouteNetwork) demands(t *testing.T, odDemand float64, periods ...string) *demand.Demands {
	t.Helper()
	tps := demand.NewTimePeriods()
	d := demand.NewDemands(n.graph.NumberOfZones(), tps)
	for i, id := range periods {
		tp, err := tps.Register(n.ctx, id, id, i*3600, 3600)
		require.NoError(t, err)
		od := d.GetOrCreate(n.car.GetID(), tp.GetID())
		if odDemand > 0 {
			require.NoError(t, od.Set(n.zoneO, n.zoneD, odDemand))
		}
	}
	return d
}

// emittedGap recomputes the relative duality gap of the flows and costs a time period result
// hands out, with fresh shortest paths under those costs.
func emittedGap(t *testing.T, g *da.Graph, d *demand.Demands, tp *TimePeriodResult) float64 {
	t.Helper()
	gapFn := NewLinkBasedRelativeDualityGap()
	for _, mr := range tp.Modes {
		od := d.Get(mr.Mode.GetID(), tp.TimePeriod.GetID())
		loaded, err := NewNetworkLoader(g, 1e-6, zap.NewNop()).Load(mr.Mode, od, mr.Costs, LoadOptions{})
		require.NoError(t, err)
		require.NoError(t, gapFn.IncreaseConvexityBound(loaded.ConvexityBound))
		gapFn.IncreaseMeasuredNetworkCost(dot(mr.Costs, mr.Flows))
	}
	gap, err := gapFn.ComputeGap()
	require.NoError(t, err)
	return gap
}
