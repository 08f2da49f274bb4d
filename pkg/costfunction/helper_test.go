package costfunction

import (
	"testing"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
	"github.com/stretchr/testify/require"
)

type costTestNetwork struct {
	graph      *da.Graph
	modes      *da.Modes
	car        *da.Mode
	bus        *da.Mode
	period     *demand.TimePeriod
	roadType   da.Index
	long       da.Index // a->b, 100 km at 50 km/h, 1000 pcu/h
	carOnly    da.Index // b->c, 10 km, car only
	connectoid da.Index // centroid->a
}

// newCostTestNetwork builds zone - a -> b -> c. When secondLayer is set the b->c edge lies on layer 1.
func newCostTestNetwork(t *testing.T, secondLayer bool) *costTestNetwork {
	t.Helper()
	ctx := da.NewIdContext()
	modes := da.NewModes()
	car, err := modes.RegisterPredefined(ctx, da.CAR)
	require.NoError(t, err)
	bus, err := modes.RegisterPredefined(ctx, da.BUS)
	require.NoError(t, err)

	b := da.NewGraphBuilder(ctx, modes)
	road, err := b.AddSegmentType("road", 1000, 150, map[da.Index]da.ModeProperties{
		car.GetID(): {MaxSpeed: 50, CriticalSpeed: 40},
		bus.GetID(): {MaxSpeed: 50, CriticalSpeed: 40},
	})
	require.NoError(t, err)

	va, _ := b.AddVertex("a", 0, 0, true)
	vb, _ := b.AddVertex("b", 0, 1, true)
	vc, _ := b.AddVertex("c", 0, 1.1, true)
	_, err = b.AddLink("ab", va, vb, 100, road, 1, 0, da.NewModeSet(car.GetID(), bus.GetID()), false)
	require.NoError(t, err)
	layer := uint8(0)
	if secondLayer {
		layer = 1
	}
	bc, err := b.AddEdge("bc", vb, vc, 10, layer)
	require.NoError(t, err)
	_, err = b.AddLinkSegment(bc, vb, road, 1, 0, da.NewModeSet(car.GetID()), 0)
	require.NoError(t, err)

	zone, _, err := b.AddZoneWithCentroid("z", 0, -0.01, true)
	require.NoError(t, err)
	_, err = b.AddConnectoid(zone, va, 0, modes.AllModeSet())
	require.NoError(t, err)

	g, err := b.Build()
	require.NoError(t, err)

	tps := demand.NewTimePeriods()
	period, err := tps.Register(ctx, "am", "", 8*3600, 3600)
	require.NoError(t, err)

	net := &costTestNetwork{graph: g, modes: modes, car: car, bus: bus, period: period, roadType: road}
	net.long, _ = g.FindEdgeSegment(va, vb)
	net.carOnly, _ = g.FindEdgeSegment(vb, vc)
	z, _ := g.GetZoneByExternalId("z")
	net.connectoid, _ = g.FindEdgeSegment(z.GetCentroid(), va)
	return net
}
