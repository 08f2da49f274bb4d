package costfunction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBPRNumericExample(t *testing.T) {
	net := newCostTestNetwork(t, false)
	bpr := NewBPRCostFunction(nil)
	require.NoError(t, bpr.Initialize(net.graph, net.modes, net.period))

	cost, err := bpr.GetSegmentCost(net.car, net.long, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, cost, 1e-12)

	assert.InDelta(t, 3.0, bpr.GetDTravelTimeDFlow(net.car, net.long, 1000), 1e-12)
}

func TestBPRMonotonicInFlow(t *testing.T) {
	net := newCostTestNetwork(t, false)
	bpr := NewBPRCostFunction(nil)
	require.NoError(t, bpr.Initialize(net.graph, net.modes, net.period))

	prev := 0.0
	for _, flow := range []float64{0, 1, 100, 500, 999, 1000, 2500, 10000} {
		cost, err := bpr.GetSegmentCost(net.car, net.long, flow)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, cost, prev)
		prev = cost
	}
}

func TestBPRParameterPriority(t *testing.T) {
	net := newCostTestNetwork(t, false)
	seg := net.graph.GetEdgeSegment(net.long)

	params := NewBPRParameterRegistry()
	assert.Equal(t, BPRParameters{Alpha: 0.5, Beta: 4}, params.Resolve(seg, net.car.GetID()))

	require.NoError(t, params.SetDefault(BPRParameters{Alpha: 0.15, Beta: 4}))
	assert.Equal(t, 0.15, params.Resolve(seg, net.car.GetID()).Alpha)

	require.NoError(t, params.SetModeDefault(net.car.GetID(), BPRParameters{Alpha: 1, Beta: 2}))
	assert.Equal(t, 1.0, params.Resolve(seg, net.car.GetID()).Alpha)
	assert.Equal(t, 0.15, params.Resolve(seg, net.bus.GetID()).Alpha)

	require.NoError(t, params.SetSegmentTypeDefault(net.roadType, net.car.GetID(), BPRParameters{Alpha: 2, Beta: 2}))
	assert.Equal(t, 2.0, params.Resolve(seg, net.car.GetID()).Alpha)

	require.NoError(t, params.SetSegmentOverride(net.long, net.car.GetID(), BPRParameters{Alpha: 3, Beta: 1}))
	assert.Equal(t, BPRParameters{Alpha: 3, Beta: 1}, params.Resolve(seg, net.car.GetID()))
	assert.Equal(t, 2.0, params.Resolve(net.graph.GetEdgeSegment(net.carOnly), net.car.GetID()).Alpha)

	assert.Error(t, params.SetDefault(BPRParameters{Alpha: -1, Beta: 4}))
	assert.Error(t, params.SetModeDefault(0, BPRParameters{Alpha: 1, Beta: math.NaN()}))

	bpr := NewBPRCostFunction(params)
	require.NoError(t, bpr.Initialize(net.graph, net.modes, net.period))
	cost, err := bpr.GetSegmentCost(net.car, net.long, 500)
	require.NoError(t, err)
	assert.InDelta(t, 2.0*(1+3*0.5), cost, 1e-12)
}

func TestBPRFixedSegments(t *testing.T) {
	net := newCostTestNetwork(t, false)
	bpr := NewBPRCostFunction(nil)

	_, err := bpr.GetSegmentCost(net.car, net.long, 0)
	assert.ErrorIs(t, err, ErrNotInitialized)
	require.NoError(t, bpr.Initialize(net.graph, net.modes, net.period))

	testCases := []struct {
		name    string
		want    float64
		segment func() (float64, error)
	}{
		{
			name: "disallowed mode is infinite",
			segment: func() (float64, error) {
				return bpr.GetSegmentCost(net.bus, net.carOnly, 10)
			},
			want: math.Inf(1),
		},
		{
			name: "connectoid ignores flow",
			segment: func() (float64, error) {
				return bpr.GetSegmentCost(net.car, net.connectoid, 1e12)
			},
			want: 0,
		},
		{
			name: "zero flow is free flow",
			segment: func() (float64, error) {
				return bpr.GetSegmentCost(net.car, net.carOnly, 0)
			},
			want: 0.2,
		},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.segment()
			require.NoError(t, err)
			if math.IsInf(tt.want, 1) {
				assert.True(t, math.IsInf(got, 1))
				return
			}
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestBPRPopulateCosts(t *testing.T) {
	net := newCostTestNetwork(t, false)
	bpr := NewBPRCostFunction(nil)
	require.NoError(t, bpr.Initialize(net.graph, net.modes, net.period))

	n := net.graph.NumberOfEdgeSegments()
	flows := make([]float64, n)
	flows[net.long] = 1000
	costs := make([]float64, n)
	require.NoError(t, bpr.PopulateCosts(net.bus, flows, costs))
	assert.InDelta(t, 3.0, costs[net.long], 1e-12)
	assert.True(t, math.IsInf(costs[net.carOnly], 1))

	assert.ErrorIs(t, bpr.PopulateCosts(net.car, flows[:1], costs), ErrInvalidSegmentArray)
}
