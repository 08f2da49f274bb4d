package datastructure

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphWriteRead(t *testing.T) {
	net := buildTestNetwork(t)
	g := net.graph

	filename := filepath.Join(t.TempDir(), "network.graph")
	require.NoError(t, g.WriteGraph(filename))

	got, err := ReadGraph(filename)
	require.NoError(t, err)

	assert.Equal(t, g.NumberOfVertices(), got.NumberOfVertices())
	assert.Equal(t, g.NumberOfEdges(), got.NumberOfEdges())
	assert.Equal(t, g.NumberOfEdgeSegments(), got.NumberOfEdgeSegments())
	assert.Equal(t, g.NumberOfZones(), got.NumberOfZones())
	assert.Equal(t, g.GetModes().Count(), got.GetModes().Count())

	for i, s := range g.GetEdgeSegments() {
		gs := got.GetEdgeSegment(Index(i))
		assert.Equal(t, s.GetUpstream(), gs.GetUpstream())
		assert.Equal(t, s.GetDownstream(), gs.GetDownstream())
		assert.Equal(t, s.GetCapacity(), gs.GetCapacity())
		assert.Equal(t, s.GetAllowedModes(), gs.GetAllowedModes())
		assert.Equal(t, s.IsConnectoid(), gs.IsConnectoid())
		for _, m := range g.GetModes().All() {
			gm := got.GetModes().Get(m.GetID())
			assert.Equal(t, g.GetFreeFlowTravelTime(m, s.GetID()), got.GetFreeFlowTravelTime(gm, gs.GetID()))
		}
	}

	z, ok := got.GetZoneByExternalId("A")
	require.True(t, ok)
	assert.True(t, got.IsCentroid(z.GetCentroid()))
	v, ok := got.GetVertexByExternalId("centroid_A")
	require.True(t, ok)
	assert.Equal(t, z.GetCentroid(), v)
}
