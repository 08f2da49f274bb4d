package demand

import (
	"bufio"
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimePeriodsRegister(t *testing.T) {
	ctx := da.NewIdContext()
	tps := NewTimePeriods()

	testCases := []struct {
		name     string
		ext      string
		start    int
		duration int
		wantErr  bool
	}{
		{name: "morning peak", ext: "am", start: 8 * 3600, duration: 3600},
		{name: "zero duration", ext: "zero", start: 0, duration: 0, wantErr: true},
		{name: "start after midnight", ext: "late", start: 86400, duration: 60, wantErr: true},
		{name: "duplicate", ext: "am", start: 0, duration: 60, wantErr: true},
		{name: "evening peak", ext: "pm", start: 17 * 3600, duration: 7200},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tps.Register(ctx, tt.ext, tt.name, tt.start, tt.duration)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}

	require.Equal(t, 2, tps.Count())
	pm, ok := tps.GetByExternalId("pm")
	require.True(t, ok)
	assert.Equal(t, da.Index(1), pm.GetID())
	assert.Equal(t, 2.0, pm.GetDurationHours())
	assert.Equal(t, "pm [17:00 +7200s]", pm.String())
}

func TestODMatrix(t *testing.T) {
	od := NewODMatrix(3)
	require.NoError(t, od.Set(0, 2, 100))
	require.NoError(t, od.Add(0, 2, 50))
	require.NoError(t, od.Set(2, 1, 10))

	assert.ErrorIs(t, od.Set(1, 1, -1), ErrNegativeDemand)
	assert.ErrorIs(t, od.Set(1, 1, math.NaN()), ErrNegativeDemand)
	assert.ErrorIs(t, od.Set(1, 1, math.Inf(1)), ErrNegativeDemand)
	assert.Error(t, od.Set(3, 0, 1))

	assert.Equal(t, 150.0, od.Get(0, 2))
	assert.Equal(t, 160.0, od.Total())
	assert.Equal(t, 2, od.NumberOfNonZeros())

	origins := make([]da.Index, 0)
	od.ForEachOrigin(func(origin da.Index) {
		origins = append(origins, origin)
	})
	assert.Equal(t, []da.Index{0, 2}, origins)

	require.NoError(t, od.Set(0, 2, 0))
	assert.Equal(t, 1, od.NumberOfNonZeros())
}

func newTestDemands(t *testing.T) (*Demands, *da.Modes) {
	t.Helper()
	ctx := da.NewIdContext()
	modes := da.NewModes()
	car, err := modes.RegisterPredefined(ctx, da.CAR)
	require.NoError(t, err)
	bus, err := modes.RegisterPredefined(ctx, da.BUS)
	require.NoError(t, err)

	tps := NewTimePeriods()
	am, err := tps.Register(ctx, "am", "morning peak", 8*3600, 3600)
	require.NoError(t, err)
	pm, err := tps.Register(ctx, "pm", "evening \"rush\"", 17*3600, 3600)
	require.NoError(t, err)

	d := NewDemands(3, tps)
	require.NoError(t, d.GetOrCreate(bus.GetID(), am.GetID()).Set(0, 1, 12.5))
	require.NoError(t, d.GetOrCreate(car.GetID(), am.GetID()).Set(0, 1, 1000))
	require.NoError(t, d.GetOrCreate(car.GetID(), am.GetID()).Set(2, 0, 0.001))
	d.GetOrCreate(car.GetID(), pm.GetID())
	return d, modes
}

func TestDemandsModesOf(t *testing.T) {
	d, _ := newTestDemands(t)
	assert.Equal(t, []da.Index{0, 1}, d.ModesOf(0))
	assert.Equal(t, []da.Index{0}, d.ModesOf(1))
	assert.Nil(t, d.Get(1, 1))
	assert.Error(t, d.Register(0, 1, NewODMatrix(4)))
}

func TestDemandsWriteRead(t *testing.T) {
	d, modes := newTestDemands(t)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, Write(w, d, modes))
	require.NoError(t, w.Flush())

	got, err := Read(bufio.NewReader(&buf), da.NewIdContext(), modes)
	require.NoError(t, err)

	assert.Equal(t, 3, got.NumberOfZones())
	require.Equal(t, 2, got.GetTimePeriods().Count())
	pm, _ := got.GetTimePeriods().GetByExternalId("pm")
	assert.Equal(t, "evening \"rush\"", pm.GetDescription())

	assert.Equal(t, 1000.0, got.Get(0, 0).Get(0, 1))
	assert.Equal(t, 0.001, got.Get(0, 0).Get(2, 0))
	assert.Equal(t, 12.5, got.Get(1, 0).Get(0, 1))
	require.NotNil(t, got.Get(0, 1))
	assert.Equal(t, 0, got.Get(0, 1).NumberOfNonZeros())
}

func TestDemandsFileRoundTrip(t *testing.T) {
	d, modes := newTestDemands(t)
	filename := filepath.Join(t.TempDir(), "demand.bz2")
	require.NoError(t, WriteDemands(filename, d, modes))

	got, err := ReadDemands(filename, da.NewIdContext(), modes)
	require.NoError(t, err)
	assert.Equal(t, d.Get(0, 0).Total(), got.Get(0, 0).Total())
}

func TestReadODTriplets(t *testing.T) {
	ctx := da.NewIdContext()
	modes := da.NewModes()
	_, err := modes.RegisterPredefined(ctx, da.CAR)
	require.NoError(t, err)
	b := da.NewGraphBuilder(ctx, modes)
	for _, ext := range []string{"north", "south"} {
		_, _, err := b.AddZoneWithCentroid(ext, 0, 0, false)
		require.NoError(t, err)
	}
	g, err := b.Build()
	require.NoError(t, err)

	od := NewODMatrix(g.NumberOfZones())
	require.NoError(t, ReadODTriplets(strings.NewReader("# o d demand\nnorth south 300\nnorth south 20\nsouth north 5\n"), g, od))
	assert.Equal(t, 320.0, od.Get(0, 1))
	assert.Equal(t, 5.0, od.Get(1, 0))

	assert.Error(t, ReadODTriplets(strings.NewReader("north east 1\n"), g, od))
	assert.Error(t, ReadODTriplets(strings.NewReader("south north -10\n"), g, od))
}
