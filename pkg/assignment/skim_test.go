package assignment

import (
	"math"
	"testing"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/stretchr/testify/assert"
)

type skimEntry struct {
	origin, destination da.Index
	cost                float64
}

func collectSkims(s *ODSkim) []skimEntry {
	var got []skimEntry
	s.ForEachCell(func(origin, destination da.Index, cost float64) {
		got = append(got, skimEntry{origin, destination, cost})
	})
	return got
}

func TestODSkim(t *testing.T) {
	t.Run("loader order appends", func(t *testing.T) {
		s := NewODSkim(3)
		s.Set(0, 0, 0)
		s.Set(0, 1, 1.5)
		s.Set(0, 2, math.Inf(1))
		s.Set(2, 0, 0.25)

		assert.Equal(t, 3, s.NumberOfZones())
		assert.Equal(t, []skimEntry{{0, 1, 1.5}, {0, 2, math.Inf(1)}, {2, 0, 0.25}}, collectSkims(s))
		assert.Equal(t, 0.0, s.Get(0, 0))
		assert.True(t, math.IsInf(s.Get(0, 2), 1))
		assert.Equal(t, 0.0, s.Get(1, 2))
	})

	t.Run("out of order set keeps rows sorted", func(t *testing.T) {
		s := NewODSkim(4)
		s.Set(1, 3, 3)
		s.Set(1, 0, 1)
		s.Set(1, 2, 2)
		s.Set(1, 2, 2.5)

		assert.Equal(t, []skimEntry{{1, 0, 1}, {1, 2, 2.5}, {1, 3, 3}}, collectSkims(s))
	})

	t.Run("zero cost removes the pair", func(t *testing.T) {
		s := NewODSkim(2)
		s.Set(0, 0, 4)
		s.Set(0, 1, 5)
		s.Set(0, 0, 0)

		assert.Equal(t, []skimEntry{{0, 1, 5}}, collectSkims(s))
		assert.Equal(t, 0.0, s.Get(0, 0))
	})
}

func TestODSkimLongRow(t *testing.T) {
	const zones = 20000
	s := NewODSkim(zones)
	for d := 0; d < zones; d++ {
		s.Set(0, da.Index(d), float64(d+1))
	}
	assert.Len(t, s.rows[0], zones)
	assert.Equal(t, float64(zones), s.Get(0, zones-1))
}
