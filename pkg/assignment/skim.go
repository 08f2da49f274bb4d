package assignment

import (
	"math"
	"sort"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
)

type skimCell struct {
	destination da.Index
	cost        float64
}

// ODSkim holds the shortest path cost (hours) of every od pair with demand. Unreachable pairs
// are +Inf, intrazonal pairs 0. Zero costs are not stored.
type ODSkim struct {
	rows [][]skimCell // per origin, ascending destination
}

func NewODSkim(numZones int) *ODSkim {
	return &ODSkim{rows: make([][]skimCell, numZones)}
}

// Set appends in O(1) when destinations of an origin arrive in ascending order, which is the
// order the loader visits them in.
func (s *ODSkim) Set(origin, destination da.Index, cost float64) {
	row := s.rows[origin]
	n := len(row)
	if n == 0 || row[n-1].destination < destination {
		if cost != 0 {
			s.rows[origin] = append(row, skimCell{destination: destination, cost: cost})
		}
		return
	}

	i := sort.Search(n, func(i int) bool { return row[i].destination >= destination })
	if row[i].destination == destination {
		if cost == 0 {
			s.rows[origin] = append(row[:i], row[i+1:]...)
		} else {
			row[i].cost = cost
		}
		return
	}
	if cost == 0 {
		return
	}
	row = append(row, skimCell{})
	copy(row[i+1:], row[i:])
	row[i] = skimCell{destination: destination, cost: cost}
	s.rows[origin] = row
}

func (s *ODSkim) Get(origin, destination da.Index) float64 {
	row := s.rows[origin]
	i := sort.Search(len(row), func(i int) bool { return row[i].destination >= destination })
	if i < len(row) && row[i].destination == destination {
		return row[i].cost
	}
	return 0
}

// ForEachCell visits the stored (non zero) costs origin-major.
func (s *ODSkim) ForEachCell(handle func(origin, destination da.Index, cost float64)) {
	for origin, row := range s.rows {
		for _, c := range row {
			handle(da.Index(origin), c.destination, c.cost)
		}
	}
}

func (s *ODSkim) NumberOfZones() int {
	return len(s.rows)
}

type odKey struct {
	origin      da.Index
	destination da.Index
}

// ODPaths holds the edge segment ids of the shortest path of every reachable od pair.
type ODPaths struct {
	paths map[odKey][]da.Index
}

func NewODPaths() *ODPaths {
	return &ODPaths{paths: make(map[odKey][]da.Index)}
}

func (p *ODPaths) Set(origin, destination da.Index, path []da.Index) {
	p.paths[odKey{origin: origin, destination: destination}] = path
}

func (p *ODPaths) Get(origin, destination da.Index) ([]da.Index, bool) {
	path, ok := p.paths[odKey{origin: origin, destination: destination}]
	return path, ok
}

func (p *ODPaths) Count() int {
	return len(p.paths)
}

// ForEachPath visits the paths origin-major.
func (p *ODPaths) ForEachPath(handle func(origin, destination da.Index, path []da.Index)) {
	keys := make([]odKey, 0, len(p.paths))
	for k := range p.paths {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].origin != keys[j].origin {
			return keys[i].origin < keys[j].origin
		}
		return keys[i].destination < keys[j].destination
	})
	for _, k := range keys {
		handle(k.origin, k.destination, p.paths[k])
	}
}

func isUnreachable(cost float64) bool {
	return math.IsInf(cost, 1)
}
