package shortestpath

import (
	"errors"
	"fmt"
	"math"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
)

var (
	ErrUnreachable       = errors.New("destination is unreachable")
	ErrNoIncomingSegment = errors.New("vertex on the path has no incoming segment")
)

// ShortestPathResult is the tree of one search: min cost and incoming segment per vertex.
type ShortestPathResult struct {
	origin   da.Index
	graph    *da.Graph
	costs    []float64
	incoming []da.Index
}

func (r *ShortestPathResult) GetOrigin() da.Index {
	return r.origin
}

// GetCostTo returns +Inf for an unreachable vertex.
func (r *ShortestPathResult) GetCostTo(v da.Index) float64 {
	return r.costs[v]
}

func (r *ShortestPathResult) IsReachable(v da.Index) bool {
	return !math.IsInf(r.costs[v], 1)
}

// GetIncomingSegment returns INVALID_SEGMENT_ID for the origin and unreachable vertices.
func (r *ShortestPathResult) GetIncomingSegment(v da.Index) da.Index {
	return r.incoming[v]
}

// ForEachSegmentTo walks the path to destination backwards, calling handle for every segment
// from the last to the first.
func (r *ShortestPathResult) ForEachSegmentTo(destination da.Index, handle func(s *da.EdgeSegment)) error {
	if !r.IsReachable(destination) {
		return ErrUnreachable
	}
	for v := destination; v != r.origin; {
		segId := r.incoming[v]
		if segId == da.INVALID_SEGMENT_ID {
			return fmt.Errorf("%w: vertex %d", ErrNoIncomingSegment, v)
		}
		s := r.graph.GetEdgeSegment(segId)
		handle(s)
		v = s.GetUpstream()
	}
	return nil
}

// PathTo returns the segment ids from origin to destination in travel order, nil if unreachable.
func (r *ShortestPathResult) PathTo(destination da.Index) []da.Index {
	path := make([]da.Index, 0, 16)
	if err := r.ForEachSegmentTo(destination, func(s *da.EdgeSegment) {
		path = append(path, s.GetID())
	}); err != nil {
		return nil
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
