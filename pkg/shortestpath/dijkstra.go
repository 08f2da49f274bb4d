package shortestpath

import (
	"errors"
	"fmt"
	"math"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
)

var (
	ErrCostArraySize    = errors.New("cost array does not match the number of edge segments")
	ErrNegativeEdgeCost = errors.New("dijkstra needs non-negative edge segment costs")
	ErrInvalidOrigin    = errors.New("origin vertex does not exist")
)

// OneToAllDijkstra is a label setting one-to-all search over edge segment costs. Its scratch
// arrays and heap are reused by every search, so one instance must not be shared between
// goroutines.
type OneToAllDijkstra struct {
	graph *da.Graph

	costs     []float64  // min cost per vertex
	incoming  []da.Index // incoming segment per vertex on the optimal path
	heapNodes []*da.PriorityQueueNode[da.Index]
	settled   []bool
	touched   []da.Index

	pq *da.MinHeap[da.Index]
}

func NewOneToAllDijkstra(graph *da.Graph) *OneToAllDijkstra {
	n := graph.NumberOfVertices()
	d := &OneToAllDijkstra{
		graph:     graph,
		costs:     make([]float64, n),
		incoming:  make([]da.Index, n),
		heapNodes: make([]*da.PriorityQueueNode[da.Index], n),
		settled:   make([]bool, n),
		touched:   make([]da.Index, 0, n),
		pq:        da.NewFourAryHeap[da.Index](),
	}
	d.pq.Preallocate(n)
	for v := 0; v < n; v++ {
		d.costs[v] = math.Inf(1)
		d.incoming[v] = da.INVALID_SEGMENT_ID
		d.heapNodes[v] = da.NewPriorityQueueNode(math.Inf(1), da.Index(v))
	}
	return d
}

// reset restores the labels of the vertices touched by the previous search only.
func (d *OneToAllDijkstra) reset() {
	for _, v := range d.touched {
		d.costs[v] = math.Inf(1)
		d.incoming[v] = da.INVALID_SEGMENT_ID
		d.settled[v] = false
	}
	d.touched = d.touched[:0]
	d.pq.Reset()
}

func (d *OneToAllDijkstra) label(v da.Index, cost float64, segment da.Index) {
	if math.IsInf(d.costs[v], 1) && d.incoming[v] == da.INVALID_SEGMENT_ID {
		d.touched = append(d.touched, v)
	}
	d.costs[v] = cost
	d.incoming[v] = segment
}

// Execute searches from origin over segmentCosts (one slot per edge segment id). Segments with
// +Inf cost are never relaxed. Centroids other than origin are reached but not passed through.
// The result stays valid until the next call.
func (d *OneToAllDijkstra) Execute(origin da.Index, segmentCosts []float64) (*ShortestPathResult, error) {
	if len(segmentCosts) != d.graph.NumberOfEdgeSegments() {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrCostArraySize, len(segmentCosts),
			d.graph.NumberOfEdgeSegments())
	}
	if int(origin) >= d.graph.NumberOfVertices() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOrigin, origin)
	}
	d.reset()

	d.label(origin, 0, da.INVALID_SEGMENT_ID)
	originNode := d.heapNodes[origin]
	originNode.SetRank(0)
	d.pq.Insert(originNode)

	var searchErr error
	for !d.pq.IsEmpty() {
		node, _ := d.pq.ExtractMin()
		u := node.GetItem()
		d.settled[u] = true

		if u != origin && d.graph.IsCentroid(u) {
			continue
		}

		uCost := d.costs[u]
		d.graph.ForOutSegmentsOf(u, func(s *da.EdgeSegment) {
			if searchErr != nil {
				return
			}
			sCost := segmentCosts[s.GetID()]
			if math.IsInf(sCost, 1) {
				return
			}
			if sCost < 0 || math.IsNaN(sCost) {
				searchErr = fmt.Errorf("%w: edge segment %d cost %v", ErrNegativeEdgeCost, s.GetID(), sCost)
				return
			}

			v := s.GetDownstream()
			if d.settled[v] {
				return
			}
			newCost := uCost + sCost
			// strict improvement only: the first discovered segment wins ties
			if newCost >= d.costs[v] {
				return
			}

			vNode := d.heapNodes[v]
			inHeap := vNode.InHeap()
			d.label(v, newCost, s.GetID())
			if inHeap {
				d.pq.DecreaseKey(vNode, newCost)
			} else {
				vNode.SetRank(newCost)
				d.pq.Insert(vNode)
			}
		})
		if searchErr != nil {
			return nil, searchErr
		}
	}

	return &ShortestPathResult{
		origin:   origin,
		graph:    d.graph,
		costs:    d.costs,
		incoming: d.incoming,
	}, nil
}
