package assignment

import (
	"errors"
	"fmt"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/shortestpath"
	"go.uber.org/zap"
)

var ErrDisconnectedZone = errors.New("shortest path tree has no incoming segment for a vertex on the path")

// ModeLoadResult is the all-or-nothing loading of one mode.
type ModeLoadResult struct {
	Flows            []float64 // pcu/h
	ConvexityBound   float64   // sum of pcu demand * shortest path cost
	LoadedDemand     float64   // vehicles/h
	DroppedDemand    float64   // vehicles/h of unreachable od pairs
	UnreachablePairs int
	Skims            *ODSkim
	Paths            *ODPaths
}

type LoadOptions struct {
	RecordSkims bool
	RecordPaths bool
}

// NetworkLoader assigns od demand of one mode to shortest paths. It owns its shortest path
// scratch state and must not be shared between goroutines.
type NetworkLoader struct {
	graph         *da.Graph
	dijkstra      *shortestpath.OneToAllDijkstra
	demandEpsilon float64
	log           *zap.Logger
	warned        map[odKey]struct{}
	walk          []da.Index // segments of the current path, destination first
}

func NewNetworkLoader(graph *da.Graph, demandEpsilon float64, log *zap.Logger) *NetworkLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &NetworkLoader{
		graph:         graph,
		dijkstra:      shortestpath.NewOneToAllDijkstra(graph),
		demandEpsilon: demandEpsilon,
		log:           log,
		warned:        make(map[odKey]struct{}),
	}
}

// Load routes every od cell above the demand epsilon on its shortest path under costs. Origins
// are processed in zone id order so each tree is built once and reused for all destinations.
func (l *NetworkLoader) Load(mode *da.Mode, od *demand.ODMatrix, costs []float64,
	opts LoadOptions) (*ModeLoadResult, error) {
	g := l.graph
	res := &ModeLoadResult{Flows: make([]float64, g.NumberOfEdgeSegments())}
	if opts.RecordSkims {
		res.Skims = NewODSkim(g.NumberOfZones())
	}
	if opts.RecordPaths {
		res.Paths = NewODPaths()
	}
	if od == nil {
		return res, nil
	}

	var loadErr error
	od.ForEachOrigin(func(origin da.Index) {
		if loadErr != nil {
			return
		}
		loadErr = l.loadOrigin(mode, od, origin, costs, opts, res)
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return res, nil
}

func (l *NetworkLoader) loadOrigin(mode *da.Mode, od *demand.ODMatrix, origin da.Index, costs []float64,
	opts LoadOptions, res *ModeLoadResult) error {
	g := l.graph
	originCentroid := g.GetZone(origin).GetCentroid()

	var tree *shortestpath.ShortestPathResult
	var err error
	od.ForEachDestination(origin, func(destination da.Index, vehicles float64) {
		if err != nil || vehicles <= l.demandEpsilon {
			return
		}
		if destination == origin {
			if res.Skims != nil {
				res.Skims.Set(origin, destination, 0)
			}
			return
		}
		if tree == nil {
			tree, err = l.dijkstra.Execute(originCentroid, costs)
			if err != nil {
				err = fmt.Errorf("mode %s origin zone %s: %w", mode.GetExternalId(), g.GetZone(origin).GetExternalId(), err)
				return
			}
		}

		destCentroid := g.GetZone(destination).GetCentroid()
		pathCost := tree.GetCostTo(destCentroid)
		if isUnreachable(pathCost) {
			l.warnUnreachable(mode, origin, destination, vehicles)
			res.DroppedDemand += vehicles
			res.UnreachablePairs++
			if res.Skims != nil {
				res.Skims.Set(origin, destination, pathCost)
			}
			return
		}

		l.walk = l.walk[:0]
		if walkErr := tree.ForEachSegmentTo(destCentroid, func(s *da.EdgeSegment) {
			l.walk = append(l.walk, s.GetID())
		}); walkErr != nil {
			err = fmt.Errorf("%w: mode %s, od (%s,%s): %w", ErrDisconnectedZone, mode.GetExternalId(),
				g.GetZone(origin).GetExternalId(), g.GetZone(destination).GetExternalId(), walkErr)
			return
		}

		pcuFlow := vehicles * mode.GetPcu()
		for _, segId := range l.walk {
			res.Flows[segId] += pcuFlow
		}
		res.ConvexityBound += pcuFlow * pathCost
		res.LoadedDemand += vehicles
		if res.Skims != nil {
			res.Skims.Set(origin, destination, pathCost)
		}
		if res.Paths != nil {
			res.Paths.Set(origin, destination, tree.PathTo(destCentroid))
		}
	})
	return err
}

// warnUnreachable logs every unreachable od pair once per loader.
func (l *NetworkLoader) warnUnreachable(mode *da.Mode, origin, destination da.Index, vehicles float64) {
	key := odKey{origin: origin, destination: destination}
	if _, ok := l.warned[key]; ok {
		return
	}
	l.warned[key] = struct{}{}
	l.log.Warn("destination unreachable, od demand dropped",
		zap.String("mode", mode.GetExternalId()),
		zap.String("origin", l.graph.GetZone(origin).GetExternalId()),
		zap.String("destination", l.graph.GetZone(destination).GetExternalId()),
		zap.Float64("demand", vehicles))
}
