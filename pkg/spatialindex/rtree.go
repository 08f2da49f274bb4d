package spatialindex

import (
	"sort"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

// Rtree indexes physical links by the bounding box of their end points.
type Rtree struct {
	tr   *rtree.RTreeG[LinkEntry]
	size int
}

// LinkEntry is one indexed edge with the modes allowed on any of its segments.
type LinkEntry struct {
	edgeId  datastructure.Index
	vertexA datastructure.Index
	vertexB datastructure.Index
	coordA  geo.Coordinate
	coordB  geo.Coordinate
	modes   datastructure.ModeSet
}

func NewLinkEntry(edgeId, vertexA, vertexB datastructure.Index, coordA, coordB geo.Coordinate,
	modes datastructure.ModeSet) LinkEntry {
	return LinkEntry{
		edgeId:  edgeId,
		vertexA: vertexA,
		vertexB: vertexB,
		coordA:  coordA,
		coordB:  coordB,
		modes:   modes,
	}
}

func (le LinkEntry) GetEdgeId() datastructure.Index {
	return le.edgeId
}

func (le LinkEntry) GetVertexA() datastructure.Index {
	return le.vertexA
}

func (le LinkEntry) GetVertexB() datastructure.Index {
	return le.vertexB
}

func (le LinkEntry) GetModes() datastructure.ModeSet {
	return le.modes
}

// NearestVertex returns the end point of the link closest to the projection of (lat, lon).
func (le LinkEntry) NearestVertex(lat, lon float64) (datastructure.Index, geo.Coordinate) {
	if geo.FractionAlong(le.coordA, le.coordB, geo.NewCoordinate(lat, lon)) <= 0.5 {
		return le.vertexA, le.coordA
	}
	return le.vertexB, le.coordB
}

// LinkCandidate is a search hit with its perpendicular distance (km) to the query point.
type LinkCandidate struct {
	LinkEntry
	Distance float64
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[LinkEntry]
	return &Rtree{
		tr: &tr,
	}
}

func (rt *Rtree) Insert(le LinkEntry) {
	minLat, maxLat := min(le.coordA.Lat, le.coordB.Lat), max(le.coordA.Lat, le.coordB.Lat)
	minLon, maxLon := min(le.coordA.Lon, le.coordB.Lon), max(le.coordA.Lon, le.coordB.Lon)
	rt.tr.Insert([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat}, le)
	rt.size++
}

func (rt *Rtree) Len() int {
	return rt.size
}

// Build indexes every non-connectoid edge of a built graph whose end points have a position.
func (rt *Rtree) Build(graph *datastructure.Graph, log *zap.Logger) {
	log.Info("Building R-tree spatial index...")
	modes := make([]datastructure.ModeSet, graph.NumberOfEdges())
	for _, s := range graph.GetEdgeSegments() {
		modes[s.GetEdgeId()] |= s.GetAllowedModes()
	}
	for _, e := range graph.GetEdges() {
		if e.IsConnectoid() {
			continue
		}
		a, b := graph.GetVertex(e.GetVertexA()), graph.GetVertex(e.GetVertexB())
		if !a.HasPosition() || !b.HasPosition() {
			continue
		}
		rt.Insert(NewLinkEntry(e.GetID(), a.GetID(), b.GetID(), geo.NewCoordinate(a.GetLat(), a.GetLon()),
			geo.NewCoordinate(b.GetLat(), b.GetLon()), modes[e.GetID()]))
	}
	log.Info("R-tree spatial index built.", zap.Int("links", rt.size))
}

// SearchWithinRadius returns the links within radius (km) of (qLat, qLon) ordered by perpendicular
// distance, at most maxResults of them.
func (rt *Rtree) SearchWithinRadius(qLat, qLon, radius float64, maxResults int) []LinkCandidate {
	lowerLat, lowerLon := geo.GetDestinationPoint(qLat, qLon, 225, radius*1.4143)
	upperLat, upperLon := geo.GetDestinationPoint(qLat, qLon, 45, radius*1.4143)

	q := geo.NewCoordinate(qLat, qLon)
	results := make([]LinkCandidate, 0, 10)
	rt.tr.Search([2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat},
		func(min, max [2]float64, data LinkEntry) bool {
			d := geo.PointLinePerpendicularDistance(data.coordA, data.coordB, q)
			if d <= radius {
				results = append(results, LinkCandidate{LinkEntry: data, Distance: d})
			}
			return true
		})

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].edgeId < results[j].edgeId
	})
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}
