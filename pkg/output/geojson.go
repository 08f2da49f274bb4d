package output

import (
	"io"
	"math"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// NewFlowFeatureCollection builds one LineString feature per physical link segment whose two ends
// have a position. Properties carry the total flow, the volume/capacity ratio and per mode flow
// and finite cost.
func NewFlowFeatureCollection(g *da.Graph, tp *assignment.TimePeriodResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	total := tp.TotalFlows()
	for _, s := range g.GetEdgeSegments() {
		if s.IsConnectoid() {
			continue
		}
		up, down := g.GetVertex(s.GetUpstream()), g.GetVertex(s.GetDownstream())
		if !up.HasPosition() || !down.HasPosition() {
			continue
		}
		id := s.GetID()
		f := geojson.NewFeature(orb.LineString{
			orb.Point{up.GetLon(), up.GetLat()},
			orb.Point{down.GetLon(), down.GetLat()},
		})
		f.Properties["segment_id"] = id
		f.Properties["edge"] = g.GetEdge(s.GetEdgeId()).GetExternalId()
		f.Properties["capacity"] = s.GetCapacity()
		if total != nil {
			f.Properties["flow"] = total[id]
			if s.GetCapacity() > 0 {
				f.Properties["vc_ratio"] = total[id] / s.GetCapacity()
			}
		}
		for _, m := range tp.Modes {
			if !s.IsModeAllowed(m.Mode.GetID()) {
				continue
			}
			mode := m.Mode.GetExternalId()
			f.Properties["flow_"+mode] = m.Flows[id]
			if c := m.Costs[id]; !math.IsInf(c, 0) && !math.IsNaN(c) {
				f.Properties["cost_"+mode] = c
			}
		}
		fc.Append(f)
	}
	return fc
}

func WriteGeoJSON(out io.Writer, g *da.Graph, tp *assignment.TimePeriodResult) error {
	bytes, err := NewFlowFeatureCollection(g, tp).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = out.Write(bytes)
	return err
}
