package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/geo"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
)

const (
	skimsHeader = "mode origin destination cost_h\n"
	pathsHeader = "mode origin destination segment_ids polyline\n"
)

// WriteSkims writes the od cost of every pair with demand; unreachable pairs are written as inf
// and zero cost pairs are omitted.
func WriteSkims(out io.Writer, g *da.Graph, tp *assignment.TimePeriodResult) error {
	if _, err := io.WriteString(out, skimsHeader); err != nil {
		return err
	}
	for _, m := range tp.Modes {
		if m.Skims == nil {
			continue
		}
		mode := strconv.Quote(m.Mode.GetExternalId())
		var err error
		m.Skims.ForEachCell(func(origin, destination da.Index, cost float64) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(out, "%s %s %s %s\n", mode, strconv.Quote(g.GetZone(origin).GetExternalId()),
				strconv.Quote(g.GetZone(destination).GetExternalId()), util.FormatFloat(cost))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// WritePaths writes the segment ids of every od path, comma separated, and the encoded polyline
// of its positioned vertices ("-" when none has a position).
func WritePaths(out io.Writer, g *da.Graph, tp *assignment.TimePeriodResult) error {
	if _, err := io.WriteString(out, pathsHeader); err != nil {
		return err
	}
	for _, m := range tp.Modes {
		if m.Paths == nil {
			continue
		}
		mode := strconv.Quote(m.Mode.GetExternalId())
		var err error
		m.Paths.ForEachPath(func(origin, destination da.Index, path []da.Index) {
			if err != nil {
				return
			}
			ids := make([]string, len(path))
			for i, s := range path {
				ids[i] = strconv.FormatUint(uint64(s), 10)
			}
			encoded := PathPolyline(g, path)
			if encoded == "" {
				encoded = "-"
			}
			_, err = fmt.Fprintf(out, "%s %s %s %s %s\n", mode, strconv.Quote(g.GetZone(origin).GetExternalId()),
				strconv.Quote(g.GetZone(destination).GetExternalId()), strings.Join(ids, ","), strconv.Quote(encoded))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// PathPolyline encodes the positioned vertices visited by path.
func PathPolyline(g *da.Graph, path []da.Index) string {
	return geo.PolylineFromCoords(PathCoordinates(g, path))
}

// PathCoordinates returns the positions of the vertices visited by path in travel order,
// skipping vertices without a position.
func PathCoordinates(g *da.Graph, path []da.Index) []geo.Coordinate {
	coords := make([]geo.Coordinate, 0, len(path)+1)
	add := func(v da.Index) {
		vertex := g.GetVertex(v)
		if vertex.HasPosition() {
			coords = append(coords, geo.NewCoordinate(vertex.GetLat(), vertex.GetLon()))
		}
	}
	for i, s := range path {
		seg := g.GetEdgeSegment(s)
		if i == 0 {
			add(seg.GetUpstream())
		}
		add(seg.GetDownstream())
	}
	return coords
}
