package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
)

const linkSegmentsHeader = "mode segment_id edge upstream downstream length_km capacity_pcu_h flow_pcu_h cost_h vc_ratio\n"

// WriteLinkSegments writes one row per physical link segment and mode allowed on it. Connectoids
// are virtual and skipped.
func WriteLinkSegments(out io.Writer, g *da.Graph, tp *assignment.TimePeriodResult) error {
	if _, err := io.WriteString(out, linkSegmentsHeader); err != nil {
		return err
	}
	total := tp.TotalFlows()
	for _, m := range tp.Modes {
		mode := strconv.Quote(m.Mode.GetExternalId())
		for _, s := range g.GetEdgeSegments() {
			if s.IsConnectoid() || !s.IsModeAllowed(m.Mode.GetID()) {
				continue
			}
			id := s.GetID()
			vc := 0.0
			if s.GetCapacity() > 0 {
				vc = total[id] / s.GetCapacity()
			}
			_, err := fmt.Fprintf(out, "%s %d %s %s %s %s %s %s %s %s\n", mode, id,
				strconv.Quote(g.GetEdge(s.GetEdgeId()).GetExternalId()),
				strconv.Quote(g.GetVertex(s.GetUpstream()).GetExternalId()),
				strconv.Quote(g.GetVertex(s.GetDownstream()).GetExternalId()),
				util.FormatFloat(g.GetSegmentLength(id)), util.FormatFloat(s.GetCapacity()),
				util.FormatFloat(m.Flows[id]), util.FormatFloat(m.Costs[id]), util.FormatFloat(util.RoundFloat(vc, 6)))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

const convergenceHeader = "iteration gap convexity_bound measured_cost step_size duration_ms\n"

func WriteConvergenceLog(out io.Writer, tp *assignment.TimePeriodResult) error {
	if _, err := io.WriteString(out, convergenceHeader); err != nil {
		return err
	}
	for _, it := range tp.ConvergenceLog {
		_, err := fmt.Fprintf(out, "%d %s %s %s %s %d\n", it.Iteration, util.FormatFloat(it.Gap),
			util.FormatFloat(it.ConvexityBound), util.FormatFloat(it.MeasuredNetworkCost),
			util.FormatFloat(it.StepSize), it.Duration.Milliseconds())
		if err != nil {
			return err
		}
	}
	return nil
}
