package output

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"gopkg.in/yaml.v3"
)

type NetworkSummary struct {
	Vertices     int `json:"vertices" yaml:"vertices"`
	Edges        int `json:"edges" yaml:"edges"`
	EdgeSegments int `json:"edge_segments" yaml:"edge_segments"`
	Zones        int `json:"zones" yaml:"zones"`
	Modes        int `json:"modes" yaml:"modes"`

	// BoundingBox is [minLon, minLat, maxLon, maxLat] of the positioned vertices, as in GeoJSON.
	BoundingBox []float64 `json:"bounding_box,omitempty" yaml:"bounding_box,omitempty"`
}

func NewNetworkSummary(g *da.Graph) NetworkSummary {
	ns := NetworkSummary{
		Vertices:     g.NumberOfVertices(),
		Edges:        g.NumberOfEdges(),
		EdgeSegments: g.NumberOfEdgeSegments(),
		Zones:        g.NumberOfZones(),
		Modes:        g.GetModes().Count(),
	}
	if bb := g.GetBoundingBox(); bb != nil {
		ns.BoundingBox = []float64{bb.GetMinLon(), bb.GetMinLat(), bb.GetMaxLon(), bb.GetMaxLat()}
	}
	return ns
}

type ModeSummary struct {
	Mode             string  `json:"mode" yaml:"mode"`
	PcuHours         float64 `json:"pcu_hours" yaml:"pcu_hours"`
	PcuKilometres    float64 `json:"pcu_km" yaml:"pcu_km"`
	LoadedSegments   int     `json:"loaded_segments" yaml:"loaded_segments"`
	DroppedDemand    float64 `json:"dropped_demand" yaml:"dropped_demand"`
	UnreachablePairs int     `json:"unreachable_pairs" yaml:"unreachable_pairs"`
}

type TimePeriodSummary struct {
	TimePeriod      string        `json:"time_period" yaml:"time_period"`
	Termination     string        `json:"termination" yaml:"termination"`
	Iterations      int           `json:"iterations" yaml:"iterations"`
	Gap             float64       `json:"gap" yaml:"gap"`
	DurationSeconds float64       `json:"duration_seconds" yaml:"duration_seconds"`
	Modes           []ModeSummary `json:"modes" yaml:"modes"`
}

// Summary is the run report written next to the detailed outputs.
type Summary struct {
	RunId       string              `json:"run_id" yaml:"run_id"`
	Network     NetworkSummary      `json:"network" yaml:"network"`
	TimePeriods []TimePeriodSummary `json:"time_periods" yaml:"time_periods"`
}

func NewSummary(g *da.Graph, res *assignment.AssignmentResult) Summary {
	s := Summary{
		RunId:       res.RunId,
		Network:     NewNetworkSummary(g),
		TimePeriods: make([]TimePeriodSummary, 0, len(res.TimePeriods)),
	}
	for _, tp := range res.TimePeriods {
		tps := TimePeriodSummary{
			TimePeriod:      tp.TimePeriod.GetExternalId(),
			Termination:     tp.Termination.String(),
			Iterations:      tp.Iterations,
			Gap:             tp.Gap,
			DurationSeconds: tp.Duration.Seconds(),
			Modes:           make([]ModeSummary, 0, len(tp.Modes)),
		}
		for _, m := range tp.Modes {
			ms := ModeSummary{
				Mode:             m.Mode.GetExternalId(),
				DroppedDemand:    m.DroppedDemand,
				UnreachablePairs: m.UnreachablePairs,
			}
			for id, f := range m.Flows {
				if f <= 0 {
					continue
				}
				if !math.IsInf(m.Costs[id], 1) {
					ms.PcuHours += f * m.Costs[id]
				}
				ms.PcuKilometres += f * g.GetSegmentLength(da.Index(id))
				if !g.GetEdgeSegment(da.Index(id)).IsConnectoid() {
					ms.LoadedSegments++
				}
			}
			tps.Modes = append(tps.Modes, ms)
		}
		s.TimePeriods = append(s.TimePeriods, tps)
	}
	return s
}

// WriteSummary serializes s to json or yaml, selected by the extension of filename.
func WriteSummary(filename string, s Summary) error {
	var (
		bytes []byte
		err   error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		bytes, err = yaml.Marshal(s)
	case ".json":
		bytes, err = json.MarshalIndent(s, "", "\t")
	default:
		return fmt.Errorf("summary %s: unsupported extension, use .yaml, .yml or .json", filename)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, bytes, 0o644)
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(filename string) (Summary, error) {
	var s Summary
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return s, err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &s)
	case ".json":
		err = json.Unmarshal(bytes, &s)
	default:
		err = fmt.Errorf("summary %s: unsupported extension", filename)
	}
	return s, err
}
