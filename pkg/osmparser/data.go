package osmparser

import (
	"github.com/TrafficPLANit/PLANit-sub005/pkg"
)

type NodeType uint8

const (
	END_NODE NodeType = iota
	BETWEEN_NODE
	JUNCTION_NODE
)

type nodeCoord struct {
	lat float64
	lon float64
}

type node struct {
	id    int64
	coord nodeCoord
}

// highwayDefaults are the macroscopic link properties used when a way carries no explicit tag.
type highwayDefaults struct {
	speed             float64 // km/h
	criticalSpeed     float64 // km/h, speed at capacity
	lanes             uint8   // per direction
	capacityPerLane   float64 // pcu/h/lane
	maxDensityPerLane float64 // pcu/km/lane
}

var highwayDefaultTable = map[pkg.OsmHighwayType]highwayDefaults{
	pkg.MOTORWAY:       {100, 80, 2, 2000, 180},
	pkg.TRUNK:          {70, 56, 2, 1900, 180},
	pkg.PRIMARY:        {65, 52, 1, 1800, 180},
	pkg.SECONDARY:      {60, 48, 1, 1600, 180},
	pkg.TERTIARY:       {50, 40, 1, 1400, 180},
	pkg.UNCLASSIFIED:   {40, 32, 1, 1200, 180},
	pkg.RESIDENTIAL:    {30, 24, 1, 1000, 180},
	pkg.SERVICE:        {20, 16, 1, 800, 180},
	pkg.MOTORWAY_LINK:  {70, 56, 1, 1800, 180},
	pkg.TRUNK_LINK:     {65, 52, 1, 1700, 180},
	pkg.PRIMARY_LINK:   {60, 48, 1, 1600, 180},
	pkg.SECONDARY_LINK: {50, 40, 1, 1400, 180},
	pkg.TERTIARY_LINK:  {40, 32, 1, 1200, 180},
	pkg.LIVING_STREET:  {5, 4, 1, 600, 180},
	pkg.ROAD:           {20, 16, 1, 800, 180},
	pkg.TRACK:          {15, 12, 1, 600, 180},
	pkg.MOTORROAD:      {90, 72, 2, 2000, 180},
	pkg.UNKNOWN:        {30, 24, 1, 1000, 180},
}

func getHighwayDefaults(h pkg.OsmHighwayType) highwayDefaults {
	if d, ok := highwayDefaultTable[h]; ok {
		return d
	}
	return highwayDefaultTable[pkg.UNKNOWN]
}

var (
	// https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
	acceptedHighway = map[string]struct{}{
		"motorway":         struct{}{},
		"motorway_link":    struct{}{},
		"trunk":            struct{}{},
		"trunk_link":       struct{}{},
		"primary":          struct{}{},
		"primary_link":     struct{}{},
		"secondary":        struct{}{},
		"secondary_link":   struct{}{},
		"residential":      struct{}{},
		"residential_link": struct{}{},
		"service":          struct{}{},
		"tertiary":         struct{}{},
		"tertiary_link":    struct{}{},
		"road":             struct{}{},
		"track":            struct{}{},
		"unclassified":     struct{}{},
		"living_street":    struct{}{},
		"motorroad":        struct{}{},
	}

	//https://wiki.openstreetmap.org/wiki/Key:barrier
	// a barrier node with access=no splits the way into two disconnected links
	acceptedBarrierType = map[string]struct{}{
		"bollard":        struct{}{},
		"swing_gate":     struct{}{},
		"jersey_barrier": struct{}{},
		"lift_gate":      struct{}{},
		"block":          struct{}{},
		"gate":           struct{}{},
	}
)
