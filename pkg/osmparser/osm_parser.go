package osmparser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/TrafficPLANit/PLANit-sub005/pkg"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/geo"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/spatialindex"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"
)

// road modes that may use every accepted highway.
var roadModeTypes = []datastructure.PredefinedModeType{
	datastructure.CAR,
	datastructure.BUS,
	datastructure.TRUCK,
	datastructure.LARGE_VEHICLE,
	datastructure.MOTORCYCLE,
}

// RegisterRoadModes registers the predefined road modes a parsed network carries.
func RegisterRoadModes(ctx *datastructure.IdContext, modes *datastructure.Modes) error {
	for _, t := range roadModeTypes {
		if _, err := modes.RegisterPredefined(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// OsmParser turns an openstreetmap extract into the macroscopic links of a GraphBuilder. Ways are split
// at junction nodes so every link connects two junctions (or way ends).
type OsmParser struct {
	wayNodeMap      map[int64]NodeType
	acceptedNodeMap map[int64]nodeCoord
	barrierNodes    map[int64]bool
	nodeIDMap       map[int64]datastructure.Index
	segmentTypes    map[pkg.OsmHighwayType]datastructure.Index
	builder         *datastructure.GraphBuilder
	index           *spatialindex.Rtree
	roadModes       datastructure.ModeSet
	numCopies       int
	numLinks        int
	log             *zap.Logger
}

func NewOsmParser(builder *datastructure.GraphBuilder, index *spatialindex.Rtree, log *zap.Logger) *OsmParser {
	var roadModes datastructure.ModeSet
	for _, m := range builder.GetModes().All() {
		for _, t := range roadModeTypes {
			if m.GetPredefinedType() == t {
				roadModes = roadModes.Add(m.GetID())
			}
		}
	}
	return &OsmParser{
		wayNodeMap:      make(map[int64]NodeType),
		acceptedNodeMap: make(map[int64]nodeCoord),
		barrierNodes:    make(map[int64]bool),
		nodeIDMap:       make(map[int64]datastructure.Index),
		segmentTypes:    make(map[pkg.OsmHighwayType]datastructure.Index),
		builder:         builder,
		index:           index,
		roadModes:       roadModes,
		log:             log,
	}
}

func (p *OsmParser) NumberOfLinks() int {
	return p.numLinks
}

// Parse reads the pbf file twice: the first pass classifies way nodes, the second collects node
// coordinates and adds the links.
func (p *OsmParser) Parse(mapFile string) error {
	if p.roadModes.IsEmpty() {
		return fmt.Errorf("osm parser: no road mode registered")
	}
	f, err := os.Open(mapFile)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := osmpbf.New(context.Background(), f, 0)
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	// must not be parallel
	countWays := 0
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if p.scanWay(way) {
			if (countWays+1)%50000 == 0 {
				p.log.Sugar().Infof("scanning openstreetmap ways: %d...", countWays+1)
			}
			countWays++
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return err
	}
	scanner.Close()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	scanner = osmpbf.New(context.Background(), f, 0)
	scanner.SkipRelations = true
	defer scanner.Close()

	countNodes := 0
	countWays = 0
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			if (countNodes+1)%50000 == 0 {
				p.log.Sugar().Infof("processing openstreetmap nodes: %d...", countNodes+1)
			}
			countNodes++
			p.acceptNode(o)
		case *osm.Way:
			if !acceptOsmWay(o) || len(o.Nodes) < 2 {
				continue
			}
			if (countWays+1)%50000 == 0 {
				p.log.Sugar().Infof("processing openstreetmap ways: %d...", countWays+1)
			}
			countWays++
			if err := p.processWay(o); err != nil {
				return fmt.Errorf("way %d: %w", o.ID, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	p.log.Info("openstreetmap network parsed",
		zap.Int("ways", countWays),
		zap.Int("vertices", p.builder.NumberOfVertices()),
		zap.Int("links", p.numLinks))
	return nil
}

// scanWay marks the role of every node of an accepted way. A node shared by two ways (or seen twice)
// becomes a junction.
func (p *OsmParser) scanWay(way *osm.Way) bool {
	if len(way.Nodes) < 2 || !acceptOsmWay(way) {
		return false
	}
	for i, n := range way.Nodes {
		if _, ok := p.wayNodeMap[int64(n.ID)]; !ok {
			if i == 0 || i == len(way.Nodes)-1 {
				p.wayNodeMap[int64(n.ID)] = END_NODE
			} else {
				p.wayNodeMap[int64(n.ID)] = BETWEEN_NODE
			}
		} else {
			p.wayNodeMap[int64(n.ID)] = JUNCTION_NODE
		}
	}
	return true
}

func (p *OsmParser) acceptNode(n *osm.Node) {
	if _, ok := p.wayNodeMap[int64(n.ID)]; !ok {
		return
	}
	p.acceptedNodeMap[int64(n.ID)] = nodeCoord{
		lat: n.Lat,
		lon: n.Lon,
	}
	accessType := n.Tags.Find("access")
	barrierType := n.Tags.Find("barrier")
	if _, ok := acceptedBarrierType[barrierType]; ok && accessType == "no" {
		p.barrierNodes[int64(n.ID)] = true
	}
}

type wayInfo struct {
	wayId       int64
	highwayType pkg.OsmHighwayType
	forward     bool
	backward    bool
	lanesFwd    uint8
	lanesBwd    uint8
	speedLimit  float64
}

func (p *OsmParser) processWay(way *osm.Way) error {
	if isRestricted(way.Tags.Find("motor_vehicle")) || isRestricted(way.Tags.Find("access")) {
		return nil
	}
	info, err := parseWayInfo(way)
	if err != nil {
		return err
	}

	waySegment := []node{}
	for _, wayNode := range way.Nodes {
		coord, ok := p.acceptedNodeMap[int64(wayNode.ID)]
		if !ok {
			// node outside the extract: close the current link
			if len(waySegment) > 1 {
				if err := p.processSegment(waySegment, info); err != nil {
					return err
				}
			}
			waySegment = []node{}
			continue
		}
		nodeData := node{id: int64(wayNode.ID), coord: coord}
		waySegment = append(waySegment, nodeData)
		if p.isJunctionNode(nodeData.id) && len(waySegment) > 1 {
			if err := p.processSegment(waySegment, info); err != nil {
				return err
			}
			waySegment = []node{nodeData}
		}
	}
	if len(waySegment) > 1 {
		return p.processSegment(waySegment, info)
	}
	return nil
}

func parseWayInfo(way *osm.Way) (wayInfo, error) {
	highway := way.Tags.Find("highway")
	info := wayInfo{
		wayId:       int64(way.ID),
		highwayType: pkg.GetHighwayType(highway),
		forward:     true,
		backward:    true,
	}
	defaults := getHighwayDefaults(info.highwayType)

	okvf, okmvf, okvb, okmvb := getReversedOneWay(way)
	oneway := way.Tags.Find("oneway")
	if oneway == "yes" || oneway == "1" || oneway == "-1" || okvf || okmvf || okvb || okmvb ||
		way.Tags.Find("junction") == "roundabout" || info.highwayType == pkg.MOTORWAY {
		if oneway == "-1" || okvf || okmvf {
			info.forward = false
		} else {
			info.backward = false
		}
	}
	if oneway == "no" {
		info.forward, info.backward = true, true
	}

	info.lanesFwd, info.lanesBwd = defaults.lanes, defaults.lanes
	if v := way.Tags.Find("lanes"); v != "" {
		total, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil && total > 0 {
			if info.forward && info.backward {
				perDirection := uint8(max(total/2, 1))
				info.lanesFwd, info.lanesBwd = perDirection, perDirection
			} else {
				info.lanesFwd, info.lanesBwd = uint8(min(total, 255)), uint8(min(total, 255))
			}
		}
	}
	if v, err := strconv.Atoi(way.Tags.Find("lanes:forward")); err == nil && v > 0 {
		info.lanesFwd = uint8(min(v, 255))
	}
	if v, err := strconv.Atoi(way.Tags.Find("lanes:backward")); err == nil && v > 0 {
		info.lanesBwd = uint8(min(v, 255))
	}

	speed, err := parseMaxSpeed(way.Tags.Find("maxspeed"))
	if err != nil {
		return info, err
	}
	info.speedLimit = speed
	return info, nil
}

// parseMaxSpeed returns the posted speed in km/h, 0 when untagged or not numeric.
func parseMaxSpeed(value string) (float64, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return 0, nil
	case strings.HasSuffix(value, "mph"):
		currSpeed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(value, "mph")), 64)
		if err != nil {
			return 0, err
		}
		return currSpeed * 1.60934, nil
	case strings.HasSuffix(value, "knots"):
		currSpeed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(value, "knots")), 64)
		if err != nil {
			return 0, err
		}
		return currSpeed * 1.852, nil
	case strings.HasSuffix(value, "km/h"):
		currSpeed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(value, "km/h")), 64)
		if err != nil {
			return 0, err
		}
		return currSpeed, nil
	default:
		// bare numbers are km/h, values like "walk" or "none" are ignored
		currSpeed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, nil
		}
		return currSpeed, nil
	}
}

func isRestricted(value string) bool {
	return value == "no" || value == "restricted" || value == "private"
}

func getReversedOneWay(way *osm.Way) (bool, bool, bool, bool) {
	vehicleForward := way.Tags.Find("vehicle:forward")
	motorVehicleForward := way.Tags.Find("motor_vehicle:forward")
	vehicleBackward := way.Tags.Find("vehicle:backward")
	motorVehicleBackward := way.Tags.Find("motor_vehicle:backward")
	return isRestricted(vehicleForward), isRestricted(motorVehicleForward), isRestricted(vehicleBackward), isRestricted(motorVehicleBackward)
}

func (p *OsmParser) processSegment(segment []node, info wayInfo) error {
	if len(segment) == 2 && segment[0].id == segment[1].id {
		return nil
	} else if len(segment) > 2 && segment[0].id == segment[len(segment)-1].id {
		// loop: split so the link does not start and end at the same vertex
		if err := p.splitAtBarriers(segment[0:len(segment)-1], info); err != nil {
			return err
		}
		return p.splitAtBarriers(segment[len(segment)-2:], info)
	}
	return p.splitAtBarriers(segment, info)
}

func (p *OsmParser) splitAtBarriers(segment []node, info wayInfo) error {
	waySegment := []node{}
	for i := 0; i < len(segment); i++ {
		nodeData := segment[i]
		if _, ok := p.barrierNodes[nodeData.id]; ok {
			if len(waySegment) != 0 {
				waySegment = append(waySegment, nodeData)
				if err := p.addLink(waySegment, info); err != nil {
					return err
				}
			}
			// continue from a copy of the barrier so both sides stay disconnected
			nodeData = p.copyNode(nodeData)
			waySegment = []node{nodeData}
			continue
		}
		waySegment = append(waySegment, nodeData)
	}
	if len(waySegment) > 1 {
		return p.addLink(waySegment, info)
	}
	return nil
}

// copyNode returns the node under a fresh negative id that is not shared with any other way.
func (p *OsmParser) copyNode(nodeData node) node {
	p.numCopies++
	copied := node{id: -int64(p.numCopies), coord: nodeData.coord}
	p.acceptedNodeMap[copied.id] = copied.coord
	return copied
}

func (p *OsmParser) vertexOf(n node) (datastructure.Index, error) {
	if v, ok := p.nodeIDMap[n.id]; ok {
		return v, nil
	}
	externalId := strconv.FormatInt(n.id, 10)
	if n.id < 0 {
		externalId = fmt.Sprintf("barrier_copy_%d", -n.id)
	}
	v, err := p.builder.AddVertex(externalId, n.coord.lat, n.coord.lon, true)
	if err != nil {
		return datastructure.INVALID_VERTEX_ID, err
	}
	p.nodeIDMap[n.id] = v
	return v, nil
}

func (p *OsmParser) segmentTypeOf(h pkg.OsmHighwayType) (datastructure.Index, error) {
	if id, ok := p.segmentTypes[h]; ok {
		return id, nil
	}
	d := getHighwayDefaults(h)
	props := make(map[datastructure.Index]datastructure.ModeProperties)
	for _, m := range p.builder.GetModes().All() {
		if p.roadModes.Contains(m.GetID()) {
			props[m.GetID()] = datastructure.ModeProperties{MaxSpeed: d.speed, CriticalSpeed: d.criticalSpeed}
		}
	}
	id, err := p.builder.AddSegmentType(h.String(), d.capacityPerLane, d.maxDensityPerLane, props)
	if err != nil {
		return datastructure.INVALID_SEGMENT_TYPE_ID, err
	}
	p.segmentTypes[h] = id
	return id, nil
}

func (p *OsmParser) addLink(segment []node, info wayInfo) error {
	first, last := segment[0], segment[len(segment)-1]
	if first.id == last.id {
		return nil
	}
	from, err := p.vertexOf(first)
	if err != nil {
		return err
	}
	to, err := p.vertexOf(last)
	if err != nil {
		return err
	}
	coords := make([]geo.Coordinate, len(segment))
	for i, n := range segment {
		coords[i] = geo.NewCoordinate(n.coord.lat, n.coord.lon)
	}
	segmentType, err := p.segmentTypeOf(info.highwayType)
	if err != nil {
		return err
	}

	p.numLinks++
	edgeId, err := p.builder.AddEdge(fmt.Sprintf("%d_%d", info.wayId, p.numLinks), from, to, geo.PolylineLength(coords), 0)
	if err != nil {
		return err
	}
	if info.forward {
		if _, err := p.builder.AddLinkSegment(edgeId, from, segmentType, info.lanesFwd, info.speedLimit,
			p.roadModes, info.highwayType); err != nil {
			return err
		}
	}
	if info.backward {
		if _, err := p.builder.AddLinkSegment(edgeId, to, segmentType, info.lanesBwd, info.speedLimit,
			p.roadModes, info.highwayType); err != nil {
			return err
		}
	}
	if p.index != nil {
		p.index.Insert(spatialindex.NewLinkEntry(edgeId, from, to, coords[0], coords[len(coords)-1], p.roadModes))
	}
	return nil
}

func (p *OsmParser) isJunctionNode(nodeID int64) bool {
	return p.wayNodeMap[nodeID] == JUNCTION_NODE
}

func acceptOsmWay(way *osm.Way) bool {
	highway := way.Tags.Find("highway")
	if highway == "" {
		return false
	}
	_, ok := acceptedHighway[highway]
	return ok
}
