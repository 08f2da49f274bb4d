package datastructure

import (
	"math"

	"github.com/TrafficPLANit/PLANit-sub005/pkg"
)

type Index uint32

const (
	INVALID_VERTEX_ID       Index = math.MaxUint32
	INVALID_EDGE_ID         Index = math.MaxUint32
	INVALID_SEGMENT_ID      Index = math.MaxUint32
	INVALID_ZONE_ID         Index = math.MaxUint32
	INVALID_SEGMENT_TYPE_ID Index = math.MaxUint32
)

type Vertex struct {
	lat         float64
	lon         float64
	hasPosition bool
	firstOut    Index // index of the first exit segment of this vertex in graph.outSegments
	firstIn     Index // index of the first entry segment of this vertex in graph.inSegments
	id          Index
	externalId  string
	zoneId      Index // INVALID_ZONE_ID unless the vertex is a zone centroid
}

func NewVertex(lat, lon float64, id Index) *Vertex {
	return &Vertex{
		lat:         lat,
		lon:         lon,
		hasPosition: true,
		id:          id,
		zoneId:      INVALID_ZONE_ID,
	}
}

func (v *Vertex) GetID() Index {
	return v.id
}

func (v *Vertex) GetExternalId() string {
	return v.externalId
}

func (v *Vertex) GetLat() float64 {
	return v.lat
}

func (v *Vertex) GetLon() float64 {
	return v.lon
}

func (v *Vertex) HasPosition() bool {
	return v.hasPosition
}

func (v *Vertex) IsCentroid() bool {
	return v.zoneId != INVALID_ZONE_ID
}

func (v *Vertex) GetZoneId() Index {
	return v.zoneId
}

// Edge is the undirected physical link (or connectoid) between two vertices.
type Edge struct {
	id         Index
	externalId string
	vertexA    Index
	vertexB    Index
	length     float64 // km
	layer      uint8
	connectoid bool
}

func (e *Edge) GetID() Index {
	return e.id
}

func (e *Edge) GetExternalId() string {
	return e.externalId
}

func (e *Edge) GetVertexA() Index {
	return e.vertexA
}

func (e *Edge) GetVertexB() Index {
	return e.vertexB
}

func (e *Edge) GetLength() float64 {
	return e.length
}

func (e *Edge) GetLayer() uint8 {
	return e.layer
}

func (e *Edge) IsConnectoid() bool {
	return e.connectoid
}

// EdgeSegment is one direction of an edge. Its id is the only index used for
// per-segment flow, cost and capacity arrays.
type EdgeSegment struct {
	id           Index
	edgeId       Index
	upstream     Index
	downstream   Index
	segmentType  Index
	lanes        uint8
	speedLimit   float64 // km/h, 0 when not posted
	capacity     float64 // pcu/h
	allowedModes ModeSet
	connectoid   bool
	highwayType  pkg.OsmHighwayType
}

func (s *EdgeSegment) GetID() Index {
	return s.id
}

func (s *EdgeSegment) GetEdgeId() Index {
	return s.edgeId
}

func (s *EdgeSegment) GetUpstream() Index {
	return s.upstream
}

func (s *EdgeSegment) GetDownstream() Index {
	return s.downstream
}

func (s *EdgeSegment) GetSegmentType() Index {
	return s.segmentType
}

func (s *EdgeSegment) GetLanes() uint8 {
	return s.lanes
}

func (s *EdgeSegment) GetSpeedLimit() float64 {
	return s.speedLimit
}

func (s *EdgeSegment) GetCapacity() float64 {
	return s.capacity
}

func (s *EdgeSegment) GetAllowedModes() ModeSet {
	return s.allowedModes
}

func (s *EdgeSegment) IsModeAllowed(modeId Index) bool {
	return s.allowedModes.Contains(modeId)
}

func (s *EdgeSegment) IsConnectoid() bool {
	return s.connectoid
}

func (s *EdgeSegment) GetHighwayType() pkg.OsmHighwayType {
	return s.highwayType
}

type ModeProperties struct {
	MaxSpeed      float64 // km/h
	CriticalSpeed float64 // km/h, speed at capacity
}

// LinkSegmentType carries the capacity/density parameters shared by many link segments.
type LinkSegmentType struct {
	id                Index
	name              string
	capacityPerLane   float64 // pcu/h/lane
	maxDensityPerLane float64 // pcu/km/lane
	modeProperties    map[Index]ModeProperties
}

func (t *LinkSegmentType) GetID() Index {
	return t.id
}

func (t *LinkSegmentType) GetName() string {
	return t.name
}

func (t *LinkSegmentType) GetCapacityPerLane() float64 {
	return t.capacityPerLane
}

func (t *LinkSegmentType) GetMaxDensityPerLane() float64 {
	return t.maxDensityPerLane
}

func (t *LinkSegmentType) GetModeProperties(modeId Index) (ModeProperties, bool) {
	p, ok := t.modeProperties[modeId]
	return p, ok
}

func (t *LinkSegmentType) GetAllModeProperties() map[Index]ModeProperties {
	return t.modeProperties
}

type Zone struct {
	id         Index
	externalId string
	centroid   Index
}

func (z *Zone) GetID() Index {
	return z.id
}

func (z *Zone) GetExternalId() string {
	return z.externalId
}

func (z *Zone) GetCentroid() Index {
	return z.centroid
}

// Graph is the static assignment network. static (i.e. can't add new segments once built).
// All entities live in flat slices and refer to each other by dense ids.
type Graph struct {
	vertices     []*Vertex // last vertex is a sentinel holding the end offsets
	edges        []*Edge
	segments     []*EdgeSegment
	outSegments  []Index // segment ids grouped by upstream vertex
	inSegments   []Index // segment ids grouped by downstream vertex
	segmentTypes []*LinkSegmentType
	zones        []*Zone
	modes        *Modes
	numLayers    int
	boundingBox  *BoundingBox

	zoneByExternal   map[string]Index
	vertexByExternal map[string]Index
}

func (g *Graph) NumberOfVertices() int {
	return len(g.vertices) - 1
}

func (g *Graph) NumberOfEdges() int {
	return len(g.edges)
}

func (g *Graph) NumberOfEdgeSegments() int {
	return len(g.segments)
}

func (g *Graph) NumberOfZones() int {
	return len(g.zones)
}

func (g *Graph) NumberOfLayers() int {
	return g.numLayers
}

func (g *Graph) GetModes() *Modes {
	return g.modes
}

func (g *Graph) GetVertex(u Index) *Vertex {
	return g.vertices[u]
}

func (g *Graph) GetVertices() []*Vertex {
	return g.vertices[:g.NumberOfVertices()]
}

func (g *Graph) GetEdge(e Index) *Edge {
	return g.edges[e]
}

func (g *Graph) GetEdges() []*Edge {
	return g.edges
}

func (g *Graph) GetEdgeSegment(s Index) *EdgeSegment {
	return g.segments[s]
}

func (g *Graph) GetEdgeSegments() []*EdgeSegment {
	return g.segments
}

func (g *Graph) GetSegmentType(t Index) *LinkSegmentType {
	return g.segmentTypes[t]
}

func (g *Graph) GetSegmentTypes() []*LinkSegmentType {
	return g.segmentTypes
}

func (g *Graph) GetZone(z Index) *Zone {
	return g.zones[z]
}

func (g *Graph) GetZones() []*Zone {
	return g.zones
}

func (g *Graph) GetZoneByExternalId(externalId string) (*Zone, bool) {
	z, ok := g.zoneByExternal[externalId]
	if !ok {
		return nil, false
	}
	return g.zones[z], true
}

func (g *Graph) GetVertexByExternalId(externalId string) (Index, bool) {
	v, ok := g.vertexByExternal[externalId]
	return v, ok
}

func (g *Graph) GetBoundingBox() *BoundingBox {
	return g.boundingBox
}

func (g *Graph) GetOutDegree(u Index) Index {
	return g.vertices[u+1].firstOut - g.vertices[u].firstOut
}

func (g *Graph) GetInDegree(u Index) Index {
	return g.vertices[u+1].firstIn - g.vertices[u].firstIn
}

func (g *Graph) IsCentroid(u Index) bool {
	return g.vertices[u].IsCentroid()
}

// ForOutSegmentsOf calls handle for every exit segment of vertex u.
func (g *Graph) ForOutSegmentsOf(u Index, handle func(s *EdgeSegment)) {
	for i := g.vertices[u].firstOut; i < g.vertices[u+1].firstOut; i++ {
		handle(g.segments[g.outSegments[i]])
	}
}

// ForInSegmentsOf calls handle for every entry segment of vertex v.
func (g *Graph) ForInSegmentsOf(v Index, handle func(s *EdgeSegment)) {
	for i := g.vertices[v].firstIn; i < g.vertices[v+1].firstIn; i++ {
		handle(g.segments[g.inSegments[i]])
	}
}

func (g *Graph) FindEdgeSegment(u, v Index) (Index, bool) {
	for i := g.vertices[u].firstOut; i < g.vertices[u+1].firstOut; i++ {
		s := g.segments[g.outSegments[i]]
		if s.downstream == v {
			return s.id, true
		}
	}
	return INVALID_SEGMENT_ID, false
}

// GetSegmentLength returns the length (km) of the parent edge.
func (g *Graph) GetSegmentLength(s Index) float64 {
	return g.edges[g.segments[s].edgeId].length
}

// GetMaxSpeed returns the speed (km/h) a mode can travel on segment s:
// the lowest of the mode maximum, the segment type maximum for that mode and the posted limit.
func (g *Graph) GetMaxSpeed(mode *Mode, s Index) float64 {
	seg := g.segments[s]
	speed := mode.maxSpeed
	if seg.connectoid {
		return speed
	}
	if props, ok := g.segmentTypes[seg.segmentType].modeProperties[mode.id]; ok && props.MaxSpeed > 0 {
		speed = math.Min(speed, props.MaxSpeed)
	}
	if seg.speedLimit > 0 {
		speed = math.Min(speed, seg.speedLimit)
	}
	return speed
}

// GetCriticalSpeed returns the speed (km/h) at capacity for mode on segment s.
func (g *Graph) GetCriticalSpeed(mode *Mode, s Index) float64 {
	seg := g.segments[s]
	maxSpeed := g.GetMaxSpeed(mode, s)
	if seg.connectoid {
		return maxSpeed
	}
	if props, ok := g.segmentTypes[seg.segmentType].modeProperties[mode.id]; ok && props.CriticalSpeed > 0 {
		return math.Min(props.CriticalSpeed, maxSpeed)
	}
	return maxSpeed
}

// GetFreeFlowTravelTime returns length / max speed in hours, or INF_COST when mode is not allowed on s.
func (g *Graph) GetFreeFlowTravelTime(mode *Mode, s Index) float64 {
	seg := g.segments[s]
	if !seg.allowedModes.Contains(mode.id) {
		return pkg.INF_COST
	}
	length := g.edges[seg.edgeId].length
	if length == 0 {
		return 0
	}
	return length / g.GetMaxSpeed(mode, s)
}

// GetMaxDensity returns the jam density (pcu/km) over all lanes of segment s.
func (g *Graph) GetMaxDensity(s Index) float64 {
	seg := g.segments[s]
	if seg.connectoid {
		return pkg.INF_COST
	}
	return g.segmentTypes[seg.segmentType].maxDensityPerLane * float64(seg.lanes)
}

// GetZoneOfCentroid returns the zone a centroid vertex represents.
func (g *Graph) GetZoneOfCentroid(u Index) (*Zone, bool) {
	zId := g.vertices[u].zoneId
	if zId == INVALID_ZONE_ID {
		return nil, false
	}
	return g.zones[zId], true
}
