package datastructure

import (
	"errors"
	"fmt"
	"math"

	"github.com/TrafficPLANit/PLANit-sub005/pkg"
)

var (
	ErrInvalidVertex      = errors.New("vertex id does not exist")
	ErrInvalidEdge        = errors.New("edge id does not exist")
	ErrInvalidSegmentType = errors.New("segment type id does not exist")
	ErrInvalidZone        = errors.New("zone id does not exist")
	ErrNegativeLength     = errors.New("edge length must be non-negative")
	ErrNoLanes            = errors.New("link segment needs at least one lane")
	ErrModeNotOnType      = errors.New("segment allows a mode its segment type has no properties for")
	ErrCentroidAccess     = errors.New("connectoid access vertex must not be a centroid")
	ErrDuplicateVertex    = errors.New("vertex external id already exists")
)

// GraphBuilder assembles a Graph. Ids come from the IdContext so a network that is read
// from file in id order reproduces the ids it was written with.
type GraphBuilder struct {
	ctx              *IdContext
	modes            *Modes
	vertices         []*Vertex
	edges            []*Edge
	segments         []*EdgeSegment
	segmentTypes     []*LinkSegmentType
	zones            []*Zone
	vertexByExternal map[string]Index
	layers           map[uint8]struct{}
}

func NewGraphBuilder(ctx *IdContext, modes *Modes) *GraphBuilder {
	return &GraphBuilder{
		ctx:              ctx,
		modes:            modes,
		vertexByExternal: make(map[string]Index),
		layers:           make(map[uint8]struct{}),
	}
}

func (b *GraphBuilder) GetModes() *Modes {
	return b.modes
}

func (b *GraphBuilder) NumberOfVertices() int {
	return len(b.vertices)
}

// AddVertex adds a node. An empty externalId gets the dense id as external id.
func (b *GraphBuilder) AddVertex(externalId string, lat, lon float64, hasPosition bool) (Index, error) {
	if externalId != "" {
		if _, ok := b.vertexByExternal[externalId]; ok {
			return INVALID_VERTEX_ID, fmt.Errorf("%w: %s", ErrDuplicateVertex, externalId)
		}
	}
	id := b.ctx.Next(VERTEX_IDS)
	if externalId == "" {
		externalId = fmt.Sprintf("%d", id)
	}
	v := NewVertex(lat, lon, id)
	v.hasPosition = hasPosition
	v.externalId = externalId
	b.vertices = append(b.vertices, v)
	b.vertexByExternal[externalId] = id
	return id, nil
}

func (b *GraphBuilder) GetVertexByExternalId(externalId string) (Index, bool) {
	id, ok := b.vertexByExternal[externalId]
	return id, ok
}

func (b *GraphBuilder) GetVertexCoordinates(u Index) (float64, float64, bool) {
	if int(u) >= len(b.vertices) {
		return 0, 0, false
	}
	v := b.vertices[u]
	return v.lat, v.lon, v.hasPosition
}

func (b *GraphBuilder) AddSegmentType(name string, capacityPerLane, maxDensityPerLane float64,
	modeProperties map[Index]ModeProperties) (Index, error) {
	if capacityPerLane <= 0 {
		capacityPerLane = pkg.DEFAULT_CAPACITY_PER_LANE
	}
	if maxDensityPerLane <= 0 {
		maxDensityPerLane = pkg.DEFAULT_MAX_DENSITY_LANE
	}
	props := make(map[Index]ModeProperties, len(modeProperties))
	for modeId, p := range modeProperties {
		if b.modes.Get(modeId) == nil {
			return 0, fmt.Errorf("segment type %s: unknown mode id %d", name, modeId)
		}
		props[modeId] = p
	}
	id := b.ctx.Next(SEGMENT_TYPE_IDS)
	b.segmentTypes = append(b.segmentTypes, &LinkSegmentType{
		id:                id,
		name:              name,
		capacityPerLane:   capacityPerLane,
		maxDensityPerLane: maxDensityPerLane,
		modeProperties:    props,
	})
	return id, nil
}

// AddEdge adds an undirected link of lengthKm between a and b on the given layer.
func (b *GraphBuilder) AddEdge(externalId string, a, bv Index, lengthKm float64, layer uint8) (Index, error) {
	return b.addEdge(externalId, a, bv, lengthKm, layer, false)
}

func (b *GraphBuilder) addEdge(externalId string, a, bv Index, lengthKm float64, layer uint8,
	connectoid bool) (Index, error) {
	if int(a) >= len(b.vertices) || int(bv) >= len(b.vertices) {
		return INVALID_EDGE_ID, fmt.Errorf("%w: edge %s (%d,%d)", ErrInvalidVertex, externalId, a, bv)
	}
	if lengthKm < 0 || math.IsNaN(lengthKm) {
		return INVALID_EDGE_ID, fmt.Errorf("%w: edge %s length %v", ErrNegativeLength, externalId, lengthKm)
	}
	id := b.ctx.Next(EDGE_IDS)
	if externalId == "" {
		externalId = fmt.Sprintf("%d", id)
	}
	b.edges = append(b.edges, &Edge{
		id:         id,
		externalId: externalId,
		vertexA:    a,
		vertexB:    bv,
		length:     lengthKm,
		layer:      layer,
		connectoid: connectoid,
	})
	if !connectoid {
		b.layers[layer] = struct{}{}
	}
	return id, nil
}

// AddLinkSegment adds the direction of edge starting at upstream. Every mode in allowed must
// have properties on the segment type.
func (b *GraphBuilder) AddLinkSegment(edgeId, upstream, segmentType Index, lanes uint8, speedLimit float64,
	allowed ModeSet, highwayType pkg.OsmHighwayType) (Index, error) {
	if int(edgeId) >= len(b.edges) {
		return INVALID_SEGMENT_ID, fmt.Errorf("%w: %d", ErrInvalidEdge, edgeId)
	}
	e := b.edges[edgeId]
	downstream, err := b.otherEnd(e, upstream)
	if err != nil {
		return INVALID_SEGMENT_ID, err
	}
	if int(segmentType) >= len(b.segmentTypes) {
		return INVALID_SEGMENT_ID, fmt.Errorf("%w: %d on edge %d", ErrInvalidSegmentType, segmentType, edgeId)
	}
	if lanes == 0 {
		return INVALID_SEGMENT_ID, fmt.Errorf("%w: edge %d", ErrNoLanes, edgeId)
	}
	st := b.segmentTypes[segmentType]
	for _, m := range b.modes.All() {
		if !allowed.Contains(m.id) {
			continue
		}
		if _, ok := st.modeProperties[m.id]; !ok {
			return INVALID_SEGMENT_ID, fmt.Errorf("%w: mode %s, segment type %s, edge %d",
				ErrModeNotOnType, m.externalId, st.name, edgeId)
		}
	}

	id := b.ctx.Next(EDGE_SEGMENT_IDS)
	b.segments = append(b.segments, &EdgeSegment{
		id:           id,
		edgeId:       edgeId,
		upstream:     upstream,
		downstream:   downstream,
		segmentType:  segmentType,
		lanes:        lanes,
		speedLimit:   speedLimit,
		capacity:     st.capacityPerLane * float64(lanes),
		allowedModes: allowed,
		highwayType:  highwayType,
	})
	return id, nil
}

func (b *GraphBuilder) otherEnd(e *Edge, upstream Index) (Index, error) {
	switch upstream {
	case e.vertexA:
		return e.vertexB, nil
	case e.vertexB:
		return e.vertexA, nil
	default:
		return INVALID_VERTEX_ID, fmt.Errorf("%w: vertex %d is not an end of edge %d", ErrInvalidVertex, upstream, e.id)
	}
}

// AddLink adds an edge plus its forward segment and, when bidirectional, its backward segment.
func (b *GraphBuilder) AddLink(externalId string, from, to Index, lengthKm float64, segmentType Index, lanes uint8,
	speedLimit float64, allowed ModeSet, bidirectional bool) (Index, error) {
	edgeId, err := b.AddEdge(externalId, from, to, lengthKm, 0)
	if err != nil {
		return INVALID_EDGE_ID, err
	}
	if _, err := b.AddLinkSegment(edgeId, from, segmentType, lanes, speedLimit, allowed, pkg.UNKNOWN); err != nil {
		return INVALID_EDGE_ID, err
	}
	if bidirectional {
		if _, err := b.AddLinkSegment(edgeId, to, segmentType, lanes, speedLimit, allowed, pkg.UNKNOWN); err != nil {
			return INVALID_EDGE_ID, err
		}
	}
	return edgeId, nil
}

// AddZone registers a zone whose centroid is an existing vertex.
func (b *GraphBuilder) AddZone(externalId string, centroid Index) (Index, error) {
	if int(centroid) >= len(b.vertices) {
		return INVALID_ZONE_ID, fmt.Errorf("%w: centroid %d of zone %s", ErrInvalidVertex, centroid, externalId)
	}
	v := b.vertices[centroid]
	if v.IsCentroid() {
		return INVALID_ZONE_ID, fmt.Errorf("vertex %d is already the centroid of zone %d", centroid, v.zoneId)
	}
	id := b.ctx.Next(ZONE_IDS)
	if externalId == "" {
		externalId = fmt.Sprintf("%d", id)
	}
	v.zoneId = id
	b.zones = append(b.zones, &Zone{id: id, externalId: externalId, centroid: centroid})
	return id, nil
}

// AddZoneWithCentroid creates the centroid vertex and the zone in one step.
func (b *GraphBuilder) AddZoneWithCentroid(externalId string, lat, lon float64, hasPosition bool) (Index, Index, error) {
	centroid, err := b.AddVertex("centroid_"+externalId, lat, lon, hasPosition)
	if err != nil {
		return INVALID_ZONE_ID, INVALID_VERTEX_ID, err
	}
	zoneId, err := b.AddZone(externalId, centroid)
	return zoneId, centroid, err
}

func (b *GraphBuilder) GetZoneCentroid(zoneId Index) (Index, error) {
	if int(zoneId) >= len(b.zones) {
		return INVALID_VERTEX_ID, fmt.Errorf("%w: %d", ErrInvalidZone, zoneId)
	}
	return b.zones[zoneId].centroid, nil
}

// AddConnectoid links the zone centroid with an access vertex of the physical network by a
// virtual edge with an entry and an exit segment.
func (b *GraphBuilder) AddConnectoid(zoneId, accessVertex Index, lengthKm float64, allowed ModeSet) (Index, error) {
	if int(zoneId) >= len(b.zones) {
		return INVALID_EDGE_ID, fmt.Errorf("%w: %d", ErrInvalidZone, zoneId)
	}
	if int(accessVertex) >= len(b.vertices) {
		return INVALID_EDGE_ID, fmt.Errorf("%w: access vertex %d of zone %d", ErrInvalidVertex, accessVertex, zoneId)
	}
	if b.vertices[accessVertex].IsCentroid() {
		return INVALID_EDGE_ID, fmt.Errorf("%w: zone %d access %d", ErrCentroidAccess, zoneId, accessVertex)
	}
	centroid := b.zones[zoneId].centroid
	edgeId, err := b.addEdge(fmt.Sprintf("connectoid_%s_%d", b.zones[zoneId].externalId, accessVertex),
		centroid, accessVertex, lengthKm, 0, true)
	if err != nil {
		return INVALID_EDGE_ID, err
	}
	for _, upstream := range [2]Index{centroid, accessVertex} {
		if _, err := b.addConnectoidSegment(edgeId, upstream, allowed); err != nil {
			return INVALID_EDGE_ID, err
		}
	}
	return edgeId, nil
}

func (b *GraphBuilder) addConnectoidSegment(edgeId, upstream Index, allowed ModeSet) (Index, error) {
	if int(edgeId) >= len(b.edges) {
		return INVALID_SEGMENT_ID, fmt.Errorf("%w: %d", ErrInvalidEdge, edgeId)
	}
	downstream, err := b.otherEnd(b.edges[edgeId], upstream)
	if err != nil {
		return INVALID_SEGMENT_ID, err
	}
	id := b.ctx.Next(EDGE_SEGMENT_IDS)
	b.segments = append(b.segments, &EdgeSegment{
		id:           id,
		edgeId:       edgeId,
		upstream:     upstream,
		downstream:   downstream,
		segmentType:  INVALID_SEGMENT_TYPE_ID,
		lanes:        1,
		capacity:     pkg.CONNECTOID_CAPACITY,
		allowedModes: allowed,
		connectoid:   true,
		highwayType:  pkg.UNKNOWN,
	})
	return id, nil
}

// Build freezes the network: segments are grouped by upstream/downstream vertex without
// changing their ids.
func (b *GraphBuilder) Build() (*Graph, error) {
	n := len(b.vertices)
	for i, s := range b.segments {
		if s.id != Index(i) {
			return nil, fmt.Errorf("edge segment ids are not contiguous: position %d holds id %d", i, s.id)
		}
	}

	outDegree := make([]Index, n)
	inDegree := make([]Index, n)
	for _, s := range b.segments {
		outDegree[s.upstream]++
		inDegree[s.downstream]++
	}

	vertices := make([]*Vertex, n+1)
	copy(vertices, b.vertices)
	vertices[n] = &Vertex{id: INVALID_VERTEX_ID, zoneId: INVALID_ZONE_ID}

	var outOffset, inOffset Index
	for u := 0; u < n; u++ {
		vertices[u].firstOut = outOffset
		vertices[u].firstIn = inOffset
		outOffset += outDegree[u]
		inOffset += inDegree[u]
	}
	vertices[n].firstOut = outOffset
	vertices[n].firstIn = inOffset

	outSegments := make([]Index, len(b.segments))
	inSegments := make([]Index, len(b.segments))
	outPos := make([]Index, n)
	inPos := make([]Index, n)
	for _, s := range b.segments {
		outSegments[vertices[s.upstream].firstOut+outPos[s.upstream]] = s.id
		outPos[s.upstream]++
		inSegments[vertices[s.downstream].firstIn+inPos[s.downstream]] = s.id
		inPos[s.downstream]++
	}

	numLayers := len(b.layers)
	if numLayers == 0 {
		numLayers = 1
	}

	zoneByExternal := make(map[string]Index, len(b.zones))
	for _, z := range b.zones {
		zoneByExternal[z.externalId] = z.id
	}

	return &Graph{
		vertices:         vertices,
		edges:            b.edges,
		segments:         b.segments,
		outSegments:      outSegments,
		inSegments:       inSegments,
		segmentTypes:     b.segmentTypes,
		zones:            b.zones,
		modes:            b.modes,
		numLayers:        numLayers,
		boundingBox:      computeBoundingBox(b.vertices),
		zoneByExternal:   zoneByExternal,
		vertexByExternal: b.vertexByExternal,
	}, nil
}

func computeBoundingBox(vertices []*Vertex) *BoundingBox {
	var bb *BoundingBox
	for _, v := range vertices {
		if !v.hasPosition {
			continue
		}
		if bb == nil {
			bb = NewBoundingBox(v.lat, v.lon, v.lat, v.lon)
			continue
		}
		bb.Extend(v.lat, v.lon)
	}
	return bb
}
