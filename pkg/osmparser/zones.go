package osmparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/geo"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/spatialindex"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	"go.uber.org/zap"
)

// ZoneSpec is one line of a zones file: "externalId lat lon".
type ZoneSpec struct {
	ExternalId string
	Lat        float64
	Lon        float64
}

func ReadZonesFile(filename string) ([]ZoneSpec, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadZones(f)
}

func ReadZones(r io.Reader) ([]ZoneSpec, error) {
	br := bufio.NewReader(r)
	zones := make([]ZoneSpec, 0)
	for entry := 1; ; entry++ {
		line, err := util.ReadLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		ff := strings.Fields(line)
		if len(ff) != 3 {
			return nil, fmt.Errorf("zone entry %d: expected 3 fields, got %d", entry, len(ff))
		}
		lat, err := util.StringToFloat64(ff[1])
		if err != nil {
			return nil, fmt.Errorf("zone entry %d: %w", entry, err)
		}
		lon, err := util.StringToFloat64(ff[2])
		if err != nil {
			return nil, fmt.Errorf("zone entry %d: %w", entry, err)
		}
		zones = append(zones, ZoneSpec{ExternalId: ff[0], Lat: lat, Lon: lon})
	}
	return zones, nil
}

const connectoidSearchAttempts = 3

// ConnectoidGenerator attaches zone centroids to the nearest links of the spatial index.
type ConnectoidGenerator struct {
	builder    *datastructure.GraphBuilder
	index      *spatialindex.Rtree
	radiusKm   float64
	maxPerZone int
	log        *zap.Logger
}

func NewConnectoidGenerator(builder *datastructure.GraphBuilder, index *spatialindex.Rtree, radiusKm float64,
	maxPerZone int, log *zap.Logger) *ConnectoidGenerator {
	return &ConnectoidGenerator{
		builder:    builder,
		index:      index,
		radiusKm:   radiusKm,
		maxPerZone: max(maxPerZone, 1),
		log:        log,
	}
}

// AddZones creates a centroid per zone and up to maxPerZone connectoids to distinct access vertices.
// The search radius doubles when nothing is found; a zone still without a link stays unconnected
// and is reported. It returns the number of connectoids created.
func (cg *ConnectoidGenerator) AddZones(zones []ZoneSpec) (int, error) {
	numConnectoids := 0
	for _, z := range zones {
		zoneId, _, err := cg.builder.AddZoneWithCentroid(z.ExternalId, z.Lat, z.Lon, true)
		if err != nil {
			return numConnectoids, fmt.Errorf("zone %s: %w", z.ExternalId, err)
		}

		var candidates []spatialindex.LinkCandidate
		radius := cg.radiusKm
		for attempt := 0; attempt < connectoidSearchAttempts && len(candidates) == 0; attempt++ {
			candidates = cg.index.SearchWithinRadius(z.Lat, z.Lon, radius, 0)
			radius *= 2
		}
		if len(candidates) == 0 {
			cg.log.Warn("zone has no link within the search radius, left unconnected",
				zap.String("zone", z.ExternalId), zap.Float64("radiusKm", radius/2))
			continue
		}

		accessVertices := make(map[datastructure.Index]struct{}, cg.maxPerZone)
		for _, c := range candidates {
			if len(accessVertices) >= cg.maxPerZone {
				break
			}
			access, coord := c.NearestVertex(z.Lat, z.Lon)
			if _, ok := accessVertices[access]; ok {
				continue
			}
			accessVertices[access] = struct{}{}
			length := geo.CalculateHaversineDistance(z.Lat, z.Lon, coord.Lat, coord.Lon)
			if _, err := cg.builder.AddConnectoid(zoneId, access, length, c.GetModes()); err != nil {
				return numConnectoids, fmt.Errorf("zone %s: %w", z.ExternalId, err)
			}
			numConnectoids++
		}
	}
	cg.log.Info("zones connected", zap.Int("zones", len(zones)), zap.Int("connectoids", numConnectoids))
	return numConnectoids, nil
}
