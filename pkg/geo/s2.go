package geo

import (
	"github.com/golang/geo/s2"
)

// ProjectPointToLineCoord projects snap onto the great circle segment (pointA, pointB).
func ProjectPointToLineCoord(pointA Coordinate, pointB Coordinate,
	snap Coordinate) Coordinate {
	pointAS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(pointA.Lat, pointA.Lon))
	pointBS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(pointB.Lat, pointB.Lon))
	snapS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(snap.Lat, snap.Lon))
	projection := s2.Project(snapS2, pointAS2, pointBS2)
	projectLatLng := s2.LatLngFromPoint(projection)
	return NewCoordinate(projectLatLng.Lat.Degrees(), projectLatLng.Lng.Degrees())
}

// PointLinePerpendicularDistance returns the distance in km between snap and its projection
// onto (pointA, pointB).
func PointLinePerpendicularDistance(pointA Coordinate, pointB Coordinate,
	snap Coordinate) float64 {
	projectionPoint := ProjectPointToLineCoord(pointA, pointB, snap)

	return CalculateHaversineDistance(snap.GetLat(), snap.GetLon(), projectionPoint.GetLat(), projectionPoint.GetLon())
}

// FractionAlong returns how far (0..1) the projection of snap lies from pointA towards pointB.
func FractionAlong(pointA Coordinate, pointB Coordinate, snap Coordinate) float64 {
	total := CalculateHaversineDistance(pointA.Lat, pointA.Lon, pointB.Lat, pointB.Lon)
	if total == 0 {
		return 0
	}
	p := ProjectPointToLineCoord(pointA, pointB, snap)
	f := CalculateHaversineDistance(pointA.Lat, pointA.Lon, p.Lat, p.Lon) / total
	return min(max(f, 0), 1)
}
