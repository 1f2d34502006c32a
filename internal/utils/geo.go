package utils

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

const EarthRadiusMeters = 6371000.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

func IsValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// PathProjection describes the nearest point of a path to a query position.
type PathProjection struct {
	SegmentIndex   int     // index of the segment start vertex
	Fraction       float64 // position within the segment, 0..1
	DistanceMeters float64 // distance from the query position to the path
	TraveledMeters float64 // path length from the start to the projection
}

// ProjectOntoPath finds the nearest point on the polyline to p. The projection
// uses s2 edges, which stay accurate near the poles and across short segments.
// Returns false when the path has fewer than two vertices.
func ProjectOntoPath(path []Point, p Point) (PathProjection, bool) {
	if len(path) < 2 {
		return PathProjection{}, false
	}

	query := s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng))
	best := PathProjection{DistanceMeters: math.MaxFloat64}
	traveled := 0.0

	for i := 0; i < len(path)-1; i++ {
		a := s2.PointFromLatLng(s2.LatLngFromDegrees(path[i].Lat, path[i].Lng))
		b := s2.PointFromLatLng(s2.LatLngFromDegrees(path[i+1].Lat, path[i+1].Lng))

		closest := s2.Project(query, a, b)
		dist := query.Distance(closest).Radians() * EarthRadiusMeters

		segLen := DistanceMeters(path[i], path[i+1])
		if dist < best.DistanceMeters {
			frac := 0.0
			if segLen > 0 {
				closestLL := s2.LatLngFromPoint(closest)
				frac = DistanceMeters(path[i], Point{Lat: closestLL.Lat.Degrees(), Lng: closestLL.Lng.Degrees()}) / segLen
				if frac > 1 {
					frac = 1
				}
			}
			best = PathProjection{
				SegmentIndex:   i,
				Fraction:       frac,
				DistanceMeters: dist,
				TraveledMeters: traveled + frac*segLen,
			}
		}
		traveled += segLen
	}

	return best, true
}

// PathLengthMeters sums the great-circle lengths of all segments.
func PathLengthMeters(path []Point) float64 {
	total := 0.0
	for i := 0; i < len(path)-1; i++ {
		total += DistanceMeters(path[i], path[i+1])
	}
	return total
}
