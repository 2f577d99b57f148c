// Package geo classifies coordinates against a campus. Pure functions,
// no state.
package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Zone classifies a location relative to a university.
type Zone string

const (
	ZoneCampus   Zone = "campus"
	ZoneCoverage Zone = "coverage"
	ZoneOutside  Zone = "outside"
)

// Campus is the geometry a point is classified against.
type Campus struct {
	Center           Point
	Boundary         []Point // ordered polygon vertices, closing edge implied
	CoverageRadiusKm float64
}

// Classification is the result of classifying a point.
type Classification struct {
	Zone                 Zone    `json:"zone"`
	DistanceFromCenterKm float64 `json:"distance_from_center_km"`
	WithinBoundary       bool    `json:"within_boundary"`
}

// Classify places a point in a zone. Boundary membership wins over the
// distance check; with no campus configured the point is outside at
// infinite distance.
func Classify(p Point, c *Campus) Classification {
	if c == nil {
		return Classification{Zone: ZoneOutside, DistanceFromCenterKm: math.Inf(1)}
	}

	dist := Haversine(p, c.Center)
	within := pointInPolygon(p, c.Boundary)

	zone := ZoneOutside
	switch {
	case within:
		zone = ZoneCampus
	case dist <= c.CoverageRadiusKm:
		zone = ZoneCoverage
	}

	return Classification{Zone: zone, DistanceFromCenterKm: dist, WithinBoundary: within}
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// pointInPolygon is an even-odd ray cast on flat coordinates. Campus
// boundaries are small, so planar treatment is acceptable; polygons
// crossing the antimeridian are not handled.
func pointInPolygon(p Point, poly []Point) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		vi, vj := poly[i], poly[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			x := (vj.Lng-vi.Lng)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if p.Lng < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
