package geo

import (
	"math"

	"trip-tracker/internal/model"
)

const earthRadiusM = 6371000.0

func toRad(d float64) float64 { return d * math.Pi / 180 }

// ValidCoordinate reports whether lat/lng fall inside the WGS84 domain.
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// DistanceMeters returns the haversine distance between two coordinates.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// BearingDeg returns the initial bearing from a to b in [0, 360).
func BearingDeg(a, b model.Point) float64 {
	y := math.Sin(toRad(b.Lng-a.Lng)) * math.Cos(toRad(b.Lat))
	x := math.Cos(toRad(a.Lat))*math.Sin(toRad(b.Lat)) -
		math.Sin(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Cos(toRad(b.Lng-a.Lng))
	brng := math.Atan2(y, x) * 180.0 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}

// Interpolate returns the point at fraction frac along the segment a->b.
// Linear in lat/lng, which is fine for the corridor lengths involved here.
func Interpolate(a, b model.Point, frac float64) model.Point {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return model.Point{
		Lat: a.Lat + (b.Lat-a.Lat)*frac,
		Lng: a.Lng + (b.Lng-a.Lng)*frac,
	}
}

// DefaultStops spreads n evenly spaced points strictly between start and end.
// Used to seed a fresh route whose corridor has no surveyed stops yet.
func DefaultStops(start, end model.Point, n int) []model.Point {
	if n <= 0 {
		return nil
	}
	pts := make([]model.Point, 0, n)
	for i := 1; i <= n; i++ {
		pts = append(pts, Interpolate(start, end, float64(i)/float64(n+1)))
	}
	return pts
}

// Densify inserts intermediate vertices so no segment of the polyline
// exceeds maxSegMeters. Input points are always retained in order.
func Densify(points []model.Point, maxSegMeters float64) []model.Point {
	if len(points) < 2 || maxSegMeters <= 0 {
		return points
	}
	out := make([]model.Point, 0, len(points))
	out = append(out, points[0])
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		d := DistanceMeters(a.Lat, a.Lng, b.Lat, b.Lng)
		if d > maxSegMeters {
			steps := int(math.Ceil(d / maxSegMeters))
			for s := 1; s < steps; s++ {
				out = append(out, Interpolate(a, b, float64(s)/float64(steps)))
			}
		}
		out = append(out, b)
	}
	return out
}

// CumDistances returns the running distance along a polyline, in meters.
func CumDistances(points []model.Point) []float64 {
	n := len(points)
	if n == 0 {
		return nil
	}
	cum := make([]float64, n)
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += DistanceMeters(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
		cum[i] = sum
	}
	return cum
}
