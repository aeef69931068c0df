package geo

import (
	"strings"

	"trip-tracker/internal/model"
)

// Encoded-polyline codec (the format directions backends return for route
// geometry): deltas of 1e-5-scaled coordinates, zig-zag signed, 5-bit
// chunks offset by 63.

func EncodePolyline(points []model.Point) string {
	var sb strings.Builder
	var prevLat, prevLng int64
	for _, p := range points {
		lat := int64(round5(p.Lat))
		lng := int64(round5(p.Lng))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)
		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

func round5(v float64) float64 {
	s := v * 1e5
	if s >= 0 {
		return float64(int64(s + 0.5))
	}
	return float64(int64(s - 0.5))
}

func encodeValue(sb *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}

func DecodePolyline(s string) []model.Point {
	var pts []model.Point
	var lat, lng int64
	i := 0
	for i < len(s) {
		dLat, n := decodeValue(s[i:])
		if n == 0 {
			break
		}
		i += n
		dLng, n := decodeValue(s[i:])
		if n == 0 {
			break
		}
		i += n
		lat += dLat
		lng += dLng
		pts = append(pts, model.Point{Lat: float64(lat) / 1e5, Lng: float64(lng) / 1e5})
	}
	return pts
}

func decodeValue(s string) (int64, int) {
	var u int64
	shift := uint(0)
	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - 63
		if b < 0 {
			return 0, 0
		}
		u |= (b & 0x1f) << shift
		if b < 0x20 {
			v := u >> 1
			if u&1 != 0 {
				v = ^v
			}
			return v, i + 1
		}
		shift += 5
	}
	return 0, 0
}
