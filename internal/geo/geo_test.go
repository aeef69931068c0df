package geo

import (
	"math"
	"testing"

	"trip-tracker/internal/model"
)

func TestValidCoordinate(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lng  float64
		want bool
	}{
		{name: "amman", lat: 31.95, lng: 35.91, want: true},
		{name: "equator meridian", lat: 0, lng: 0, want: true},
		{name: "poles", lat: 90, lng: 180, want: true},
		{name: "lat too high", lat: 90.01, lng: 0, want: false},
		{name: "lat too low", lat: -90.01, lng: 0, want: false},
		{name: "lng too high", lat: 0, lng: 180.5, want: false},
		{name: "lng too low", lat: 0, lng: -181, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCoordinate(tt.lat, tt.lng); got != tt.want {
				t.Errorf("ValidCoordinate(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestDistanceMeters(t *testing.T) {
	// Amman city centre to Queen Alia airport, roughly 30 km.
	d := DistanceMeters(31.9539, 35.9106, 31.7225, 35.9933)
	if d < 25000 || d > 30000 {
		t.Errorf("distance out of expected band: %v", d)
	}

	if d := DistanceMeters(31.95, 35.91, 31.95, 35.91); d != 0 {
		t.Errorf("zero-length distance = %v, want 0", d)
	}
}

func TestBearingDeg(t *testing.T) {
	north := BearingDeg(model.Point{Lat: 0, Lng: 0}, model.Point{Lat: 1, Lng: 0})
	if math.Abs(north-0) > 0.01 {
		t.Errorf("north bearing = %v", north)
	}
	east := BearingDeg(model.Point{Lat: 0, Lng: 0}, model.Point{Lat: 0, Lng: 1})
	if math.Abs(east-90) > 0.01 {
		t.Errorf("east bearing = %v", east)
	}
	west := BearingDeg(model.Point{Lat: 0, Lng: 0}, model.Point{Lat: 0, Lng: -1})
	if math.Abs(west-270) > 0.01 {
		t.Errorf("west bearing = %v", west)
	}
}

func TestInterpolateClamps(t *testing.T) {
	a := model.Point{Lat: 10, Lng: 20}
	b := model.Point{Lat: 20, Lng: 40}

	mid := Interpolate(a, b, 0.5)
	if mid.Lat != 15 || mid.Lng != 30 {
		t.Errorf("midpoint = %+v", mid)
	}
	if got := Interpolate(a, b, -1); got != a {
		t.Errorf("frac below 0 should clamp to start, got %+v", got)
	}
	if got := Interpolate(a, b, 2); got != b {
		t.Errorf("frac above 1 should clamp to end, got %+v", got)
	}
}

func TestDefaultStopsStrictlyBetween(t *testing.T) {
	start := model.Point{Lat: 31.9, Lng: 35.9}
	end := model.Point{Lat: 32.0, Lng: 36.0}

	pts := DefaultStops(start, end, 3)
	if len(pts) != 3 {
		t.Fatalf("got %d points, want 3", len(pts))
	}
	for i, p := range pts {
		if p == start || p == end {
			t.Errorf("point %d coincides with an endpoint: %+v", i, p)
		}
	}
	if DefaultStops(start, end, 0) != nil {
		t.Errorf("n=0 should yield nil")
	}
}

func TestDensify(t *testing.T) {
	pts := []model.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}} // ~111 km
	out := Densify(pts, 10000)
	if len(out) < 10 {
		t.Fatalf("expected at least 10 vertices, got %d", len(out))
	}
	if out[0] != pts[0] || out[len(out)-1] != pts[1] {
		t.Errorf("endpoints not retained")
	}
	for i := 1; i < len(out); i++ {
		d := DistanceMeters(out[i-1].Lat, out[i-1].Lng, out[i].Lat, out[i].Lng)
		if d > 10000*1.001 {
			t.Errorf("segment %d too long: %v m", i, d)
		}
	}
	// Short input passes through untouched.
	short := []model.Point{{Lat: 0, Lng: 0}}
	if got := Densify(short, 10); len(got) != 1 {
		t.Errorf("single point should pass through")
	}
}

func TestCumDistances(t *testing.T) {
	pts := []model.Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}}
	cum := CumDistances(pts)
	if len(cum) != 3 {
		t.Fatalf("got %d entries", len(cum))
	}
	if cum[0] != 0 {
		t.Errorf("first entry = %v, want 0", cum[0])
	}
	if cum[1] <= 0 || cum[2] <= cum[1] {
		t.Errorf("distances not increasing: %v", cum)
	}
	if CumDistances(nil) != nil {
		t.Errorf("empty input should yield nil")
	}
}

func TestPolylineKnownEncoding(t *testing.T) {
	// Reference vector from the format's documentation.
	pts := []model.Point{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	}
	want := "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	if got := EncodePolyline(pts); got != want {
		t.Errorf("EncodePolyline = %q, want %q", got, want)
	}
	decoded := DecodePolyline(want)
	if len(decoded) != len(pts) {
		t.Fatalf("decoded %d points, want %d", len(decoded), len(pts))
	}
	for i := range pts {
		if math.Abs(decoded[i].Lat-pts[i].Lat) > 1e-5 || math.Abs(decoded[i].Lng-pts[i].Lng) > 1e-5 {
			t.Errorf("point %d: got %+v, want %+v", i, decoded[i], pts[i])
		}
	}
}

func TestPolylineRoundTripNegativeDeltas(t *testing.T) {
	pts := []model.Point{
		{Lat: 31.95, Lng: 35.91},
		{Lat: 31.94001, Lng: 35.89999},
		{Lat: -5.5, Lng: -3.25},
	}
	decoded := DecodePolyline(EncodePolyline(pts))
	if len(decoded) != len(pts) {
		t.Fatalf("decoded %d points, want %d", len(decoded), len(pts))
	}
	for i := range pts {
		if math.Abs(decoded[i].Lat-pts[i].Lat) > 1e-5 || math.Abs(decoded[i].Lng-pts[i].Lng) > 1e-5 {
			t.Errorf("point %d: got %+v, want %+v", i, decoded[i], pts[i])
		}
	}
}

func TestDecodePolylineGarbage(t *testing.T) {
	if pts := DecodePolyline(""); pts != nil {
		t.Errorf("empty input should yield nil")
	}
	// Truncated input must not panic.
	_ = DecodePolyline("_p~iF")
}
