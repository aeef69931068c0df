package directions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trip-tracker/internal/geo"
	"trip-tracker/internal/model"
)

func TestRouteDecodesGeometry(t *testing.T) {
	poly := geo.EncodePolyline([]model.Point{
		{Lat: 31.95, Lng: 35.91},
		{Lat: 31.80, Lng: 35.95},
		{Lat: 31.72, Lng: 35.99},
	})
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprintf(w, `{"status":"OK","routes":[{"overview_polyline":{"points":%q},"bounds":{"northeast":{"lat":31.95,"lng":35.99},"southwest":{"lat":31.72,"lng":35.91}}}]}`, poly)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second)
	got, err := c.Route(context.Background(),
		model.Point{Lat: 31.95, Lng: 35.91}, model.Point{Lat: 31.72, Lng: 35.99},
		[]model.Point{{Lat: 31.80, Lng: 35.95}})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(got.Polyline) != 3 {
		t.Errorf("polyline has %d points, want 3", len(got.Polyline))
	}
	if got.Bounds.NorthEast.Lat != 31.95 {
		t.Errorf("bounds = %+v", got.Bounds)
	}
	for _, part := range []string{"mode=driving", "key=test-key", "origin=31.950000%2C35.910000", "waypoints="} {
		if !strings.Contains(gotQuery, part) {
			t.Errorf("query missing %q: %s", part, gotQuery)
		}
	}
}

func TestRouteFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "non-OK status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"status":"ZERO_RESULTS","routes":[]}`)
			},
		},
		{
			name: "empty geometry",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"status":"OK","routes":[{"overview_polyline":{"points":""}}]}`)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `not json`)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL, "test-key", time.Second)
			_, err := c.Route(context.Background(), model.Point{Lat: 1}, model.Point{Lat: 2}, nil)
			if !errors.Is(err, ErrPathComputation) {
				t.Errorf("err = %v, want ErrPathComputation", err)
			}
		})
	}
}

func TestRouteWithoutKey(t *testing.T) {
	c := NewClient("http://example.invalid", "", time.Second)
	_, err := c.Route(context.Background(), model.Point{}, model.Point{}, nil)
	if !errors.Is(err, ErrPathComputation) {
		t.Fatalf("err = %v, want ErrPathComputation", err)
	}
}
