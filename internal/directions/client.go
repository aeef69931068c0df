// Package directions calls the external path-computation service. The
// service is a rate-limited network dependency and is treated as
// unreliable; every failure mode collapses into ErrPathComputation, which
// the renderer absorbs with its straight-line fallback.
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trip-tracker/internal/geo"
	"trip-tracker/internal/model"
)

var ErrPathComputation = errors.New("directions: path computation failed")

type Bounds struct {
	NorthEast model.Point `json:"northeast"`
	SouthWest model.Point `json:"southwest"`
}

type Route struct {
	Polyline []model.Point
	Bounds   Bounds
}

type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

func NewClient(baseURL, key string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Bounds Bounds `json:"bounds"`
	} `json:"routes"`
}

// Route requests a driving path through the ordered waypoints. Callers cap
// the waypoint list; this client sends whatever it is given.
func (c *Client) Route(ctx context.Context, origin, dest model.Point, waypoints []model.Point) (Route, error) {
	if c.key == "" {
		return Route{}, fmt.Errorf("%w: no API key configured", ErrPathComputation)
	}

	q := url.Values{}
	q.Set("origin", fmtPoint(origin))
	q.Set("destination", fmtPoint(dest))
	q.Set("mode", "driving")
	q.Set("key", c.key)
	if len(waypoints) > 0 {
		parts := make([]string, len(waypoints))
		for i, p := range waypoints {
			parts[i] = fmtPoint(p)
		}
		q.Set("waypoints", strings.Join(parts, "|"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/directions/json?"+q.Encode(), nil)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrPathComputation, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrPathComputation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("%w: http %d", ErrPathComputation, resp.StatusCode)
	}
	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrPathComputation, err)
	}
	if body.Status != "OK" || len(body.Routes) == 0 {
		return Route{}, fmt.Errorf("%w: status %s", ErrPathComputation, body.Status)
	}

	pts := geo.DecodePolyline(body.Routes[0].OverviewPolyline.Points)
	if len(pts) == 0 {
		return Route{}, fmt.Errorf("%w: empty geometry", ErrPathComputation)
	}
	return Route{Polyline: pts, Bounds: body.Routes[0].Bounds}, nil
}

func fmtPoint(p model.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
