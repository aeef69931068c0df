// Package render turns a trip into something a map can draw: the ordered
// point set, a drivable path, and the live marker. It holds no
// presentation state; zoom and pan belong to whatever consumes the result.
package render

import (
	"context"
	"log"

	"trip-tracker/internal/directions"
	"trip-tracker/internal/model"
)

// Path-computation backends cap the number of intermediate waypoints per
// request; 23 is the practical limit across providers.
const maxWaypoints = 23

type Catalog interface {
	ResolveStops(ctx context.Context, trip model.Trip) ([]model.Waypoint, error)
}

type Ledger interface {
	DriversFor(ctx context.Context, tripID string) ([]model.Driver, error)
}

type Positions interface {
	CurrentPosition(ctx context.Context, driverID string) (model.LivePosition, error)
}

type PathService interface {
	Route(ctx context.Context, origin, dest model.Point, waypoints []model.Point) (directions.Route, error)
}

type Metrics interface {
	PathComputed()
	PathFallback()
}

// Path is everything a rendering adapter needs to frame and draw a trip:
// markers for every point, and a polyline that is always present: either
// the computed drivable route or the straight-line fallback.
type Path struct {
	OrderedPoints []model.Waypoint `json:"ordered_points"`
	DrivablePath  []model.Point    `json:"drivable_path"`
	Fallback      bool             `json:"fallback"`
}

type Renderer struct {
	catalog   Catalog
	ledger    Ledger
	positions Positions
	paths     PathService
	metrics   Metrics // nil disables instrumentation
}

func NewRenderer(catalog Catalog, ledger Ledger, positions Positions, paths PathService, metrics Metrics) *Renderer {
	return &Renderer{catalog: catalog, ledger: ledger, positions: positions, paths: paths, metrics: metrics}
}

// BuildPath assembles start + resolved stops + end and computes a drivable
// path through them. Path computation failing for any reason degrades to a
// straight-line polyline through the same ordered points; this method
// never fails on the path service's account.
func (r *Renderer) BuildPath(ctx context.Context, trip model.Trip) (Path, error) {
	stops, err := r.catalog.ResolveStops(ctx, trip)
	if err != nil {
		return Path{}, err
	}

	start, end := trip.Start, trip.End
	// A departure trip drawn from a geographically later start reads
	// backwards on the map; swap the endpoints and reverse the stop
	// sequence so the rendered route leaves from the logical origin.
	if trip.Type == model.TripDeparture && start.Lat > end.Lat {
		start, end = end, start
		for i, j := 0, len(stops)-1; i < j; i, j = i+1, j-1 {
			stops[i], stops[j] = stops[j], stops[i]
		}
	}

	ordered := make([]model.Waypoint, 0, len(stops)+2)
	ordered = append(ordered, model.Waypoint{Name: "start", Lat: start.Lat, Lng: start.Lng})
	ordered = append(ordered, stops...)
	ordered = append(ordered, model.Waypoint{Name: "end", Lat: end.Lat, Lng: end.Lng})

	// Only the first maxWaypoints stops ride along to path computation;
	// every stop stays in OrderedPoints as a marker.
	capped := stops
	if len(capped) > maxWaypoints {
		capped = capped[:maxWaypoints]
	}
	waypoints := make([]model.Point, len(capped))
	for i, wp := range capped {
		waypoints[i] = model.Point{Lat: wp.Lat, Lng: wp.Lng}
	}

	route, err := r.paths.Route(ctx, start, end, waypoints)
	if err != nil {
		log.Printf("path computation failed for trip %s, using straight line: %v", trip.ID, err)
		if r.metrics != nil {
			r.metrics.PathFallback()
		}
		line := make([]model.Point, len(ordered))
		for i, wp := range ordered {
			line[i] = model.Point{Lat: wp.Lat, Lng: wp.Lng}
		}
		return Path{OrderedPoints: ordered, DrivablePath: line, Fallback: true}, nil
	}
	if r.metrics != nil {
		r.metrics.PathComputed()
	}
	return Path{OrderedPoints: ordered, DrivablePath: route.Polyline}, nil
}

// LiveMarkerFor returns the most recently updated online position among
// the trip's assigned drivers, or nil when none are online. Equal
// timestamps break by driver id so multi-driver trips render stably.
func (r *Renderer) LiveMarkerFor(ctx context.Context, trip model.Trip) (*model.LivePosition, error) {
	drivers, err := r.ledger.DriversFor(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	var best *model.LivePosition
	for _, d := range drivers {
		p, err := r.positions.CurrentPosition(ctx, d.ID)
		if err != nil {
			continue // no record yet for this driver
		}
		if !p.Available {
			continue
		}
		if best == nil ||
			p.UpdatedAt.After(best.UpdatedAt) ||
			(p.UpdatedAt.Equal(best.UpdatedAt) && p.DriverID < best.DriverID) {
			q := p
			best = &q
		}
	}
	return best, nil
}
