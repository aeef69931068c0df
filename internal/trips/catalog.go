// Package trips materializes dated, directional trip instances from a
// route template and resolves the stop list a consumer should render.
package trips

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"trip-tracker/internal/model"
)

var (
	ErrMissingDepartureTime = errors.New("trips: departure time is required")
	ErrHasBookings          = errors.New("trips: trip has non-rejected bookings")
)

type Store interface {
	GetRoute(ctx context.Context, id string) (model.Route, error)
	GetTrip(ctx context.Context, id string) (model.Trip, error)
	InsertTripBatch(ctx context.Context, trips []model.Trip, stops []model.TripStop) error
	ListTripStops(ctx context.Context, tripID string) ([]model.TripStop, error)
	CancelTrip(ctx context.Context, id string) error
	CountBlockingBookings(ctx context.Context, tripID string) (int, error)
	DeleteTrip(ctx context.Context, id string) error
}

// StopSource is the route-level fallback when a trip carries no overrides.
type StopSource interface {
	ListForDirection(ctx context.Context, routeID string, tripType model.TripType) ([]model.Stop, error)
}

type Catalog struct {
	store Store
	stops StopSource
}

func NewCatalog(s Store, stops StopSource) *Catalog {
	return &Catalog{store: s, stops: stops}
}

// CreateBatch materializes one trip per date from a single template. Each
// trip snapshots the route's start/end at creation time; later route edits
// do not reach back into existing trips. When stopOverrides are given,
// every trip gets its own TripStop copies in the given order.
func (c *Catalog) CreateBatch(ctx context.Context, routeID string, tripType model.TripType, dates []time.Time, meetingTime, departureTime string, stopOverrides []model.Waypoint) ([]model.Trip, error) {
	if departureTime == "" {
		return nil, ErrMissingDepartureTime
	}
	if _, err := time.Parse("15:04", departureTime); err != nil {
		return nil, fmt.Errorf("%w: bad format %q", ErrMissingDepartureTime, departureTime)
	}
	if meetingTime != "" {
		if _, err := time.Parse("15:04", meetingTime); err != nil {
			return nil, fmt.Errorf("trips: bad meeting time %q", meetingTime)
		}
	}

	route, err := c.store.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}

	// Treat the date list as a set: drop duplicates, keep calendar order.
	uniq := make(map[string]time.Time, len(dates))
	for _, d := range dates {
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		uniq[day.Format("2006-01-02")] = day
	}
	days := make([]time.Time, 0, len(uniq))
	for _, d := range uniq {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	trips := make([]model.Trip, 0, len(days))
	var tripStops []model.TripStop
	for _, day := range days {
		t := model.Trip{
			ID:            uuid.NewString(),
			RouteID:       route.ID,
			Date:          day,
			Type:          tripType,
			MeetingTime:   meetingTime,
			DepartureTime: departureTime,
			Start:         route.Start,
			End:           route.End,
			Active:        true,
		}
		trips = append(trips, t)
		for i, wp := range stopOverrides {
			tripStops = append(tripStops, model.TripStop{
				ID:         uuid.NewString(),
				TripID:     t.ID,
				Name:       wp.Name,
				Lat:        wp.Lat,
				Lng:        wp.Lng,
				OrderIndex: i,
			})
		}
	}
	if err := c.store.InsertTripBatch(ctx, trips, tripStops); err != nil {
		return nil, err
	}
	return trips, nil
}

func (c *Catalog) Get(ctx context.Context, tripID string) (model.Trip, error) {
	return c.store.GetTrip(ctx, tripID)
}

// ResolveStops returns the trip's own overrides when any exist, otherwise
// the route's stops filtered to the kinds matching the trip's direction.
// The result is always one source or the other, never a mix.
func (c *Catalog) ResolveStops(ctx context.Context, trip model.Trip) ([]model.Waypoint, error) {
	own, err := c.store.ListTripStops(ctx, trip.ID)
	if err != nil {
		return nil, err
	}
	if len(own) > 0 {
		wps := make([]model.Waypoint, len(own))
		for i, st := range own {
			wps[i] = model.Waypoint{Name: st.Name, Lat: st.Lat, Lng: st.Lng}
		}
		return wps, nil
	}
	routeStops, err := c.stops.ListForDirection(ctx, trip.RouteID, trip.Type)
	if err != nil {
		return nil, err
	}
	wps := make([]model.Waypoint, len(routeStops))
	for i, st := range routeStops {
		wps[i] = model.Waypoint{Name: st.Name, Lat: st.Lat, Lng: st.Lng}
	}
	return wps, nil
}

// Cancel soft-cancels: the trip goes inactive and its driver links are
// revoked, while bookings stay untouched for history. One-way from this
// core's perspective.
func (c *Catalog) Cancel(ctx context.Context, tripID string) error {
	return c.store.CancelTrip(ctx, tripID)
}

// Delete removes a trip outright, but only when no non-rejected booking
// references it; otherwise the caller should cancel instead.
func (c *Catalog) Delete(ctx context.Context, tripID string) error {
	n, err := c.store.CountBlockingBookings(ctx, tripID)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d blocking", ErrHasBookings, n)
	}
	return c.store.DeleteTrip(ctx, tripID)
}
