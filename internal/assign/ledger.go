// Package assign keeps the many-to-many links between drivers, routes and
// trips. Links are revoked, never deleted, so assignment history survives.
package assign

import (
	"context"
	"log"
	"time"

	"trip-tracker/internal/model"
)

type Store interface {
	UpsertRouteAssignment(ctx context.Context, driverID, routeID string) error
	UpsertTripAssignment(ctx context.Context, driverID, tripID string) error
	DeactivateRouteAssignment(ctx context.Context, driverID, routeID string) error
	DeactivateTripAssignment(ctx context.Context, driverID, tripID string) error
	DriversForTrip(ctx context.Context, tripID string) ([]model.Driver, error)
	TripsForDriver(ctx context.Context, driverID string, onOrAfter time.Time) ([]model.Trip, error)
}

// Notifier is the narrow notification collaborator: assignment changes are
// reported fire-and-forget, the payload beyond this event is not ours.
type Notifier interface {
	AssignmentChanged(ev ChangeEvent) error
}

type ChangeEvent struct {
	DriverID string    `json:"driver_id"`
	RouteID  string    `json:"route_id,omitempty"`
	TripID   string    `json:"trip_id,omitempty"`
	Assigned bool      `json:"assigned"`
	At       time.Time `json:"at"`
}

type Ledger struct {
	store    Store
	notifier Notifier // nil disables notifications

	now func() time.Time
}

func NewLedger(s Store, n Notifier) *Ledger {
	return &Ledger{store: s, notifier: n, now: time.Now}
}

func (l *Ledger) AssignDriverToRoute(ctx context.Context, driverID, routeID string) error {
	if err := l.store.UpsertRouteAssignment(ctx, driverID, routeID); err != nil {
		return err
	}
	l.notify(ChangeEvent{DriverID: driverID, RouteID: routeID, Assigned: true, At: l.now()})
	return nil
}

func (l *Ledger) AssignDriverToTrip(ctx context.Context, driverID, tripID string) error {
	if err := l.store.UpsertTripAssignment(ctx, driverID, tripID); err != nil {
		return err
	}
	l.notify(ChangeEvent{DriverID: driverID, TripID: tripID, Assigned: true, At: l.now()})
	return nil
}

func (l *Ledger) UnassignDriverFromRoute(ctx context.Context, driverID, routeID string) error {
	if err := l.store.DeactivateRouteAssignment(ctx, driverID, routeID); err != nil {
		return err
	}
	l.notify(ChangeEvent{DriverID: driverID, RouteID: routeID, Assigned: false, At: l.now()})
	return nil
}

func (l *Ledger) UnassignDriverFromTrip(ctx context.Context, driverID, tripID string) error {
	if err := l.store.DeactivateTripAssignment(ctx, driverID, tripID); err != nil {
		return err
	}
	l.notify(ChangeEvent{DriverID: driverID, TripID: tripID, Assigned: false, At: l.now()})
	return nil
}

func (l *Ledger) DriversFor(ctx context.Context, tripID string) ([]model.Driver, error) {
	return l.store.DriversForTrip(ctx, tripID)
}

func (l *Ledger) TripsFor(ctx context.Context, driverID string, onOrAfter time.Time) ([]model.Trip, error) {
	return l.store.TripsForDriver(ctx, driverID, onOrAfter)
}

// CurrentTrip picks the driver's earliest active trip dated today or later.
// ok is false when the driver has no current trip.
func (l *Ledger) CurrentTrip(ctx context.Context, driverID string) (model.Trip, bool, error) {
	now := l.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	trips, err := l.store.TripsForDriver(ctx, driverID, today)
	if err != nil {
		return model.Trip{}, false, err
	}
	if len(trips) == 0 {
		return model.Trip{}, false, nil
	}
	return trips[0], true, nil
}

func (l *Ledger) notify(ev ChangeEvent) {
	if l.notifier == nil {
		return
	}
	go func() {
		if err := l.notifier.AssignmentChanged(ev); err != nil {
			log.Printf("assignment notify failed for driver %s: %v", ev.DriverID, err)
		}
	}()
}
