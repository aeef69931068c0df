// Package stops owns the ordered waypoint list of a route, partitioned by
// stop kind. Order indexes may grow gaps over time; consumers re-rank by
// sorted position and never treat the raw index as a dense sequence.
package stops

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trip-tracker/internal/geo"
	"trip-tracker/internal/model"
	"trip-tracker/internal/store"
)

var (
	ErrInvalidCoordinate     = errors.New("stops: coordinate out of range")
	ErrCrossPartitionReorder = errors.New("stops: cannot reorder across partitions")
)

type Store interface {
	GetRoute(ctx context.Context, id string) (model.Route, error)
	InsertStop(ctx context.Context, st model.Stop) error
	GetStop(ctx context.Context, id string) (model.Stop, error)
	MaxOrderIndex(ctx context.Context, routeID string, kind model.StopKind) (int, error)
	SwapStopOrder(ctx context.Context, a, b model.Stop) error
	DeactivateStop(ctx context.Context, id string) error
	ListStops(ctx context.Context, routeID string, kinds []model.StopKind) ([]model.Stop, error)
}

type Registry struct {
	store Store
}

func NewRegistry(s Store) *Registry {
	return &Registry{store: s}
}

// AddStop appends a stop to the end of its (route, kind) partition.
func (r *Registry) AddStop(ctx context.Context, routeID string, kind model.StopKind, name string, lat, lng float64) (model.Stop, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return model.Stop{}, fmt.Errorf("%w: (%.6f, %.6f)", ErrInvalidCoordinate, lat, lng)
	}
	if _, err := r.store.GetRoute(ctx, routeID); err != nil {
		return model.Stop{}, err
	}
	max, err := r.store.MaxOrderIndex(ctx, routeID, kind)
	if err != nil {
		return model.Stop{}, err
	}
	st := model.Stop{
		ID:         uuid.NewString(),
		RouteID:    routeID,
		Name:       name,
		Lat:        lat,
		Lng:        lng,
		Kind:       kind,
		OrderIndex: max + 1,
		Active:     true,
	}
	if err := r.store.InsertStop(ctx, st); err != nil {
		return model.Stop{}, err
	}
	return st, nil
}

// Reorder swaps order_index between two stops of the same partition. The
// swap is optimistic; a single concurrent conflict is retried with fresh
// indexes before giving up.
func (r *Registry) Reorder(ctx context.Context, stopAID, stopBID string) error {
	for attempt := 0; ; attempt++ {
		a, err := r.store.GetStop(ctx, stopAID)
		if err != nil {
			return err
		}
		b, err := r.store.GetStop(ctx, stopBID)
		if err != nil {
			return err
		}
		if a.RouteID != b.RouteID || a.Kind != b.Kind {
			return fmt.Errorf("%w: %s/%s vs %s/%s", ErrCrossPartitionReorder, a.RouteID, a.Kind, b.RouteID, b.Kind)
		}
		err = r.store.SwapStopOrder(ctx, a, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt > 0 {
			return err
		}
	}
}

// Remove marks the stop inactive. Sibling indexes are left untouched;
// gaps are expected and absorbed by display ranking.
func (r *Registry) Remove(ctx context.Context, stopID string) error {
	return r.store.DeactivateStop(ctx, stopID)
}

// ListForDirection returns the route's active stops serving the given trip
// type, in stored order.
func (r *Registry) ListForDirection(ctx context.Context, routeID string, tripType model.TripType) ([]model.Stop, error) {
	return r.store.ListStops(ctx, routeID, model.KindsFor(tripType))
}

// Ranked pairs each stop with its 1-based display rank. The rank is the
// position in the sorted, filtered list, never the raw order_index.
type Ranked struct {
	Rank int
	Stop model.Stop
}

func Rank(stops []model.Stop) []Ranked {
	out := make([]Ranked, len(stops))
	for i, st := range stops {
		out[i] = Ranked{Rank: i + 1, Stop: st}
	}
	return out
}
