package stops

import (
	"context"
	"errors"
	"testing"

	"trip-tracker/internal/model"
	"trip-tracker/internal/store"
)

type fakeStore struct {
	routes map[string]model.Route
	stops  map[string]model.Stop

	swapConflicts int // SwapStopOrder fails this many times before succeeding
	swapCalls     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		routes: map[string]model.Route{"r1": {ID: "r1", Name: "7th circle"}},
		stops:  map[string]model.Stop{},
	}
}

func (f *fakeStore) GetRoute(_ context.Context, id string) (model.Route, error) {
	r, ok := f.routes[id]
	if !ok {
		return model.Route{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) InsertStop(_ context.Context, st model.Stop) error {
	f.stops[st.ID] = st
	return nil
}

func (f *fakeStore) GetStop(_ context.Context, id string) (model.Stop, error) {
	st, ok := f.stops[id]
	if !ok {
		return model.Stop{}, store.ErrNotFound
	}
	return st, nil
}

func (f *fakeStore) MaxOrderIndex(_ context.Context, routeID string, kind model.StopKind) (int, error) {
	max := -1
	for _, st := range f.stops {
		if st.RouteID == routeID && st.Kind == kind && st.OrderIndex > max {
			max = st.OrderIndex
		}
	}
	return max, nil
}

func (f *fakeStore) SwapStopOrder(_ context.Context, a, b model.Stop) error {
	f.swapCalls++
	if f.swapConflicts > 0 {
		f.swapConflicts--
		return store.ErrConflict
	}
	sa, sb := f.stops[a.ID], f.stops[b.ID]
	sa.OrderIndex, sb.OrderIndex = b.OrderIndex, a.OrderIndex
	f.stops[a.ID], f.stops[b.ID] = sa, sb
	return nil
}

func (f *fakeStore) DeactivateStop(_ context.Context, id string) error {
	st, ok := f.stops[id]
	if !ok {
		return store.ErrNotFound
	}
	st.Active = false
	f.stops[id] = st
	return nil
}

func (f *fakeStore) ListStops(_ context.Context, routeID string, kinds []model.StopKind) ([]model.Stop, error) {
	kindSet := map[model.StopKind]bool{}
	for _, k := range kinds {
		kindSet[k] = true
	}
	var out []model.Stop
	for _, st := range f.stops {
		if st.RouteID == routeID && st.Active && kindSet[st.Kind] {
			out = append(out, st)
		}
	}
	// order by order_index like the SQL does
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].OrderIndex < out[i].OrderIndex {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func TestAddStopAppendsPerPartition(t *testing.T) {
	fs := newFakeStore()
	reg := NewRegistry(fs)
	ctx := context.Background()

	p1, err := reg.AddStop(ctx, "r1", model.KindPickup, "north gate", 31.95, 35.91)
	if err != nil {
		t.Fatalf("AddStop: %v", err)
	}
	if p1.OrderIndex != 0 {
		t.Errorf("first pickup index = %d, want 0", p1.OrderIndex)
	}

	p2, _ := reg.AddStop(ctx, "r1", model.KindPickup, "mid", 31.96, 35.92)
	if p2.OrderIndex != 1 {
		t.Errorf("second pickup index = %d, want 1", p2.OrderIndex)
	}

	// Partitions count independently.
	d1, _ := reg.AddStop(ctx, "r1", model.KindDropoff, "south", 31.90, 35.90)
	if d1.OrderIndex != 0 {
		t.Errorf("first dropoff index = %d, want 0", d1.OrderIndex)
	}
}

func TestAddStopRejectsInvalidCoordinate(t *testing.T) {
	reg := NewRegistry(newFakeStore())

	_, err := reg.AddStop(context.Background(), "r1", model.KindPickup, "bad", 91.0, 35.9)
	if !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("err = %v, want ErrInvalidCoordinate", err)
	}
}

func TestAddStopUnknownRoute(t *testing.T) {
	reg := NewRegistry(newFakeStore())

	_, err := reg.AddStop(context.Background(), "nope", model.KindPickup, "x", 31.9, 35.9)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound", err)
	}
}

func TestRemoveLeavesGapAndRankAbsorbsIt(t *testing.T) {
	fs := newFakeStore()
	reg := NewRegistry(fs)
	ctx := context.Background()

	a, _ := reg.AddStop(ctx, "r1", model.KindBoth, "a", 31.90, 35.90)
	b, _ := reg.AddStop(ctx, "r1", model.KindBoth, "b", 31.91, 35.91)
	c, _ := reg.AddStop(ctx, "r1", model.KindBoth, "c", 31.92, 35.92)

	if err := reg.Remove(ctx, b.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// Index of c stays 2; the gap at 1 remains.
	if got := fs.stops[c.ID].OrderIndex; got != 2 {
		t.Errorf("c index = %d, want 2", got)
	}

	list, err := reg.ListForDirection(ctx, "r1", model.TripDeparture)
	if err != nil {
		t.Fatalf("ListForDirection: %v", err)
	}
	ranked := Rank(list)
	if len(ranked) != 2 {
		t.Fatalf("got %d stops, want 2", len(ranked))
	}
	if ranked[0].Rank != 1 || ranked[0].Stop.ID != a.ID {
		t.Errorf("rank 1 = %+v", ranked[0])
	}
	if ranked[1].Rank != 2 || ranked[1].Stop.ID != c.ID {
		t.Errorf("rank 2 should be c with dense rank despite the index gap, got %+v", ranked[1])
	}
}

func TestReorderSwaps(t *testing.T) {
	fs := newFakeStore()
	reg := NewRegistry(fs)
	ctx := context.Background()

	a, _ := reg.AddStop(ctx, "r1", model.KindPickup, "a", 31.90, 35.90)
	b, _ := reg.AddStop(ctx, "r1", model.KindPickup, "b", 31.91, 35.91)

	if err := reg.Reorder(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if fs.stops[a.ID].OrderIndex != 1 || fs.stops[b.ID].OrderIndex != 0 {
		t.Errorf("indexes after swap: a=%d b=%d", fs.stops[a.ID].OrderIndex, fs.stops[b.ID].OrderIndex)
	}
}

func TestReorderRetriesOnceOnConflict(t *testing.T) {
	fs := newFakeStore()
	reg := NewRegistry(fs)
	ctx := context.Background()

	a, _ := reg.AddStop(ctx, "r1", model.KindPickup, "a", 31.90, 35.90)
	b, _ := reg.AddStop(ctx, "r1", model.KindPickup, "b", 31.91, 35.91)

	fs.swapConflicts = 1
	if err := reg.Reorder(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("Reorder should succeed after one retry: %v", err)
	}
	if fs.swapCalls != 2 {
		t.Errorf("swap calls = %d, want 2", fs.swapCalls)
	}

	fs.swapConflicts = 2
	if err := reg.Reorder(ctx, a.ID, b.ID); !errors.Is(err, store.ErrConflict) {
		t.Errorf("two conflicts should surface ErrConflict, got %v", err)
	}
}

func TestReorderCrossPartition(t *testing.T) {
	fs := newFakeStore()
	reg := NewRegistry(fs)
	ctx := context.Background()

	p, _ := reg.AddStop(ctx, "r1", model.KindPickup, "p", 31.90, 35.90)
	d, _ := reg.AddStop(ctx, "r1", model.KindDropoff, "d", 31.91, 35.91)

	if err := reg.Reorder(ctx, p.ID, d.ID); !errors.Is(err, ErrCrossPartitionReorder) {
		t.Fatalf("err = %v, want ErrCrossPartitionReorder", err)
	}
}

func TestListForDirectionKinds(t *testing.T) {
	fs := newFakeStore()
	reg := NewRegistry(fs)
	ctx := context.Background()

	pickup, _ := reg.AddStop(ctx, "r1", model.KindPickup, "p", 31.90, 35.90)
	dropoff, _ := reg.AddStop(ctx, "r1", model.KindDropoff, "d", 31.91, 35.91)
	both, _ := reg.AddStop(ctx, "r1", model.KindBoth, "b", 31.92, 35.92)

	dep, _ := reg.ListForDirection(ctx, "r1", model.TripDeparture)
	ids := map[string]bool{}
	for _, st := range dep {
		ids[st.ID] = true
	}
	if !ids[pickup.ID] || !ids[both.ID] || ids[dropoff.ID] {
		t.Errorf("departure stops wrong: %v", ids)
	}

	arr, _ := reg.ListForDirection(ctx, "r1", model.TripArrival)
	ids = map[string]bool{}
	for _, st := range arr {
		ids[st.ID] = true
	}
	if !ids[dropoff.ID] || !ids[both.ID] || ids[pickup.ID] {
		t.Errorf("arrival stops wrong: %v", ids)
	}
}
