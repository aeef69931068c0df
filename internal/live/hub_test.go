package live

import (
	"context"
	"testing"
	"time"
)

func TestHubCurrentConsumesPending(t *testing.T) {
	hub := NewHub()
	hub.Push("d1", Sample{Lat: 31.95, Lng: 35.91, Time: t0})

	src := hub.SourceFor("d1")
	got, err := src.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got.Lat != 31.95 {
		t.Errorf("got %+v", got)
	}

	// The pending sample is gone; a second Current must wait.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.Current(ctx); err == nil {
		t.Errorf("second Current should time out without a new push")
	}
}

func TestHubCurrentWaitsForPush(t *testing.T) {
	hub := NewHub()
	src := hub.SourceFor("d1")

	go func() {
		time.Sleep(10 * time.Millisecond)
		hub.Push("d1", Sample{Lat: 1, Lng: 2, Time: t0})
	}()
	got, err := src.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got.Lat != 1 || got.Lng != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestHubWatchDelivers(t *testing.T) {
	hub := NewHub()
	src := hub.SourceFor("d1")

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	hub.Push("d1", Sample{Lat: 1, Lng: 1, Time: t0})
	hub.Push("d1", Sample{Lat: 2, Lng: 2, Time: t0.Add(time.Second)})

	first := <-ch
	second := <-ch
	if first.Lat != 1 || second.Lat != 2 {
		t.Errorf("samples out of order: %+v, %+v", first, second)
	}

	cancel()
	if _, ok := <-ch; ok {
		// Drain until close; buffered samples may still be in flight.
		for range ch {
		}
	}
}

func TestHubDriversAreIsolated(t *testing.T) {
	hub := NewHub()
	hub.Push("d1", Sample{Lat: 1, Lng: 1, Time: t0})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := hub.SourceFor("d2").Current(ctx); err == nil {
		t.Errorf("d2 received d1's sample")
	}
}
