package live

import (
	"context"
	"sync"
)

// Hub bridges positions reported over the HTTP surface into per-driver
// position sources. A driver's app posts coordinates; the hub routes each
// one to that driver's feed, where the sampling loop picks it up exactly
// as it would from an on-board device.
type Hub struct {
	mu    sync.Mutex
	feeds map[string]*feed
}

func NewHub() *Hub {
	return &Hub{feeds: make(map[string]*feed)}
}

// SourceFor satisfies SourceFunc.
func (h *Hub) SourceFor(driverID string) PositionSource {
	return h.feed(driverID)
}

// Push hands a reported sample to the driver's feed. Samples for drivers
// nobody is watching are buffered as the pending first fix.
func (h *Hub) Push(driverID string, s Sample) {
	h.feed(driverID).push(s)
}

func (h *Hub) feed(driverID string) *feed {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.feeds[driverID]
	if !ok {
		f = &feed{}
		h.feeds[driverID] = f
	}
	return f
}

// feed is one driver's sample stream. The latest unconsumed sample is kept
// as the pending first fix; Watch subscribers get every sample pushed
// while they are registered.
type feed struct {
	mu       sync.Mutex
	pending  *Sample
	waiters  []chan Sample
	watchers []chan Sample
}

func (f *feed) push(s Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.waiters) > 0 {
		w := f.waiters[0]
		f.waiters = f.waiters[1:]
		w <- s
		return
	}
	for _, ch := range f.watchers {
		select {
		case ch <- s:
		default:
			// A stalled loop drops samples rather than blocking the
			// reporting request.
		}
	}
	if len(f.watchers) == 0 {
		f.pending = &s
	}
}

func (f *feed) Current(ctx context.Context) (Sample, error) {
	f.mu.Lock()
	if f.pending != nil {
		s := *f.pending
		f.pending = nil
		f.mu.Unlock()
		return s, nil
	}
	w := make(chan Sample, 1)
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	select {
	case s := <-w:
		return s, nil
	case <-ctx.Done():
		f.mu.Lock()
		for i, ch := range f.waiters {
			if ch == w {
				f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
				break
			}
		}
		f.mu.Unlock()
		// The waiter may have been handed a sample in the race window.
		select {
		case s := <-w:
			return s, nil
		default:
		}
		return Sample{}, ctx.Err()
	}
}

func (f *feed) Watch(ctx context.Context) (<-chan Sample, error) {
	ch := make(chan Sample, 16)
	f.mu.Lock()
	f.watchers = append(f.watchers, ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		removed := false
		for i, c := range f.watchers {
			if c == ch {
				f.watchers = append(f.watchers[:i], f.watchers[i+1:]...)
				removed = true
				break
			}
		}
		f.mu.Unlock()
		// Only close a channel this goroutine still owns; a dead source
		// may have been torn out from under us already.
		if removed {
			close(ch)
		}
	}()
	return ch, nil
}
