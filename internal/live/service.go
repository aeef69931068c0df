// Package live accepts driver position samples, throttles them, and keeps
// the per-driver current-state record that every tracking view reads.
//
// One long-lived sampling loop runs per online driver, owned by an
// explicit Session handed out by GoOnline and consumed by GoOffline.
// Raw samples can arrive every few seconds; two independent throttles
// (display and persistence) gate how often a sample actually takes
// effect, both measured from the last accepted event.
package live

import (
	"context"
	"log"
	"sync"
	"time"

	"trip-tracker/internal/model"
)

type Store interface {
	UpsertPosition(ctx context.Context, p model.LivePosition) error
	SetAvailability(ctx context.Context, driverID string, available bool, at model.LivePosition) error
	GetPosition(ctx context.Context, driverID string) (model.LivePosition, error)
}

// Publisher pushes every accepted display update to subscribers. The share
// surface polls instead; push is an optimization, not a dependency.
type Publisher interface {
	PublishPosition(p model.LivePosition) error
}

type Metrics interface {
	SampleAccepted()
	SampleDropped(reason string)
	PersistOK()
	PersistErr()
	SetOnlineDrivers(n int)
}

// SourceFunc yields the position source serving one driver. Sources may be
// shared or per-driver; the Hub hands out one per driver.
type SourceFunc func(driverID string) PositionSource

type Service struct {
	store   Store
	sources SourceFunc
	pub     Publisher // nil disables push
	metrics Metrics   // nil disables instrumentation

	displayThrottle time.Duration
	persistThrottle time.Duration
	firstFixTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	latest   map[string]model.LivePosition

	wg sync.WaitGroup
}

func NewService(store Store, sources SourceFunc, pub Publisher, metrics Metrics, displayThrottle, persistThrottle, firstFixTimeout time.Duration) *Service {
	return &Service{
		store:           store,
		sources:         sources,
		pub:             pub,
		metrics:         metrics,
		displayThrottle: displayThrottle,
		persistThrottle: persistThrottle,
		firstFixTimeout: firstFixTimeout,
		sessions:        make(map[string]*Session),
		latest:          make(map[string]model.LivePosition),
	}
}

// GoOnline acquires one high-accuracy fix synchronously, outside both
// throttles, so the first marker never waits a full throttle window, and
// then starts the driver's sampling loop. A fresh call resets throttle
// state; an already-running session for the driver is replaced.
//
// Callers that already hold a fix pass it as first; it is taken as-is.
// Handing it to the source instead would race the outgoing session's
// watcher, which would swallow it. With first nil the source is asked for
// one, bounded by the first-fix timeout.
func (s *Service) GoOnline(ctx context.Context, driverID string, first *Sample) (*Session, error) {
	if old, ok := s.Session(driverID); ok {
		if err := s.GoOffline(ctx, old); err != nil && err != ErrNotOnline {
			return nil, err
		}
	}

	src := s.sources(driverID)
	var sample Sample
	if first != nil {
		sample = *first
	} else {
		fixCtx, cancel := context.WithTimeout(ctx, s.firstFixTimeout)
		got, err := src.Current(fixCtx)
		cancel()
		if err != nil {
			err = classify(err)
			s.writeOffline(ctx, driverID)
			return nil, err
		}
		sample = got
	}

	pos := model.LivePosition{
		DriverID:  driverID,
		Lat:       sample.Lat,
		Lng:       sample.Lng,
		Available: true,
		UpdatedAt: sample.Time,
	}
	if err := s.store.UpsertPosition(ctx, pos); err != nil {
		return nil, err
	}

	loopCtx, stop := context.WithCancel(context.Background())
	// Throttle state starts clear: the first fix does not count against
	// either throttle, so the next raw sample is also accepted immediately.
	sess := &Session{
		driverID:   driverID,
		src:        src,
		stop:       stop,
		done:       make(chan struct{}),
		lastSample: sample.Time,
	}

	s.mu.Lock()
	s.sessions[driverID] = sess
	s.latest[driverID] = pos
	n := len(s.sessions)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetOnlineDrivers(n)
	}
	s.publish(pos)

	s.wg.Add(1)
	go s.run(loopCtx, sess)

	log.Printf("driver %s online at (%.6f, %.6f)", driverID, pos.Lat, pos.Lng)
	return sess, nil
}

// run is the per-driver sampling loop. It consumes the source until the
// session is stopped or the source fails, in which case the driver is
// transitioned offline with a distinguishable error.
func (s *Service) run(ctx context.Context, sess *Session) {
	defer s.wg.Done()

	ch, err := sess.src.Watch(ctx)
	if err != nil {
		s.failOffline(sess, classify(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			// GoOffline owns the state transition; just exit.
			sess.finish(nil)
			return
		case sample, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					sess.finish(nil)
					return
				}
				s.failOffline(sess, ErrUnavailable)
				return
			}
			if err := s.ReportPosition(context.Background(), sess.driverID, sample.Lat, sample.Lng, sample.Time); err != nil {
				// Session was torn down while the sample was in flight.
				sess.finish(nil)
				return
			}
		}
	}
}

// ReportPosition applies both throttles to a raw sample. Throttles are
// measured from the last accepted event, not the raw sampling rate;
// out-of-order and duplicate samples are dropped, not merged. The durable
// write is deferred so the caller never blocks on storage.
func (s *Service) ReportPosition(ctx context.Context, driverID string, lat, lng float64, at time.Time) error {
	s.mu.Lock()
	sess, ok := s.sessions[driverID]
	if !ok {
		s.mu.Unlock()
		return ErrNotOnline
	}
	if !at.After(sess.lastSample) {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.SampleDropped("stale")
		}
		return nil
	}
	sess.lastSample = at

	display := at.Sub(sess.lastDisplay) >= s.displayThrottle
	persist := at.Sub(sess.lastPersist) >= s.persistThrottle
	if display {
		sess.lastDisplay = at
	}
	if persist {
		sess.lastPersist = at
		// Counted while the session is still in the map, so GoOffline is
		// guaranteed to see this write and drain it before flipping the
		// durable availability flag.
		sess.writes.Add(1)
	}

	pos := model.LivePosition{DriverID: driverID, Lat: lat, Lng: lng, Available: true, UpdatedAt: at}
	if display {
		s.latest[driverID] = pos
	}
	s.mu.Unlock()

	if !display && !persist {
		if s.metrics != nil {
			s.metrics.SampleDropped("throttled")
		}
		return nil
	}
	if s.metrics != nil {
		s.metrics.SampleAccepted()
	}
	if display {
		s.publish(pos)
	}
	if persist {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer sess.writes.Done()
			if err := s.store.UpsertPosition(context.Background(), pos); err != nil {
				log.Printf("position write failed for driver %s: %v", driverID, err)
				if s.metrics != nil {
					s.metrics.PersistErr()
				}
				return
			}
			if s.metrics != nil {
				s.metrics.PersistOK()
			}
		}()
	}
	return nil
}

// GoOffline stops the sampling loop and flips availability as one logical
// transition: the session is removed and the in-memory record goes
// unavailable in a single critical section, so no reader can observe a
// stopped loop still marked online. The availability write itself is
// synchronous and unthrottled.
func (s *Service) GoOffline(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNotOnline
	}
	s.mu.Lock()
	current, ok := s.sessions[sess.driverID]
	if !ok || current != sess {
		s.mu.Unlock()
		return ErrNotOnline
	}
	delete(s.sessions, sess.driverID)
	p := s.latest[sess.driverID]
	p.DriverID = sess.driverID
	p.Available = false
	p.UpdatedAt = time.Now()
	s.latest[sess.driverID] = p
	n := len(s.sessions)
	s.mu.Unlock()

	sess.stop()
	<-sess.done
	// Drain deferred position writes first; one landing after the
	// availability write would resurrect available=true in the store.
	sess.writes.Wait()

	if s.metrics != nil {
		s.metrics.SetOnlineDrivers(n)
	}
	log.Printf("driver %s offline", sess.driverID)
	return s.store.SetAvailability(ctx, sess.driverID, false, p)
}

// failOffline is the internal twin of GoOffline for source failures.
func (s *Service) failOffline(sess *Session, reason error) {
	s.mu.Lock()
	if s.sessions[sess.driverID] == sess {
		delete(s.sessions, sess.driverID)
	}
	p := s.latest[sess.driverID]
	p.DriverID = sess.driverID
	p.Available = false
	p.UpdatedAt = time.Now()
	s.latest[sess.driverID] = p
	n := len(s.sessions)
	s.mu.Unlock()

	sess.stop()
	sess.writes.Wait()
	log.Printf("driver %s forced offline: %v", sess.driverID, reason)
	if s.metrics != nil {
		s.metrics.SetOnlineDrivers(n)
	}
	s.writeOffline(context.Background(), sess.driverID)
	sess.finish(reason)
}

func (s *Service) writeOffline(ctx context.Context, driverID string) {
	s.mu.Lock()
	p := s.latest[driverID]
	s.mu.Unlock()
	p.DriverID = driverID
	p.Available = false
	p.UpdatedAt = time.Now()
	if err := s.store.SetAvailability(ctx, driverID, false, p); err != nil {
		log.Printf("availability write failed for driver %s: %v", driverID, err)
	}
}

// CurrentPosition returns the freshest known record for the driver.
// Callers must treat Available=false as "no live marker" even though a
// last coordinate may still be present.
func (s *Service) CurrentPosition(ctx context.Context, driverID string) (model.LivePosition, error) {
	s.mu.Lock()
	p, ok := s.latest[driverID]
	s.mu.Unlock()
	if ok {
		return p, nil
	}
	return s.store.GetPosition(ctx, driverID)
}

// Session looks up the running session for a driver.
func (s *Service) Session(driverID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[driverID]
	return sess, ok
}

// Close stops every running session and waits for in-flight writes.
func (s *Service) Close(ctx context.Context) {
	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()
	for _, sess := range open {
		if err := s.GoOffline(ctx, sess); err != nil && err != ErrNotOnline {
			log.Printf("shutdown: offline %s: %v", sess.driverID, err)
		}
	}
	s.wg.Wait()
}

func (s *Service) publish(p model.LivePosition) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishPosition(p); err != nil {
		log.Printf("position publish failed for driver %s: %v", p.DriverID, err)
	}
}
