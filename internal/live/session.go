package live

import (
	"context"
	"sync"
	"time"
)

// Session owns one driver's running sampling loop. Holding the loop in an
// explicit object, rather than a nullable package-level watch handle,
// makes teardown a single operation that cannot be half-forgotten.
type Session struct {
	driverID string
	src      PositionSource
	stop     context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
	err      error

	// In-flight deferred position writes for this session. Drained on
	// teardown so none can land after the offline availability write.
	writes sync.WaitGroup

	// Throttle bookkeeping, guarded by the service mutex.
	lastDisplay time.Time
	lastPersist time.Time
	lastSample  time.Time
}

func (s *Session) DriverID() string { return s.driverID }

// Done is closed when the sampling loop has fully exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the loop ended: nil after a requested GoOffline, or the
// classified source failure that forced the driver offline.
func (s *Session) Err() error {
	<-s.done
	return s.err
}

func (s *Session) finish(err error) {
	s.doneOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}
