package live

import (
	"context"
	"errors"
	"time"
)

// Positioning-source failures. Each one drives an automatic transition to
// OFFLINE; the service never retries the source silently.
var (
	ErrPermissionDenied = errors.New("live: position permission denied")
	ErrTimeout          = errors.New("live: position acquisition timed out")
	ErrUnavailable      = errors.New("live: position source unavailable")

	// ErrNotOnline is returned when a sample arrives for a driver with no
	// running session.
	ErrNotOnline = errors.New("live: driver is not online")
)

type Sample struct {
	Lat      float64
	Lng      float64
	Accuracy float64 // meters, 0 when the source does not report it
	Time     time.Time
}

// PositionSource is the underlying positioning device or gateway.
type PositionSource interface {
	// Current returns one high-accuracy fix, honoring ctx's deadline.
	Current(ctx context.Context) (Sample, error)
	// Watch emits continuous samples until ctx is cancelled. The channel
	// closes when the source stops, which the service treats as a failure
	// unless it initiated the stop itself.
	Watch(ctx context.Context) (<-chan Sample, error)
}

// classify maps transport-level failures onto the source error taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrTimeout), errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return errors.Join(ErrUnavailable, err)
	}
}
