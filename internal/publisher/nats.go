// Package publisher pushes accepted live-position writes and assignment
// changes over NATS. Consumers that cannot subscribe fall back to polling
// the HTTP surface; push is the fast path, not the only one.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"trip-tracker/internal/assign"
	"trip-tracker/internal/model"
)

type Metrics interface {
	PublishedInc()
	PublishErrInc()
	PublishObserve(d time.Duration)
	SetConnected(connected bool)
}

// TripLookup resolves which trip a driver currently serves, so position
// events also land on the per-trip subject that tracking views watch.
type TripLookup interface {
	CurrentTrip(ctx context.Context, driverID string) (model.Trip, bool, error)
}

type NATSPublisher struct {
	nc          *nats.Conn
	trips       TripLookup // nil: driver subjects only
	logSubjects bool
	metrics     Metrics
}

func NewNATSPublisher(url string, trips TripLookup, logSubjects bool, m Metrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("trip-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetConnected(true)
	}
	return &NATSPublisher{nc: nc, trips: trips, logSubjects: logSubjects, metrics: m}, nil
}

// SetTripLookup wires the trip resolver after construction; the resolver's
// ledger also notifies through this publisher, so one of the two has to be
// attached late. Call before traffic starts.
func (p *NATSPublisher) SetTripLookup(t TripLookup) { p.trips = t }

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// PublishPosition emits an accepted position update on the driver subject
// and, when the driver serves a trip, on that trip's subject too.
func (p *NATSPublisher) PublishPosition(pos model.LivePosition) error {
	b, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	if err := p.publish(fmt.Sprintf("live.driver.%s", subjectToken(pos.DriverID)), b); err != nil {
		return err
	}
	if p.trips == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	trip, ok, err := p.trips.CurrentTrip(ctx, pos.DriverID)
	if err != nil {
		log.Printf("current trip lookup failed for driver %s: %v", pos.DriverID, err)
		return nil
	}
	if !ok {
		return nil
	}
	return p.publish(fmt.Sprintf("live.trip.%s", subjectToken(trip.ID)), b)
}

// AssignmentChanged implements assign.Notifier.
func (p *NATSPublisher) AssignmentChanged(ev assign.ChangeEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.publish("assignments.changed", b)
}

// SubscribePositions delivers live updates for one trip until the returned
// cancel function runs.
func (p *NATSPublisher) SubscribePositions(tripID string, fn func(model.LivePosition)) (func(), error) {
	sub, err := p.nc.Subscribe(fmt.Sprintf("live.trip.%s", subjectToken(tripID)), func(msg *nats.Msg) {
		var pos model.LivePosition
		if err := json.Unmarshal(msg.Data, &pos); err != nil {
			log.Printf("bad position message on %s: %v", msg.Subject, err)
			return
		}
		fn(pos)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

func (p *NATSPublisher) publish(subject string, b []byte) error {
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err := p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.PublishErrInc()
		} else {
			p.metrics.PublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
