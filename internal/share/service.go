// Package share issues and resolves the opaque tokens behind the
// anonymous "follow this trip" view. Possession of a token is the only
// credential; resolution exposes a bounded snapshot and nothing else.
package share

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"trip-tracker/internal/model"
)

// ErrTokenNotFound covers every failure mode identically: unknown token,
// revoked, expired, or a backing trip/booking that no longer exists. A
// caller cannot tell a stale token from one that never existed.
var ErrTokenNotFound = errors.New("share: token not found")

type Store interface {
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	InsertToken(ctx context.Context, t model.ShareToken) error
	GetToken(ctx context.Context, token string) (model.ShareToken, error)
	RevokeToken(ctx context.Context, token string) error
	TouchToken(ctx context.Context, token string, at time.Time) error
}

type Catalog interface {
	Get(ctx context.Context, tripID string) (model.Trip, error)
	ResolveStops(ctx context.Context, trip model.Trip) ([]model.Waypoint, error)
}

type Ledger interface {
	DriversFor(ctx context.Context, tripID string) ([]model.Driver, error)
}

type LiveView interface {
	LiveMarkerFor(ctx context.Context, trip model.Trip) (*model.LivePosition, error)
}

// Snapshot is the entire surface a token holder can see. Notably absent:
// passenger identities and full driver contact details.
type Snapshot struct {
	Trip struct {
		ID            string         `json:"id"`
		Date          string         `json:"date"`
		Type          model.TripType `json:"type"`
		MeetingTime   string         `json:"meeting_time,omitempty"`
		DepartureTime string         `json:"departure_time"`
		Start         model.Point    `json:"start"`
		End           model.Point    `json:"end"`
		Active        bool           `json:"active"`
	} `json:"trip"`
	Stops        []model.Waypoint    `json:"stops"`
	SelectedStop string              `json:"selected_stop,omitempty"`
	Driver       *DriverContact      `json:"driver,omitempty"`
	Live         *model.LivePosition `json:"live,omitempty"`
}

type DriverContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"` // masked, never the raw number
}

type Service struct {
	store   Store
	catalog Catalog
	ledger  Ledger
	live    LiveView

	ttl time.Duration // 0: tokens outlive everything but their trip
	now func() time.Time
}

func NewService(store Store, catalog Catalog, ledger Ledger, live LiveView, ttl time.Duration) *Service {
	return &Service{store: store, catalog: catalog, ledger: ledger, live: live, ttl: ttl, now: time.Now}
}

// Issue creates a fresh token for a booking. Re-issuing is allowed and
// leaves earlier tokens valid; revocation is explicit.
func (s *Service) Issue(ctx context.Context, bookingID string) (model.ShareToken, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.ShareToken{}, err
	}
	t := model.ShareToken{
		Token:     strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""),
		BookingID: booking.ID,
		TripID:    booking.TripID,
		CreatedAt: s.now(),
	}
	if s.ttl > 0 {
		exp := t.CreatedAt.Add(s.ttl)
		t.ExpiresAt = &exp
	}
	if err := s.store.InsertToken(ctx, t); err != nil {
		return model.ShareToken{}, err
	}
	return t, nil
}

func (s *Service) Revoke(ctx context.Context, token string) error {
	err := s.store.RevokeToken(ctx, token)
	if err != nil {
		return ErrTokenNotFound
	}
	return nil
}

// Resolve exchanges a token for the read-only tracking snapshot.
func (s *Service) Resolve(ctx context.Context, token string) (Snapshot, error) {
	tok, err := s.store.GetToken(ctx, token)
	if err != nil {
		return Snapshot{}, ErrTokenNotFound
	}
	if tok.Revoked {
		return Snapshot{}, ErrTokenNotFound
	}
	if tok.ExpiresAt != nil && s.now().After(*tok.ExpiresAt) {
		return Snapshot{}, ErrTokenNotFound
	}

	booking, err := s.store.GetBooking(ctx, tok.BookingID)
	if err != nil {
		return Snapshot{}, ErrTokenNotFound
	}
	trip, err := s.catalog.Get(ctx, tok.TripID)
	if err != nil {
		return Snapshot{}, ErrTokenNotFound
	}

	stops, err := s.catalog.ResolveStops(ctx, trip)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	snap.Trip.ID = trip.ID
	snap.Trip.Date = trip.Date.Format("2006-01-02")
	snap.Trip.Type = trip.Type
	snap.Trip.MeetingTime = trip.MeetingTime
	snap.Trip.DepartureTime = trip.DepartureTime
	snap.Trip.Start = trip.Start
	snap.Trip.End = trip.End
	snap.Trip.Active = trip.Active
	snap.Stops = stops
	snap.SelectedStop = booking.StopID

	marker, err := s.live.LiveMarkerFor(ctx, trip)
	if err != nil {
		log.Printf("live marker lookup failed for trip %s: %v", trip.ID, err)
	} else {
		snap.Live = marker
	}

	drivers, err := s.ledger.DriversFor(ctx, trip.ID)
	if err != nil {
		log.Printf("driver lookup failed for trip %s: %v", trip.ID, err)
	} else if len(drivers) > 0 {
		chosen := drivers[0]
		if marker != nil {
			for _, d := range drivers {
				if d.ID == marker.DriverID {
					chosen = d
					break
				}
			}
		}
		snap.Driver = &DriverContact{Name: chosen.Name, Phone: MaskPhone(chosen.Phone)}
	}

	if err := s.store.TouchToken(ctx, tok.Token, s.now()); err != nil {
		log.Printf("token view bookkeeping failed: %v", err)
	}
	return snap, nil
}

// MaskPhone hides all but the last two digits of a contact number.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	keep := 2
	if len(phone) <= keep {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-keep) + phone[len(phone)-keep:]
}
