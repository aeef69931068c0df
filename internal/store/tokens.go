package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trip-tracker/internal/model"
)

func (s *Store) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	var b model.Booking
	err := s.db.QueryRowContext(ctx,
		`SELECT id, trip_id, passenger_id, stop_id, status FROM bookings WHERE id = $1`, id).
		Scan(&b.ID, &b.TripID, &b.PassengerID, &b.StopID, &b.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("query booking: %w", err)
	}
	return b, nil
}

func (s *Store) InsertToken(ctx context.Context, t model.ShareToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO share_tokens (token, booking_id, trip_id, revoked, view_count, expires_at, created_at)
		 VALUES ($1, $2, $3, FALSE, 0, $4, $5)`,
		t.Token, t.BookingID, t.TripID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (s *Store) GetToken(ctx context.Context, token string) (model.ShareToken, error) {
	var t model.ShareToken
	err := s.db.QueryRowContext(ctx,
		`SELECT token, booking_id, trip_id, revoked, view_count, last_viewed_at, expires_at, created_at
		 FROM share_tokens WHERE token = $1`, token).
		Scan(&t.Token, &t.BookingID, &t.TripID, &t.Revoked, &t.ViewCount, &t.LastViewedAt, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ShareToken{}, ErrNotFound
	}
	if err != nil {
		return model.ShareToken{}, fmt.Errorf("query token: %w", err)
	}
	return t, nil
}

func (s *Store) RevokeToken(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE share_tokens SET revoked = TRUE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchToken records a successful view; failures here are non-fatal to the
// resolve path and are logged by the caller.
func (s *Store) TouchToken(ctx context.Context, token string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE share_tokens SET view_count = view_count + 1, last_viewed_at = $2 WHERE token = $1`,
		token, at)
	if err != nil {
		return fmt.Errorf("touch token: %w", err)
	}
	return nil
}
