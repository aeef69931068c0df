package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trip-tracker/internal/model"
)

// InsertTripBatch writes the trips and their stop overrides in one
// transaction, so a batch either materializes fully or not at all.
func (s *Store) InsertTripBatch(ctx context.Context, trips []model.Trip, stops []model.TripStop) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trip batch: %w", err)
	}
	defer tx.Rollback()

	for _, t := range trips {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trips (id, route_id, trip_date, trip_type, meeting_time, departure_time,
			                    start_lat, start_lng, end_lat, end_lng, active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			t.ID, t.RouteID, t.Date, t.Type, t.MeetingTime, t.DepartureTime,
			t.Start.Lat, t.Start.Lng, t.End.Lat, t.End.Lng, t.Active); err != nil {
			return fmt.Errorf("insert trip: %w", err)
		}
	}
	for _, st := range stops {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trip_stops (id, trip_id, name, lat, lng, order_index)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			st.ID, st.TripID, st.Name, st.Lat, st.Lng, st.OrderIndex); err != nil {
			return fmt.Errorf("insert trip stop: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetTrip(ctx context.Context, id string) (model.Trip, error) {
	var t model.Trip
	err := s.db.QueryRowContext(ctx,
		`SELECT id, route_id, trip_date, trip_type, meeting_time, departure_time,
		        start_lat, start_lng, end_lat, end_lng, active
		 FROM trips WHERE id = $1`, id).
		Scan(&t.ID, &t.RouteID, &t.Date, &t.Type, &t.MeetingTime, &t.DepartureTime,
			&t.Start.Lat, &t.Start.Lng, &t.End.Lat, &t.End.Lng, &t.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Trip{}, ErrNotFound
	}
	if err != nil {
		return model.Trip{}, fmt.Errorf("query trip: %w", err)
	}
	return t, nil
}

func (s *Store) ListTripStops(ctx context.Context, tripID string) ([]model.TripStop, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, name, lat, lng, order_index
		 FROM trip_stops WHERE trip_id = $1 ORDER BY order_index, id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query trip stops: %w", err)
	}
	defer rows.Close()

	var stops []model.TripStop
	for rows.Next() {
		var st model.TripStop
		if err := rows.Scan(&st.ID, &st.TripID, &st.Name, &st.Lat, &st.Lng, &st.OrderIndex); err != nil {
			return nil, err
		}
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

// CancelTrip clears the trip's active flag and revokes its driver links in
// one transaction. Bookings are untouched.
func (s *Store) CancelTrip(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE trips SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("cancel trip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `UPDATE driver_trips SET active = FALSE WHERE trip_id = $1`, id); err != nil {
		return fmt.Errorf("cancel trip assignments: %w", err)
	}
	return tx.Commit()
}

// CountBlockingBookings returns the number of non-rejected bookings on a
// trip. A positive count blocks hard deletion.
func (s *Store) CountBlockingBookings(ctx context.Context, tripID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE trip_id = $1 AND status <> $2`,
		tripID, model.BookingRejected).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

// DeleteTrip removes the trip together with its stop overrides and driver
// links. The booking guard is the caller's responsibility.
func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trip_stops WHERE trip_id = $1`, id); err != nil {
		return fmt.Errorf("delete trip stops: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM driver_trips WHERE trip_id = $1`, id); err != nil {
		return fmt.Errorf("delete trip assignments: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// TripsForDriver returns the driver's active trips on or after the given
// date, earliest first.
func (s *Store) TripsForDriver(ctx context.Context, driverID string, onOrAfter time.Time) ([]model.Trip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.route_id, t.trip_date, t.trip_type, t.meeting_time, t.departure_time,
		        t.start_lat, t.start_lng, t.end_lat, t.end_lng, t.active
		 FROM trips t
		 JOIN driver_trips dt ON dt.trip_id = t.id
		 WHERE dt.driver_id = $1 AND dt.active AND t.active AND t.trip_date >= $2
		 ORDER BY t.trip_date, t.departure_time, t.id`, driverID, onOrAfter)
	if err != nil {
		return nil, fmt.Errorf("query driver trips: %w", err)
	}
	defer rows.Close()

	var trips []model.Trip
	for rows.Next() {
		var t model.Trip
		if err := rows.Scan(&t.ID, &t.RouteID, &t.Date, &t.Type, &t.MeetingTime, &t.DepartureTime,
			&t.Start.Lat, &t.Start.Lng, &t.End.Lat, &t.End.Lng, &t.Active); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}
