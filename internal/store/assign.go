package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trip-tracker/internal/model"
)

// Assignment upserts are idempotent: re-assigning an existing link only
// flips it back to active, preserving the original row for audit.

func (s *Store) UpsertRouteAssignment(ctx context.Context, driverID, routeID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO driver_routes (id, driver_id, route_id, active)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (driver_id, route_id) DO UPDATE SET active = TRUE`,
		uuid.NewString(), driverID, routeID)
	if err != nil {
		return fmt.Errorf("upsert route assignment: %w", err)
	}
	return nil
}

func (s *Store) UpsertTripAssignment(ctx context.Context, driverID, tripID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO driver_trips (id, driver_id, trip_id, active)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (driver_id, trip_id) DO UPDATE SET active = TRUE`,
		uuid.NewString(), driverID, tripID)
	if err != nil {
		return fmt.Errorf("upsert trip assignment: %w", err)
	}
	return nil
}

func (s *Store) DeactivateRouteAssignment(ctx context.Context, driverID, routeID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE driver_routes SET active = FALSE WHERE driver_id = $1 AND route_id = $2`,
		driverID, routeID)
	if err != nil {
		return fmt.Errorf("deactivate route assignment: %w", err)
	}
	return nil
}

func (s *Store) DeactivateTripAssignment(ctx context.Context, driverID, tripID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE driver_trips SET active = FALSE WHERE driver_id = $1 AND trip_id = $2`,
		driverID, tripID)
	if err != nil {
		return fmt.Errorf("deactivate trip assignment: %w", err)
	}
	return nil
}

func (s *Store) DriversForTrip(ctx context.Context, tripID string) ([]model.Driver, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.name, d.phone
		 FROM drivers d
		 JOIN driver_trips dt ON dt.driver_id = d.id
		 WHERE dt.trip_id = $1 AND dt.active
		 ORDER BY d.id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query trip drivers: %w", err)
	}
	defer rows.Close()

	var drivers []model.Driver
	for rows.Next() {
		var d model.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (s *Store) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	var d model.Driver
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone FROM drivers WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Driver{}, ErrNotFound
	}
	if err != nil {
		return model.Driver{}, fmt.Errorf("query driver: %w", err)
	}
	return d, nil
}
