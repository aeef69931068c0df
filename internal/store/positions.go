package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trip-tracker/internal/model"
)

// UpsertPosition writes the driver's current-state row in place. There is
// never more than one row per driver; last writer wins.
func (s *Store) UpsertPosition(ctx context.Context, p model.LivePosition) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO live_positions (driver_id, lat, lng, available, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (driver_id) DO UPDATE
		 SET lat = EXCLUDED.lat, lng = EXCLUDED.lng,
		     available = EXCLUDED.available, updated_at = EXCLUDED.updated_at`,
		p.DriverID, p.Lat, p.Lng, p.Available, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// SetAvailability flips the availability flag without touching the stored
// coordinate, which is kept for diagnostics.
func (s *Store) SetAvailability(ctx context.Context, driverID string, available bool, at model.LivePosition) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO live_positions (driver_id, lat, lng, available, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (driver_id) DO UPDATE
		 SET available = EXCLUDED.available, updated_at = EXCLUDED.updated_at`,
		driverID, at.Lat, at.Lng, available, at.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	return nil
}

func (s *Store) GetPosition(ctx context.Context, driverID string) (model.LivePosition, error) {
	var p model.LivePosition
	err := s.db.QueryRowContext(ctx,
		`SELECT driver_id, lat, lng, available, updated_at FROM live_positions WHERE driver_id = $1`,
		driverID).
		Scan(&p.DriverID, &p.Lat, &p.Lng, &p.Available, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LivePosition{}, ErrNotFound
	}
	if err != nil {
		return model.LivePosition{}, fmt.Errorf("query position: %w", err)
	}
	return p, nil
}

// PositionsForDrivers returns the stored rows for the given drivers,
// most recently updated first.
func (s *Store) PositionsForDrivers(ctx context.Context, driverIDs []string) ([]model.LivePosition, error) {
	if len(driverIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT driver_id, lat, lng, available, updated_at
		 FROM live_positions
		 WHERE driver_id = ANY($1)
		 ORDER BY updated_at DESC, driver_id`, driverIDs)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []model.LivePosition
	for rows.Next() {
		var p model.LivePosition
		if err := rows.Scan(&p.DriverID, &p.Lat, &p.Lng, &p.Available, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
