package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trip-tracker/internal/model"
)

func (s *Store) GetRoute(ctx context.Context, id string) (model.Route, error) {
	var r model.Route
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, start_lat, start_lng, end_lat, end_lng FROM routes WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Start.Lat, &r.Start.Lng, &r.End.Lat, &r.End.Lng)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Route{}, ErrNotFound
	}
	if err != nil {
		return model.Route{}, fmt.Errorf("query route: %w", err)
	}
	return r, nil
}

func (s *Store) InsertRoute(ctx context.Context, r model.Route) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO routes (id, name, start_lat, start_lng, end_lat, end_lng) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.Name, r.Start.Lat, r.Start.Lng, r.End.Lat, r.End.Lng)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}
	return nil
}

func (s *Store) InsertStop(ctx context.Context, st model.Stop) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stops (id, route_id, name, lat, lng, kind, order_index, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		st.ID, st.RouteID, st.Name, st.Lat, st.Lng, st.Kind, st.OrderIndex, st.Active)
	if err != nil {
		return fmt.Errorf("insert stop: %w", err)
	}
	return nil
}

func (s *Store) GetStop(ctx context.Context, id string) (model.Stop, error) {
	var st model.Stop
	err := s.db.QueryRowContext(ctx,
		`SELECT id, route_id, name, lat, lng, kind, order_index, active FROM stops WHERE id = $1`, id).
		Scan(&st.ID, &st.RouteID, &st.Name, &st.Lat, &st.Lng, &st.Kind, &st.OrderIndex, &st.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Stop{}, ErrNotFound
	}
	if err != nil {
		return model.Stop{}, fmt.Errorf("query stop: %w", err)
	}
	return st, nil
}

// MaxOrderIndex returns the highest order_index in a (route, kind) partition,
// or -1 when the partition is empty. Inactive stops still occupy their index.
func (s *Store) MaxOrderIndex(ctx context.Context, routeID string, kind model.StopKind) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(order_index) FROM stops WHERE route_id = $1 AND kind = $2`, routeID, kind).
		Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("query max order_index: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// SwapStopOrder exchanges order_index between two stops atomically. Both
// updates carry an optimistic check on the index they are replacing;
// ErrConflict is returned when a concurrent reorder got there first.
func (s *Store) SwapStopOrder(ctx context.Context, a, b model.Stop) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback()

	for _, step := range []struct {
		id       string
		from, to int
	}{
		{a.ID, a.OrderIndex, b.OrderIndex},
		{b.ID, b.OrderIndex, a.OrderIndex},
	} {
		res, err := tx.ExecContext(ctx,
			`UPDATE stops SET order_index = $1 WHERE id = $2 AND order_index = $3`,
			step.to, step.id, step.from)
		if err != nil {
			return fmt.Errorf("swap stop order: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrConflict
		}
	}
	return tx.Commit()
}

func (s *Store) DeactivateStop(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE stops SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate stop: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStops returns the active stops of a route restricted to the given
// kinds, ordered by order_index. Raw indexes may have gaps; display rank
// is the position in this slice.
func (s *Store) ListStops(ctx context.Context, routeID string, kinds []model.StopKind) ([]model.Stop, error) {
	ks := make([]string, len(kinds))
	for i, k := range kinds {
		ks[i] = string(k)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, route_id, name, lat, lng, kind, order_index, active
		 FROM stops
		 WHERE route_id = $1 AND active AND kind = ANY($2)
		 ORDER BY order_index, id`, routeID, ks)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []model.Stop
	for rows.Next() {
		var st model.Stop
		if err := rows.Scan(&st.ID, &st.RouteID, &st.Name, &st.Lat, &st.Lng, &st.Kind, &st.OrderIndex, &st.Active); err != nil {
			return nil, err
		}
		stops = append(stops, st)
	}
	return stops, rows.Err()
}
