package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"trip-tracker/internal/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestGetRouteNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, start_lat").WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "start_lat", "start_lng", "end_lat", "end_lng"}))

	_, err := st.GetRoute(context.Background(), "r1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMaxOrderIndexEmptyPartition(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT MAX\\(order_index\\) FROM stops").WithArgs("r1", "pickup").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	max, err := st.MaxOrderIndex(context.Background(), "r1", model.KindPickup)
	if err != nil {
		t.Fatalf("MaxOrderIndex: %v", err)
	}
	if max != -1 {
		t.Errorf("empty partition max = %d, want -1", max)
	}
}

func TestSwapStopOrderConflictRollsBack(t *testing.T) {
	st, mock := newMockStore(t)

	a := model.Stop{ID: "a", OrderIndex: 0}
	b := model.Stop{ID: "b", OrderIndex: 1}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE stops SET order_index").WithArgs(1, "a", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Second leg misses: someone already moved b.
	mock.ExpectExec("UPDATE stops SET order_index").WithArgs(0, "b", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.SwapStopOrder(context.Background(), a, b)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSwapStopOrderCommits(t *testing.T) {
	st, mock := newMockStore(t)

	a := model.Stop{ID: "a", OrderIndex: 3}
	b := model.Stop{ID: "b", OrderIndex: 7}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE stops SET order_index").WithArgs(7, "a", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE stops SET order_index").WithArgs(3, "b", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.SwapStopOrder(context.Background(), a, b); err != nil {
		t.Fatalf("SwapStopOrder: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeactivateStopMissing(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE stops SET active = FALSE").WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.DeactivateStop(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetStopScan(t *testing.T) {
	st, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "route_id", "name", "lat", "lng", "kind", "order_index", "active"}).
		AddRow("s1", "r1", "gate", 31.95, 35.91, "pickup", 4, true)
	mock.ExpectQuery("SELECT id, route_id, name, lat, lng, kind, order_index, active FROM stops").
		WithArgs("s1").
		WillReturnRows(rows)

	got, err := st.GetStop(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetStop: %v", err)
	}
	if got.Name != "gate" || got.OrderIndex != 4 || got.Kind != model.KindPickup {
		t.Errorf("row scanned wrong: %+v", got)
	}
}
