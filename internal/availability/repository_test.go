package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var slotCols = []string{"id", "slot_date", "slot_time", "is_available", "current_bookings", "max_bookings"}

func TestListByDateComputesAvailability(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows(slotCols).
		AddRow(uuid.New(), "2026-11-02", "09:00", true, 0, 2).
		AddRow(uuid.New(), "2026-11-02", "10:00", true, 2, 2).
		AddRow(uuid.New(), "2026-11-02", "11:00", false, 0, 2)
	mock.ExpectQuery("FROM availability_slots").WithArgs("2026-11-02").WillReturnRows(rows)

	repo := NewRepositoryWithQuerier(mock)
	slots, err := repo.ListByDate(context.Background(), "2026-11-02")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	want := []bool{true, false, false}
	for i, s := range slots {
		if s.Available != want[i] {
			t.Fatalf("slot %s: expected available=%v", s.SlotTime, want[i])
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveIncrementsWhenCapacityRemains(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("UPDATE availability_slots").
		WithArgs("2026-11-02", "09:00").
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(uuid.New(), "2026-11-02", "09:00", true, 1, 1))

	slot, err := Reserve(context.Background(), mock, "2026-11-02", "09:00")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if slot.CurrentBookings != 1 || slot.Available {
		t.Fatalf("expected slot at capacity after reserve, got %+v", slot)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveFullSlotReturnsErrSlotFull(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("UPDATE availability_slots").
		WithArgs("2026-11-02", "10:00").
		WillReturnError(pgx.ErrNoRows)

	_, err = Reserve(context.Background(), mock, "2026-11-02", "10:00")
	if !errors.Is(err, ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}
}

func TestReleaseDecrements(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("UPDATE availability_slots").
		WithArgs("2026-11-02", "09:00").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := Release(context.Background(), mock, "2026-11-02", "09:00"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveMatchesSecondsPrecisionRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`left\(slot_time, 5\) = \$2`).
		WithArgs("2026-11-02", "09:00").
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(uuid.New(), "2026-11-02", "09:00:00", true, 1, 2))

	slot, err := Reserve(context.Background(), mock, "2026-11-02", "09:00")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if slot.SlotTime != "09:00" {
		t.Fatalf("expected slot time normalised to 09:00, got %q", slot.SlotTime)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNormalizeTime(t *testing.T) {
	cases := map[string]string{
		"09:00":     "09:00",
		"09:00:00":  "09:00",
		" 14:30:00": "14:30",
		"9am":       "9am",
		"25:00:00":  "25:00:00",
	}
	for in, want := range cases {
		if got := NormalizeTime(in); got != want {
			t.Errorf("NormalizeTime(%q) = %q, want %q", in, got, want)
		}
	}
}
