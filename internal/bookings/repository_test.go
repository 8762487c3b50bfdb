package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/wolfman30/medtour-booking/internal/availability"
)

var slotCols = []string{"id", "slot_date", "slot_time", "is_available", "current_bookings", "max_bookings"}

func TestRepositoryCreateReservesSlotInTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	b := &Booking{
		ID:           uuid.New(),
		UserEmail:    "guest@example.com",
		SelectedDate: "2026-11-02",
		SelectedTime: "09:00",
		Status:       StatusPendingPayment,
		TotalAmount:  520000,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE availability_slots").
		WithArgs("2026-11-02", "09:00").
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(uuid.New(), "2026-11-02", "09:00", true, 1, 1))
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(b.ID, "guest@example.com", pgxmock.AnyArg(), "2026-11-02", "09:00", "pending_payment", 520000).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	if err := NewRepositoryWithDB(mock).Create(context.Background(), b); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !b.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at populated, got %v", b.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryCreateRollsBackWhenSlotFull(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE availability_slots").WithArgs("2026-11-02", "09:00").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err = NewRepositoryWithDB(mock).Create(context.Background(), &Booking{ID: uuid.New(), SelectedDate: "2026-11-02", SelectedTime: "09:00"})
	if !errors.Is(err, availability.ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()
	intent := "pi_123"
	cols := []string{"id", "user_email", "user_phone", "selected_date", "selected_time", "status", "total_amount",
		"stripe_payment_intent_id", "stripe_customer_id", "stripe_checkout_session_id", "payment_captured_at", "created_at", "updated_at"}
	mock.ExpectQuery("FROM bookings WHERE id").WithArgs(id).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(id, "guest@example.com", nil, "2026-11-02", "09:00", "payment_authorized", 520000, &intent, nil, nil, nil, now, now))

	repo := NewRepositoryWithDB(mock)
	b, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if b.Status != StatusPaymentAuthorized || b.PaymentIntentID() != "pi_123" {
		t.Fatalf("unexpected booking %+v", b)
	}

	missing := uuid.New()
	mock.ExpectQuery("FROM bookings WHERE id").WithArgs(missing).WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Get(context.Background(), missing); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryUpdateStatusCancelReleasesSlotAndWritesOutbox(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	change := StatusChange{
		BookingID:    uuid.New(),
		From:         StatusPaymentAuthorized,
		To:           StatusCancelled,
		Actor:        ActorAdmin,
		At:           time.Now().UTC(),
		SelectedDate: "2026-11-02",
		SelectedTime: "09:00",
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings").
		WithArgs(change.BookingID, "payment_authorized", "cancelled", change.At).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE availability_slots").WithArgs("2026-11-02", "09:00").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), change.BookingID.String(), "booking.status_changed.v1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if err := NewRepositoryWithDB(mock).UpdateStatus(context.Background(), change); err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryUpdateStatusConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	change := StatusChange{BookingID: uuid.New(), From: StatusPendingPayment, To: StatusPaymentAuthorized, At: time.Now().UTC()}
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bookings").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	if err := NewRepositoryWithDB(mock).UpdateStatus(context.Background(), change); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryAttachPaymentIntentKeepsCustomerWhenEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`COALESCE\(NULLIF\(\$3, ''\), stripe_customer_id\)`).
		WithArgs(id, "pi_checkout", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := NewRepositoryWithDB(mock).AttachPaymentIntent(context.Background(), id, "pi_checkout", ""); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRepositoryAttachPaymentIntentUnknownBooking(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE bookings").WithArgs(id, "pi_1", "cus_1").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := NewRepositoryWithDB(mock).AttachPaymentIntent(context.Background(), id, "pi_1", "cus_1"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}
