package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/medtour-booking/internal/availability"
	"github.com/wolfman30/medtour-booking/internal/events"
)

// Store is the persistence contract used by Service.
type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateStatus(ctx context.Context, change StatusChange) error
	AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID, customerID string) error
	AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error
	MarkCaptured(ctx context.Context, id uuid.UUID, capturedAt time.Time) error
}

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const bookingColumns = `id, user_email, user_phone, selected_date::text, selected_time, status,
	total_amount, stripe_payment_intent_id, stripe_customer_id, stripe_checkout_session_id,
	payment_captured_at, created_at, updated_at`

// Repository provides persistence helpers for bookings.
type Repository struct {
	db pgxDB
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db pgxDB) *Repository {
	return &Repository{db: db}
}

// Create reserves the slot and inserts the booking in one transaction, so a
// booking row exists only if its slot capacity was taken.
func (r *Repository) Create(ctx context.Context, b *Booking) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := availability.Reserve(ctx, tx, b.SelectedDate, b.SelectedTime); err != nil {
		return err
	}
	query := `
		INSERT INTO bookings (id, user_email, user_phone, selected_date, selected_time, status, total_amount)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query, b.ID, b.UserEmail, b.UserPhone, b.SelectedDate, b.SelectedTime, string(b.Status), b.TotalAmount).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("bookings: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("bookings: commit create: %w", err)
	}
	return nil
}

// Get loads a booking by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: load: %w", err)
	}
	return b, nil
}

// UpdateStatus writes change.To only if the row still holds change.From,
// appends the lifecycle event and, for cancellations, frees the slot.
func (r *Repository) UpdateStatus(ctx context.Context, change StatusChange) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookings: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE bookings
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`
	ct, err := tx.Exec(ctx, query, change.BookingID, string(change.From), string(change.To), change.At)
	if err != nil {
		return fmt.Errorf("bookings: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	if change.ReleasesSlot() {
		if err := availability.Release(ctx, tx, change.SelectedDate, change.SelectedTime); err != nil {
			return err
		}
	}
	payload := events.BookingStatusChangedV1{
		EventID:    uuid.NewString(),
		BookingID:  change.BookingID.String(),
		From:       string(change.From),
		To:         string(change.To),
		Actor:      string(change.Actor),
		OccurredAt: change.At,
	}
	if _, err := events.AppendOutbox(ctx, tx, change.BookingID.String(), events.TypeBookingStatusChanged, payload); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("bookings: commit status: %w", err)
	}
	return nil
}

// AttachPaymentIntent stores the Stripe intent and customer ids.
// AttachPaymentIntent stores the intent that holds the booking's funds. An
// empty customerID keeps the stored customer.
func (r *Repository) AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID, customerID string) error {
	query := `
		UPDATE bookings
		SET stripe_payment_intent_id = $2,
		    stripe_customer_id = COALESCE(NULLIF($3, ''), stripe_customer_id),
		    updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, "attach payment intent", query, id, intentID, customerID)
}

// AttachCheckoutSession stores the Stripe checkout session id.
func (r *Repository) AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	query := `
		UPDATE bookings
		SET stripe_checkout_session_id = $2, updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, "attach checkout session", query, id, sessionID)
}

// MarkCaptured records when the authorization hold was captured.
func (r *Repository) MarkCaptured(ctx context.Context, id uuid.UUID, capturedAt time.Time) error {
	query := `
		UPDATE bookings
		SET payment_captured_at = $2, updated_at = now()
		WHERE id = $1
	`
	return r.execOne(ctx, "mark captured", query, id, capturedAt)
}

func (r *Repository) execOne(ctx context.Context, op, query string, args ...any) error {
	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("bookings: %s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var status string
	if err := row.Scan(
		&b.ID,
		&b.UserEmail,
		&b.UserPhone,
		&b.SelectedDate,
		&b.SelectedTime,
		&status,
		&b.TotalAmount,
		&b.StripePaymentIntentID,
		&b.StripeCustomerID,
		&b.StripeCheckoutSessionID,
		&b.PaymentCapturedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Status = Status(status)
	return &b, nil
}
