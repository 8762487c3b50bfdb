package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

// Repository persists intake forms.
type Repository struct {
	db rowQuerier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("intake: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(q rowQuerier) *Repository {
	return &Repository{db: q}
}

// Insert stores the form. The unique index on booking_id turns a second
// submission into ErrAlreadyExists.
func (r *Repository) Insert(ctx context.Context, f *Form) error {
	query := `
		INSERT INTO intake_forms (
			id, booking_id, how_heard_about, checkup_reason,
			has_chronic_diseases, chronic_diseases_details,
			has_major_surgeries, major_surgeries_details,
			wants_capsule_endoscopy, capsule_endoscopy_reason,
			passport_photo_url, arrival_date, needs_airport_pickup, needs_hotel_help, preferred_hotel,
			extra_fees_acknowledged, payment_capture_acknowledged, cancellation_policy_acknowledged
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::date, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		f.ID, f.BookingID, f.HowHeardAbout, f.CheckupReason,
		f.HasChronicDiseases, f.ChronicDiseasesDetails,
		f.HasMajorSurgeries, f.MajorSurgeriesDetails,
		f.WantsCapsuleEndoscopy, f.CapsuleEndoscopyReason,
		f.PassportPhotoURL, f.ArrivalDate, f.NeedsAirportPickup, f.NeedsHotelHelp, f.PreferredHotel,
		f.ExtraFeesAcknowledged, f.PaymentCaptureAcknowledged, f.CancellationPolicyAcknowledged,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("intake: insert form: %w", err)
	}
	return nil
}

// GetByBookingID loads the form submitted for a booking.
func (r *Repository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Form, error) {
	query := `
		SELECT id, booking_id, how_heard_about, checkup_reason,
			has_chronic_diseases, chronic_diseases_details,
			has_major_surgeries, major_surgeries_details,
			wants_capsule_endoscopy, capsule_endoscopy_reason,
			passport_photo_url, arrival_date::text, needs_airport_pickup, needs_hotel_help, preferred_hotel,
			extra_fees_acknowledged, payment_capture_acknowledged, cancellation_policy_acknowledged,
			created_at, updated_at
		FROM intake_forms
		WHERE booking_id = $1
	`
	var f Form
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&f.ID, &f.BookingID, &f.HowHeardAbout, &f.CheckupReason,
		&f.HasChronicDiseases, &f.ChronicDiseasesDetails,
		&f.HasMajorSurgeries, &f.MajorSurgeriesDetails,
		&f.WantsCapsuleEndoscopy, &f.CapsuleEndoscopyReason,
		&f.PassportPhotoURL, &f.ArrivalDate, &f.NeedsAirportPickup, &f.NeedsHotelHelp, &f.PreferredHotel,
		&f.ExtraFeesAcknowledged, &f.PaymentCaptureAcknowledged, &f.CancellationPolicyAcknowledged,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("intake: load form: %w", err)
	}
	return &f, nil
}

// Exists reports whether a form was submitted for the booking.
func (r *Repository) Exists(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM intake_forms WHERE booking_id = $1)`
	if err := r.db.QueryRow(ctx, query, bookingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("intake: check exists: %w", err)
	}
	return exists, nil
}
