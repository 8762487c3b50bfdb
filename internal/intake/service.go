package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/internal/validation"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

var intakeTracer = otel.Tracer("medtour.internal.intake")

// BookingStore is the slice of the bookings service intake depends on.
type BookingStore interface {
	Get(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
	Transition(ctx context.Context, id uuid.UUID, to bookings.Status, actor bookings.Actor) (*bookings.Booking, error)
}

// FormStore persists forms.
type FormStore interface {
	Insert(ctx context.Context, f *Form) error
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Form, error)
	Exists(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

// PhotoIssuer recognises passport photo references it handed out.
type PhotoIssuer interface {
	Enabled() bool
	Issued(bookingID uuid.UUID, ref string) bool
}

// Service accepts intake submissions.
type Service struct {
	forms    FormStore
	bookings BookingStore
	photos   PhotoIssuer
	validate *validator.Validate
	logger   *logging.Logger
}

func NewService(forms FormStore, bookingStore BookingStore, logger *logging.Logger) *Service {
	if forms == nil || bookingStore == nil {
		panic("intake: form store and booking store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{forms: forms, bookings: bookingStore, validate: validation.New(), logger: logger}
}

// WithPhotoIssuer restricts passport_photo_url to references the photo store
// issued for the same booking. It has no effect while storage is disabled.
func (s *Service) WithPhotoIssuer(p PhotoIssuer) *Service {
	s.photos = p
	return s
}

// Submit validates and stores the form, then moves the booking to
// intake_submitted. Nothing is written when validation fails.
func (s *Service) Submit(ctx context.Context, bookingID uuid.UUID, f Form) (*Form, error) {
	ctx, span := intakeTracer.Start(ctx, "intake.submit")
	defer span.End()
	span.SetAttributes(attribute.String("medtour.booking_id", bookingID.String()))

	f.Normalize()
	if err := f.Validate(s.validate); err != nil {
		return nil, err
	}
	if s.photos != nil && s.photos.Enabled() && !s.photos.Issued(bookingID, f.PassportPhotoURL) {
		return nil, fmt.Errorf("%w: passport photo must be uploaded for this booking", ErrIncomplete)
	}

	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != bookings.StatusIntakeSubmitted && !b.Status.CanTransitionTo(bookings.StatusIntakeSubmitted) {
		return nil, fmt.Errorf("%w: intake not accepted while %s", bookings.ErrInvalidTransition, b.Status)
	}

	f.ID = uuid.New()
	f.BookingID = bookingID
	if err := s.forms.Insert(ctx, &f); err != nil {
		if errors.Is(err, ErrAlreadyExists) && beforeIntake(b.Status) {
			// A previous submission stored the form but never moved the
			// booking. Finish that submission instead of rejecting this one.
			return s.resume(ctx, bookingID)
		}
		span.RecordError(err)
		return nil, err
	}
	if err := s.markSubmitted(ctx, bookingID); err != nil {
		span.RecordError(err)
		s.logger.Error("intake stored but status update failed", "booking_id", bookingID, "error", err)
		return nil, err
	}
	s.logger.Info("intake submitted", "booking_id", bookingID, "airport_pickup", f.NeedsAirportPickup)
	return &f, nil
}

func (s *Service) resume(ctx context.Context, bookingID uuid.UUID) (*Form, error) {
	stored, err := s.forms.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.markSubmitted(ctx, bookingID); err != nil {
		return nil, err
	}
	s.logger.Warn("intake resubmission completed pending status update", "booking_id", bookingID)
	return stored, nil
}

// markSubmitted moves the booking to intake_submitted, retrying once when a
// concurrent payment update changed the status underneath it.
func (s *Service) markSubmitted(ctx context.Context, bookingID uuid.UUID) error {
	_, err := s.bookings.Transition(ctx, bookingID, bookings.StatusIntakeSubmitted, bookings.ActorCustomer)
	if errors.Is(err, bookings.ErrStatusConflict) {
		_, err = s.bookings.Transition(ctx, bookingID, bookings.StatusIntakeSubmitted, bookings.ActorCustomer)
	}
	if err != nil {
		return fmt.Errorf("intake: update booking status: %w", err)
	}
	return nil
}

func beforeIntake(st bookings.Status) bool {
	return st == bookings.StatusPendingPayment || st == bookings.StatusPaymentAuthorized
}

// ForBooking returns the submitted form, or nil when none exists.
func (s *Service) ForBooking(ctx context.Context, bookingID uuid.UUID) (*Form, error) {
	f, err := s.forms.GetByBookingID(ctx, bookingID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return f, err
}

// Submitted reports whether the booking has an intake form.
func (s *Service) Submitted(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	return s.forms.Exists(ctx, bookingID)
}
