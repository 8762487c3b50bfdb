package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medtour-booking/internal/availability"
	"github.com/wolfman30/medtour-booking/internal/observability/metrics"
	"github.com/wolfman30/medtour-booking/internal/validation"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

var bookingsTracer = otel.Tracer("medtour.internal.bookings")

// SlotInvalidator is told when a day's capacity changed.
type SlotInvalidator interface {
	Invalidate(ctx context.Context, date string)
}

// ExpiryScheduler arranges for an unpaid booking to be cancelled later so
// its slot is not held forever.
type ExpiryScheduler interface {
	ScheduleBookingExpiry(ctx context.Context, bookingID uuid.UUID) error
}

// Service owns booking creation and every status change.
type Service struct {
	store    Store
	slots    SlotInvalidator
	expiry   ExpiryScheduler
	metrics  *metrics.BookingMetrics
	validate *validator.Validate
	logger   *logging.Logger
	amount   int
	location *time.Location
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithSlotInvalidator drops cached availability after reservations.
func WithSlotInvalidator(inv SlotInvalidator) Option {
	return func(s *Service) { s.slots = inv }
}

// WithExpiryScheduler schedules expiry of every booking Create stores.
func WithExpiryScheduler(e ExpiryScheduler) Option {
	return func(s *Service) { s.expiry = e }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPackageAmount overrides the stored total in minor units.
func WithPackageAmount(amount int) Option {
	return func(s *Service) {
		if amount > 0 {
			s.amount = amount
		}
	}
}

// WithLocation sets the zone used to decide whether a date is in the past.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// DefaultPackageAmount is the base checkup price in fen (5,200 RMB).
const DefaultPackageAmount = 520000

// NewService constructs a bookings service.
func NewService(store Store, logger *logging.Logger, opts ...Option) *Service {
	if store == nil {
		panic("bookings: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:    store,
		validate: validation.New(),
		logger:   logger,
		amount:   DefaultPackageAmount,
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the request, takes slot capacity and stores a
// pending_payment booking.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()

	in.UserEmail = strings.TrimSpace(in.UserEmail)
	in.UserPhone = strings.TrimSpace(in.UserPhone)
	in.SelectedTime = availability.NormalizeTime(in.SelectedTime)
	if err := s.validate.Struct(in); err != nil {
		s.metrics.ObserveCreated("invalid")
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, validation.Summary(err))
	}
	day, err := time.ParseInLocation("2006-01-02", in.SelectedDate, s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: selected_date", ErrInvalidInput)
	}
	today := s.now().In(s.location)
	if day.Before(time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.location)) {
		s.metrics.ObserveCreated("invalid")
		return nil, ErrDateInPast
	}

	b := &Booking{
		ID:           uuid.New(),
		UserEmail:    in.UserEmail,
		SelectedDate: in.SelectedDate,
		SelectedTime: in.SelectedTime,
		Status:       StatusPendingPayment,
		TotalAmount:  s.amount,
	}
	if in.UserPhone != "" {
		phone := in.UserPhone
		b.UserPhone = &phone
	}
	span.SetAttributes(
		attribute.String("medtour.booking_id", b.ID.String()),
		attribute.String("medtour.slot_date", b.SelectedDate),
		attribute.String("medtour.slot_time", b.SelectedTime),
	)

	if err := s.store.Create(ctx, b); err != nil {
		span.RecordError(err)
		if errors.Is(err, availability.ErrSlotFull) {
			s.metrics.ObserveCreated("slot_full")
		} else {
			s.metrics.ObserveCreated("error")
		}
		return nil, err
	}
	s.invalidate(ctx, b.SelectedDate)
	if s.expiry != nil {
		if err := s.expiry.ScheduleBookingExpiry(ctx, b.ID); err != nil {
			// The booking stands; an admin can still cancel it by hand.
			s.logger.Error("schedule payment expiry failed", "booking_id", b.ID, "error", err)
		}
	}
	s.metrics.ObserveCreated("ok")
	s.logger.Info("booking created", "booking_id", b.ID, "date", b.SelectedDate, "time", b.SelectedTime)
	return b, nil
}

// Get loads a booking.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

// Transition is the single entry point for status changes. A request for
// the booking's current status succeeds without writing.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status, actor Actor) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("medtour.booking_id", id.String()),
		attribute.String("medtour.status_to", string(to)),
		attribute.String("medtour.actor", string(actor)),
	)

	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == to {
		return b, nil
	}
	if !b.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}

	change := StatusChange{
		BookingID:    b.ID,
		From:         b.Status,
		To:           to,
		Actor:        actor,
		At:           s.now().UTC(),
		SelectedDate: b.SelectedDate,
		SelectedTime: b.SelectedTime,
	}
	if err := s.store.UpdateStatus(ctx, change); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if change.ReleasesSlot() {
		s.invalidate(ctx, b.SelectedDate)
	}
	s.metrics.ObserveTransition(string(change.From), string(change.To))
	s.logger.Info("booking status changed", "booking_id", b.ID, "from", change.From, "to", change.To, "actor", actor)

	b.Status = to
	b.UpdatedAt = change.At
	return b, nil
}

// MarkPaymentAuthorized advances a pending booking after checkout. Bookings
// already past pending_payment are returned unchanged so repeated visits to
// the success page are harmless.
func (s *Service) MarkPaymentAuthorized(ctx context.Context, id uuid.UUID, actor Actor) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPendingPayment {
		return b, nil
	}
	b, err = s.Transition(ctx, id, StatusPaymentAuthorized, actor)
	if errors.Is(err, ErrStatusConflict) {
		// Another request (webhook or redirect) won the race.
		return s.store.Get(ctx, id)
	}
	return b, err
}

// ExpireUnpaid cancels a booking that is still pending_payment, giving its
// slot back. It reports false when the booking has moved on, including when
// a payment lands while the cancellation is being written.
func (s *Service) ExpireUnpaid(ctx context.Context, id uuid.UUID) (bool, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if b.Status != StatusPendingPayment {
		return false, nil
	}
	_, err = s.Transition(ctx, id, StatusCancelled, ActorSystem)
	if errors.Is(err, ErrStatusConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info("unpaid booking expired", "booking_id", id, "date", b.SelectedDate, "time", b.SelectedTime)
	return true, nil
}

func (s *Service) AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID, customerID string) error {
	return s.store.AttachPaymentIntent(ctx, id, intentID, customerID)
}

func (s *Service) AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return s.store.AttachCheckoutSession(ctx, id, sessionID)
}

func (s *Service) MarkCaptured(ctx context.Context, id uuid.UUID, capturedAt time.Time) error {
	return s.store.MarkCaptured(ctx, id, capturedAt)
}

func (s *Service) invalidate(ctx context.Context, date string) {
	if s.slots != nil {
		s.slots.Invalidate(ctx, date)
	}
}
