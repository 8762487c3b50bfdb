package reminders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// DefaultReminderDelay is how long a guest gets to finish intake before the
// reminder goes out.
const DefaultReminderDelay = 5 * time.Minute

// DefaultPaymentTTL is how long an unpaid booking holds its slot.
const DefaultPaymentTTL = 40 * time.Minute

type jobScheduler interface {
	Schedule(ctx context.Context, kind string, bookingID uuid.UUID, dueAt time.Time) (bool, error)
}

// Scheduler creates intake reminder and payment expiry jobs.
type Scheduler struct {
	store      jobScheduler
	delay      time.Duration
	paymentTTL time.Duration
	logger     *logging.Logger
	now        func() time.Time
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(store jobScheduler, delay time.Duration, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if delay <= 0 {
		delay = DefaultReminderDelay
	}
	return &Scheduler{store: store, delay: delay, paymentTTL: DefaultPaymentTTL, logger: logger, now: time.Now}
}

// WithPaymentTTL sets how long after creation an unpaid booking expires.
func (s *Scheduler) WithPaymentTTL(ttl time.Duration) *Scheduler {
	if ttl > 0 {
		s.paymentTTL = ttl
	}
	return s
}

// ScheduleIntakeReminder persists a reminder due after the configured delay.
// Calling it again for the same booking keeps the original job.
func (s *Scheduler) ScheduleIntakeReminder(ctx context.Context, bookingID uuid.UUID) error {
	dueAt := s.now().Add(s.delay)
	created, err := s.store.Schedule(ctx, KindIntakeReminder, bookingID, dueAt)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("intake reminder scheduled", "booking_id", bookingID, "due_at", dueAt.UTC().Format(time.RFC3339))
	} else {
		s.logger.Debug("intake reminder already scheduled", "booking_id", bookingID)
	}
	return nil
}

// ScheduleBookingExpiry persists a job that cancels the booking if it is
// still pending_payment once the payment TTL has passed.
func (s *Scheduler) ScheduleBookingExpiry(ctx context.Context, bookingID uuid.UUID) error {
	dueAt := s.now().Add(s.paymentTTL)
	if _, err := s.store.Schedule(ctx, KindPaymentExpiry, bookingID, dueAt); err != nil {
		return err
	}
	s.logger.Debug("payment expiry scheduled", "booking_id", bookingID, "due_at", dueAt.UTC().Format(time.RFC3339))
	return nil
}
