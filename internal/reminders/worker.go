package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/internal/observability/metrics"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

type jobStore interface {
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error)
	Finish(ctx context.Context, id uuid.UUID, status JobStatus, lastError string) error
	Retry(ctx context.Context, id uuid.UUID, dueAt time.Time, lastError string) error
}

// IntakeChecker reports whether a booking already has an intake form.
type IntakeChecker interface {
	Submitted(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

// BookingReader loads bookings.
type BookingReader interface {
	Get(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
}

// PaymentExpirer cancels bookings that were never paid. It reports false
// when the booking had already moved past pending_payment.
type PaymentExpirer interface {
	ExpireUnpaid(ctx context.Context, id uuid.UUID) (bool, error)
}

// ReminderMailer sends the reminder email.
type ReminderMailer interface {
	SendIntakeReminder(ctx context.Context, b *bookings.Booking) (string, error)
}

// WorkerConfig tunes polling and retries.
type WorkerConfig struct {
	PollInterval time.Duration
	Lease        time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	BatchSize    int
}

func (c *WorkerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
}

// Worker drains due scheduled jobs.
type Worker struct {
	store    jobStore
	intake   IntakeChecker
	bookings BookingReader
	mailer   ReminderMailer
	expirer  PaymentExpirer
	cfg      WorkerConfig
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewWorker creates a reminder worker.
func NewWorker(store jobStore, intake IntakeChecker, bookingReader BookingReader, mailer ReminderMailer, cfg WorkerConfig, m *metrics.BookingMetrics, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Worker{
		store:    store,
		intake:   intake,
		bookings: bookingReader,
		mailer:   mailer,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithPaymentExpirer enables payment_expiry jobs. Without it they fail.
func (w *Worker) WithPaymentExpirer(e PaymentExpirer) *Worker {
	w.expirer = e
	return w
}

// Start polls until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("reminder worker started", "interval", w.cfg.PollInterval.String())
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.ProcessDue(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("reminder worker: process due failed", "error", err)
		}
		select {
		case <-ctx.Done():
			w.logger.Info("reminder worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessDue claims due jobs and handles each one. Returns the number of
// jobs that reached a terminal status.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	jobs, err := w.store.ClaimDue(ctx, w.now(), w.cfg.Lease, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	w.logger.Info("reminder worker: processing due jobs", "count", len(jobs))

	finished := 0
	for i := range jobs {
		done, err := w.processOne(ctx, &jobs[i])
		if err != nil {
			w.logger.Error("reminder worker: failed to record job outcome", "job_id", jobs[i].ID, "error", err)
			continue
		}
		if done {
			finished++
		}
	}
	return finished, nil
}

func (w *Worker) processOne(ctx context.Context, job *Job) (bool, error) {
	logger := w.logger.WithBooking(job.BookingID.String()).With("job_id", job.ID, "kind", job.Kind, "attempt", job.Attempts)

	switch job.Kind {
	case KindIntakeReminder:
		return w.remind(ctx, job, logger)
	case KindPaymentExpiry:
		return w.expire(ctx, job, logger)
	default:
		logger.Error("unknown job kind")
		w.metrics.ObserveReminder("failed")
		return true, w.store.Finish(ctx, job.ID, StatusFailed, "unknown job kind "+job.Kind)
	}
}

func (w *Worker) expire(ctx context.Context, job *Job, logger *logging.Logger) (bool, error) {
	if w.expirer == nil {
		return w.fail(ctx, job, errors.New("payment expiry not configured"))
	}
	expired, err := w.expirer.ExpireUnpaid(ctx, job.BookingID)
	if errors.Is(err, bookings.ErrBookingNotFound) {
		logger.Warn("booking missing; expiry skipped")
		w.metrics.ObserveReminder("skipped")
		return true, w.store.Finish(ctx, job.ID, StatusSkipped, "booking not found")
	}
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("expire booking: %w", err))
	}
	if !expired {
		logger.Info("booking left pending_payment; expiry skipped")
		w.metrics.ObserveReminder("skipped")
		return true, w.store.Finish(ctx, job.ID, StatusSkipped, "")
	}
	logger.Info("unpaid booking cancelled and slot released")
	w.metrics.ObserveReminder("expired")
	return true, w.store.Finish(ctx, job.ID, StatusDone, "")
}

func (w *Worker) remind(ctx context.Context, job *Job, logger *logging.Logger) (bool, error) {
	submitted, err := w.intake.Submitted(ctx, job.BookingID)
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("check intake: %w", err))
	}
	if submitted {
		logger.Info("intake already submitted; reminder skipped")
		w.metrics.ObserveReminder("skipped")
		return true, w.store.Finish(ctx, job.ID, StatusSkipped, "")
	}

	b, err := w.bookings.Get(ctx, job.BookingID)
	if errors.Is(err, bookings.ErrBookingNotFound) {
		logger.Warn("booking missing; reminder skipped")
		w.metrics.ObserveReminder("skipped")
		return true, w.store.Finish(ctx, job.ID, StatusSkipped, "booking not found")
	}
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("load booking: %w", err))
	}
	if b.Status.Terminal() {
		logger.Info("booking closed; reminder skipped", "status", b.Status)
		w.metrics.ObserveReminder("skipped")
		return true, w.store.Finish(ctx, job.ID, StatusSkipped, "")
	}

	emailID, err := w.mailer.SendIntakeReminder(ctx, b)
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("send reminder: %w", err))
	}
	logger.Info("intake reminder delivered", "email_id", emailID)
	w.metrics.ObserveReminder("sent")
	return true, w.store.Finish(ctx, job.ID, StatusDone, "")
}

func (w *Worker) fail(ctx context.Context, job *Job, cause error) (bool, error) {
	if job.Attempts >= w.cfg.MaxAttempts {
		w.logger.Error("reminder job failed permanently", "job_id", job.ID, "booking_id", job.BookingID, "attempts", job.Attempts, "error", cause)
		w.metrics.ObserveReminder("failed")
		return true, w.store.Finish(ctx, job.ID, StatusFailed, cause.Error())
	}
	w.logger.Warn("reminder job will retry", "job_id", job.ID, "booking_id", job.BookingID, "attempts", job.Attempts, "error", cause)
	w.metrics.ObserveReminder("retry")
	return false, w.store.Retry(ctx, job.ID, w.now().Add(w.cfg.RetryDelay), cause.Error())
}
