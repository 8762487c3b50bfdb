package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/internal/intake"
	"github.com/wolfman30/medtour-booking/internal/observability/metrics"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

var notifyTracer = otel.Tracer("medtour.internal.notify")

// BookingReader loads bookings.
type BookingReader interface {
	Get(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
}

// IntakeReader returns a booking's intake form, or nil when none exists.
type IntakeReader interface {
	ForBooking(ctx context.Context, bookingID uuid.UUID) (*intake.Form, error)
}

// Mailer renders and sends guest-facing booking emails.
type Mailer struct {
	sender        EmailSender
	bookings      BookingReader
	intake        IntakeReader
	publicBaseURL string
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
}

func NewMailer(sender EmailSender, bookingReader BookingReader, intakeReader IntakeReader, publicBaseURL string, m *metrics.BookingMetrics, logger *logging.Logger) *Mailer {
	if sender == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Mailer{
		sender:        sender,
		bookings:      bookingReader,
		intake:        intakeReader,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		metrics:       m,
		logger:        logger,
	}
}

// SendConfirmation emails the appointment details, including arrival date
// and pickup notice from the intake form when present. It returns the
// provider's message id.
func (m *Mailer) SendConfirmation(ctx context.Context, bookingID uuid.UUID) (id string, err error) {
	ctx, span := notifyTracer.Start(ctx, "notify.send_confirmation")
	defer span.End()
	span.SetAttributes(attribute.String("medtour.booking_id", bookingID.String()))
	defer func() { m.metrics.ObserveEmail("confirmation", err) }()

	b, err := m.bookings.Get(ctx, bookingID)
	if err != nil {
		return "", err
	}
	data := confirmationData{
		Date:      b.SelectedDate,
		Time:      b.SelectedTime,
		AmountRMB: formatRMB(b.TotalAmount),
	}
	if m.intake != nil {
		form, err := m.intake.ForBooking(ctx, bookingID)
		if err != nil {
			return "", fmt.Errorf("notify: load intake: %w", err)
		}
		if form != nil {
			data.ArrivalDate = form.ArrivalDate
			data.AirportPickup = form.NeedsAirportPickup
		}
	}

	html, err := render(confirmationTemplate, data)
	if err != nil {
		return "", err
	}
	id, err = m.sender.Send(ctx, EmailMessage{To: b.UserEmail, Subject: confirmationSubject, HTML: html})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	m.logger.Info("confirmation email sent", "booking_id", bookingID, "email_id", id)
	return id, nil
}

// ReminderURL is where the guest completes the intake form.
func (m *Mailer) ReminderURL(bookingID uuid.UUID) string {
	return m.publicBaseURL + "/booking-success?booking_id=" + bookingID.String()
}

// SendIntakeReminder nudges the guest to finish the intake form.
func (m *Mailer) SendIntakeReminder(ctx context.Context, b *bookings.Booking) (id string, err error) {
	ctx, span := notifyTracer.Start(ctx, "notify.send_intake_reminder")
	defer span.End()
	span.SetAttributes(attribute.String("medtour.booking_id", b.ID.String()))
	defer func() { m.metrics.ObserveEmail("intake_reminder", err) }()

	html, err := render(reminderTemplate, reminderData{ReminderURL: m.ReminderURL(b.ID)})
	if err != nil {
		return "", err
	}
	id, err = m.sender.Send(ctx, EmailMessage{To: b.UserEmail, Subject: reminderSubject, HTML: html})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	m.logger.Info("intake reminder sent", "booking_id", b.ID, "email_id", id)
	return id, nil
}
