package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/internal/events"
	"github.com/wolfman30/medtour-booking/internal/observability/metrics"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

var paymentsTracer = otel.Tracer("medtour.internal.payments")

var (
	ErrMissingAuthorizationFields = errors.New("payments: missing booking_id, amount, or email")
	ErrMissingCaptureFields       = errors.New("payments: missing paymentIntentId or bookingId")
	ErrAmountMismatch             = errors.New("payments: amount does not match booking total")
	ErrIntentMismatch             = errors.New("payments: payment intent does not belong to booking")
)

// Processor is the card processor API the service needs.
type Processor interface {
	FindOrCreateCustomer(ctx context.Context, email, idempotencyKey string) (string, error)
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	CapturePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
}

// BookingStore is the slice of the bookings service payments depends on.
type BookingStore interface {
	Get(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
	AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID, customerID string) error
	AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error
	MarkCaptured(ctx context.Context, id uuid.UUID, capturedAt time.Time) error
	MarkPaymentAuthorized(ctx context.Context, id uuid.UUID, actor bookings.Actor) (*bookings.Booking, error)
	Transition(ctx context.Context, id uuid.UUID, to bookings.Status, actor bookings.Actor) (*bookings.Booking, error)
}

type outboxWriter interface {
	Insert(ctx context.Context, aggregateID, eventType string, payload any) (uuid.UUID, error)
}

// ServiceConfig carries checkout presentation settings. CheckoutTTL, when
// set, closes the hosted page before an unpaid booking is expired.
type ServiceConfig struct {
	Currency      string
	ProductName   string
	PublicBaseURL string
	CheckoutTTL   time.Duration
}

// Stripe accepts checkout expiry between 30 minutes and 24 hours out.
const (
	minCheckoutTTL = 30 * time.Minute
	maxCheckoutTTL = 24 * time.Hour
)

func checkoutExpiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	ttl = min(max(ttl, minCheckoutTTL), maxCheckoutTTL)
	return now.Add(ttl)
}

// Service authorizes and captures booking payments.
type Service struct {
	processor Processor
	bookings  BookingStore
	outbox    outboxWriter
	cfg       ServiceConfig
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewService(processor Processor, bookingStore BookingStore, outbox outboxWriter, cfg ServiceConfig, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if processor == nil || bookingStore == nil {
		panic("payments: processor and booking store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "cny"
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "Medical Checkup - Guangzhou"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Service{
		processor: processor,
		bookings:  bookingStore,
		outbox:    outbox,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthorizeRequest is the body of create-payment-authorization.
type AuthorizeRequest struct {
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
	Email     string `json:"email"`
	// Origin is the site the guest returns to after checkout.
	Origin string `json:"-"`
}

// AuthorizeResult is returned to the browser, which redirects to URL.
type AuthorizeResult struct {
	URL             string `json:"url"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// Authorize prepares a manual-capture checkout for a pending booking.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (result *AuthorizeResult, err error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.authorize")
	defer span.End()
	defer func() { s.metrics.ObservePayment("authorize", err) }()

	req.BookingID = strings.TrimSpace(req.BookingID)
	req.Email = strings.TrimSpace(req.Email)
	if req.BookingID == "" || req.Amount <= 0 || req.Email == "" {
		return nil, ErrMissingAuthorizationFields
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: booking_id", bookings.ErrInvalidInput)
	}
	span.SetAttributes(
		attribute.String("medtour.booking_id", bookingID.String()),
		attribute.Int64("medtour.amount_minor", req.Amount),
	)

	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != bookings.StatusPendingPayment {
		return nil, fmt.Errorf("%w: booking is %s", bookings.ErrInvalidTransition, b.Status)
	}
	if int64(b.TotalAmount) != req.Amount {
		return nil, fmt.Errorf("%w: got %d, booking total %d", ErrAmountMismatch, req.Amount, b.TotalAmount)
	}

	// Keys are stable per booking so a retried request reuses Stripe objects.
	keyPrefix := "booking-" + bookingID.String()
	customerID, err := s.processor.FindOrCreateCustomer(ctx, req.Email, keyPrefix+"-customer")
	if err != nil {
		return nil, err
	}
	intent, err := s.processor.CreatePaymentIntent(ctx, PaymentIntentParams{
		BookingID:      bookingID.String(),
		CustomerID:     customerID,
		Email:          req.Email,
		AmountMinor:    req.Amount,
		Currency:       s.cfg.Currency,
		Service:        "executive_checkup",
		IdempotencyKey: keyPrefix + "-intent",
	})
	if err != nil {
		return nil, err
	}
	if err := s.bookings.AttachPaymentIntent(ctx, bookingID, intent.ID, customerID); err != nil {
		return nil, err
	}

	origin := strings.TrimRight(strings.TrimSpace(req.Origin), "/")
	if origin == "" {
		origin = s.cfg.PublicBaseURL
	}
	session, err := s.processor.CreateCheckoutSession(ctx, CheckoutSessionParams{
		BookingID:      bookingID.String(),
		CustomerID:     customerID,
		AmountMinor:    req.Amount,
		Currency:       s.cfg.Currency,
		ProductName:    s.cfg.ProductName,
		SuccessURL:     origin + "/booking-success?booking_id=" + bookingID.String(),
		CancelURL:      origin + "/?cancelled=true",
		ExpiresAt:      checkoutExpiry(s.now(), s.cfg.CheckoutTTL),
		IdempotencyKey: keyPrefix + "-checkout",
	})
	if err != nil {
		return nil, err
	}
	if err := s.bookings.AttachCheckoutSession(ctx, bookingID, session.ID); err != nil {
		return nil, err
	}

	s.logger.Info("payment authorization started", "booking_id", bookingID, "payment_intent_id", intent.ID, "checkout_session_id", session.ID)
	return &AuthorizeResult{URL: session.URL, PaymentIntentID: intent.ID}, nil
}

// CaptureRequest is the body of capture-payment.
type CaptureRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	BookingID       string `json:"bookingId"`
}

// Capture charges the held amount and confirms the booking.
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (intent *PaymentIntent, err error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.capture")
	defer span.End()
	defer func() { s.metrics.ObservePayment("capture", err) }()

	req.PaymentIntentID = strings.TrimSpace(req.PaymentIntentID)
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.PaymentIntentID == "" || req.BookingID == "" {
		return nil, ErrMissingCaptureFields
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: bookingId", bookings.ErrInvalidInput)
	}
	span.SetAttributes(attribute.String("medtour.booking_id", bookingID.String()))

	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PaymentIntentID() != req.PaymentIntentID {
		return nil, ErrIntentMismatch
	}
	if b.Status == bookings.StatusCancelled {
		return nil, fmt.Errorf("%w: booking is cancelled", bookings.ErrInvalidTransition)
	}

	intent, err = s.processor.CapturePaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	capturedAt := s.now().UTC()
	if err := s.bookings.MarkCaptured(ctx, bookingID, capturedAt); err != nil {
		return nil, err
	}

	if b.Status == bookings.StatusPendingPayment {
		// The webhook has not landed yet; a successful capture proves the hold.
		if b, err = s.bookings.MarkPaymentAuthorized(ctx, bookingID, bookings.ActorAdmin); err != nil {
			return nil, err
		}
	}
	if b.Status != bookings.StatusConfirmed && b.Status != bookings.StatusCompleted {
		if _, err := s.bookings.Transition(ctx, bookingID, bookings.StatusConfirmed, bookings.ActorAdmin); err != nil {
			return nil, err
		}
	}

	if s.outbox != nil {
		evt := events.PaymentCapturedV1{
			EventID:         uuid.NewString(),
			BookingID:       bookingID.String(),
			PaymentIntentID: intent.ID,
			AmountMinor:     intent.Amount,
			Currency:        intent.Currency,
			CapturedAt:      capturedAt,
		}
		if _, err := s.outbox.Insert(ctx, bookingID.String(), events.TypePaymentCaptured, evt); err != nil {
			s.logger.Warn("failed to enqueue payment captured event", "booking_id", bookingID, "error", err)
		}
	}
	s.logger.Info("payment captured", "booking_id", bookingID, "payment_intent_id", intent.ID)
	return intent, nil
}
