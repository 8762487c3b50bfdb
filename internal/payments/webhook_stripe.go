package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

const stripeProvider = "stripe"

// processedTracker claims webhook event ids so redeliveries are ignored.
type processedTracker interface {
	Claim(ctx context.Context, provider, eventID string) (bool, error)
	Release(ctx context.Context, provider, eventID string) error
}

// checkoutRecorder applies a completed checkout to its booking.
type checkoutRecorder interface {
	AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID, customerID string) error
	MarkPaymentAuthorized(ctx context.Context, id uuid.UUID, actor bookings.Actor) (*bookings.Booking, error)
}

// StripeWebhookHandler advances bookings when Stripe reports a completed
// checkout.
type StripeWebhookHandler struct {
	webhookSecret string
	bookings      checkoutRecorder
	processed     processedTracker
	logger        *logging.Logger
	now           func() time.Time
}

// NewStripeWebhookHandler creates a new handler for Stripe webhooks.
func NewStripeWebhookHandler(webhookSecret string, marker checkoutRecorder, processed processedTracker, logger *logging.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		bookings:      marker,
		processed:     processed,
		logger:        logger,
		now:           time.Now,
	}
}

// Handle processes incoming Stripe webhook events.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !verifyStripeSignature(h.webhookSecret, payload, r.Header.Get("Stripe-Signature"), h.now()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt stripeWebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}
	if evt.Type != "checkout.session.completed" {
		w.WriteHeader(http.StatusOK)
		return
	}

	session := evt.Data.Object
	bookingID, err := uuid.Parse(session.Metadata["booking_id"])
	if err != nil {
		// Acknowledge so Stripe stops retrying an event we can never apply.
		h.logger.Warn("stripe webhook missing booking id", "event_id", evt.ID, "session_id", session.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.processed != nil {
		first, err := h.processed.Claim(r.Context(), stripeProvider, evt.ID)
		if err != nil {
			h.logger.Error("processed claim failed", "error", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if !first {
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	b, err := h.applyCheckout(r.Context(), bookingID, session)
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			h.logger.Warn("stripe webhook for unknown booking", "event_id", evt.ID, "booking_id", bookingID)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("failed to apply completed checkout", "event_id", evt.ID, "booking_id", bookingID, "error", err)
		if h.processed != nil {
			if relErr := h.processed.Release(r.Context(), stripeProvider, evt.ID); relErr != nil {
				h.logger.Error("failed to release processed event", "event_id", evt.ID, "error", relErr)
			}
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if b.Status == bookings.StatusCancelled {
		h.logger.Error("checkout completed for cancelled booking; authorization hold must be released",
			"event_id", evt.ID, "booking_id", bookingID, "payment_intent_id", session.PaymentIntent)
	}

	h.logger.Info("stripe checkout completed", "event_id", evt.ID, "booking_id", bookingID, "payment_intent_id", session.PaymentIntent)
	w.WriteHeader(http.StatusOK)
}

// applyCheckout stores the intent Checkout created, which is the one capture
// must use, then advances the booking.
func (h *StripeWebhookHandler) applyCheckout(ctx context.Context, bookingID uuid.UUID, session stripeSessionObject) (*bookings.Booking, error) {
	if session.PaymentIntent != "" {
		if err := h.bookings.AttachPaymentIntent(ctx, bookingID, session.PaymentIntent, session.Customer); err != nil {
			return nil, err
		}
	}
	return h.bookings.MarkPaymentAuthorized(ctx, bookingID, bookings.ActorStripe)
}

// stripeWebhookEvent represents a Stripe webhook event envelope.
type stripeWebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeSessionObject `json:"object"`
	} `json:"data"`
}

// stripeSessionObject is the checkout.session object from the webhook.
type stripeSessionObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Customer      string            `json:"customer"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
	Status        string            `json:"status"`
}

const signatureTolerance = 5 * time.Minute

// verifyStripeSignature checks the Stripe-Signature header, formatted as
// t=<timestamp>,v1=<signature>[,v1=...]. An empty secret disables the check.
func verifyStripeSignature(secret string, payload []byte, header string, now time.Time) bool {
	if secret == "" {
		return true
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if age := now.Sub(time.Unix(ts, 0)); age > signatureTolerance || age < -signatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%s.%s", timestamp, payload)))
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}
