package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/internal/observability/metrics"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

var stripeTracer = otel.Tracer("medtour.internal.payments.stripe")

// ErrNotAuthorized means the intent does not hold funds.
var ErrNotAuthorized = errors.New("payments: payment intent not authorized")

// StripeClient talks to the Stripe REST API with form-encoded requests.
type StripeClient struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	dryRun     bool
}

// NewStripeClient creates a Stripe client.
func NewStripeClient(secretKey string, logger *logging.Logger) *StripeClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeClient{
		secretKey:  secretKey,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (c *StripeClient) WithBaseURL(baseURL string) *StripeClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithDryRun returns fake objects without calling Stripe.
func (c *StripeClient) WithDryRun(enabled bool) *StripeClient {
	c.dryRun = enabled
	return c
}

func (c *StripeClient) WithMetrics(m *metrics.BookingMetrics) *StripeClient {
	c.metrics = m
	return c
}

// Customer is the subset of a Stripe customer we read.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// PaymentIntent is the subset of a Stripe PaymentIntent we read.
type PaymentIntent struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Customer      string            `json:"customer"`
	CaptureMethod string            `json:"capture_method"`
	Metadata      map[string]string `json:"metadata"`
}

// Authorized reports whether funds are held or already captured.
func (pi *PaymentIntent) Authorized() bool {
	return pi.Status == "requires_capture" || pi.Status == "succeeded"
}

// CheckoutSession is the subset of a Stripe Checkout Session we read.
// PaymentIntent is set once the guest completes the page; it is the intent
// that holds the funds.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentIntent string `json:"payment_intent"`
	Customer      string `json:"customer"`
}

// PaymentIntentParams describes a manual-capture intent.
type PaymentIntentParams struct {
	BookingID      string
	CustomerID     string
	Email          string
	AmountMinor    int64
	Currency       string
	Service        string
	IdempotencyKey string
}

// CheckoutSessionParams describes the hosted checkout page for a booking.
type CheckoutSessionParams struct {
	BookingID      string
	CustomerID     string
	AmountMinor    int64
	Currency       string
	ProductName    string
	SuccessURL     string
	CancelURL      string
	ExpiresAt      time.Time
	IdempotencyKey string
}

// StripeError is a non-2xx response from Stripe.
type StripeError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *StripeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payments: stripe api status %d", e.StatusCode)
	}
	return fmt.Sprintf("payments: stripe api status %d: %s", e.StatusCode, e.Message)
}

// FindOrCreateCustomer returns the first customer with the email, creating
// one when none exists.
func (c *StripeClient) FindOrCreateCustomer(ctx context.Context, email, idempotencyKey string) (string, error) {
	if c.dryRun {
		c.logger.Info("stripe dry run: skipping customer lookup", "email", email)
		return "cus_dryrun_" + uuid.New().String()[:8], nil
	}
	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")
	var list struct {
		Data []Customer `json:"data"`
	}
	if err := c.do(ctx, "list_customers", http.MethodGet, "/v1/customers?"+query.Encode(), nil, "", &list); err != nil {
		return "", err
	}
	if len(list.Data) > 0 {
		return list.Data[0].ID, nil
	}

	form := url.Values{}
	form.Set("email", email)
	var created Customer
	if err := c.do(ctx, "create_customer", http.MethodPost, "/v1/customers", form, idempotencyKey, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// CreatePaymentIntent creates an intent that only authorizes the amount.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error) {
	if c.dryRun {
		c.logger.Info("stripe dry run: skipping payment intent", "booking_id", params.BookingID, "amount", params.AmountMinor)
		return &PaymentIntent{
			ID:            "pi_dryrun_" + uuid.New().String()[:8],
			Status:        "requires_payment_method",
			Amount:        params.AmountMinor,
			Currency:      params.Currency,
			Customer:      params.CustomerID,
			CaptureMethod: "manual",
		}, nil
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountMinor, 10))
	form.Set("currency", params.Currency)
	form.Set("customer", params.CustomerID)
	form.Set("capture_method", "manual")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("metadata[booking_id]", params.BookingID)
	form.Set("metadata[service]", params.Service)
	form.Set("description", "Medical checkup booking - "+params.Email)

	var pi PaymentIntent
	if err := c.do(ctx, "create_payment_intent", http.MethodPost, "/v1/payment_intents", form, params.IdempotencyKey, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

// CreateCheckoutSession creates the hosted page where the guest enters card
// details. The resulting intent is also manual-capture.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if c.dryRun {
		fakeID := "cs_dryrun_" + uuid.New().String()[:8]
		c.logger.Info("stripe dry run: skipping checkout session creation", "booking_id", params.BookingID)
		return &CheckoutSession{ID: fakeID, URL: "https://checkout.stripe.com/dry-run/" + fakeID}, nil
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("customer", params.CustomerID)
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", params.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountMinor, 10))
	form.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	form.Set("line_items[0][quantity]", "1")
	form.Set("payment_intent_data[capture_method]", "manual")
	form.Set("payment_intent_data[metadata][booking_id]", params.BookingID)
	form.Set("metadata[booking_id]", params.BookingID)
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if !params.ExpiresAt.IsZero() {
		form.Set("expires_at", strconv.FormatInt(params.ExpiresAt.Unix(), 10))
	}

	var session CheckoutSession
	if err := c.do(ctx, "create_checkout_session", http.MethodPost, "/v1/checkout/sessions", form, params.IdempotencyKey, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, fmt.Errorf("payments: stripe response missing checkout url")
	}
	return &session, nil
}

// CapturePaymentIntent charges the held amount.
func (c *StripeClient) CapturePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	if c.dryRun {
		c.logger.Info("stripe dry run: skipping capture", "payment_intent_id", intentID)
		return &PaymentIntent{ID: intentID, Status: "succeeded"}, nil
	}
	var pi PaymentIntent
	path := "/v1/payment_intents/" + url.PathEscape(intentID) + "/capture"
	if err := c.do(ctx, "capture_payment_intent", http.MethodPost, path, url.Values{}, "capture-"+intentID, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

// RetrievePaymentIntent loads an intent by id.
func (c *StripeClient) RetrievePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	if c.dryRun {
		return &PaymentIntent{ID: intentID, Status: "requires_capture"}, nil
	}
	var pi PaymentIntent
	if err := c.do(ctx, "retrieve_payment_intent", http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil, "", &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

// RetrieveCheckoutSession loads a checkout session by id.
func (c *StripeClient) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if c.dryRun {
		return &CheckoutSession{
			ID:            sessionID,
			Status:        "complete",
			PaymentStatus: "unpaid",
			PaymentIntent: "pi_dryrun_" + strings.TrimPrefix(sessionID, "cs_dryrun_"),
		}, nil
	}
	var session CheckoutSession
	if err := c.do(ctx, "retrieve_checkout_session", http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, "", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// VerifyAuthorized checks that the booking's funds are held and returns the
// intent holding them. When the booking has a checkout session its intent
// is used, since Checkout creates its own intent rather than confirming the
// one prepared beforehand.
func (c *StripeClient) VerifyAuthorized(ctx context.Context, b *bookings.Booking) (string, error) {
	intentID := b.PaymentIntentID()
	if sessionID := b.CheckoutSessionID(); sessionID != "" {
		session, err := c.RetrieveCheckoutSession(ctx, sessionID)
		if err != nil {
			return "", err
		}
		if session.PaymentIntent == "" {
			return "", fmt.Errorf("%w: checkout session %s is %s", ErrNotAuthorized, session.ID, session.Status)
		}
		intentID = session.PaymentIntent
	}
	if intentID == "" {
		return "", fmt.Errorf("%w: booking has no payment intent", ErrNotAuthorized)
	}
	pi, err := c.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		return "", err
	}
	if !pi.Authorized() {
		return "", fmt.Errorf("%w: status %s", ErrNotAuthorized, pi.Status)
	}
	return intentID, nil
}

func (c *StripeClient) do(ctx context.Context, op, method, path string, form url.Values, idempotencyKey string, out any) error {
	ctx, span := stripeTracer.Start(ctx, "stripe."+op)
	defer span.End()
	span.SetAttributes(attribute.String("medtour.stripe_path", strings.SplitN(path, "?", 2)[0]))

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Stripe-Version", c.apiVersion)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveStripeLatency(op, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		stripeErr := readStripeError(resp)
		span.RecordError(stripeErr)
		c.logger.Warn("stripe api error", "op", op, "status", resp.StatusCode, "type", stripeErr.Type, "code", stripeErr.Code)
		return stripeErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payments: stripe decode: %w", err)
	}
	return nil
}

// stripeErrorResponse represents a Stripe API error.
type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func readStripeError(resp *http.Response) *StripeError {
	out := &StripeError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return out
	}
	var parsed stripeErrorResponse
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		out.Type = parsed.Error.Type
		out.Code = parsed.Error.Code
		out.Message = parsed.Error.Message
		return out
	}
	out.Message = string(bytes.TrimSpace(data))
	return out
}
