package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/bookings"
)

type fakeProcessor struct {
	mu          sync.Mutex
	customerErr error
	captureErr  error
	intents     []PaymentIntentParams
	sessions    []CheckoutSessionParams
	captured    []string
}

func (p *fakeProcessor) FindOrCreateCustomer(ctx context.Context, email, idempotencyKey string) (string, error) {
	if p.customerErr != nil {
		return "", p.customerErr
	}
	return "cus_" + email, nil
}

func (p *fakeProcessor) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents = append(p.intents, params)
	return &PaymentIntent{ID: "pi_test", Status: "requires_payment_method", Amount: params.AmountMinor, Currency: params.Currency}, nil
}

func (p *fakeProcessor) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, params)
	return &CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.com/c/cs_test"}, nil
}

func (p *fakeProcessor) CapturePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	p.captured = append(p.captured, intentID)
	return &PaymentIntent{ID: intentID, Status: "succeeded", Amount: 520000, Currency: "cny"}, nil
}

type fakeBookings struct {
	mu          sync.Mutex
	items       map[uuid.UUID]*bookings.Booking
	transitions []bookings.Status
}

func newFakeBookings(bs ...*bookings.Booking) *fakeBookings {
	f := &fakeBookings{items: map[uuid.UUID]*bookings.Booking{}}
	for _, b := range bs {
		f.items[b.ID] = b
	}
	return f
}

func (f *fakeBookings) Get(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return nil, bookings.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return bookings.ErrBookingNotFound
	}
	b.StripePaymentIntentID = &intentID
	b.StripeCustomerID = &customerID
	return nil
}

func (f *fakeBookings) AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return bookings.ErrBookingNotFound
	}
	b.StripeCheckoutSessionID = &sessionID
	return nil
}

func (f *fakeBookings) MarkCaptured(ctx context.Context, id uuid.UUID, capturedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return bookings.ErrBookingNotFound
	}
	b.PaymentCapturedAt = &capturedAt
	return nil
}

func (f *fakeBookings) MarkPaymentAuthorized(ctx context.Context, id uuid.UUID, actor bookings.Actor) (*bookings.Booking, error) {
	b, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != bookings.StatusPendingPayment {
		return b, nil
	}
	return f.Transition(ctx, id, bookings.StatusPaymentAuthorized, actor)
}

func (f *fakeBookings) Transition(ctx context.Context, id uuid.UUID, to bookings.Status, actor bookings.Actor) (*bookings.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return nil, bookings.ErrBookingNotFound
	}
	if b.Status == to {
		cp := *b
		return &cp, nil
	}
	if !b.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", bookings.ErrInvalidTransition, b.Status, to)
	}
	b.Status = to
	f.transitions = append(f.transitions, to)
	cp := *b
	return &cp, nil
}

type recordedEvent struct {
	aggregateID string
	eventType   string
	payload     any
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (o *fakeOutbox) Insert(ctx context.Context, aggregateID, eventType string, payload any) (uuid.UUID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, recordedEvent{aggregateID: aggregateID, eventType: eventType, payload: payload})
	return uuid.New(), nil
}

func pendingBooking() *bookings.Booking {
	return &bookings.Booking{
		ID:           uuid.New(),
		UserEmail:    "guest@example.com",
		SelectedDate: "2026-11-02",
		SelectedTime: "09:00",
		Status:       bookings.StatusPendingPayment,
		TotalAmount:  520000,
	}
}

func strPtr(s string) *string { return &s }
