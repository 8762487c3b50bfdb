package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Booking is one customer's reservation of a checkup slot.
type Booking struct {
	ID                      uuid.UUID  `json:"id"`
	UserEmail               string     `json:"user_email"`
	UserPhone               *string    `json:"user_phone"`
	SelectedDate            string     `json:"selected_date"`
	SelectedTime            string     `json:"selected_time"`
	Status                  Status     `json:"status"`
	TotalAmount             int        `json:"total_amount"`
	StripePaymentIntentID   *string    `json:"stripe_payment_intent_id"`
	StripeCustomerID        *string    `json:"stripe_customer_id"`
	StripeCheckoutSessionID *string    `json:"stripe_checkout_session_id"`
	PaymentCapturedAt       *time.Time `json:"payment_captured_at"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// PaymentIntentID returns the stored intent id or "".
func (b *Booking) PaymentIntentID() string {
	if b == nil || b.StripePaymentIntentID == nil {
		return ""
	}
	return *b.StripePaymentIntentID
}

// CheckoutSessionID returns the stored checkout session id or "".
func (b *Booking) CheckoutSessionID() string {
	if b == nil || b.StripeCheckoutSessionID == nil {
		return ""
	}
	return *b.StripeCheckoutSessionID
}

// CreateInput is the public booking request body. SelectedTime may be sent
// as HH:MM or HH:MM:SS and is stored as HH:MM.
type CreateInput struct {
	UserEmail    string `json:"user_email" validate:"required,email,max=254"`
	UserPhone    string `json:"user_phone" validate:"omitempty,max=32"`
	SelectedDate string `json:"selected_date" validate:"required,datetime=2006-01-02"`
	SelectedTime string `json:"selected_time" validate:"required,datetime=15:04"`
}

// StatusChange describes one compare-and-set status write.
type StatusChange struct {
	BookingID    uuid.UUID
	From         Status
	To           Status
	Actor        Actor
	At           time.Time
	SelectedDate string
	SelectedTime string
}

// ReleasesSlot reports whether the change gives the slot capacity back.
func (c StatusChange) ReleasesSlot() bool {
	return c.To == StatusCancelled
}
