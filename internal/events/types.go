package events

import "time"

// Event type names written to outbox.type.
const (
	TypeBookingStatusChanged = "booking.status_changed.v1"
	TypePaymentCaptured      = "booking.payment_captured.v1"
)

// BookingStatusChangedV1 is emitted for every applied status transition.
type BookingStatusChangedV1 struct {
	EventID    string    `json:"event_id"`
	BookingID  string    `json:"booking_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentCapturedV1 is emitted once an authorization hold is captured.
type PaymentCapturedV1 struct {
	EventID         string    `json:"event_id"`
	BookingID       string    `json:"booking_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	AmountMinor     int64     `json:"amount_minor"`
	Currency        string    `json:"currency"`
	CapturedAt      time.Time `json:"captured_at"`
}
