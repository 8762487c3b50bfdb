package bookings

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPendingPayment    Status = "pending_payment"
	StatusPaymentAuthorized Status = "payment_authorized"
	StatusIntakeSubmitted   Status = "intake_submitted"
	StatusUnderReview       Status = "under_review"
	StatusConfirmed         Status = "confirmed"
	StatusCancelled         Status = "cancelled"
	StatusCompleted         Status = "completed"
)

// allowedTransitions is the only place the state machine is defined.
// cancelled and completed are terminal.
var allowedTransitions = map[Status][]Status{
	StatusPendingPayment:    {StatusPaymentAuthorized, StatusIntakeSubmitted, StatusCancelled},
	StatusPaymentAuthorized: {StatusIntakeSubmitted, StatusUnderReview, StatusConfirmed, StatusCancelled},
	StatusIntakeSubmitted:   {StatusUnderReview, StatusConfirmed, StatusCancelled},
	StatusUnderReview:       {StatusIntakeSubmitted, StatusConfirmed, StatusCancelled},
	StatusConfirmed:         {StatusCompleted, StatusCancelled},
	StatusCancelled:         {},
	StatusCompleted:         {},
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPendingPayment,
		StatusPaymentAuthorized,
		StatusIntakeSubmitted,
		StatusUnderReview,
		StatusConfirmed,
		StatusCancelled,
		StatusCompleted,
	}
}

// ParseStatus converts raw input into a known Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(allowedTransitions[s]) == 0
}

// CanTransitionTo reports whether the table permits s -> to. A move to the
// same status is not a transition and returns false.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// Actor identifies who requested a transition; it is recorded on events.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorAdmin    Actor = "admin"
	ActorStripe   Actor = "stripe"
	ActorSystem   Actor = "system"
)
