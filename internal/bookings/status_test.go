package bookings

import (
	"errors"
	"testing"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPendingPayment, StatusPaymentAuthorized, true},
		{StatusPendingPayment, StatusIntakeSubmitted, true},
		{StatusPendingPayment, StatusConfirmed, false},
		{StatusPaymentAuthorized, StatusIntakeSubmitted, true},
		{StatusPaymentAuthorized, StatusConfirmed, true},
		{StatusPaymentAuthorized, StatusPendingPayment, false},
		{StatusIntakeSubmitted, StatusUnderReview, true},
		{StatusIntakeSubmitted, StatusPaymentAuthorized, false},
		{StatusUnderReview, StatusConfirmed, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusUnderReview, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusConfirmed, StatusConfirmed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestEveryNonTerminalStatusCanBeCancelled(t *testing.T) {
	for _, s := range AllStatuses() {
		if s.Terminal() {
			continue
		}
		if !s.CanTransitionTo(StatusCancelled) {
			t.Errorf("expected %s to allow cancellation", s)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range AllStatuses() {
		want := s == StatusCancelled || s == StatusCompleted
		if s.Terminal() != want {
			t.Errorf("%s: expected terminal=%v", s, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Under_Review ")
	if err != nil || s != StatusUnderReview {
		t.Fatalf("expected under_review, got %q %v", s, err)
	}
	if _, err := ParseStatus("refunded"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
