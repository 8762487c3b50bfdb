package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

func TestFormValidation(t *testing.T) {
	cases := map[string]func(*Form){
		"missing passport":       func(f *Form) { f.PassportPhotoURL = "" },
		"missing arrival":        func(f *Form) { f.ArrivalDate = "" },
		"bad arrival":            func(f *Form) { f.ArrivalDate = "next week" },
		"extra fees not acked":   func(f *Form) { f.ExtraFeesAcknowledged = false },
		"capture not acked":      func(f *Form) { f.PaymentCaptureAcknowledged = false },
		"cancellation not acked": func(f *Form) { f.CancellationPolicyAcknowledged = false },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := completeForm()
			mutate(&f)
			f.Normalize()
			assert.ErrorIs(t, f.Validate(nil), ErrIncomplete)
		})
	}

	f := completeForm()
	f.Normalize()
	assert.NoError(t, f.Validate(nil))
	assert.Equal(t, DefaultPreferredHotel, f.PreferredHotel)
}

func TestSubmitMovesBookingToIntakeSubmitted(t *testing.T) {
	for _, start := range []bookings.Status{bookings.StatusPendingPayment, bookings.StatusPaymentAuthorized} {
		t.Run(string(start), func(t *testing.T) {
			b := &bookings.Booking{ID: uuid.New(), Status: start}
			bs := newFakeBookings(b)
			forms := newMemoryForms()
			svc := NewService(forms, bs, logging.Discard())

			saved, err := svc.Submit(context.Background(), b.ID, completeForm())
			require.NoError(t, err)
			assert.Equal(t, b.ID, saved.BookingID)
			assert.Equal(t, bookings.StatusIntakeSubmitted, bs.status(b.ID))

			ok, err := svc.Submitted(context.Background(), b.ID)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestSubmitIncompleteCreatesNothing(t *testing.T) {
	b := &bookings.Booking{ID: uuid.New(), Status: bookings.StatusPaymentAuthorized}
	bs := newFakeBookings(b)
	forms := newMemoryForms()
	svc := NewService(forms, bs, logging.Discard())

	f := completeForm()
	f.CancellationPolicyAcknowledged = false
	_, err := svc.Submit(context.Background(), b.ID, f)
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Empty(t, forms.forms)
	assert.Equal(t, bookings.StatusPaymentAuthorized, bs.status(b.ID))
}

func TestSubmitTwiceConflicts(t *testing.T) {
	b := &bookings.Booking{ID: uuid.New(), Status: bookings.StatusPaymentAuthorized}
	svc := NewService(newMemoryForms(), newFakeBookings(b), logging.Discard())

	_, err := svc.Submit(context.Background(), b.ID, completeForm())
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), b.ID, completeForm())
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSubmitRetriesStatusConflictOnce(t *testing.T) {
	b := &bookings.Booking{ID: uuid.New(), Status: bookings.StatusPendingPayment}
	bs := newFakeBookings(b)
	bs.failNext = []error{bookings.ErrStatusConflict}
	svc := NewService(newMemoryForms(), bs, logging.Discard())

	_, err := svc.Submit(context.Background(), b.ID, completeForm())
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusIntakeSubmitted, bs.status(b.ID))
}

func TestResubmitAfterFailedStatusUpdateCompletesIntake(t *testing.T) {
	b := &bookings.Booking{ID: uuid.New(), Status: bookings.StatusPendingPayment}
	bs := newFakeBookings(b)
	bs.failNext = []error{errors.New("connection reset")}
	forms := newMemoryForms()
	svc := NewService(forms, bs, logging.Discard())

	first, err := svc.Submit(context.Background(), b.ID, completeForm())
	require.Error(t, err)
	assert.Nil(t, first)
	assert.Len(t, forms.forms, 1)
	assert.Equal(t, bookings.StatusPendingPayment, bs.status(b.ID))

	retry := completeForm()
	retry.CheckupReason = "second attempt"
	saved, err := svc.Submit(context.Background(), b.ID, retry)
	require.NoError(t, err)
	assert.Equal(t, "annual executive screening", saved.CheckupReason)
	assert.Equal(t, bookings.StatusIntakeSubmitted, bs.status(b.ID))
	assert.Len(t, forms.forms, 1)
}

func TestSubmitRejectedForCancelledBooking(t *testing.T) {
	b := &bookings.Booking{ID: uuid.New(), Status: bookings.StatusCancelled}
	forms := newMemoryForms()
	svc := NewService(forms, newFakeBookings(b), logging.Discard())

	_, err := svc.Submit(context.Background(), b.ID, completeForm())
	assert.ErrorIs(t, err, bookings.ErrInvalidTransition)
	assert.Empty(t, forms.forms)
}

func TestSubmitUnknownBooking(t *testing.T) {
	svc := NewService(newMemoryForms(), newFakeBookings(), logging.Discard())
	_, err := svc.Submit(context.Background(), uuid.New(), completeForm())
	assert.ErrorIs(t, err, bookings.ErrBookingNotFound)
}

func TestForBookingMissingReturnsNil(t *testing.T) {
	svc := NewService(newMemoryForms(), newFakeBookings(), logging.Discard())
	f, err := svc.ForBooking(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, f)
}
