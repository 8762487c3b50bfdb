package intake

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/bookings"
)

type fakeBookings struct {
	mu    sync.Mutex
	items map[uuid.UUID]*bookings.Booking

	// failNext makes the next Transition calls return these errors in order.
	failNext []error
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

func (f *fakeBookings) Transition(ctx context.Context, id uuid.UUID, to bookings.Status, actor bookings.Actor) (*bookings.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.failNext) > 0 {
		err := f.failNext[0]
		f.failNext = f.failNext[1:]
		return nil, err
	}
	b, ok := f.items[id]
	if !ok {
		return nil, bookings.ErrBookingNotFound
	}
	if b.Status != to && !b.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", bookings.ErrInvalidTransition, b.Status, to)
	}
	b.Status = to
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) status(id uuid.UUID) bookings.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id].Status
}

type memoryForms struct {
	mu    sync.Mutex
	forms map[uuid.UUID]Form
}

func newMemoryForms() *memoryForms {
	return &memoryForms{forms: map[uuid.UUID]Form{}}
}

func (m *memoryForms) Insert(ctx context.Context, f *Form) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.forms[f.BookingID]; ok {
		return ErrAlreadyExists
	}
	m.forms[f.BookingID] = *f
	return nil
}

func (m *memoryForms) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (m *memoryForms) Exists(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.forms[bookingID]
	return ok, nil
}

func completeForm() Form {
	return Form{
		HowHeardAbout:                  "friend",
		CheckupReason:                  "annual executive screening",
		PassportPhotoURL:               "s3://passports/p.jpg",
		ArrivalDate:                    "2026-11-01",
		NeedsAirportPickup:             true,
		ExtraFeesAcknowledged:          true,
		PaymentCaptureAcknowledged:     true,
		CancellationPolicyAcknowledged: true,
	}
}
