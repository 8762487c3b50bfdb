package bookings

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/availability"
)

// memoryStore is an in-memory Store with slot capacity accounting.
type memoryStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*Booking
	capacity map[string]int
	used     map[string]int
	changes  []StatusChange
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		bookings: map[uuid.UUID]*Booking{},
		capacity: map[string]int{},
		used:     map[string]int{},
	}
}

func (m *memoryStore) addSlot(date, slotTime string, max int) {
	m.capacity[date+" "+slotTime] = max
}

func (m *memoryStore) Create(ctx context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := b.SelectedDate + " " + b.SelectedTime
	if m.used[key] >= m.capacity[key] {
		return availability.ErrSlotFull
	}
	m.used[key]++
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memoryStore) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memoryStore) UpdateStatus(ctx context.Context, change StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[change.BookingID]
	if !ok || b.Status != change.From {
		return ErrStatusConflict
	}
	b.Status = change.To
	b.UpdatedAt = change.At
	if change.ReleasesSlot() {
		m.used[change.SelectedDate+" "+change.SelectedTime]--
	}
	m.changes = append(m.changes, change)
	return nil
}

func (m *memoryStore) AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	b.StripePaymentIntentID = &intentID
	if customerID != "" {
		b.StripeCustomerID = &customerID
	}
	return nil
}

func (m *memoryStore) AttachCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	b.StripeCheckoutSessionID = &sessionID
	return nil
}

func (m *memoryStore) MarkCaptured(ctx context.Context, id uuid.UUID, capturedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrBookingNotFound
	}
	b.PaymentCapturedAt = &capturedAt
	return nil
}

type recordingInvalidator struct {
	dates []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, date string) {
	r.dates = append(r.dates, date)
}
