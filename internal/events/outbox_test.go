package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "booking-1", TypeBookingStatusChanged, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if _, err := store.Insert(context.Background(), "booking-1", TypeBookingStatusChanged, BookingStatusChangedV1{BookingID: "booking-1"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "aggregate_id", "type", "payload", "created_at"}).
		AddRow(id, "booking-1", TypeBookingStatusChanged, []byte(`{"to":"confirmed"}`), now)
	mock.ExpectQuery("SELECT id, aggregate_id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].AggregateID != "booking-1" {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type memoryPending struct {
	entries   []OutboxEntry
	delivered map[uuid.UUID]bool
}

func (m *memoryPending) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	var out []OutboxEntry
	for _, e := range m.entries {
		if !m.delivered[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryPending) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.delivered[id] {
		return false, nil
	}
	m.delivered[id] = true
	return true, nil
}

type flakyHandler struct {
	failFor map[uuid.UUID]bool
	seen    []uuid.UUID
}

func (h *flakyHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	h.seen = append(h.seen, entry.ID)
	if h.failFor[entry.ID] {
		return errors.New("queue unavailable")
	}
	return nil
}

func TestDelivererRetriesFailedEntriesOnNextDrain(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	store := &memoryPending{
		entries:   []OutboxEntry{{ID: first, Type: TypeBookingStatusChanged}, {ID: second, Type: TypeBookingStatusChanged}},
		delivered: map[uuid.UUID]bool{},
	}
	handler := &flakyHandler{failFor: map[uuid.UUID]bool{second: true}}
	d := newDeliverer(store, handler, logging.Discard())

	if got := d.drain(context.Background()); got != 1 {
		t.Fatalf("expected 1 delivered, got %d", got)
	}
	if store.delivered[second] {
		t.Fatal("failed entry must stay pending")
	}

	handler.failFor = nil
	if got := d.drain(context.Background()); got != 1 {
		t.Fatalf("expected retry to deliver 1, got %d", got)
	}
	if !store.delivered[second] {
		t.Fatal("expected second entry delivered on retry")
	}
}

func TestDelivererStartStopsOnCancel(t *testing.T) {
	store := &memoryPending{delivered: map[uuid.UUID]bool{}}
	d := newDeliverer(store, &flakyHandler{}, logging.Discard()).WithInterval(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliverer did not stop")
	}
}
