package availability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medtour-booking/pkg/logging"
)

type countingLister struct {
	calls int
	slots []Slot
	err   error
}

func (c *countingLister) ListByDate(ctx context.Context, date string) ([]Slot, error) {
	c.calls++
	return c.slots, c.err
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestServiceReadsThroughCache(t *testing.T) {
	cache, mr := newTestCache(t)
	lister := &countingLister{slots: []Slot{{SlotDate: "2026-11-02", SlotTime: "09:00", IsAvailable: true, MaxBookings: 1, Available: true}}}
	svc := NewService(lister, cache, logging.Discard())

	first, err := svc.ForDate(context.Background(), "2026-11-02")
	require.NoError(t, err)
	second, err := svc.ForDate(context.Background(), "2026-11-02")
	require.NoError(t, err)

	assert.Equal(t, 1, lister.calls, "second lookup should be served from redis")
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("availability:slots:2026-11-02"))

	svc.Invalidate(context.Background(), "2026-11-02")
	assert.False(t, mr.Exists("availability:slots:2026-11-02"))

	_, err = svc.ForDate(context.Background(), "2026-11-02")
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)
}

func TestServiceReadsThroughLocalCache(t *testing.T) {
	lister := &countingLister{slots: []Slot{{SlotDate: "2026-11-02", SlotTime: "10:00", IsAvailable: true, MaxBookings: 2, Available: true}}}
	svc := NewService(lister, NewLocalCache(time.Minute), logging.Discard())

	first, err := svc.ForDate(context.Background(), "2026-11-02")
	require.NoError(t, err)
	first[0].Available = false

	second, err := svc.ForDate(context.Background(), "2026-11-02")
	require.NoError(t, err)
	assert.Equal(t, 1, lister.calls, "second lookup should be served from memory")
	assert.True(t, second[0].Available, "cached listing must not alias caller slices")

	svc.Invalidate(context.Background(), "2026-11-02")
	_, err = svc.ForDate(context.Background(), "2026-11-02")
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)
}

func TestServiceWithoutCacheHitsRepository(t *testing.T) {
	lister := &countingLister{}
	svc := NewService(lister, NewCache(nil, 0), logging.Discard())
	_, err := svc.ForDate(context.Background(), "2026-11-02")
	require.NoError(t, err)
	_, err = svc.ForDate(context.Background(), "2026-11-02")
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)
	svc.Invalidate(context.Background(), "2026-11-02")
}

func TestServiceRejectsMalformedDate(t *testing.T) {
	svc := NewService(&countingLister{}, nil, logging.Discard())
	_, err := svc.ForDate(context.Background(), "11/02/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestHandlerList(t *testing.T) {
	lister := &countingLister{slots: []Slot{{SlotDate: "2026-11-02", SlotTime: "09:00", Available: true}}}
	h := NewHandler(NewService(lister, nil, logging.Discard()), logging.Discard())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/availability?date=2026-11-02", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Date  string `json:"date"`
		Slots []Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-11-02", body.Date)
	require.Len(t, body.Slots, 1)
	assert.Equal(t, "09:00", body.Slots[0].SlotTime)
}

func TestHandlerListErrors(t *testing.T) {
	h := NewHandler(NewService(&countingLister{err: errors.New("db down")}, nil, logging.Discard()), logging.Discard())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/availability", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/availability?date=tomorrow", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/availability?date=2026-11-02", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
