package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const slotColumns = `id, slot_date::text, slot_time, is_available, current_bookings, max_bookings`

// Repository reads and reserves availability slots.
type Repository struct {
	db Querier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithQuerier allows injecting mocks for tests.
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{db: q}
}

// ListByDate returns the slots of one day ordered by time.
func (r *Repository) ListByDate(ctx context.Context, date string) ([]Slot, error) {
	query := `SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE slot_date = $1::date
		ORDER BY slot_time`
	rows, err := r.db.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("availability: list slots: %w", err)
	}
	defer rows.Close()

	slots := make([]Slot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate slots: %w", err)
	}
	return slots, nil
}

// Reserve takes one unit of capacity from the slot in a single conditional
// update, so two concurrent reservations can never both pass the check.
// Pass a transaction as q to make the reservation part of a larger write.
// slotTime is HH:MM; rows stored as HH:MM:SS match on their first five
// characters.
func Reserve(ctx context.Context, q Querier, date, slotTime string) (Slot, error) {
	query := `
		UPDATE availability_slots
		SET current_bookings = current_bookings + 1
		WHERE slot_date = $1::date
		  AND left(slot_time, 5) = $2
		  AND is_available
		  AND current_bookings < max_bookings
		RETURNING ` + slotColumns
	slot, err := scanSlot(q.QueryRow(ctx, query, date, slotTime))
	if errors.Is(err, pgx.ErrNoRows) {
		return Slot{}, ErrSlotFull
	}
	if err != nil {
		return Slot{}, fmt.Errorf("availability: reserve slot: %w", err)
	}
	return slot, nil
}

// Release returns one unit of capacity, never going below zero.
func Release(ctx context.Context, q Querier, date, slotTime string) error {
	query := `
		UPDATE availability_slots
		SET current_bookings = GREATEST(current_bookings - 1, 0)
		WHERE slot_date = $1::date AND left(slot_time, 5) = $2
	`
	if _, err := q.Exec(ctx, query, date, slotTime); err != nil {
		return fmt.Errorf("availability: release slot: %w", err)
	}
	return nil
}

func scanSlot(row pgx.Row) (Slot, error) {
	var s Slot
	if err := row.Scan(&s.ID, &s.SlotDate, &s.SlotTime, &s.IsAvailable, &s.CurrentBookings, &s.MaxBookings); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Slot{}, err
		}
		return Slot{}, fmt.Errorf("availability: scan slot: %w", err)
	}
	s.SlotTime = NormalizeTime(s.SlotTime)
	s.computeAvailable()
	return s, nil
}
