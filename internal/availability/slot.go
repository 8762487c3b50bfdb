package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSlotFull means the slot has no remaining capacity or is closed.
	ErrSlotFull = errors.New("availability: slot is fully booked")
	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("availability: date must be YYYY-MM-DD")
)

const (
	dateLayout    = "2006-01-02"
	timeLayout    = "15:04"
	secondsLayout = "15:04:05"
)

// Slot is one bookable time on a calendar day.
type Slot struct {
	ID              uuid.UUID `json:"id"`
	SlotDate        string    `json:"slot_date"`
	SlotTime        string    `json:"slot_time"`
	IsAvailable     bool      `json:"is_available"`
	CurrentBookings int       `json:"current_bookings"`
	MaxBookings     int       `json:"max_bookings"`
	Available       bool      `json:"available"`
}

// HasCapacity reports whether another booking may be placed on the slot.
func (s Slot) HasCapacity() bool {
	return s.IsAvailable && s.CurrentBookings < s.MaxBookings
}

func (s *Slot) computeAvailable() {
	s.Available = s.HasCapacity()
}

// ParseDate validates a calendar date string.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return d, nil
}

// NormalizeTime reduces an HH:MM:SS slot time to HH:MM. Anything else is
// returned trimmed and unchanged for the caller's validation to reject.
func NormalizeTime(raw string) string {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(secondsLayout, raw); err == nil {
		return t.Format(timeLayout)
	}
	return raw
}
