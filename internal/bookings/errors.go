package bookings

import "errors"

var (
	ErrBookingNotFound   = errors.New("bookings: booking not found")
	ErrInvalidStatus     = errors.New("bookings: unknown status")
	ErrInvalidTransition = errors.New("bookings: status transition not allowed")
	// ErrStatusConflict means the row changed between read and write.
	ErrStatusConflict = errors.New("bookings: status changed concurrently")
	ErrInvalidInput   = errors.New("bookings: invalid input")
	ErrDateInPast     = errors.New("bookings: selected date is in the past")
)
