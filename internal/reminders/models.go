package reminders

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus tracks the lifecycle of a scheduled job.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusSkipped JobStatus = "skipped"
	StatusFailed  JobStatus = "failed"
)

const (
	KindIntakeReminder = "intake_reminder"
	// KindPaymentExpiry cancels a booking whose checkout was never completed.
	KindPaymentExpiry = "payment_expiry"
)

// Job is a durable scheduled_jobs row.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	BookingID   uuid.UUID  `json:"booking_id"`
	DueAt       time.Time  `json:"due_at"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
