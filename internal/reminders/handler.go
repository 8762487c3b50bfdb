package reminders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// Handler serves POST /functions/v1/send-intake-reminder.
type Handler struct {
	scheduler *Scheduler
	bookings  BookingReader
	logger    *logging.Logger
}

func NewHandler(scheduler *Scheduler, bookingReader BookingReader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{scheduler: scheduler, bookings: bookingReader, logger: logger}
}

type reminderRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	raw := strings.TrimSpace(req.BookingID)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "booking_id is required")
		return
	}
	bookingID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking_id")
		return
	}
	if _, err := h.bookings.Get(r.Context(), bookingID); err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("reminder booking lookup failed", "booking_id", bookingID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.scheduler.ScheduleIntakeReminder(r.Context(), bookingID); err != nil {
		h.logger.Error("schedule intake reminder failed", "booking_id", bookingID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to schedule reminder")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Reminder scheduled"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
