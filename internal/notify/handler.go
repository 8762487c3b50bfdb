package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// Handler serves POST /functions/v1/send-confirmation-email. Admin auth is
// enforced by the router middleware.
type Handler struct {
	mailer *Mailer
	logger *logging.Logger
}

func NewHandler(mailer *Mailer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{mailer: mailer, logger: logger}
}

type confirmationRequest struct {
	BookingID string `json:"bookingId"`
}

func (h *Handler) SendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req confirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeError(w, http.StatusBadRequest, "Missing bookingId")
		return
	}
	bookingID, err := uuid.Parse(strings.TrimSpace(req.BookingID))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bookingId")
		return
	}

	emailID, err := h.mailer.SendConfirmation(r.Context(), bookingID)
	if err != nil {
		h.logger.Error("send confirmation email failed", "booking_id", bookingID, "error", err)
		switch {
		case errors.Is(err, bookings.ErrBookingNotFound):
			writeError(w, http.StatusNotFound, "Failed to fetch booking")
		case errors.Is(err, ErrProviderRejected):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Confirmation email sent successfully",
		"emailId": emailID,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
