package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// Handler serves the payment function endpoints. Every failure is a 500
// with an {"error": ...} body, which is the contract the booking site
// relies on.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// CreateAuthorization handles POST /functions/v1/create-payment-authorization.
func (h *Handler) CreateAuthorization(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, "invalid payload")
		return
	}
	req.Origin = r.Header.Get("Origin")

	result, err := h.service.Authorize(r.Context(), req)
	if err != nil {
		h.logger.Error("create payment authorization failed", "booking_id", req.BookingID, "error", err)
		writeError(w, http.StatusInternalServerError, errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Capture handles POST /functions/v1/capture-payment.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusInternalServerError, "invalid payload")
		return
	}
	intent, err := h.service.Capture(r.Context(), req)
	if err != nil {
		h.logger.Error("capture payment failed", "booking_id", req.BookingID, "payment_intent_id", req.PaymentIntentID, "error", err)
		writeError(w, http.StatusInternalServerError, errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "paymentIntent": intent})
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingAuthorizationFields):
		return "Missing required fields: booking_id, amount, or email"
	case errors.Is(err, ErrMissingCaptureFields):
		return "Missing paymentIntentId or bookingId"
	}
	var stripeErr *StripeError
	if errors.As(err, &stripeErr) && stripeErr.Message != "" {
		return stripeErr.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
