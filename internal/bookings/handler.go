package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/availability"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// PaymentVerifier confirms with the processor that the booking's checkout
// holds funds and returns the id of the intent holding them.
type PaymentVerifier interface {
	VerifyAuthorized(ctx context.Context, b *Booking) (string, error)
}

// Handler serves the public booking endpoints.
type Handler struct {
	service  *Service
	verifier PaymentVerifier
	logger   *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// WithPaymentVerifier makes the success redirect check the intent with the
// processor before advancing the booking.
func (h *Handler) WithPaymentVerifier(v PaymentVerifier) *Handler {
	h.verifier = v
	return h
}

// Create handles POST /api/bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	b, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Get handles GET /api/bookings/{bookingID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// PaymentAuthorized handles POST /api/bookings/{bookingID}/payment-authorized,
// called by the success page after the checkout redirect.
func (h *Handler) PaymentAuthorized(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	if h.verifier != nil {
		b, err := h.service.Get(r.Context(), id)
		if err != nil {
			h.fail(w, "load booking for verification", err)
			return
		}
		if b.Status == StatusPendingPayment {
			if b.PaymentIntentID() == "" && b.CheckoutSessionID() == "" {
				writeError(w, http.StatusConflict, "booking has no payment intent")
				return
			}
			intentID, err := h.verifier.VerifyAuthorized(r.Context(), b)
			if err != nil {
				h.logger.Warn("payment not authorized at redirect", "booking_id", id, "error", err)
				writeError(w, http.StatusPaymentRequired, "payment has not been authorized")
				return
			}
			if intentID != "" && intentID != b.PaymentIntentID() {
				// Checkout creates its own intent; capture must target that one.
				if err := h.service.AttachPaymentIntent(r.Context(), id, intentID, ""); err != nil {
					h.fail(w, "attach checkout payment intent", err)
					return
				}
			}
		}
	}
	b, err := h.service.MarkPaymentAuthorized(r.Context(), id, ActorCustomer)
	if err != nil {
		h.fail(w, "mark payment authorized", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("booking request failed", "op", op, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// StatusCode maps package errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDateInPast), errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStatusConflict), errors.Is(err, availability.ErrSlotFull):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func bookingIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
