package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/internal/http/middleware"
	"github.com/wolfman30/medtour-booking/internal/intake"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

const (
	defaultAdminListLimit = 200
	maxAdminListLimit     = 500
)

// StatusTransitioner applies admin status edits through the booking state machine.
type StatusTransitioner interface {
	Transition(ctx context.Context, id uuid.UUID, to bookings.Status, actor bookings.Actor) (*bookings.Booking, error)
}

// AdminBookingsHandler serves the admin dashboard booking endpoints.
type AdminBookingsHandler struct {
	db       *sql.DB
	bookings StatusTransitioner
	logger   *logging.Logger
}

// NewAdminBookingsHandler creates a new admin bookings handler.
func NewAdminBookingsHandler(db *sql.DB, transitioner StatusTransitioner, logger *logging.Logger) *AdminBookingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminBookingsHandler{db: db, bookings: transitioner, logger: logger}
}

// AdminBooking is a booking with its intake form, if one was submitted.
type AdminBooking struct {
	bookings.Booking
	IntakeForm *intake.Form `json:"intake_form"`
}

// ListBookingsResponse is the body of GET /admin/bookings.
type ListBookingsResponse struct {
	Bookings []AdminBooking `json:"bookings"`
	Total    int            `json:"total"`
}

const listBookingsQuery = `
	SELECT b.id, b.user_email, b.user_phone, b.selected_date::text, b.selected_time, b.status::text,
		b.total_amount, b.stripe_payment_intent_id, b.stripe_customer_id, b.stripe_checkout_session_id,
		b.payment_captured_at, b.created_at, b.updated_at,
		f.id, f.how_heard_about, f.checkup_reason, f.has_chronic_diseases, f.chronic_diseases_details,
		f.has_major_surgeries, f.major_surgeries_details, f.wants_capsule_endoscopy, f.capsule_endoscopy_reason,
		f.passport_photo_url, f.arrival_date::text, f.needs_airport_pickup, f.needs_hotel_help, f.preferred_hotel,
		f.extra_fees_acknowledged, f.payment_capture_acknowledged, f.cancellation_policy_acknowledged,
		f.created_at, f.updated_at
	FROM bookings b
	LEFT JOIN intake_forms f ON f.booking_id = b.id
	WHERE cardinality($1::text[]) = 0 OR b.status::text = ANY($1::text[])
	ORDER BY b.created_at DESC
	LIMIT $2`

// ListBookings returns bookings newest first, optionally filtered by a
// comma-separated status list.
// GET /admin/bookings?status=payment_authorized,intake_submitted&limit=50
func (h *AdminBookingsHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	statuses := []string{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			s, err := bookings.ParseStatus(part)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			statuses = append(statuses, string(s))
		}
	}
	limit := defaultAdminListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAdminListLimit)
	}

	rows, err := h.db.QueryContext(r.Context(), listBookingsQuery, pq.Array(statuses), limit)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	defer rows.Close()

	out := make([]AdminBooking, 0)
	for rows.Next() {
		item, err := scanAdminBooking(rows)
		if err != nil {
			h.logger.Error("failed to scan booking", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list bookings")
			return
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("failed to iterate bookings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}
	writeJSON(w, http.StatusOK, ListBookingsResponse{Bookings: out, Total: len(out)})
}

func scanAdminBooking(rows *sql.Rows) (AdminBooking, error) {
	var (
		item   AdminBooking
		status string

		formID                                     uuid.NullUUID
		howHeard, reason, chronicDetails           sql.NullString
		surgeryDetails, capsuleReason, passportURL sql.NullString
		arrivalDate, preferredHotel                sql.NullString
		hasChronic, hasSurgeries, wantsCapsule     sql.NullBool
		airportPickup, hotelHelp                   sql.NullBool
		feesAck, captureAck, cancelAck             sql.NullBool
		formCreatedAt, formUpdatedAt               sql.NullTime
	)
	b := &item.Booking
	err := rows.Scan(
		&b.ID, &b.UserEmail, &b.UserPhone, &b.SelectedDate, &b.SelectedTime, &status,
		&b.TotalAmount, &b.StripePaymentIntentID, &b.StripeCustomerID, &b.StripeCheckoutSessionID,
		&b.PaymentCapturedAt, &b.CreatedAt, &b.UpdatedAt,
		&formID, &howHeard, &reason, &hasChronic, &chronicDetails,
		&hasSurgeries, &surgeryDetails, &wantsCapsule, &capsuleReason,
		&passportURL, &arrivalDate, &airportPickup, &hotelHelp, &preferredHotel,
		&feesAck, &captureAck, &cancelAck,
		&formCreatedAt, &formUpdatedAt,
	)
	if err != nil {
		return item, err
	}
	b.Status = bookings.Status(status)
	if !formID.Valid {
		return item, nil
	}
	item.IntakeForm = &intake.Form{
		ID:                             formID.UUID,
		BookingID:                      b.ID,
		HowHeardAbout:                  howHeard.String,
		CheckupReason:                  reason.String,
		HasChronicDiseases:             hasChronic.Bool,
		ChronicDiseasesDetails:         chronicDetails.String,
		HasMajorSurgeries:              hasSurgeries.Bool,
		MajorSurgeriesDetails:          surgeryDetails.String,
		WantsCapsuleEndoscopy:          wantsCapsule.Bool,
		CapsuleEndoscopyReason:         capsuleReason.String,
		PassportPhotoURL:               passportURL.String,
		ArrivalDate:                    arrivalDate.String,
		NeedsAirportPickup:             airportPickup.Bool,
		NeedsHotelHelp:                 hotelHelp.Bool,
		PreferredHotel:                 preferredHotel.String,
		ExtraFeesAcknowledged:          feesAck.Bool,
		PaymentCaptureAcknowledged:     captureAck.Bool,
		CancellationPolicyAcknowledged: cancelAck.Bool,
		CreatedAt:                      nullTime(formCreatedAt),
		UpdatedAt:                      nullTime(formUpdatedAt),
	}
	return item, nil
}

func nullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves a booking along the state machine on behalf of an admin.
// PATCH /admin/bookings/{bookingID}/status
func (h *AdminBookingsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	to, err := bookings.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.bookings.Transition(r.Context(), id, to, bookings.ActorAdmin)
	if err != nil {
		status := bookings.StatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("admin status update failed", "booking_id", id, "to", to, "error", err)
			writeError(w, status, "internal error")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	admin := ""
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok {
		admin = claims.Subject
	}
	h.logger.Info("admin updated booking status", "booking_id", id, "status", b.Status, "admin_id", admin)
	writeJSON(w, http.StatusOK, b)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
