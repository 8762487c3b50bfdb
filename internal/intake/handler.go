package intake

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// DefaultMaxPhotoBytes caps passport uploads at 5 MiB.
const DefaultMaxPhotoBytes int64 = 5 * 1024 * 1024

// Handler serves intake submission and passport upload.
type Handler struct {
	service       *Service
	photos        *PhotoStore
	maxPhotoBytes int64
	logger        *logging.Logger
}

func NewHandler(service *Service, photos *PhotoStore, maxPhotoBytes int64, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = DefaultMaxPhotoBytes
	}
	return &Handler{service: service, photos: photos, maxPhotoBytes: maxPhotoBytes, logger: logger}
}

// Submit handles POST /api/bookings/{bookingID}/intake.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	var f Form
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	saved, err := h.service.Submit(r.Context(), bookingID, f)
	if err != nil {
		h.fail(w, bookingID, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// Get handles GET /api/bookings/{bookingID}/intake.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	f, err := h.service.ForBooking(r.Context(), bookingID)
	if err != nil {
		h.fail(w, bookingID, err)
		return
	}
	if f == nil {
		writeError(w, http.StatusNotFound, "intake form not submitted")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// UploadPassportPhoto handles POST /api/bookings/{bookingID}/passport-photo
// with a multipart "file" field holding an image of at most maxPhotoBytes.
func (h *Handler) UploadPassportPhoto(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	if !h.photos.Enabled() {
		writeError(w, http.StatusServiceUnavailable, ErrPhotoStorageDisabled.Error())
		return
	}
	if _, err := h.service.bookings.Get(r.Context(), bookingID); err != nil {
		h.fail(w, bookingID, err)
		return
	}

	// Allow multipart framing overhead on top of the file limit.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPhotoBytes+64*1024)
	if err := r.ParseMultipartForm(h.maxPhotoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image must be smaller than 5MB")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxPhotoBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image must be smaller than 5MB")
		return
	}
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	contentType := mtype.String()
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusUnsupportedMediaType, "please upload an image file")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	url, err := h.photos.Upload(r.Context(), bookingID, header.Filename, contentType, file, header.Size)
	if err != nil {
		h.logger.Error("passport photo upload failed", "booking_id", bookingID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to upload passport photo")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"passport_photo_url": url})
}

func (h *Handler) fail(w http.ResponseWriter, bookingID uuid.UUID, err error) {
	switch {
	case errors.Is(err, ErrIncomplete):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		status := bookings.StatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("intake request failed", "booking_id", bookingID, "error", err)
			writeError(w, status, "internal error")
			return
		}
		writeError(w, status, err.Error())
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
