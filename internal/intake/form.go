package intake

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/wolfman30/medtour-booking/internal/validation"
)

var (
	// ErrIncomplete means required answers or acknowledgements are missing.
	ErrIncomplete    = errors.New("intake: form incomplete")
	ErrAlreadyExists = errors.New("intake: form already submitted for booking")
	ErrNotFound      = errors.New("intake: form not found")
)

// DefaultPreferredHotel is suggested when the guest leaves the hotel blank.
const DefaultPreferredHotel = "Rosewood Guangzhou"

// Form is the medical intake questionnaire, one per booking.
type Form struct {
	ID                             uuid.UUID `json:"id"`
	BookingID                      uuid.UUID `json:"booking_id"`
	HowHeardAbout                  string    `json:"how_heard_about" validate:"max=500"`
	CheckupReason                  string    `json:"checkup_reason" validate:"max=2000"`
	HasChronicDiseases             bool      `json:"has_chronic_diseases"`
	ChronicDiseasesDetails         string    `json:"chronic_diseases_details" validate:"max=2000"`
	HasMajorSurgeries              bool      `json:"has_major_surgeries"`
	MajorSurgeriesDetails          string    `json:"major_surgeries_details" validate:"max=2000"`
	WantsCapsuleEndoscopy          bool      `json:"wants_capsule_endoscopy"`
	CapsuleEndoscopyReason         string    `json:"capsule_endoscopy_reason" validate:"max=2000"`
	PassportPhotoURL               string    `json:"passport_photo_url" validate:"required,max=1024"`
	ArrivalDate                    string    `json:"arrival_date" validate:"required,datetime=2006-01-02"`
	NeedsAirportPickup             bool      `json:"needs_airport_pickup"`
	NeedsHotelHelp                 bool      `json:"needs_hotel_help"`
	PreferredHotel                 string    `json:"preferred_hotel" validate:"max=200"`
	ExtraFeesAcknowledged          bool      `json:"extra_fees_acknowledged"`
	PaymentCaptureAcknowledged     bool      `json:"payment_capture_acknowledged"`
	CancellationPolicyAcknowledged bool      `json:"cancellation_policy_acknowledged"`
	CreatedAt                      time.Time `json:"created_at"`
	UpdatedAt                      time.Time `json:"updated_at"`
}

// Acknowledged reports whether all three policy acknowledgements are set.
func (f *Form) Acknowledged() bool {
	return f.ExtraFeesAcknowledged && f.PaymentCaptureAcknowledged && f.CancellationPolicyAcknowledged
}

// Normalize trims free text and fills defaults before validation.
func (f *Form) Normalize() {
	for _, s := range []*string{
		&f.HowHeardAbout, &f.CheckupReason, &f.ChronicDiseasesDetails, &f.MajorSurgeriesDetails,
		&f.CapsuleEndoscopyReason, &f.PassportPhotoURL, &f.ArrivalDate, &f.PreferredHotel,
	} {
		*s = strings.TrimSpace(*s)
	}
	if f.PreferredHotel == "" {
		f.PreferredHotel = DefaultPreferredHotel
	}
}

// Validate checks the submission rules. Every failure wraps ErrIncomplete.
func (f *Form) Validate(v *validator.Validate) error {
	if f.PassportPhotoURL == "" {
		return fmt.Errorf("%w: passport photo is required", ErrIncomplete)
	}
	if f.ArrivalDate == "" {
		return fmt.Errorf("%w: arrival date is required", ErrIncomplete)
	}
	if !f.Acknowledged() {
		return fmt.Errorf("%w: all acknowledgements are required", ErrIncomplete)
	}
	if v == nil {
		v = validation.New()
	}
	if err := v.Struct(f); err != nil {
		return fmt.Errorf("%w: %s", ErrIncomplete, validation.Summary(err))
	}
	return nil
}
