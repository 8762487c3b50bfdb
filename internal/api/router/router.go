package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/medtour-booking/internal/availability"
	"github.com/wolfman30/medtour-booking/internal/bookings"
	"github.com/wolfman30/medtour-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medtour-booking/internal/http/middleware"
	"github.com/wolfman30/medtour-booking/internal/intake"
	"github.com/wolfman30/medtour-booking/internal/notify"
	"github.com/wolfman30/medtour-booking/internal/payments"
	"github.com/wolfman30/medtour-booking/internal/reminders"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Availability   *availability.Handler
	Bookings       *bookings.Handler
	Intake         *intake.Handler
	Payments       *payments.Handler
	StripeWebhook  *payments.StripeWebhookHandler
	Notify         *notify.Handler
	Reminders      *reminders.Handler
	AdminBookings  *handlers.AdminBookingsHandler
	MetricsHandler http.Handler

	// AdminAuth guards admin routes. When nil every admin request gets 401.
	AdminAuth func(http.Handler) http.Handler

	CORSAllowedOrigins []string
	PublicRateLimit    float64
	PublicRateBurst    int

	// Ping reports dependency health for /health (optional).
	Ping func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	limited := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.PublicRateLimit > 0 {
		mw := httpmiddleware.RateLimit(cfg.PublicRateLimit, cfg.PublicRateBurst)
		limited = func(h http.HandlerFunc) http.Handler { return mw(h) }
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Ping))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}

		public.Route("/api", func(api chi.Router) {
			if cfg.Availability != nil {
				api.Get("/availability", cfg.Availability.List)
			}
			api.Route("/bookings", func(b chi.Router) {
				if cfg.Bookings != nil {
					b.Method(http.MethodPost, "/", limited(cfg.Bookings.Create))
					b.Get("/{bookingID}", cfg.Bookings.Get)
					b.Method(http.MethodPost, "/{bookingID}/payment-authorized", limited(cfg.Bookings.PaymentAuthorized))
				}
				if cfg.Intake != nil {
					b.Method(http.MethodPost, "/{bookingID}/intake", limited(cfg.Intake.Submit))
					b.Get("/{bookingID}/intake", cfg.Intake.Get)
					b.Method(http.MethodPost, "/{bookingID}/passport-photo", limited(cfg.Intake.UploadPassportPhoto))
				}
			})
		})

		if cfg.Payments != nil {
			public.Method(http.MethodPost, "/functions/v1/create-payment-authorization", limited(cfg.Payments.CreateAuthorization))
		}
		if cfg.Reminders != nil {
			public.Method(http.MethodPost, "/functions/v1/send-intake-reminder", limited(cfg.Reminders.Schedule))
		}
	})

	adminAuth := cfg.AdminAuth
	if adminAuth == nil {
		adminAuth = httpmiddleware.AdminJWT("", nil, "", logger)
	}

	// Admin routes
	r.Group(func(admin chi.Router) {
		admin.Use(adminAuth)
		if cfg.Payments != nil {
			admin.Post("/functions/v1/capture-payment", cfg.Payments.Capture)
		}
		if cfg.Notify != nil {
			admin.Post("/functions/v1/send-confirmation-email", cfg.Notify.SendConfirmation)
		}
		if cfg.AdminBookings != nil {
			admin.Get("/admin/bookings", cfg.AdminBookings.ListBookings)
			admin.Patch("/admin/bookings/{bookingID}/status", cfg.AdminBookings.UpdateStatus)
		}
	})

	return r
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
