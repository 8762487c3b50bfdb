package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medtour-booking/internal/api/router"
	"github.com/wolfman30/medtour-booking/internal/auth"
	"github.com/wolfman30/medtour-booking/internal/availability"
	"github.com/wolfman30/medtour-booking/internal/bookings"
	appconfig "github.com/wolfman30/medtour-booking/internal/config"
	"github.com/wolfman30/medtour-booking/internal/events"
	"github.com/wolfman30/medtour-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medtour-booking/internal/http/middleware"
	"github.com/wolfman30/medtour-booking/internal/intake"
	"github.com/wolfman30/medtour-booking/internal/notify"
	"github.com/wolfman30/medtour-booking/internal/observability/metrics"
	"github.com/wolfman30/medtour-booking/internal/payments"
	"github.com/wolfman30/medtour-booking/internal/reminders"
	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// ClinicTimeZone decides whether a requested date is already in the past.
const ClinicTimeZone = "Asia/Shanghai"

// checkoutGrace closes the Stripe page this long before the booking expires
// so a late webhook finds the booking still pending.
const checkoutGrace = 10 * time.Minute

// stripeDryRun decides whether checkout uses fake Stripe objects. Dry run
// must be requested; a missing key outside production falls back to it
// loudly, and in production refuses to start.
func stripeDryRun(cfg *appconfig.Config, logger *logging.Logger) (bool, error) {
	if cfg.StripeDryRun {
		return true, nil
	}
	if cfg.StripeSecretKey != "" {
		return false, nil
	}
	if strings.EqualFold(cfg.Env, "production") {
		return false, fmt.Errorf("bootstrap: STRIPE_SECRET_KEY is required in production (set STRIPE_DRY_RUN=true to use fake checkout)")
	}
	logger.Error("STRIPE_SECRET_KEY not set; checkout falls back to dry run", "env", cfg.Env)
	return true, nil
}

// Clients are the external connections an App is built on. Pool is
// required; the rest are optional and nil disables the feature that uses
// them.
type Clients struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	S3       intake.S3API
	SES      notify.SESAPI
	SQS      events.SQSAPI
	Registry *prometheus.Registry
}

// App is the fully wired booking backend.
type App struct {
	Handler        http.Handler
	Deliverer      *events.Deliverer
	ReminderWorker *reminders.Worker
	EmailProvider  string

	sqlDB *sql.DB
}

// BuildApp wires repositories, services, handlers and background workers.
func BuildApp(cfg *appconfig.Config, clients Clients, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if clients.Pool == nil {
		return nil, fmt.Errorf("bootstrap: postgres pool is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	registry := clients.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.NewBookingMetrics(registry)

	var cache *availability.Cache
	if clients.Redis != nil {
		cache = availability.NewCache(clients.Redis, cfg.AvailabilityTTL)
	} else {
		cache = availability.NewLocalCache(cfg.AvailabilityTTL)
	}
	availabilitySvc := availability.NewService(availability.NewRepository(clients.Pool), cache, logger)

	bookingOpts := []bookings.Option{
		bookings.WithSlotInvalidator(availabilitySvc),
		bookings.WithMetrics(m),
		bookings.WithPackageAmount(cfg.BasePackageAmount),
	}
	if loc, err := time.LoadLocation(ClinicTimeZone); err == nil {
		bookingOpts = append(bookingOpts, bookings.WithLocation(loc))
	} else {
		logger.Warn("clinic time zone unavailable; using UTC", "zone", ClinicTimeZone, "error", err)
	}
	jobStore := reminders.NewStore(clients.Pool)
	scheduler := reminders.NewScheduler(jobStore, cfg.IntakeReminderDelay, logger).
		WithPaymentTTL(cfg.PendingPaymentTTL)
	bookingOpts = append(bookingOpts, bookings.WithExpiryScheduler(scheduler))
	bookingSvc := bookings.NewService(bookings.NewRepository(clients.Pool), logger, bookingOpts...)

	photos := intake.NewPhotoStore(clients.S3, cfg.PassportBucket, logger)
	intakeSvc := intake.NewService(intake.NewRepository(clients.Pool), bookingSvc, logger).
		WithPhotoIssuer(photos)

	dryRun, err := stripeDryRun(cfg, logger)
	if err != nil {
		return nil, err
	}
	stripe := payments.NewStripeClient(cfg.StripeSecretKey, logger).
		WithBaseURL(cfg.StripeBaseURL).
		WithDryRun(dryRun).
		WithMetrics(m)
	outbox := events.NewOutboxStore(clients.Pool)
	paymentSvc := payments.NewService(stripe, bookingSvc, outbox, payments.ServiceConfig{
		Currency:      cfg.Currency,
		ProductName:   cfg.ProductName,
		PublicBaseURL: cfg.PublicBaseURL,
		CheckoutTTL:   max(cfg.PendingPaymentTTL-checkoutGrace, time.Minute),
	}, m, logger)
	webhook := payments.NewStripeWebhookHandler(cfg.StripeWebhookSecret, bookingSvc, events.NewProcessedStore(clients.Pool), logger)

	bookingHandler := bookings.NewHandler(bookingSvc, logger)
	if cfg.VerifyRedirectIntent {
		bookingHandler.WithPaymentVerifier(stripe)
	}

	sender, provider, err := notify.NewSender(notify.SenderConfig{
		Provider:       cfg.EmailProvider,
		FromEmail:      cfg.EmailFromAddress,
		FromName:       cfg.EmailFromName,
		SendGridAPIKey: cfg.SendGridAPIKey,
		ResendAPIKey:   cfg.ResendAPIKey,
		ResendBaseURL:  cfg.ResendBaseURL,
		SMTPHost:       cfg.SMTPHost,
		SMTPPort:       cfg.SMTPPort,
		SMTPUsername:   cfg.SMTPUsername,
		SMTPPassword:   cfg.SMTPPassword,
	}, clients.SES, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: email sender: %w", err)
	}
	mailer := notify.NewMailer(sender, bookingSvc, intakeSvc, cfg.PublicBaseURL, m, logger)

	worker := reminders.NewWorker(jobStore, intakeSvc, bookingSvc, mailer, reminders.WorkerConfig{
		PollInterval: cfg.ReminderPollInterval,
		Lease:        cfg.ReminderLease,
		MaxAttempts:  cfg.ReminderMaxAttempts,
	}, m, logger).WithPaymentExpirer(bookingSvc)

	var delivery events.DeliveryHandler = events.NewLogHandler(logger)
	if clients.SQS != nil && cfg.BookingEventsQueueURL != "" {
		delivery = events.NewSQSPublisher(clients.SQS, cfg.BookingEventsQueueURL)
	}
	deliverer := events.NewDeliverer(outbox, delivery, logger).
		WithInterval(cfg.OutboxInterval).
		WithBatchSize(int32(cfg.OutboxBatchSize))

	sqlDB := stdlib.OpenDBFromPool(clients.Pool)
	adminAuth := httpmiddleware.AdminJWT(cfg.AdminJWTSecret, auth.NewRoleStore(clients.Pool), cfg.AdminRole, logger)

	handler := router.New(&router.Config{
		Logger:             logger,
		Availability:       availability.NewHandler(availabilitySvc, logger),
		Bookings:           bookingHandler,
		Intake:             intake.NewHandler(intakeSvc, photos, cfg.PassportMaxBytes, logger),
		Payments:           payments.NewHandler(paymentSvc, logger),
		StripeWebhook:      webhook,
		Notify:             notify.NewHandler(mailer, logger),
		Reminders:          reminders.NewHandler(scheduler, bookingSvc, logger),
		AdminBookings:      handlers.NewAdminBookingsHandler(sqlDB, bookingSvc, logger),
		AdminAuth:          adminAuth,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PublicRateLimit:    cfg.PublicRateLimit,
		PublicRateBurst:    cfg.PublicRateBurst,
		Ping:               clients.Pool.Ping,
	})

	logger.Info("booking app wired",
		"email_provider", provider,
		"stripe_dry_run", dryRun,
		"pending_payment_ttl", cfg.PendingPaymentTTL.String(),
		"passport_storage", photos.Enabled(),
		"redis_cache", clients.Redis != nil,
		"events_queue", cfg.BookingEventsQueueURL != "" && clients.SQS != nil,
	)
	return &App{
		Handler:        handler,
		Deliverer:      deliverer,
		ReminderWorker: worker,
		EmailProvider:  provider,
		sqlDB:          sqlDB,
	}, nil
}

// StartWorkers runs the outbox deliverer and reminder worker until ctx is
// cancelled. The returned WaitGroup completes once both have stopped.
func (a *App) StartWorkers(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Deliverer.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		a.ReminderWorker.Start(ctx)
	}()
	return &wg
}

// Close releases the database/sql handle shared with the admin dashboard.
// The pgx pool belongs to the caller.
func (a *App) Close() error {
	if a.sqlDB == nil {
		return nil
	}
	return a.sqlDB.Close()
}
