package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string
	RunWorkers    bool

	// Booking
	BasePackageAmount    int
	Currency             string
	ProductName          string
	AvailabilityTTL      time.Duration
	PassportBucket       string
	PassportMaxBytes     int64
	CORSAllowedOrigins   []string
	PublicRateLimit      float64
	PublicRateBurst      int
	AdminJWTSecret       string
	AdminRole            string
	VerifyRedirectIntent bool

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeBaseURL       string
	StripeDryRun        bool

	// Email
	EmailProvider    string
	EmailFromAddress string
	EmailFromName    string
	SendGridAPIKey   string
	ResendAPIKey     string
	ResendBaseURL    string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string

	// Reminders and events
	IntakeReminderDelay   time.Duration
	PendingPaymentTTL     time.Duration
	ReminderPollInterval  time.Duration
	ReminderMaxAttempts   int
	ReminderLease         time.Duration
	OutboxInterval        time.Duration
	OutboxBatchSize       int
	BookingEventsQueueURL string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RunWorkers:    getEnvAsBool("RUN_WORKERS", false),

		BasePackageAmount:    getEnvAsInt("BASE_PACKAGE_AMOUNT", 520000),
		Currency:             strings.ToLower(getEnv("BOOKING_CURRENCY", "cny")),
		ProductName:          getEnv("PRODUCT_NAME", "Medical Checkup - Guangzhou"),
		AvailabilityTTL:      getEnvAsDuration("AVAILABILITY_CACHE_TTL", 30*time.Second),
		PassportBucket:       getEnv("PASSPORT_BUCKET", ""),
		PassportMaxBytes:     int64(getEnvAsInt("PASSPORT_MAX_BYTES", 5*1024*1024)),
		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		PublicRateLimit:      getEnvAsFloat("PUBLIC_RATE_LIMIT", 5),
		PublicRateBurst:      getEnvAsInt("PUBLIC_RATE_BURST", 20),
		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
		AdminRole:            getEnv("ADMIN_ROLE", "admin"),
		VerifyRedirectIntent: getEnvAsBool("STRIPE_VERIFY_REDIRECT", false),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeBaseURL:       getEnv("STRIPE_BASE_URL", ""),
		StripeDryRun:        getEnvAsBool("STRIPE_DRY_RUN", false),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", "onboarding@resend.dev"),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Guangzhou Executive Checkup"),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		ResendAPIKey:     getEnv("RESEND_API_KEY", ""),
		ResendBaseURL:    getEnv("RESEND_BASE_URL", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),

		IntakeReminderDelay:   getEnvAsDuration("INTAKE_REMINDER_DELAY", 5*time.Minute),
		PendingPaymentTTL:     getEnvAsDuration("PENDING_PAYMENT_TTL", 40*time.Minute),
		ReminderPollInterval:  getEnvAsDuration("REMINDER_POLL_INTERVAL", 15*time.Second),
		ReminderMaxAttempts:   getEnvAsInt("REMINDER_MAX_ATTEMPTS", 3),
		ReminderLease:         getEnvAsDuration("REMINDER_LEASE", 2*time.Minute),
		OutboxInterval:        getEnvAsDuration("OUTBOX_INTERVAL", 5*time.Second),
		OutboxBatchSize:       getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
		BookingEventsQueueURL: getEnv("BOOKING_EVENTS_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "ap-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
