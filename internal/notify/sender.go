package notify

import (
	"fmt"
	"strings"

	"github.com/wolfman30/medtour-booking/pkg/logging"
)

const (
	DefaultFromName  = "Guangzhou Executive Checkup"
	DefaultFromEmail = "onboarding@resend.dev"
)

// SenderConfig selects and configures the email provider.
type SenderConfig struct {
	// Provider is one of auto, resend, sendgrid, ses, smtp or stub.
	Provider       string
	FromEmail      string
	FromName       string
	SendGridAPIKey string
	ResendAPIKey   string
	ResendBaseURL  string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
}

// NewSender builds the configured EmailSender. With provider "auto" the first
// provider that has credentials wins, in the order resend, sendgrid, smtp,
// ses; the stub sender is used when none do.
func NewSender(cfg SenderConfig, ses SESAPI, logger *logging.Logger) (EmailSender, string, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = DefaultFromEmail
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}

	build := map[string]func() EmailSender{
		"resend": func() EmailSender {
			if s := NewResendSender(ResendConfig{APIKey: cfg.ResendAPIKey, BaseURL: cfg.ResendBaseURL, FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
				return s
			}
			return nil
		},
		"sendgrid": func() EmailSender {
			if s := NewSendGridSender(SendGridConfig{APIKey: cfg.SendGridAPIKey, FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
				return s
			}
			return nil
		},
		"smtp": func() EmailSender {
			if s := NewSMTPSender(SMTPConfig{Host: cfg.SMTPHost, Port: cfg.SMTPPort, Username: cfg.SMTPUsername, Password: cfg.SMTPPassword, FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
				return s
			}
			return nil
		},
		"ses": func() EmailSender {
			if s := NewSESSender(ses, SESConfig{FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
				return s
			}
			return nil
		},
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "auto":
		for _, name := range []string{"resend", "sendgrid", "smtp", "ses"} {
			if sender := build[name](); sender != nil {
				return sender, name, nil
			}
		}
		logger.Warn("no email provider configured; using stub sender")
		return NewStubEmailSender(logger), "stub", nil
	case "stub":
		return NewStubEmailSender(logger), "stub", nil
	}

	factory, ok := build[provider]
	if !ok {
		return nil, "", fmt.Errorf("notify: unknown email provider %q", cfg.Provider)
	}
	sender := factory()
	if sender == nil {
		return nil, "", fmt.Errorf("notify: email provider %q selected but not configured", provider)
	}
	return sender, provider, nil
}
