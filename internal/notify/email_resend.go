package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/medtour-booking/pkg/logging"
)

// ResendSender sends emails through the Resend REST API.
type ResendSender struct {
	apiKey     string
	baseURL    string
	fromEmail  string
	fromName   string
	httpClient *http.Client
	logger     *logging.Logger
}

// ResendConfig holds configuration for Resend.
type ResendConfig struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
}

// NewResendSender returns nil when no API key is configured.
func NewResendSender(cfg ResendConfig, logger *logging.Logger) *ResendSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.resend.com"
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &ResendSender{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send posts the message to /emails and returns Resend's email id.
func (s *ResendSender) Send(ctx context.Context, msg EmailMessage) (string, error) {
	payload, err := json.Marshal(resendRequest{
		From:    formatAddress(s.fromName, s.fromEmail),
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Body,
	})
	if err != nil {
		return "", fmt.Errorf("notify: resend encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("notify: resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("resend send failed", "error", err, "to", msg.To)
		return "", fmt.Errorf("notify: resend http: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var parsed resendResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode >= http.StatusMultipleChoices {
		reason := parsed.Message
		if reason == "" {
			reason = "Failed to send email"
		}
		s.logger.Error("resend returned error status", "status", resp.StatusCode, "message", reason, "to", msg.To)
		return "", fmt.Errorf("%w: %s", ErrProviderRejected, reason)
	}

	s.logger.Info("email sent via resend", "to", msg.To, "subject", msg.Subject, "message_id", parsed.ID)
	return parsed.ID, nil
}

var _ EmailSender = (*ResendSender)(nil)
