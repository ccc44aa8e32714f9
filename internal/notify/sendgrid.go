package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	BaseURL   string
	Timeout   time.Duration
}

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	client    *resty.Client
	fromEmail string
	enabled   bool
}

func NewSendGridMailer(cfg SendGridConfig) *SendGridMailer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(strings.TrimSpace(cfg.APIKey)).
		SetHeader("Content-Type", "application/json")

	return &SendGridMailer{
		client:    client,
		fromEmail: strings.TrimSpace(cfg.FromEmail),
		enabled:   strings.TrimSpace(cfg.APIKey) != "" && strings.TrimSpace(cfg.FromEmail) != "",
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridMessage struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

func (m *SendGridMailer) Send(ctx context.Context, email Email) error {
	if !m.enabled {
		return fmt.Errorf("%w: sendgrid api key or sender missing", ErrNotConfigured)
	}

	message := sendGridMessage{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: email.To}}}},
		From:             sendGridAddress{Email: m.fromEmail},
		Subject:          email.Subject,
		Content:          []sendGridContent{{Type: "text/html", Value: email.HTML}},
	}

	response, err := m.client.R().
		SetContext(ctx).
		SetBody(message).
		Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if response.IsError() {
		return fmt.Errorf("sendgrid status %d: %s", response.StatusCode(), truncate(response.String(), 500))
	}
	return nil
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) > limit {
		return value[:limit]
	}
	return value
}
