package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	EchoURL    string
	BaseURL    string
	Timeout    time.Duration
}

// TwilioCaller places text-to-speech calls through the Twilio REST API.
type TwilioCaller struct {
	client     *resty.Client
	accountSID string
	fromNumber string
	echoURL    string
	enabled    bool
}

func NewTwilioCaller(cfg TwilioConfig) *TwilioCaller {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if strings.TrimSpace(cfg.EchoURL) == "" {
		cfg.EchoURL = "http://demo.twimlet.com/echo"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(strings.TrimSpace(cfg.AccountSID), strings.TrimSpace(cfg.AuthToken))

	return &TwilioCaller{
		client:     client,
		accountSID: strings.TrimSpace(cfg.AccountSID),
		fromNumber: strings.TrimSpace(cfg.FromNumber),
		echoURL:    cfg.EchoURL,
		enabled: strings.TrimSpace(cfg.AccountSID) != "" &&
			strings.TrimSpace(cfg.AuthToken) != "" &&
			strings.TrimSpace(cfg.FromNumber) != "",
	}
}

type twilioCallResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *TwilioCaller) Call(ctx context.Context, call VoiceCall) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("%w: twilio credentials or caller number missing", ErrNotConfigured)
	}

	var (
		result  twilioCallResponse
		failure twilioErrorResponse
	)
	response, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   call.To,
			"From": c.fromNumber,
			"Url":  EchoTwimlURL(c.echoURL, call.Message),
		}).
		SetResult(&result).
		SetError(&failure).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Calls.json", c.accountSID))
	if err != nil {
		return "", fmt.Errorf("twilio request: %w", err)
	}
	if response.IsError() {
		if failure.Message != "" {
			return "", fmt.Errorf("twilio status %d code %d: %s", response.StatusCode(), failure.Code, failure.Message)
		}
		return "", fmt.Errorf("twilio status %d: %s", response.StatusCode(), truncate(response.String(), 500))
	}
	return result.SID, nil
}
