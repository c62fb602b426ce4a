// Package brevo delivers digests through the Brevo transactional email API.
package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/news-digest/internal/digest"
	"github.com/bissquit/news-digest/internal/pkg/secret"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://api.brevo.com/v3"
	defaultRateLimit = 5.0
	maxErrorBody     = 4 << 10
)

// Config holds Brevo sender configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	FromName    string
	FromAddress string
	Timeout     time.Duration
	RateLimit   float64
}

// Sender implements digest.Sender over the Brevo HTTP API.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	endpoint   string
}

// NewSender creates a Brevo sender. The API key must not be a placeholder.
func NewSender(config Config) (*Sender, error) {
	if !secret.IsConfigured(config.APIKey) {
		return nil, errors.New("brevo sender: api key is required")
	}
	if config.FromAddress == "" {
		return nil, errors.New("brevo sender: from address is required")
	}

	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	slog.Info("brevo sender configured",
		"base_url", config.BaseURL,
		"from_address", config.FromAddress,
		"rate_limit", config.RateLimit,
	)

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		endpoint:   strings.TrimRight(config.BaseURL, "/") + "/smtp/email",
	}, nil
}

// Name returns the provider name.
func (s *Sender) Name() string {
	return "brevo"
}

type contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type sendEmailRequest struct {
	Sender      contact   `json:"sender"`
	To          []contact `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-2xx response from Brevo.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("brevo api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("brevo api error %d: %s", e.StatusCode, e.Message)
}

// Send posts one transactional email.
func (s *Sender) Send(ctx context.Context, msg digest.Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(sendEmailRequest{
		Sender:      contact{Name: s.config.FromName, Email: s.config.FromAddress},
		To:          []contact{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return parseError(resp)
}

func parseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Message != "" {
		apiErr.Code = er.Code
		apiErr.Message = er.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
