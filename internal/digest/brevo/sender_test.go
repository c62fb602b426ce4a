package brevo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/news-digest/internal/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewSender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "missing api key",
			config:  Config{FromAddress: "digest@example.com"},
			wantErr: "api key is required",
		},
		{
			name:    "placeholder api key",
			config:  Config{APIKey: "your_brevo_api_key", FromAddress: "digest@example.com"},
			wantErr: "api key is required",
		},
		{
			name:    "missing from address",
			config:  Config{APIKey: "xkeysib-123"},
			wantErr: "from address is required",
		},
		{
			name:   "valid config",
			config: Config{APIKey: "xkeysib-123", FromAddress: "digest@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, sender)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, sender)
			}
		})
	}
}

func TestNewSender_Defaults(t *testing.T) {
	sender, err := NewSender(Config{APIKey: "xkeysib-123", FromAddress: "digest@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "https://api.brevo.com/v3/smtp/email", sender.endpoint)
	assert.Equal(t, 10*time.Second, sender.httpClient.Timeout)
	assert.Equal(t, rate.Limit(defaultRateLimit), sender.limiter.Limit())
	assert.Equal(t, "brevo", sender.Name())
}

func newTestSender(serverURL string) *Sender {
	return &Sender{
		config: Config{
			APIKey:      "xkeysib-test",
			FromName:    "News Digest",
			FromAddress: "no-reply@news-digest.app",
		},
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		endpoint:   serverURL + "/smtp/email",
	}
}

func TestSender_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/smtp/email", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "xkeysib-test", r.Header.Get("api-key"))

		var req sendEmailRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, contact{Name: "News Digest", Email: "no-reply@news-digest.app"}, req.Sender)
		assert.Equal(t, []contact{{Email: "reader@example.com"}}, req.To)
		assert.Equal(t, "Your Daily News Digest - March 10, 2026", req.Subject)
		assert.Equal(t, "<h1>Hi</h1>", req.HTMLContent)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<abc@smtp-relay.mailin.fr>"}`))
	}))
	defer server.Close()

	err := newTestSender(server.URL).Send(context.Background(), digest.Message{
		To:      "reader@example.com",
		Subject: "Your Daily News Digest - March 10, 2026",
		HTML:    "<h1>Hi</h1>",
	})
	assert.NoError(t, err)
}

func TestSender_Send_APIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{
			name:     "unauthorized json",
			status:   http.StatusUnauthorized,
			body:     `{"code":"unauthorized","message":"Key not found"}`,
			wantCode: "unauthorized",
			wantMsg:  "Key not found",
		},
		{
			name:    "plain text body",
			status:  http.StatusBadGateway,
			body:    "upstream unavailable",
			wantMsg: "upstream unavailable",
		},
		{
			name:    "empty body",
			status:  http.StatusTooManyRequests,
			wantMsg: "Too Many Requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := newTestSender(server.URL).Send(context.Background(), digest.Message{To: "reader@example.com"})

			require.Error(t, err)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestSender_Send_CancelledContext(t *testing.T) {
	sender := newTestSender("http://127.0.0.1:0")
	sender.limiter = rate.NewLimiter(rate.Limit(0.001), 1)
	sender.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, digest.Message{To: "reader@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
