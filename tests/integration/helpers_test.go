//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bissquit/news-digest/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testCronSecret = "test-cron-secret"

type userEnvelope struct {
	Data struct {
		ID               string     `json:"id"`
		Email            string     `json:"email"`
		Topics           []string   `json:"topics"`
		IsSubscribed     bool       `json:"is_subscribed"`
		LastDigestSentAt *time.Time `json:"last_digest_sent_at"`
	} `json:"data"`
}

type articlesEnvelope struct {
	Data []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		ImageURL    string `json:"image_url"`
	} `json:"data"`
}

type messageEnvelope struct {
	Data struct {
		Message string `json:"message"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// setTopics replaces the user's topics and returns the stored list.
func setTopics(t *testing.T, client *testutil.Client, topics ...string) []string {
	t.Helper()
	if topics == nil {
		topics = []string{}
	}

	resp, err := client.PUT("/api/preferences/topics", map[string]interface{}{"topics": topics})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result userEnvelope
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Topics
}

// setSubscribed toggles the daily digest.
func setSubscribed(t *testing.T, client *testutil.Client, subscribed bool) {
	t.Helper()

	resp, err := client.PUT("/api/preferences/subscribe", map[string]bool{"is_subscribed": subscribed})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

// lastDigestSentAt reads the delivery timestamp straight from the database.
func lastDigestSentAt(t *testing.T, email string) *time.Time {
	t.Helper()

	var sentAt *time.Time
	err := testDB.QueryRow(context.Background(),
		`SELECT last_digest_sent_at FROM users WHERE email = $1`, email,
	).Scan(&sentAt)
	require.NoError(t, err)
	return sentAt
}

// triggerCron calls GET /api/cron with the configured secret.
func triggerCron(t *testing.T) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, testServer.URL+"/api/cron", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}
