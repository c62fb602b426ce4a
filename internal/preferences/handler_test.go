package preferences

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/news-digest/internal/domain"
	"github.com/bissquit/news-digest/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router  chi.Router
	repo    *mockRepository
	fetcher *mockFetcher
	digests *mockDigests
}

func newTestEnv(user *domain.User) *testEnv {
	env := &testEnv{
		repo:    newMockRepository(user),
		fetcher: &mockFetcher{},
		digests: &mockDigests{},
	}
	env.router = chi.NewRouter()
	NewHandler(NewService(env.repo, env.fetcher, env.digests)).RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(context.WithValue(req.Context(), httputil.UserIDKey, testUserID))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestHandler_Get(t *testing.T) {
	env := newTestEnv(newUser([]string{"AI"}, true))

	status, body := env.do(t, http.MethodGet, "/preferences", "")

	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "a@x.com", data["email"])
	assert.Equal(t, []any{"AI"}, data["topics"])
	assert.Equal(t, true, data["is_subscribed"])
	assert.NotContains(t, data, "password_hash")
}

func TestHandler_UpdateTopics(t *testing.T) {
	env := newTestEnv(newUser([]string{}, true))

	status, body := env.do(t, http.MethodPut, "/preferences/topics", `{"topics":["AI"]}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"AI"}, body["data"].(map[string]any)["topics"])

	status, body = env.do(t, http.MethodPut, "/preferences/topics", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation error", body["error"].(map[string]any)["message"])

	status, _ = env.do(t, http.MethodPut, "/preferences/topics", `{"topics":[]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, env.repo.users[testUserID].Topics)
}

func TestHandler_UpdateSubscription(t *testing.T) {
	env := newTestEnv(newUser([]string{"AI"}, true))

	status, body := env.do(t, http.MethodPut, "/preferences/subscribe", `{"is_subscribed":false}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["data"].(map[string]any)["is_subscribed"])

	status, _ = env.do(t, http.MethodPut, "/preferences/subscribe", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPut, "/preferences/subscribe", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandler_ManualDigest(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		wantStatus int
		wantMsg    string
	}{
		{"sent", newUser([]string{"AI"}, true), http.StatusOK, "Digest sent successfully"},
		{"unsubscribed", newUser([]string{"AI"}, false), http.StatusBadRequest, "subscription is disabled"},
		{"no topics", newUser([]string{}, true), http.StatusBadRequest, "no topics selected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.user)

			status, body := env.do(t, http.MethodPost, "/preferences/manual-digest", "")

			assert.Equal(t, tt.wantStatus, status)
			if status == http.StatusOK {
				assert.Equal(t, tt.wantMsg, body["data"].(map[string]any)["message"])
			} else {
				assert.Equal(t, tt.wantMsg, body["error"].(map[string]any)["message"])
			}
		})
	}
}

func TestHandler_News(t *testing.T) {
	env := newTestEnv(newUser([]string{"AI", "Space"}, true))

	tests := []struct {
		query    string
		wantPage int
	}{
		{"", 1},
		{"?page=2", 2},
		{"?page=abc", 1},
		{"?page=-4", 1},
	}

	for _, tt := range tests {
		t.Run("page"+tt.query, func(t *testing.T) {
			status, body := env.do(t, http.MethodGet, "/preferences/news"+tt.query, "")

			require.Equal(t, http.StatusOK, status)
			assert.Len(t, body["data"], 2)
			assert.Equal(t, tt.wantPage, env.fetcher.lastPage)
		})
	}
}

func TestHandler_UnknownUser(t *testing.T) {
	env := newTestEnv(&domain.User{ID: "someone-else"})

	status, body := env.do(t, http.MethodGet, "/preferences", "")

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "user not found", body["error"].(map[string]any)["message"])
}
