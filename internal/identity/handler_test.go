package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (chi.Router, *mockRepository) {
	repo := newMockRepository()
	r := chi.NewRouter()
	NewHandler(newTestService(repo, &mockAuthenticator{})).RegisterRoutes(r)
	return r, repo
}

func doJSON(t *testing.T, r http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	r, _ := newTestRouter()

	rec, body := doJSON(t, r, "/auth/register", `{"email":"A@X.com","password":"p1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "a@x.com", data["email"])
	assert.Equal(t, true, data["is_subscribed"])
	assert.Equal(t, []any{}, data["topics"])
	assert.NotEmpty(t, data["token"])
	assert.NotContains(t, data, "password_hash")

	rec, body = doJSON(t, r, "/auth/login", `{"email":"a@x.com","password":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["data"].(map[string]any)["token"])
}

func TestHandler_Errors(t *testing.T) {
	r, repo := newTestRouter()
	_, _ = doJSON(t, r, "/auth/register", `{"email":"a@x.com","password":"p1"}`)
	require.Len(t, repo.users, 1)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"duplicate email", "/auth/register", `{"email":"a@x.com","password":"p2"}`, http.StatusBadRequest, "user already exists"},
		{"wrong password", "/auth/login", `{"email":"a@x.com","password":"nope"}`, http.StatusUnauthorized, "invalid email or password"},
		{"unknown user", "/auth/login", `{"email":"b@x.com","password":"p1"}`, http.StatusUnauthorized, "invalid email or password"},
		{"invalid json", "/auth/register", `{`, http.StatusBadRequest, "invalid json"},
		{"missing password", "/auth/register", `{"email":"c@x.com"}`, http.StatusBadRequest, "validation error"},
		{"bad email", "/auth/login", `{"email":"nope","password":"p1"}`, http.StatusBadRequest, "validation error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doJSON(t, r, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, body["error"].(map[string]any)["message"])
		})
	}
}
