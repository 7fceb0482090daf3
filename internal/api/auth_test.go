package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverbeek/lecturecast/internal/auth"
	"github.com/dverbeek/lecturecast/internal/model"
)

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSignup(t *testing.T) {
	accounts := newFakeAccounts()
	env := newTestEnv(t, accounts, nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name":     "Ada Lovelace",
		"email":    "Ada@Example.com",
		"password": "secret123",
	}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	decodeJSON(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Ada Lovelace", resp.User["name"])
	assert.Equal(t, "ada@example.com", resp.User["email"])
	assert.Equal(t, "AL", resp.User["initials"])

	claims, err := auth.ParseToken(resp.Token, env.cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.User["id"], claims.UserID)
}

func TestSignupDuplicateEmail(t *testing.T) {
	accounts := newFakeAccounts(testAccount())
	env := newTestEnv(t, accounts, nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name":     "Another Ada",
		"email":    "ADA@example.com",
		"password": "secret123",
	}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "User already exists with this email", resp["error"])
	assert.Len(t, accounts.byID, 1)
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t, newFakeAccounts(), nil)

	cases := []map[string]string{
		{"name": "", "email": "a@b.c", "password": "secret123"},
		{"name": "Ada", "email": "", "password": "secret123"},
		{"name": "Ada", "email": "a@b.c", "password": ""},
		{"name": "Ada", "email": "a@b.c", "password": "short"},
	}
	for _, payload := range cases {
		rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/signup", payload))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestSignupWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"name": "Ada", "email": "a@b.c", "password": "secret123",
	}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogin(t *testing.T) {
	acc := testAccount()
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	acc.PasswordHash = hash
	env := newTestEnv(t, newFakeAccounts(acc), nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "ada@example.com", "password": "secret123",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	decodeJSON(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, acc.ID, resp.User["id"])
}

func TestLoginWrongPassword(t *testing.T) {
	acc := testAccount()
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	acc.PasswordHash = hash
	env := newTestEnv(t, newFakeAccounts(acc), nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "ada@example.com", "password": "wrong",
	}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]string
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "Invalid email or password", resp["error"])
}

func TestLoginUnknownEmail(t *testing.T) {
	env := newTestEnv(t, newFakeAccounts(), nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "ghost@example.com", "password": "whatever",
	}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRememberMeExtendsToken(t *testing.T) {
	acc := testAccount()
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	acc.PasswordHash = hash
	env := newTestEnv(t, newFakeAccounts(acc), nil)

	login := func(remember bool) time.Time {
		rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]any{
			"email": "ada@example.com", "password": "secret123", "rememberMe": remember,
		}))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Token string `json:"token"`
		}
		decodeJSON(t, rec, &resp)
		claims, err := auth.ParseToken(resp.Token, env.cfg.JWTSecret)
		require.NoError(t, err)
		return claims.ExpiresAt.Time
	}

	short := login(false)
	long := login(true)
	assert.True(t, long.After(short))
	// 30 days vs 7 days, give or take test runtime.
	assert.InDelta(t, (23 * 24 * time.Hour).Seconds(), long.Sub(short).Seconds(), 60)
}

func TestMe(t *testing.T) {
	acc := testAccount()
	acc.UploadHistory = []model.UploadHistoryEntry{{OriginalName: "lecture1.mp4", Status: model.HistoryCompleted}}
	env := newTestEnv(t, newFakeAccounts(acc), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, env, acc))
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		User struct {
			ID            string                     `json:"id"`
			UploadHistory []model.UploadHistoryEntry `json:"uploadHistory"`
		} `json:"user"`
	}
	decodeJSON(t, rec, &resp)
	assert.Equal(t, acc.ID, resp.User.ID)
	require.Len(t, resp.User.UploadHistory, 1)
	assert.Equal(t, "lecture1.mp4", resp.User.UploadHistory[0].OriginalName)
}

func TestMeMissingToken(t *testing.T) {
	env := newTestEnv(t, newFakeAccounts(), nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "uploadHistory")
}

func TestMeInvalidToken(t *testing.T) {
	env := newTestEnv(t, newFakeAccounts(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := env.do(t, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMeExpiredToken(t *testing.T) {
	acc := testAccount()
	env := newTestEnv(t, newFakeAccounts(acc), nil)

	token, err := auth.GenerateToken(acc.ID, acc.Email, env.cfg.JWTSecret, -time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(t, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), acc.Email)
}

func TestProfileUpdate(t *testing.T) {
	acc := testAccount()
	accounts := newFakeAccounts(acc)
	env := newTestEnv(t, accounts, nil)

	req := jsonRequest(t, http.MethodPut, "/api/auth/profile", map[string]any{
		"name": "Ada K. Lovelace",
		"preferences": map[string]any{
			"modelSize":    "large-v3",
			"geminiApiKey": "key-123",
		},
	})
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, env, acc))
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	saved := accounts.byID[acc.ID]
	assert.Equal(t, "Ada K. Lovelace", saved.Name)
	assert.Equal(t, model.ModelLargeV3, saved.Preferences.ModelSize)
	require.NotNil(t, saved.Preferences.GeminiAPIKey)
	assert.Equal(t, "key-123", *saved.Preferences.GeminiAPIKey)
}

func TestProfileInvalidModelSize(t *testing.T) {
	acc := testAccount()
	env := newTestEnv(t, newFakeAccounts(acc), nil)

	req := jsonRequest(t, http.MethodPut, "/api/auth/profile", map[string]any{
		"preferences": map[string]any{"modelSize": "colossal"},
	})
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, env, acc))
	rec := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatEcho(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/chat", map[string]string{"message": "hello"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decodeJSON(t, rec, &resp)
	assert.Contains(t, resp["message"], `"hello"`)
	assert.NotEmpty(t, resp["timestamp"])
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, newFakeAccounts(), nil)
	env.cfg.DatabaseURL = "postgres://localhost/lecturecast"

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status   string `json:"status"`
		Port     int    `json:"port"`
		Database struct {
			Connected  bool `json:"connected"`
			URIPresent bool `json:"uriPresent"`
		} `json:"database"`
	}
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3000, resp.Port)
	assert.True(t, resp.Database.Connected)
	assert.True(t, resp.Database.URIPresent)
}

func TestHealthWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Database struct {
			Connected  bool `json:"connected"`
			URIPresent bool `json:"uriPresent"`
		} `json:"database"`
	}
	decodeJSON(t, rec, &resp)
	assert.False(t, resp.Database.Connected)
	assert.False(t, resp.Database.URIPresent)
}

func TestMetricsEmpty(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 0, resp["total"])
	assert.Equal(t, 0, resp["processed"])
	assert.Equal(t, 0, resp["skipped"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, httptest.NewRequest(http.MethodOptions, "/api/summarize", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
