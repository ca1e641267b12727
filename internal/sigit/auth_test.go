package sigit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banktl/atmwatch/internal/config"
)

func testVendorConfig(baseURL string) config.VendorConfig {
	return config.VendorConfig{
		BaseURL:        baseURL,
		Username:       "primary",
		Password:       "primary-pass",
		FallbackUser:   "fallback",
		FallbackPass:   "fallback-pass",
		ConnectTimeout: time.Second,
		ReadTimeout:    2 * time.Second,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		PingTimeout:    time.Second,
		UserAgent:      "atmwatch-test",
	}
}

func TestExtractToken_ThreeLocations(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		token    string
		location string
	}{
		{
			name:     "top_level_user_token",
			raw:      `{"user_token": "tok-a"}`,
			token:    "tok-a",
			location: "user_token",
		},
		{
			name:     "top_level_token",
			raw:      `{"token": "tok-b"}`,
			token:    "tok-b",
			location: "token",
		},
		{
			name:     "header_user_token",
			raw:      `{"header": {"user_token": "tok-c"}}`,
			token:    "tok-c",
			location: "header.user_token",
		},
		{
			name:     "user_token_wins_over_header",
			raw:      `{"user_token": "tok-a", "header": {"user_token": "tok-c"}}`,
			token:    "tok-a",
			location: "user_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, location, err := extractToken([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.token, token)
			assert.Equal(t, tt.location, location)
		})
	}
}

func TestExtractToken_Missing(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"user_token": ""}`,
		`{"header": {}}`,
		`not json`,
	} {
		_, _, err := extractToken([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestLogin_PrimarySucceeds(t *testing.T) {
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sigit/user/login", r.URL.Path)
		require.Equal(t, "EN", r.URL.Query().Get("language"))

		var payload struct {
			Header struct {
				LoggedUser string `json:"logged_user"`
				Password   string `json:"password"`
			} `json:"header"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotUser = payload.Header.LoggedUser

		json.NewEncoder(w).Encode(map[string]string{"user_token": "tok-primary"})
	}))
	defer srv.Close()

	session := NewSession(testVendorConfig(srv.URL))
	auth := NewAuthManager(session, testVendorConfig(srv.URL))

	require.NoError(t, auth.Login(context.Background()))
	assert.Equal(t, "primary", gotUser)
	assert.Equal(t, "tok-primary", session.Token())
	assert.Equal(t, "primary", session.LoggedUser())
	assert.False(t, auth.UsedFallback())
}

func TestLogin_FallbackAfterPrimaryRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Header struct {
				LoggedUser string `json:"logged_user"`
			} `json:"header"`
		}
		json.NewDecoder(r.Body).Decode(&payload)

		if payload.Header.LoggedUser == "primary" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-fallback"})
	}))
	defer srv.Close()

	session := NewSession(testVendorConfig(srv.URL))
	auth := NewAuthManager(session, testVendorConfig(srv.URL))

	require.NoError(t, auth.Login(context.Background()))
	assert.Equal(t, "tok-fallback", session.Token())
	assert.Equal(t, "fallback", session.LoggedUser())
	assert.True(t, auth.UsedFallback())
}

func TestLogin_BothRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	session := NewSession(testVendorConfig(srv.URL))
	auth := NewAuthManager(session, testVendorConfig(srv.URL))

	err := auth.Login(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Empty(t, session.Token())
}

func TestRefresh_ReusesLastWorkingPair(t *testing.T) {
	logins := []string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Header struct {
				LoggedUser string `json:"logged_user"`
			} `json:"header"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		logins = append(logins, payload.Header.LoggedUser)

		if payload.Header.LoggedUser == "primary" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"user_token": "tok-refreshed"})
	}))
	defer srv.Close()

	session := NewSession(testVendorConfig(srv.URL))
	auth := NewAuthManager(session, testVendorConfig(srv.URL))

	require.NoError(t, auth.Login(context.Background()))
	require.NoError(t, auth.Refresh(context.Background()))

	// The refresh goes straight to the fallback pair, not back through
	// the rejected primary.
	assert.Equal(t, []string{"primary", "fallback", "fallback"}, logins)
}

func TestLogout_ClearsTokenEvenOnVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sigit/user/login" {
			json.NewEncoder(w).Encode(map[string]string{"user_token": "tok-1"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	session := NewSession(testVendorConfig(srv.URL))
	auth := NewAuthManager(session, testVendorConfig(srv.URL))

	require.NoError(t, auth.Login(context.Background()))
	require.NotEmpty(t, session.Token())

	auth.Logout(context.Background())
	assert.Empty(t, session.Token())
}

func TestLogout_NoTokenIsNoop(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer srv.Close()

	session := NewSession(testVendorConfig(srv.URL))
	auth := NewAuthManager(session, testVendorConfig(srv.URL))

	auth.Logout(context.Background())
	assert.Zero(t, calls)
}
