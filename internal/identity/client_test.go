package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(authority, resource string) config.IdentityConfig {
	return config.IdentityConfig{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "http://localhost:8080/auth/callback",
		AuthorityURL: authority,
		ResourceURL:  resource,
	}
}

func TestBuildAuthorizationURLGeneratesStateAndNonce(t *testing.T) {
	c := NewClient(testConfig("https://login.example.com/tenant-1", ""))

	authURL, state, nonce, err := c.BuildAuthorizationURL(nil, "", "")
	require.NoError(t, err)
	require.NotEmpty(t, state)
	require.NotEmpty(t, nonce)
	assert.NotEqual(t, state, nonce)

	// 32 bytes of entropy, URL-safe, no padding.
	raw, err := base64.RawURLEncoding.DecodeString(state)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, nonce, q.Get("nonce"))
	assert.Equal(t, "openid profile email offline_access", q.Get("scope"))
}

func TestBuildAuthorizationURLKeepsCallerState(t *testing.T) {
	c := NewClient(testConfig("https://login.example.com/tenant-1", ""))

	_, state, nonce, err := c.BuildAuthorizationURL([]string{"openid"}, "my-state", "my-nonce")
	require.NoError(t, err)
	assert.Equal(t, "my-state", state)
	assert.Equal(t, "my-nonce", nonce)
}

func TestBuildAuthorizationURLRejectsMalformedScope(t *testing.T) {
	c := NewClient(testConfig("https://login.example.com/tenant-1", ""))

	_, _, _, err := c.BuildAuthorizationURL([]string{"openid profile"}, "", "")
	assert.Error(t, err)

	_, _, _, err = c.BuildAuthorizationURL([]string{""}, "", "")
	assert.Error(t, err)
}

func TestExchangeCode(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/v2.0/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    1800,
			"token_type":    "Bearer",
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, ""), WithClock(clock.NewFixed(issued)))

	tokens, err := c.ExchangeCode(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "rt-1", tokens.RefreshToken)
	assert.Equal(t, 1800, tokens.ExpiresIn)
	assert.Equal(t, issued, tokens.IssuedAt)

	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "code-1", gotForm.Get("code"))
	assert.Equal(t, "secret-1", gotForm.Get("client_secret"))
}

func TestExchangeCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, ""))

	_, err := c.ExchangeCode(context.Background(), "used-code")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.Status)
	assert.Contains(t, authErr.Body, "invalid_grant")
}

func TestRefreshPreservesPriorRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Provider rotates nothing: no refresh_token in the response.
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-2",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, ""))

	tokens, err := c.Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-2", tokens.AccessToken)
	assert.Equal(t, "rt-old", tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
}

func TestRefreshUsesRotatedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-3",
			"refresh_token": "rt-new",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, ""))

	tokens, err := c.Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "rt-new", tokens.RefreshToken)
}

func TestDecodeIDToken(t *testing.T) {
	c := NewClient(testConfig("https://login.example.com/t", ""))

	payload, _ := json.Marshal(map[string]any{"name": "Ada", "oid": "user-1"})
	token := "eyJhbGciOiJub25lIn0." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"

	claims, err := c.DecodeIDToken(token)
	require.NoError(t, err)
	assert.Equal(t, "Ada", claims["name"])
	assert.Equal(t, "user-1", claims["oid"])
}

func TestDecodeIDTokenMalformed(t *testing.T) {
	c := NewClient(testConfig("https://login.example.com/t", ""))

	_, err := c.DecodeIDToken("only.two")
	assert.Error(t, err)

	_, err = c.DecodeIDToken("a.!!!.c")
	assert.Error(t, err)
}

func TestFetchProfileSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me", r.URL.Path)
		require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"displayName": "Ada"})
	}))
	defer srv.Close()

	c := NewClient(testConfig("https://login.example.com/t", srv.URL))

	profile, err := c.FetchProfile(context.Background(), "at-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile["displayName"])
}

func TestFetchCalendarWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, now.Format(time.RFC3339), q.Get("startDateTime"))
		require.Equal(t, now.Add(7*24*time.Hour).Format(time.RFC3339), q.Get("endDateTime"))
		json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{{"subject": "standup"}}})
	}))
	defer srv.Close()

	c := NewClient(testConfig("https://login.example.com/t", srv.URL), WithClock(clock.NewFixed(now)))

	events, err := c.FetchCalendar(context.Background(), "at-1", 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "standup", events[0]["subject"])
}

func TestGetResourceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("insufficient scope"))
	}))
	defer srv.Close()

	c := NewClient(testConfig("https://login.example.com/t", srv.URL))

	_, err := c.FetchMessages(context.Background(), "at-1", 5)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}
