package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/pkg/clock"
	"github.com/TradeGateHQ/tradegate/internal/pkg/metrics"
)

// DefaultScopes are requested when the caller does not name any.
var DefaultScopes = []string{"openid", "profile", "email", "offline_access"}

const exchangeScope = "https://graph.microsoft.com/.default offline_access"

// stateEntropyBytes feeds the URL-safe state/nonce generator. 32 bytes
// matches the provider-side recommendation for CSRF tokens.
const stateEntropyBytes = 32

// Client drives the authorization-code flow against a redirect-based
// identity provider and reads its resource API with bearer tokens.
type Client struct {
	tenantID     string
	clientID     string
	clientSecret string
	redirectURI  string
	authorityURL string
	resourceURL  string
	httpClient   *http.Client
	clk          clock.Clock
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clk = clk }
}

func NewClient(cfg config.IdentityConfig, opts ...Option) *Client {
	authority := cfg.AuthorityURL
	if authority == "" {
		authority = "https://login.microsoftonline.com/" + cfg.TenantID
	}
	c := &Client{
		tenantID:     cfg.TenantID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		authorityURL: strings.TrimSuffix(authority, "/"),
		resourceURL:  strings.TrimSuffix(cfg.ResourceURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: 10 * time.Second,
		},
		clk: clock.System(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) tokenEndpoint() string     { return c.authorityURL + "/oauth2/v2.0/token" }
func (c *Client) authorizeEndpoint() string { return c.authorityURL + "/oauth2/v2.0/authorize" }

// BuildAuthorizationURL builds the provider redirect URL. When state or
// nonce are empty, cryptographically random URL-safe values are generated
// so that the callback can be bound to the session that initiated it.
func (c *Client) BuildAuthorizationURL(scopes []string, state, nonce string) (authURL, outState, outNonce string, err error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	for _, s := range scopes {
		if s == "" || strings.ContainsAny(s, " \t\n") {
			return "", "", "", fmt.Errorf("malformed scope %q", s)
		}
	}
	if state == "" {
		state, err = randomToken()
		if err != nil {
			return "", "", "", err
		}
	}
	if nonce == "" {
		nonce, err = randomToken()
		if err != nil {
			return "", "", "", err
		}
	}

	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(scopes, " "))
	params.Set("state", state)
	params.Set("nonce", nonce)
	params.Set("prompt", "select_account")

	return c.authorizeEndpoint() + "?" + params.Encode(), state, nonce, nil
}

// ExchangeCode trades an authorization code for tokens. Codes are
// single-use; a rejection is surfaced as *AuthError and never retried here.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", exchangeScope)
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)
	form.Set("grant_type", "authorization_code")

	ts, err := c.postTokenForm(ctx, "exchange_code", form)
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// Refresh trades a refresh token for a new TokenSet. Providers do not
// always rotate refresh tokens; the prior one is preserved when the
// response omits a new one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	form.Set("scope", exchangeScope)

	ts, err := c.postTokenForm(ctx, "refresh", form)
	if err != nil {
		return nil, err
	}
	if ts.RefreshToken == "" {
		ts.RefreshToken = refreshToken
	}
	return ts, nil
}

func (c *Client) postTokenForm(ctx context.Context, operation string, form url.Values) (*TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IdentityRequests.WithLabelValues(operation, "transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		metrics.IdentityRequests.WithLabelValues(operation, "rejected").Inc()
		return nil, &AuthError{Operation: operation, Status: resp.StatusCode, Body: string(body)}
	}
	metrics.IdentityRequests.WithLabelValues(operation, "ok").Inc()

	var wire struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
		ExpiresIn    int    `json:"expires_in"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("malformed token response: %w", err)
	}
	if wire.ExpiresIn <= 0 {
		wire.ExpiresIn = 3600
	}
	if wire.TokenType == "" {
		wire.TokenType = "Bearer"
	}
	return &TokenSet{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		IDToken:      wire.IDToken,
		ExpiresIn:    wire.ExpiresIn,
		TokenType:    wire.TokenType,
		Scope:        wire.Scope,
		IssuedAt:     c.clk.Now(),
	}, nil
}

// DecodeIDToken parses the claims segment of a JWT without verifying its
// signature. Claims are unauthenticated hints: callers that act on them
// must verify the token against the provider's published signing keys
// themselves.
func (c *Client) DecodeIDToken(idToken string) (map[string]any, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed id token: expected 3 segments, got %d", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed id token payload: %w", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("malformed id token claims: %w", err)
	}
	return claims, nil
}

// FetchProfile reads the authenticated user's profile from the resource API.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (map[string]any, error) {
	body, err := c.getResource(ctx, "/me", accessToken)
	if err != nil {
		return nil, err
	}
	var profile map[string]any
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("malformed profile response: %w", err)
	}
	return profile, nil
}

// FetchCalendar reads calendar events from now until now+window.
func (c *Client) FetchCalendar(ctx context.Context, accessToken string, window time.Duration) ([]map[string]any, error) {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	now := c.clk.Now().UTC()
	params := url.Values{}
	params.Set("startDateTime", now.Format(time.RFC3339))
	params.Set("endDateTime", now.Add(window).Format(time.RFC3339))

	body, err := c.getResource(ctx, "/me/calendarview?"+params.Encode(), accessToken)
	if err != nil {
		return nil, err
	}
	return decodeValueList(body)
}

// FetchMessages reads the most recent messages, capped at limit.
func (c *Client) FetchMessages(ctx context.Context, accessToken string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}
	body, err := c.getResource(ctx, fmt.Sprintf("/me/messages?$top=%d", limit), accessToken)
	if err != nil {
		return nil, err
	}
	return decodeValueList(body)
}

func (c *Client) getResource(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IdentityRequests.WithLabelValues("resource", "transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IdentityRequests.WithLabelValues("resource", "rejected").Inc()
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	metrics.IdentityRequests.WithLabelValues("resource", "ok").Inc()
	return body, nil
}

func decodeValueList(body []byte) ([]map[string]any, error) {
	var wire struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("malformed list response: %w", err)
	}
	return wire.Value, nil
}

func randomToken() (string, error) {
	buf := make([]byte, stateEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("entropy source failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
