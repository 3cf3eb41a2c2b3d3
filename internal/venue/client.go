package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/pkg/clock"
	"github.com/TradeGateHQ/tradegate/internal/pkg/metrics"
)

// Client issues signed requests against the venue REST API and translates
// responses into typed records. All operations are single-shot: a failure
// is surfaced as *APIError and retry policy stays with the caller.
type Client struct {
	baseURL    string
	creds      *CredentialSet
	signer     *Signer
	httpClient *http.Client
	clk        clock.Clock
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clk = clk }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

func NewClient(cfg config.VenueConfig, opts ...Option) (*Client, error) {
	creds, err := NewCredentialSet(cfg)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if cfg.SandboxMode {
		baseURL = cfg.SandboxBaseURL
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		creds:   creds,
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
	c.signer = NewSigner(creds, c.clk)
	return c, nil
}

// Credentials exposes the resolved credential set (for status reporting).
func (c *Client) Credentials() *CredentialSet { return c.creds }

// do signs and sends one request. The signature covers the path with its
// query string, exactly as transmitted.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = string(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	for k, v := range c.signer.Headers(method, path, body) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.VenueRequests.WithLabelValues(method, "transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	metrics.VenueRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// ListAccounts returns all venue accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/accounts", nil)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Accounts []Account `json:"accounts"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("malformed accounts response: %w", err)
	}
	return wire.Accounts, nil
}

// GetAccount returns one account by id.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(accountID), nil)
	if err != nil {
		return nil, err
	}
	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("malformed account response: %w", err)
	}
	return &account, nil
}

// ListProducts returns all tradable pairs.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/products", nil)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Products []Product `json:"products"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("malformed products response: %w", err)
	}
	for i := range wire.Products {
		wire.Products[i].normalize()
	}
	return wire.Products, nil
}

// GetProduct returns one pair by id.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(productID), nil)
	if err != nil {
		return nil, err
	}
	var product Product
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("malformed product response: %w", err)
	}
	product.normalize()
	return &product, nil
}

// GetTicker returns the current ticker for a product.
func (c *Client) GetTicker(ctx context.Context, productID string) (*Ticker, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(productID)+"/ticker", nil)
	if err != nil {
		return nil, err
	}
	var ticker Ticker
	if err := json.Unmarshal(body, &ticker); err != nil {
		return nil, fmt.Errorf("malformed ticker response: %w", err)
	}
	ticker.ProductID = productID
	ticker.normalize()
	return &ticker, nil
}
