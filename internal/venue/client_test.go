package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func venueConfig() config.VenueConfig {
	return config.VenueConfig{
		Production: config.VenueCreds{
			APIKey:        "key-1",
			APISecret:     "secret-1",
			APIPassphrase: "pass-1",
		},
		BaseURL: "https://api.example.com",
	}
}

func newTestClient(t *testing.T, srvURL string, clk clock.Clock) *Client {
	t.Helper()
	opts := []Option{WithBaseURL(srvURL)}
	if clk != nil {
		opts = append(opts, WithClock(clk))
	}
	c, err := NewClient(venueConfig(), opts...)
	require.NoError(t, err)
	return c
}

func TestNewClientFailsWithoutCredentials(t *testing.T) {
	_, err := NewClient(config.VenueConfig{BaseURL: "https://api.example.com"})
	assert.Error(t, err)
}

func TestNewClientSandboxBaseURL(t *testing.T) {
	c, err := NewClient(config.VenueConfig{
		SandboxMode:    true,
		Sandbox:        config.VenueCreds{APIKey: "k", APISecret: "s", APIPassphrase: "p"},
		BaseURL:        "https://api.example.com",
		SandboxBaseURL: "https://api-sandbox.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api-sandbox.example.com", c.baseURL)
}

func TestPlaceMarketOrder(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/brokerage/orders", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get(HeaderAPIKey))
		require.Equal(t, "pass-1", r.Header.Get(HeaderPassphrase))
		require.NotEmpty(t, r.Header.Get(HeaderTimestamp))
		require.Contains(t, r.Header.Get("Authorization"), "Bearer ")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{
			"order": map[string]any{
				"order_id":        "ord-1",
				"client_order_id": gotPayload["client_order_id"],
				"product_id":      "BTC-USD",
				"side":            "BUY",
				"status":          "OPEN",
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, clk)

	order, err := c.PlaceMarketOrder(context.Background(), "BTC-USD", SideBuy, "100.00")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.OrderID)
	assert.Equal(t, StatusOpen, order.Status)
	assert.Equal(t, "market_BTC-USD_1748779200", order.ClientOrderID)

	cfg := gotPayload["order_configuration"].(map[string]any)
	ioc := cfg["market_market_ioc"].(map[string]any)
	assert.Equal(t, "100.00", ioc["quote_size"])
	assert.Equal(t, "BUY", gotPayload["side"])
}

func TestClientOrderIDChangesWithClock(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := newTestClient(t, "http://unused", clk)

	first := c.clientOrderID("market", "BTC-USD")
	clk.Advance(time.Second)
	second := c.clientOrderID("market", "BTC-USD")
	assert.NotEqual(t, first, second)
}

func TestPlaceLimitOrderPayload(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{"order_id": "ord-2", "status": "OPEN"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	order, err := c.PlaceLimitOrder(context.Background(), "ETH-USD", SideSell, "0.5", "3000.00")
	require.NoError(t, err)
	assert.Equal(t, "ord-2", order.OrderID)

	cfg := gotPayload["order_configuration"].(map[string]any)
	gtc := cfg["limit_limit_gtc"].(map[string]any)
	assert.Equal(t, "0.5", gtc["base_size"])
	assert.Equal(t, "3000.00", gtc["limit_price"])
}

func TestPlaceStopOrderPayload(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{"order_id": "ord-3", "status": "OPEN"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.PlaceStopOrder(context.Background(), "ETH-USD", SideSell, "0.5", "2900.00", "2950.00")
	require.NoError(t, err)

	cfg := gotPayload["order_configuration"].(map[string]any)
	stop := cfg["stop_limit_stop_limit_gtc"].(map[string]any)
	assert.Equal(t, "0.5", stop["base_size"])
	assert.Equal(t, "2900.00", stop["limit_price"])
	assert.Equal(t, "2950.00", stop["stop_price"])
}

func TestPlacementValidationRejectsBeforeNetwork(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.PlaceMarketOrder(context.Background(), "BTC-USD", Side("HOLD"), "100")
	assert.Error(t, err)

	_, err = c.PlaceMarketOrder(context.Background(), "BTC-USD", SideBuy, "-5")
	assert.Error(t, err)

	_, err = c.PlaceMarketOrder(context.Background(), "BTC-USD", SideBuy, "abc")
	assert.Error(t, err)

	_, err = c.PlaceLimitOrder(context.Background(), "", SideBuy, "1", "100")
	assert.Error(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
}

func TestVenueRejectionSurfacedOnce(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.PlaceMarketOrder(context.Background(), "BTC-USD", SideBuy, "100")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Body, "rate limited")

	// No automatic retry; exactly one request reached the venue.
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestGetTickerNormalizesMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/products/BTC-USD/ticker", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"price": "50000.00"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	ticker, err := c.GetTicker(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", ticker.ProductID)
	assert.Equal(t, "50000.00", ticker.Price)
	assert.Equal(t, "0", ticker.Bid)
	assert.Equal(t, "0", ticker.Ask)
	assert.Equal(t, "0", ticker.Volume)
}

func TestListProductsNormalizesMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"products": []map[string]any{
				{"id": "BTC-USD", "status": "online"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	products, err := c.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "0", products[0].Price)
	assert.Equal(t, "0", products[0].Volume24h)
	assert.Equal(t, "0", products[0].BaseMinSize)
}

func TestListOrdersDefaultsToOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "OPEN", r.URL.Query().Get("order_status"))
		require.Equal(t, "BTC-USD", r.URL.Query().Get("product_id"))
		json.NewEncoder(w).Encode(map[string]any{"orders": []map[string]any{{"order_id": "ord-1"}}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	orders, err := c.ListOrders(context.Background(), "BTC-USD", "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ord-1", orders[0].OrderID)
}

func TestCancelOrderRejectionSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/brokerage/orders/ord-1/cancel", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"order already filled"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	err := c.CancelOrder(context.Background(), "ord-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Body, "already filled")
}

func TestListFillsDefaultLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/brokerage/orders/historical/fills", r.URL.Path)
		require.Equal(t, "100", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{"fills": []map[string]any{{"trade_id": "t-1", "order_id": "ord-1"}}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	fills, err := c.ListFills(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, "t-1", fills[0].TradeID)
}

func TestSignatureCoversQueryString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Recompute the expected signature over the full request target.
		c2, _ := NewClient(venueConfig())
		expected := c2.signer.Sign(
			r.Header.Get(HeaderTimestamp),
			r.Method,
			r.URL.Path+"?"+r.URL.RawQuery,
			"",
		)
		require.Equal(t, "Bearer "+expected, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"orders": []map[string]any{}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)

	_, err := c.ListOrders(context.Background(), "BTC-USD", "FILLED")
	require.NoError(t, err)
}
