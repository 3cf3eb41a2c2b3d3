package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/TradeGateHQ/tradegate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Order kinds used in the venue order configuration and in client order ids.
const (
	kindMarket = "market"
	kindLimit  = "limit"
	kindStop   = "stop"
)

// PlaceMarketOrder submits an immediate-or-cancel market order sized in
// the quote currency.
func (c *Client) PlaceMarketOrder(ctx context.Context, productID string, side Side, quoteSize string) (*Order, error) {
	if err := validatePlacement(productID, side, quoteSize); err != nil {
		return nil, err
	}
	orderConfig := map[string]any{
		"market_market_ioc": map[string]string{
			"quote_size": quoteSize,
		},
	}
	return c.submitOrder(ctx, kindMarket, productID, side, orderConfig)
}

// PlaceLimitOrder submits a good-til-cancelled limit order sized in the
// base currency.
func (c *Client) PlaceLimitOrder(ctx context.Context, productID string, side Side, baseSize, limitPrice string) (*Order, error) {
	if err := validatePlacement(productID, side, baseSize, limitPrice); err != nil {
		return nil, err
	}
	orderConfig := map[string]any{
		"limit_limit_gtc": map[string]string{
			"base_size":   baseSize,
			"limit_price": limitPrice,
		},
	}
	return c.submitOrder(ctx, kindLimit, productID, side, orderConfig)
}

// PlaceStopOrder submits a stop-limit order.
func (c *Client) PlaceStopOrder(ctx context.Context, productID string, side Side, baseSize, limitPrice, stopPrice string) (*Order, error) {
	if err := validatePlacement(productID, side, baseSize, limitPrice, stopPrice); err != nil {
		return nil, err
	}
	orderConfig := map[string]any{
		"stop_limit_stop_limit_gtc": map[string]string{
			"base_size":   baseSize,
			"limit_price": limitPrice,
			"stop_price":  stopPrice,
		},
	}
	return c.submitOrder(ctx, kindStop, productID, side, orderConfig)
}

func (c *Client) submitOrder(ctx context.Context, kind, productID string, side Side, orderConfig map[string]any) (*Order, error) {
	payload := map[string]any{
		"client_order_id":     c.clientOrderID(kind, productID),
		"product_id":          productID,
		"side":                string(side),
		"order_configuration": orderConfig,
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/brokerage/orders", payload)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("error", string(side)).Inc()
		return nil, err
	}
	order, err := parseOrderEnvelope(body)
	if err != nil {
		return nil, err
	}
	metrics.OrdersTotal.WithLabelValues(order.Status, string(side)).Inc()
	return order, nil
}

// clientOrderID builds the idempotency token for one logical order
// attempt. The venue recognizes a network-level resubmission carrying the
// same token as the same order rather than a duplicate fill.
func (c *Client) clientOrderID(kind, productID string) string {
	return fmt.Sprintf("%s_%s_%d", kind, productID, c.clk.Now().Unix())
}

// ListOrders returns orders filtered by status and, optionally, product.
func (c *Client) ListOrders(ctx context.Context, productID, status string) ([]Order, error) {
	if status == "" {
		status = StatusOpen
	}
	params := url.Values{}
	params.Set("order_status", status)
	if productID != "" {
		params.Set("product_id", productID)
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v1/brokerage/orders/batch?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Orders []Order `json:"orders"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("malformed orders response: %w", err)
	}
	for i := range wire.Orders {
		wire.Orders[i].normalize()
	}
	return wire.Orders, nil
}

// GetOrder returns a fresh parse of the venue's view of one order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/brokerage/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	return parseOrderEnvelope(body)
}

// CancelOrder requests cancellation. The venue rejects cancellation of an
// already-filled order; that rejection is surfaced, not swallowed.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/brokerage/orders/"+url.PathEscape(orderID)+"/cancel", map[string]any{})
	return err
}

// ListFills returns execution history, most recent first.
func (c *Client) ListFills(ctx context.Context, productID string, limit int) ([]Fill, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if productID != "" {
		params.Set("product_id", productID)
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v1/brokerage/orders/historical/fills?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Fills []Fill `json:"fills"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("malformed fills response: %w", err)
	}
	return wire.Fills, nil
}

// validatePlacement rejects caller errors before any network call: the
// side must be one of exactly two values and every amount must be a
// positive decimal.
func validatePlacement(productID string, side Side, amounts ...string) error {
	if productID == "" {
		return fmt.Errorf("product id is required")
	}
	if !side.Valid() {
		return fmt.Errorf("invalid side %q: must be BUY or SELL", side)
	}
	for _, raw := range amounts {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", raw, err)
		}
		if d.Sign() <= 0 {
			return fmt.Errorf("invalid amount %q: must be positive", raw)
		}
	}
	return nil
}

// parseOrderEnvelope tolerates both the wrapped ({"order": {...}}) and
// bare order response shapes the venue uses.
func parseOrderEnvelope(body []byte) (*Order, error) {
	var wrapped struct {
		Order *Order `json:"order"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Order != nil {
		wrapped.Order.normalize()
		return wrapped.Order, nil
	}
	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("malformed order response: %w", err)
	}
	order.normalize()
	return &order, nil
}
