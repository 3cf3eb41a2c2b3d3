package model

// MarketOrderRequest is the incoming JSON body for market order placement.
// The quote size is kept as a string end to end; the venue speaks
// numeric-as-string and parsing to float would lose precision.
type MarketOrderRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Side      string `json:"side" binding:"required"`
	QuoteSize string `json:"quote_size" binding:"required"`
}

// LimitOrderRequest is the incoming JSON body for limit order placement.
type LimitOrderRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	Side       string `json:"side" binding:"required"`
	BaseSize   string `json:"base_size" binding:"required"`
	LimitPrice string `json:"limit_price" binding:"required"`
}

// StopOrderRequest is the incoming JSON body for stop-limit order placement.
type StopOrderRequest struct {
	ProductID  string `json:"product_id" binding:"required"`
	Side       string `json:"side" binding:"required"`
	BaseSize   string `json:"base_size" binding:"required"`
	LimitPrice string `json:"limit_price" binding:"required"`
	StopPrice  string `json:"stop_price" binding:"required"`
}
