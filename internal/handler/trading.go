package handler

import (
	"net/http"
	"strconv"

	"github.com/TradeGateHQ/tradegate/internal/middleware"
	"github.com/TradeGateHQ/tradegate/internal/model"
	"github.com/TradeGateHQ/tradegate/internal/pkg/apperrors"
	"github.com/TradeGateHQ/tradegate/internal/pkg/metrics"
	"github.com/TradeGateHQ/tradegate/internal/service"
	"github.com/TradeGateHQ/tradegate/internal/venue"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TradingHandler fronts the signed venue client, with the risk engine in
// front of every placement.
type TradingHandler struct {
	venue *venue.Client
	risk  *service.RiskEngine
}

func NewTradingHandler(vc *venue.Client, risk *service.RiskEngine) *TradingHandler {
	return &TradingHandler{venue: vc, risk: risk}
}

func (h *TradingHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.venue.ListAccounts(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts, "count": len(accounts)})
}

func (h *TradingHandler) GetAccount(c *gin.Context) {
	account, err := h.venue.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *TradingHandler) ListProducts(c *gin.Context) {
	products, err := h.venue.ListProducts(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *TradingHandler) GetProduct(c *gin.Context) {
	product, err := h.venue.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *TradingHandler) GetTicker(c *gin.Context) {
	ticker, err := h.venue.GetTicker(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, ticker)
}

func (h *TradingHandler) PlaceMarketOrder(c *gin.Context) {
	var req model.MarketOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		c.Abort()
		return
	}
	side, err := venue.ParseSide(req.Side)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		c.Abort()
		return
	}

	if err := h.risk.CheckMarketOrder(c.Request.Context(), req.ProductID, side, req.QuoteSize); err != nil {
		metrics.RiskRejects.WithLabelValues("market").Inc()
		middleware.AddAuditContext(c, "risk_reject", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	order, err := h.venue.PlaceMarketOrder(c.Request.Context(), req.ProductID, side, req.QuoteSize)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	h.risk.RecordPlacement(c.Request.Context(), req.QuoteSize)
	h.auditOrder(c, "market_order", order)
	c.JSON(http.StatusOK, order)
}

func (h *TradingHandler) PlaceLimitOrder(c *gin.Context) {
	var req model.LimitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		c.Abort()
		return
	}
	side, err := venue.ParseSide(req.Side)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		c.Abort()
		return
	}

	if err := h.risk.CheckLimitOrder(c.Request.Context(), req.ProductID, side, req.BaseSize, req.LimitPrice); err != nil {
		metrics.RiskRejects.WithLabelValues("limit").Inc()
		middleware.AddAuditContext(c, "risk_reject", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	order, err := h.venue.PlaceLimitOrder(c.Request.Context(), req.ProductID, side, req.BaseSize, req.LimitPrice)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	h.risk.RecordPlacement(c.Request.Context(), notionalOf(req.BaseSize, req.LimitPrice))
	h.auditOrder(c, "limit_order", order)
	c.JSON(http.StatusOK, order)
}

func (h *TradingHandler) PlaceStopOrder(c *gin.Context) {
	var req model.StopOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		c.Abort()
		return
	}
	side, err := venue.ParseSide(req.Side)
	if err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		c.Abort()
		return
	}

	// A stop order is risk-checked like the limit order it becomes once
	// triggered.
	if err := h.risk.CheckLimitOrder(c.Request.Context(), req.ProductID, side, req.BaseSize, req.LimitPrice); err != nil {
		metrics.RiskRejects.WithLabelValues("stop").Inc()
		middleware.AddAuditContext(c, "risk_reject", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	order, err := h.venue.PlaceStopOrder(c.Request.Context(), req.ProductID, side, req.BaseSize, req.LimitPrice, req.StopPrice)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}

	h.risk.RecordPlacement(c.Request.Context(), notionalOf(req.BaseSize, req.LimitPrice))
	h.auditOrder(c, "stop_order", order)
	c.JSON(http.StatusOK, order)
}

func (h *TradingHandler) ListOrders(c *gin.Context) {
	orders, err := h.venue.ListOrders(c.Request.Context(), c.Query("product_id"), c.Query("status"))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

func (h *TradingHandler) GetOrder(c *gin.Context) {
	order, err := h.venue.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *TradingHandler) CancelOrder(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.venue.CancelOrder(c.Request.Context(), orderID); err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		c.Abort()
		return
	}
	middleware.AddAuditContext(c, "action", "cancel_order")
	middleware.AddAuditContext(c, "order_id", orderID)
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "cancelled": true})
}

func (h *TradingHandler) ListFills(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	fills, err := h.venue.ListFills(c.Request.Context(), c.Query("product_id"), limit)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, gin.H{"fills": fills, "count": len(fills)})
}

func (h *TradingHandler) auditOrder(c *gin.Context, action string, order *venue.Order) {
	middleware.AddAuditContext(c, "action", action)
	if order != nil {
		middleware.AddAuditContext(c, "order_id", order.OrderID)
		middleware.AddAuditContext(c, "client_order_id", order.ClientOrderID)
		metrics.OrdersTotal.WithLabelValues(order.Status, order.Side).Inc()
	}
}

// notionalOf is best effort for risk accounting; a malformed amount was
// already rejected by validation upstream.
func notionalOf(baseSize, limitPrice string) string {
	base, err1 := decimal.NewFromString(baseSize)
	price, err2 := decimal.NewFromString(limitPrice)
	if err1 != nil || err2 != nil {
		return "0"
	}
	return base.Mul(price).String()
}
