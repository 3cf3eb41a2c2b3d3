package service

import (
	"context"
	"fmt"
	"time"

	"github.com/TradeGateHQ/tradegate/internal/config"
	"github.com/TradeGateHQ/tradegate/internal/pkg/apperrors"
	"github.com/TradeGateHQ/tradegate/internal/market"
	"github.com/TradeGateHQ/tradegate/internal/pkg/metrics"
	"github.com/TradeGateHQ/tradegate/internal/venue"
	"github.com/shopspring/decimal"
)

type UsageRepo interface {
	GetDailyUsage(ctx context.Context, key string) (int, float64, error)
	AddDailyUsage(ctx context.Context, key string, orders int, amount float64) error
}

// PriceSource supplies the last observed trade price for a product.
type PriceSource interface {
	Last(productID string) (market.LastTrade, bool)
}

// usageKey buckets daily usage. A single-operator gateway has one bucket.
const usageKey = "gateway"

// RiskEngine runs pre-trade checks before an order reaches the signed
// client. A rejection is a caller error, never a venue error.
type RiskEngine struct {
	cfg    config.RiskConfig
	repo   UsageRepo
	prices PriceSource
}

func NewRiskEngine(cfg config.RiskConfig, repo UsageRepo, prices PriceSource) *RiskEngine {
	return &RiskEngine{cfg: cfg, repo: repo, prices: prices}
}

// CheckMarketOrder validates a quote-sized market order.
func (e *RiskEngine) CheckMarketOrder(ctx context.Context, productID string, side venue.Side, quoteSize string) error {
	notional, err := positiveDecimal(quoteSize)
	if err != nil {
		metrics.RiskRejects.WithLabelValues("invalid_size").Inc()
		return err
	}
	return e.checkNotional(ctx, notional)
}

// CheckLimitOrder validates a base-sized limit or stop order and compares
// the limit price with the last observed trade when a price source is
// available.
func (e *RiskEngine) CheckLimitOrder(ctx context.Context, productID string, side venue.Side, baseSize, limitPrice string) error {
	size, err := positiveDecimal(baseSize)
	if err != nil {
		metrics.RiskRejects.WithLabelValues("invalid_size").Inc()
		return err
	}
	price, err := positiveDecimal(limitPrice)
	if err != nil {
		metrics.RiskRejects.WithLabelValues("invalid_price").Inc()
		return err
	}

	if e.cfg.MaxDeviation > 0 && e.prices != nil {
		if lt, ok := e.prices.Last(productID); ok && time.Since(lt.Seen) <= 10*time.Second {
			deviation := decimal.NewFromFloat(e.cfg.MaxDeviation)
			one := decimal.NewFromInt(1)
			switch side {
			case venue.SideBuy:
				maxAllowed := lt.Price.Mul(one.Add(deviation))
				if price.GreaterThan(maxAllowed) {
					metrics.RiskRejects.WithLabelValues("price_deviation").Inc()
					return apperrors.NewRiskReject(fmt.Sprintf("buy price %s deviates too much from last trade %s (limit: %s)",
						price, lt.Price, maxAllowed))
				}
			case venue.SideSell:
				minAllowed := lt.Price.Mul(one.Sub(deviation))
				if price.LessThan(minAllowed) {
					metrics.RiskRejects.WithLabelValues("price_deviation").Inc()
					return apperrors.NewRiskReject(fmt.Sprintf("sell price %s deviates too much from last trade %s (limit: %s)",
						price, lt.Price, minAllowed))
				}
			}
		}
	}

	return e.checkNotional(ctx, size.Mul(price))
}

// RecordPlacement adds a submitted order to the daily usage counters.
func (e *RiskEngine) RecordPlacement(ctx context.Context, notional string) {
	if e.repo == nil {
		return
	}
	amount, err := decimal.NewFromString(notional)
	if err != nil {
		return
	}
	_ = e.repo.AddDailyUsage(ctx, usageKey, 1, amount.InexactFloat64())
}

func (e *RiskEngine) checkNotional(ctx context.Context, notional decimal.Decimal) error {
	if e.cfg.MaxOrderValue > 0 && notional.GreaterThan(decimal.NewFromFloat(e.cfg.MaxOrderValue)) {
		metrics.RiskRejects.WithLabelValues("max_value").Inc()
		return apperrors.NewRiskReject(fmt.Sprintf("order value %s exceeds limit %.2f", notional, e.cfg.MaxOrderValue))
	}

	if e.repo != nil && (e.cfg.MaxDailyValue > 0 || e.cfg.MaxDailyOrders > 0) {
		currentOrders, currentVol, err := e.repo.GetDailyUsage(ctx, usageKey)
		if err != nil {
			return fmt.Errorf("risk check failed: %w", err)
		}
		if e.cfg.MaxDailyValue > 0 && currentVol+notional.InexactFloat64() > e.cfg.MaxDailyValue {
			metrics.RiskRejects.WithLabelValues("daily_volume_limit").Inc()
			return apperrors.NewRiskReject(fmt.Sprintf("daily volume limit exceeded (curr: %.2f, new: %s, max: %.2f)",
				currentVol, notional, e.cfg.MaxDailyValue))
		}
		if e.cfg.MaxDailyOrders > 0 && currentOrders+1 > e.cfg.MaxDailyOrders {
			metrics.RiskRejects.WithLabelValues("daily_order_limit").Inc()
			return apperrors.NewRiskReject(fmt.Sprintf("daily order limit exceeded (curr: %d, max: %d)",
				currentOrders, e.cfg.MaxDailyOrders))
		}
	}

	return nil
}

func positiveDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, apperrors.NewRiskReject(fmt.Sprintf("invalid amount %q", raw))
	}
	if d.Sign() <= 0 {
		return decimal.Decimal{}, apperrors.NewRiskReject("amount must be positive")
	}
	return d, nil
}
