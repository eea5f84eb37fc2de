package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/gateway"
	"github.com/robumart/platform/internal/provider"
)

const (
	rateCacheKey  = "pricing:sell_rate"
	rateCacheTTL  = 60 * time.Second
	stockCacheKey = "pricing:stock"
	stockCacheTTL = 10 * time.Second
)

// StockSource reads supplier inventory.
type StockSource interface {
	GetStockSummary(ctx context.Context) (*gateway.StockSummary, error)
	GetStockDetailed(ctx context.Context) ([]gateway.StockOffer, error)
}

// RateSource reads crypto/fiat exchange rates.
type RateSource interface {
	GetExchangeRates(ctx context.Context) ([]provider.ExchangeRate, error)
}

// Oracle derives the current sell rate and available stock. In manual mode
// the configured rate is returned as-is; in auto mode the rate is derived
// from the best supplier offer and the USDT→RUB rate, with markup applied.
// Derived values are cached in Redis; every failure falls back to the manual
// rate so pricing never blocks an order.
type Oracle struct {
	stock    StockSource
	rates    RateSource
	settings domain.SettingsSource
	rdb      *redis.Client
	logger   *slog.Logger
}

// NewOracle creates a pricing oracle. rdb may be nil, which disables caching.
func NewOracle(stock StockSource, rates RateSource, settings domain.SettingsSource, rdb *redis.Client, logger *slog.Logger) *Oracle {
	return &Oracle{stock: stock, rates: rates, settings: settings, rdb: rdb, logger: logger}
}

// SellRate returns the current rate in rubles per unit.
func (o *Oracle) SellRate(ctx context.Context) (float64, error) {
	s, err := o.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	if s.PricingMode == domain.PricingManual {
		return s.Rate, nil
	}

	if v, ok := o.cachedFloat(ctx, rateCacheKey); ok {
		return v, nil
	}

	rate, err := o.computeAutoRate(ctx, s)
	if err != nil {
		o.logger.Warn("auto rate unavailable, falling back to manual", "error", err)
		return s.Rate, nil
	}

	o.cacheFloat(ctx, rateCacheKey, rate, rateCacheTTL)
	return rate, nil
}

// CostRate returns the supplier cost basis in rubles per unit, used for the
// order cost column. Manual mode uses the configured buy rate.
func (o *Oracle) CostRate(ctx context.Context) (float64, error) {
	s, err := o.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	if s.PricingMode == domain.PricingManual {
		return s.BuyRate, nil
	}

	offer, err := o.bestOffer(ctx)
	if err != nil {
		return s.BuyRate, nil
	}
	usdToRub, err := o.UsdtToRub(ctx)
	if err != nil {
		return s.BuyRate, nil
	}
	return NormalizeSupplierRate(offer.Rate, s) * usdToRub, nil
}

// AvailableStock returns the supplier's instantly available units.
func (o *Oracle) AvailableStock(ctx context.Context) (int64, error) {
	if v, ok := o.cachedFloat(ctx, stockCacheKey); ok {
		return int64(v), nil
	}

	summary, err := o.stock.GetStockSummary(ctx)
	if err != nil {
		return 0, fmt.Errorf("stock summary: %w", err)
	}

	o.cacheFloat(ctx, stockCacheKey, float64(summary.Available), stockCacheTTL)
	return summary.Available, nil
}

// UsdtToRub returns the current USDT→RUB rate from the crypto provider.
func (o *Oracle) UsdtToRub(ctx context.Context) (float64, error) {
	rates, err := o.rates.GetExchangeRates(ctx)
	if err != nil {
		return 0, fmt.Errorf("exchange rates: %w", err)
	}
	for _, r := range rates {
		if r.IsValid && r.Source == "USDT" && r.Target == "RUB" {
			v, err := strconv.ParseFloat(r.Rate, 64)
			if err != nil {
				return 0, fmt.Errorf("parse USDT/RUB rate %q: %w", r.Rate, err)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("no valid USDT/RUB rate in provider response")
}

func (o *Oracle) computeAutoRate(ctx context.Context, s domain.Settings) (float64, error) {
	offer, err := o.bestOffer(ctx)
	if err != nil {
		return 0, err
	}
	usdToRub, err := o.UsdtToRub(ctx)
	if err != nil {
		return 0, err
	}
	return AutoRate(offer.Rate, usdToRub, s), nil
}

// bestOffer picks the first supplier bucket with stock.
func (o *Oracle) bestOffer(ctx context.Context) (*gateway.StockOffer, error) {
	offers, err := o.stock.GetStockDetailed(ctx)
	if err != nil {
		return nil, fmt.Errorf("detailed stock: %w", err)
	}
	for i := range offers {
		if offers[i].TotalAmount > 0 {
			return &offers[i], nil
		}
	}
	if len(offers) > 0 {
		return &offers[0], nil
	}
	return nil, fmt.Errorf("supplier returned no stock buckets")
}

func (o *Oracle) cachedFloat(ctx context.Context, key string) (float64, bool) {
	if o.rdb == nil {
		return 0, false
	}
	raw, err := o.rdb.Get(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (o *Oracle) cacheFloat(ctx context.Context, key string, v float64, ttl time.Duration) {
	if o.rdb == nil {
		return
	}
	if err := o.rdb.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64), ttl).Err(); err != nil {
		o.logger.Warn("pricing cache write failed", "key", key, "error", err)
	}
}

// NormalizeSupplierRate converts a supplier quote to USD per unit. Quotes
// above the threshold are treated as per-1000-unit prices.
func NormalizeSupplierRate(rate float64, s domain.Settings) float64 {
	if s.PerThousandRateThreshold > 0 && rate > s.PerThousandRateThreshold {
		return rate / s.PerThousandRateDivisor
	}
	return rate
}

// AutoRate derives the final sell rate in rubles per unit: normalized
// supplier cost converted to rubles, plus markup, rounded up to 2dp with a
// floor of 0.01.
func AutoRate(supplierRate, usdToRub float64, s domain.Settings) float64 {
	base := NormalizeSupplierRate(supplierRate, s) * usdToRub

	final := base
	if s.MarkupType == domain.MarkupPercent {
		final = base * (1 + s.MarkupValue/100)
	} else {
		final = base + s.MarkupValue
	}

	final = math.Ceil(final*100) / 100
	if final <= 0 {
		final = 0.01
	}
	return final
}
