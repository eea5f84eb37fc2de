package pricing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/gateway"
	"github.com/robumart/platform/internal/provider"
)

type stubStock struct {
	summary *gateway.StockSummary
	offers  []gateway.StockOffer
	err     error
}

func (s *stubStock) GetStockSummary(ctx context.Context) (*gateway.StockSummary, error) {
	return s.summary, s.err
}

func (s *stubStock) GetStockDetailed(ctx context.Context) ([]gateway.StockOffer, error) {
	return s.offers, s.err
}

type stubRates struct {
	rates []provider.ExchangeRate
	err   error
}

func (s *stubRates) GetExchangeRates(ctx context.Context) ([]provider.ExchangeRate, error) {
	return s.rates, s.err
}

type stubSettings struct{ s domain.Settings }

func (s *stubSettings) Get(ctx context.Context) (domain.Settings, error) { return s.s, nil }

func TestNormalizeSupplierRate(t *testing.T) {
	s := domain.DefaultSettings()

	// Per-1000 quote above the threshold is divided down.
	assert.InDelta(t, 0.0125, NormalizeSupplierRate(12.5, s), 1e-9)

	// Per-unit quote below the threshold passes through.
	assert.InDelta(t, 0.0055, NormalizeSupplierRate(0.0055, s), 1e-9)

	// Threshold disabled: never divide.
	s.PerThousandRateThreshold = 0
	assert.InDelta(t, 12.5, NormalizeSupplierRate(12.5, s), 1e-9)
}

func TestAutoRate_PercentMarkup(t *testing.T) {
	s := domain.DefaultSettings()
	s.MarkupType = domain.MarkupPercent
	s.MarkupValue = 15

	// 12.5 per 1000 → 0.0125 USD, × 90 RUB = 1.125 base, +15% = 1.29375,
	// ceil 2dp = 1.30.
	assert.InDelta(t, 1.30, AutoRate(12.5, 90, s), 1e-9)
}

func TestAutoRate_FixedMarkup(t *testing.T) {
	s := domain.DefaultSettings()
	s.MarkupType = domain.MarkupFixed
	s.MarkupValue = 0.10

	// 1.125 base + 0.10 = 1.225, ceil 2dp = 1.23.
	assert.InDelta(t, 1.23, AutoRate(12.5, 90, s), 1e-9)
}

func TestAutoRate_Floor(t *testing.T) {
	s := domain.DefaultSettings()
	s.MarkupType = domain.MarkupFixed
	s.MarkupValue = 0

	assert.InDelta(t, 0.01, AutoRate(0, 90, s), 1e-9)
}

func TestSellRate_ManualMode(t *testing.T) {
	s := domain.DefaultSettings()
	s.PricingMode = domain.PricingManual
	s.Rate = 0.85

	o := NewOracle(&stubStock{}, &stubRates{}, &stubSettings{s}, nil, slog.Default())
	rate, err := o.SellRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.85, rate)
}

func TestSellRate_AutoMode(t *testing.T) {
	s := domain.DefaultSettings()
	s.PricingMode = domain.PricingAuto
	s.MarkupType = domain.MarkupPercent
	s.MarkupValue = 15

	stock := &stubStock{offers: []gateway.StockOffer{
		{Rate: 12.5, TotalAmount: 50000},
	}}
	rates := &stubRates{rates: []provider.ExchangeRate{
		{IsValid: true, Source: "USDT", Target: "EUR", Rate: "0.9"},
		{IsValid: true, Source: "USDT", Target: "RUB", Rate: "90"},
	}}

	o := NewOracle(stock, rates, &stubSettings{s}, nil, slog.Default())
	rate, err := o.SellRate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.30, rate, 1e-9)
}

func TestSellRate_AutoModeFallsBackToManual(t *testing.T) {
	s := domain.DefaultSettings()
	s.PricingMode = domain.PricingAuto
	s.Rate = 0.77

	stock := &stubStock{err: assert.AnError}
	o := NewOracle(stock, &stubRates{}, &stubSettings{s}, nil, slog.Default())

	rate, err := o.SellRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.77, rate)
}

func TestSellRate_SkipsEmptyBuckets(t *testing.T) {
	s := domain.DefaultSettings()
	s.PricingMode = domain.PricingAuto
	s.MarkupType = domain.MarkupFixed
	s.MarkupValue = 0

	stock := &stubStock{offers: []gateway.StockOffer{
		{Rate: 99, TotalAmount: 0},
		{Rate: 12.5, TotalAmount: 1000},
	}}
	rates := &stubRates{rates: []provider.ExchangeRate{
		{IsValid: true, Source: "USDT", Target: "RUB", Rate: "80"},
	}}

	o := NewOracle(stock, rates, &stubSettings{s}, nil, slog.Default())
	rate, err := o.SellRate(context.Background())
	require.NoError(t, err)
	// 0.0125 × 80 = 1.00
	assert.InDelta(t, 1.00, rate, 1e-9)
}

func TestAvailableStock(t *testing.T) {
	stock := &stubStock{summary: &gateway.StockSummary{Available: 123456, MaxAvailable: 200000}}
	o := NewOracle(stock, &stubRates{}, &stubSettings{domain.DefaultSettings()}, nil, slog.Default())

	avail, err := o.AvailableStock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(123456), avail)
}
