package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceKopecks(t *testing.T) {
	// 100 units at 0.70 ₽ = 70.00 ₽.
	assert.Equal(t, int64(7000), PriceKopecks(100, 0.70))

	// Fractional kopecks round up in the shop's favour: 33 × 0.7 = 23.099…
	assert.Equal(t, int64(2310), PriceKopecks(33, 0.7))

	// Rounding is per order, never per unit.
	assert.Equal(t, int64(1), PriceKopecks(1, 0.0001))
}

func TestPriceKopecks_FixedAtQuoteTime(t *testing.T) {
	p1 := PriceKopecks(500, 0.75)
	p2 := PriceKopecks(500, 0.75)
	assert.Equal(t, p1, p2)
	assert.Equal(t, int64(37500), p1)
}

func TestBonusKopecks(t *testing.T) {
	// 5% of 150.00 ₽ = 7.50 ₽.
	assert.Equal(t, int64(750), BonusKopecks(15000, 5))

	// Bonus rounds down so it never exceeds the configured share.
	assert.Equal(t, int64(4), BonusKopecks(99, 5))

	assert.Equal(t, int64(0), BonusKopecks(100, 0))
}

func TestKopecks(t *testing.T) {
	assert.Equal(t, int64(15000), Kopecks(150.00))
	assert.Equal(t, int64(1051), Kopecks(10.501))
}

func TestFormatRubles(t *testing.T) {
	assert.Equal(t, "150.00", FormatRubles(15000))
	assert.Equal(t, "0.07", FormatRubles(7))
	assert.Equal(t, "23.10", FormatRubles(2310))
}
