package domain

import (
	"fmt"
	"math"
)

// PriceKopecks quotes a price in kopecks for the given unit amount at the
// given rate (rubles per unit), rounding up to the next kopeck. The quote is
// fixed at order creation and never recomputed.
func PriceKopecks(amount int64, rate float64) int64 {
	return int64(math.Ceil(float64(amount) * rate * 100))
}

// BonusKopecks computes a percentage bonus of an amount, rounding down so the
// bonus never exceeds the configured share.
func BonusKopecks(amount int64, percent float64) int64 {
	return int64(math.Floor(float64(amount) * percent / 100))
}

// Kopecks converts a ruble amount to kopecks, rounding up fractional input
// the same way prices are quoted.
func Kopecks(rubles float64) int64 {
	return int64(math.Ceil(rubles * 100))
}

// FormatRubles renders kopecks as a 2dp ruble string for messages and logs.
func FormatRubles(kopecks int64) string {
	return fmt.Sprintf("%d.%02d", kopecks/100, kopecks%100)
}
