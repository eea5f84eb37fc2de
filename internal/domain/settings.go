package domain

import "context"

// PricingMode selects how the sell rate is derived.
type PricingMode string

const (
	PricingManual PricingMode = "manual"
	PricingAuto   PricingMode = "auto"
)

// MarkupType selects how the markup is applied on top of the supplier cost.
type MarkupType string

const (
	MarkupPercent MarkupType = "percent"
	MarkupFixed   MarkupType = "fixed"
)

// Settings is the mutable business configuration snapshot. It is fetched once
// per operation through a SettingsSource and passed down explicitly; nothing
// in the core reads ambient global state.
type Settings struct {
	Maintenance bool

	PricingMode PricingMode
	Rate        float64 // manual sell rate, rubles per unit
	BuyRate     float64 // manual supplier cost, rubles per unit
	MarkupType  MarkupType
	MarkupValue float64

	ReferralPercent float64

	MinOrderAmount  int64
	MaxOrderAmount  int64
	MaxActiveOrders int

	// Supplier quotes are sometimes per-1000-units. Quotes above the threshold
	// are divided by the divisor before use. Business heuristic, kept as
	// policy rather than hardcoded.
	PerThousandRateThreshold float64
	PerThousandRateDivisor   float64
}

// DefaultSettings returns the baseline configuration used when a field is not
// set by the source.
func DefaultSettings() Settings {
	return Settings{
		PricingMode:              PricingManual,
		Rate:                     0.70,
		BuyRate:                  0.50,
		MarkupType:               MarkupPercent,
		MarkupValue:              15,
		ReferralPercent:          5,
		MinOrderAmount:           10,
		MaxOrderAmount:           100000,
		MaxActiveOrders:          3,
		PerThousandRateThreshold: 10,
		PerThousandRateDivisor:   1000,
	}
}

// SettingsSource supplies the current settings snapshot. The storage behind
// it (env, database, admin panel) is an external collaborator.
type SettingsSource interface {
	Get(ctx context.Context) (Settings, error)
}
