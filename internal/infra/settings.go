package infra

import (
	"context"

	"github.com/robumart/platform/internal/domain"
)

// EnvSettingsSource serves business settings derived from the process
// environment. Get is cheap and side-effect free, so callers fetch a fresh
// snapshot per operation instead of holding global state.
type EnvSettingsSource struct {
	settings domain.Settings
}

// NewEnvSettingsSource builds a settings source from config, falling back to
// defaults for anything the environment does not override.
func NewEnvSettingsSource(cfg *Config) *EnvSettingsSource {
	s := domain.DefaultSettings()
	s.Maintenance = cfg.Maintenance
	if cfg.PricingMode != "" {
		s.PricingMode = domain.PricingMode(cfg.PricingMode)
	}
	if cfg.SellRate > 0 {
		s.Rate = cfg.SellRate
	}
	if cfg.BuyRate > 0 {
		s.BuyRate = cfg.BuyRate
	}
	if cfg.MarkupType != "" {
		s.MarkupType = domain.MarkupType(cfg.MarkupType)
	}
	if cfg.MarkupValue > 0 {
		s.MarkupValue = cfg.MarkupValue
	}
	if cfg.ReferralPercent > 0 {
		s.ReferralPercent = cfg.ReferralPercent
	}
	return &EnvSettingsSource{settings: s}
}

// Get returns the current settings snapshot.
func (s *EnvSettingsSource) Get(ctx context.Context) (domain.Settings, error) {
	return s.settings, nil
}
