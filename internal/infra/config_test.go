package infra

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		JWTSecret:  strings.Repeat("s", 32),
		CronSecret: "cron-secret",
	}
}

func TestConfigValidate_Passes(t *testing.T) {
	require.NoError(t, validTestConfig().Validate())
}

func TestConfigValidate_RejectsDefaultJWTSecret(t *testing.T) {
	cfg := validTestConfig()
	cfg.JWTSecret = "change-me-in-production"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestConfigValidate_RejectsShortJWTSecret(t *testing.T) {
	cfg := validTestConfig()
	cfg.JWTSecret = "short"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestConfigValidate_RequiresCronSecret(t *testing.T) {
	cfg := validTestConfig()
	cfg.CronSecret = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRON_SECRET")
}

func TestConfigValidate_InsecureDefaultsBypass(t *testing.T) {
	cfg := &Config{JWTSecret: "change-me-in-production", AllowInsecureDefaults: true}
	assert.NoError(t, cfg.Validate())
}

func TestConfigDSN_PrefersDatabaseURL(t *testing.T) {
	cfg := &Config{
		DatabaseURL: "postgres://u:p@db:5432/shop",
		PGHost:      "ignored",
	}
	assert.Equal(t, "postgres://u:p@db:5432/shop", cfg.DSN())
}
