package infra

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"robumart"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"robumart"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"robumart"`

	// Redis (pricing + stock caches)
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	// JWT
	JWTSecret      string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTUserExpiry  string `env:"JWT_USER_EXPIRY" envDefault:"24h"`
	JWTAdminExpiry string `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Cron entrypoint auth
	CronSecret string `env:"CRON_SECRET"`

	// Upstream fulfillment supplier
	SupplierBaseURL string `env:"SUPPLIER_BASE_URL" envDefault:"https://api.rbxcrate.com"`
	SupplierAPIKey  string `env:"SUPPLIER_API_KEY"`

	// CryptoPay (invoice-based crypto channel)
	CryptoPayBaseURL string `env:"CRYPTOPAY_BASE_URL" envDefault:"https://pay.crypt.bot/api"`
	CryptoPayToken   string `env:"CRYPTOPAY_TOKEN"`
	CryptoPayAssets  string `env:"CRYPTOPAY_ASSETS"` // comma-separated accepted assets, empty = all

	// PayLink (fiat gateway channel)
	PayLinkBaseURL string `env:"PAYLINK_BASE_URL" envDefault:"https://pal24.pro/api/v1"`
	PayLinkToken   string `env:"PAYLINK_TOKEN"`
	PayLinkShopID  string `env:"PAYLINK_SHOP_ID"`

	// Exchange (peer-transfer-by-uid channel)
	ExchangeBaseURL   string `env:"EXCHANGE_BASE_URL" envDefault:"https://api.bybit.com"`
	ExchangeAPIKey    string `env:"EXCHANGE_API_KEY"`
	ExchangeAPISecret string `env:"EXCHANGE_API_SECRET"`

	// Telegram login widget
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	// Business settings (env-backed SettingsSource)
	Maintenance     bool    `env:"SHOP_MAINTENANCE" envDefault:"false"`
	PricingMode     string  `env:"PRICING_MODE" envDefault:"manual"`
	SellRate        float64 `env:"SELL_RATE" envDefault:"0.70"`
	BuyRate         float64 `env:"BUY_RATE" envDefault:"0.50"`
	MarkupType      string  `env:"MARKUP_TYPE" envDefault:"percent"`
	MarkupValue     float64 `env:"MARKUP_VALUE" envDefault:"15"`
	ReferralPercent float64 `env:"REFERRAL_PERCENT" envDefault:"5"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required; the reconciliation entrypoints must not be open")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
