// Package daemon holds the service configuration.
package daemon

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration, loaded from TOML.
type Config struct {
	API     APIConfig     `toml:"api"`
	Store   StoreConfig   `toml:"store"`
	Stripe  StripeConfig  `toml:"stripe"`
	Pricing PricingConfig `toml:"pricing"`
	Limits  LimitsConfig  `toml:"limits"`
	Notify  NotifyConfig  `toml:"notify"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// StripeConfig configures the payment processor. Key material comes from the
// environment when left empty here.
type StripeConfig struct {
	SecretKey      string `toml:"secret_key"`
	WebhookSecret  string `toml:"webhook_secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PricingConfig carries the money constants.
type PricingConfig struct {
	TaxRate         float64 `toml:"tax_rate"`
	ReferralPercent int64   `toml:"referral_percent"`
	MinChargeCents  int64   `toml:"min_charge_cents"`
}

// LimitsConfig configures order-creation admission control.
type LimitsConfig struct {
	WindowSeconds int   `toml:"window_seconds"`
	MaxRequests   int64 `toml:"max_requests"`
	NodeID        int64 `toml:"node_id"`
}

// NotifyConfig configures the confirmation-mail relay.
type NotifyConfig struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DefaultConfig returns production defaults. The tax rate, referral
// percentage, and minimum charge reflect current business rules; the
// minimum charge is the processor's own floor.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8880,
			MetricsEnabled: true,
		},
		Store: StoreConfig{
			Path: "boostd.db",
		},
		Stripe: StripeConfig{
			TimeoutSeconds: 10,
		},
		Pricing: PricingConfig{
			TaxRate:         0.08,
			ReferralPercent: 15,
			MinChargeCents:  50,
		},
		Limits: LimitsConfig{
			WindowSeconds: 60,
			MaxRequests:   30,
			NodeID:        1,
		},
		Notify: NotifyConfig{
			TimeoutSeconds: 5,
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file yields the
// defaults. Stripe keys fall back to STRIPE_SECRET_KEY and
// STRIPE_WEBHOOK_SECRET in the environment.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if cfg.Stripe.SecretKey == "" {
		cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	if cfg.Stripe.WebhookSecret == "" {
		cfg.Stripe.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	}

	return cfg, nil
}
