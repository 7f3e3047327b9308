package application

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	sales "secursales/internal/sales/domain"
)

// TierConfig is one markup tier as written in YAML. Rates are decimal strings.
type TierConfig struct {
	UpTo int64  `yaml:"up_to"`
	Rate string `yaml:"rate"`
}

// Config holds the tunable sales policy.
type Config struct {
	MarkupTiers             []TierConfig `yaml:"markup_tiers"`
	MarkupAbove             string       `yaml:"markup_above"`
	MaxInstallments         int          `yaml:"max_installments"`
	InstallmentIntervalDays int          `yaml:"installment_interval_days"`
}

// DefaultConfig returns the standard sales policy.
func DefaultConfig() Config {
	return Config{
		MaxInstallments:         sales.DefaultMaxInstallments,
		InstallmentIntervalDays: sales.DefaultInstallmentIntervalDays,
	}
}

// LoadConfig reads a YAML policy file over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML policy over the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.MaxInstallments <= 0 {
		return cfg, errors.New("sales config: max_installments must be positive")
	}
	if cfg.InstallmentIntervalDays <= 0 {
		return cfg, errors.New("sales config: installment_interval_days must be positive")
	}
	if _, err := cfg.MarkupTable(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MarkupTable builds the configured table, or the default one when no tiers
// are configured.
func (c Config) MarkupTable() (*sales.MarkupTable, error) {
	if len(c.MarkupTiers) == 0 {
		return sales.DefaultMarkupTable(), nil
	}
	if c.MarkupAbove == "" {
		return nil, errors.New("sales config: markup_above required with markup_tiers")
	}
	above, err := decimal.NewFromString(c.MarkupAbove)
	if err != nil {
		return nil, fmt.Errorf("sales config: markup_above: %w", err)
	}
	tiers := make([]sales.MarkupTier, 0, len(c.MarkupTiers))
	for i, tier := range c.MarkupTiers {
		rate, err := decimal.NewFromString(tier.Rate)
		if err != nil {
			return nil, fmt.Errorf("sales config: markup_tiers[%d].rate: %w", i, err)
		}
		tiers = append(tiers, sales.MarkupTier{UpTo: tier.UpTo, Rate: rate})
	}
	return sales.NewMarkupTable(tiers, above)
}

// Pricer builds a pricer applying this policy.
func (c Config) Pricer() (*sales.Pricer, error) {
	table, err := c.MarkupTable()
	if err != nil {
		return nil, err
	}
	return sales.NewPricer(table,
		sales.WithMaxInstallments(c.MaxInstallments),
		sales.WithIntervalDays(c.InstallmentIntervalDays),
	)
}
