// Package config provides configuration management for the pair-trading application.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	apperrors "pair-trader/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Trading    TradingConfig    `mapstructure:"trading"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	Mode        string  `mapstructure:"mode"` // "live", "sim"
	InitialCash float64 `mapstructure:"initial_cash"`
}

// StrategiesConfig holds per-strategy instrument pairs and budgets.
//
// Pairs[i] lists the instruments traded together by strategy i. Budgets[i]
// is the fraction of total equity strategy i may hold in live exposure;
// with BudgetAvgMode each strategy gets an equal 1/n share instead.
type StrategiesConfig struct {
	Pairs         [][]string    `mapstructure:"pairs"`
	Budgets       []float64     `mapstructure:"budgets"`
	BudgetAvgMode bool          `mapstructure:"budget_avg_mode"`
	Period        time.Duration `mapstructure:"period"`
}

// ReconcilerConfig holds order-reconciliation configuration.
type ReconcilerConfig struct {
	GraceDelay   time.Duration `mapstructure:"grace_delay"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	Policy       string        `mapstructure:"policy"` // "cancel_all", "rebalance"
	SlidingPoint float64       `mapstructure:"sliding_point"`
}

// GatewayConfig holds execution-gateway connection configuration.
type GatewayConfig struct {
	Address           string        `mapstructure:"address"`
	AccountID         string        `mapstructure:"account_id"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/pair-trader"
	}
	return filepath.Join(home, ".config", "pair-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := writeTemplateConfig(configDir); werr != nil {
				return nil, apperrors.Wrap(werr, "creating config template")
			}
			return nil, apperrors.Wrapf(err, "no config found, template written to %s", configDir)
		}
		return nil, apperrors.Wrap(err, "reading config.toml")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, "unmarshalling config")
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.mode", "sim")
	v.SetDefault("trading.initial_cash", 100000.0)
	v.SetDefault("strategies.budget_avg_mode", true)
	v.SetDefault("strategies.period", "30s")
	v.SetDefault("reconciler.grace_delay", "5s")
	v.SetDefault("reconciler.tick_interval", "1s")
	v.SetDefault("reconciler.policy", "cancel_all")
	v.SetDefault("reconciler.sliding_point", 0.0005)
	v.SetDefault("gateway.timeout", "3s")
	v.SetDefault("gateway.reconnect_attempts", 3)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAIR_TRADER_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("PAIR_TRADER_GATEWAY"); v != "" {
		cfg.Gateway.Address = v
	}
	if v := os.Getenv("PAIR_TRADER_ACCOUNT"); v != "" {
		cfg.Gateway.AccountID = v
	}
}

// Validate validates the configuration. Budget shape errors are fatal here,
// at startup, so that admission checks never have to revalidate per call.
func (c *Config) Validate() error {
	if c.Trading.Mode != "live" && c.Trading.Mode != "sim" {
		return apperrors.NewConfigError("trading.mode", c.Trading.Mode, "must be 'live' or 'sim'")
	}
	if c.Trading.InitialCash < 0 {
		return apperrors.NewConfigError("trading.initial_cash", c.Trading.InitialCash, "must be non-negative")
	}
	if len(c.Strategies.Pairs) == 0 {
		return apperrors.NewConfigError("strategies.pairs", nil, "at least one strategy pair required")
	}
	for i, pair := range c.Strategies.Pairs {
		if len(pair) == 0 {
			return apperrors.NewConfigError("strategies.pairs", i, "strategy has no instruments")
		}
	}
	if !c.Strategies.BudgetAvgMode && len(c.Strategies.Budgets) != len(c.Strategies.Pairs) {
		return apperrors.NewConfigError("strategies.budgets", len(c.Strategies.Budgets),
			"budget list length must match the number of strategy pairs")
	}
	for i, b := range c.Strategies.Budgets {
		if b < 0 || b > 1 {
			return apperrors.NewConfigError("strategies.budgets", i, "budget must be between 0.0 and 1.0")
		}
	}
	if c.Reconciler.GraceDelay <= 0 {
		return apperrors.NewConfigError("reconciler.grace_delay", c.Reconciler.GraceDelay, "must be positive")
	}
	if c.Reconciler.TickInterval <= 0 {
		return apperrors.NewConfigError("reconciler.tick_interval", c.Reconciler.TickInterval, "must be positive")
	}
	if c.Reconciler.Policy != "cancel_all" && c.Reconciler.Policy != "rebalance" {
		return apperrors.NewConfigError("reconciler.policy", c.Reconciler.Policy, "must be 'cancel_all' or 'rebalance'")
	}
	if c.Reconciler.SlidingPoint < 0 {
		return apperrors.NewConfigError("reconciler.sliding_point", c.Reconciler.SlidingPoint, "must be non-negative")
	}
	if c.Trading.Mode == "live" && c.Gateway.Address == "" {
		return apperrors.NewConfigError("gateway.address", "", "required in live mode")
	}
	return nil
}

// IsSimMode returns true if simulated trading mode is enabled.
func (c *Config) IsSimMode() bool {
	return c.Trading.Mode == "sim"
}

// NumStrategies returns the number of configured strategies.
func (c *Config) NumStrategies() int {
	return len(c.Strategies.Pairs)
}
