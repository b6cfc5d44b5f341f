// Package config loads and validates the agent's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves fields unset.
const (
	DefaultMinLiquidityRatio = 10.0
	DefaultNetwork           = "finney"
	DefaultLogFile           = "logs/dca.log"
	DefaultLogLevel          = "info"
)

// ErrInvalid is returned when a loaded config fails validation.
var ErrInvalid = errors.New("invalid config")

// Config holds the agent's settings, loaded once and immutable afterwards.
type Config struct {
	WalletName        string  `yaml:"wallet_name"`
	ValidatorHotkey   string  `yaml:"validator_hotkey"`
	StakeAmount       float64 `yaml:"stake_amount"`
	TargetNetuid      *int    `yaml:"target_netuid"`
	Whitelist         []int   `yaml:"whitelist"`
	MinLiquidityRatio float64 `yaml:"min_liquidity_ratio"`
	Network           string  `yaml:"network"`
	LogFile           string  `yaml:"log_file"`
	LogLevel          string  `yaml:"log_level"`
	DryRun            bool    `yaml:"dry_run"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MinLiquidityRatio == 0 {
		c.MinLiquidityRatio = DefaultMinLiquidityRatio
	}
	if c.Network == "" {
		c.Network = DefaultNetwork
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate enforces required fields and the target-mode invariant:
// exactly one of target_netuid and a non-empty whitelist must be set.
func (c *Config) Validate() error {
	if c.WalletName == "" {
		return fmt.Errorf("%w: wallet_name is required", ErrInvalid)
	}
	if c.ValidatorHotkey == "" {
		return fmt.Errorf("%w: validator_hotkey is required", ErrInvalid)
	}
	if c.StakeAmount <= 0 {
		return fmt.Errorf("%w: stake_amount must be positive", ErrInvalid)
	}
	if c.MinLiquidityRatio <= 0 {
		return fmt.Errorf("%w: min_liquidity_ratio must be positive", ErrInvalid)
	}
	if c.TargetNetuid == nil && len(c.Whitelist) == 0 {
		return fmt.Errorf("%w: either target_netuid or whitelist must be set", ErrInvalid)
	}
	if c.TargetNetuid != nil && len(c.Whitelist) > 0 {
		return fmt.Errorf("%w: target_netuid and whitelist are mutually exclusive", ErrInvalid)
	}
	return nil
}
