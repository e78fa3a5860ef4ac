// Package config loads the boost protocol parameters from a TOML file and
// validates them before any engine is wired.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"liquidlock/crypto"
)

const (
	defaultGovToken    = "GOV"
	defaultLiquidToken = "LGOV"
	defaultFeeToken    = "FEE"

	defaultPlatformRateBps      = 1_000
	defaultPlatformCapBps       = 2_000
	defaultBoostRateBps         = 1_500
	defaultBoostCapBps          = 2_000
	defaultCallIncentiveRateBps = 10
	defaultCallIncentiveCapBps  = 100

	defaultRewardDurationSeconds = 7 * 24 * 60 * 60

	maxBps = 10_000
)

// FeeSchedule configures one fee category in basis points.
type FeeSchedule struct {
	RateBps uint64 `toml:"RateBps"`
	CapBps  uint64 `toml:"CapBps"`
}

// Config is the full protocol parameter set.
type Config struct {
	GovToken    string `toml:"GovToken"`
	LiquidToken string `toml:"LiquidToken"`
	FeeToken    string `toml:"FeeToken"`

	PlatformRecipient string `toml:"PlatformRecipient"`
	Treasury          string `toml:"Treasury"`
	FeeQueue          string `toml:"FeeQueue"`

	PlatformFee      FeeSchedule `toml:"platform_fee"`
	BoostFee         FeeSchedule `toml:"boost_fee"`
	CallIncentiveFee FeeSchedule `toml:"call_incentive_fee"`

	RewardDurationSeconds uint64 `toml:"RewardDurationSeconds"`
}

// Default returns the parameter set the protocol ships with.
func Default() *Config {
	return &Config{
		GovToken:              defaultGovToken,
		LiquidToken:           defaultLiquidToken,
		FeeToken:              defaultFeeToken,
		PlatformFee:           FeeSchedule{RateBps: defaultPlatformRateBps, CapBps: defaultPlatformCapBps},
		BoostFee:              FeeSchedule{RateBps: defaultBoostRateBps, CapBps: defaultBoostCapBps},
		CallIncentiveFee:      FeeSchedule{RateBps: defaultCallIncentiveRateBps, CapBps: defaultCallIncentiveCapBps},
		RewardDurationSeconds: defaultRewardDurationSeconds,
	}
}

// Load reads the configuration from the given path. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.GovToken) == "" {
		c.GovToken = defaultGovToken
	}
	if strings.TrimSpace(c.LiquidToken) == "" {
		c.LiquidToken = defaultLiquidToken
	}
	if strings.TrimSpace(c.FeeToken) == "" {
		c.FeeToken = defaultFeeToken
	}
	if c.RewardDurationSeconds == 0 {
		c.RewardDurationSeconds = defaultRewardDurationSeconds
	}
}

// Validate rejects parameter sets that would misconfigure the engines.
func (c *Config) Validate() error {
	if c.GovToken == c.LiquidToken {
		return fmt.Errorf("config: GovToken and LiquidToken must differ")
	}
	if err := validateSchedule("platform_fee", c.PlatformFee); err != nil {
		return err
	}
	if err := validateSchedule("boost_fee", c.BoostFee); err != nil {
		return err
	}
	if err := validateSchedule("call_incentive_fee", c.CallIncentiveFee); err != nil {
		return err
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"PlatformRecipient", c.PlatformRecipient},
		{"Treasury", c.Treasury},
		{"FeeQueue", c.FeeQueue},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		if _, err := crypto.DecodeAddress(field.value); err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
	}
	return nil
}

func validateSchedule(name string, fee FeeSchedule) error {
	if fee.CapBps > maxBps {
		return fmt.Errorf("config: %s cap %d exceeds %d bps", name, fee.CapBps, maxBps)
	}
	if fee.RateBps > fee.CapBps {
		return fmt.Errorf("config: %s rate %d exceeds cap %d", name, fee.RateBps, fee.CapBps)
	}
	return nil
}

// PlatformRecipientAddress decodes the configured platform fee recipient.
// An empty field yields the zero address.
func (c *Config) PlatformRecipientAddress() (crypto.Address, error) {
	return decodeOptional(c.PlatformRecipient)
}

// TreasuryAddress decodes the configured boost fee treasury.
func (c *Config) TreasuryAddress() (crypto.Address, error) {
	return decodeOptional(c.Treasury)
}

// FeeQueueAddress decodes the configured fee queue.
func (c *Config) FeeQueueAddress() (crypto.Address, error) {
	return decodeOptional(c.FeeQueue)
}

func decodeOptional(value string) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.Address{}, nil
	}
	return crypto.DecodeAddress(value)
}
