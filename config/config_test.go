package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boost.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if cfg.GovToken != "GOV" || cfg.LiquidToken != "LGOV" {
		t.Fatalf("default tokens = %s/%s", cfg.GovToken, cfg.LiquidToken)
	}
	if cfg.PlatformFee.RateBps != 1_000 || cfg.PlatformFee.CapBps != 2_000 {
		t.Fatalf("default platform fee = %+v", cfg.PlatformFee)
	}
	if cfg.RewardDurationSeconds != 7*24*60*60 {
		t.Fatalf("default duration = %d", cfg.RewardDurationSeconds)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	path := writeConfig(t, `GovToken = "FXN"
LiquidToken = "LFXN"
FeeToken = "WSTETH"
RewardDurationSeconds = 3600

[platform_fee]
RateBps = 500
CapBps = 2000

[boost_fee]
RateBps = 1700
CapBps = 2000

[call_incentive_fee]
RateBps = 5
CapBps = 100
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GovToken != "FXN" || cfg.LiquidToken != "LFXN" || cfg.FeeToken != "WSTETH" {
		t.Fatalf("tokens = %s/%s/%s", cfg.GovToken, cfg.LiquidToken, cfg.FeeToken)
	}
	if cfg.PlatformFee.RateBps != 500 {
		t.Fatalf("platform rate = %d", cfg.PlatformFee.RateBps)
	}
	if cfg.BoostFee.RateBps != 1_700 {
		t.Fatalf("boost rate = %d", cfg.BoostFee.RateBps)
	}
	if cfg.RewardDurationSeconds != 3_600 {
		t.Fatalf("duration = %d", cfg.RewardDurationSeconds)
	}
}

func TestLoadRejectsRateAboveCap(t *testing.T) {
	path := writeConfig(t, `[platform_fee]
RateBps = 2500
CapBps = 2000
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "platform_fee") {
		t.Fatalf("rate above cap: %v", err)
	}
}

func TestLoadRejectsIdenticalTokens(t *testing.T) {
	path := writeConfig(t, `GovToken = "GOV"
LiquidToken = "GOV"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("identical tokens must fail validation")
	}
}

func TestLoadRejectsMalformedRecipient(t *testing.T) {
	path := writeConfig(t, `PlatformRecipient = "not-an-address"`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "PlatformRecipient") {
		t.Fatalf("malformed recipient: %v", err)
	}
}

func TestRecipientDecoding(t *testing.T) {
	cfg := Default()
	addr, err := cfg.PlatformRecipientAddress()
	if err != nil {
		t.Fatalf("empty recipient: %v", err)
	}
	if !addr.IsZero() {
		t.Fatalf("empty recipient must decode to zero address")
	}
}
