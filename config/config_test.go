package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vaultd.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vault.PerformanceFeeBps != 1_000 || cfg.Vault.ManagementFeeBps != 200 {
		t.Fatalf("unexpected vault fees: %+v", cfg.Vault)
	}
	if cfg.Farm.LockPeriod != 21_600 || cfg.Farm.ExitPenaltyBps != 50 {
		t.Fatalf("unexpected farm defaults: %+v", cfg.Farm)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Gateway.ListenAddress != cfg.Gateway.ListenAddress {
		t.Fatalf("reloaded listen address %q, want %q", reloaded.Gateway.ListenAddress, cfg.Gateway.ListenAddress)
	}
	if reloaded.TradeFactory.SwapRate != cfg.TradeFactory.SwapRate {
		t.Fatalf("swap rate did not survive round trip")
	}
}

func TestLoadOverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultd.toml")
	contents := `DataDir = "./data"
GenesisTime = 1700000000

[vault]
Governance = "0x00000000000000000000000000000000000000aa"
DepositLimit = "1_000_000000000000000000"
PerformanceFeeBps = 2000

[strategy]
Strategist = "@alice"
CreditThreshold = "5"

[farm]
ExitPenaltyBps = 0
LockPeriodSeconds = 0

[gateway]
ListenAddress = "127.0.0.1:9999"
AllowClockControl = true

[[tokens]]
Symbol = "DAI"
Decimals = 18

[[tokens]]
Symbol = "USDC"
Decimals = 6
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./data" || cfg.GenesisTime != 1_700_000_000 {
		t.Fatalf("unexpected top level: %+v", cfg)
	}
	if cfg.Vault.PerformanceFeeBps != 2_000 || cfg.Vault.ManagementFeeBps != 200 {
		t.Fatalf("expected override plus default, got %+v", cfg.Vault)
	}
	limit, err := OptionalAmount(cfg.Vault.DepositLimit)
	if err != nil || limit == nil || limit.String() != "1000000000000000000000" {
		t.Fatalf("unexpected deposit limit %v (%v)", limit, err)
	}
	if cfg.Strategy.Strategist != "@alice" || cfg.Strategy.Keeper != "@keeper" {
		t.Fatalf("unexpected strategy roles: %+v", cfg.Strategy)
	}
	if !cfg.Gateway.AllowClockControl || cfg.Gateway.ListenAddress != "127.0.0.1:9999" {
		t.Fatalf("unexpected gateway: %+v", cfg.Gateway)
	}
	if len(cfg.Tokens) != 2 || cfg.Tokens[0] != (Token{Symbol: "DAI", Decimals: 18}) || cfg.Tokens[1] != (Token{Symbol: "USDC", Decimals: 6}) {
		t.Fatalf("unexpected tokens: %+v", cfg.Tokens)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultd.toml")
	if err := os.WriteFile(path, []byte("[vault]\nPerfFee = 10\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "vault.PerfFee") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"default", func(*Config) {}, ""},
		{"performance fee", func(c *Config) { c.Vault.PerformanceFeeBps = 5_001 }, "vault.PerformanceFeeBps"},
		{"debt ratio", func(c *Config) { c.Strategy.DebtRatioBps = 10_001 }, "strategy.DebtRatioBps"},
		{"penalty without lock", func(c *Config) { c.Farm.LockPeriod = 0 }, "LockPeriodSeconds"},
		{"report delays", func(c *Config) { c.Strategy.MinReportDelay = c.Strategy.MaxReportDelay + 1 }, "report delay"},
		{"governance", func(c *Config) { c.Vault.Governance = "" }, "vault.Governance"},
		{"guardian", func(c *Config) { c.Vault.Guardian = "0x123" }, "vault.Guardian"},
		{"mechanic", func(c *Config) { c.TradeFactory.Mechanics = []string{"nope"} }, "Mechanics[0]"},
		{"negative amount", func(c *Config) { c.Strategy.TendThreshold = "-1" }, "strategy.TendThreshold"},
		{"bad amount", func(c *Config) { c.Farm.RewardRatePerSecond = "1.5" }, "farm.RewardRatePerSecond"},
		{"degradation", func(c *Config) { c.Vault.LockedProfitDegradation = "1000000000000000001" }, "LockedProfitDegradation"},
		{"burst", func(c *Config) { c.Gateway.RateLimitBurst = 0 }, "RateLimitBurst"},
		{"tracing", func(c *Config) { c.Observability.TracingEnabled = true }, "OTLPEndpoint"},
		{"sample ratio", func(c *Config) { c.Observability.TraceSampleRatio = 1.5 }, "TraceSampleRatio"},
		{"data dir", func(c *Config) { c.DataDir = " " }, "DataDir"},
		{"token symbol", func(c *Config) { c.Tokens = append(c.Tokens, Token{}) }, "tokens[1].Symbol"},
		{"token clash", func(c *Config) { c.Tokens = append(c.Tokens, Token{Symbol: "tru"}) }, "farm.RewardSymbol"},
		{"duplicate token", func(c *Config) { c.Tokens = append(c.Tokens, Token{Symbol: "weth"}) }, "tokens[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestOptionalAddress(t *testing.T) {
	addr, err := OptionalAddress("")
	if err != nil || addr != (common.Address{}) {
		t.Fatalf("expected zero address, got %v (%v)", addr, err)
	}
	labelled, err := OptionalAddress("@governance")
	if err != nil || labelled == (common.Address{}) {
		t.Fatalf("expected derived address, got %v (%v)", labelled, err)
	}
}
