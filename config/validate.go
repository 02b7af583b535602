package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/crypto"
	nativecommon "vaultchain/native/common"
)

// Validate checks basis points, durations, addresses and amounts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must not be empty")
	}
	bps := []struct {
		name  string
		value uint64
		max   uint64
	}{
		{"vault.PerformanceFeeBps", c.Vault.PerformanceFeeBps, nativecommon.MaxBPS / 2},
		{"vault.ManagementFeeBps", c.Vault.ManagementFeeBps, nativecommon.MaxBPS},
		{"strategy.DebtRatioBps", c.Strategy.DebtRatioBps, nativecommon.MaxBPS},
		{"strategy.PerformanceFeeBps", c.Strategy.PerformanceFeeBps, nativecommon.MaxBPS / 2},
		{"farm.BaseAPRBps", c.Farm.BaseAPRBps, nativecommon.MaxBPS},
		{"farm.FeeAPRBps", c.Farm.FeeAPRBps, nativecommon.MaxBPS},
		{"farm.ExitPenaltyBps", c.Farm.ExitPenaltyBps, nativecommon.MaxBPS},
	}
	for _, b := range bps {
		if b.value > b.max {
			return fmt.Errorf("%s: %d exceeds %d", b.name, b.value, b.max)
		}
	}
	if c.Farm.ExitPenaltyBps > 0 && c.Farm.LockPeriod == 0 {
		return fmt.Errorf("farm.LockPeriodSeconds must be positive when an exit penalty is set")
	}
	if c.Strategy.MaxReportDelay < c.Strategy.MinReportDelay {
		return fmt.Errorf("strategy: max report delay %d below min report delay %d", c.Strategy.MaxReportDelay, c.Strategy.MinReportDelay)
	}

	for name, value := range map[string]string{
		"vault.Governance":    c.Vault.Governance,
		"strategy.Strategist": c.Strategy.Strategist,
	} {
		if _, err := crypto.ParseAddress(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	for name, value := range map[string]string{
		"vault.Management": c.Vault.Management,
		"vault.Guardian":   c.Vault.Guardian,
		"vault.Rewards":    c.Vault.Rewards,
		"strategy.Keeper":  c.Strategy.Keeper,
		"strategy.Rewards": c.Strategy.Rewards,
	} {
		if _, err := OptionalAddress(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	seen := map[string]string{
		strings.ToUpper(strings.TrimSpace(c.Vault.WantSymbol)):        "vault.WantSymbol",
		strings.ToUpper(strings.TrimSpace(c.Farm.RewardSymbol)):       "farm.RewardSymbol",
		"YV" + strings.ToUpper(strings.TrimSpace(c.Vault.WantSymbol)): "vault share",
	}
	for i, tok := range c.Tokens {
		symbol := strings.ToUpper(strings.TrimSpace(tok.Symbol))
		if symbol == "" {
			return fmt.Errorf("tokens[%d].Symbol must not be empty", i)
		}
		if other, dup := seen[symbol]; dup {
			return fmt.Errorf("tokens[%d].Symbol %q clashes with %s", i, tok.Symbol, other)
		}
		seen[symbol] = fmt.Sprintf("tokens[%d]", i)
	}
	for i, mechanic := range c.TradeFactory.Mechanics {
		if _, err := crypto.ParseAddress(mechanic); err != nil {
			return fmt.Errorf("tradefactory.Mechanics[%d]: %w", i, err)
		}
	}

	for name, value := range map[string]string{
		"vault.DepositLimit":            c.Vault.DepositLimit,
		"vault.LockedProfitDegradation": c.Vault.LockedProfitDegradation,
		"strategy.MinDebtPerHarvest":    c.Strategy.MinDebtPerHarvest,
		"strategy.MaxDebtPerHarvest":    c.Strategy.MaxDebtPerHarvest,
		"strategy.DebtThreshold":        c.Strategy.DebtThreshold,
		"strategy.CreditThreshold":      c.Strategy.CreditThreshold,
		"strategy.TendThreshold":        c.Strategy.TendThreshold,
		"farm.RewardRatePerSecond":      c.Farm.RewardRatePerSecond,
		"tradefactory.SwapRate":         c.TradeFactory.SwapRate,
	} {
		if _, err := OptionalAmount(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if degradation, _ := OptionalAmount(c.Vault.LockedProfitDegradation); degradation != nil && degradation.Cmp(nativecommon.DegradationCoefficient) > 0 {
		return fmt.Errorf("vault.LockedProfitDegradation exceeds %s", nativecommon.DegradationCoefficient)
	}

	if c.Gateway.RateLimitPerSecond < 0 || c.Gateway.RateLimitBurst < 0 {
		return fmt.Errorf("gateway: rate limits must not be negative")
	}
	if c.Gateway.RateLimitPerSecond > 0 && c.Gateway.RateLimitBurst == 0 {
		return fmt.Errorf("gateway.RateLimitBurst must be positive when a rate is set")
	}
	if c.Observability.TracingEnabled && strings.TrimSpace(c.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.OTLPEndpoint required when tracing is enabled")
	}
	if r := c.Observability.TraceSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("observability.TraceSampleRatio must be within [0, 1], got %v", r)
	}
	return nil
}

// OptionalAddress parses value, returning the zero address for an empty
// string.
func OptionalAddress(value string) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return common.Address{}, nil
	}
	return crypto.ParseAddress(value)
}

// OptionalAmount parses a non-negative base-unit decimal string. An empty
// string yields nil.
func OptionalAmount(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	if err := nativecommon.CheckWord(amount); err != nil {
		return nil, err
	}
	return amount, nil
}
