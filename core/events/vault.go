package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/types"
)

const (
	TypeVaultDeposit           = "vault.deposit"
	TypeVaultWithdraw          = "vault.withdraw"
	TypeVaultStrategyAdded     = "vault.strategy_added"
	TypeVaultStrategyReported  = "vault.strategy_reported"
	TypeVaultDebtRatioUpdated  = "vault.debt_ratio_updated"
	TypeVaultStrategyRevoked   = "vault.strategy_revoked"
	TypeVaultEmergencyShutdown = "vault.emergency_shutdown"
	TypeVaultParamUpdated      = "vault.param_updated"
)

type VaultDeposit struct {
	Vault     common.Address
	Recipient common.Address
	Amount    *big.Int
	Shares    *big.Int
}

func (VaultDeposit) EventType() string { return TypeVaultDeposit }

func (e VaultDeposit) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeposit,
		Attributes: map[string]string{
			"vault":     formatAddress(e.Vault),
			"recipient": formatAddress(e.Recipient),
			"amount":    formatAmount(e.Amount),
			"shares":    formatAmount(e.Shares),
		},
	}
}

type VaultWithdraw struct {
	Vault     common.Address
	Owner     common.Address
	Recipient common.Address
	Shares    *big.Int
	Value     *big.Int
	Loss      *big.Int
}

func (VaultWithdraw) EventType() string { return TypeVaultWithdraw }

func (e VaultWithdraw) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultWithdraw,
		Attributes: map[string]string{
			"vault":     formatAddress(e.Vault),
			"owner":     formatAddress(e.Owner),
			"recipient": formatAddress(e.Recipient),
			"shares":    formatAmount(e.Shares),
			"value":     formatAmount(e.Value),
			"loss":      formatAmount(e.Loss),
		},
	}
}

type VaultStrategyAdded struct {
	Vault             common.Address
	Strategy          common.Address
	DebtRatio         uint64
	MinDebtPerHarvest *big.Int
	MaxDebtPerHarvest *big.Int
	PerformanceFee    uint64
}

func (VaultStrategyAdded) EventType() string { return TypeVaultStrategyAdded }

func (e VaultStrategyAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultStrategyAdded,
		Attributes: map[string]string{
			"vault":             formatAddress(e.Vault),
			"strategy":          formatAddress(e.Strategy),
			"debtRatio":         uintToString(e.DebtRatio),
			"minDebtPerHarvest": formatAmount(e.MinDebtPerHarvest),
			"maxDebtPerHarvest": formatAmount(e.MaxDebtPerHarvest),
			"performanceFee":    uintToString(e.PerformanceFee),
		},
	}
}

// VaultStrategyReported is emitted for every harvest report the vault
// accepts. Totals are post-report values.
type VaultStrategyReported struct {
	Vault      common.Address
	Strategy   common.Address
	Gain       *big.Int
	Loss       *big.Int
	DebtPaid   *big.Int
	TotalGain  *big.Int
	TotalLoss  *big.Int
	TotalDebt  *big.Int
	DebtAdded  *big.Int
	DebtRatio  uint64
	FeeShares  *big.Int
	LockedGain *big.Int
}

func (VaultStrategyReported) EventType() string { return TypeVaultStrategyReported }

func (e VaultStrategyReported) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultStrategyReported,
		Attributes: map[string]string{
			"vault":      formatAddress(e.Vault),
			"strategy":   formatAddress(e.Strategy),
			"gain":       formatAmount(e.Gain),
			"loss":       formatAmount(e.Loss),
			"debtPaid":   formatAmount(e.DebtPaid),
			"totalGain":  formatAmount(e.TotalGain),
			"totalLoss":  formatAmount(e.TotalLoss),
			"totalDebt":  formatAmount(e.TotalDebt),
			"debtAdded":  formatAmount(e.DebtAdded),
			"debtRatio":  uintToString(e.DebtRatio),
			"feeShares":  formatAmount(e.FeeShares),
			"lockedGain": formatAmount(e.LockedGain),
		},
	}
}

type VaultDebtRatioUpdated struct {
	Vault     common.Address
	Strategy  common.Address
	DebtRatio uint64
}

func (VaultDebtRatioUpdated) EventType() string { return TypeVaultDebtRatioUpdated }

func (e VaultDebtRatioUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDebtRatioUpdated,
		Attributes: map[string]string{
			"vault":     formatAddress(e.Vault),
			"strategy":  formatAddress(e.Strategy),
			"debtRatio": uintToString(e.DebtRatio),
		},
	}
}

type VaultStrategyRevoked struct {
	Vault    common.Address
	Strategy common.Address
}

func (VaultStrategyRevoked) EventType() string { return TypeVaultStrategyRevoked }

func (e VaultStrategyRevoked) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultStrategyRevoked,
		Attributes: map[string]string{
			"vault":    formatAddress(e.Vault),
			"strategy": formatAddress(e.Strategy),
		},
	}
}

type VaultEmergencyShutdown struct {
	Vault  common.Address
	Active bool
}

func (VaultEmergencyShutdown) EventType() string { return TypeVaultEmergencyShutdown }

func (e VaultEmergencyShutdown) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultEmergencyShutdown,
		Attributes: map[string]string{
			"vault":  formatAddress(e.Vault),
			"active": boolToString(e.Active),
		},
	}
}

// VaultParamUpdated covers the governance setters (fees, limits, roles).
type VaultParamUpdated struct {
	Vault common.Address
	Name  string
	Value string
}

func (VaultParamUpdated) EventType() string { return TypeVaultParamUpdated }

func (e VaultParamUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultParamUpdated,
		Attributes: map[string]string{
			"vault": formatAddress(e.Vault),
			"name":  e.Name,
			"value": e.Value,
		},
	}
}
