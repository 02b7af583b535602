package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "vaultchain/native/common"
)

// MaxStrategies bounds the withdrawal queue.
const MaxStrategies = 20

// Strategy is the vault's view of a strategy contract.
type Strategy interface {
	Address() common.Address
	Vault() common.Address
	Want() common.Address
	Strategist() common.Address
	// EstimatedTotalAssets reports the want the strategy could return.
	EstimatedTotalAssets() *big.Int
	// Withdraw frees up to amountNeeded of want, transfers it to the vault
	// and returns the realised loss. Only the vault may call it.
	Withdraw(caller common.Address, amountNeeded *big.Int) (*big.Int, error)
}

// StrategyParams is the vault's ledger entry for a strategy.
type StrategyParams struct {
	PerformanceFee    uint64
	Activation        uint64
	DebtRatio         uint64
	MinDebtPerHarvest *big.Int
	MaxDebtPerHarvest *big.Int
	LastReport        uint64
	TotalDebt         *big.Int
	TotalGain         *big.Int
	TotalLoss         *big.Int
}

// Clone returns a deep copy of the strategy parameters.
func (p *StrategyParams) Clone() *StrategyParams {
	if p == nil {
		return nil
	}
	return &StrategyParams{
		PerformanceFee:    p.PerformanceFee,
		Activation:        p.Activation,
		DebtRatio:         p.DebtRatio,
		MinDebtPerHarvest: nativecommon.Clone(p.MinDebtPerHarvest),
		MaxDebtPerHarvest: nativecommon.Clone(p.MaxDebtPerHarvest),
		LastReport:        p.LastReport,
		TotalDebt:         nativecommon.Clone(p.TotalDebt),
		TotalGain:         nativecommon.Clone(p.TotalGain),
		TotalLoss:         nativecommon.Clone(p.TotalLoss),
	}
}

// Config captures the deployment parameters of a vault.
type Config struct {
	Governance common.Address
	Management common.Address
	Guardian   common.Address
	Rewards    common.Address
	// DepositLimit caps TotalAssets. Nil means unlimited.
	DepositLimit *big.Int
	// PerformanceFee and ManagementFee are basis points.
	PerformanceFee uint64
	ManagementFee  uint64
	// LockedProfitDegradation is the fraction of locked profit released per
	// second, scaled by DegradationCoefficient. Nil selects the default.
	LockedProfitDegradation *big.Int
}

// Defaults mirror the reference vault deployment.
const (
	DefaultPerformanceFee = 1_000
	DefaultManagementFee  = 200
)

// DefaultLockedProfitDegradation releases locked profit over roughly six hours.
var DefaultLockedProfitDegradation = new(big.Int).Div(
	new(big.Int).Mul(nativecommon.DegradationCoefficient, big.NewInt(46)),
	big.NewInt(1_000_000),
)

// Summary is a read-only view of the vault ledger.
type Summary struct {
	Address           common.Address
	Token             common.Address
	TotalAssets       *big.Int
	TotalIdle         *big.Int
	TotalDebt         *big.Int
	TotalSupply       *big.Int
	PricePerShare     *big.Int
	LockedProfit      *big.Int
	DebtRatio         uint64
	PerformanceFee    uint64
	ManagementFee     uint64
	DepositLimit      *big.Int
	LastReport        uint64
	EmergencyShutdown bool
	WithdrawalQueue   []common.Address
}

// ReportResult summarises an accepted harvest report.
type ReportResult struct {
	DebtOutstanding *big.Int
	Credit          *big.Int
	DebtPaid        *big.Int
	TotalFees       *big.Int
	FeeShares       *big.Int
}
