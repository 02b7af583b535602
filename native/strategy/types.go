package strategy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/native/vault"
)

// VaultAPI is the strategy's view of the vault it reports to.
type VaultAPI interface {
	Address() common.Address
	Token() common.Address
	Governance() common.Address
	Management() common.Address
	Guardian() common.Address
	EmergencyShutdown() bool
	StrategyParams(strategy common.Address) (*vault.StrategyParams, bool)
	CreditAvailable(strategy common.Address) *big.Int
	DebtOutstanding(strategy common.Address) *big.Int
	Report(caller common.Address, gain, loss, debtPayment *big.Int) (*vault.ReportResult, error)
	RevokeStrategy(caller, strategy common.Address) error
}

// Farm is the yield position the strategy deploys into.
type Farm interface {
	Address() common.Address
	Deposit(account common.Address, amount *big.Int) (*big.Int, error)
	Withdraw(account common.Address, lp *big.Int) (*big.Int, *big.Int, error)
	ClaimRewards(account common.Address) (*big.Int, error)
	ClaimFees(account common.Address) (*big.Int, error)
	BalanceOf(account common.Address) *big.Int
	UnderlyingValue(lp *big.Int) *big.Int
	LPForUnderlying(amount *big.Int) *big.Int
	ExitPenalty(account common.Address, lp *big.Int) *big.Int
	PenaltyBps(account common.Address) uint64
	PendingRewards(account common.Address) *big.Int
	PendingFees(account common.Address) *big.Int
	VirtualPrice() *big.Int
}

// TradeFactory is the relayer the strategy delegates reward sales to.
type TradeFactory interface {
	Address() common.Address
	Enable(strategy, tokenIn, tokenOut common.Address) error
	Disable(strategy, tokenIn, tokenOut common.Address) error
}

// Defaults mirror the reference strategy deployment.
const (
	DefaultMinReportDelay uint64 = 0
	DefaultMaxReportDelay uint64 = 30 * 24 * 60 * 60
	DefaultProfitFactor   uint64 = 100
)

// Config holds the deployment parameters of a strategy.
type Config struct {
	Address    common.Address
	Strategist common.Address
	Keeper     common.Address
	Rewards    common.Address

	MinReportDelay uint64
	MaxReportDelay uint64
	ProfitFactor   uint64
	// DebtThreshold, CreditThreshold and TendThreshold are want amounts. A
	// nil CreditThreshold disables the credit trigger.
	DebtThreshold   *big.Int
	CreditThreshold *big.Int
	TendThreshold   *big.Int
}

// HarvestReceipt mirrors the Harvested event.
type HarvestReceipt struct {
	Profit          *big.Int
	Loss            *big.Int
	DebtPayment     *big.Int
	DebtOutstanding *big.Int
	Credit          *big.Int
	Fees            *big.Int
	Timestamp       uint64
}

// Status is a read-only view of the strategy.
type Status struct {
	Address              common.Address
	Vault                common.Address
	Want                 common.Address
	RewardToken          common.Address
	Farm                 common.Address
	TradeFactory         common.Address
	Strategist           common.Address
	Keeper               common.Address
	EmergencyExit        bool
	EstimatedTotalAssets *big.Int
	IdleWant             *big.Int
	TotalLP              *big.Int
	VirtualPrice         *big.Int
	ExitPenaltyWant      *big.Int
	PendingRewards       *big.Int
	PendingFees          *big.Int
	TotalDebt            *big.Int
	DebtRatio            uint64
	LastReport           uint64
	MinReportDelay       uint64
	MaxReportDelay       uint64
	ProfitFactor         uint64
	DebtThreshold        *big.Int
	CreditThreshold      *big.Int
	TendThreshold        *big.Int
}
