package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// VaultCheckpoint is the persisted view of the vault after the last
// committed transaction.
type VaultCheckpoint struct {
	Height            uint64
	Timestamp         uint64
	TotalAssets       *big.Int
	TotalIdle         *big.Int
	TotalDebt         *big.Int
	TotalSupply       *big.Int
	PricePerShare     *big.Int
	LockedProfit      *big.Int
	DebtRatio         uint64
	LastReport        uint64
	EmergencyShutdown bool
}

// StrategyCheckpoint is the persisted view of a strategy.
type StrategyCheckpoint struct {
	Address              common.Address
	Height               uint64
	Timestamp            uint64
	EstimatedTotalAssets *big.Int
	TotalDebt            *big.Int
	TotalLP              *big.Int
	DebtRatio            uint64
	LastReport           uint64
	EmergencyExit        bool
}

// ReportRecord is one accepted harvest.
type ReportRecord struct {
	Seq             uint64
	Strategy        common.Address
	Height          uint64
	Timestamp       uint64
	Profit          *big.Int
	Loss            *big.Int
	DebtPayment     *big.Int
	DebtOutstanding *big.Int
	Credit          *big.Int
	Fees            *big.Int
	PricePerShare   *big.Int
}

// TradeRecord is one settled trade factory execution.
type TradeRecord struct {
	Seq       uint64
	ID        string
	Strategy  common.Address
	Swapper   common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	Height    uint64
	Timestamp uint64
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func (c *VaultCheckpoint) normalize() {
	c.TotalAssets = orZero(c.TotalAssets)
	c.TotalIdle = orZero(c.TotalIdle)
	c.TotalDebt = orZero(c.TotalDebt)
	c.TotalSupply = orZero(c.TotalSupply)
	c.PricePerShare = orZero(c.PricePerShare)
	c.LockedProfit = orZero(c.LockedProfit)
}

func (c *StrategyCheckpoint) normalize() {
	c.EstimatedTotalAssets = orZero(c.EstimatedTotalAssets)
	c.TotalDebt = orZero(c.TotalDebt)
	c.TotalLP = orZero(c.TotalLP)
}

func (r *ReportRecord) normalize() {
	r.Profit = orZero(r.Profit)
	r.Loss = orZero(r.Loss)
	r.DebtPayment = orZero(r.DebtPayment)
	r.DebtOutstanding = orZero(r.DebtOutstanding)
	r.Credit = orZero(r.Credit)
	r.Fees = orZero(r.Fees)
	r.PricePerShare = orZero(r.PricePerShare)
}

func (r *TradeRecord) normalize() {
	r.AmountIn = orZero(r.AmountIn)
	r.AmountOut = orZero(r.AmountOut)
}
