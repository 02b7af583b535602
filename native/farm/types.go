package farm

import (
	"fmt"
	"math/big"

	nativecommon "vaultchain/native/common"
)

// Params configures the yield and exit schedule of a pool.
type Params struct {
	// BaseAPRBps grows the pool's underlying balance, lifting the LP virtual
	// price.
	BaseAPRBps uint64
	// FeeAPRBps accrues claimable want per LP, paid out by ClaimFees.
	FeeAPRBps uint64
	// RewardRatePerSecond is the reward token emission per 1e18 LP per second.
	RewardRatePerSecond *big.Int
	// ExitPenaltyBps is the penalty charged on a withdrawal made right after
	// entry. It decays linearly to zero over LockPeriod seconds.
	ExitPenaltyBps uint64
	LockPeriod     uint64
}

// Clone returns a deep copy of the parameters.
func (p Params) Clone() Params {
	clone := p
	clone.RewardRatePerSecond = nativecommon.Clone(p.RewardRatePerSecond)
	return clone
}

// Validate checks the basis point bounds.
func (p Params) Validate() error {
	if p.BaseAPRBps > nativecommon.MaxBPS {
		return fmt.Errorf("farm: base apr %d exceeds %d bps", p.BaseAPRBps, nativecommon.MaxBPS)
	}
	if p.FeeAPRBps > nativecommon.MaxBPS {
		return fmt.Errorf("farm: fee apr %d exceeds %d bps", p.FeeAPRBps, nativecommon.MaxBPS)
	}
	if p.ExitPenaltyBps > nativecommon.MaxBPS {
		return fmt.Errorf("farm: exit penalty %d exceeds %d bps", p.ExitPenaltyBps, nativecommon.MaxBPS)
	}
	if p.RewardRatePerSecond != nil && p.RewardRatePerSecond.Sign() < 0 {
		return fmt.Errorf("farm: reward rate must not be negative")
	}
	return nil
}

// Position is a single holder's stake in the pool.
type Position struct {
	LP *big.Int
	// EntryTime is the LP-weighted average deposit timestamp used by the exit
	// penalty schedule.
	EntryTime       uint64
	RewardIndexPaid *big.Int
	FeeIndexPaid    *big.Int
	PendingReward   *big.Int
	PendingFee      *big.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	return &Position{
		LP:              nativecommon.Clone(p.LP),
		EntryTime:       p.EntryTime,
		RewardIndexPaid: nativecommon.Clone(p.RewardIndexPaid),
		FeeIndexPaid:    nativecommon.Clone(p.FeeIndexPaid),
		PendingReward:   nativecommon.Clone(p.PendingReward),
		PendingFee:      nativecommon.Clone(p.PendingFee),
	}
}

func newPosition() *Position {
	return &Position{
		LP:              big.NewInt(0),
		RewardIndexPaid: big.NewInt(0),
		FeeIndexPaid:    big.NewInt(0),
		PendingReward:   big.NewInt(0),
		PendingFee:      big.NewInt(0),
	}
}

// Totals summarises the pool balance sheet.
type Totals struct {
	TotalLP      *big.Int
	Underlying   *big.Int
	FeeReserve   *big.Int
	Retained     *big.Int
	VirtualPrice *big.Int
	RewardIndex  *big.Int
	FeeIndex     *big.Int
	LastAccrual  uint64
}
