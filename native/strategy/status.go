package strategy

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "vaultchain/native/common"
)

// Status captures the strategy at the current block time.
func (s *Strategy) Status() Status {
	lp := s.TotalLP()
	status := Status{
		Address:              s.address,
		Vault:                s.vault.Address(),
		Want:                 s.want.Address(),
		RewardToken:          s.reward.Address(),
		Farm:                 s.farm.Address(),
		TradeFactory:         s.TradeFactory(),
		Strategist:           s.strategist,
		Keeper:               s.keeper,
		EmergencyExit:        s.emergencyExit,
		EstimatedTotalAssets: s.EstimatedTotalAssets(),
		IdleWant:             s.IdleWant(),
		TotalLP:              lp,
		VirtualPrice:         s.farm.VirtualPrice(),
		ExitPenaltyWant:      s.ExitPenaltyFeeWant(lp),
		PendingRewards:       s.PendingRewards(),
		PendingFees:          s.PendingFees(),
		TotalDebt:            s.totalDebt(),
		MinReportDelay:       s.minReportDelay,
		MaxReportDelay:       s.maxReportDelay,
		ProfitFactor:         s.profitFactor,
		DebtThreshold:        nativecommon.Clone(s.debtThreshold),
		TendThreshold:        nativecommon.Clone(s.tendThreshold),
	}
	if s.creditThreshold != nil {
		status.CreditThreshold = nativecommon.Clone(s.creditThreshold)
	}
	if params, ok := s.vault.StrategyParams(s.address); ok {
		status.DebtRatio = params.DebtRatio
		status.LastReport = params.LastReport
	}
	return status
}

type strategySnapshot struct {
	strategist      common.Address
	keeper          common.Address
	rewards         common.Address
	tradeFactory    TradeFactory
	emergencyExit   bool
	minReportDelay  uint64
	maxReportDelay  uint64
	profitFactor    uint64
	debtThreshold   *big.Int
	creditThreshold *big.Int
	tendThreshold   *big.Int
}

// Snapshot implements chain.Journaled.
func (s *Strategy) Snapshot() any {
	snap := strategySnapshot{
		strategist:     s.strategist,
		keeper:         s.keeper,
		rewards:        s.rewards,
		tradeFactory:   s.tradeFactory,
		emergencyExit:  s.emergencyExit,
		minReportDelay: s.minReportDelay,
		maxReportDelay: s.maxReportDelay,
		profitFactor:   s.profitFactor,
		debtThreshold:  nativecommon.Clone(s.debtThreshold),
		tendThreshold:  nativecommon.Clone(s.tendThreshold),
	}
	if s.creditThreshold != nil {
		snap.creditThreshold = nativecommon.Clone(s.creditThreshold)
	}
	return snap
}

// Restore implements chain.Journaled.
func (s *Strategy) Restore(snapshot any) {
	snap, ok := snapshot.(strategySnapshot)
	if !ok {
		return
	}
	s.strategist = snap.strategist
	s.keeper = snap.keeper
	s.rewards = snap.rewards
	s.tradeFactory = snap.tradeFactory
	s.emergencyExit = snap.emergencyExit
	s.minReportDelay = snap.minReportDelay
	s.maxReportDelay = snap.maxReportDelay
	s.profitFactor = snap.profitFactor
	s.debtThreshold = snap.debtThreshold
	s.creditThreshold = snap.creditThreshold
	s.tendThreshold = snap.tendThreshold
}
