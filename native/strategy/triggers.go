package strategy

import (
	"math/big"

	nativecommon "vaultchain/native/common"
)

// HarvestTrigger reports whether a keeper paying callCost (in want) should
// harvest now.
func (s *Strategy) HarvestTrigger(callCost *big.Int) bool {
	params, ok := s.vault.StrategyParams(s.address)
	if !ok {
		return false
	}
	now := s.clock.Now()
	var since uint64
	if now > params.LastReport {
		since = now - params.LastReport
	}
	if since < s.minReportDelay {
		return false
	}
	if since >= s.maxReportDelay {
		return true
	}

	if s.vault.DebtOutstanding(s.address).Cmp(s.debtThreshold) > 0 {
		return true
	}
	total := s.EstimatedTotalAssets()
	if new(big.Int).Add(total, s.debtThreshold).Cmp(params.TotalDebt) < 0 {
		return true
	}

	credit := s.vault.CreditAvailable(s.address)
	if s.creditThreshold != nil && credit.Cmp(s.creditThreshold) > 0 {
		return true
	}
	profit := nativecommon.SubFloor(total, params.TotalDebt)
	cost := new(big.Int).Mul(new(big.Int).SetUint64(s.profitFactor), nativecommon.Clone(callCost))
	return cost.Cmp(new(big.Int).Add(credit, profit)) < 0
}

// TendTrigger reports whether enough idle want sits above what the vault
// asks back to justify a tend at callCost.
func (s *Strategy) TendTrigger(callCost *big.Int) bool {
	if s.emergencyExit || s.tendThreshold.Sign() == 0 {
		return false
	}
	excess := nativecommon.SubFloor(s.IdleWant(), s.vault.DebtOutstanding(s.address))
	if excess.Cmp(s.tendThreshold) < 0 {
		return false
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(s.profitFactor), nativecommon.Clone(callCost))
	return cost.Cmp(excess) < 0
}
