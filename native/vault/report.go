package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/events"
	nativecommon "vaultchain/native/common"
)

var (
	bpsDenominator = big.NewInt(nativecommon.MaxBPS)
	secsPerYear    = big.NewInt(nativecommon.SecsPerYear)
)

func (v *Vault) activeParams(strategy common.Address) (*StrategyParams, error) {
	params, ok := v.strategies[strategy]
	if !ok {
		return nil, ErrNotStrategy
	}
	return params, nil
}

// CreditAvailable returns the want the strategy may borrow on its next report.
func (v *Vault) CreditAvailable(strategy common.Address) *big.Int {
	params, ok := v.strategies[strategy]
	if !ok || v.emergencyShutdown {
		return big.NewInt(0)
	}
	totalAssets := v.TotalAssets()
	vaultDebtLimit := nativecommon.ApplyBps(totalAssets, v.debtRatio)
	strategyDebtLimit := nativecommon.ApplyBps(totalAssets, params.DebtRatio)
	if strategyDebtLimit.Cmp(params.TotalDebt) <= 0 || vaultDebtLimit.Cmp(v.totalDebt) <= 0 {
		return big.NewInt(0)
	}
	available := new(big.Int).Sub(strategyDebtLimit, params.TotalDebt)
	available = nativecommon.Min(available, new(big.Int).Sub(vaultDebtLimit, v.totalDebt))
	available = nativecommon.Min(available, v.TotalIdle())
	if available.Cmp(params.MinDebtPerHarvest) < 0 {
		return big.NewInt(0)
	}
	return nativecommon.Min(available, params.MaxDebtPerHarvest)
}

// DebtOutstanding returns how much the strategy is over its debt limit. A
// strategy of a shutdown vault owes all of its debt.
func (v *Vault) DebtOutstanding(strategy common.Address) *big.Int {
	params, ok := v.strategies[strategy]
	if !ok {
		return big.NewInt(0)
	}
	if v.debtRatio == 0 || v.emergencyShutdown {
		return nativecommon.Clone(params.TotalDebt)
	}
	limit := nativecommon.ApplyBps(v.TotalAssets(), params.DebtRatio)
	return nativecommon.SubFloor(params.TotalDebt, limit)
}

// ExpectedReturn extrapolates the strategy's historical gain rate over the
// time since its last report.
func (v *Vault) ExpectedReturn(strategy common.Address) *big.Int {
	params, ok := v.strategies[strategy]
	if !ok {
		return big.NewInt(0)
	}
	now := v.clock.Now()
	if now <= params.LastReport || params.LastReport <= params.Activation {
		return big.NewInt(0)
	}
	sinceLast := new(big.Int).SetUint64(now - params.LastReport)
	harvestTime := new(big.Int).SetUint64(params.LastReport - params.Activation)
	return nativecommon.MulDiv(params.TotalGain, sinceLast, harvestTime)
}

func (v *Vault) reportLoss(strategy common.Address, loss *big.Int) error {
	params := v.strategies[strategy]
	if loss.Cmp(params.TotalDebt) > 0 {
		return ErrLossExceedsDebt
	}
	if v.debtRatio != 0 && v.totalDebt.Sign() > 0 {
		change := nativecommon.MulDiv(loss, new(big.Int).SetUint64(v.debtRatio), v.totalDebt)
		ratioChange := params.DebtRatio
		if change.IsUint64() && change.Uint64() < ratioChange {
			ratioChange = change.Uint64()
		}
		params.DebtRatio -= ratioChange
		v.debtRatio -= ratioChange
	}
	params.TotalLoss = new(big.Int).Add(params.TotalLoss, loss)
	params.TotalDebt = new(big.Int).Sub(params.TotalDebt, loss)
	v.totalDebt = nativecommon.SubFloor(v.totalDebt, loss)
	return nil
}

// assessFees mints fee shares for the report period and returns the want
// value they represent. Fees never exceed the reported gain.
func (v *Vault) assessFees(strategy common.Address, gain *big.Int) (*big.Int, *big.Int, error) {
	params := v.strategies[strategy]
	now := v.clock.Now()
	if params.Activation == now || now <= params.LastReport {
		return big.NewInt(0), big.NewInt(0), nil
	}
	duration := new(big.Int).SetUint64(now - params.LastReport)

	managementFee := new(big.Int).Mul(params.TotalDebt, duration)
	managementFee.Mul(managementFee, new(big.Int).SetUint64(v.managementFee))
	managementFee.Quo(managementFee, bpsDenominator)
	managementFee.Quo(managementFee, secsPerYear)

	strategistFee := big.NewInt(0)
	performanceFee := big.NewInt(0)
	if gain.Sign() > 0 {
		strategistFee = nativecommon.ApplyBps(gain, params.PerformanceFee)
		performanceFee = nativecommon.ApplyBps(gain, v.performanceFee)
	}
	totalFee := new(big.Int).Add(managementFee, strategistFee)
	totalFee.Add(totalFee, performanceFee)
	if totalFee.Cmp(gain) > 0 {
		totalFee = nativecommon.Clone(gain)
	}
	if totalFee.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0), nil
	}

	reward, err := v.issueSharesForAmount(v.address, totalFee)
	if err != nil {
		return nil, nil, err
	}
	if strategistFee.Sign() > 0 {
		strategistReward := nativecommon.MulDiv(nativecommon.Min(strategistFee, totalFee), reward, totalFee)
		if strategistReward.Sign() > 0 {
			if err := v.shares.Transfer(v.address, v.impls[strategy].Strategist(), strategistReward); err != nil {
				return nil, nil, err
			}
		}
	}
	if rest := v.shares.BalanceOf(v.address); rest.Sign() > 0 {
		if err := v.shares.Transfer(v.address, v.rewards, rest); err != nil {
			return nil, nil, err
		}
	}
	return totalFee, reward, nil
}

// Report settles a strategy's harvest: it records gain and loss, mints fee
// shares, pays down debt, extends credit and moves the net want between the
// strategy and the vault. The strategy must have approved the vault to pull
// want. The returned DebtOutstanding is what the strategy should free up
// before its next report.
func (v *Vault) Report(caller common.Address, gain, loss, debtPayment *big.Int) (*ReportResult, error) {
	if err := nativecommon.Guard(v.pauses, moduleName); err != nil {
		return nil, err
	}
	params, err := v.activeParams(caller)
	if err != nil {
		return nil, err
	}
	gain = nativecommon.Clone(gain)
	loss = nativecommon.Clone(loss)
	debtPayment = nativecommon.Clone(debtPayment)
	if gain.Sign() > 0 && loss.Sign() > 0 {
		return nil, nativecommon.Revert("gain and loss both reported")
	}
	if v.want.BalanceOf(caller).Cmp(new(big.Int).Add(gain, debtPayment)) < 0 {
		return nil, ErrStrategyBalance
	}

	if loss.Sign() > 0 {
		if err := v.reportLoss(caller, loss); err != nil {
			return nil, err
		}
	}

	totalFees, feeShares, err := v.assessFees(caller, gain)
	if err != nil {
		return nil, err
	}
	params.TotalGain = new(big.Int).Add(params.TotalGain, gain)

	credit := v.CreditAvailable(caller)
	debt := v.DebtOutstanding(caller)
	debtPayment = nativecommon.Min(debtPayment, debt)
	if debtPayment.Sign() > 0 {
		params.TotalDebt = new(big.Int).Sub(params.TotalDebt, debtPayment)
		v.totalDebt = new(big.Int).Sub(v.totalDebt, debtPayment)
		debt = new(big.Int).Sub(debt, debtPayment)
	}
	if credit.Sign() > 0 {
		params.TotalDebt = new(big.Int).Add(params.TotalDebt, credit)
		v.totalDebt = new(big.Int).Add(v.totalDebt, credit)
	}

	totalAvail := new(big.Int).Add(gain, debtPayment)
	switch totalAvail.Cmp(credit) {
	case -1:
		if err := v.want.Transfer(v.address, caller, new(big.Int).Sub(credit, totalAvail)); err != nil {
			return nil, err
		}
	case 1:
		if err := v.want.TransferFrom(v.address, caller, v.address, new(big.Int).Sub(totalAvail, credit)); err != nil {
			return nil, err
		}
	}

	lockedBeforeLoss := new(big.Int).Add(v.CalculateLockedProfit(), gain)
	lockedBeforeLoss = nativecommon.SubFloor(lockedBeforeLoss, totalFees)
	v.lockedProfit = nativecommon.SubFloor(lockedBeforeLoss, loss)

	now := v.clock.Now()
	params.LastReport = now
	v.lastReport = now

	v.emit(events.VaultStrategyReported{
		Vault:      v.address,
		Strategy:   caller,
		Gain:       nativecommon.Clone(gain),
		Loss:       nativecommon.Clone(loss),
		DebtPaid:   nativecommon.Clone(debtPayment),
		TotalGain:  nativecommon.Clone(params.TotalGain),
		TotalLoss:  nativecommon.Clone(params.TotalLoss),
		TotalDebt:  nativecommon.Clone(params.TotalDebt),
		DebtAdded:  nativecommon.Clone(credit),
		DebtRatio:  params.DebtRatio,
		FeeShares:  nativecommon.Clone(feeShares),
		LockedGain: nativecommon.Clone(v.lockedProfit),
	})

	outstanding := debt
	if params.DebtRatio == 0 || v.emergencyShutdown {
		outstanding = v.impls[caller].EstimatedTotalAssets()
	}
	return &ReportResult{
		DebtOutstanding: outstanding,
		Credit:          credit,
		DebtPaid:        debtPayment,
		TotalFees:       totalFees,
		FeeShares:       feeShares,
	}, nil
}
