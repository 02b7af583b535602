package vault

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/events"
	nativecommon "vaultchain/native/common"
)

func (v *Vault) onlyGovernance(caller common.Address) error {
	if caller != v.governance {
		return nativecommon.ErrNotGovernance
	}
	return nil
}

func (v *Vault) onlyAuthorized(caller common.Address) error {
	if caller != v.governance && caller != v.management {
		return nativecommon.ErrNotAuthorized
	}
	return nil
}

func (v *Vault) paramUpdated(name, value string) {
	v.emit(events.VaultParamUpdated{Vault: v.address, Name: name, Value: value})
}

// UpdateStrategyDebtRatio changes the share of total assets the strategy may
// borrow.
func (v *Vault) UpdateStrategyDebtRatio(caller, strategy common.Address, debtRatio uint64) error {
	if err := v.onlyAuthorized(caller); err != nil {
		return err
	}
	params, err := v.activeParams(strategy)
	if err != nil {
		return err
	}
	total := v.debtRatio - params.DebtRatio + debtRatio
	if total > nativecommon.MaxBPS {
		return ErrDebtRatioLimit
	}
	v.debtRatio = total
	params.DebtRatio = debtRatio
	v.emit(events.VaultDebtRatioUpdated{Vault: v.address, Strategy: strategy, DebtRatio: debtRatio})
	return nil
}

func (v *Vault) UpdateStrategyMinDebtPerHarvest(caller, strategy common.Address, amount *big.Int) error {
	if err := v.onlyAuthorized(caller); err != nil {
		return err
	}
	params, err := v.activeParams(strategy)
	if err != nil {
		return err
	}
	amount = nativecommon.Clone(amount)
	if amount.Cmp(params.MaxDebtPerHarvest) > 0 {
		return ErrDebtBounds
	}
	params.MinDebtPerHarvest = amount
	v.paramUpdated("minDebtPerHarvest", amount.String())
	return nil
}

func (v *Vault) UpdateStrategyMaxDebtPerHarvest(caller, strategy common.Address, amount *big.Int) error {
	if err := v.onlyAuthorized(caller); err != nil {
		return err
	}
	params, err := v.activeParams(strategy)
	if err != nil {
		return err
	}
	amount = nativecommon.Clone(amount)
	if params.MinDebtPerHarvest.Cmp(amount) > 0 {
		return ErrDebtBounds
	}
	params.MaxDebtPerHarvest = amount
	v.paramUpdated("maxDebtPerHarvest", amount.String())
	return nil
}

func (v *Vault) UpdateStrategyPerformanceFee(caller, strategy common.Address, fee uint64) error {
	if err := v.onlyGovernance(caller); err != nil {
		return err
	}
	if fee > nativecommon.MaxBPS/2 {
		return ErrFeeLimit
	}
	params, err := v.activeParams(strategy)
	if err != nil {
		return err
	}
	params.PerformanceFee = fee
	v.paramUpdated("strategyPerformanceFee", strconv.FormatUint(fee, 10))
	return nil
}

// RevokeStrategy zeroes the strategy's debt ratio so its next report
// returns all funds. The strategy stays in the withdrawal queue.
func (v *Vault) RevokeStrategy(caller, strategy common.Address) error {
	if caller != strategy && caller != v.governance && caller != v.guardian {
		return nativecommon.ErrNotAuthorized
	}
	params, err := v.activeParams(strategy)
	if err != nil {
		return err
	}
	if params.DebtRatio == 0 {
		return nil
	}
	v.debtRatio -= params.DebtRatio
	params.DebtRatio = 0
	v.emit(events.VaultStrategyRevoked{Vault: v.address, Strategy: strategy})
	return nil
}

// SetEmergencyShutdown toggles shutdown. Guardians may only activate it.
func (v *Vault) SetEmergencyShutdown(caller common.Address, active bool) error {
	if active {
		if caller != v.guardian && caller != v.governance {
			return nativecommon.ErrNotAuthorized
		}
	} else if err := v.onlyGovernance(caller); err != nil {
		return err
	}
	v.emergencyShutdown = active
	v.emit(events.VaultEmergencyShutdown{Vault: v.address, Active: active})
	return nil
}

func (v *Vault) SetPerformanceFee(caller common.Address, fee uint64) error {
	if err := v.onlyGovernance(caller); err != nil {
		return err
	}
	if fee > nativecommon.MaxBPS/2 {
		return ErrFeeLimit
	}
	v.performanceFee = fee
	v.paramUpdated("performanceFee", strconv.FormatUint(fee, 10))
	return nil
}

func (v *Vault) SetManagementFee(caller common.Address, fee uint64) error {
	if err := v.onlyGovernance(caller); err != nil {
		return err
	}
	if fee > nativecommon.MaxBPS {
		return ErrFeeLimit
	}
	v.managementFee = fee
	v.paramUpdated("managementFee", strconv.FormatUint(fee, 10))
	return nil
}

func (v *Vault) SetDepositLimit(caller common.Address, limit *big.Int) error {
	if err := v.onlyGovernance(caller); err != nil {
		return err
	}
	if err := nativecommon.CheckWord(limit); err != nil {
		return err
	}
	v.depositLimit = nativecommon.Clone(limit)
	v.paramUpdated("depositLimit", v.depositLimit.String())
	return nil
}

func (v *Vault) SetLockedProfitDegradation(caller common.Address, degradation *big.Int) error {
	if err := v.onlyGovernance(caller); err != nil {
		return err
	}
	if degradation == nil || degradation.Cmp(nativecommon.DegradationCoefficient) > 0 {
		return ErrDegradationTooLarge
	}
	v.lockedProfitDegradation = nativecommon.Clone(degradation)
	v.paramUpdated("lockedProfitDegradation", degradation.String())
	return nil
}

func (v *Vault) SetRewards(caller, rewards common.Address) error {
	if err := v.onlyGovernance(caller); err != nil {
		return err
	}
	if rewards == (common.Address{}) || rewards == v.address {
		return ErrInvalidRecipient
	}
	v.rewards = rewards
	v.paramUpdated("rewards", rewards.Hex())
	return nil
}

func (v *Vault) SetGuardian(caller, guardian common.Address) error {
	if caller != v.governance && caller != v.guardian {
		return nativecommon.ErrNotAuthorized
	}
	v.guardian = guardian
	v.paramUpdated("guardian", guardian.Hex())
	return nil
}

func (v *Vault) SetManagement(caller, management common.Address) error {
	if err := v.onlyGovernance(caller); err != nil {
		return err
	}
	v.management = management
	v.paramUpdated("management", management.Hex())
	return nil
}
