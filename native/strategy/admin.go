package strategy

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/events"
	nativecommon "vaultchain/native/common"
)

// SetEmergencyExit puts the strategy into emergency exit. The flag is
// one-way; the strategy also revokes itself so the vault stops lending.
func (s *Strategy) SetEmergencyExit(caller common.Address) error {
	if !s.isEmergencyAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	if err := s.vault.RevokeStrategy(s.address, s.address); err != nil {
		return err
	}
	s.emergencyExit = true
	s.emit(events.StrategyEmergencyExit{Strategy: s.address})
	return nil
}

// ProtectedTokens lists tokens sweep refuses to move besides want and the
// vault share.
func (s *Strategy) ProtectedTokens() []common.Address {
	return []common.Address{s.reward.Address()}
}

// Sweep sends the strategy's whole balance of an unrelated token to
// governance.
func (s *Strategy) Sweep(caller, tokenAddr common.Address) (*big.Int, error) {
	governance := s.vault.Governance()
	if caller != governance {
		return nil, nativecommon.ErrNotGovernance
	}
	if tokenAddr == s.want.Address() {
		return nil, ErrSweepWant
	}
	if tokenAddr == s.vault.Address() {
		return nil, ErrSweepShares
	}
	for _, protected := range s.ProtectedTokens() {
		if tokenAddr == protected {
			return nil, ErrSweepProtected
		}
	}
	if s.tokens == nil {
		return nil, nativecommon.Revert("unknown token")
	}
	ledger, err := s.tokens.Get(tokenAddr)
	if err != nil {
		return nil, nativecommon.Revert("unknown token")
	}
	amount := ledger.BalanceOf(s.address)
	if err := ledger.Transfer(s.address, governance, amount); err != nil {
		return nil, err
	}
	s.emit(events.StrategySwept{Strategy: s.address, Token: tokenAddr, Recipient: governance, Amount: nativecommon.Clone(amount)})
	return amount, nil
}

// SetTradeFactory points reward sales at tf: the factory gets an unlimited
// reward allowance and the reward -> want pair is enabled. A previous
// factory loses its permissions first.
func (s *Strategy) SetTradeFactory(caller common.Address, tf TradeFactory) error {
	if caller != s.vault.Governance() {
		return nativecommon.ErrNotGovernance
	}
	if tf == nil {
		return nativecommon.ErrInvalidAmount
	}
	if s.tradeFactory != nil {
		if err := s.removeTradeFactoryPermissions(); err != nil {
			return err
		}
	}
	if err := s.reward.Approve(s.address, tf.Address(), nativecommon.MaxUint256); err != nil {
		return err
	}
	if err := tf.Enable(s.address, s.reward.Address(), s.want.Address()); err != nil {
		return err
	}
	s.tradeFactory = tf
	s.emit(events.StrategyTradeFactoryUpdated{Strategy: s.address, TradeFactory: tf.Address()})
	return nil
}

// RemoveTradeFactoryPermissions zeroes the reward allowance, disables the
// pair and clears the trade factory.
func (s *Strategy) RemoveTradeFactoryPermissions(caller common.Address) error {
	if !s.isEmergencyAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	if s.tradeFactory == nil {
		return nil
	}
	if err := s.removeTradeFactoryPermissions(); err != nil {
		return err
	}
	s.emit(events.StrategyTradeFactoryUpdated{Strategy: s.address})
	return nil
}

func (s *Strategy) removeTradeFactoryPermissions() error {
	tf := s.tradeFactory
	if err := s.reward.Approve(s.address, tf.Address(), big.NewInt(0)); err != nil {
		return err
	}
	if err := tf.Disable(s.address, s.reward.Address(), s.want.Address()); err != nil {
		return err
	}
	s.tradeFactory = nil
	return nil
}

// ClaimRewards pulls reward tokens from the farm. They stay in the strategy
// for the trade factory to sell.
func (s *Strategy) ClaimRewards(caller common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(s.pauses, moduleName); err != nil {
		return nil, err
	}
	if !s.isKeeper(caller) {
		return nil, nativecommon.ErrNotAuthorized
	}
	return s.claimRewards()
}

func (s *Strategy) claimRewards() (*big.Int, error) {
	amount, err := s.farm.ClaimRewards(s.address)
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		s.emit(events.StrategyRewardsClaimed{Strategy: s.address, Token: s.reward.Address(), Amount: nativecommon.Clone(amount)})
	}
	return amount, nil
}

// ClaimFees collects trading fees as idle want. They are reported as profit
// on the next harvest.
func (s *Strategy) ClaimFees(caller common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(s.pauses, moduleName); err != nil {
		return nil, err
	}
	if !s.isKeeper(caller) {
		return nil, nativecommon.ErrNotAuthorized
	}
	amount, err := s.farm.ClaimFees(s.address)
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		s.emit(events.StrategyFeesClaimed{Strategy: s.address, Amount: nativecommon.Clone(amount)})
	}
	return amount, nil
}

func (s *Strategy) paramUpdated(name, value string) {
	s.emit(events.StrategyParamUpdated{Strategy: s.address, Name: name, Value: value})
}

func (s *Strategy) SetStrategist(caller, strategist common.Address) error {
	if !s.isAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	if strategist == (common.Address{}) {
		return nativecommon.Revert("zero address")
	}
	s.strategist = strategist
	s.paramUpdated("strategist", strategist.Hex())
	return nil
}

func (s *Strategy) SetKeeper(caller, keeper common.Address) error {
	if !s.isAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	if keeper == (common.Address{}) {
		return nativecommon.Revert("zero address")
	}
	s.keeper = keeper
	s.paramUpdated("keeper", keeper.Hex())
	return nil
}

func (s *Strategy) SetMinReportDelay(caller common.Address, delay uint64) error {
	if !s.isAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	if delay > s.maxReportDelay {
		return ErrInvalidDelay
	}
	s.minReportDelay = delay
	s.paramUpdated("minReportDelay", strconv.FormatUint(delay, 10))
	return nil
}

func (s *Strategy) SetMaxReportDelay(caller common.Address, delay uint64) error {
	if !s.isAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	if delay < s.minReportDelay || delay == 0 {
		return ErrInvalidDelay
	}
	s.maxReportDelay = delay
	s.paramUpdated("maxReportDelay", strconv.FormatUint(delay, 10))
	return nil
}

func (s *Strategy) SetProfitFactor(caller common.Address, factor uint64) error {
	if !s.isAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	s.profitFactor = factor
	s.paramUpdated("profitFactor", strconv.FormatUint(factor, 10))
	return nil
}

func (s *Strategy) SetDebtThreshold(caller common.Address, threshold *big.Int) error {
	if !s.isAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	s.debtThreshold = nativecommon.Clone(threshold)
	s.paramUpdated("debtThreshold", s.debtThreshold.String())
	return nil
}

// SetCreditThreshold sets the credit trigger. Nil disables it.
func (s *Strategy) SetCreditThreshold(caller common.Address, threshold *big.Int) error {
	if !s.isAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	if threshold == nil {
		s.creditThreshold = nil
		s.paramUpdated("creditThreshold", "")
		return nil
	}
	s.creditThreshold = nativecommon.Clone(threshold)
	s.paramUpdated("creditThreshold", threshold.String())
	return nil
}

func (s *Strategy) SetTendThreshold(caller common.Address, threshold *big.Int) error {
	if !s.isAuthorized(caller) {
		return nativecommon.ErrNotAuthorized
	}
	s.tendThreshold = nativecommon.Clone(threshold)
	s.paramUpdated("tendThreshold", s.tendThreshold.String())
	return nil
}
