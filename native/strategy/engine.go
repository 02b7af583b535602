package strategy

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/chain"
	"vaultchain/core/events"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/farm"
	"vaultchain/native/token"
)

const moduleName = "strategy"

var (
	errNilClock  = errors.New("strategy: clock not configured")
	errNilLedger = errors.New("strategy: token ledgers not configured")
	errNilVault  = errors.New("strategy: vault not configured")
	errNilFarm   = errors.New("strategy: farm not configured")
	errWantMatch = errors.New("strategy: want does not match vault token")

	ErrTradeFactoryNotSet = nativecommon.Revert("Trade factory must be set.")
	ErrNotVault           = nativecommon.Revert("!vault")
	ErrSweepWant          = nativecommon.Revert("!want")
	ErrSweepShares        = nativecommon.Revert("!shares")
	ErrSweepProtected     = nativecommon.Revert("!protected")
	ErrInvalidDelay       = nativecommon.Revert("invalid report delay")
)

// Strategy borrows want from a vault, deploys it into a farm and reports
// the resulting gains and losses on harvest. Reward tokens earned by the
// position are sold through a trade factory between harvests.
type Strategy struct {
	address common.Address
	want    *token.Ledger
	reward  *token.Ledger
	tokens  *token.Registry
	vault   VaultAPI
	farm    Farm
	clock   chain.Clock
	emitter events.Emitter
	pauses  nativecommon.PauseView

	strategist   common.Address
	keeper       common.Address
	rewards      common.Address
	tradeFactory TradeFactory

	emergencyExit   bool
	minReportDelay  uint64
	maxReportDelay  uint64
	profitFactor    uint64
	debtThreshold   *big.Int
	creditThreshold *big.Int
	tendThreshold   *big.Int
}

// Deps bundles the components a strategy is wired to.
type Deps struct {
	Want   *token.Ledger
	Reward *token.Ledger
	Tokens *token.Registry
	Vault  VaultAPI
	Farm   Farm
	Clock  chain.Clock
}

// New constructs a strategy and grants the vault and farm unlimited want
// allowances.
func New(cfg Config, deps Deps) (*Strategy, error) {
	if deps.Clock == nil {
		return nil, errNilClock
	}
	if deps.Want == nil || deps.Reward == nil {
		return nil, errNilLedger
	}
	if deps.Vault == nil {
		return nil, errNilVault
	}
	if deps.Farm == nil {
		return nil, errNilFarm
	}
	if deps.Vault.Token() != deps.Want.Address() {
		return nil, errWantMatch
	}
	maxDelay := cfg.MaxReportDelay
	if maxDelay == 0 {
		maxDelay = DefaultMaxReportDelay
	}
	profitFactor := cfg.ProfitFactor
	if profitFactor == 0 {
		profitFactor = DefaultProfitFactor
	}
	keeper := cfg.Keeper
	if keeper == (common.Address{}) {
		keeper = cfg.Strategist
	}
	rewards := cfg.Rewards
	if rewards == (common.Address{}) {
		rewards = cfg.Strategist
	}
	s := &Strategy{
		address:         cfg.Address,
		want:            deps.Want,
		reward:          deps.Reward,
		tokens:          deps.Tokens,
		vault:           deps.Vault,
		farm:            deps.Farm,
		clock:           deps.Clock,
		emitter:         events.NoopEmitter{},
		strategist:      cfg.Strategist,
		keeper:          keeper,
		rewards:         rewards,
		minReportDelay:  cfg.MinReportDelay,
		maxReportDelay:  maxDelay,
		profitFactor:    profitFactor,
		debtThreshold:   nativecommon.Clone(cfg.DebtThreshold),
		creditThreshold: nativecommon.Clone(cfg.CreditThreshold),
		tendThreshold:   nativecommon.Clone(cfg.TendThreshold),
	}
	if cfg.CreditThreshold == nil {
		s.creditThreshold = nil
	}
	if err := s.want.Approve(s.address, deps.Vault.Address(), nativecommon.MaxUint256); err != nil {
		return nil, err
	}
	if err := s.want.Approve(s.address, deps.Farm.Address(), nativecommon.MaxUint256); err != nil {
		return nil, err
	}
	return s, nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (s *Strategy) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *Strategy) SetPauses(p nativecommon.PauseView) { s.pauses = p }

func (s *Strategy) emit(evt events.Event) {
	if s.emitter != nil && evt != nil {
		s.emitter.Emit(evt)
	}
}

func (s *Strategy) Address() common.Address     { return s.address }
func (s *Strategy) Vault() common.Address       { return s.vault.Address() }
func (s *Strategy) Want() common.Address        { return s.want.Address() }
func (s *Strategy) RewardToken() common.Address { return s.reward.Address() }
func (s *Strategy) Strategist() common.Address  { return s.strategist }
func (s *Strategy) Keeper() common.Address      { return s.keeper }
func (s *Strategy) Rewards() common.Address     { return s.rewards }
func (s *Strategy) EmergencyExit() bool         { return s.emergencyExit }

// TradeFactory returns the configured trade factory address, zero when unset.
func (s *Strategy) TradeFactory() common.Address {
	if s.tradeFactory == nil {
		return common.Address{}
	}
	return s.tradeFactory.Address()
}

// IdleWant is the want held directly by the strategy.
func (s *Strategy) IdleWant() *big.Int { return s.want.BalanceOf(s.address) }

// TotalLP is the farm position size.
func (s *Strategy) TotalLP() *big.Int { return s.farm.BalanceOf(s.address) }

// EstimatedTotalAssets is idle want plus the want value of the farm position.
func (s *Strategy) EstimatedTotalAssets() *big.Int {
	return new(big.Int).Add(s.IdleWant(), s.farm.UnderlyingValue(s.TotalLP()))
}

// ExitPenaltyFeeWant quotes the want lost to the exit penalty if lp were
// withdrawn now.
func (s *Strategy) ExitPenaltyFeeWant(lp *big.Int) *big.Int {
	return s.farm.ExitPenalty(s.address, lp)
}

func (s *Strategy) PendingRewards() *big.Int { return s.farm.PendingRewards(s.address) }
func (s *Strategy) PendingFees() *big.Int    { return s.farm.PendingFees(s.address) }

func (s *Strategy) isKeeper(caller common.Address) bool {
	return caller == s.keeper || caller == s.strategist ||
		caller == s.vault.Governance() || caller == s.vault.Management() || caller == s.vault.Guardian()
}

func (s *Strategy) isEmergencyAuthorized(caller common.Address) bool {
	return caller == s.strategist || caller == s.vault.Governance() ||
		caller == s.vault.Guardian() || caller == s.vault.Management()
}

func (s *Strategy) isAuthorized(caller common.Address) bool {
	return caller == s.strategist || caller == s.vault.Governance()
}

func (s *Strategy) totalDebt() *big.Int {
	params, ok := s.vault.StrategyParams(s.address)
	if !ok {
		return big.NewInt(0)
	}
	return params.TotalDebt
}

// Harvest realises gains or losses since the last report, settles with the
// vault and redeploys idle want.
func (s *Strategy) Harvest(caller common.Address) (*HarvestReceipt, error) {
	if err := nativecommon.Guard(s.pauses, moduleName); err != nil {
		return nil, err
	}
	if !s.isKeeper(caller) {
		return nil, nativecommon.ErrNotAuthorized
	}
	if s.tradeFactory == nil {
		return nil, ErrTradeFactoryNotSet
	}
	if _, err := s.claimRewards(); err != nil {
		return nil, err
	}

	profit := big.NewInt(0)
	loss := big.NewInt(0)
	debtPayment := big.NewInt(0)
	debtOutstanding := s.vault.DebtOutstanding(s.address)

	if s.emergencyExit {
		freed, err := s.liquidateAllPositions()
		if err != nil {
			return nil, err
		}
		switch freed.Cmp(debtOutstanding) {
		case -1:
			loss = new(big.Int).Sub(debtOutstanding, freed)
		case 1:
			profit = new(big.Int).Sub(freed, debtOutstanding)
		}
		debtPayment = new(big.Int).Sub(debtOutstanding, loss)
	} else {
		var err error
		profit, loss, debtPayment, err = s.prepareReturn(debtOutstanding)
		if err != nil {
			return nil, err
		}
	}

	result, err := s.vault.Report(s.address, profit, loss, debtPayment)
	if err != nil {
		return nil, err
	}
	if err := s.adjustPosition(result.DebtOutstanding); err != nil {
		return nil, err
	}

	receipt := &HarvestReceipt{
		Profit:          profit,
		Loss:            loss,
		DebtPayment:     debtPayment,
		DebtOutstanding: nativecommon.Clone(result.DebtOutstanding),
		Credit:          nativecommon.Clone(result.Credit),
		Fees:            nativecommon.Clone(result.TotalFees),
		Timestamp:       s.clock.Now(),
	}
	s.emit(events.StrategyHarvested{
		Strategy:        s.address,
		Profit:          nativecommon.Clone(profit),
		Loss:            nativecommon.Clone(loss),
		DebtPayment:     nativecommon.Clone(debtPayment),
		DebtOutstanding: nativecommon.Clone(result.DebtOutstanding),
	})
	return receipt, nil
}

// Tend redeploys idle want without reporting to the vault.
func (s *Strategy) Tend(caller common.Address) error {
	if err := nativecommon.Guard(s.pauses, moduleName); err != nil {
		return err
	}
	if !s.isKeeper(caller) {
		return nativecommon.ErrNotAuthorized
	}
	return s.adjustPosition(s.vault.DebtOutstanding(s.address))
}

// Withdraw frees amountNeeded of want and sends it to the vault. Only the
// vault may call it, while serving a withdrawal; the returned loss is the
// shortfall realised while exiting the position.
func (s *Strategy) Withdraw(caller common.Address, amountNeeded *big.Int) (*big.Int, error) {
	if caller != s.vault.Address() {
		return nil, ErrNotVault
	}
	freed, loss, err := s.liquidatePosition(nativecommon.Clone(amountNeeded))
	if err != nil {
		return nil, err
	}
	if err := s.want.Transfer(s.address, s.vault.Address(), freed); err != nil {
		return nil, err
	}
	return loss, nil
}

// prepareReturn frees profit plus the debt the vault asks back. Profit and
// loss are measured against the vault's recorded debt after liquidation so
// exit penalties show up as loss.
func (s *Strategy) prepareReturn(debtOutstanding *big.Int) (*big.Int, *big.Int, *big.Int, error) {
	totalDebt := s.totalDebt()
	profit := nativecommon.SubFloor(s.EstimatedTotalAssets(), totalDebt)

	toFree := new(big.Int).Add(profit, debtOutstanding)
	if toFree.Sign() > 0 {
		if _, _, err := s.liquidatePosition(toFree); err != nil {
			return nil, nil, nil, err
		}
	}

	assets := s.EstimatedTotalAssets()
	profit = nativecommon.SubFloor(assets, totalDebt)
	loss := nativecommon.SubFloor(totalDebt, assets)

	idle := s.IdleWant()
	debtPayment := nativecommon.Min(debtOutstanding, idle)
	profit = nativecommon.Min(profit, new(big.Int).Sub(idle, debtPayment))
	return profit, loss, debtPayment, nil
}

// liquidatePosition frees up to amountNeeded of idle want, withdrawing from
// the farm as needed. The LP withdrawn is grossed up for the current exit
// penalty; when that exceeds the position the whole position is exited. It
// returns the freed amount and the shortfall.
func (s *Strategy) liquidatePosition(amountNeeded *big.Int) (*big.Int, *big.Int, error) {
	idle := s.IdleWant()
	if idle.Cmp(amountNeeded) >= 0 {
		return amountNeeded, big.NewInt(0), nil
	}
	held := s.TotalLP()
	lp := held
	if bps := s.farm.PenaltyBps(s.address); bps < nativecommon.MaxBPS {
		needed := new(big.Int).Sub(amountNeeded, idle)
		gross := nativecommon.MulDivUp(needed, big.NewInt(nativecommon.MaxBPS), new(big.Int).SetUint64(nativecommon.MaxBPS-bps))
		lp = nativecommon.Min(s.farm.LPForUnderlying(gross), held)
	}
	if lp.Sign() > 0 {
		if _, _, err := s.farm.Withdraw(s.address, lp); err != nil {
			return nil, nil, err
		}
	}
	freed := nativecommon.Min(amountNeeded, s.IdleWant())
	return freed, new(big.Int).Sub(amountNeeded, freed), nil
}

// liquidateAllPositions exits the farm entirely and returns the idle want.
func (s *Strategy) liquidateAllPositions() (*big.Int, error) {
	if lp := s.TotalLP(); lp.Sign() > 0 {
		if _, _, err := s.farm.Withdraw(s.address, lp); err != nil {
			return nil, err
		}
	}
	if _, err := s.farm.ClaimFees(s.address); err != nil {
		return nil, err
	}
	return s.IdleWant(), nil
}

// adjustPosition deposits idle want above debtOutstanding into the farm.
func (s *Strategy) adjustPosition(debtOutstanding *big.Int) error {
	if s.emergencyExit {
		return nil
	}
	idle := s.IdleWant()
	if idle.Cmp(debtOutstanding) <= 0 {
		return nil
	}
	_, err := s.farm.Deposit(s.address, new(big.Int).Sub(idle, debtOutstanding))
	if errors.Is(err, farm.ErrZeroLP) {
		return nil
	}
	return err
}
