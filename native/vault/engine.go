package vault

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/chain"
	"vaultchain/core/events"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/token"
)

const moduleName = "vault"

var (
	errNilClock  = errors.New("vault engine: clock not configured")
	errNilLedger = errors.New("vault engine: token ledgers not configured")
	errNilStrat  = errors.New("vault engine: strategy must not be nil")

	ErrShutdown            = nativecommon.Revert("vault is shutdown")
	ErrDepositLimit        = nativecommon.Revert("deposit limit exceeded")
	ErrZeroShares          = nativecommon.Revert("zero shares")
	ErrInsufficientShares  = nativecommon.Revert("insufficient shares")
	ErrInvalidRecipient    = nativecommon.Revert("invalid recipient")
	ErrMaxLoss             = nativecommon.Revert("invalid maxLoss")
	ErrTooMuchLoss         = nativecommon.Revert("loss exceeds maxLoss")
	ErrNotStrategy         = nativecommon.Revert("!strategy")
	ErrStrategyActive      = nativecommon.Revert("strategy already active")
	ErrStrategyVault       = nativecommon.Revert("!vault")
	ErrStrategyWant        = nativecommon.Revert("!want")
	ErrDebtRatioLimit      = nativecommon.Revert("debt ratio exceeds max")
	ErrDebtBounds          = nativecommon.Revert("min debt exceeds max debt")
	ErrFeeLimit            = nativecommon.Revert("fee exceeds limit")
	ErrQueueFull           = nativecommon.Revert("withdrawal queue full")
	ErrStrategyBalance     = nativecommon.Revert("strategy balance below report")
	ErrLossExceedsDebt     = nativecommon.Revert("loss exceeds debt")
	ErrDegradationTooLarge = nativecommon.Revert("degradation exceeds coefficient")
)

// Vault holds deposits of a single want token, issues shares and lends to
// strategies according to their debt ratios.
type Vault struct {
	address common.Address
	want    *token.Ledger
	shares  *token.Ledger
	clock   chain.Clock
	emitter events.Emitter
	pauses  nativecommon.PauseView

	governance common.Address
	management common.Address
	guardian   common.Address
	rewards    common.Address

	depositLimit            *big.Int
	debtRatio               uint64
	totalDebt               *big.Int
	performanceFee          uint64
	managementFee           uint64
	lockedProfit            *big.Int
	lockedProfitDegradation *big.Int
	lastReport              uint64
	activation              uint64
	emergencyShutdown       bool

	strategies      map[common.Address]*StrategyParams
	impls           map[common.Address]Strategy
	withdrawalQueue []common.Address
}

// New deploys a vault. The shares ledger must be addressed at the vault
// address; it is the vault's own share token.
func New(want, shares *token.Ledger, clock chain.Clock, cfg Config) (*Vault, error) {
	if clock == nil {
		return nil, errNilClock
	}
	if want == nil || shares == nil {
		return nil, errNilLedger
	}
	if cfg.PerformanceFee > nativecommon.MaxBPS/2 || cfg.ManagementFee > nativecommon.MaxBPS {
		return nil, ErrFeeLimit
	}
	degradation := DefaultLockedProfitDegradation
	if cfg.LockedProfitDegradation != nil {
		if cfg.LockedProfitDegradation.Cmp(nativecommon.DegradationCoefficient) > 0 {
			return nil, ErrDegradationTooLarge
		}
		degradation = cfg.LockedProfitDegradation
	}
	depositLimit := nativecommon.Clone(nativecommon.MaxUint256)
	if cfg.DepositLimit != nil {
		depositLimit = nativecommon.Clone(cfg.DepositLimit)
	}
	management := cfg.Management
	if management == (common.Address{}) {
		management = cfg.Governance
	}
	guardian := cfg.Guardian
	if guardian == (common.Address{}) {
		guardian = cfg.Governance
	}
	rewards := cfg.Rewards
	if rewards == (common.Address{}) {
		rewards = cfg.Governance
	}
	now := clock.Now()
	return &Vault{
		address:                 shares.Address(),
		want:                    want,
		shares:                  shares,
		clock:                   clock,
		emitter:                 events.NoopEmitter{},
		governance:              cfg.Governance,
		management:              management,
		guardian:                guardian,
		rewards:                 rewards,
		depositLimit:            depositLimit,
		totalDebt:               big.NewInt(0),
		performanceFee:          cfg.PerformanceFee,
		managementFee:           cfg.ManagementFee,
		lockedProfit:            big.NewInt(0),
		lockedProfitDegradation: new(big.Int).Set(degradation),
		lastReport:              now,
		activation:              now,
		strategies:              make(map[common.Address]*StrategyParams),
		impls:                   make(map[common.Address]Strategy),
	}, nil
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// SetPauses wires the operator pause switch.
func (v *Vault) SetPauses(p nativecommon.PauseView) { v.pauses = p }

func (v *Vault) emit(evt events.Event) {
	if v.emitter != nil && evt != nil {
		v.emitter.Emit(evt)
	}
}

func (v *Vault) Address() common.Address    { return v.address }
func (v *Vault) Token() common.Address      { return v.want.Address() }
func (v *Vault) Governance() common.Address { return v.governance }
func (v *Vault) Management() common.Address { return v.management }
func (v *Vault) Guardian() common.Address   { return v.guardian }
func (v *Vault) Rewards() common.Address    { return v.rewards }
func (v *Vault) EmergencyShutdown() bool    { return v.emergencyShutdown }
func (v *Vault) DebtRatio() uint64          { return v.debtRatio }
func (v *Vault) PerformanceFee() uint64     { return v.performanceFee }
func (v *Vault) ManagementFee() uint64      { return v.managementFee }
func (v *Vault) LastReport() uint64         { return v.lastReport }
func (v *Vault) Decimals() uint8            { return v.shares.Decimals() }
func (v *Vault) TotalDebt() *big.Int        { return nativecommon.Clone(v.totalDebt) }
func (v *Vault) DepositLimit() *big.Int     { return nativecommon.Clone(v.depositLimit) }

// TotalIdle is the want held by the vault itself.
func (v *Vault) TotalIdle() *big.Int { return v.want.BalanceOf(v.address) }

// TotalAssets is idle want plus everything lent to strategies.
func (v *Vault) TotalAssets() *big.Int {
	return new(big.Int).Add(v.TotalIdle(), v.totalDebt)
}

// TotalSupply returns the outstanding shares.
func (v *Vault) TotalSupply() *big.Int { return v.shares.TotalSupply() }

// BalanceOf returns the shares held by account.
func (v *Vault) BalanceOf(account common.Address) *big.Int { return v.shares.BalanceOf(account) }

// CalculateLockedProfit returns the part of the last reported profit that is
// still locked at the current time. It decays linearly to zero.
func (v *Vault) CalculateLockedProfit() *big.Int {
	now := v.clock.Now()
	if now <= v.lastReport {
		return nativecommon.Clone(v.lockedProfit)
	}
	elapsed := new(big.Int).SetUint64(now - v.lastReport)
	ratio := new(big.Int).Mul(elapsed, v.lockedProfitDegradation)
	if ratio.Cmp(nativecommon.DegradationCoefficient) >= 0 {
		return big.NewInt(0)
	}
	released := nativecommon.MulDiv(ratio, v.lockedProfit, nativecommon.DegradationCoefficient)
	return nativecommon.SubFloor(v.lockedProfit, released)
}

// FreeFunds is the part of total assets backing share value.
func (v *Vault) FreeFunds() *big.Int {
	return nativecommon.SubFloor(v.TotalAssets(), v.CalculateLockedProfit())
}

func (v *Vault) shareValue(shares *big.Int) *big.Int {
	supply := v.shares.TotalSupply()
	if supply.Sign() == 0 {
		return nativecommon.Clone(shares)
	}
	return nativecommon.MulDiv(shares, v.FreeFunds(), supply)
}

func (v *Vault) sharesForAmount(amount *big.Int) *big.Int {
	freeFunds := v.FreeFunds()
	if freeFunds.Sign() == 0 {
		return big.NewInt(0)
	}
	return nativecommon.MulDiv(amount, v.shares.TotalSupply(), freeFunds)
}

// PricePerShare is the want value of one whole share.
func (v *Vault) PricePerShare() *big.Int {
	return v.shareValue(v.shares.Unit())
}

// ShareValue converts shares into want at the current price.
func (v *Vault) ShareValue(shares *big.Int) *big.Int { return v.shareValue(shares) }

func (v *Vault) issueSharesForAmount(to common.Address, amount *big.Int) (*big.Int, error) {
	minted, err := v.priceShares(amount)
	if err != nil {
		return nil, err
	}
	if err := v.shares.Mint(to, minted); err != nil {
		return nil, err
	}
	return minted, nil
}

// priceShares prices a fresh issue of amount against free funds without
// minting. The resulting supply must fit a word.
func (v *Vault) priceShares(amount *big.Int) (*big.Int, error) {
	supply := v.shares.TotalSupply()
	minted := nativecommon.Clone(amount)
	if supply.Sign() > 0 {
		minted = nativecommon.MulDiv(amount, supply, v.FreeFunds())
	}
	if minted.Sign() == 0 {
		return nil, ErrZeroShares
	}
	if _, err := nativecommon.Add(supply, minted); err != nil {
		return nil, err
	}
	return minted, nil
}

// Deposit pulls amount of want from caller, who must have approved the
// vault, and mints shares to recipient.
func (v *Vault) Deposit(caller common.Address, amount *big.Int, recipient common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(v.pauses, moduleName); err != nil {
		return nil, err
	}
	if v.emergencyShutdown {
		return nil, ErrShutdown
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nativecommon.ErrInvalidAmount
	}
	if recipient == (common.Address{}) || recipient == v.address {
		return nil, ErrInvalidRecipient
	}
	if new(big.Int).Add(v.TotalAssets(), amount).Cmp(v.depositLimit) > 0 {
		return nil, ErrDepositLimit
	}
	// Shares are priced before the want arrives, but minted only once it has.
	minted, err := v.priceShares(amount)
	if err != nil {
		return nil, err
	}
	if err := v.want.TransferFrom(v.address, caller, v.address, amount); err != nil {
		return nil, err
	}
	if err := v.shares.Mint(recipient, minted); err != nil {
		return nil, err
	}
	v.emit(events.VaultDeposit{Vault: v.address, Recipient: recipient, Amount: nativecommon.Clone(amount), Shares: nativecommon.Clone(minted)})
	return minted, nil
}

// WithdrawResult describes a completed withdrawal.
type WithdrawResult struct {
	Shares *big.Int
	Value  *big.Int
	Loss   *big.Int
}

// Withdraw burns up to maxShares of caller and sends their value to
// recipient, pulling liquidity from strategies in queue order. Losses realised
// while liquidating are borne by the withdrawer and bounded by maxLossBps.
func (v *Vault) Withdraw(caller common.Address, maxShares *big.Int, recipient common.Address, maxLossBps uint64) (*WithdrawResult, error) {
	if maxLossBps > nativecommon.MaxBPS {
		return nil, ErrMaxLoss
	}
	if maxShares == nil || maxShares.Sign() <= 0 {
		return nil, nativecommon.ErrInvalidAmount
	}
	if recipient == (common.Address{}) {
		return nil, ErrInvalidRecipient
	}
	shares := nativecommon.Clone(maxShares)
	if shares.Cmp(v.shares.BalanceOf(caller)) > 0 {
		return nil, ErrInsufficientShares
	}

	value := v.shareValue(shares)
	idle := v.TotalIdle()
	totalLoss := big.NewInt(0)

	if value.Cmp(idle) > 0 {
		for _, addr := range v.withdrawalQueue {
			if value.Cmp(idle) <= 0 {
				break
			}
			params := v.strategies[addr]
			amountNeeded := nativecommon.Min(new(big.Int).Sub(value, idle), params.TotalDebt)
			if amountNeeded.Sign() == 0 {
				continue
			}
			before := v.TotalIdle()
			loss, err := v.impls[addr].Withdraw(v.address, amountNeeded)
			if err != nil {
				return nil, err
			}
			withdrawn := nativecommon.SubFloor(v.TotalIdle(), before)
			idle = new(big.Int).Add(idle, withdrawn)

			if loss != nil && loss.Sign() > 0 {
				value = nativecommon.SubFloor(value, loss)
				totalLoss.Add(totalLoss, loss)
				if err := v.reportLoss(addr, loss); err != nil {
					return nil, err
				}
			}
			params.TotalDebt = nativecommon.SubFloor(params.TotalDebt, withdrawn)
			v.totalDebt = nativecommon.SubFloor(v.totalDebt, withdrawn)
		}

		if value.Cmp(idle) > 0 {
			value = idle
			shares = v.sharesForAmount(new(big.Int).Add(value, totalLoss))
			if shares.Cmp(maxShares) > 0 {
				shares = nativecommon.Clone(maxShares)
			}
		}

		allowed := nativecommon.ApplyBps(new(big.Int).Add(value, totalLoss), maxLossBps)
		if totalLoss.Cmp(allowed) > 0 {
			return nil, ErrTooMuchLoss
		}
	}

	if err := v.shares.Burn(caller, shares); err != nil {
		return nil, err
	}
	if err := v.want.Transfer(v.address, recipient, value); err != nil {
		return nil, err
	}
	v.emit(events.VaultWithdraw{
		Vault:     v.address,
		Owner:     caller,
		Recipient: recipient,
		Shares:    nativecommon.Clone(shares),
		Value:     nativecommon.Clone(value),
		Loss:      nativecommon.Clone(totalLoss),
	})
	return &WithdrawResult{Shares: shares, Value: value, Loss: totalLoss}, nil
}

// Summary captures the vault ledger at the current block time.
func (v *Vault) Summary() Summary {
	queue := make([]common.Address, len(v.withdrawalQueue))
	copy(queue, v.withdrawalQueue)
	return Summary{
		Address:           v.address,
		Token:             v.want.Address(),
		TotalAssets:       v.TotalAssets(),
		TotalIdle:         v.TotalIdle(),
		TotalDebt:         nativecommon.Clone(v.totalDebt),
		TotalSupply:       v.shares.TotalSupply(),
		PricePerShare:     v.PricePerShare(),
		LockedProfit:      v.CalculateLockedProfit(),
		DebtRatio:         v.debtRatio,
		PerformanceFee:    v.performanceFee,
		ManagementFee:     v.managementFee,
		DepositLimit:      nativecommon.Clone(v.depositLimit),
		LastReport:        v.lastReport,
		EmergencyShutdown: v.emergencyShutdown,
		WithdrawalQueue:   queue,
	}
}

// StrategyParams returns a copy of the ledger entry for strategy.
func (v *Vault) StrategyParams(strategy common.Address) (*StrategyParams, bool) {
	params, ok := v.strategies[strategy]
	if !ok {
		return nil, false
	}
	return params.Clone(), true
}

// Strategies lists strategies in withdrawal queue order.
func (v *Vault) Strategies() []common.Address {
	out := make([]common.Address, len(v.withdrawalQueue))
	copy(out, v.withdrawalQueue)
	return out
}

// AddStrategy registers a strategy and appends it to the withdrawal queue.
func (v *Vault) AddStrategy(caller common.Address, strategy Strategy, debtRatio uint64, minDebtPerHarvest, maxDebtPerHarvest *big.Int, performanceFee uint64) error {
	if caller != v.governance {
		return nativecommon.ErrNotGovernance
	}
	if strategy == nil {
		return errNilStrat
	}
	if v.emergencyShutdown {
		return ErrShutdown
	}
	addr := strategy.Address()
	if addr == (common.Address{}) {
		return ErrNotStrategy
	}
	if _, exists := v.strategies[addr]; exists {
		return ErrStrategyActive
	}
	if strategy.Vault() != v.address {
		return ErrStrategyVault
	}
	if strategy.Want() != v.want.Address() {
		return ErrStrategyWant
	}
	if len(v.withdrawalQueue) >= MaxStrategies {
		return ErrQueueFull
	}
	if v.debtRatio+debtRatio > nativecommon.MaxBPS {
		return ErrDebtRatioLimit
	}
	minDebt := nativecommon.Clone(minDebtPerHarvest)
	maxDebt := nativecommon.Clone(maxDebtPerHarvest)
	if maxDebtPerHarvest == nil {
		maxDebt = nativecommon.Clone(nativecommon.MaxUint256)
	}
	if minDebt.Cmp(maxDebt) > 0 {
		return ErrDebtBounds
	}
	if performanceFee > nativecommon.MaxBPS/2 {
		return ErrFeeLimit
	}
	now := v.clock.Now()
	v.strategies[addr] = &StrategyParams{
		PerformanceFee:    performanceFee,
		Activation:        now,
		DebtRatio:         debtRatio,
		MinDebtPerHarvest: minDebt,
		MaxDebtPerHarvest: maxDebt,
		LastReport:        now,
		TotalDebt:         big.NewInt(0),
		TotalGain:         big.NewInt(0),
		TotalLoss:         big.NewInt(0),
	}
	v.impls[addr] = strategy
	v.debtRatio += debtRatio
	v.withdrawalQueue = append(v.withdrawalQueue, addr)
	v.emit(events.VaultStrategyAdded{
		Vault:             v.address,
		Strategy:          addr,
		DebtRatio:         debtRatio,
		MinDebtPerHarvest: nativecommon.Clone(minDebt),
		MaxDebtPerHarvest: nativecommon.Clone(maxDebt),
		PerformanceFee:    performanceFee,
	})
	return nil
}

type vaultSnapshot struct {
	governance              common.Address
	management              common.Address
	guardian                common.Address
	rewards                 common.Address
	depositLimit            *big.Int
	debtRatio               uint64
	totalDebt               *big.Int
	performanceFee          uint64
	managementFee           uint64
	lockedProfit            *big.Int
	lockedProfitDegradation *big.Int
	lastReport              uint64
	emergencyShutdown       bool
	strategies              map[common.Address]*StrategyParams
	impls                   map[common.Address]Strategy
	withdrawalQueue         []common.Address
}

// Snapshot implements chain.Journaled.
func (v *Vault) Snapshot() any {
	snap := vaultSnapshot{
		governance:              v.governance,
		management:              v.management,
		guardian:                v.guardian,
		rewards:                 v.rewards,
		depositLimit:            nativecommon.Clone(v.depositLimit),
		debtRatio:               v.debtRatio,
		totalDebt:               nativecommon.Clone(v.totalDebt),
		performanceFee:          v.performanceFee,
		managementFee:           v.managementFee,
		lockedProfit:            nativecommon.Clone(v.lockedProfit),
		lockedProfitDegradation: nativecommon.Clone(v.lockedProfitDegradation),
		lastReport:              v.lastReport,
		emergencyShutdown:       v.emergencyShutdown,
		strategies:              make(map[common.Address]*StrategyParams, len(v.strategies)),
		impls:                   make(map[common.Address]Strategy, len(v.impls)),
		withdrawalQueue:         append([]common.Address(nil), v.withdrawalQueue...),
	}
	for addr, params := range v.strategies {
		snap.strategies[addr] = params.Clone()
	}
	for addr, impl := range v.impls {
		snap.impls[addr] = impl
	}
	return snap
}

// Restore implements chain.Journaled.
func (v *Vault) Restore(snapshot any) {
	snap, ok := snapshot.(vaultSnapshot)
	if !ok {
		return
	}
	v.governance = snap.governance
	v.management = snap.management
	v.guardian = snap.guardian
	v.rewards = snap.rewards
	v.depositLimit = snap.depositLimit
	v.debtRatio = snap.debtRatio
	v.totalDebt = snap.totalDebt
	v.performanceFee = snap.performanceFee
	v.managementFee = snap.managementFee
	v.lockedProfit = snap.lockedProfit
	v.lockedProfitDegradation = snap.lockedProfitDegradation
	v.lastReport = snap.lastReport
	v.emergencyShutdown = snap.emergencyShutdown
	v.strategies = snap.strategies
	v.impls = snap.impls
	v.withdrawalQueue = snap.withdrawalQueue
}
