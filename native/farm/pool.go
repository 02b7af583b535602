package farm

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/chain"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/token"
)

const moduleName = "farm"

var (
	errNilClock  = errors.New("farm: clock not configured")
	errNilLedger = errors.New("farm: token ledgers not configured")

	ErrZeroLP         = nativecommon.Revert("farm: zero lp")
	ErrInsufficientLP = nativecommon.Revert("farm: insufficient lp")
)

var secondsPerYearBps = new(big.Int).Mul(big.NewInt(nativecommon.SecsPerYear), big.NewInt(nativecommon.MaxBPS))

// Pool is the yield-bearing position strategies deploy into. Want deposited
// into the pool is tracked as underlying; LP units represent a pro-rata claim
// on it. The pool mints want into itself to model external yield and mints
// reward tokens on claim.
type Pool struct {
	address common.Address
	want    *token.Ledger
	reward  *token.Ledger
	clock   chain.Clock
	params  Params
	pauses  nativecommon.PauseView

	totalLP     *big.Int
	underlying  *big.Int
	feeReserve  *big.Int
	retained    *big.Int
	rewardIndex *big.Int
	feeIndex    *big.Int
	lastAccrual uint64
	positions   map[common.Address]*Position
}

// NewPool constructs a pool for the want token emitting reward tokens.
func NewPool(address common.Address, want, reward *token.Ledger, clock chain.Clock, params Params) (*Pool, error) {
	if clock == nil {
		return nil, errNilClock
	}
	if want == nil || reward == nil {
		return nil, errNilLedger
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Pool{
		address:     address,
		want:        want,
		reward:      reward,
		clock:       clock,
		params:      params.Clone(),
		totalLP:     big.NewInt(0),
		underlying:  big.NewInt(0),
		feeReserve:  big.NewInt(0),
		retained:    big.NewInt(0),
		rewardIndex: big.NewInt(0),
		feeIndex:    big.NewInt(0),
		lastAccrual: clock.Now(),
		positions:   make(map[common.Address]*Position),
	}, nil
}

func (p *Pool) Address() common.Address     { return p.address }
func (p *Pool) Want() common.Address        { return p.want.Address() }
func (p *Pool) RewardToken() common.Address { return p.reward.Address() }
func (p *Pool) Params() Params              { return p.params.Clone() }

// SetPauses wires the operator pause switch.
func (p *Pool) SetPauses(view nativecommon.PauseView) { p.pauses = view }

// accrual is the pool balance sheet projected to a timestamp.
type accrual struct {
	underlying  *big.Int
	feeReserve  *big.Int
	rewardIndex *big.Int
	feeIndex    *big.Int
	yield       *big.Int
	fees        *big.Int
}

func (p *Pool) project(now uint64) accrual {
	out := accrual{
		underlying:  nativecommon.Clone(p.underlying),
		feeReserve:  nativecommon.Clone(p.feeReserve),
		rewardIndex: nativecommon.Clone(p.rewardIndex),
		feeIndex:    nativecommon.Clone(p.feeIndex),
		yield:       big.NewInt(0),
		fees:        big.NewInt(0),
	}
	if now <= p.lastAccrual || p.totalLP.Sign() == 0 {
		return out
	}
	elapsed := new(big.Int).SetUint64(now - p.lastAccrual)

	if p.params.BaseAPRBps > 0 {
		rate := new(big.Int).Mul(elapsed, new(big.Int).SetUint64(p.params.BaseAPRBps))
		out.yield = nativecommon.MulDiv(p.underlying, rate, secondsPerYearBps)
		out.underlying.Add(out.underlying, out.yield)
	}
	if p.params.FeeAPRBps > 0 {
		rate := new(big.Int).Mul(elapsed, new(big.Int).SetUint64(p.params.FeeAPRBps))
		out.fees = nativecommon.MulDiv(p.underlying, rate, secondsPerYearBps)
		out.feeReserve.Add(out.feeReserve, out.fees)
		out.feeIndex.Add(out.feeIndex, nativecommon.MulDiv(out.fees, nativecommon.WAD, p.totalLP))
	}
	if rate := p.params.RewardRatePerSecond; rate != nil && rate.Sign() > 0 {
		out.rewardIndex.Add(out.rewardIndex, new(big.Int).Mul(rate, elapsed))
	}
	return out
}

// accrue checkpoints the pool to the current block time, minting the external
// yield into the pool so balances stay backed.
func (p *Pool) accrue() error {
	now := p.clock.Now()
	projected := p.project(now)
	minted := new(big.Int).Add(projected.yield, projected.fees)
	if minted.Sign() > 0 {
		if err := p.want.Mint(p.address, minted); err != nil {
			return err
		}
	}
	p.underlying = projected.underlying
	p.feeReserve = projected.feeReserve
	p.rewardIndex = projected.rewardIndex
	p.feeIndex = projected.feeIndex
	if now > p.lastAccrual {
		p.lastAccrual = now
	}
	return nil
}

func (p *Pool) position(account common.Address) *Position {
	pos, ok := p.positions[account]
	if !ok {
		pos = newPosition()
		pos.RewardIndexPaid = nativecommon.Clone(p.rewardIndex)
		pos.FeeIndexPaid = nativecommon.Clone(p.feeIndex)
		p.positions[account] = pos
	}
	return pos
}

func pendingFromIndex(lp, index, paid *big.Int) *big.Int {
	delta := nativecommon.SubFloor(index, paid)
	return nativecommon.MulDiv(lp, delta, nativecommon.WAD)
}

// settle books the rewards and fees earned since the position's last touch.
func (p *Pool) settle(pos *Position) {
	pos.PendingReward = new(big.Int).Add(pos.PendingReward, pendingFromIndex(pos.LP, p.rewardIndex, pos.RewardIndexPaid))
	pos.PendingFee = new(big.Int).Add(pos.PendingFee, pendingFromIndex(pos.LP, p.feeIndex, pos.FeeIndexPaid))
	pos.RewardIndexPaid = nativecommon.Clone(p.rewardIndex)
	pos.FeeIndexPaid = nativecommon.Clone(p.feeIndex)
}

// Deposit pulls amount of want from account (which must have approved the
// pool) and mints LP at the current virtual price.
func (p *Pool) Deposit(account common.Address, amount *big.Int) (*big.Int, error) {
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nativecommon.ErrInvalidAmount
	}
	if err := p.accrue(); err != nil {
		return nil, err
	}
	minted := new(big.Int).Set(amount)
	if p.totalLP.Sign() > 0 {
		minted = nativecommon.MulDiv(amount, p.totalLP, p.underlying)
	}
	if minted.Sign() == 0 {
		return nil, ErrZeroLP
	}
	if err := p.want.TransferFrom(p.address, account, p.address, amount); err != nil {
		return nil, err
	}

	pos := p.position(account)
	p.settle(pos)
	now := p.clock.Now()
	newLP := new(big.Int).Add(pos.LP, minted)
	weighted := new(big.Int).Mul(pos.LP, new(big.Int).SetUint64(pos.EntryTime))
	weighted.Add(weighted, new(big.Int).Mul(minted, new(big.Int).SetUint64(now)))
	pos.EntryTime = new(big.Int).Quo(weighted, newLP).Uint64()
	pos.LP = newLP

	p.underlying = new(big.Int).Add(p.underlying, amount)
	p.totalLP = new(big.Int).Add(p.totalLP, minted)
	return minted, nil
}

// Withdraw burns lp units of account and pays out their underlying value net
// of the exit penalty. The penalty stays in the pool. Returns the want paid
// and the penalty retained.
func (p *Pool) Withdraw(account common.Address, lp *big.Int) (*big.Int, *big.Int, error) {
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if lp == nil || lp.Sign() <= 0 {
		return nil, nil, nativecommon.ErrInvalidAmount
	}
	pos, ok := p.positions[account]
	if !ok || pos.LP.Cmp(lp) < 0 {
		return nil, nil, ErrInsufficientLP
	}
	if err := p.accrue(); err != nil {
		return nil, nil, err
	}
	p.settle(pos)

	value := nativecommon.MulDiv(lp, p.underlying, p.totalLP)
	penalty := nativecommon.ApplyBps(value, p.penaltyBps(pos, p.clock.Now()))
	paid := new(big.Int).Sub(value, penalty)

	pos.LP = new(big.Int).Sub(pos.LP, lp)
	p.totalLP = new(big.Int).Sub(p.totalLP, lp)
	p.underlying = new(big.Int).Sub(p.underlying, paid)
	if p.totalLP.Sign() == 0 {
		p.retained = new(big.Int).Add(p.retained, p.underlying)
		p.underlying = big.NewInt(0)
	}
	if err := p.want.Transfer(p.address, account, paid); err != nil {
		return nil, nil, err
	}
	return paid, penalty, nil
}

// ClaimRewards mints the account's accrued reward tokens to it.
func (p *Pool) ClaimRewards(account common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := p.accrue(); err != nil {
		return nil, err
	}
	pos, ok := p.positions[account]
	if !ok {
		return big.NewInt(0), nil
	}
	p.settle(pos)
	amount := nativecommon.Clone(pos.PendingReward)
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := p.reward.Mint(account, amount); err != nil {
		return nil, err
	}
	pos.PendingReward = big.NewInt(0)
	return amount, nil
}

// ClaimFees pays the account's accrued trading fees in want.
func (p *Pool) ClaimFees(account common.Address) (*big.Int, error) {
	if err := nativecommon.Guard(p.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := p.accrue(); err != nil {
		return nil, err
	}
	pos, ok := p.positions[account]
	if !ok {
		return big.NewInt(0), nil
	}
	p.settle(pos)
	amount := nativecommon.Min(pos.PendingFee, p.feeReserve)
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := p.want.Transfer(p.address, account, amount); err != nil {
		return nil, err
	}
	p.feeReserve = new(big.Int).Sub(p.feeReserve, amount)
	pos.PendingFee = new(big.Int).Sub(pos.PendingFee, amount)
	return amount, nil
}

func (p *Pool) penaltyBps(pos *Position, now uint64) uint64 {
	if pos == nil || p.params.ExitPenaltyBps == 0 || p.params.LockPeriod == 0 {
		return 0
	}
	elapsed := uint64(0)
	if now > pos.EntryTime {
		elapsed = now - pos.EntryTime
	}
	if elapsed >= p.params.LockPeriod {
		return 0
	}
	remaining := new(big.Int).SetUint64(p.params.LockPeriod - elapsed)
	bps := nativecommon.MulDiv(new(big.Int).SetUint64(p.params.ExitPenaltyBps), remaining, new(big.Int).SetUint64(p.params.LockPeriod))
	return bps.Uint64()
}

// BalanceOf returns the LP units held by account.
func (p *Pool) BalanceOf(account common.Address) *big.Int {
	if pos, ok := p.positions[account]; ok {
		return nativecommon.Clone(pos.LP)
	}
	return big.NewInt(0)
}

// TotalLP returns the outstanding LP supply.
func (p *Pool) TotalLP() *big.Int { return nativecommon.Clone(p.totalLP) }

// UnderlyingValue converts lp units into want at the current block time.
func (p *Pool) UnderlyingValue(lp *big.Int) *big.Int {
	if lp == nil || lp.Sign() <= 0 || p.totalLP.Sign() == 0 {
		return big.NewInt(0)
	}
	projected := p.project(p.clock.Now())
	return nativecommon.MulDiv(lp, projected.underlying, p.totalLP)
}

// LPForUnderlying returns the lp units needed to redeem amount of want before
// penalties, rounded up.
func (p *Pool) LPForUnderlying(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || p.totalLP.Sign() == 0 {
		return big.NewInt(0)
	}
	projected := p.project(p.clock.Now())
	if projected.underlying.Sign() == 0 {
		return big.NewInt(0)
	}
	return nativecommon.MulDivUp(amount, p.totalLP, projected.underlying)
}

// VirtualPrice is the want value of 1e18 LP.
func (p *Pool) VirtualPrice() *big.Int {
	if p.totalLP.Sign() == 0 {
		return nativecommon.Clone(nativecommon.WAD)
	}
	projected := p.project(p.clock.Now())
	return nativecommon.MulDiv(projected.underlying, nativecommon.WAD, p.totalLP)
}

// ExitPenalty quotes the want penalty charged if account withdrew lp now.
func (p *Pool) ExitPenalty(account common.Address, lp *big.Int) *big.Int {
	pos, ok := p.positions[account]
	if !ok {
		return big.NewInt(0)
	}
	if lp == nil || lp.Sign() <= 0 {
		return big.NewInt(0)
	}
	if lp.Cmp(pos.LP) > 0 {
		lp = pos.LP
	}
	return nativecommon.ApplyBps(p.UnderlyingValue(lp), p.penaltyBps(pos, p.clock.Now()))
}

// PenaltyBps returns the account's current exit penalty rate.
func (p *Pool) PenaltyBps(account common.Address) uint64 {
	return p.penaltyBps(p.positions[account], p.clock.Now())
}

// PendingRewards returns the reward tokens account could claim now.
func (p *Pool) PendingRewards(account common.Address) *big.Int {
	pos, ok := p.positions[account]
	if !ok {
		return big.NewInt(0)
	}
	projected := p.project(p.clock.Now())
	pending := pendingFromIndex(pos.LP, projected.rewardIndex, pos.RewardIndexPaid)
	return pending.Add(pending, pos.PendingReward)
}

// PendingFees returns the want fees account could claim now.
func (p *Pool) PendingFees(account common.Address) *big.Int {
	pos, ok := p.positions[account]
	if !ok {
		return big.NewInt(0)
	}
	projected := p.project(p.clock.Now())
	pending := pendingFromIndex(pos.LP, projected.feeIndex, pos.FeeIndexPaid)
	return pending.Add(pending, pos.PendingFee)
}

// Totals reports the projected balance sheet.
func (p *Pool) Totals() Totals {
	projected := p.project(p.clock.Now())
	return Totals{
		TotalLP:      nativecommon.Clone(p.totalLP),
		Underlying:   projected.underlying,
		FeeReserve:   projected.feeReserve,
		Retained:     nativecommon.Clone(p.retained),
		VirtualPrice: p.VirtualPrice(),
		RewardIndex:  projected.rewardIndex,
		FeeIndex:     projected.feeIndex,
		LastAccrual:  p.lastAccrual,
	}
}

type poolSnapshot struct {
	totalLP     *big.Int
	underlying  *big.Int
	feeReserve  *big.Int
	retained    *big.Int
	rewardIndex *big.Int
	feeIndex    *big.Int
	lastAccrual uint64
	positions   map[common.Address]*Position
}

// Snapshot implements chain.Journaled.
func (p *Pool) Snapshot() any {
	snap := poolSnapshot{
		totalLP:     nativecommon.Clone(p.totalLP),
		underlying:  nativecommon.Clone(p.underlying),
		feeReserve:  nativecommon.Clone(p.feeReserve),
		retained:    nativecommon.Clone(p.retained),
		rewardIndex: nativecommon.Clone(p.rewardIndex),
		feeIndex:    nativecommon.Clone(p.feeIndex),
		lastAccrual: p.lastAccrual,
		positions:   make(map[common.Address]*Position, len(p.positions)),
	}
	for addr, pos := range p.positions {
		snap.positions[addr] = pos.Clone()
	}
	return snap
}

// Restore implements chain.Journaled.
func (p *Pool) Restore(snapshot any) {
	snap, ok := snapshot.(poolSnapshot)
	if !ok {
		return
	}
	p.totalLP = snap.totalLP
	p.underlying = snap.underlying
	p.feeReserve = snap.feeReserve
	p.retained = snap.retained
	p.rewardIndex = snap.rewardIndex
	p.feeIndex = snap.feeIndex
	p.lastAccrual = snap.lastAccrual
	p.positions = snap.positions
}
