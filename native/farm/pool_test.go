package farm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/chain"
	"vaultchain/crypto"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/token"
)

var (
	alice = crypto.DeriveAddress("alice")
	bob   = crypto.DeriveAddress("bob")
)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), nativecommon.WAD)
}

type poolFixture struct {
	clock  *chain.SimClock
	want   *token.Ledger
	reward *token.Ledger
	pool   *Pool
}

func newPoolFixture(t *testing.T, params Params) *poolFixture {
	t.Helper()
	clock := chain.NewSimClock(1_700_000_000)
	want := token.NewLedger(crypto.DeriveAddress("want"), "WANT", 18)
	reward := token.NewLedger(crypto.DeriveAddress("reward"), "TRU", 8)
	pool, err := NewPool(crypto.DeriveAddress("farm"), want, reward, clock, params)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return &poolFixture{clock: clock, want: want, reward: reward, pool: pool}
}

func (f *poolFixture) fund(t *testing.T, who common.Address, amount *big.Int) {
	t.Helper()
	if err := f.want.Mint(who, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.want.Approve(who, f.pool.Address(), nativecommon.MaxUint256); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func (f *poolFixture) checkBacking(t *testing.T) {
	t.Helper()
	totals := f.pool.Totals()
	// Totals are projected; checkpoint first so the ledger has the yield.
	if err := f.pool.accrue(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	backing := new(big.Int).Add(f.pool.underlying, f.pool.feeReserve)
	backing.Add(backing, f.pool.retained)
	if got := f.want.BalanceOf(f.pool.Address()); got.Cmp(backing) != 0 {
		t.Fatalf("pool balance %s does not match books %s (projected underlying %s)", got, backing, totals.Underlying)
	}
}

func TestDepositMintsAtVirtualPrice(t *testing.T) {
	f := newPoolFixture(t, Params{BaseAPRBps: 1_000})
	f.fund(t, alice, units(100))
	f.fund(t, bob, units(100))

	lp, err := f.pool.Deposit(alice, units(100))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if lp.Cmp(units(100)) != 0 {
		t.Fatalf("first lp: got %s", lp)
	}

	f.clock.Sleep(nativecommon.SecsPerYear)
	if got := f.pool.UnderlyingValue(lp); got.Cmp(units(110)) != 0 {
		t.Fatalf("underlying after a year: got %s", got)
	}
	if got := f.pool.VirtualPrice(); got.Cmp(new(big.Int).Div(units(11), big.NewInt(10))) != 0 {
		t.Fatalf("virtual price: got %s", got)
	}

	if _, err := f.pool.Deposit(bob, units(110)); err == nil {
		t.Fatalf("bob only holds 100 want, deposit of 110 must fail")
	}
	bobLP, err := f.pool.Deposit(bob, units(55))
	if err != nil {
		t.Fatalf("bob deposit: %v", err)
	}
	if bobLP.Cmp(units(50)) != 0 {
		t.Fatalf("bob lp: got %s", bobLP)
	}
	f.checkBacking(t)
}

func TestExitPenaltyDecaysLinearly(t *testing.T) {
	f := newPoolFixture(t, Params{ExitPenaltyBps: 100, LockPeriod: 1_000})
	f.fund(t, alice, units(100))
	lp, err := f.pool.Deposit(alice, units(100))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	cases := []struct {
		sleep uint64
		bps   uint64
	}{
		{0, 100},
		{500, 50},
		{250, 25},
		{250, 0},
		{1_000, 0},
	}
	for _, tc := range cases {
		f.clock.Sleep(tc.sleep)
		if got := f.pool.PenaltyBps(alice); got != tc.bps {
			t.Fatalf("after +%ds: penalty bps %d want %d", tc.sleep, got, tc.bps)
		}
	}
	if got := f.pool.ExitPenalty(alice, lp); got.Sign() != 0 {
		t.Fatalf("penalty after lock: got %s", got)
	}
}

func TestWithdrawKeepsPenaltyInPool(t *testing.T) {
	f := newPoolFixture(t, Params{ExitPenaltyBps: 50, LockPeriod: 21_600})
	f.fund(t, alice, units(100))
	f.fund(t, bob, units(100))
	aliceLP, _ := f.pool.Deposit(alice, units(100))
	if _, err := f.pool.Deposit(bob, units(100)); err != nil {
		t.Fatalf("bob deposit: %v", err)
	}

	quote := f.pool.ExitPenalty(alice, aliceLP)
	paid, penalty, err := f.pool.Withdraw(alice, aliceLP)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if penalty.Cmp(quote) != 0 || penalty.Cmp(new(big.Int).Div(units(1), big.NewInt(2))) != 0 {
		t.Fatalf("penalty: got %s quote %s", penalty, quote)
	}
	if new(big.Int).Add(paid, penalty).Cmp(units(100)) != 0 {
		t.Fatalf("paid + penalty: got %s", new(big.Int).Add(paid, penalty))
	}
	// Bob inherits the penalty.
	if got := f.pool.UnderlyingValue(f.pool.BalanceOf(bob)); got.Cmp(new(big.Int).Add(units(100), penalty)) != 0 {
		t.Fatalf("bob value: got %s", got)
	}

	bobLP := f.pool.BalanceOf(bob)
	if _, _, err := f.pool.Withdraw(bob, new(big.Int).Add(bobLP, big.NewInt(1))); err != ErrInsufficientLP {
		t.Fatalf("overdraw: got %v", err)
	}
	if _, _, err := f.pool.Withdraw(bob, bobLP); err != nil {
		t.Fatalf("bob withdraw: %v", err)
	}
	if f.pool.TotalLP().Sign() != 0 {
		t.Fatalf("pool should be empty")
	}
	if f.pool.Totals().Retained.Sign() == 0 {
		t.Fatalf("last exit penalty should be retained")
	}
	f.checkBacking(t)
}

func TestRewardsAndFees(t *testing.T) {
	f := newPoolFixture(t, Params{FeeAPRBps: 1_000, RewardRatePerSecond: big.NewInt(10)})
	f.fund(t, alice, units(100))
	if _, err := f.pool.Deposit(alice, units(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	f.clock.Sleep(1_000)

	// 10 units per 1e18 LP per second over 100e18 LP for 1000s.
	wantRewards := big.NewInt(1_000_000)
	if got := f.pool.PendingRewards(alice); got.Cmp(wantRewards) != 0 {
		t.Fatalf("pending rewards: got %s", got)
	}
	claimed, err := f.pool.ClaimRewards(alice)
	if err != nil {
		t.Fatalf("claim rewards: %v", err)
	}
	if claimed.Cmp(wantRewards) != 0 || f.reward.BalanceOf(alice).Cmp(wantRewards) != 0 {
		t.Fatalf("claimed rewards: got %s", claimed)
	}
	if got := f.pool.PendingRewards(alice); got.Sign() != 0 {
		t.Fatalf("pending after claim: got %s", got)
	}

	pendingFees := f.pool.PendingFees(alice)
	if pendingFees.Sign() == 0 {
		t.Fatalf("fees should accrue")
	}
	fees, err := f.pool.ClaimFees(alice)
	if err != nil {
		t.Fatalf("claim fees: %v", err)
	}
	if fees.Sign() == 0 || fees.Cmp(pendingFees) > 0 {
		t.Fatalf("claimed fees: got %s pending %s", fees, pendingFees)
	}
	if got := f.want.BalanceOf(alice); got.Cmp(fees) != 0 {
		t.Fatalf("alice want: got %s", got)
	}
	f.checkBacking(t)
}

func TestUnknownAccountViewsAreZero(t *testing.T) {
	f := newPoolFixture(t, Params{ExitPenaltyBps: 50, LockPeriod: 10})
	if f.pool.BalanceOf(bob).Sign() != 0 || f.pool.PendingRewards(bob).Sign() != 0 || f.pool.ExitPenalty(bob, units(1)).Sign() != 0 {
		t.Fatalf("unknown account should have empty views")
	}
	claimed, err := f.pool.ClaimRewards(bob)
	if err != nil || claimed.Sign() != 0 {
		t.Fatalf("claim for unknown account: %s %v", claimed, err)
	}
}

func TestPausedPoolRejectsMutations(t *testing.T) {
	f := newPoolFixture(t, Params{})
	f.fund(t, alice, units(1))
	f.pool.SetPauses(nativecommon.NewPauseSet("farm"))
	if _, err := f.pool.Deposit(alice, units(1)); err != nativecommon.ErrModulePaused {
		t.Fatalf("paused deposit: got %v", err)
	}
}

func TestSnapshotRestoresPositions(t *testing.T) {
	f := newPoolFixture(t, Params{})
	f.fund(t, alice, units(10))
	snap := f.pool.Snapshot()
	if _, err := f.pool.Deposit(alice, units(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	f.pool.Restore(snap)
	if f.pool.TotalLP().Sign() != 0 || f.pool.BalanceOf(alice).Sign() != 0 {
		t.Fatalf("pool not restored")
	}
}

func TestParamsValidate(t *testing.T) {
	if err := (Params{BaseAPRBps: 10_001}).Validate(); err == nil {
		t.Fatalf("expected base apr bound")
	}
	if err := (Params{ExitPenaltyBps: 10_001}).Validate(); err == nil {
		t.Fatalf("expected penalty bound")
	}
	if err := (Params{RewardRatePerSecond: big.NewInt(-1)}).Validate(); err == nil {
		t.Fatalf("expected reward rate bound")
	}
}
