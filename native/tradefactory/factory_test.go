package tradefactory

import (
	"math/big"
	"testing"

	"vaultchain/core/chain"
	"vaultchain/core/events"
	"vaultchain/crypto"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/token"
)

var (
	governance = crypto.DeriveAddress("governance")
	mechanic   = crypto.DeriveAddress("ymechs")
	strategy   = crypto.DeriveAddress("strategy")
	stranger   = crypto.DeriveAddress("stranger")
)

type tfFixture struct {
	factory  *TradeFactory
	swapper  *FixedRateSwapper
	reward   *token.Ledger
	want     *token.Ledger
	recorder *events.Recorder
}

func newTFFixture(t *testing.T) *tfFixture {
	t.Helper()
	registry := token.NewRegistry()
	reward := token.NewLedger(crypto.DeriveAddress("tru"), "TRU", 8)
	want := token.NewLedger(crypto.DeriveAddress("want"), "WANT", 18)
	for _, l := range []*token.Ledger{reward, want} {
		if err := registry.Register(l); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	factory, err := New(crypto.DeriveAddress("trade-factory"), governance, registry, chain.FixedClock{Timestamp: 1_000, Block: 7})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	recorder := &events.Recorder{}
	factory.SetEmitter(recorder)
	factory.SetIDFunc(func() string { return "trade-1" })
	swapper := NewFixedRateSwapper(crypto.DeriveAddress("multicall-swapper"), registry)
	// 1 TRU (1e8 units) buys 2 WANT.
	rate, _ := new(big.Int).SetString("20000000000000000000000000000", 10)
	if err := swapper.SetRate(reward.Address(), want.Address(), rate); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := factory.AddSwapper(governance, swapper); err != nil {
		t.Fatalf("add swapper: %v", err)
	}
	if err := factory.AddMechanic(governance, mechanic); err != nil {
		t.Fatalf("add mechanic: %v", err)
	}
	return &tfFixture{factory: factory, swapper: swapper, reward: reward, want: want, recorder: recorder}
}

func (f *tfFixture) fundStrategy(t *testing.T, amount int64) {
	t.Helper()
	if err := f.reward.Mint(strategy, big.NewInt(amount)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.reward.Approve(strategy, f.factory.Address(), nativecommon.MaxUint256); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.factory.Enable(strategy, f.reward.Address(), f.want.Address()); err != nil {
		t.Fatalf("enable: %v", err)
	}
}

func (f *tfFixture) details(amountIn, minOut int64) AsyncTradeExecutionDetails {
	return AsyncTradeExecutionDetails{
		Strategy:     strategy,
		TokenIn:      f.reward.Address(),
		TokenOut:     f.want.Address(),
		AmountIn:     big.NewInt(amountIn),
		MinAmountOut: big.NewInt(minOut),
	}
}

func TestExecuteSettlesTrade(t *testing.T) {
	f := newTFFixture(t)
	f.fundStrategy(t, 1_000_000)

	receipt, err := f.factory.Execute(mechanic, f.details(1_000_000, 1), f.swapper.Address(), []byte{0x05})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if want := big.NewInt(20_000_000_000_000_000); receipt.AmountOut.Cmp(want) != 0 {
		t.Fatalf("amount out: got %s want %s", receipt.AmountOut, want)
	}
	if receipt.ID != "trade-1" || receipt.Height != 7 || receipt.Timestamp != 1_000 {
		t.Fatalf("unexpected receipt metadata: %+v", receipt)
	}
	if got := f.want.BalanceOf(strategy); got.Cmp(receipt.AmountOut) != 0 {
		t.Fatalf("strategy want balance: got %s receipt %s", got, receipt.AmountOut)
	}
	if got := f.reward.BalanceOf(strategy); got.Sign() != 0 {
		t.Fatalf("reward should be spent, got %s", got)
	}
	if got := f.reward.BalanceOf(f.swapper.Address()); got.Sign() != 0 {
		t.Fatalf("swapper should burn its input, got %s", got)
	}
	if len(f.recorder.OfType(events.TypeTradeExecuted)) != 1 {
		t.Fatalf("expected a trade event")
	}
	if got := f.factory.TotalTraded(f.reward.Address()); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("total traded: got %s", got)
	}
}

func TestExecuteRejections(t *testing.T) {
	f := newTFFixture(t)
	f.fundStrategy(t, 1_000)

	if _, err := f.factory.Execute(stranger, f.details(1_000, 1), f.swapper.Address(), nil); err != ErrNotMechanic {
		t.Fatalf("stranger: got %v", err)
	}
	if _, err := f.factory.Execute(mechanic, f.details(1_000, 1), stranger, nil); err != ErrUnknownSwapper {
		t.Fatalf("unknown swapper: got %v", err)
	}
	if _, err := f.factory.Execute(mechanic, f.details(2_000, 1), f.swapper.Address(), nil); err != token.ErrInsufficientBalance {
		t.Fatalf("overspend: got %v", err)
	}
	huge := f.details(1_000, 0)
	huge.MinAmountOut = nativecommon.MaxUint256
	if _, err := f.factory.Execute(mechanic, huge, f.swapper.Address(), nil); err != ErrInsufficientOut {
		t.Fatalf("min out: got %v", err)
	}

	if err := f.factory.Disable(strategy, f.reward.Address(), f.want.Address()); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := f.factory.Execute(mechanic, f.details(1_000, 1), f.swapper.Address(), nil); err != ErrPairDisabled {
		t.Fatalf("disabled pair: got %v", err)
	}
}

func TestExecuteRequiresAllowance(t *testing.T) {
	f := newTFFixture(t)
	f.fundStrategy(t, 1_000)
	if err := f.reward.Approve(strategy, f.factory.Address(), big.NewInt(0)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.factory.Execute(mechanic, f.details(1_000, 1), f.swapper.Address(), nil); err != token.ErrInsufficientAllowance {
		t.Fatalf("expected allowance failure, got %v", err)
	}
}

func TestEnabledPairsAndSnapshot(t *testing.T) {
	f := newTFFixture(t)
	if err := f.factory.Enable(strategy, f.want.Address(), f.want.Address()); err != ErrSameToken {
		t.Fatalf("same token: got %v", err)
	}
	f.fundStrategy(t, 10)
	snap := f.factory.Snapshot()
	if err := f.factory.Disable(strategy, f.reward.Address(), f.want.Address()); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if len(f.factory.EnabledPairs(strategy)) != 0 {
		t.Fatalf("pair should be disabled")
	}
	f.factory.Restore(snap)
	pairs := f.factory.EnabledPairs(strategy)
	if len(pairs) != 1 || pairs[0].TokenIn != f.reward.Address() {
		t.Fatalf("pairs after restore: %+v", pairs)
	}
}

func TestMechanicManagement(t *testing.T) {
	f := newTFFixture(t)
	if err := f.factory.AddMechanic(stranger, stranger); err != nativecommon.ErrNotGovernance {
		t.Fatalf("stranger add: got %v", err)
	}
	if err := f.factory.RemoveMechanic(governance, mechanic); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if f.factory.IsMechanic(mechanic) {
		t.Fatalf("mechanic should be removed")
	}
}
