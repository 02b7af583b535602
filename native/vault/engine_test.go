package vault

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/chain"
	"vaultchain/core/events"
	"vaultchain/crypto"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/token"
)

var (
	governance = crypto.DeriveAddress("governance")
	guardian   = crypto.DeriveAddress("guardian")
	management = crypto.DeriveAddress("management")
	rewards    = crypto.DeriveAddress("rewards")
	strategist = crypto.DeriveAddress("strategist")
	alice      = crypto.DeriveAddress("alice")
	bob        = crypto.DeriveAddress("bob")
)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), nativecommon.WAD)
}

// mockStrategy holds want directly and optionally burns a fraction of every
// withdrawal to simulate an exit penalty.
type mockStrategy struct {
	addr      common.Address
	vault     common.Address
	want      *token.Ledger
	lossBps   uint64
	withdraws int
}

func (m *mockStrategy) Address() common.Address        { return m.addr }
func (m *mockStrategy) Vault() common.Address          { return m.vault }
func (m *mockStrategy) Want() common.Address           { return m.want.Address() }
func (m *mockStrategy) Strategist() common.Address     { return strategist }
func (m *mockStrategy) EstimatedTotalAssets() *big.Int { return m.want.BalanceOf(m.addr) }

func (m *mockStrategy) Withdraw(caller common.Address, amountNeeded *big.Int) (*big.Int, error) {
	if caller != m.vault {
		return nil, nativecommon.Revert("!vault")
	}
	m.withdraws++
	amount := nativecommon.Min(amountNeeded, m.want.BalanceOf(m.addr))
	loss := nativecommon.ApplyBps(amount, m.lossBps)
	if err := m.want.Burn(m.addr, loss); err != nil {
		return nil, err
	}
	if err := m.want.Transfer(m.addr, m.vault, new(big.Int).Sub(amount, loss)); err != nil {
		return nil, err
	}
	return loss, nil
}

type fixture struct {
	clock    *chain.SimClock
	want     *token.Ledger
	shares   *token.Ledger
	vault    *Vault
	strategy *mockStrategy
	recorder *events.Recorder
}

func newFixture(t *testing.T, debtRatio uint64) *fixture {
	t.Helper()
	clock := chain.NewSimClock(1_700_000_000)
	want := token.NewLedger(crypto.DeriveAddress("want"), "WANT", 18)
	shares := token.NewLedger(crypto.DeriveAddress("vault"), "yvWANT", 18)
	v, err := New(want, shares, clock, Config{
		Governance:     governance,
		Management:     management,
		Guardian:       guardian,
		Rewards:        rewards,
		PerformanceFee: DefaultPerformanceFee,
		ManagementFee:  DefaultManagementFee,
	})
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	recorder := &events.Recorder{}
	v.SetEmitter(recorder)
	strat := &mockStrategy{addr: crypto.DeriveAddress("strategy"), vault: v.Address(), want: want}
	if err := want.Approve(strat.addr, v.Address(), nativecommon.MaxUint256); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := v.AddStrategy(governance, strat, debtRatio, big.NewInt(0), nil, 1_000); err != nil {
		t.Fatalf("add strategy: %v", err)
	}
	return &fixture{clock: clock, want: want, shares: shares, vault: v, strategy: strat, recorder: recorder}
}

func (f *fixture) deposit(t *testing.T, who common.Address, amount *big.Int) *big.Int {
	t.Helper()
	if err := f.want.Mint(who, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.want.Approve(who, f.vault.Address(), nativecommon.MaxUint256); err != nil {
		t.Fatalf("approve: %v", err)
	}
	minted, err := f.vault.Deposit(who, amount, who)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return minted
}

func (f *fixture) report(t *testing.T, gain, loss, debtPayment *big.Int) *ReportResult {
	t.Helper()
	res, err := f.vault.Report(f.strategy.addr, gain, loss, debtPayment)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	return res
}

func TestDepositIssuesProportionalShares(t *testing.T) {
	f := newFixture(t, 10_000)
	if got := f.deposit(t, alice, units(1_000)); got.Cmp(units(1_000)) != 0 {
		t.Fatalf("first deposit shares: got %s", got)
	}
	if got := f.vault.PricePerShare(); got.Cmp(nativecommon.WAD) != 0 {
		t.Fatalf("price per share: got %s", got)
	}
	if got := f.deposit(t, bob, units(500)); got.Cmp(units(500)) != 0 {
		t.Fatalf("second deposit shares: got %s", got)
	}
	if got := f.vault.TotalAssets(); got.Cmp(units(1_500)) != 0 {
		t.Fatalf("total assets: got %s", got)
	}
	if len(f.recorder.OfType(events.TypeVaultDeposit)) != 2 {
		t.Fatalf("expected two deposit events")
	}
}

func TestDepositRejections(t *testing.T) {
	f := newFixture(t, 10_000)
	if _, err := f.vault.Deposit(alice, big.NewInt(0), alice); err != nativecommon.ErrInvalidAmount {
		t.Fatalf("zero deposit: got %v", err)
	}
	if err := f.vault.SetDepositLimit(governance, units(500)); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	if err := f.want.Mint(alice, units(600)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.want.Approve(alice, f.vault.Address(), nativecommon.MaxUint256); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.vault.Deposit(alice, units(600), alice); err != ErrDepositLimit {
		t.Fatalf("deposit above limit: got %v", err)
	}
	if err := f.vault.SetEmergencyShutdown(guardian, true); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := f.vault.Deposit(alice, units(100), alice); err != ErrShutdown {
		t.Fatalf("deposit during shutdown: got %v", err)
	}
	pauses := nativecommon.NewPauseSet("vault")
	f.vault.SetPauses(pauses)
	if _, err := f.vault.Deposit(alice, units(100), alice); err != nativecommon.ErrModulePaused {
		t.Fatalf("paused deposit: got %v", err)
	}
}

func TestDepositWithoutAllowanceMintsNothing(t *testing.T) {
	f := newFixture(t, 10_000)
	f.deposit(t, bob, units(500))
	if err := f.want.Mint(alice, units(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	supply := f.vault.TotalSupply()
	assets := f.vault.TotalAssets()

	if _, err := f.vault.Deposit(alice, units(1_000), alice); err != token.ErrInsufficientAllowance {
		t.Fatalf("unapproved deposit: got %v", err)
	}
	if got := f.vault.TotalSupply(); got.Cmp(supply) != 0 {
		t.Fatalf("supply changed: got %s want %s", got, supply)
	}
	if got := f.vault.BalanceOf(alice); got.Sign() != 0 {
		t.Fatalf("alice shares: got %s", got)
	}
	if got := f.vault.TotalAssets(); got.Cmp(assets) != 0 {
		t.Fatalf("assets changed: got %s want %s", got, assets)
	}
	if got := f.want.BalanceOf(alice); got.Cmp(units(1_000)) != 0 {
		t.Fatalf("alice want: got %s", got)
	}
	if n := len(f.recorder.OfType(events.TypeVaultDeposit)); n != 1 {
		t.Fatalf("deposit events: got %d", n)
	}
}

func TestReportExtendsCreditUpToDebtRatio(t *testing.T) {
	f := newFixture(t, 5_000)
	f.deposit(t, alice, units(1_000))
	res := f.report(t, nil, nil, nil)
	if res.Credit.Cmp(units(500)) != 0 {
		t.Fatalf("credit: got %s", res.Credit)
	}
	if got := f.want.BalanceOf(f.strategy.addr); got.Cmp(units(500)) != 0 {
		t.Fatalf("strategy balance: got %s", got)
	}
	if got := f.vault.TotalDebt(); got.Cmp(units(500)) != 0 {
		t.Fatalf("total debt: got %s", got)
	}
	if got := f.vault.CreditAvailable(f.strategy.addr); got.Sign() != 0 {
		t.Fatalf("credit after report: got %s", got)
	}
	if res.DebtOutstanding.Sign() != 0 {
		t.Fatalf("debt outstanding: got %s", res.DebtOutstanding)
	}
}

func TestReportGainLocksProfitAndMintsFees(t *testing.T) {
	f := newFixture(t, 10_000)
	f.deposit(t, alice, units(1_000))
	f.report(t, nil, nil, nil)

	f.clock.Sleep(86_400)
	if err := f.want.Mint(f.strategy.addr, units(100)); err != nil {
		t.Fatalf("mint profit: %v", err)
	}
	res := f.report(t, units(100), nil, nil)

	if res.TotalFees.Sign() <= 0 || res.TotalFees.Cmp(units(100)) > 0 {
		t.Fatalf("fees out of range: %s", res.TotalFees)
	}
	if got := f.vault.BalanceOf(strategist); got.Cmp(units(10)) != 0 {
		t.Fatalf("strategist fee shares: got %s", got)
	}
	if got := f.vault.BalanceOf(rewards); got.Cmp(units(10)) <= 0 {
		t.Fatalf("rewards fee shares: got %s", got)
	}
	if got := f.vault.PricePerShare(); got.Cmp(nativecommon.WAD) != 0 {
		t.Fatalf("profit must be locked right after report, pps %s", got)
	}
	locked := f.vault.CalculateLockedProfit()
	if locked.Cmp(new(big.Int).Sub(units(100), res.TotalFees)) != 0 {
		t.Fatalf("locked profit: got %s", locked)
	}

	f.clock.Sleep(10_000)
	partial := f.vault.CalculateLockedProfit()
	if partial.Sign() == 0 || partial.Cmp(locked) >= 0 {
		t.Fatalf("locked profit should decay: %s -> %s", locked, partial)
	}
	f.clock.Sleep(12_000)
	if got := f.vault.CalculateLockedProfit(); got.Sign() != 0 {
		t.Fatalf("locked profit after unlock window: got %s", got)
	}
	if got := f.vault.PricePerShare(); got.Cmp(nativecommon.WAD) <= 0 {
		t.Fatalf("price per share should rise after unlock: %s", got)
	}
}

func TestReportLossReducesDebtRatio(t *testing.T) {
	f := newFixture(t, 10_000)
	f.deposit(t, alice, units(1_000))
	f.report(t, nil, nil, nil)

	if err := f.want.Burn(f.strategy.addr, units(100)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	f.clock.Sleep(3_600)
	res := f.report(t, nil, units(100), nil)

	params, _ := f.vault.StrategyParams(f.strategy.addr)
	if params.DebtRatio != 9_000 || f.vault.DebtRatio() != 9_000 {
		t.Fatalf("debt ratio after loss: strategy %d vault %d", params.DebtRatio, f.vault.DebtRatio())
	}
	if params.TotalLoss.Cmp(units(100)) != 0 {
		t.Fatalf("total loss: got %s", params.TotalLoss)
	}
	if res.DebtOutstanding.Cmp(units(90)) != 0 {
		t.Fatalf("debt outstanding: got %s", res.DebtOutstanding)
	}
	if res.TotalFees.Sign() != 0 {
		t.Fatalf("no fees on a losing report, got %s", res.TotalFees)
	}
	want := new(big.Int).Div(new(big.Int).Mul(nativecommon.WAD, big.NewInt(9)), big.NewInt(10))
	if got := f.vault.PricePerShare(); got.Cmp(want) != 0 {
		t.Fatalf("price per share after loss: got %s want %s", got, want)
	}
}

func TestReportRejectsUnknownCaller(t *testing.T) {
	f := newFixture(t, 10_000)
	if _, err := f.vault.Report(alice, nil, nil, nil); err != ErrNotStrategy {
		t.Fatalf("unknown strategy report: got %v", err)
	}
	if _, err := f.vault.Report(f.strategy.addr, units(1), nil, nil); err != ErrStrategyBalance {
		t.Fatalf("overstated gain: got %v", err)
	}
}

func TestWithdrawServedFromIdle(t *testing.T) {
	f := newFixture(t, 5_000)
	f.deposit(t, alice, units(1_000))
	f.report(t, nil, nil, nil)

	res, err := f.vault.Withdraw(alice, units(200), alice, 0)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Value.Cmp(units(200)) != 0 || res.Loss.Sign() != 0 {
		t.Fatalf("withdraw result: value %s loss %s", res.Value, res.Loss)
	}
	if f.strategy.withdraws != 0 {
		t.Fatalf("strategy should not be touched")
	}
	if got := f.vault.BalanceOf(alice); got.Cmp(units(800)) != 0 {
		t.Fatalf("remaining shares: got %s", got)
	}
}

func TestWithdrawLossBoundedByMaxLoss(t *testing.T) {
	f := newFixture(t, 10_000)
	f.deposit(t, alice, units(1_000))
	f.report(t, nil, nil, nil)
	f.strategy.lossBps = 100

	if _, err := f.vault.Withdraw(alice, units(1_000), alice, 0); !nativecommon.IsRevert(err, "loss exceeds maxLoss") {
		t.Fatalf("expected maxLoss revert, got %v", err)
	}

	f = newFixture(t, 10_000)
	f.deposit(t, alice, units(1_000))
	f.report(t, nil, nil, nil)
	f.strategy.lossBps = 100

	res, err := f.vault.Withdraw(alice, units(1_000), alice, 100)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Value.Cmp(units(990)) != 0 || res.Loss.Cmp(units(10)) != 0 {
		t.Fatalf("withdraw result: value %s loss %s", res.Value, res.Loss)
	}
	if got := f.want.BalanceOf(alice); got.Cmp(units(990)) != 0 {
		t.Fatalf("alice want: got %s", got)
	}
	if f.vault.TotalSupply().Sign() != 0 || f.vault.TotalDebt().Sign() != 0 {
		t.Fatalf("vault should be empty: supply %s debt %s", f.vault.TotalSupply(), f.vault.TotalDebt())
	}
	params, _ := f.vault.StrategyParams(f.strategy.addr)
	if params.TotalLoss.Cmp(units(10)) != 0 {
		t.Fatalf("strategy loss: got %s", params.TotalLoss)
	}
}

func TestWithdrawRejections(t *testing.T) {
	f := newFixture(t, 10_000)
	f.deposit(t, alice, units(10))
	if _, err := f.vault.Withdraw(alice, units(11), alice, 0); err != ErrInsufficientShares {
		t.Fatalf("overdrawn shares: got %v", err)
	}
	if _, err := f.vault.Withdraw(alice, units(1), alice, 10_001); err != ErrMaxLoss {
		t.Fatalf("max loss bound: got %v", err)
	}
}

func TestShutdownForcesFullRepayment(t *testing.T) {
	f := newFixture(t, 10_000)
	f.deposit(t, alice, units(1_000))
	f.report(t, nil, nil, nil)

	if err := f.vault.SetEmergencyShutdown(guardian, true); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := f.vault.SetEmergencyShutdown(guardian, false); err != nativecommon.ErrNotGovernance {
		t.Fatalf("guardian must not lift shutdown, got %v", err)
	}
	if got := f.vault.DebtOutstanding(f.strategy.addr); got.Cmp(units(1_000)) != 0 {
		t.Fatalf("debt outstanding during shutdown: got %s", got)
	}
	if got := f.vault.CreditAvailable(f.strategy.addr); got.Sign() != 0 {
		t.Fatalf("credit during shutdown: got %s", got)
	}
	res := f.report(t, nil, nil, units(1_000))
	if res.DebtPaid.Cmp(units(1_000)) != 0 {
		t.Fatalf("debt paid: got %s", res.DebtPaid)
	}
	if f.vault.TotalDebt().Sign() != 0 || f.vault.TotalIdle().Cmp(units(1_000)) != 0 {
		t.Fatalf("funds not returned: debt %s idle %s", f.vault.TotalDebt(), f.vault.TotalIdle())
	}
}

func TestRevokeStrategy(t *testing.T) {
	f := newFixture(t, 6_000)
	f.deposit(t, alice, units(1_000))
	f.report(t, nil, nil, nil)

	if err := f.vault.RevokeStrategy(alice, f.strategy.addr); err != nativecommon.ErrNotAuthorized {
		t.Fatalf("unauthorised revoke: got %v", err)
	}
	if err := f.vault.RevokeStrategy(f.strategy.addr, f.strategy.addr); err != nil {
		t.Fatalf("self revoke: %v", err)
	}
	if f.vault.DebtRatio() != 0 {
		t.Fatalf("vault debt ratio: got %d", f.vault.DebtRatio())
	}
	if got := f.vault.DebtOutstanding(f.strategy.addr); got.Cmp(units(600)) != 0 {
		t.Fatalf("debt outstanding: got %s", got)
	}
	if len(f.recorder.OfType(events.TypeVaultStrategyRevoked)) != 1 {
		t.Fatalf("expected a revoke event")
	}
}

func TestGovernanceSetters(t *testing.T) {
	f := newFixture(t, 5_000)
	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"performance fee by stranger", func() error { return f.vault.SetPerformanceFee(alice, 100) }, nativecommon.ErrNotGovernance},
		{"performance fee too high", func() error { return f.vault.SetPerformanceFee(governance, 5_001) }, ErrFeeLimit},
		{"performance fee", func() error { return f.vault.SetPerformanceFee(governance, 5_000) }, nil},
		{"management fee too high", func() error { return f.vault.SetManagementFee(governance, 10_001) }, ErrFeeLimit},
		{"management fee", func() error { return f.vault.SetManagementFee(governance, 0) }, nil},
		{"debt ratio by management", func() error { return f.vault.UpdateStrategyDebtRatio(management, f.strategy.addr, 7_000) }, nil},
		{"debt ratio above max", func() error { return f.vault.UpdateStrategyDebtRatio(governance, f.strategy.addr, 10_001) }, ErrDebtRatioLimit},
		{"debt ratio by stranger", func() error { return f.vault.UpdateStrategyDebtRatio(alice, f.strategy.addr, 1) }, nativecommon.ErrNotAuthorized},
		{"degradation too large", func() error {
			return f.vault.SetLockedProfitDegradation(governance, new(big.Int).Add(nativecommon.DegradationCoefficient, big.NewInt(1)))
		}, ErrDegradationTooLarge},
		{"min above max debt", func() error {
			if err := f.vault.UpdateStrategyMaxDebtPerHarvest(governance, f.strategy.addr, units(10)); err != nil {
				return err
			}
			return f.vault.UpdateStrategyMinDebtPerHarvest(governance, f.strategy.addr, units(11))
		}, ErrDebtBounds},
		{"strategist fee", func() error { return f.vault.UpdateStrategyPerformanceFee(governance, f.strategy.addr, 5_001) }, ErrFeeLimit},
		{"rewards zero", func() error { return f.vault.SetRewards(governance, common.Address{}) }, ErrInvalidRecipient},
	}
	for _, tc := range cases {
		if err := tc.call(); err != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
	if f.vault.PerformanceFee() != 5_000 || f.vault.ManagementFee() != 0 || f.vault.DebtRatio() != 7_000 {
		t.Fatalf("setters not applied: %+v", f.vault.Summary())
	}
}

func TestAddStrategyValidation(t *testing.T) {
	f := newFixture(t, 9_000)
	other := &mockStrategy{addr: crypto.DeriveAddress("other"), vault: f.vault.Address(), want: f.want}
	if err := f.vault.AddStrategy(governance, other, 2_000, nil, nil, 0); err != ErrDebtRatioLimit {
		t.Fatalf("ratio overflow: got %v", err)
	}
	if err := f.vault.AddStrategy(governance, f.strategy, 0, nil, nil, 0); err != ErrStrategyActive {
		t.Fatalf("duplicate: got %v", err)
	}
	foreign := &mockStrategy{addr: crypto.DeriveAddress("foreign"), vault: alice, want: f.want}
	if err := f.vault.AddStrategy(governance, foreign, 0, nil, nil, 0); err != ErrStrategyVault {
		t.Fatalf("foreign vault: got %v", err)
	}
	if err := f.vault.AddStrategy(alice, other, 0, nil, nil, 0); err != nativecommon.ErrNotGovernance {
		t.Fatalf("stranger: got %v", err)
	}
	if err := f.vault.AddStrategy(governance, other, 1_000, nil, nil, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := f.vault.Strategies(); len(got) != 2 || got[1] != other.addr {
		t.Fatalf("withdrawal queue: %v", got)
	}
}

func TestExpectedReturn(t *testing.T) {
	f := newFixture(t, 10_000)
	f.deposit(t, alice, units(1_000))
	f.clock.Sleep(100)
	f.report(t, nil, nil, nil)
	f.clock.Sleep(100)
	if err := f.want.Mint(f.strategy.addr, units(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	f.report(t, units(10), nil, nil)
	f.clock.Sleep(100)
	if got := f.vault.ExpectedReturn(f.strategy.addr); got.Cmp(units(5)) != 0 {
		t.Fatalf("expected return: got %s", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t, 5_000)
	f.deposit(t, alice, units(100))
	snap := f.vault.Snapshot()

	if err := f.vault.SetPerformanceFee(governance, 0); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if err := f.vault.UpdateStrategyDebtRatio(governance, f.strategy.addr, 0); err != nil {
		t.Fatalf("ratio: %v", err)
	}
	if err := f.vault.SetEmergencyShutdown(governance, true); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	f.vault.Restore(snap)

	if f.vault.PerformanceFee() != DefaultPerformanceFee || f.vault.EmergencyShutdown() {
		t.Fatalf("vault fields not restored")
	}
	params, _ := f.vault.StrategyParams(f.strategy.addr)
	if params.DebtRatio != 5_000 || f.vault.DebtRatio() != 5_000 {
		t.Fatalf("strategy params not restored: %d", params.DebtRatio)
	}
}
