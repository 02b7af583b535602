package observability

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestVaultMetricsObserveVault(t *testing.T) {
	m := VaultMetrics()
	pps, _ := new(big.Int).SetString("1050000000000000000", 10)
	assets, _ := new(big.Int).SetString("2500000000000000000000", 10)
	m.ObserveVault(VaultSnapshot{
		Decimals:      18,
		PricePerShare: pps,
		TotalAssets:   assets,
		DebtRatio:     9_000,
		Shutdown:      true,
	})
	if got := testutil.ToFloat64(m.pricePerShare); math.Abs(got-1.05) > 1e-12 {
		t.Fatalf("price per share gauge: %v", got)
	}
	if got := testutil.ToFloat64(m.totalAssets); got != 2500 {
		t.Fatalf("total assets gauge: %v", got)
	}
	if got := testutil.ToFloat64(m.debtRatio); got != 9_000 {
		t.Fatalf("debt ratio gauge: %v", got)
	}
	if got := testutil.ToFloat64(m.shutdown); got != 1 {
		t.Fatalf("shutdown gauge: %v", got)
	}
}

func TestVaultMetricsRecordHarvest(t *testing.T) {
	m := VaultMetrics()
	profitBefore := testutil.ToFloat64(m.harvests.WithLabelValues("profit"))
	revertedBefore := testutil.ToFloat64(m.harvests.WithLabelValues("reverted"))
	gainBefore := testutil.ToFloat64(m.gain)

	m.RecordHarvest(big.NewInt(300), big.NewInt(0), big.NewInt(30), 2, nil)
	m.RecordHarvest(nil, nil, nil, 2, errors.New("boom"))

	if got := testutil.ToFloat64(m.harvests.WithLabelValues("profit")) - profitBefore; got != 1 {
		t.Fatalf("profit harvests delta: %v", got)
	}
	if got := testutil.ToFloat64(m.harvests.WithLabelValues("reverted")) - revertedBefore; got != 1 {
		t.Fatalf("reverted harvests delta: %v", got)
	}
	if got := testutil.ToFloat64(m.gain) - gainBefore; got != 3 {
		t.Fatalf("gain delta: %v", got)
	}
}

func TestVaultMetricsRecordTx(t *testing.T) {
	m := VaultMetrics()
	before := testutil.ToFloat64(m.txs.WithLabelValues("deposit", "reverted"))
	m.RecordTx("deposit", errors.New("revert"))
	m.RecordTx("deposit", nil)
	if got := testutil.ToFloat64(m.txs.WithLabelValues("deposit", "reverted")) - before; got != 1 {
		t.Fatalf("reverted deposit delta: %v", got)
	}
	m.RecordTrade(" tru ")
	if got := testutil.ToFloat64(m.trades.WithLabelValues("TRU")); got < 1 {
		t.Fatalf("trade counter not incremented: %v", got)
	}
}

func TestEventMetrics(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.emitted.WithLabelValues("vault.deposit"))
	m.RecordEvent(" Vault.Deposit ")
	if got := testutil.ToFloat64(m.emitted.WithLabelValues("vault.deposit")) - before; got != 1 {
		t.Fatalf("event counter delta: %v", got)
	}
	var nilMetrics *eventMetrics
	nilMetrics.RecordEvent("ignored")
}
