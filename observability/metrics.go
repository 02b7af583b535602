package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultSnapshot carries the gauges refreshed after every committed
// transaction. Amounts are base units; Decimals scales them for export.
type VaultSnapshot struct {
	Decimals      uint8
	PricePerShare *big.Int
	TotalAssets   *big.Int
	TotalIdle     *big.Int
	TotalDebt     *big.Int
	TotalSupply   *big.Int
	LockedProfit  *big.Int
	DebtRatio     uint64
	Shutdown      bool
}

type vaultMetrics struct {
	pricePerShare prometheus.Gauge
	totalAssets   prometheus.Gauge
	totalIdle     prometheus.Gauge
	totalDebt     prometheus.Gauge
	totalSupply   prometheus.Gauge
	lockedProfit  prometheus.Gauge
	debtRatio     prometheus.Gauge
	shutdown      prometheus.Gauge
	harvests      *prometheus.CounterVec
	gain          prometheus.Counter
	loss          prometheus.Counter
	fees          prometheus.Counter
	txs           *prometheus.CounterVec
	trades        *prometheus.CounterVec
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *vaultMetrics
)

func vaultGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vaultchain",
		Subsystem: "vault",
		Name:      name,
		Help:      help,
	})
}

func vaultCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vaultchain",
		Subsystem: "vault",
		Name:      name,
		Help:      help,
	})
}

// VaultMetrics returns the lazily-initialised vault metrics registry.
func VaultMetrics() *vaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &vaultMetrics{
			pricePerShare: vaultGauge("price_per_share", "Want returned per whole vault share."),
			totalAssets:   vaultGauge("total_assets", "Idle plus deployed want, in whole tokens."),
			totalIdle:     vaultGauge("total_idle", "Want held by the vault, in whole tokens."),
			totalDebt:     vaultGauge("total_debt", "Want lent to strategies, in whole tokens."),
			totalSupply:   vaultGauge("total_supply", "Outstanding vault shares."),
			lockedProfit:  vaultGauge("locked_profit", "Reported profit not yet released to share price."),
			debtRatio:     vaultGauge("debt_ratio_bps", "Aggregate strategy debt ratio in basis points."),
			shutdown:      vaultGauge("emergency_shutdown", "1 while the vault is in emergency shutdown."),
			harvests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultchain",
				Subsystem: "vault",
				Name:      "harvests_total",
				Help:      "Strategy harvests segmented by outcome (profit, loss, flat, reverted).",
			}, []string{"outcome"}),
			gain: vaultCounter("reported_gain_total", "Cumulative gain reported by strategies, in whole tokens."),
			loss: vaultCounter("reported_loss_total", "Cumulative loss reported by strategies, in whole tokens."),
			fees: vaultCounter("fees_total", "Cumulative fees assessed on strategy gains, in whole tokens."),
			txs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultchain",
				Subsystem: "vault",
				Name:      "tx_total",
				Help:      "Node transactions segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			trades: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultchain",
				Subsystem: "vault",
				Name:      "trades_total",
				Help:      "Trade factory executions segmented by input token.",
			}, []string{"token_in"}),
		}
		prometheus.MustRegister(
			vaultRegistry.pricePerShare,
			vaultRegistry.totalAssets,
			vaultRegistry.totalIdle,
			vaultRegistry.totalDebt,
			vaultRegistry.totalSupply,
			vaultRegistry.lockedProfit,
			vaultRegistry.debtRatio,
			vaultRegistry.shutdown,
			vaultRegistry.harvests,
			vaultRegistry.gain,
			vaultRegistry.loss,
			vaultRegistry.fees,
			vaultRegistry.txs,
			vaultRegistry.trades,
		)
	})
	return vaultRegistry
}

// ObserveVault refreshes the vault gauges.
func (m *vaultMetrics) ObserveVault(s VaultSnapshot) {
	if m == nil {
		return
	}
	m.pricePerShare.Set(unitsToFloat(s.PricePerShare, s.Decimals))
	m.totalAssets.Set(unitsToFloat(s.TotalAssets, s.Decimals))
	m.totalIdle.Set(unitsToFloat(s.TotalIdle, s.Decimals))
	m.totalDebt.Set(unitsToFloat(s.TotalDebt, s.Decimals))
	m.totalSupply.Set(unitsToFloat(s.TotalSupply, s.Decimals))
	m.lockedProfit.Set(unitsToFloat(s.LockedProfit, s.Decimals))
	m.debtRatio.Set(float64(s.DebtRatio))
	if s.Shutdown {
		m.shutdown.Set(1)
	} else {
		m.shutdown.Set(0)
	}
}

// RecordHarvest counts a harvest and accumulates its reported gain or loss.
// A nil error with zero gain and loss is a flat harvest.
func (m *vaultMetrics) RecordHarvest(gain, loss, fees *big.Int, decimals uint8, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.harvests.WithLabelValues("reverted").Inc()
		return
	}
	outcome := "flat"
	switch {
	case gain != nil && gain.Sign() > 0:
		outcome = "profit"
		m.gain.Add(unitsToFloat(gain, decimals))
	case loss != nil && loss.Sign() > 0:
		outcome = "loss"
		m.loss.Add(unitsToFloat(loss, decimals))
	}
	if fees != nil && fees.Sign() > 0 {
		m.fees.Add(unitsToFloat(fees, decimals))
	}
	m.harvests.WithLabelValues(outcome).Inc()
}

// RecordTx counts a node transaction.
func (m *vaultMetrics) RecordTx(op string, err error) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "reverted"
	}
	m.txs.WithLabelValues(op, outcome).Inc()
}

// RecordTrade counts a settled trade.
func (m *vaultMetrics) RecordTrade(tokenIn string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(labelAsset(tokenIn)).Inc()
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func unitsToFloat(value *big.Int, decimals uint8) float64 {
	if value == nil {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	floatVal, acc := new(big.Float).Quo(new(big.Float).SetInt(value), scale).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
