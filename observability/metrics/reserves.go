package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// ReserveMetrics exposes the latest rates and indexes of every reserve.
type ReserveMetrics struct {
	liquidityRate  *prometheus.GaugeVec
	borrowRate     *prometheus.GaugeVec
	liquidityIndex *prometheus.GaugeVec
	borrowIndex    *prometheus.GaugeVec
	treasuryMinted *prometheus.CounterVec
	isolatedDebt   *prometheus.GaugeVec
}

var (
	reservesOnce     sync.Once
	reservesRegistry *ReserveMetrics
	rayFloat         = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil))
)

func Reserves() *ReserveMetrics {
	reservesOnce.Do(func() {
		reservesRegistry = &ReserveMetrics{
			liquidityRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "moneymarket_reserve_liquidity_rate",
				Help: "Current annual supply rate of the reserve.",
			}, []string{"asset"}),
			borrowRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "moneymarket_reserve_variable_borrow_rate",
				Help: "Current annual variable borrow rate of the reserve.",
			}, []string{"asset"}),
			liquidityIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "moneymarket_reserve_liquidity_index",
				Help: "Cumulated supply index of the reserve.",
			}, []string{"asset"}),
			borrowIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "moneymarket_reserve_variable_borrow_index",
				Help: "Cumulated variable borrow index of the reserve.",
			}, []string{"asset"}),
			treasuryMinted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "moneymarket_reserve_treasury_minted_total",
				Help: "Receipt tokens minted to the treasury in underlying units.",
			}, []string{"asset"}),
			isolatedDebt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "moneymarket_reserve_isolation_mode_total_debt",
				Help: "Outstanding debt backed by the reserve as isolated collateral.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			reservesRegistry.liquidityRate,
			reservesRegistry.borrowRate,
			reservesRegistry.liquidityIndex,
			reservesRegistry.borrowIndex,
			reservesRegistry.treasuryMinted,
			reservesRegistry.isolatedDebt,
		)
	})
	return reservesRegistry
}

// ObserveReserve records the rates and indexes of asset. All values are rays.
func (m *ReserveMetrics) ObserveReserve(asset string, liquidityRate, borrowRate, liquidityIndex, borrowIndex *uint256.Int) {
	if m == nil {
		return
	}
	asset = label(asset)
	m.liquidityRate.WithLabelValues(asset).Set(rayToFloat(liquidityRate))
	m.borrowRate.WithLabelValues(asset).Set(rayToFloat(borrowRate))
	m.liquidityIndex.WithLabelValues(asset).Set(rayToFloat(liquidityIndex))
	m.borrowIndex.WithLabelValues(asset).Set(rayToFloat(borrowIndex))
}

func (m *ReserveMetrics) AddTreasuryMinted(asset string, amount *uint256.Int) {
	if m == nil {
		return
	}
	m.treasuryMinted.WithLabelValues(label(asset)).Add(toFloat(amount))
}

func (m *ReserveMetrics) SetIsolatedDebt(asset string, debt *uint256.Int) {
	if m == nil {
		return
	}
	m.isolatedDebt.WithLabelValues(label(asset)).Set(toFloat(debt))
}

// Forget drops every series of a delisted reserve.
func (m *ReserveMetrics) Forget(asset string) {
	if m == nil {
		return
	}
	asset = label(asset)
	m.liquidityRate.DeleteLabelValues(asset)
	m.borrowRate.DeleteLabelValues(asset)
	m.liquidityIndex.DeleteLabelValues(asset)
	m.borrowIndex.DeleteLabelValues(asset)
	m.treasuryMinted.DeleteLabelValues(asset)
	m.isolatedDebt.DeleteLabelValues(asset)
}

func label(asset string) string {
	if asset == "" {
		return "unknown"
	}
	return asset
}

func toFloat(value *uint256.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value.ToBig()).Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func rayToFloat(value *uint256.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(value.ToBig()), rayFloat).Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
