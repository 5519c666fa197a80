package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LiquidationMetrics collects the liquidation monitor's evaluation-loop
// gauges and counters.
type LiquidationMetrics struct {
	ltv               *prometheus.GaugeVec
	subStatusChanges  *prometheus.CounterVec
	liquidations      prometheus.Counter
	meanPrice         prometheus.Gauge
	cacheRefreshFails prometheus.Counter
}

var (
	liquidationOnce     sync.Once
	liquidationRegistry *LiquidationMetrics
)

// Liquidation returns the process-wide LiquidationMetrics registry,
// registering its collectors on first use.
func Liquidation() *LiquidationMetrics {
	liquidationOnce.Do(func() {
		liquidationRegistry = &LiquidationMetrics{
			ltv: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "hub_liquidation_ltv_ratio",
				Help: "Current loan-to-value ratio for an open contract.",
			}, []string{"contract_id"}),
			subStatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "hub_liquidation_substatus_changes_total",
				Help: "Count of margin-call ladder advances by target sub-status.",
			}, []string{"to"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "hub_liquidations_total",
				Help: "Count of contracts marked Liquidated.",
			}),
			meanPrice: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "hub_liquidation_mean_price_usd",
				Help: "Arithmetic mean of buffered price samples over the trailing window.",
			}),
			cacheRefreshFails: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "hub_liquidation_cache_refresh_failures_total",
				Help: "Count of failed open-contract cache refreshes.",
			}),
		}
		prometheus.MustRegister(
			liquidationRegistry.ltv,
			liquidationRegistry.subStatusChanges,
			liquidationRegistry.liquidations,
			liquidationRegistry.meanPrice,
			liquidationRegistry.cacheRefreshFails,
		)
	})
	return liquidationRegistry
}

// SetLTV records a contract's latest computed LTV ratio.
func (m *LiquidationMetrics) SetLTV(contractID string, ltv float64) {
	if m == nil {
		return
	}
	m.ltv.WithLabelValues(contractID).Set(ltv)
}

// IncSubStatusChange records one margin-call ladder advance.
func (m *LiquidationMetrics) IncSubStatusChange(to string) {
	if m == nil {
		return
	}
	if to == "" {
		to = "unknown"
	}
	m.subStatusChanges.WithLabelValues(to).Inc()
}

// IncLiquidation records one contract reaching the terminal Liquidated
// sub-status.
func (m *LiquidationMetrics) IncLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

// SetMeanPrice records the monitor's current trailing-window mean price.
func (m *LiquidationMetrics) SetMeanPrice(usd float64) {
	if m == nil {
		return
	}
	m.meanPrice.Set(usd)
}

// IncCacheRefreshFailure records one failed open-contract cache refresh.
func (m *LiquidationMetrics) IncCacheRefreshFailure() {
	if m == nil {
		return
	}
	m.cacheRefreshFails.Inc()
}
