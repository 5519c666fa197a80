package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// WatcherMetrics collects the chain watcher's reconciliation-loop gauges and
// counters.
type WatcherMetrics struct {
	confirmedCollateral *prometheus.GaugeVec
	tickDuration        prometheus.Histogram
	tickFailures        *prometheus.CounterVec
	backendFailovers    *prometheus.CounterVec
}

var (
	watcherOnce     sync.Once
	watcherRegistry *WatcherMetrics
)

// Watcher returns the process-wide WatcherMetrics registry, registering its
// collectors on first use.
func Watcher() *WatcherMetrics {
	watcherOnce.Do(func() {
		watcherRegistry = &WatcherMetrics{
			confirmedCollateral: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "hub_watcher_confirmed_collateral_sats",
				Help: "Confirmed collateral sats for a tracked contract address.",
			}, []string{"contract_id"}),
			tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "hub_watcher_tick_duration_seconds",
				Help:    "Wall-clock duration of one reconciliation tick.",
				Buckets: prometheus.DefBuckets,
			}),
			tickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "hub_watcher_tick_failures_total",
				Help: "Count of per-contract reconciliation failures by reason.",
			}, []string{"reason"}),
			backendFailovers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "hub_watcher_backend_failovers_total",
				Help: "Count of chain backend round-robin failovers by backend name.",
			}, []string{"backend"}),
		}
		prometheus.MustRegister(
			watcherRegistry.confirmedCollateral,
			watcherRegistry.tickDuration,
			watcherRegistry.tickFailures,
			watcherRegistry.backendFailovers,
		)
	})
	return watcherRegistry
}

// SetConfirmedCollateral records the latest confirmed-sats figure for a
// contract.
func (m *WatcherMetrics) SetConfirmedCollateral(contractID string, sats int64) {
	if m == nil {
		return
	}
	m.confirmedCollateral.WithLabelValues(contractID).Set(float64(sats))
}

// ObserveTickDuration records one reconciliation tick's wall-clock cost.
func (m *WatcherMetrics) ObserveTickDuration(seconds float64) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(seconds)
}

// IncTickFailure records one per-contract reconciliation failure.
func (m *WatcherMetrics) IncTickFailure(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.tickFailures.WithLabelValues(reason).Inc()
}

// IncBackendFailover records one round-robin failover away from backend.
func (m *WatcherMetrics) IncBackendFailover(backend string) {
	if m == nil {
		return
	}
	if backend == "" {
		backend = "unknown"
	}
	m.backendFailovers.WithLabelValues(backend).Inc()
}
