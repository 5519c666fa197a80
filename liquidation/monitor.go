package liquidation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/satlend/hub/contract"
	"github.com/satlend/hub/observability/metrics"
)

const sampleWindow = 5 * time.Minute

// PriceSample is one (timestamp, usd_price) observation from the price
// feed; the feed's wire protocol is the caller's concern.
type PriceSample struct {
	Timestamp time.Time
	USDPrice  float64
}

// ContractUpdater is the narrow slice of contract mutation the monitor
// drives. It is implemented by the coordinator, which holds the
// per-contract-address serialization the state machine requires; the
// monitor itself never mutates a *contract.Contract directly.
type ContractUpdater interface {
	ApplyLTV(ctx context.Context, contractID uuid.UUID, ltv float64, target contract.LiquidationSubStatus) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger installs a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithTickInterval overrides the default one-minute evaluation cadence.
func WithTickInterval(d time.Duration) Option {
	return func(m *Monitor) { m.tickInterval = d }
}

// Monitor buffers price samples over a rolling window, computes the
// arithmetic mean, and evaluates every cached open contract's LTV against
// the margin-call ladder on each tick.
type Monitor struct {
	cache      *Cache
	source     Source
	updater    ContractUpdater
	thresholds Thresholds

	tickInterval    time.Duration
	refreshInterval time.Duration
	logger          *slog.Logger

	mu      sync.Mutex
	samples []PriceSample
}

// New constructs a Monitor.
func New(cache *Cache, source Source, updater ContractUpdater, thresholds Thresholds, opts ...Option) (*Monitor, error) {
	if cache == nil {
		return nil, fmt.Errorf("liquidation: cache required")
	}
	if source == nil {
		return nil, fmt.Errorf("liquidation: source required")
	}
	if updater == nil {
		return nil, fmt.Errorf("liquidation: updater required")
	}
	m := &Monitor{
		cache:           cache,
		source:          source,
		updater:         updater,
		thresholds:      thresholds,
		tickInterval:    time.Minute,
		refreshInterval: 5 * time.Minute,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// IngestSample records one price observation, trimming anything older than
// the 5-minute window.
func (m *Monitor) IngestSample(sample PriceSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample)
	cutoff := sample.Timestamp.Add(-sampleWindow)
	trimmed := m.samples[:0]
	for _, s := range m.samples {
		if s.Timestamp.After(cutoff) {
			trimmed = append(trimmed, s)
		}
	}
	m.samples = trimmed
}

// meanPrice returns the arithmetic mean of buffered samples, or false if
// none are buffered yet.
func (m *Monitor) meanPrice() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range m.samples {
		sum += s.USDPrice
	}
	return sum / float64(len(m.samples)), true
}

// Run ticks the evaluation loop and, on a slower cadence, refreshes the
// contract cache, until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	evalTicker := time.NewTicker(m.tickInterval)
	defer evalTicker.Stop()
	refreshTicker := time.NewTicker(m.refreshInterval)
	defer refreshTicker.Stop()

	if err := m.cache.Refresh(ctx, m.source); err != nil {
		metrics.Liquidation().IncCacheRefreshFailure()
		m.logger.Error("liquidation monitor: initial cache refresh failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refreshTicker.C:
			if err := m.cache.Refresh(ctx, m.source); err != nil {
				metrics.Liquidation().IncCacheRefreshFailure()
				m.logger.Error("liquidation monitor: cache refresh failed", "error", err)
			}
		case <-evalTicker.C:
			m.Tick(ctx)
		}
	}
}

// Tick evaluates every cached contract against the current mean price. One
// contract's failure is logged and the loop proceeds to the next.
func (m *Monitor) Tick(ctx context.Context) {
	price, ok := m.meanPrice()
	if !ok {
		return
	}
	metrics.Liquidation().SetMeanPrice(price)
	for _, entry := range m.cache.Snapshot() {
		ltv, err := computeLTV(entry.OutstandingUSD, entry.CollateralSats, price)
		if err != nil {
			m.logger.Error("liquidation monitor: ltv computation failed",
				"contract_id", entry.ContractID, "error", err)
			continue
		}
		metrics.Liquidation().SetLTV(entry.ContractID.String(), ltv)
		target := m.classify(ltv, entry.CreatedAt)
		if err := m.updater.ApplyLTV(ctx, entry.ContractID, ltv, target); err != nil {
			m.logger.Error("liquidation monitor: apply ltv failed",
				"contract_id", entry.ContractID, "ltv", ltv, "error", err)
			continue
		}
		metrics.Liquidation().IncSubStatusChange(target.String())
		if target == contract.SubStatusLiquidated {
			metrics.Liquidation().IncLiquidation()
		}
	}
}

// classify maps an LTV figure to the margin-call ladder rung it has
// reached, honoring the date-dependent legacy liquidation threshold.
func (m *Monitor) classify(ltv float64, createdAt time.Time) contract.LiquidationSubStatus {
	switch {
	case ltv >= m.thresholds.liquidationThresholdFor(createdAt):
		return contract.SubStatusLiquidated
	case ltv >= m.thresholds.MarginCall2:
		return contract.SubStatusSecondMarginCall
	case ltv >= m.thresholds.MarginCall1:
		return contract.SubStatusFirstMarginCall
	default:
		return contract.SubStatusHealthy
	}
}

// usdScale fixes the decimal precision carried through the 256-bit
// multiplication below: prices are rounded to 1e8 of a dollar, matching
// satoshi precision on the other side of the multiply.
const usdScale = 1e8

// computeLTV returns outstandingUSD / collateralValueUSD, where
// collateralValueUSD = collateralSats * priceUSD / 1e8 (sats per BTC).
// The multiplication is carried out in 256-bit arithmetic because
// collateralSats (up to ~2.1e15) times a scaled price (up to ~1.5e13 for a
// six-figure BTC price) overflows a 64-bit accumulator well before the
// division collapses it back to a sane USD figure.
func computeLTV(outstandingUSD float64, collateralSats int64, priceUSD float64) (float64, error) {
	if collateralSats <= 0 || priceUSD <= 0 {
		return 0, fmt.Errorf("liquidation: non-positive collateral sats or price")
	}
	priceScaled := uint64(math.Round(priceUSD * usdScale))
	sats := uint256.NewInt(uint64(collateralSats))
	price := uint256.NewInt(priceScaled)

	product := new(uint256.Int).Mul(sats, price) // collateralSats * priceUSD * 1e8
	denom := new(uint256.Int).Mul(uint256.NewInt(usdScale), uint256.NewInt(usdScale))
	collateralValue := new(uint256.Int).Div(product, denom) // collateralSats * priceUSD / 1e8

	if collateralValue.IsZero() {
		return 0, fmt.Errorf("liquidation: collateral value computed as zero")
	}
	collateralValueUSD, _ := new(big.Float).SetInt(collateralValue.ToBig()).Float64()
	return outstandingUSD / collateralValueUSD, nil
}
