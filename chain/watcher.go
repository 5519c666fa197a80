package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satlend/hub/observability/metrics"
)

// SpendKind tags which settlement family a tracked claim transaction
// belongs to, so the updater can drive the contract to the matching
// terminal status without this package importing contract.
type SpendKind string

const (
	SpendKindClaim       SpendKind = "claim"
	SpendKindLiquidation SpendKind = "liquidation"
	SpendKindDefault     SpendKind = "default"
	SpendKindRecovery    SpendKind = "recovery"
)

// StatusUpdater is the narrow slice of the contract state machine the
// watcher drives: the newest confirmed-sats figure per contract, and the
// confirmation of a tracked settlement spend. Kept as an interface here so
// this package never imports contract, avoiding a cycle (contract does not
// depend on chain either; the coordinator wires the two together).
type StatusUpdater interface {
	ObserveCollateral(ctx context.Context, contractID uuid.UUID, confirmedSats int64, seenUnconfirmed bool) error
	SpendSettled(ctx context.Context, contractID uuid.UUID, kind SpendKind) error
}

// Archiver receives a copy of every reconciled CollateralTxRecord, for
// durable storage independent of the watcher's own leveldb ledger.
// Optional: a watcher with no archiver configured simply skips this side
// channel.
type Archiver interface {
	Put(ctx context.Context, record CollateralTxRecord) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger installs a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithMinConfirmations overrides the default confirmation threshold.
func WithMinConfirmations(n int64) Option {
	return func(w *Watcher) { w.minConfirmations = n }
}

// WithArchiver installs a durable sink for every reconciled record.
func WithArchiver(a Archiver) Option {
	return func(w *Watcher) { w.archiver = a }
}

// claimWatch is one tracked settlement transaction awaiting confirmation.
type claimWatch struct {
	txid string
	kind SpendKind
}

// Watcher polls configured Backends on a fixed interval, reconciling each
// tracked contract address's transaction history into a
// confirmed_collateral_sats figure and tracking settlement spends to
// closure.
type Watcher struct {
	backends         []Backend
	ledger           *Ledger
	updater          StatusUpdater
	archiver         Archiver
	interval         time.Duration
	minConfirmations int64
	logger           *slog.Logger

	mu         sync.Mutex
	backendIdx int
	tracked    map[uuid.UUID]string
	claims     map[uuid.UUID]claimWatch
}

// New constructs a Watcher. At least one backend is required; backends are
// tried in round-robin order on failure.
func New(backends []Backend, ledger *Ledger, updater StatusUpdater, interval time.Duration, opts ...Option) (*Watcher, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("chain: at least one backend required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("chain: ledger required")
	}
	if updater == nil {
		return nil, fmt.Errorf("chain: status updater required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("chain: interval must be positive")
	}
	w := &Watcher{
		backends:         append([]Backend(nil), backends...),
		ledger:           ledger,
		updater:          updater,
		interval:         interval,
		minConfirmations: 1,
		logger:           slog.Default(),
		tracked:          make(map[uuid.UUID]string),
		claims:           make(map[uuid.UUID]claimWatch),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// TrackContractFunding adds a contract's collateral address to the
// reconciliation set.
func (w *Watcher) TrackContractFunding(contractID uuid.UUID, address string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracked[contractID] = address
}

// TrackCollateralClaim registers a broadcast settlement transaction for
// confirmation tracking; once it confirms, the updater is told which spend
// family settled and the contract is untracked.
func (w *Watcher) TrackCollateralClaim(contractID uuid.UUID, claimTxid string, kind SpendKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.claims[contractID] = claimWatch{txid: claimTxid, kind: kind}
}

// Untrack removes a contract once its collateral has reached a terminal
// disposition and no further activity is expected.
func (w *Watcher) Untrack(contractID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.tracked, contractID)
	delete(w.claims, contractID)
}

// PostTx broadcasts a raw transaction through the first healthy backend and
// returns its txid.
func (w *Watcher) PostTx(ctx context.Context, rawHex string) (string, error) {
	return withFailoverGeneric(w, func(b Backend) (string, error) {
		return b.PostTx(ctx, rawHex)
	})
}

// GetCollateralOutputs returns the unspent outputs currently held on a
// contract address, for spend construction.
func (w *Watcher) GetCollateralOutputs(ctx context.Context, address string) ([]CollateralOutput, error) {
	txs, err := withFailoverGeneric(w, func(b Backend) ([]Tx, error) {
		return b.GetAddressTxs(ctx, address)
	})
	if err != nil {
		return nil, fmt.Errorf("chain: fetch address txs: %w", err)
	}

	type outpoint struct {
		txid string
		vout uint32
	}
	spent := make(map[outpoint]bool)
	for _, tx := range txs {
		for _, vin := range tx.Vin {
			if vin.Prevout != nil && vin.Prevout.Address == address {
				spent[outpoint{vin.Txid, vin.Vout}] = true
			}
		}
	}

	var outputs []CollateralOutput
	for _, tx := range txs {
		for i, vout := range tx.Vout {
			if vout.ScriptPubKeyAddress != address {
				continue
			}
			if spent[outpoint{tx.Txid, uint32(i)}] {
				continue
			}
			outputs = append(outputs, CollateralOutput{Txid: tx.Txid, Vout: uint32(i), Sats: vout.Value})
		}
	}
	return outputs, nil
}

// Run blocks, ticking until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.Tick(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("chain watcher tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunSubscription maintains a push-driven side channel next to the polling
// loop: it subscribes to blocks plus every tracked address over the
// backend's WebSocket, and answers each pushed frame with an immediate
// reconciliation pass through the same ingestion logic Run uses. Dropped
// connections are re-established with exponential backoff.
func (w *Watcher) RunSubscription(ctx context.Context, backend *MempoolSpaceBackend) error {
	backoff := time.Second
	const maxBackoff = 2 * time.Minute
	for {
		w.mu.Lock()
		addresses := make([]string, 0, len(w.tracked))
		for _, addr := range w.tracked {
			addresses = append(addresses, addr)
		}
		w.mu.Unlock()

		frames := make(chan Frame, 16)
		subErr := make(chan error, 1)
		subCtx, cancel := context.WithCancel(ctx)
		go func() { subErr <- backend.Subscribe(subCtx, addresses, frames) }()

	consume:
		for {
			select {
			case <-ctx.Done():
				cancel()
				<-subErr
				return ctx.Err()
			case <-frames:
				if err := w.Tick(ctx); err != nil && ctx.Err() == nil {
					w.logger.Error("chain watcher: push-driven tick failed", "error", err)
				}
				backoff = time.Second
			case err := <-subErr:
				cancel()
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Warn("chain watcher: websocket subscription dropped",
					"backend", backend.Name(), "error", err, "retry_in", backoff)
				break consume
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Tick performs one reconciliation pass over every tracked address and
// tracked settlement transaction. One contract's failure is logged and the
// loop proceeds to the next: a flaky contract never stalls the rest.
func (w *Watcher) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.Watcher().ObserveTickDuration(time.Since(start).Seconds()) }()

	w.mu.Lock()
	addresses := make(map[uuid.UUID]string, len(w.tracked))
	for id, addr := range w.tracked {
		addresses[id] = addr
	}
	claims := make(map[uuid.UUID]claimWatch, len(w.claims))
	for id, c := range w.claims {
		claims[id] = c
	}
	w.mu.Unlock()

	tipHeight, err := withFailoverGeneric(w, func(b Backend) (int64, error) {
		return b.GetTipHeight(ctx)
	})
	if err != nil {
		metrics.Watcher().IncTickFailure("tip_height")
		return fmt.Errorf("chain: fetch tip height: %w", err)
	}

	for contractID, address := range addresses {
		if err := w.processAddress(ctx, contractID, address, tipHeight); err != nil {
			metrics.Watcher().IncTickFailure("reconcile")
			w.logger.Error("chain watcher: contract reconciliation failed",
				"contract_id", contractID, "error", err)
		}
	}
	for contractID, claim := range claims {
		if err := w.processClaim(ctx, contractID, claim, tipHeight); err != nil {
			metrics.Watcher().IncTickFailure("claim")
			w.logger.Error("chain watcher: claim tracking failed",
				"contract_id", contractID, "txid", claim.txid, "error", err)
		}
	}
	return nil
}

func (w *Watcher) processAddress(ctx context.Context, contractID uuid.UUID, address string, tipHeight int64) error {
	txs, err := withFailoverGeneric(w, func(b Backend) ([]Tx, error) {
		return b.GetAddressTxs(ctx, address)
	})
	if err != nil {
		return fmt.Errorf("fetch address txs: %w", err)
	}

	for _, tx := range txs {
		var deposited, spent int64
		for _, vout := range tx.Vout {
			if vout.ScriptPubKeyAddress == address {
				deposited += vout.Value
			}
		}
		for _, vin := range tx.Vin {
			if vin.Prevout != nil && vin.Prevout.Address == address {
				spent += vin.Prevout.Value
			}
		}

		record := CollateralTxRecord{ContractID: contractID, Txid: tx.Txid, DepositedSats: deposited, SpentSats: spent}
		if tx.Status.Confirmed && tipHeight-tx.Status.BlockHeight+1 >= w.minConfirmations {
			record.BlockHeight = tx.Status.BlockHeight
			record.BlockTime = tx.Status.BlockTime
		}
		if err := w.ledger.Put(record); err != nil {
			return fmt.Errorf("persist record %s: %w", tx.Txid, err)
		}
		if w.archiver != nil {
			if err := w.archiver.Put(ctx, record); err != nil {
				w.logger.Error("chain watcher: archive record failed",
					"contract_id", contractID, "txid", tx.Txid, "error", err)
			}
		}
	}

	confirmed, pending, err := w.ledger.CollateralSums(contractID)
	if err != nil {
		return fmt.Errorf("sum collateral: %w", err)
	}
	if confirmed < 0 {
		w.logger.Warn("chain watcher: negative confirmed collateral sum ignored",
			"contract_id", contractID, "sum", confirmed)
		return nil
	}
	metrics.Watcher().SetConfirmedCollateral(contractID.String(), confirmed)

	return w.updater.ObserveCollateral(ctx, contractID, confirmed, pending > 0)
}

func (w *Watcher) processClaim(ctx context.Context, contractID uuid.UUID, claim claimWatch, tipHeight int64) error {
	tx, err := withFailoverGeneric(w, func(b Backend) (*Tx, error) {
		return b.GetTx(ctx, claim.txid)
	})
	if err != nil {
		return fmt.Errorf("fetch claim tx: %w", err)
	}
	if !tx.Status.Confirmed || tipHeight-tx.Status.BlockHeight+1 < w.minConfirmations {
		return nil
	}
	if err := w.updater.SpendSettled(ctx, contractID, claim.kind); err != nil {
		return fmt.Errorf("settle spend: %w", err)
	}
	w.Untrack(contractID)
	return nil
}

// withFailoverGeneric runs fn against the backend that last succeeded,
// advancing to the next configured backend on any error until every backend
// has been tried once; if all fail it returns the last error. The
// sticky backend index is read and advanced under w.mu: the polling loop
// and the WebSocket subscription both reach this path from their own
// goroutines.
func withFailoverGeneric[T any](w *Watcher, fn func(Backend) (T, error)) (T, error) {
	var zero T
	var lastErr error
	w.mu.Lock()
	start := w.backendIdx
	w.mu.Unlock()
	for i := 0; i < len(w.backends); i++ {
		idx := (start + i) % len(w.backends)
		result, err := fn(w.backends[idx])
		if err == nil {
			w.mu.Lock()
			w.backendIdx = idx
			w.mu.Unlock()
			return result, nil
		}
		lastErr = err
		if i < len(w.backends)-1 {
			metrics.Watcher().IncBackendFailover(w.backends[idx].Name())
		}
	}
	return zero, lastErr
}
