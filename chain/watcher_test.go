package chain

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves canned data for watcher tests.
type fakeBackend struct {
	name      string
	mu        sync.Mutex
	tipHeight int64
	addressTx map[string][]Tx
	txs       map[string]*Tx
	failing   bool
	posted    []string
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{
		name:      name,
		tipHeight: 100,
		addressTx: make(map[string][]Tx),
		txs:       make(map[string]*Tx),
	}
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) GetTipHeight(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return 0, errors.New("backend down")
	}
	return b.tipHeight, nil
}

func (b *fakeBackend) GetAddressTxs(ctx context.Context, address string) ([]Tx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return nil, errors.New("backend down")
	}
	return b.addressTx[address], nil
}

func (b *fakeBackend) GetTx(ctx context.Context, txid string) (*Tx, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return nil, errors.New("backend down")
	}
	tx, ok := b.txs[txid]
	if !ok {
		return nil, errors.New("tx not found")
	}
	return tx, nil
}

func (b *fakeBackend) PostTx(ctx context.Context, rawHex string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return "", errors.New("backend down")
	}
	b.posted = append(b.posted, rawHex)
	return "posted-txid", nil
}

func (b *fakeBackend) setAddressTxs(address string, txs ...Tx) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addressTx[address] = txs
	for i := range txs {
		tx := txs[i]
		b.txs[tx.Txid] = &tx
	}
}

// recordingUpdater captures every updater call.
type recordingUpdater struct {
	mu      sync.Mutex
	figures []int64
	seen    []bool
	settled []SpendKind
}

func (u *recordingUpdater) ObserveCollateral(ctx context.Context, contractID uuid.UUID, confirmedSats int64, seenUnconfirmed bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.figures = append(u.figures, confirmedSats)
	u.seen = append(u.seen, seenUnconfirmed)
	return nil
}

func (u *recordingUpdater) SpendSettled(ctx context.Context, contractID uuid.UUID, kind SpendKind) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.settled = append(u.settled, kind)
	return nil
}

func (u *recordingUpdater) last() (int64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.figures) == 0 {
		return 0, false
	}
	return u.figures[len(u.figures)-1], u.seen[len(u.seen)-1]
}

func depositTx(txid, address string, sats int64, blockHeight int64) Tx {
	tx := Tx{
		Txid: txid,
		Vout: []Vout{{ScriptPubKeyAddress: address, Value: sats}},
	}
	if blockHeight > 0 {
		tx.Status = TxStatus{Confirmed: true, BlockHeight: blockHeight, BlockTime: 1700000000}
	}
	return tx
}

func newTestWatcher(t *testing.T, backends ...Backend) (*Watcher, *recordingUpdater, *Ledger) {
	t.Helper()
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	updater := &recordingUpdater{}
	watcher, err := New(backends, ledger, updater, time.Minute)
	require.NoError(t, err)
	return watcher, updater, ledger
}

func TestFundingSingleTx(t *testing.T) {
	backend := newFakeBackend("primary")
	watcher, updater, _ := newTestWatcher(t, backend)

	contractID := uuid.New()
	addr := "bcrt1qcontract"
	watcher.TrackContractFunding(contractID, addr)

	// Unconfirmed first: the figure stays at zero but the deposit is seen.
	backend.setAddressTxs(addr, depositTx("tx-1", addr, 10000, 0))
	require.NoError(t, watcher.Tick(context.Background()))
	figure, seen := updater.last()
	require.Zero(t, figure)
	require.True(t, seen)

	// Confirmation flips the full amount into the confirmed sum.
	backend.setAddressTxs(addr, depositTx("tx-1", addr, 10000, 90))
	require.NoError(t, watcher.Tick(context.Background()))
	figure, seen = updater.last()
	require.Equal(t, int64(10000), figure)
	require.False(t, seen)
}

func TestFundingTwoOutputs(t *testing.T) {
	backend := newFakeBackend("primary")
	watcher, updater, _ := newTestWatcher(t, backend)

	contractID := uuid.New()
	addr := "bcrt1qcontract"
	watcher.TrackContractFunding(contractID, addr)

	backend.setAddressTxs(addr, depositTx("tx-1", addr, 5000, 90))
	require.NoError(t, watcher.Tick(context.Background()))
	figure, _ := updater.last()
	require.Equal(t, int64(5000), figure)

	backend.setAddressTxs(addr,
		depositTx("tx-1", addr, 5000, 90),
		depositTx("tx-2", addr, 5000, 95),
	)
	require.NoError(t, watcher.Tick(context.Background()))
	figure, _ = updater.last()
	require.Equal(t, int64(10000), figure)
}

func TestReconciliationIdempotent(t *testing.T) {
	backend := newFakeBackend("primary")
	watcher, updater, ledger := newTestWatcher(t, backend)

	contractID := uuid.New()
	addr := "bcrt1qcontract"
	watcher.TrackContractFunding(contractID, addr)
	backend.setAddressTxs(addr,
		depositTx("tx-1", addr, 7000, 90),
		depositTx("tx-2", addr, 3000, 91),
	)

	// The final figure is a pure function of the transaction set,
	// independent of how many ticks observe it.
	for i := 0; i < 5; i++ {
		require.NoError(t, watcher.Tick(context.Background()))
	}
	figure, _ := updater.last()
	require.Equal(t, int64(10000), figure)

	confirmed, pending, err := ledger.CollateralSums(contractID)
	require.NoError(t, err)
	require.Equal(t, int64(10000), confirmed)
	require.Zero(t, pending)
}

func TestSpendReducesCollateral(t *testing.T) {
	backend := newFakeBackend("primary")
	watcher, updater, _ := newTestWatcher(t, backend)

	contractID := uuid.New()
	addr := "bcrt1qcontract"
	watcher.TrackContractFunding(contractID, addr)

	spend := Tx{
		Txid: "tx-spend",
		Vin: []Vin{{
			Txid: "tx-1", Vout: 0,
			Prevout: &Prevout{Address: addr, Value: 10000},
		}},
		Vout:   []Vout{{ScriptPubKeyAddress: "bcrt1qelsewhere", Value: 9500}},
		Status: TxStatus{Confirmed: true, BlockHeight: 95, BlockTime: 1700000100},
	}
	backend.setAddressTxs(addr, depositTx("tx-1", addr, 10000, 90), spend)

	require.NoError(t, watcher.Tick(context.Background()))
	figure, _ := updater.last()
	require.Zero(t, figure)
}

func TestNegativeSumIgnored(t *testing.T) {
	backend := newFakeBackend("primary")
	watcher, updater, _ := newTestWatcher(t, backend)

	contractID := uuid.New()
	addr := "bcrt1qcontract"
	watcher.TrackContractFunding(contractID, addr)

	// A spend with no matching deposit row sums negative; the watcher logs
	// it and reports nothing.
	spend := Tx{
		Txid:   "tx-orphan-spend",
		Vin:    []Vin{{Txid: "tx-ghost", Vout: 0, Prevout: &Prevout{Address: addr, Value: 4000}}},
		Status: TxStatus{Confirmed: true, BlockHeight: 95},
	}
	backend.setAddressTxs(addr, spend)

	require.NoError(t, watcher.Tick(context.Background()))
	_, ok := updater.last()
	require.False(t, ok)
}

func TestBackendFailover(t *testing.T) {
	primary := newFakeBackend("primary")
	secondary := newFakeBackend("secondary")
	watcher, updater, _ := newTestWatcher(t, primary, secondary)

	contractID := uuid.New()
	addr := "bcrt1qcontract"
	watcher.TrackContractFunding(contractID, addr)
	secondary.setAddressTxs(addr, depositTx("tx-1", addr, 10000, 90))

	primary.mu.Lock()
	primary.failing = true
	primary.mu.Unlock()

	require.NoError(t, watcher.Tick(context.Background()))
	figure, _ := updater.last()
	require.Equal(t, int64(10000), figure)
}

func TestAllBackendsDown(t *testing.T) {
	primary := newFakeBackend("primary")
	primary.failing = true
	watcher, _, _ := newTestWatcher(t, primary)
	require.Error(t, watcher.Tick(context.Background()))
}

func TestClaimTracking(t *testing.T) {
	backend := newFakeBackend("primary")
	watcher, updater, _ := newTestWatcher(t, backend)

	contractID := uuid.New()
	watcher.TrackCollateralClaim(contractID, "tx-claim", SpendKindLiquidation)

	backend.txs["tx-claim"] = &Tx{Txid: "tx-claim"}
	require.NoError(t, watcher.Tick(context.Background()))
	require.Empty(t, updater.settled)

	backend.txs["tx-claim"] = &Tx{
		Txid:   "tx-claim",
		Status: TxStatus{Confirmed: true, BlockHeight: 99},
	}
	require.NoError(t, watcher.Tick(context.Background()))
	require.Equal(t, []SpendKind{SpendKindLiquidation}, updater.settled)

	// Settled claims are untracked; further ticks do not re-settle.
	require.NoError(t, watcher.Tick(context.Background()))
	require.Len(t, updater.settled, 1)
}

func TestGetCollateralOutputs(t *testing.T) {
	backend := newFakeBackend("primary")
	watcher, _, _ := newTestWatcher(t, backend)

	addr := "bcrt1qcontract"
	spendOfFirst := Tx{
		Txid:   "tx-spend",
		Vin:    []Vin{{Txid: "tx-1", Vout: 0, Prevout: &Prevout{Address: addr, Value: 4000}}},
		Status: TxStatus{Confirmed: true, BlockHeight: 96},
	}
	backend.setAddressTxs(addr,
		depositTx("tx-1", addr, 4000, 90),
		depositTx("tx-2", addr, 6000, 92),
		spendOfFirst,
	)

	outputs, err := watcher.GetCollateralOutputs(context.Background(), addr)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Equal(t, "tx-2", outputs[0].Txid)
	require.Equal(t, uint32(0), outputs[0].Vout)
	require.Equal(t, int64(6000), outputs[0].Sats)
}

func TestPostTx(t *testing.T) {
	backend := newFakeBackend("primary")
	watcher, _, _ := newTestWatcher(t, backend)

	txid, err := watcher.PostTx(context.Background(), "0200aabbcc")
	require.NoError(t, err)
	require.Equal(t, "posted-txid", txid)
	require.Equal(t, []string{"0200aabbcc"}, backend.posted)
}
