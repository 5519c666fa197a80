package collateral

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/satlend/hub/crypto"
)

// FeeWallet hands out the hub's origination-fee receiving addresses, one
// fresh single-sig payout address per spend. Address allocation is
// serialized behind a mutex so two concurrent spend constructions never
// share a leaf index.
type FeeWallet struct {
	tree   *crypto.KeyTree
	params *chaincfg.Params

	mu        sync.Mutex
	nextIndex uint32
}

// NewFeeWallet constructs a FeeWallet over the hub's key tree, resuming
// allocation at startIndex (persisted by the caller across restarts).
func NewFeeWallet(tree *crypto.KeyTree, params *chaincfg.Params, startIndex uint32) (*FeeWallet, error) {
	if tree == nil {
		return nil, fmt.Errorf("collateral: fee wallet requires a key tree")
	}
	if params == nil {
		return nil, fmt.Errorf("collateral: fee wallet requires network params")
	}
	return &FeeWallet{tree: tree, params: params, nextIndex: startIndex}, nil
}

// NewAddress allocates the next payout leaf and returns its P2WPKH address
// together with the leaf index the caller should persist.
func (w *FeeWallet) NewAddress() (btcutil.Address, uint32, error) {
	w.mu.Lock()
	index := w.nextIndex
	w.nextIndex++
	w.mu.Unlock()

	leaf, err := w.tree.PurposePayoutKey(index)
	if err != nil {
		return nil, 0, fmt.Errorf("collateral: derive payout leaf %d: %w", index, err)
	}
	pub, err := crypto.LeafPublicKey(leaf)
	if err != nil {
		return nil, 0, fmt.Errorf("collateral: payout leaf %d: %w", index, err)
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SECCompressed()), w.params)
	if err != nil {
		return nil, 0, fmt.Errorf("collateral: payout address %d: %w", index, err)
	}
	return addr, index, nil
}
