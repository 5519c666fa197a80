// Package collateral builds the P2WSH multisig descriptors that lock a
// contract's Bitcoin collateral: the current 2-of-3 scheme (borrower,
// lender, hub) and the legacy 2-of-4 scheme retained for contracts opened
// before the scheme change.
package collateral

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Descriptor is the fully-resolved locking script for one contract's
// collateral output: an M-of-N P2WSH multisig over lexicographically
// sorted compressed public keys.
type Descriptor struct {
	Threshold     int
	PubKeys       [][]byte // sorted ascending, compressed SEC1, 33 bytes each
	WitnessScript []byte
	ScriptPubKey  []byte
	Address       btcutil.Address
}

// New builds a Descriptor for an M-of-N multisig over pubKeys, which need
// not already be sorted. The current scheme calls this with threshold 2 and
// three keys (borrower, lender, hub); the legacy scheme calls it with
// threshold 2 and four keys.
func New(threshold int, pubKeys [][]byte, net *chaincfg.Params) (*Descriptor, error) {
	if threshold < 1 || threshold > len(pubKeys) {
		return nil, fmt.Errorf("collateral: threshold %d invalid for %d keys", threshold, len(pubKeys))
	}
	if len(pubKeys) < 2 || len(pubKeys) > 15 {
		return nil, fmt.Errorf("collateral: unsupported key count %d", len(pubKeys))
	}
	sorted := make([][]byte, len(pubKeys))
	copy(sorted, pubKeys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	for _, pub := range sorted {
		if len(pub) != 33 {
			return nil, fmt.Errorf("collateral: compressed pubkeys only, got %d bytes", len(pub))
		}
	}

	witnessScript, err := multiSigScript(threshold, sorted)
	if err != nil {
		return nil, fmt.Errorf("collateral: build witness script: %w", err)
	}
	scriptHash := sha256.Sum256(witnessScript)
	scriptPubKey, err := witnessScriptHashPkScript(scriptHash[:])
	if err != nil {
		return nil, fmt.Errorf("collateral: build scriptPubKey: %w", err)
	}
	addr, err := btcutil.NewAddressWitnessScriptHash(scriptHash[:], net)
	if err != nil {
		return nil, fmt.Errorf("collateral: build address: %w", err)
	}

	return &Descriptor{
		Threshold:     threshold,
		PubKeys:       sorted,
		WitnessScript: witnessScript,
		ScriptPubKey:  scriptPubKey,
		Address:       addr,
	}, nil
}

// multiSigScript builds "OP_<m> <pub1> ... <pubN> OP_<n> OP_CHECKMULTISIG"
// over already-sorted compressed pubkeys.
func multiSigScript(threshold int, sortedPubKeys [][]byte) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddInt64(int64(threshold))
	for _, pub := range sortedPubKeys {
		bldr.AddData(pub)
	}
	bldr.AddInt64(int64(len(sortedPubKeys)))
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	return bldr.Script()
}

// witnessScriptHashPkScript builds the v0 P2WSH scriptPubKey paying to a
// witness script's sha256 hash.
func witnessScriptHashPkScript(scriptHash []byte) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	bldr.AddData(scriptHash)
	return bldr.Script()
}

// KeyIndex returns the position of pubKey within the descriptor's sorted key
// list, used to place a signature correctly in the PSBT partial-sig map.
func (d *Descriptor) KeyIndex(pubKey []byte) (int, bool) {
	for i, pub := range d.PubKeys {
		if bytes.Equal(pub, pubKey) {
			return i, true
		}
	}
	return 0, false
}
