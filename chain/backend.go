// Package chain watches Bitcoin addresses for collateral activity through
// interchangeable REST/WebSocket backends and reconciles what it sees into
// a confirmed_collateral_sats figure per contract.
package chain

import "context"

// Prevout is the spent output referenced by a transaction input, as
// reported by an Esplora-compatible backend.
type Prevout struct {
	ScriptPubKey string
	Address      string
	Value        int64
}

// Vin is one transaction input. Txid and Vout identify the outpoint being
// spent, as reported by the backend.
type Vin struct {
	Txid    string
	Vout    uint32
	Prevout *Prevout
}

// Vout is one transaction output.
type Vout struct {
	ScriptPubKey        string
	ScriptPubKeyAddress string
	Value               int64
}

// TxStatus carries confirmation state for a transaction.
type TxStatus struct {
	Confirmed   bool
	BlockHeight int64
	BlockTime   int64
}

// Tx is a transaction as returned by GetAddressTxs/GetTx.
type Tx struct {
	Txid   string
	Vin    []Vin
	Vout   []Vout
	Status TxStatus
}

// CollateralOutput is one unspent output on a contract address, as reported
// by GetCollateralOutputs.
type CollateralOutput struct {
	Txid string
	Vout uint32
	Sats int64
}

// Backend is the capability set the watcher needs from a chain data
// provider. Esplora and mempool.space backends both implement it so the
// watcher can fail over between configured URLs without caring which kind
// is live.
type Backend interface {
	Name() string
	GetTipHeight(ctx context.Context) (int64, error)
	GetAddressTxs(ctx context.Context, address string) ([]Tx, error)
	GetTx(ctx context.Context, txid string) (*Tx, error)
	PostTx(ctx context.Context, rawHex string) (string, error)
}
