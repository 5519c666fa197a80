package chain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// CollateralTxRecord is one (contract, txid) row: the net movement a
// transaction caused on a contract address.
type CollateralTxRecord struct {
	ContractID    uuid.UUID
	Txid          string
	DepositedSats int64
	SpentSats     int64
	BlockHeight   int64 // 0 until confirmed
	BlockTime     int64
}

// Ledger is the watcher's local per-address bookkeeping store: a
// goleveldb-backed KV cache of CollateralTxRecord rows, reconciled into
// confirmed_collateral_sats on every tick. It sits in front of the SQL
// store so a flaky chain backend never blocks on a database round trip per
// transaction.
type Ledger struct {
	db *leveldb.DB
}

// OpenLedger opens (creating if absent) a goleveldb database at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: open ledger at %s: %w", path, err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

func recordKey(contractID uuid.UUID, txid string) []byte {
	return []byte(contractID.String() + "/" + txid)
}

// Put idempotently overwrites the row for (record.ContractID, record.Txid).
// A block height once set is never cleared; a
// write attempting to clear one is rejected rather than silently applied.
func (l *Ledger) Put(record CollateralTxRecord) error {
	key := recordKey(record.ContractID, record.Txid)
	if existing, err := l.get(key); err == nil && existing.BlockHeight > 0 && record.BlockHeight == 0 {
		return fmt.Errorf("chain: refusing to unset block_height for %s/%s", record.ContractID, record.Txid)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("chain: marshal collateral tx record: %w", err)
	}
	if err := l.db.Put(key, data, nil); err != nil {
		return fmt.Errorf("chain: persist collateral tx record: %w", err)
	}
	return nil
}

func (l *Ledger) get(key []byte) (CollateralTxRecord, error) {
	var record CollateralTxRecord
	data, err := l.db.Get(key, nil)
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("chain: unmarshal collateral tx record: %w", err)
	}
	return record, nil
}

// CollateralSums sums deposited-minus-spent across every row for
// contractID: confirmedSats over rows with a block height set, pendingSats
// over rows still in the mempool. A negative confirmed sum is logged by the
// caller and ignored rather than propagated.
func (l *Ledger) CollateralSums(contractID uuid.UUID) (confirmedSats, pendingSats int64, err error) {
	prefix := []byte(contractID.String() + "/")
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		var record CollateralTxRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return 0, 0, fmt.Errorf("chain: unmarshal collateral tx record: %w", err)
		}
		if record.BlockHeight > 0 {
			confirmedSats += record.DepositedSats - record.SpentSats
		} else {
			pendingSats += record.DepositedSats - record.SpentSats
		}
	}
	if err := iter.Error(); err != nil {
		return 0, 0, fmt.Errorf("chain: iterate collateral tx records: %w", err)
	}
	return confirmedSats, pendingSats, nil
}
