package main

import (
	"context"

	"github.com/satlend/hub/chain"
	"github.com/satlend/hub/storage/postgres"
)

// pgArchiver adapts postgres.CollateralTxStore to chain.Archiver. It lives
// in cmd/hubd rather than storage/postgres so that package never needs to
// import chain (see storage/postgres/collateraltx_store.go's own note).
type pgArchiver struct {
	store *postgres.CollateralTxStore
}

func newPGArchiver(store *postgres.CollateralTxStore) *pgArchiver {
	return &pgArchiver{store: store}
}

var _ chain.Archiver = (*pgArchiver)(nil)

func (a *pgArchiver) Put(ctx context.Context, record chain.CollateralTxRecord) error {
	return a.store.Put(ctx, postgres.CollateralTxRecord{
		ContractID:    record.ContractID,
		Txid:          record.Txid,
		DepositedSats: record.DepositedSats,
		SpentSats:     record.SpentSats,
		BlockHeight:   record.BlockHeight,
		BlockTime:     record.BlockTime,
	})
}
