package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CollateralTxRecord mirrors chain.CollateralTxRecord for the audit copy
// kept in Postgres; storage/postgres does not import chain (chain is wired
// to storage only through cmd/hubd's pgArchiver adapter).
type CollateralTxRecord struct {
	ContractID    uuid.UUID
	Txid          string
	DepositedSats int64
	SpentSats     int64
	BlockHeight   int64
	BlockTime     int64
}

// CollateralTxStore archives the watcher's per-(contract,txid) ledger rows
// for durability and for cmd/hub-audit's parquet export, independent of the
// watcher's own in-process goleveldb ledger.
type CollateralTxStore struct {
	db *gorm.DB
}

// NewCollateralTxStore constructs a CollateralTxStore.
func NewCollateralTxStore(db *gorm.DB) *CollateralTxStore { return &CollateralTxStore{db: db} }

// Put upserts one record, matching the watcher's own idempotent-overwrite
// reorg policy keyed on txid.
func (s *CollateralTxStore) Put(ctx context.Context, rec CollateralTxRecord) error {
	row := collateralTxRow{
		ContractID:    rec.ContractID,
		Txid:          rec.Txid,
		DepositedSats: rec.DepositedSats,
		SpentSats:     rec.SpentSats,
		BlockHeight:   rec.BlockHeight,
		BlockTime:     rec.BlockTime,
		RecordedAt:    time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract_id"}, {Name: "txid"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// ListByContract returns every archived record for contractID, oldest first.
func (s *CollateralTxStore) ListByContract(ctx context.Context, contractID uuid.UUID) ([]CollateralTxRecord, error) {
	var rows []collateralTxRow
	if err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("recorded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]CollateralTxRecord, len(rows))
	for i, row := range rows {
		out[i] = CollateralTxRecord{
			ContractID:    row.ContractID,
			Txid:          row.Txid,
			DepositedSats: row.DepositedSats,
			SpentSats:     row.SpentSats,
			BlockHeight:   row.BlockHeight,
			BlockTime:     row.BlockTime,
		}
	}
	return out, nil
}

// ListBetween returns every archived record recorded within [start, end), for
// cmd/hub-audit's export window.
func (s *CollateralTxStore) ListBetween(ctx context.Context, start, end time.Time) ([]CollateralTxRecord, error) {
	var rows []collateralTxRow
	if err := s.db.WithContext(ctx).
		Where("recorded_at >= ? AND recorded_at < ?", start, end).
		Order("recorded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]CollateralTxRecord, len(rows))
	for i, row := range rows {
		out[i] = CollateralTxRecord{
			ContractID:    row.ContractID,
			Txid:          row.Txid,
			DepositedSats: row.DepositedSats,
			SpentSats:     row.SpentSats,
			BlockHeight:   row.BlockHeight,
			BlockTime:     row.BlockTime,
		}
	}
	return out, nil
}
