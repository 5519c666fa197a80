package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/satlend/hub/installment"
)

// InstallmentStore persists installment.Installment rows for one contract
// at a time, mirroring the granularity the installment engine works at.
type InstallmentStore struct {
	db *gorm.DB
}

// NewInstallmentStore constructs an InstallmentStore.
func NewInstallmentStore(db *gorm.DB) *InstallmentStore { return &InstallmentStore{db: db} }

// ListByContract returns every installment row for contractID, in due-date
// order.
func (s *InstallmentStore) ListByContract(ctx context.Context, contractID uuid.UUID) ([]installment.Installment, error) {
	var rows []installmentRow
	if err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("due_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]installment.Installment, len(rows))
	for i, row := range rows {
		out[i] = rowToInstallment(row)
	}
	return out, nil
}

// ReplaceSchedule atomically swaps every installment row for a contract
// with a freshly generated or extended set, used after Generate or Extend.
func (s *InstallmentStore) ReplaceSchedule(ctx context.Context, contractID uuid.UUID, installments []installment.Installment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contract_id = ?", contractID).Delete(&installmentRow{}).Error; err != nil {
			return err
		}
		if len(installments) == 0 {
			return nil
		}
		rows := make([]installmentRow, len(installments))
		for i, inst := range installments {
			rows[i] = installmentToRow(inst)
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

// Save upserts a single installment row (e.g. a status change).
func (s *InstallmentStore) Save(ctx context.Context, inst installment.Installment) error {
	row := installmentToRow(inst)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func installmentToRow(i installment.Installment) installmentRow {
	return installmentRow{
		ID:                 i.ID,
		ContractID:         i.ContractID,
		PrincipalComponent: i.PrincipalComponent,
		InterestComponent:  i.InterestComponent,
		DueDate:            i.DueDate,
		Status:             uint8(i.Status),
	}
}

func rowToInstallment(row installmentRow) installment.Installment {
	return installment.Installment{
		ID:                 row.ID,
		ContractID:         row.ContractID,
		PrincipalComponent: row.PrincipalComponent,
		InterestComponent:  row.InterestComponent,
		DueDate:            row.DueDate,
		Status:             installment.Status(row.Status),
	}
}
