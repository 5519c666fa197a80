package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/satlend/hub/contract"
)

// ContractStore implements contract.Store against Postgres via gorm,
// grounded on services/otc-gateway/funding.Processor's
// row-lock-then-mutate transaction shape.
type ContractStore struct {
	db *gorm.DB
}

// NewContractStore constructs a ContractStore.
func NewContractStore(db *gorm.DB) *ContractStore { return &ContractStore{db: db} }

var _ contract.Store = (*ContractStore)(nil)

func (s *ContractStore) Get(ctx context.Context, id uuid.UUID) (*contract.Contract, error) {
	var row contractRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("postgres: contract %s not found", id)
		}
		return nil, err
	}
	return rowToContract(row), nil
}

func (s *ContractStore) Save(ctx context.Context, c *contract.Contract) error {
	if c == nil {
		return errors.New("postgres: nil contract")
	}
	row := contractToRow(c)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// NextContractIndex atomically increments the single counter row under a
// row lock: single writer, readers see the post-increment value only.
func (s *ContractStore) NextContractIndex(ctx context.Context) (uint32, error) {
	var next uint32
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var counter contractIndexCounterRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Attrs(contractIndexCounterRow{ID: 1, Value: 0}).
			FirstOrCreate(&counter, contractIndexCounterRow{ID: 1}).Error; err != nil {
			return err
		}
		counter.Value++
		next = counter.Value
		return tx.Save(&counter).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *ContractStore) ListCheckable(ctx context.Context) ([]*contract.Contract, error) {
	var rows []contractRow
	if err := s.db.WithContext(ctx).Where("status = ?", uint8(contract.StatusPrincipalGiven)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*contract.Contract, len(rows))
	for i, row := range rows {
		out[i] = rowToContract(row)
	}
	return out, nil
}

// contractToRow persists only the visible Status; preDisputeStatus is
// unexported and held in memory for the duration of a dispute overlay.
func contractToRow(c *contract.Contract) contractRow {
	return contractRow{
		ID:                      c.ID,
		OpeningLTV:              c.OpeningLTV,
		InitialCollateralSats:   c.InitialCollateralSats,
		OriginationFeeSats:      c.OriginationFeeSats,
		ConfirmedCollateralSats: c.ConfirmedCollateralSats,
		PrincipalAmount:         c.PrincipalAmount,
		PrincipalAsset:          c.PrincipalAsset,
		DurationDays:            c.DurationDays,
		BorrowerPubKey:          c.BorrowerPubKey,
		LenderPubKey:            c.LenderPubKey,
		HubPubKey:               c.HubPubKey,
		BorrowerDerivationPath:  c.BorrowerDerivationPath,
		LenderDerivationPath:    c.LenderDerivationPath,
		HubDerivationPath:       c.HubDerivationPath,
		ContractAddress:         c.ContractAddress,
		ContractIndex:           c.ContractIndex,
		Version:                 uint8(c.Version),
		Status:                  uint8(c.Status),
		LiquidationSubStatus:    uint8(c.LiquidationSubStatus),
		ExtensionOf:             c.ExtensionOf,
		ExtendedTo:              c.ExtendedTo,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
}

func rowToContract(row contractRow) *contract.Contract {
	return &contract.Contract{
		ID:                      row.ID,
		OpeningLTV:              row.OpeningLTV,
		InitialCollateralSats:   row.InitialCollateralSats,
		OriginationFeeSats:      row.OriginationFeeSats,
		ConfirmedCollateralSats: row.ConfirmedCollateralSats,
		PrincipalAmount:         row.PrincipalAmount,
		PrincipalAsset:          row.PrincipalAsset,
		DurationDays:            row.DurationDays,
		BorrowerPubKey:          row.BorrowerPubKey,
		LenderPubKey:            row.LenderPubKey,
		HubPubKey:               row.HubPubKey,
		BorrowerDerivationPath:  row.BorrowerDerivationPath,
		LenderDerivationPath:    row.LenderDerivationPath,
		HubDerivationPath:       row.HubDerivationPath,
		ContractAddress:         row.ContractAddress,
		ContractIndex:           row.ContractIndex,
		Version:                 contract.Version(row.Version),
		Status:                  contract.Status(row.Status),
		LiquidationSubStatus:    contract.LiquidationSubStatus(row.LiquidationSubStatus),
		ExtensionOf:             row.ExtensionOf,
		ExtendedTo:              row.ExtendedTo,
		CreatedAt:               row.CreatedAt,
		UpdatedAt:               row.UpdatedAt,
	}
}
