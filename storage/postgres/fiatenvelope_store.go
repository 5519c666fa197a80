package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/satlend/hub/fiatenvelope"
)

// FiatEnvelopeStore persists fiatenvelope.Envelope rows, one per contract.
type FiatEnvelopeStore struct {
	db *gorm.DB
}

// NewFiatEnvelopeStore constructs a FiatEnvelopeStore.
func NewFiatEnvelopeStore(db *gorm.DB) *FiatEnvelopeStore { return &FiatEnvelopeStore{db: db} }

func (s *FiatEnvelopeStore) Get(contractID uuid.UUID) (*fiatenvelope.Envelope, error) {
	var row fiatEnvelopeRow
	if err := s.db.First(&row, "contract_id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("postgres: fiat envelope for contract %s not found", contractID)
		}
		return nil, err
	}
	var fields map[string]string
	if err := json.Unmarshal(row.FieldsJSON, &fields); err != nil {
		return nil, fmt.Errorf("postgres: decode fiat envelope fields: %w", err)
	}
	return &fiatenvelope.Envelope{
		ID:                 row.ID,
		ContractID:         row.ContractID,
		Fields:             fields,
		WrappedForBorrower: row.WrappedForBorrower,
		WrappedForLender:   row.WrappedForLender,
	}, nil
}

func (s *FiatEnvelopeStore) Save(e *fiatenvelope.Envelope) error {
	if e == nil {
		return errors.New("postgres: nil fiat envelope")
	}
	fieldsJSON, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("postgres: encode fiat envelope fields: %w", err)
	}
	row := fiatEnvelopeRow{
		ID:                 e.ID,
		ContractID:         e.ContractID,
		FieldsJSON:         fieldsJSON,
		WrappedForBorrower: e.WrappedForBorrower,
		WrappedForLender:   e.WrappedForLender,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}
