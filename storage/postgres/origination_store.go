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

// OriginationStore persists the loan offer and loan application templates
// contracts are matched from.
type OriginationStore struct {
	db *gorm.DB
}

// NewOriginationStore constructs an OriginationStore.
func NewOriginationStore(db *gorm.DB) *OriginationStore { return &OriginationStore{db: db} }

// SaveOffer upserts a lender's offer template.
func (s *OriginationStore) SaveOffer(ctx context.Context, offer contract.LoanOffer) error {
	if err := offer.Valid(); err != nil {
		return err
	}
	row := loanOfferRow{
		ID:              offer.ID,
		LenderID:        offer.LenderID,
		Asset:           offer.Asset,
		MinLTV:          offer.MinLTV,
		MaxLTV:          offer.MaxLTV,
		YearlyRate:      offer.YearlyRate,
		MinDurationDays: offer.MinDurationDays,
		MaxDurationDays: offer.MaxDurationDays,
		MaxPrincipal:    offer.MaxPrincipal,
		CreatedAt:       offer.CreatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// GetOffer loads one offer by ID.
func (s *OriginationStore) GetOffer(ctx context.Context, id uuid.UUID) (contract.LoanOffer, error) {
	var row loanOfferRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return contract.LoanOffer{}, fmt.Errorf("postgres: loan offer %s not found", id)
		}
		return contract.LoanOffer{}, err
	}
	return offerFromRow(row), nil
}

// ListOffers returns every offer for an asset, newest first.
func (s *OriginationStore) ListOffers(ctx context.Context, asset string) ([]contract.LoanOffer, error) {
	var rows []loanOfferRow
	if err := s.db.WithContext(ctx).
		Where("asset = ?", asset).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]contract.LoanOffer, len(rows))
	for i, row := range rows {
		out[i] = offerFromRow(row)
	}
	return out, nil
}

// SaveApplication upserts a borrower's application template.
func (s *OriginationStore) SaveApplication(ctx context.Context, app contract.LoanApplication) error {
	if err := app.Valid(); err != nil {
		return err
	}
	row := loanApplicationRow{
		ID:                     app.ID,
		BorrowerID:             app.BorrowerID,
		Asset:                  app.Asset,
		RequestedLTV:           app.RequestedLTV,
		PrincipalAmount:        app.PrincipalAmount,
		DurationDays:           app.DurationDays,
		BorrowerPubKey:         app.BorrowerPubKey,
		BorrowerDerivationPath: app.BorrowerDerivationPath,
		CreatedAt:              app.CreatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// GetApplication loads one application by ID.
func (s *OriginationStore) GetApplication(ctx context.Context, id uuid.UUID) (contract.LoanApplication, error) {
	var row loanApplicationRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return contract.LoanApplication{}, fmt.Errorf("postgres: loan application %s not found", id)
		}
		return contract.LoanApplication{}, err
	}
	return contract.LoanApplication{
		ID:                     row.ID,
		BorrowerID:             row.BorrowerID,
		Asset:                  row.Asset,
		RequestedLTV:           row.RequestedLTV,
		PrincipalAmount:        row.PrincipalAmount,
		DurationDays:           row.DurationDays,
		BorrowerPubKey:         row.BorrowerPubKey,
		BorrowerDerivationPath: row.BorrowerDerivationPath,
		CreatedAt:              row.CreatedAt,
	}, nil
}

func offerFromRow(row loanOfferRow) contract.LoanOffer {
	return contract.LoanOffer{
		ID:              row.ID,
		LenderID:        row.LenderID,
		Asset:           row.Asset,
		MinLTV:          row.MinLTV,
		MaxLTV:          row.MaxLTV,
		YearlyRate:      row.YearlyRate,
		MinDurationDays: row.MinDurationDays,
		MaxDurationDays: row.MaxDurationDays,
		MaxPrincipal:    row.MaxPrincipal,
		CreatedAt:       row.CreatedAt,
	}
}
