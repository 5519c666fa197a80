package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/satlend/hub/contract"
	"github.com/satlend/hub/installment"
	"github.com/satlend/hub/liquidation"
)

// LiquidationSource implements liquidation.Source: it loads every
// PrincipalGiven contract (the sole checkable status) and its
// outstanding balance for the monitor's periodic cache refresh.
type LiquidationSource struct {
	db *gorm.DB
}

// NewLiquidationSource constructs a LiquidationSource.
func NewLiquidationSource(db *gorm.DB) *LiquidationSource { return &LiquidationSource{db: db} }

var _ liquidation.Source = (*LiquidationSource)(nil)

func (s *LiquidationSource) ListOpenContracts(ctx context.Context) ([]liquidation.Entry, error) {
	var contractRows []contractRow
	if err := s.db.WithContext(ctx).
		Where("status = ?", uint8(contract.StatusPrincipalGiven)).
		Find(&contractRows).Error; err != nil {
		return nil, err
	}

	entries := make([]liquidation.Entry, 0, len(contractRows))
	for _, row := range contractRows {
		var instRows []installmentRow
		if err := s.db.WithContext(ctx).Where("contract_id = ?", row.ID).Find(&instRows).Error; err != nil {
			return nil, err
		}
		var outstanding float64
		for _, inst := range instRows {
			st := installment.Status(inst.Status)
			if st == installment.Pending || st == installment.Paid || st == installment.Late {
				outstanding += inst.PrincipalComponent + inst.InterestComponent
			}
		}
		entries = append(entries, liquidation.Entry{
			ContractID:     row.ID,
			CollateralSats: row.ConfirmedCollateralSats,
			OutstandingUSD: outstanding,
			CreatedAt:      row.CreatedAt,
		})
	}
	return entries, nil
}
