package contract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satlend/hub/huberr"
)

// LoanOffer is a lender's parametric template: any application fitting its
// ranges can be matched into a Contract.
type LoanOffer struct {
	ID       uuid.UUID
	LenderID uuid.UUID

	Asset           string
	MinLTV          float64
	MaxLTV          float64
	YearlyRate      float64
	MinDurationDays int
	MaxDurationDays int
	MaxPrincipal    float64

	CreatedAt time.Time
}

// Valid checks the offer's parameter ranges.
func (o LoanOffer) Valid() error {
	if strings.TrimSpace(o.Asset) == "" {
		return errors.New("contract: offer asset is required")
	}
	if o.MinLTV <= 0 || o.MaxLTV > 1 || o.MinLTV > o.MaxLTV {
		return fmt.Errorf("contract: offer LTV range [%v, %v] invalid", o.MinLTV, o.MaxLTV)
	}
	if o.YearlyRate < 0 {
		return errors.New("contract: offer rate must not be negative")
	}
	if o.MinDurationDays <= 0 || o.MinDurationDays > o.MaxDurationDays {
		return fmt.Errorf("contract: offer duration range [%d, %d] invalid", o.MinDurationDays, o.MaxDurationDays)
	}
	if o.MaxPrincipal <= 0 {
		return errors.New("contract: offer max principal must be positive")
	}
	return nil
}

// LoanApplication is a borrower's parametric template, the mirror image of
// LoanOffer.
type LoanApplication struct {
	ID         uuid.UUID
	BorrowerID uuid.UUID

	Asset           string
	RequestedLTV    float64
	PrincipalAmount float64
	DurationDays    int

	BorrowerPubKey         []byte
	BorrowerDerivationPath string

	CreatedAt time.Time
}

// Valid checks the application's parameters.
func (a LoanApplication) Valid() error {
	if strings.TrimSpace(a.Asset) == "" {
		return errors.New("contract: application asset is required")
	}
	if a.RequestedLTV <= 0 || a.RequestedLTV > 1 {
		return fmt.Errorf("contract: application LTV %v invalid", a.RequestedLTV)
	}
	if a.PrincipalAmount <= 0 {
		return errors.New("contract: application principal must be positive")
	}
	if a.DurationDays <= 0 {
		return errors.New("contract: application duration must be positive")
	}
	if len(a.BorrowerPubKey) == 0 {
		return errors.New("contract: application borrower key is required")
	}
	return nil
}

// Match creates a Requested Contract from an offer/application pair. The
// pair must be compatible: same asset, requested LTV and duration within
// the offer's ranges, principal within the offer's cap. The collateral
// requirement is sized from the requested LTV at btcPriceUSD, with the
// origination fee carved out of it as feeRate of the collateral.
func Match(offer LoanOffer, app LoanApplication, btcPriceUSD, originationFeeRate float64, at time.Time) (*Contract, error) {
	if err := offer.Valid(); err != nil {
		return nil, huberr.New(huberr.KindValidation, "contract.Match", err)
	}
	if err := app.Valid(); err != nil {
		return nil, huberr.New(huberr.KindValidation, "contract.Match", err)
	}
	if !strings.EqualFold(offer.Asset, app.Asset) {
		return nil, huberr.New(huberr.KindConflict, "contract.Match",
			fmt.Errorf("asset mismatch: offer %s, application %s", offer.Asset, app.Asset))
	}
	if app.RequestedLTV < offer.MinLTV || app.RequestedLTV > offer.MaxLTV {
		return nil, huberr.New(huberr.KindConflict, "contract.Match",
			fmt.Errorf("requested LTV %v outside offer range [%v, %v]", app.RequestedLTV, offer.MinLTV, offer.MaxLTV))
	}
	if app.DurationDays < offer.MinDurationDays || app.DurationDays > offer.MaxDurationDays {
		return nil, huberr.New(huberr.KindConflict, "contract.Match",
			fmt.Errorf("duration %d outside offer range [%d, %d]", app.DurationDays, offer.MinDurationDays, offer.MaxDurationDays))
	}
	if app.PrincipalAmount > offer.MaxPrincipal {
		return nil, huberr.New(huberr.KindConflict, "contract.Match",
			fmt.Errorf("principal %v exceeds offer cap %v", app.PrincipalAmount, offer.MaxPrincipal))
	}
	if btcPriceUSD <= 0 {
		return nil, huberr.New(huberr.KindValidation, "contract.Match",
			errors.New("btc price must be positive"))
	}

	collateralUSD := app.PrincipalAmount / app.RequestedLTV
	collateralSats := int64(collateralUSD / btcPriceUSD * 1e8)
	feeSats := int64(float64(collateralSats) * originationFeeRate)

	return &Contract{
		ID:                     uuid.New(),
		OpeningLTV:             app.RequestedLTV,
		InitialCollateralSats:  collateralSats,
		OriginationFeeSats:     feeSats,
		PrincipalAmount:        app.PrincipalAmount,
		PrincipalAsset:         offer.Asset,
		DurationDays:           app.DurationDays,
		BorrowerPubKey:         append([]byte(nil), app.BorrowerPubKey...),
		BorrowerDerivationPath: app.BorrowerDerivationPath,
		Version:                VersionTwoOfThree,
		Status:                 StatusRequested,
		CreatedAt:              at,
		UpdatedAt:              at,
	}, nil
}
