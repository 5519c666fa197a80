package contract

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/satlend/hub/huberr"
)

func testOffer() LoanOffer {
	return LoanOffer{
		ID:              uuid.New(),
		LenderID:        uuid.New(),
		Asset:           "USDT",
		MinLTV:          0.3,
		MaxLTV:          0.6,
		YearlyRate:      0.05,
		MinDurationDays: 14,
		MaxDurationDays: 180,
		MaxPrincipal:    50000,
		CreatedAt:       time.Now(),
	}
}

func testApplication() LoanApplication {
	return LoanApplication{
		ID:              uuid.New(),
		BorrowerID:      uuid.New(),
		Asset:           "USDT",
		RequestedLTV:    0.5,
		PrincipalAmount: 1000,
		DurationDays:    30,
		BorrowerPubKey:  []byte{0x02, 0xAA},
		CreatedAt:       time.Now(),
	}
}

func TestMatchCreatesRequestedContract(t *testing.T) {
	at := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	c, err := Match(testOffer(), testApplication(), 100000, 0.01, at)
	require.NoError(t, err)

	require.Equal(t, StatusRequested, c.Status)
	require.Empty(t, c.ContractAddress)
	require.Zero(t, c.ContractIndex)
	require.Empty(t, c.LenderPubKey)
	require.NoError(t, c.Valid())

	// $1000 at 50% LTV needs $2000 of collateral; at $100k/BTC that is
	// 0.02 BTC = 2,000,000 sats, 1% of it reserved as origination fee.
	require.Equal(t, int64(2_000_000), c.InitialCollateralSats)
	require.Equal(t, int64(20_000), c.OriginationFeeSats)
	require.Equal(t, 0.5, c.OpeningLTV)
	require.Equal(t, at, c.CreatedAt)
}

func TestMatchIncompatiblePairs(t *testing.T) {
	at := time.Now()

	app := testApplication()
	app.Asset = "EUR"
	_, err := Match(testOffer(), app, 100000, 0.01, at)
	require.Error(t, err)
	require.Equal(t, huberr.KindConflict, huberr.KindOf(err))

	app = testApplication()
	app.RequestedLTV = 0.9
	_, err = Match(testOffer(), app, 100000, 0.01, at)
	require.Error(t, err)

	app = testApplication()
	app.DurationDays = 365
	_, err = Match(testOffer(), app, 100000, 0.01, at)
	require.Error(t, err)

	app = testApplication()
	app.PrincipalAmount = 60000
	_, err = Match(testOffer(), app, 100000, 0.01, at)
	require.Error(t, err)
}

func TestMatchValidatesTemplates(t *testing.T) {
	offer := testOffer()
	offer.MinLTV = 0.8
	offer.MaxLTV = 0.5
	_, err := Match(offer, testApplication(), 100000, 0.01, time.Now())
	require.Error(t, err)
	require.Equal(t, huberr.KindValidation, huberr.KindOf(err))

	app := testApplication()
	app.BorrowerPubKey = nil
	_, err = Match(testOffer(), app, 100000, 0.01, time.Now())
	require.Error(t, err)

	_, err = Match(testOffer(), testApplication(), 0, 0.01, time.Now())
	require.Error(t, err)
}
