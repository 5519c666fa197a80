package psbt

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/satlend/hub/collateral"
)

// SpendPath names which of the four output shapes a collateral spend uses.
type SpendPath uint8

const (
	// SpendClaim returns collateral to the borrower on normal repayment.
	SpendClaim SpendPath = iota
	// SpendLiquidation pays collateral out to the lender once the margin-call
	// ladder reaches Liquidated.
	SpendLiquidation
	// SpendDispute splits collateral between borrower and lender per an
	// arbitration decision.
	SpendDispute
	// SpendRecovery returns collateral to the borrower from
	// CollateralRecoverable, shaped like SpendLiquidation but with the
	// borrower rather than the lender as payee.
	SpendRecovery
)

func (p SpendPath) String() string {
	switch p {
	case SpendClaim:
		return "claim"
	case SpendLiquidation:
		return "liquidation"
	case SpendDispute:
		return "dispute"
	case SpendRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// CollateralInput describes the single UTXO locking a contract's collateral.
type CollateralInput struct {
	Outpoint   wire.OutPoint
	Amount     int64
	Descriptor *collateral.Descriptor
}

// Recipient pairs an output address with its planned value. Position in
// Build's recipient list is significant: the first recipient is the flex
// output, the last the origination-fee slot.
type Recipient struct {
	Address btcutil.Address
	Sats    int64
}
