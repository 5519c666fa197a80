// Package contract implements the loan contract lifecycle: the ~25-status
// state machine, its admissible transitions, and the Contract entity that
// borrower, lender and hub all treat as the single source of truth.
package contract

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is one state in the contract lifecycle.
type Status uint8

const (
	StatusRequested Status = iota
	StatusApproved
	StatusRejected
	StatusCancelled
	StatusRequestExpired
	StatusApprovalExpired
	StatusCollateralSeen
	StatusCollateralConfirmed
	StatusCollateralRecoverable
	StatusPrincipalGiven
	StatusRepaymentProvided
	StatusRepaymentConfirmed
	StatusUndercollateralized
	StatusDefaulted
	StatusExtended
	StatusClosing
	StatusClosed
	StatusClosedByLiquidation
	StatusClosedByDefaulting
	StatusClosedByRecovery
	StatusDisputeBorrowerStarted
	StatusDisputeLenderStarted
)

func (s Status) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusCancelled:
		return "cancelled"
	case StatusRequestExpired:
		return "request_expired"
	case StatusApprovalExpired:
		return "approval_expired"
	case StatusCollateralSeen:
		return "collateral_seen"
	case StatusCollateralConfirmed:
		return "collateral_confirmed"
	case StatusCollateralRecoverable:
		return "collateral_recoverable"
	case StatusPrincipalGiven:
		return "principal_given"
	case StatusRepaymentProvided:
		return "repayment_provided"
	case StatusRepaymentConfirmed:
		return "repayment_confirmed"
	case StatusUndercollateralized:
		return "undercollateralized"
	case StatusDefaulted:
		return "defaulted"
	case StatusExtended:
		return "extended"
	case StatusClosing:
		return "closing"
	case StatusClosed:
		return "closed"
	case StatusClosedByLiquidation:
		return "closed_by_liquidation"
	case StatusClosedByDefaulting:
		return "closed_by_defaulting"
	case StatusClosedByRecovery:
		return "closed_by_recovery"
	case StatusDisputeBorrowerStarted:
		return "dispute_borrower_started"
	case StatusDisputeLenderStarted:
		return "dispute_lender_started"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are admissible from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusRequestExpired, StatusApprovalExpired,
		StatusExtended, StatusClosed, StatusClosedByLiquidation, StatusClosedByDefaulting,
		StatusClosedByRecovery:
		return true
	default:
		return false
	}
}

// isDispute reports whether s is one of the transient dispute overlays.
func (s Status) isDispute() bool {
	return s == StatusDisputeBorrowerStarted || s == StatusDisputeLenderStarted
}

// LiquidationSubStatus tracks the margin-call ladder independently of the
// main Status field (set by the liquidation monitor, read by the state
// machine when deciding whether to liquidate).
type LiquidationSubStatus uint8

const (
	SubStatusHealthy LiquidationSubStatus = iota
	SubStatusFirstMarginCall
	SubStatusSecondMarginCall
	SubStatusLiquidated
)

func (s LiquidationSubStatus) String() string {
	switch s {
	case SubStatusHealthy:
		return "healthy"
	case SubStatusFirstMarginCall:
		return "first_margin_call"
	case SubStatusSecondMarginCall:
		return "second_margin_call"
	case SubStatusLiquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

// rank orders the ladder so monotonicity can be checked with a single
// comparison: the sub-status never regresses, and Liquidated is terminal.
func (s LiquidationSubStatus) rank() int { return int(s) }

// Version distinguishes the current 2-of-3 descriptor scheme from the
// legacy 2-of-4 one.
type Version uint8

const (
	VersionTwoOfThree Version = iota
	VersionTwoOfFourLegacy
)

var (
	errNilContract        = errors.New("contract: nil contract")
	errInvalidAmount      = errors.New("contract: amount must be positive")
	errMissingPubKey      = errors.New("contract: public key required")
	errCollateralBelowFee = errors.New("contract: collateral_sats below origination_fee_sats")
)

// Contract is one loan, from request through settlement or default.
type Contract struct {
	ID uuid.UUID

	OpeningLTV              float64
	InitialCollateralSats   int64
	OriginationFeeSats      int64
	ConfirmedCollateralSats int64

	PrincipalAmount float64
	PrincipalAsset  string
	DurationDays    int

	BorrowerPubKey         []byte
	LenderPubKey           []byte
	HubPubKey              []byte
	BorrowerDerivationPath string
	LenderDerivationPath   string
	HubDerivationPath      string

	ContractAddress string
	ContractIndex   uint32
	Version         Version

	Status               Status
	LiquidationSubStatus LiquidationSubStatus

	// preDisputeStatus remembers what Status was before a dispute overlay
	// began, so resolution can restore it exactly.
	preDisputeStatus *Status

	// ExtensionOf links an extension child back to its original contract.
	ExtensionOf *uuid.UUID
	// ExtendedTo links an extended original forward to its child.
	ExtendedTo *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid checks the invariants that must hold at rest between transitions.
func (c *Contract) Valid() error {
	if c == nil {
		return errNilContract
	}
	if c.Status >= StatusApproved && c.Status != StatusRejected && c.Status != StatusCancelled &&
		c.Status != StatusRequestExpired {
		if c.ContractAddress == "" || c.ContractIndex == 0 || len(c.LenderPubKey) == 0 {
			return fmt.Errorf("contract: status %s requires address, index and lender key to be set", c.Status)
		}
	}
	if c.Status == StatusRequested && c.ContractAddress != "" {
		return errors.New("contract: requested contract must not have an address yet")
	}
	if c.ConfirmedCollateralSats > 0 && c.ConfirmedCollateralSats < c.OriginationFeeSats {
		return errCollateralBelowFee
	}
	if c.LiquidationSubStatus == SubStatusLiquidated && c.Status != StatusUndercollateralized &&
		!c.Status.IsTerminal() {
		return errors.New("contract: liquidated sub-status requires undercollateralized or terminal status")
	}
	return nil
}

// Clone returns a deep-enough copy for safe mutation by a caller that does
// not own the original (e.g. a coordinator shard handing a snapshot to a
// read-only consumer).
func (c *Contract) Clone() *Contract {
	clone := *c
	clone.BorrowerPubKey = append([]byte(nil), c.BorrowerPubKey...)
	clone.LenderPubKey = append([]byte(nil), c.LenderPubKey...)
	clone.HubPubKey = append([]byte(nil), c.HubPubKey...)
	if c.preDisputeStatus != nil {
		pds := *c.preDisputeStatus
		clone.preDisputeStatus = &pds
	}
	if c.ExtensionOf != nil {
		id := *c.ExtensionOf
		clone.ExtensionOf = &id
	}
	if c.ExtendedTo != nil {
		id := *c.ExtendedTo
		clone.ExtendedTo = &id
	}
	return &clone
}
