package contract

import (
	"fmt"
	"time"

	"github.com/satlend/hub/huberr"
)

// admissible lists every legal edge of the contract lifecycle, used to
// reject anything not explicitly listed before an action method even
// attempts its own bookkeeping.
var admissible = map[Status]map[Status]bool{
	StatusRequested: {
		StatusApproved:       true,
		StatusRejected:       true,
		StatusCancelled:      true,
		StatusRequestExpired: true,
	},
	StatusApproved: {
		StatusCollateralSeen:      true,
		StatusCollateralConfirmed: true,
		StatusApprovalExpired:     true,
	},
	StatusCollateralSeen: {
		StatusCollateralConfirmed: true,
	},
	StatusCollateralConfirmed: {
		StatusPrincipalGiven:        true,
		StatusCollateralRecoverable: true,
	},
	StatusPrincipalGiven: {
		StatusRepaymentProvided:   true,
		StatusUndercollateralized: true,
		StatusDefaulted:           true,
		StatusExtended:            true,
	},
	StatusRepaymentProvided: {
		StatusRepaymentConfirmed: true,
	},
	StatusRepaymentConfirmed: {
		StatusClosing: true,
	},
	StatusUndercollateralized: {
		StatusClosing: true,
	},
	StatusDefaulted: {
		StatusClosing: true,
	},
	StatusCollateralRecoverable: {
		StatusClosing: true,
	},
	StatusClosing: {
		StatusClosed:              true,
		StatusClosedByLiquidation: true,
		StatusClosedByDefaulting:  true,
		StatusClosedByRecovery:    true,
	},
}

// checkableForUndercollateralization is the set of statuses from which the
// liquidation monitor's LTV check is allowed to fire.
var checkableForUndercollateralization = map[Status]bool{
	StatusPrincipalGiven: true,
}

func (c *Contract) transition(to Status) error {
	edges := admissible[c.Status]
	if edges == nil || !edges[to] {
		return huberr.New(huberr.KindConflict, "contract.transition",
			fmt.Errorf("no admissible edge %s -> %s", c.Status, to))
	}
	c.Status = to
	c.UpdatedAt = now()
	return nil
}

// now is a seam so tests can control timestamps; production code always
// uses the wall clock.
var now = time.Now

// Approve moves Requested -> Approved when the lender accepts. The
// collateral address, shared derivation index and lender key material are
// all set together here or not at all: a contract below Approved carries
// none of them.
func (c *Contract) Approve(address string, contractIndex uint32, lenderPubKey []byte, lenderDerivationPath string) error {
	if address == "" || contractIndex == 0 || len(lenderPubKey) == 0 {
		return huberr.New(huberr.KindValidation, "contract.Approve",
			fmt.Errorf("address, contract index and lender key are all required at approval"))
	}
	if err := c.transition(StatusApproved); err != nil {
		return err
	}
	c.ContractAddress = address
	c.ContractIndex = contractIndex
	c.LenderPubKey = append([]byte(nil), lenderPubKey...)
	c.LenderDerivationPath = lenderDerivationPath
	return nil
}

// Reject moves Requested -> Rejected when the lender declines.
func (c *Contract) Reject() error { return c.transition(StatusRejected) }

// Cancel moves Requested -> Cancelled when the borrower withdraws.
func (c *Contract) Cancel() error { return c.transition(StatusCancelled) }

// ExpireRequest moves Requested -> RequestExpired on request-timeout.
func (c *Contract) ExpireRequest() error { return c.transition(StatusRequestExpired) }

// ExpireApproval moves Approved -> ApprovalExpired on funding-timeout.
func (c *Contract) ExpireApproval() error { return c.transition(StatusApprovalExpired) }

// ObserveCollateral applies the watcher's reported confirmed-sats figure
// under the collateral-change policy from the lifecycle table:
// confirmed collateral at or above the initial requirement advances
// Approved/CollateralSeen to CollateralConfirmed; an unconfirmed deposit
// advances Approved to CollateralSeen; a confirmed figure falling back
// below the requirement regresses CollateralConfirmed to Approved
// (best-effort shallow-reorg handling). Anything else persists the figure
// and keeps the status.
func (c *Contract) ObserveCollateral(confirmedSats int64, seenUnconfirmed bool) error {
	if (confirmedSats > c.ConfirmedCollateralSats || seenUnconfirmed) && c.Status == StatusRequested {
		return huberr.New(huberr.KindConflict, "contract.ObserveCollateral",
			fmt.Errorf("cannot collateralize a non-approved request"))
	}

	switch {
	case confirmedSats >= c.InitialCollateralSats && (c.Status == StatusApproved || c.Status == StatusCollateralSeen):
		c.ConfirmedCollateralSats = confirmedSats
		return c.transition(StatusCollateralConfirmed)
	case confirmedSats < c.InitialCollateralSats && c.Status == StatusCollateralConfirmed:
		c.ConfirmedCollateralSats = confirmedSats
		return c.transition(StatusApproved)
	case seenUnconfirmed && c.Status == StatusApproved:
		c.ConfirmedCollateralSats = confirmedSats
		return c.transition(StatusCollateralSeen)
	default:
		c.ConfirmedCollateralSats = confirmedSats
		c.UpdatedAt = now()
		return nil
	}
}

// ReportDisbursement moves CollateralConfirmed -> PrincipalGiven once the
// lender has disbursed (or the auto-disbursement path has run).
func (c *Contract) ReportDisbursement() error { return c.transition(StatusPrincipalGiven) }

// MarkRecoverable moves CollateralConfirmed -> CollateralRecoverable after a
// disbursement timeout with admin action.
func (c *Contract) MarkRecoverable() error { return c.transition(StatusCollateralRecoverable) }

// RepayFull moves PrincipalGiven -> RepaymentProvided.
func (c *Contract) RepayFull() error { return c.transition(StatusRepaymentProvided) }

// ConfirmRepayment moves RepaymentProvided -> RepaymentConfirmed.
func (c *Contract) ConfirmRepayment() error { return c.transition(StatusRepaymentConfirmed) }

// CheckableForUndercollateralization reports whether the liquidation
// monitor's LTV check may act on this contract in its current status.
func (c *Contract) CheckableForUndercollateralization() bool {
	return checkableForUndercollateralization[c.Status]
}

// AdvancesLiquidationSubStatus reports whether next moves the margin-call
// ladder forward from the contract's current rung.
func (c *Contract) AdvancesLiquidationSubStatus(next LiquidationSubStatus) bool {
	return c.LiquidationSubStatus != SubStatusLiquidated && next.rank() > c.LiquidationSubStatus.rank()
}

// MarkUndercollateralized moves PrincipalGiven -> Undercollateralized. Only
// legal from the checkable set; callers (the liquidation monitor) must not
// call this from any other status.
func (c *Contract) MarkUndercollateralized() error {
	if !checkableForUndercollateralization[c.Status] {
		return huberr.New(huberr.KindConflict, "contract.MarkUndercollateralized",
			fmt.Errorf("status %s is not checkable for undercollateralization", c.Status))
	}
	return c.transition(StatusUndercollateralized)
}

// MarkDefaulted moves PrincipalGiven -> Defaulted when the term expires
// without repayment.
func (c *Contract) MarkDefaulted() error { return c.transition(StatusDefaulted) }

// BeginClosing moves {RepaymentConfirmed, Undercollateralized, Defaulted,
// CollateralRecoverable} -> Closing once a spend tx is broadcast.
func (c *Contract) BeginClosing() error { return c.transition(StatusClosing) }

// SpendConfirmed moves Closing to the terminal status matching which PSBT
// family confirmed on chain.
type SpendPath uint8

const (
	SpendClaim SpendPath = iota
	SpendLiquidation
	SpendDefaultLiquidation
	SpendRecovery
)

func (c *Contract) SpendConfirmed(path SpendPath) error {
	var to Status
	switch path {
	case SpendClaim:
		to = StatusClosed
	case SpendLiquidation:
		to = StatusClosedByLiquidation
	case SpendDefaultLiquidation:
		to = StatusClosedByDefaulting
	case SpendRecovery:
		to = StatusClosedByRecovery
	default:
		return huberr.New(huberr.KindValidation, "contract.SpendConfirmed", fmt.Errorf("unknown spend path %d", path))
	}
	return c.transition(to)
}

// OpenDispute overlays a transient dispute status, remembering the current
// status for OpenDispute's counterpart, ResolveDispute, to restore.
func (c *Contract) OpenDispute(byBorrower bool) error {
	if c.Status.isDispute() {
		return huberr.New(huberr.KindConflict, "contract.OpenDispute", fmt.Errorf("dispute already open"))
	}
	if c.Status.IsTerminal() {
		return huberr.New(huberr.KindConflict, "contract.OpenDispute", fmt.Errorf("cannot dispute a terminal contract"))
	}
	if c.Status == StatusRequested {
		return huberr.New(huberr.KindConflict, "contract.OpenDispute", fmt.Errorf("nothing to arbitrate before approval"))
	}
	pre := c.Status
	c.preDisputeStatus = &pre
	if byBorrower {
		c.Status = StatusDisputeBorrowerStarted
	} else {
		c.Status = StatusDisputeLenderStarted
	}
	c.UpdatedAt = now()
	return nil
}

// ResolveDispute restores the status recorded when the dispute was opened.
func (c *Contract) ResolveDispute() error {
	if !c.Status.isDispute() || c.preDisputeStatus == nil {
		return huberr.New(huberr.KindConflict, "contract.ResolveDispute", fmt.Errorf("no open dispute to resolve"))
	}
	c.Status = *c.preDisputeStatus
	c.preDisputeStatus = nil
	c.UpdatedAt = now()
	return nil
}

// ApplyLiquidationSubStatus enforces the margin-call ladder's monotonicity:
// it never regresses, and Liquidated is terminal.
func (c *Contract) ApplyLiquidationSubStatus(next LiquidationSubStatus) error {
	if c.LiquidationSubStatus == SubStatusLiquidated {
		return huberr.New(huberr.KindConflict, "contract.ApplyLiquidationSubStatus",
			fmt.Errorf("liquidation sub-status is terminal"))
	}
	if next.rank() < c.LiquidationSubStatus.rank() {
		return huberr.New(huberr.KindConflict, "contract.ApplyLiquidationSubStatus",
			fmt.Errorf("sub-status is monotone: cannot regress %s -> %s", c.LiquidationSubStatus, next))
	}
	c.LiquidationSubStatus = next
	c.UpdatedAt = now()
	return nil
}
