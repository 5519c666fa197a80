package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/satlend/hub/chain"
	"github.com/satlend/hub/contract"
	"github.com/satlend/hub/huberr"
)

// ObserveCollateral implements chain.StatusUpdater, routing the watcher's
// reconciled collateral figure through the contract's own change policy.
func (c *Coordinator) ObserveCollateral(ctx context.Context, contractID uuid.UUID, confirmedSats int64, seenUnconfirmed bool) error {
	err := c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		return ct.ObserveCollateral(confirmedSats, seenUnconfirmed)
	})
	if err == nil {
		c.emitter.Emit(contract.CollateralObserved{ContractID: contractID, Sats: confirmedSats})
	}
	return err
}

// SpendSettled implements the settlement half of chain.StatusUpdater: a
// tracked claim/liquidation/recovery transaction confirmed on chain, so the
// contract closes under the matching terminal status.
func (c *Coordinator) SpendSettled(ctx context.Context, contractID uuid.UUID, kind chain.SpendKind) error {
	path, err := spendPathFor(kind)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		return ct.SpendConfirmed(path)
	})
}

func spendPathFor(kind chain.SpendKind) (contract.SpendPath, error) {
	switch kind {
	case chain.SpendKindClaim:
		return contract.SpendClaim, nil
	case chain.SpendKindLiquidation:
		return contract.SpendLiquidation, nil
	case chain.SpendKindDefault:
		return contract.SpendDefaultLiquidation, nil
	case chain.SpendKindRecovery:
		return contract.SpendRecovery, nil
	default:
		return 0, huberr.New(huberr.KindValidation, "coordinator.SpendSettled",
			fmt.Errorf("unknown spend kind %q", kind))
	}
}

// ApplyLTV implements liquidation.ContractUpdater. The sub-status ladder is
// monotone, so a target below the contract's current rung is a no-op rather
// than an error: the monitor reports whatever the mean price implies and
// the ladder simply never descends. Contracts outside the checkable set
// (repaid, disputed, already closing) are skipped.
func (c *Coordinator) ApplyLTV(ctx context.Context, contractID uuid.UUID, ltv float64, target contract.LiquidationSubStatus) error {
	return c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		if !ct.CheckableForUndercollateralization() {
			return nil
		}
		if !ct.AdvancesLiquidationSubStatus(target) {
			return nil
		}
		if err := ct.ApplyLiquidationSubStatus(target); err != nil {
			return err
		}
		c.emitter.Emit(contract.LiquidationSubStatusChanged{ContractID: contractID, To: target})
		if target == contract.SubStatusLiquidated {
			return ct.MarkUndercollateralized()
		}
		return nil
	})
}

// ApproveContract routes a lender's acceptance into the owning shard,
// binding the collateral address, shared derivation index and lender key
// material in the same transition.
func (c *Coordinator) ApproveContract(ctx context.Context, contractID uuid.UUID, address string, contractIndex uint32, lenderPubKey []byte, lenderDerivationPath string) error {
	return c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		return ct.Approve(address, contractIndex, lenderPubKey, lenderDerivationPath)
	})
}

// ReportDisbursement routes a lender's disbursement confirmation into the
// owning shard.
func (c *Coordinator) ReportDisbursement(ctx context.Context, contractID uuid.UUID) error {
	return c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		return ct.ReportDisbursement()
	})
}

// RepayFull routes a borrower's full-repayment report into the owning
// shard.
func (c *Coordinator) RepayFull(ctx context.Context, contractID uuid.UUID) error {
	return c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		return ct.RepayFull()
	})
}

// ConfirmRepayment routes the lender's repayment confirmation into the
// owning shard.
func (c *Coordinator) ConfirmRepayment(ctx context.Context, contractID uuid.UUID) error {
	return c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		return ct.ConfirmRepayment()
	})
}

// BeginClosing routes the broadcast of a settlement transaction into the
// owning shard; the watcher's TrackCollateralClaim drives the rest.
func (c *Coordinator) BeginClosing(ctx context.Context, contractID uuid.UUID) error {
	return c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		return ct.BeginClosing()
	})
}

// OpenDispute routes a dispute-open request into the owning shard.
func (c *Coordinator) OpenDispute(ctx context.Context, contractID uuid.UUID, byBorrower bool) error {
	err := c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		pre := ct.Status
		if dispErr := ct.OpenDispute(byBorrower); dispErr != nil {
			return dispErr
		}
		c.emitter.Emit(contract.DisputeOpened{ContractID: contractID, ByBorrower: byBorrower, PreStatus: pre})
		return nil
	})
	return err
}

// ResolveDispute routes a dispute-resolution decision into the owning
// shard.
func (c *Coordinator) ResolveDispute(ctx context.Context, contractID uuid.UUID) error {
	return c.dispatch(ctx, contractID, func(ct *contract.Contract) error {
		if err := ct.ResolveDispute(); err != nil {
			return err
		}
		c.emitter.Emit(contract.DisputeResolved{ContractID: contractID, RestoredTo: ct.Status})
		return nil
	})
}
