package psbt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSolveOutputsClaimTarget13(t *testing.T) {
	// 50000 sats collateral, 5000 origination fee, 13 sat/vB target.
	final, fee := SolveOutputs(50000, []int64{45000, 5000}, 13)

	rate := float64(fee) / float64(EstimatedVSize)
	require.GreaterOrEqual(t, rate, 13.0)
	require.LessOrEqual(t, rate, 14.0)
	require.Equal(t, int64(50000-5000)-fee, final[0])
	require.Equal(t, int64(5000), final[1])
}

func TestSolveOutputsDustFoldsBorrowerIntoFeeSlot(t *testing.T) {
	// Tiny collateral: the borrower's residual cannot survive the fee
	// search, so it folds into the origination-fee output and the spend
	// settles as a single output.
	total := int64(450)
	final, fee := SolveOutputs(total, []int64{400, 50}, 1)

	require.Equal(t, int64(0), final[0])
	require.Equal(t, total-fee, final[1])
	require.GreaterOrEqual(t, final[1], int64(DustThresholdSats))
	require.Positive(t, fee)
}

func TestSolveOutputsMiddleDustPreFolded(t *testing.T) {
	// A sub-dust lender share on a liquidation folds into the borrower's
	// flex output before iteration.
	final, fee := SolveOutputs(100000, []int64{90000, 200, 9800}, 2)
	require.Equal(t, int64(0), final[1])
	require.Equal(t, int64(9800), final[2])
	require.Equal(t, int64(90000+200)-fee, final[0])
	require.GreaterOrEqual(t, float64(fee)/float64(EstimatedVSize), 2.0)
}

func TestSolveOutputsDeterministic(t *testing.T) {
	a, feeA := SolveOutputs(123456, []int64{100000, 3456, 20000}, 17)
	b, feeB := SolveOutputs(123456, []int64{100000, 3456, 20000}, 17)
	require.Equal(t, a, b)
	require.Equal(t, feeA, feeB)
}

func TestSolveOutputsMeetsTargetAcrossRange(t *testing.T) {
	// calculate_fee_rate(build(tx, r)) >= r for fee targets across the
	// legal range, on a comfortably non-dust collateral sum.
	for _, target := range []float64{1, 2, 5, 13, 50, 100, 250, 500, 1000} {
		final, fee := SolveOutputs(500000, []int64{450000, 50000}, target)
		rate := float64(fee) / float64(EstimatedVSize)
		require.GreaterOrEqual(t, rate, target, "target %v", target)
		require.Equal(t, int64(500000)-fee, final[0]+final[1])
		for _, v := range final {
			if v != 0 {
				require.GreaterOrEqual(t, v, int64(DustThresholdSats))
			}
		}
	}
}

func TestFeeRate(t *testing.T) {
	require.InDelta(t, 2000.0/float64(EstimatedVSize), FeeRate(50000, []int64{43000, 5000}), 1e-9)
}
