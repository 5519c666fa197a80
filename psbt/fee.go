// Package psbt builds and co-signs the PSBTs that spend a contract's
// collateral across its four output shapes (claim, liquidation, dispute and
// recovery), all sharing one fee-rate iteration and dust-folding rule.
package psbt

// EstimatedVSize is the virtual size, in vbytes, assumed for a
// single-input 2-of-3 P2WSH spend: the canonical witness stack (three
// signatures plus the redeem script) substituted into the input to obtain a
// realistic size. It is held fixed rather than computed per transaction so
// the fee-rate search is deterministic and reproducible by a wallet
// independently verifying the hub's proposed fee.
const EstimatedVSize = 153

// DustThresholdSats is the minimum output value treated as spendable;
// anything below it is folded away rather than left as an uneconomical
// output.
const DustThresholdSats = 294

// feeStepSats is the amount deducted from the current flex output on each
// iteration while searching for a fee rate that meets the target.
const feeStepSats = 100

// SolveOutputs runs the dust-folding and fee-rate search over a spend's
// planned output values. outputs[0] is the flex output (the borrower's
// residual on every path) and outputs[len-1] is the origination-fee slot;
// any outputs between are fixed counterparty payouts.
//
// Folding first: a middle output below DustThresholdSats is folded into
// output[0] before iteration begins. The origination-fee slot is never
// pre-folded away: the fee is charged on every spend path, and iteration
// below may instead fold the flex output into it.
//
// Iteration then decrements the current output by feeStepSats until the
// implied fee rate meets or exceeds targetSatPerVByte. When the current
// output would fall below the dust threshold it is deleted and its residual
// value folds into the next surviving output, which becomes the new
// decrement target. The last surviving output is never deleted: if it
// cannot be decremented further without falling below dust, iteration stops
// short of the target rather than burning the spend as fee.
//
// The returned slice has the same length as outputs with deleted slots set
// to zero; feeSats is totalInputSats minus the surviving output values. The
// procedure is deterministic: identical inputs always yield identical
// outputs.
func SolveOutputs(totalInputSats int64, outputs []int64, targetSatPerVByte float64) (final []int64, feeSats int64) {
	vals := make([]int64, len(outputs))
	copy(vals, outputs)

	for i := 1; i < len(vals)-1; i++ {
		if vals[i] > 0 && vals[i] < DustThresholdSats {
			vals[0] += vals[i]
			vals[i] = 0
		}
	}

	idx := 0
	for idx < len(vals) {
		if vals[idx] == 0 {
			idx++
			continue
		}
		fee := totalInputSats - sum(vals)
		if float64(fee)/float64(EstimatedVSize) >= targetSatPerVByte {
			break
		}
		if vals[idx]-feeStepSats < DustThresholdSats {
			next := nextSurviving(vals, idx+1)
			if next < 0 {
				// Last surviving output: stop rather than burn the whole
				// spend as fee, even if the target rate is out of reach.
				break
			}
			vals[next] += vals[idx]
			vals[idx] = 0
			idx = next
			continue
		}
		vals[idx] -= feeStepSats
	}

	return vals, totalInputSats - sum(vals)
}

func sum(vals []int64) int64 {
	var total int64
	for _, v := range vals {
		total += v
	}
	return total
}

func nextSurviving(vals []int64, from int) int {
	for i := from; i < len(vals); i++ {
		if vals[i] > 0 {
			return i
		}
	}
	return -1
}

// FeeRate reports the sats/vbyte a solved output set implies, for callers
// verifying a proposed spend against their own target.
func FeeRate(totalInputSats int64, outputs []int64) float64 {
	return float64(totalInputSats-sum(outputs)) / float64(EstimatedVSize)
}
