package psbt

import (
	"fmt"

	btcpsbt "github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Build assembles an unsigned PSBT packet spending input across recipients.
// recipients[0] is the flex output whose value absorbs the fee (the
// borrower's residual on every path) and the last recipient is the
// origination-fee slot; SpendDispute and SpendLiquidation place the
// counterparty's fixed share between the two. Output values are settled by
// SolveOutputs before the transaction is laid down, so two parties building
// the same spend from identical inputs produce identical packets.
func Build(path SpendPath, input CollateralInput, recipients []Recipient, targetSatPerVByte float64) (*btcpsbt.Packet, error) {
	if len(recipients) < 2 {
		return nil, fmt.Errorf("psbt: %s needs at least a flex and an origination-fee recipient", path)
	}
	planned := make([]int64, len(recipients))
	var fixedTotal int64
	for i, r := range recipients {
		if r.Sats < 0 {
			return nil, fmt.Errorf("psbt: %s recipient %d has negative value", path, i)
		}
		planned[i] = r.Sats
		if i > 0 {
			fixedTotal += r.Sats
		}
	}
	if fixedTotal > input.Amount {
		return nil, fmt.Errorf("psbt: %s fixed outputs %d exceed collateral %d", path, fixedTotal, input.Amount)
	}

	solved, _ := SolveOutputs(input.Amount, planned, targetSatPerVByte)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: input.Outpoint})
	for i, sats := range solved {
		if sats == 0 {
			continue
		}
		pkScript, err := txscript.PayToAddrScript(recipients[i].Address)
		if err != nil {
			return nil, fmt.Errorf("psbt: %s output %d script: %w", path, i, err)
		}
		tx.AddTxOut(wire.NewTxOut(sats, pkScript))
	}
	if len(tx.TxOut) == 0 {
		return nil, fmt.Errorf("psbt: %s leaves no spendable output for %d sats collateral", path, input.Amount)
	}

	packet, err := btcpsbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("psbt: build %s packet: %w", path, err)
	}
	packet.Inputs[0].WitnessUtxo = &wire.TxOut{
		Value:    input.Amount,
		PkScript: input.Descriptor.ScriptPubKey,
	}
	packet.Inputs[0].WitnessScript = input.Descriptor.WitnessScript
	packet.Inputs[0].SighashType = txscript.SigHashAll
	return packet, nil
}
