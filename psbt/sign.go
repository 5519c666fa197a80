package psbt

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcpsbt "github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/tyler-smith/go-bip32"

	"github.com/satlend/hub/collateral"
	"github.com/satlend/hub/crypto"
)

// SignInput produces a SIGHASH_ALL witness signature over the collateral
// input at inputIndex, signed with priv.
func SignInput(packet *btcpsbt.Packet, inputIndex int, priv *crypto.PrivateKey) ([]byte, error) {
	in := packet.Inputs[inputIndex]
	if in.WitnessUtxo == nil || in.WitnessScript == nil {
		return nil, fmt.Errorf("psbt: input %d missing witness utxo/script", inputIndex)
	}
	fetcher := txscript.NewCannedPrevOutputFetcher(in.WitnessUtxo.PkScript, in.WitnessUtxo.Value)
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)
	privKey, _ := btcec.PrivKeyFromBytes(priv.Bytes())

	sig, err := txscript.RawTxInWitnessSignature(
		packet.UnsignedTx, sigHashes, inputIndex, in.WitnessUtxo.Value,
		in.WitnessScript, txscript.SigHashAll, privKey,
	)
	if err != nil {
		return nil, fmt.Errorf("psbt: sign input %d: %w", inputIndex, err)
	}
	return sig, nil
}

// CoSign is the hub's side of a counterparty-initiated spend: it re-derives
// the hub keypair for the contract's derivation index, signs the collateral
// input and records the signature in the packet's partial-sig map keyed by
// the hub's own public key. The counterparty signs locally and finalizes.
func CoSign(packet *btcpsbt.Packet, inputIndex int, tree *crypto.KeyTree, net crypto.Network, contractIndex uint32, legacy bool) error {
	var (
		leaf *bip32.Key
		err  error
	)
	if legacy {
		leaf, err = tree.LegacyContractKey(net, contractIndex)
	} else {
		leaf, err = tree.ContractKey(net, contractIndex)
	}
	if err != nil {
		return fmt.Errorf("psbt: derive co-signing key at index %d: %w", contractIndex, err)
	}
	priv, err := crypto.LeafPrivateKey(leaf)
	if err != nil {
		return fmt.Errorf("psbt: co-signing key at index %d: %w", contractIndex, err)
	}
	sig, err := SignInput(packet, inputIndex, priv)
	if err != nil {
		return err
	}
	CollectSignature(packet, inputIndex, priv.PubKey().SECCompressed(), sig)
	return nil
}

// CollectSignature records one party's signature for the collateral input
// in the packet's partial-signature map.
func CollectSignature(packet *btcpsbt.Packet, inputIndex int, pubKey, sig []byte) {
	packet.Inputs[inputIndex].PartialSigs = append(
		packet.Inputs[inputIndex].PartialSigs,
		&btcpsbt.PartialSig{PubKey: pubKey, Signature: sig},
	)
}

// Finalize builds the final witness stack once at least descriptor.Threshold
// signatures have been collected, ordering them to match the witness
// script's pubkey order (the extra leading nil element works around
// OP_CHECKMULTISIG's off-by-one stack bug), and returns the spendable
// transaction.
func Finalize(packet *btcpsbt.Packet, inputIndex int, descriptor *collateral.Descriptor) (*wire.MsgTx, error) {
	in := packet.Inputs[inputIndex]
	sigByKeyIndex := make(map[int][]byte, len(in.PartialSigs))
	for _, ps := range in.PartialSigs {
		idx, ok := descriptor.KeyIndex(ps.PubKey)
		if !ok {
			return nil, fmt.Errorf("psbt: signature from a pubkey outside the descriptor")
		}
		sigByKeyIndex[idx] = ps.Signature
	}
	if len(sigByKeyIndex) < descriptor.Threshold {
		return nil, fmt.Errorf("psbt: have %d signatures, need %d", len(sigByKeyIndex), descriptor.Threshold)
	}

	witness := wire.TxWitness{nil}
	collected := 0
	for i := 0; i < len(descriptor.PubKeys) && collected < descriptor.Threshold; i++ {
		sig, ok := sigByKeyIndex[i]
		if !ok {
			continue
		}
		witness = append(witness, sig)
		collected++
	}
	witness = append(witness, descriptor.WitnessScript)

	final := packet.UnsignedTx.Copy()
	final.TxIn[inputIndex].Witness = witness
	return final, nil
}
