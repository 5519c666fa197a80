package collateral

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/satlend/hub/crypto"
)

func testPubKeys(t *testing.T, n int) [][]byte {
	t.Helper()
	keys := make([][]byte, n)
	for i := range keys {
		priv, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)
		keys[i] = priv.PubKey().SECCompressed()
	}
	return keys
}

func TestNewTwoOfThree(t *testing.T) {
	pubKeys := testPubKeys(t, 3)
	desc, err := New(2, pubKeys, &chaincfg.MainNetParams)
	require.NoError(t, err)

	require.Equal(t, 2, desc.Threshold)
	require.Len(t, desc.PubKeys, 3)
	for i := 1; i < len(desc.PubKeys); i++ {
		require.Negative(t, bytes.Compare(desc.PubKeys[i-1], desc.PubKeys[i]),
			"descriptor keys must be sorted ascending")
	}

	// P2WSH: OP_0 <sha256(witnessScript)>.
	scriptHash := sha256.Sum256(desc.WitnessScript)
	require.Len(t, desc.ScriptPubKey, 34)
	require.Equal(t, byte(txscript.OP_0), desc.ScriptPubKey[0])
	require.Equal(t, scriptHash[:], desc.ScriptPubKey[2:])

	require.Equal(t, scriptHash[:], desc.Address.ScriptAddress())
	require.True(t, desc.Address.IsForNet(&chaincfg.MainNetParams))

	// Witness script shape: OP_2 <k1> <k2> <k3> OP_3 OP_CHECKMULTISIG.
	require.Equal(t, byte(txscript.OP_2), desc.WitnessScript[0])
	require.Equal(t, byte(txscript.OP_CHECKMULTISIG), desc.WitnessScript[len(desc.WitnessScript)-1])
	require.Equal(t, byte(txscript.OP_3), desc.WitnessScript[len(desc.WitnessScript)-2])
}

func TestNewLegacyTwoOfFour(t *testing.T) {
	desc, err := New(2, testPubKeys(t, 4), &chaincfg.TestNet3Params)
	require.NoError(t, err)
	require.Equal(t, 2, desc.Threshold)
	require.Len(t, desc.PubKeys, 4)
	require.Equal(t, byte(txscript.OP_4), desc.WitnessScript[len(desc.WitnessScript)-2])
	require.True(t, desc.Address.IsForNet(&chaincfg.TestNet3Params))
}

func TestNewDeterministicUnderKeyOrder(t *testing.T) {
	pubKeys := testPubKeys(t, 3)
	a, err := New(2, pubKeys, &chaincfg.MainNetParams)
	require.NoError(t, err)

	shuffled := [][]byte{pubKeys[2], pubKeys[0], pubKeys[1]}
	b, err := New(2, shuffled, &chaincfg.MainNetParams)
	require.NoError(t, err)

	require.Equal(t, a.WitnessScript, b.WitnessScript)
	require.Equal(t, a.Address.EncodeAddress(), b.Address.EncodeAddress())
}

func TestNewRejectsBadInput(t *testing.T) {
	pubKeys := testPubKeys(t, 3)

	_, err := New(0, pubKeys, &chaincfg.MainNetParams)
	require.Error(t, err)
	_, err = New(4, pubKeys, &chaincfg.MainNetParams)
	require.Error(t, err)

	uncompressed := [][]byte{pubKeys[0], pubKeys[1], make([]byte, 65)}
	_, err = New(2, uncompressed, &chaincfg.MainNetParams)
	require.Error(t, err)
}

func TestKeyIndex(t *testing.T) {
	pubKeys := testPubKeys(t, 3)
	desc, err := New(2, pubKeys, &chaincfg.MainNetParams)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, pub := range pubKeys {
		idx, ok := desc.KeyIndex(pub)
		require.True(t, ok)
		require.Equal(t, pub, desc.PubKeys[idx])
		seen[idx] = true
	}
	require.Len(t, seen, 3)

	outsider := testPubKeys(t, 1)[0]
	_, ok := desc.KeyIndex(outsider)
	require.False(t, ok)
}
