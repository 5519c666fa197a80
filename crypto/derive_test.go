package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testTree(t *testing.T) *KeyTree {
	t.Helper()
	mnemonic, err := GenerateMnemonic()
	require.NoError(t, err)
	seed, err := MnemonicSeed(mnemonic, "")
	require.NoError(t, err)
	tree, err := NewKeyTreeFromSeed(seed)
	require.NoError(t, err)
	return tree
}

func TestXpubRecomputesContractPubKeys(t *testing.T) {
	private := testTree(t)
	public, err := NewKeyTreeFromXpub(private.Xpub())
	require.NoError(t, err)

	for _, net := range []Network{Mainnet, Testnet} {
		for _, index := range []uint32{0, 1, 7, 42} {
			fromSeed, err := private.ContractKey(net, index)
			require.NoError(t, err)
			fromXpub, err := public.ContractKey(net, index)
			require.NoError(t, err)

			seedPub, err := LeafPublicKey(fromSeed)
			require.NoError(t, err)
			xpubPub, err := LeafPublicKey(fromXpub)
			require.NoError(t, err)
			require.Equal(t, seedPub.SECCompressed(), xpubPub.SECCompressed(),
				"net %v index %d", net, index)
		}
	}
}

func TestXpubCannotDeriveHardenedOrPrivate(t *testing.T) {
	private := testTree(t)
	public, err := NewKeyTreeFromXpub(private.Xpub())
	require.NoError(t, err)

	_, err = public.LegacyContractKey(Mainnet, 0)
	require.Error(t, err, "hardened derivation is impossible from an xpub")

	leaf, err := public.ContractKey(Mainnet, 0)
	require.NoError(t, err)
	_, err = LeafPrivateKey(leaf)
	require.Error(t, err)
}

func TestNewKeyTreeFromXpubRejectsPrivate(t *testing.T) {
	// A serialized private extended key must not be accepted as an xpub.
	mnemonic, err := GenerateMnemonic()
	require.NoError(t, err)
	seed, err := MnemonicSeed(mnemonic, "")
	require.NoError(t, err)
	tree, err := NewKeyTreeFromSeed(seed)
	require.NoError(t, err)

	_, err = NewKeyTreeFromXpub(tree.root.B58Serialize())
	require.Error(t, err)
}

func TestDistinctKeyClasses(t *testing.T) {
	tree := testTree(t)

	contract, err := tree.ContractKey(Mainnet, 3)
	require.NoError(t, err)
	legacy, err := tree.LegacyContractKey(Mainnet, 3)
	require.NoError(t, err)
	multisig, err := tree.PurposeMultisigKey(3)
	require.NoError(t, err)
	payout, err := tree.PurposePayoutKey(3)
	require.NoError(t, err)
	nostr, err := tree.NostrIdentityKey()
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, key := range [][]byte{contract.Key, legacy.Key, multisig.Key, payout.Key, nostr.Key} {
		require.False(t, seen[string(key)], "key classes must not collide")
		seen[string(key)] = true
	}
}

func TestContractKeyNetworkBranches(t *testing.T) {
	tree := testTree(t)
	mainnet, err := tree.ContractKey(Mainnet, 5)
	require.NoError(t, err)
	testnet, err := tree.ContractKey(Testnet, 5)
	require.NoError(t, err)
	require.NotEqual(t, mainnet.Key, testnet.Key)
}

func TestFindContractKeypair(t *testing.T) {
	tree := testTree(t)

	leaf, err := tree.ContractKey(Testnet, 9)
	require.NoError(t, err)
	pub, err := LeafPublicKey(leaf)
	require.NoError(t, err)

	found, path, ok := tree.FindContractKeypair(pub.SECCompressed())
	require.True(t, ok)
	require.Equal(t, "m/586/1/9", path)
	require.Equal(t, leaf.Key, found.Key)

	legacyLeaf, err := tree.LegacyContractKey(Mainnet, 4)
	require.NoError(t, err)
	legacyPub, err := LeafPublicKey(legacyLeaf)
	require.NoError(t, err)

	_, path, ok = tree.FindContractKeypair(legacyPub.SECCompressed())
	require.True(t, ok)
	require.Equal(t, "m/586'/0'/4'", path)

	other := testTree(t)
	otherLeaf, err := other.ContractKey(Mainnet, 0)
	require.NoError(t, err)
	otherPub, err := LeafPublicKey(otherLeaf)
	require.NoError(t, err)
	_, _, ok = tree.FindContractKeypair(otherPub.SECCompressed())
	require.False(t, ok)
}

func TestLeafPrivateKeyMatchesPublic(t *testing.T) {
	tree := testTree(t)
	leaf, err := tree.ContractKey(Mainnet, 1)
	require.NoError(t, err)

	priv, err := LeafPrivateKey(leaf)
	require.NoError(t, err)
	pub, err := LeafPublicKey(leaf)
	require.NoError(t, err)
	require.Equal(t, pub.SECCompressed(), priv.PubKey().SECCompressed())
}
