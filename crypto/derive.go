package crypto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tyler-smith/go-bip32"
)

const (
	purposeContractKey    uint32 = 586
	purposeMultisig       uint32 = 10101
	purposeMultisigBranch uint32 = 0
	purposePayoutBranch   uint32 = 1
)

// Network selects the branch used by the non-hardened contract-key path:
// mainnet derives under branch 0, every test network shares branch 1.
type Network uint8

const (
	Mainnet Network = iota
	Testnet
)

func (n Network) branch() uint32 {
	if n == Mainnet {
		return 0
	}
	return 1
}

// KeyTree wraps one party's BIP32 extended key (borrower, lender or hub each
// own one) and derives the leaf classes the protocol needs. A tree built
// from an Xpub can recompute any non-hardened leaf's public key without
// access to the owning party's seed; the hub uses this to recompute
// counterparty pubkeys when assembling a descriptor.
type KeyTree struct {
	root *bip32.Key
}

// NewKeyTreeFromSeed builds a private key tree from a BIP32 seed, typically
// MnemonicSeed's output.
func NewKeyTreeFromSeed(seed []byte) (*KeyTree, error) {
	root, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive master key: %w", err)
	}
	return &KeyTree{root: root}, nil
}

// NewKeyTreeFromXpub builds a public-only key tree from a serialized
// extended public key.
func NewKeyTreeFromXpub(xpub string) (*KeyTree, error) {
	key, err := bip32.B58Deserialize(xpub)
	if err != nil {
		return nil, fmt.Errorf("crypto: parse xpub: %w", err)
	}
	if key.IsPrivate {
		return nil, errors.New("crypto: expected a public extended key, got private")
	}
	return &KeyTree{root: key}, nil
}

// Xpub serializes the tree's extended public key for sharing with a
// counterparty or the hub.
func (t *KeyTree) Xpub() string {
	return t.root.PublicKey().B58Serialize()
}

// ContractKey derives the current-scheme non-hardened 2-of-3 protocol key at
// m/586/{0 or 1}/{contractIndex}.
func (t *KeyTree) ContractKey(net Network, contractIndex uint32) (*bip32.Key, error) {
	return t.derive(purposeContractKey, net.branch(), contractIndex, false)
}

// LegacyContractKey derives the hardened legacy 2-of-4 key at
// m/586'/{0'|1'}/{contractIndex'}. Only historical contracts use this path.
func (t *KeyTree) LegacyContractKey(net Network, contractIndex uint32) (*bip32.Key, error) {
	return t.derive(purposeContractKey, net.branch(), contractIndex, true)
}

// PurposeMultisigKey derives m/10101/0/i, the current-scheme multisig
// contract key addressed by a flat leaf index rather than a per-contract one.
func (t *KeyTree) PurposeMultisigKey(index uint32) (*bip32.Key, error) {
	return t.derive(purposeMultisig, purposeMultisigBranch, index, false)
}

// PurposePayoutKey derives m/10101/1/i, a single-sig payout address key.
func (t *KeyTree) PurposePayoutKey(index uint32) (*bip32.Key, error) {
	return t.derive(purposeMultisig, purposePayoutBranch, index, false)
}

// NostrIdentityKey derives the fixed m/44/0/0/0/0 identity key used to sign
// out-of-band messages to the hub or a counterparty.
func (t *KeyTree) NostrIdentityKey() (*bip32.Key, error) {
	key := t.root
	for _, idx := range [5]uint32{44, 0, 0, 0, 0} {
		child, err := key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("crypto: derive nostr identity: %w", err)
		}
		key = child
	}
	return key, nil
}

func (t *KeyTree) derive(purpose, branch, index uint32, hardened bool) (*bip32.Key, error) {
	offset := uint32(0)
	if hardened {
		offset = bip32.FirstHardenedChild
	}
	key := t.root
	for _, idx := range [3]uint32{purpose + offset, branch + offset, index + offset} {
		child, err := key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("crypto: derive leaf: %w", err)
		}
		key = child
	}
	return key, nil
}

// legacySearchMaxIndex bounds the keypair search heuristic below. Contracts
// created at a higher index than this predate nothing: they always carry a
// stored derivation path, so the search never needs to reach them.
const legacySearchMaxIndex = 100

// FindContractKeypair scans indices 0..legacySearchMaxIndex under both
// network branches and both the hardened and non-hardened contract-key
// variants for a leaf whose public key matches expectedSEC. Pre-upgrade
// contracts carry no stored derivation path, so this heuristic is the only
// way a wallet can recover its keypair for them; contracts created since
// store the path at creation and never call this.
func (t *KeyTree) FindContractKeypair(expectedSEC []byte) (leaf *bip32.Key, path string, ok bool) {
	for _, net := range [2]Network{Mainnet, Testnet} {
		for _, hardened := range [2]bool{false, true} {
			for index := uint32(0); index <= legacySearchMaxIndex; index++ {
				var (
					candidate *bip32.Key
					err       error
				)
				if hardened {
					candidate, err = t.LegacyContractKey(net, index)
				} else {
					candidate, err = t.ContractKey(net, index)
				}
				if err != nil {
					continue
				}
				pub, err := LeafPublicKey(candidate)
				if err != nil {
					continue
				}
				if bytes.Equal(pub.SECCompressed(), expectedSEC) {
					return candidate, contractKeyPath(net, index, hardened), true
				}
			}
		}
	}
	return nil, "", false
}

// contractKeyPath renders the derivation path for a contract key, in the
// form stored on the contract row at creation.
func contractKeyPath(net Network, index uint32, hardened bool) string {
	if hardened {
		return fmt.Sprintf("m/%d'/%d'/%d'", purposeContractKey, net.branch(), index)
	}
	return fmt.Sprintf("m/%d/%d/%d", purposeContractKey, net.branch(), index)
}

// LeafPrivateKey converts a derived BIP32 leaf into the protocol's secp256k1
// private key wrapper. It fails if the owning tree was built from an Xpub.
func LeafPrivateKey(leaf *bip32.Key) (*PrivateKey, error) {
	if !leaf.IsPrivate {
		return nil, errors.New("crypto: leaf carries no private key material")
	}
	return PrivateKeyFromBytes(leaf.Key)
}

// LeafPublicKey returns a leaf's public key whether the owning tree was
// built from a seed or from an Xpub.
func LeafPublicKey(leaf *bip32.Key) (*PublicKey, error) {
	pub := leaf
	if leaf.IsPrivate {
		pub = leaf.PublicKey()
	}
	return PublicKeyFromSEC(pub.Key)
}
