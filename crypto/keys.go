package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"

	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey wraps a secp256k1 private key used throughout the protocol:
// contract signing keys, the hub operator key and ECIES unwrap keys all
// share this representation so a single keystore format covers them.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

// PublicKey wraps the corresponding secp256k1 public key.
type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey produces a fresh random secp256k1 keypair. Used for the
// hub's legacy fallback key and for tests; contract keys are derived
// deterministically via BIP32 rather than generated randomly.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the 32-byte big-endian scalar representation of the key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// PubKey derives the public key for this private key.
func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// SECCompressed returns the 33-byte SEC1-compressed public key used in the
// multisig witness script and in PSBT partial-signature maps.
func (k *PublicKey) SECCompressed() []byte {
	return crypto.CompressPubkey(k.PublicKey)
}

// PrivateKeyFromBytes reconstructs a private key from its 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PublicKeyFromSEC parses a 33-byte SEC1-compressed or 65-byte uncompressed
// public key, as recovered from a descriptor or a counterparty's Xpub.
func PublicKeyFromSEC(b []byte) (*PublicKey, error) {
	key, err := crypto.DecompressPubkey(b)
	if err != nil {
		key, err = crypto.UnmarshalPubkey(b)
		if err != nil {
			return nil, err
		}
	}
	return &PublicKey{key}, nil
}
