package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// EncryptContentKey wraps a fiat-envelope content-encryption key under a
// party's contract public key (ECIES over secp256k1), so a borrower or
// lender's copy of the envelope can recover the symmetric key from their own
// contract private key alone.
func EncryptContentKey(recipient *PublicKey, contentKey []byte) ([]byte, error) {
	eciesPub := ecies.ImportECDSAPublic(recipient.PublicKey)
	sealed, err := ecies.Encrypt(rand.Reader, eciesPub, contentKey, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: ecies wrap content key: %w", err)
	}
	return sealed, nil
}

// DecryptContentKey reverses EncryptContentKey using the recipient's
// contract private key.
func DecryptContentKey(recipient *PrivateKey, sealed []byte) ([]byte, error) {
	eciesPriv := ecies.ImportECDSA(recipient.PrivateKey)
	contentKey, err := eciesPriv.Decrypt(sealed, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: ecies unwrap content key: %w", err)
	}
	return contentKey, nil
}
