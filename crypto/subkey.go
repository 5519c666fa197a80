package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// fixedFieldNonce is the constant 12-byte nonce shared by every field-level
// encryption in this package. Reuse across messages is safe only because
// each message is sealed under an HKDF subkey unique to that field or
// backup; the cipher never reuses both a key and a nonce together.
const fixedFieldNonce = "SECRET_KEY!!"

// DeriveFieldKey runs HKDF-SHA256(secret, salt, info) and reads a 32-byte
// key. It backs both the mnemonic-backup cipher (secret is the user's
// password) and the fiat-loan field cipher (secret is the envelope's random
// content key).
func DeriveFieldKey(secret, salt []byte, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, salt, []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("crypto: hkdf derive: %w", err)
	}
	return key, nil
}

// SealFiatField encrypts plaintext under a per-field HKDF subkey for the
// fiat-loan envelope; the caller (fiatenvelope) guarantees
// key is never reused for a second message.
func SealFiatField(key, plaintext []byte) ([]byte, error) {
	return sealField(key, plaintext, nil)
}

// OpenFiatField reverses SealFiatField.
func OpenFiatField(key, ciphertext []byte) ([]byte, error) {
	return openField(key, ciphertext, nil)
}

// sealField encrypts plaintext under key using AES-GCM with the package's
// fixed nonce. Safe to call only with a key that is never reused for a
// second message (see fixedFieldNonce).
func sealField(key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := newFieldAEAD(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, []byte(fixedFieldNonce), plaintext, additionalData), nil
}

// openField reverses sealField.
func openField(key, ciphertext, additionalData []byte) ([]byte, error) {
	aead, err := newFieldAEAD(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, []byte(fixedFieldNonce), ciphertext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("crypto: field decryption failed: %w", err)
	}
	return plaintext, nil
}

func newFieldAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: init aes block: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: init gcm: %w", err)
	}
	if aead.NonceSize() != len(fixedFieldNonce) {
		return nil, fmt.Errorf("crypto: nonce size mismatch: got %d want %d", aead.NonceSize(), len(fixedFieldNonce))
	}
	return aead, nil
}
