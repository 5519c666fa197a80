// Package fiatenvelope implements the field-level encryption scheme for
// fiat-loan personal data: a random per-contract content key
// encrypts each field under an HKDF subkey, and the content key itself is
// wrapped twice via ECIES so either the borrower or the lender can recover
// it from their own contract private key. The hub, which only ever stores
// ciphertexts, is an untrusted relay.
package fiatenvelope

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/satlend/hub/crypto"
)

const (
	contentKeyLen = 32
	fieldHKDFInfo = "ENCRYPTION_KEY"
	fieldSaltLen  = 32
)

// Envelope is one contract's fiat-loan personal data at rest: every
// plaintext field stored as an encrypted string, plus the content key
// wrapped for borrower and lender.
type Envelope struct {
	ID         uuid.UUID
	ContractID uuid.UUID

	Fields map[string]string // field name -> "hex(salt)$hex(ciphertext)"

	WrappedForBorrower []byte
	WrappedForLender   []byte
}

// New builds an Envelope from plaintext fields, generating a fresh random
// content key and wrapping it for both parties. Neither plaintext fields nor
// the content key are retained by the caller once this returns; only the
// Envelope (ciphertexts and wrapped keys) should be persisted.
func New(contractID uuid.UUID, fields map[string]string, borrowerPub, lenderPub *crypto.PublicKey) (*Envelope, error) {
	if len(fields) == 0 {
		return nil, errors.New("fiatenvelope: at least one field is required")
	}
	contentKey := make([]byte, contentKeyLen)
	if _, err := io.ReadFull(rand.Reader, contentKey); err != nil {
		return nil, fmt.Errorf("fiatenvelope: generate content key: %w", err)
	}

	encrypted := make(map[string]string, len(fields))
	for name, plaintext := range fields {
		wire, err := encryptField(contentKey, plaintext)
		if err != nil {
			return nil, fmt.Errorf("fiatenvelope: encrypt field %q: %w", name, err)
		}
		encrypted[name] = wire
	}

	wrappedBorrower, err := crypto.EncryptContentKey(borrowerPub, contentKey)
	if err != nil {
		return nil, fmt.Errorf("fiatenvelope: wrap content key for borrower: %w", err)
	}
	wrappedLender, err := crypto.EncryptContentKey(lenderPub, contentKey)
	if err != nil {
		return nil, fmt.Errorf("fiatenvelope: wrap content key for lender: %w", err)
	}

	return &Envelope{
		ID:                 uuid.New(),
		ContractID:         contractID,
		Fields:             encrypted,
		WrappedForBorrower: wrappedBorrower,
		WrappedForLender:   wrappedLender,
	}, nil
}

// ContentHash returns a deterministic digest over the envelope's stored
// ciphertexts and wrapped keys. During arbitration the hub and both parties
// can compare digests to establish they hold the same sealed record without
// the hub ever seeing a plaintext field.
func (e *Envelope) ContentHash() [32]byte {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	h := blake3.New(32, nil)
	h.Write(e.ContractID[:])
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(e.Fields[name]))
		h.Write([]byte{0})
	}
	h.Write(e.WrappedForBorrower)
	h.Write(e.WrappedForLender)

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Party selects whose wrapped content-key copy to unwrap with.
type Party uint8

const (
	Borrower Party = iota
	Lender
)

// Decrypt recovers every plaintext field using party's contract private
// key. Either party's wrapped copy yields the identical plaintext set.
func (e *Envelope) Decrypt(party Party, priv *crypto.PrivateKey) (map[string]string, error) {
	var wrapped []byte
	switch party {
	case Borrower:
		wrapped = e.WrappedForBorrower
	case Lender:
		wrapped = e.WrappedForLender
	default:
		return nil, fmt.Errorf("fiatenvelope: unknown party %d", party)
	}

	contentKey, err := crypto.DecryptContentKey(priv, wrapped)
	if err != nil {
		return nil, fmt.Errorf("fiatenvelope: unwrap content key: %w", err)
	}

	plain := make(map[string]string, len(e.Fields))
	for name, wire := range e.Fields {
		p, err := decryptField(contentKey, wire)
		if err != nil {
			return nil, fmt.Errorf("fiatenvelope: decrypt field %q: %w", name, err)
		}
		plain[name] = p
	}
	return plain, nil
}

// encryptField derives a fresh per-field subkey from the content key via
// HKDF and seals plaintext under it, returning the on-wire
// "hex(salt)$hex(ciphertext)" format. Nonce reuse across
// fields is safe because each field uses a distinct HKDF subkey.
func encryptField(contentKey []byte, plaintext string) (string, error) {
	salt := make([]byte, fieldSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	fieldKey, err := crypto.DeriveFieldKey(contentKey, salt, fieldHKDFInfo)
	if err != nil {
		return "", err
	}
	ciphertext, err := crypto.SealFiatField(fieldKey, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(ciphertext), nil
}

func decryptField(contentKey []byte, wire string) (string, error) {
	parts := strings.SplitN(wire, "$", 2)
	if len(parts) != 2 {
		return "", errors.New("malformed field ciphertext")
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	fieldKey, err := crypto.DeriveFieldKey(contentKey, salt, fieldHKDFInfo)
	if err != nil {
		return "", err
	}
	plaintext, err := crypto.OpenFiatField(fieldKey, ciphertext)
	if err != nil {
		return "", fmt.Errorf("open field: %w", err)
	}
	return string(plaintext), nil
}
