package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const (
	mnemonicHKDFInfo = "ENCRYPTION_KEY"
	mnemonicSaltLen  = 32
)

// GenerateMnemonic produces a fresh 12-word BIP39 mnemonic (128 bits of
// entropy), the wallet's sole backup secret.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", fmt.Errorf("crypto: generate entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// ValidMnemonic reports whether s is a well-formed BIP39 mnemonic.
func ValidMnemonic(s string) bool {
	return bip39.IsMnemonicValid(s)
}

// MnemonicSeed derives the BIP32 seed for a mnemonic under an optional BIP39
// passphrase.
func MnemonicSeed(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("crypto: invalid mnemonic")
	}
	return bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
}

// EncryptMnemonicBackup seals plaintext (the 12-word mnemonic, or for a
// legacy backup the mnemonic and an old passphrase joined by a space) under
// a password-derived key, returning the on-wire "hex(salt)$hex(ciphertext)"
// format stored as the wallet backup record.
func EncryptMnemonicBackup(plaintext, password string) (string, error) {
	salt := make([]byte, mnemonicSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("crypto: generate salt: %w", err)
	}
	key, err := DeriveFieldKey([]byte(password), salt, mnemonicHKDFInfo)
	if err != nil {
		return "", err
	}
	ciphertext, err := sealField(key, []byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("crypto: encrypt mnemonic backup: %w", err)
	}
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(ciphertext), nil
}

// DecryptMnemonicBackup reverses EncryptMnemonicBackup. Callers upgrading a
// legacy backup are responsible for splitting the returned plaintext on its
// trailing " <old-passphrase>" suffix; this function only undoes the cipher.
func DecryptMnemonicBackup(wire, password string) (string, error) {
	salt, ciphertext, err := splitBackupWire(wire)
	if err != nil {
		return "", err
	}
	key, err := DeriveFieldKey([]byte(password), salt, mnemonicHKDFInfo)
	if err != nil {
		return "", err
	}
	plaintext, err := openField(key, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt mnemonic backup: %w", err)
	}
	return string(plaintext), nil
}

func splitBackupWire(wire string) (salt, ciphertext []byte, err error) {
	parts := strings.SplitN(wire, "$", 2)
	if len(parts) != 2 {
		return nil, nil, errors.New("crypto: malformed backup ciphertext")
	}
	salt, err = hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: decode salt: %w", err)
	}
	ciphertext, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: decode ciphertext: %w", err)
	}
	return salt, ciphertext, nil
}
