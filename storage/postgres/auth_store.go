package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/satlend/hub/auth"
)

// CredentialStore implements auth.CredentialStore.
type CredentialStore struct {
	db *gorm.DB
}

// NewCredentialStore constructs a CredentialStore.
func NewCredentialStore(db *gorm.DB) *CredentialStore { return &CredentialStore{db: db} }

var _ auth.CredentialStore = (*CredentialStore)(nil)

func (s *CredentialStore) Get(email string) (auth.Credentials, error) {
	var row credentialsRow
	if err := s.db.First(&row, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auth.Credentials{}, fmt.Errorf("postgres: credentials for %q not found", email)
		}
		return auth.Credentials{}, err
	}
	return auth.Credentials{
		Email:              row.Email,
		Salt:               row.Salt,
		Verifier:           row.Verifier,
		LegacyPasswordHash: row.LegacyPasswordHash,
		EmailVerified:      row.EmailVerified,
	}, nil
}

func (s *CredentialStore) Save(c auth.Credentials) error {
	row := credentialsRow{
		Email:              c.Email,
		Salt:               c.Salt,
		Verifier:           c.Verifier,
		LegacyPasswordHash: c.LegacyPasswordHash,
		EmailVerified:      c.EmailVerified,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// WalletBackupStore implements auth.WalletBackupStore.
type WalletBackupStore struct {
	db *gorm.DB
}

// NewWalletBackupStore constructs a WalletBackupStore.
func NewWalletBackupStore(db *gorm.DB) *WalletBackupStore { return &WalletBackupStore{db: db} }

var _ auth.WalletBackupStore = (*WalletBackupStore)(nil)

func (s *WalletBackupStore) Latest(email string) (auth.WalletBackup, error) {
	var row walletBackupRow
	if err := s.db.Where("email = ?", email).Order("created_at DESC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auth.WalletBackup{}, fmt.Errorf("postgres: wallet backup for %q not found", email)
		}
		return auth.WalletBackup{}, err
	}
	return auth.WalletBackup{Email: row.Email, Ciphertext: row.Ciphertext, Network: row.Network, Xpub: row.Xpub}, nil
}

func (s *WalletBackupStore) Save(backup auth.WalletBackup) error {
	row := walletBackupRow{
		ID:         uuid.New(),
		Email:      backup.Email,
		Ciphertext: backup.Ciphertext,
		Network:    backup.Network,
		Xpub:       backup.Xpub,
		CreatedAt:  time.Now(),
	}
	return s.db.Create(&row).Error
}
