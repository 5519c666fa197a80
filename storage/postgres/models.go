// Package postgres implements the gorm-backed repositories behind the
// domain packages: contracts, installments, wallet backups, PAKE
// credentials, the collateral-transaction audit ledger and fiat-loan
// envelopes. Schema migrations are managed out of band; the gorm struct tags
// below document the intended columns.
package postgres

import (
	"time"

	"github.com/google/uuid"
)

// contractRow is the gorm row shape for contract.Contract.
type contractRow struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	OpeningLTV              float64 `gorm:"not null"`
	InitialCollateralSats   int64   `gorm:"not null"`
	OriginationFeeSats      int64   `gorm:"not null"`
	ConfirmedCollateralSats int64   `gorm:"not null"`

	PrincipalAmount float64 `gorm:"not null"`
	PrincipalAsset  string  `gorm:"size:16;not null"`
	DurationDays    int     `gorm:"not null"`

	BorrowerPubKey         []byte `gorm:"type:bytea"`
	LenderPubKey           []byte `gorm:"type:bytea"`
	HubPubKey              []byte `gorm:"type:bytea"`
	BorrowerDerivationPath string `gorm:"size:128"`
	LenderDerivationPath   string `gorm:"size:128"`
	HubDerivationPath      string `gorm:"size:128"`

	ContractAddress string `gorm:"size:128;index"`
	ContractIndex   uint32 `gorm:"index"`
	Version         uint8  `gorm:"not null"`

	Status               uint8 `gorm:"index;not null"`
	LiquidationSubStatus uint8 `gorm:"not null"`

	PreDisputeStatus *uint8

	ExtensionOf *uuid.UUID `gorm:"type:uuid;index"`
	ExtendedTo  *uuid.UUID `gorm:"type:uuid;index"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (contractRow) TableName() string { return "contracts" }

// contractIndexCounterRow backs the single-writer contract-index sequence:
// one row, incremented under a row-level lock per allocation.
type contractIndexCounterRow struct {
	ID    int `gorm:"primaryKey"`
	Value uint32
}

func (contractIndexCounterRow) TableName() string { return "contract_index_counter" }

// installmentRow is the gorm row shape for installment.Installment.
type installmentRow struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	ContractID         uuid.UUID `gorm:"type:uuid;index;not null"`
	PrincipalComponent float64   `gorm:"not null"`
	InterestComponent  float64   `gorm:"not null"`
	DueDate            time.Time `gorm:"index"`
	Status             uint8     `gorm:"not null"`
}

func (installmentRow) TableName() string { return "installments" }

// credentialsRow is the gorm row shape for auth.Credentials.
type credentialsRow struct {
	Email              string `gorm:"primaryKey;size:320"`
	Salt               []byte `gorm:"type:bytea;not null"`
	Verifier           []byte `gorm:"type:bytea;not null"`
	LegacyPasswordHash []byte `gorm:"type:bytea"`
	EmailVerified      bool   `gorm:"not null"`
}

func (credentialsRow) TableName() string { return "pake_credentials" }

// walletBackupRow is the gorm row shape for auth.WalletBackup. Multiple
// historical rows per email are retained; the newest by CreatedAt is
// canonical.
type walletBackupRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email      string    `gorm:"index;size:320;not null"`
	Ciphertext string    `gorm:"type:text;not null"`
	Network    string    `gorm:"size:16;not null"`
	Xpub       string    `gorm:"size:128;not null"`
	CreatedAt  time.Time `gorm:"index"`
}

func (walletBackupRow) TableName() string { return "wallet_backups" }

// collateralTxRow is the gorm row shape for the audit copy of
// chain.CollateralTxRecord, written by cmd/hubd's pgArchiver alongside the
// watcher's own leveldb ledger so cmd/hub-audit can export history without
// touching the hot-path store.
type collateralTxRow struct {
	ContractID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Txid          string    `gorm:"primaryKey;size:64"`
	DepositedSats int64     `gorm:"not null"`
	SpentSats     int64     `gorm:"not null"`
	BlockHeight   int64
	BlockTime     int64
	RecordedAt    time.Time `gorm:"index"`
}

func (collateralTxRow) TableName() string { return "collateral_transactions" }

// loanOfferRow is the gorm row shape for contract.LoanOffer.
type loanOfferRow struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	LenderID uuid.UUID `gorm:"type:uuid;index;not null"`

	Asset           string  `gorm:"size:16;not null"`
	MinLTV          float64 `gorm:"not null"`
	MaxLTV          float64 `gorm:"not null"`
	YearlyRate      float64 `gorm:"not null"`
	MinDurationDays int     `gorm:"not null"`
	MaxDurationDays int     `gorm:"not null"`
	MaxPrincipal    float64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"index"`
}

func (loanOfferRow) TableName() string { return "loan_offers" }

// loanApplicationRow is the gorm row shape for contract.LoanApplication.
type loanApplicationRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	BorrowerID uuid.UUID `gorm:"type:uuid;index;not null"`

	Asset           string  `gorm:"size:16;not null"`
	RequestedLTV    float64 `gorm:"not null"`
	PrincipalAmount float64 `gorm:"not null"`
	DurationDays    int     `gorm:"not null"`

	BorrowerPubKey         []byte `gorm:"type:bytea"`
	BorrowerDerivationPath string `gorm:"size:128"`

	CreatedAt time.Time `gorm:"index"`
}

func (loanApplicationRow) TableName() string { return "loan_applications" }

// fiatEnvelopeRow is the gorm row shape for fiatenvelope.Envelope. Fields is
// stored as a JSON object of "name -> hex(salt)$hex(ciphertext)" pairs;
// Postgres's native jsonb column is addressed only through the struct tag,
// per this package's schema-by-tag-only convention.
type fiatEnvelopeRow struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	ContractID         uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	FieldsJSON         []byte    `gorm:"type:jsonb;not null"`
	WrappedForBorrower []byte    `gorm:"type:bytea;not null"`
	WrappedForLender   []byte    `gorm:"type:bytea;not null"`
}

func (fiatEnvelopeRow) TableName() string { return "fiat_envelopes" }
