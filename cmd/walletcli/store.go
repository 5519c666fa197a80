package main

import (
	"encoding/json"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketWallets = []byte("wallets")

	errNotFound = errors.New("walletcli: record not found")
)

// walletRecord is the local, bbolt-cached copy of one login identity's
// public derivation material. The mnemonic itself is never cached here: it
// lives only in the server-side encrypted wallet backup and the operator's
// memory, decrypted transiently at signing time.
type walletRecord struct {
	Email     string    `json:"email"`
	Xpub      string    `json:"xpub"`
	Network   string    `json:"network"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// store is the walletcli local cache: a single-file bbolt database under
// the user's config directory, mirroring services/identity-gateway/store.go's
// bolt.Open-plus-bucket-ensure pattern.
type store struct {
	db *bolt.DB
}

// openStore opens (creating if absent) a bbolt database at path.
func openStore(path string) (*store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketWallets)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &store{db: db}, nil
}

func (s *store) Close() error { return s.db.Close() }

func (s *store) Put(rec walletRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWallets).Put([]byte(rec.Email), data)
	})
}

func (s *store) Get(email string) (walletRecord, error) {
	var rec walletRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketWallets).Get([]byte(email))
		if data == nil {
			return errNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}
