package auth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satlend/hub/huberr"
)

type memCredentialStore struct {
	rows map[string]Credentials
}

func (m *memCredentialStore) Get(email string) (Credentials, error) {
	creds, ok := m.rows[email]
	if !ok {
		return Credentials{}, fmt.Errorf("no credentials for %s", email)
	}
	return creds, nil
}

func (m *memCredentialStore) Save(c Credentials) error {
	m.rows[c.Email] = c
	return nil
}

type memBackupStore struct {
	rows map[string][]WalletBackup
}

func (m *memBackupStore) Latest(email string) (WalletBackup, error) {
	backups := m.rows[email]
	if len(backups) == 0 {
		return WalletBackup{}, fmt.Errorf("no backup for %s", email)
	}
	return backups[len(backups)-1], nil
}

func (m *memBackupStore) Save(b WalletBackup) error {
	m.rows[b.Email] = append(m.rows[b.Email], b)
	return nil
}

func newTestServer(t *testing.T) (*Server, *memCredentialStore, *memBackupStore) {
	t.Helper()
	creds := &memCredentialStore{rows: make(map[string]Credentials)}
	backups := &memBackupStore{rows: make(map[string][]WalletBackup)}
	server, err := NewServer(creds, backups, []byte("test-jwt-secret-32-bytes-long!!!"))
	require.NoError(t, err)
	return server, creds, backups
}

func register(t *testing.T, server *Server, email, password string) {
	t.Helper()
	salt, verifier, err := ComputeVerifier(password)
	require.NoError(t, err)
	require.NoError(t, server.Register(email, salt, verifier, WalletBackup{
		Ciphertext: "aa$bb",
		Network:    "testnet",
		Xpub:       "xpub-test",
	}))
}

func TestLoginRoundTrip(t *testing.T) {
	server, _, _ := newTestServer(t)
	register(t, server, "ada@example.com", "hunter22")

	client, err := NewClientLogin("ada@example.com", "hunter22")
	require.NoError(t, err)

	salt, B, err := server.LoginStep1("ada@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, salt)
	require.NotEmpty(t, B)

	m1, err := client.ComputeM1(salt, B)
	require.NoError(t, err)

	result, err := server.LoginStep2("ada@example.com", client.A(), m1)
	require.NoError(t, err)
	require.True(t, client.VerifyM2(result.M2))
	require.NotEmpty(t, result.AuthToken)
	require.Equal(t, "aa$bb", result.WalletBackup.Ciphertext)
}

func TestLoginWrongPassword(t *testing.T) {
	server, _, _ := newTestServer(t)
	register(t, server, "ada@example.com", "hunter22")

	client, err := NewClientLogin("ada@example.com", "wrong-password")
	require.NoError(t, err)

	salt, B, err := server.LoginStep1("ada@example.com")
	require.NoError(t, err)

	// The handshake completes mechanically but the proof must not verify.
	m1, err := client.ComputeM1(salt, B)
	require.NoError(t, err)

	_, err = server.LoginStep2("ada@example.com", client.A(), m1)
	require.Error(t, err)
	require.Equal(t, huberr.KindValidation, huberr.KindOf(err))
}

func TestLoginUnknownEmail(t *testing.T) {
	server, _, _ := newTestServer(t)
	_, _, err := server.LoginStep1("ghost@example.com")
	require.Error(t, err)
	require.Equal(t, huberr.KindValidation, huberr.KindOf(err))
}

func TestLoginStep2WithoutStep1(t *testing.T) {
	server, _, _ := newTestServer(t)
	register(t, server, "ada@example.com", "hunter22")
	_, err := server.LoginStep2("ada@example.com", []byte{1}, []byte{2})
	require.Error(t, err)
}

func TestLoginUnverifiedEmail(t *testing.T) {
	server, creds, _ := newTestServer(t)
	register(t, server, "ada@example.com", "hunter22")
	row := creds.rows["ada@example.com"]
	row.EmailVerified = false
	creds.rows["ada@example.com"] = row

	_, _, err := server.LoginStep1("ada@example.com")
	require.Error(t, err)
}

func TestLoginStep1OverwritesSession(t *testing.T) {
	server, _, _ := newTestServer(t)
	register(t, server, "ada@example.com", "hunter22")

	// First challenge is discarded when a second step 1 arrives; only the
	// newest ephemeral state verifies.
	_, _, err := server.LoginStep1("ada@example.com")
	require.NoError(t, err)

	client, err := NewClientLogin("ada@example.com", "hunter22")
	require.NoError(t, err)
	salt, B, err := server.LoginStep1("ada@example.com")
	require.NoError(t, err)
	m1, err := client.ComputeM1(salt, B)
	require.NoError(t, err)
	result, err := server.LoginStep2("ada@example.com", client.A(), m1)
	require.NoError(t, err)
	require.True(t, client.VerifyM2(result.M2))

	// The session is single-use.
	_, err = server.LoginStep2("ada@example.com", client.A(), m1)
	require.Error(t, err)
}

func TestUpgradeFlow(t *testing.T) {
	server, creds, backups := newTestServer(t)
	require.NoError(t, creds.Save(Credentials{
		Email:              "legacy@example.com",
		Salt:               []byte("legacy-salt"),
		Verifier:           []byte("legacy-verifier"),
		LegacyPasswordHash: []byte("old-hash"),
		EmailVerified:      true,
	}))
	require.NoError(t, backups.Save(WalletBackup{
		Email:      "legacy@example.com",
		Ciphertext: "old$cipher",
		Network:    "mainnet",
		Xpub:       "xpub-legacy",
	}))

	backup, err := server.BeginUpgrade("legacy@example.com")
	require.NoError(t, err)
	require.Equal(t, "old$cipher", backup.Ciphertext)

	salt, verifier, err := ComputeVerifier("fresh-password")
	require.NoError(t, err)
	require.NoError(t, server.CompleteUpgrade("legacy@example.com", salt, verifier, WalletBackup{
		Ciphertext: "new$cipher",
		Network:    "mainnet",
		Xpub:       "xpub-legacy",
	}))

	upgraded, err := creds.Get("legacy@example.com")
	require.NoError(t, err)
	require.Empty(t, upgraded.LegacyPasswordHash)
	require.Equal(t, verifier, upgraded.Verifier)

	// A second upgrade attempt conflicts.
	_, err = server.BeginUpgrade("legacy@example.com")
	require.Error(t, err)
	require.Equal(t, huberr.KindConflict, huberr.KindOf(err))
}

func TestCompleteUpgradeRejectsForeignXpub(t *testing.T) {
	server, creds, backups := newTestServer(t)
	require.NoError(t, creds.Save(Credentials{
		Email:              "legacy@example.com",
		Salt:               []byte("s"),
		Verifier:           []byte("v"),
		LegacyPasswordHash: []byte("old-hash"),
		EmailVerified:      true,
	}))
	require.NoError(t, backups.Save(WalletBackup{
		Email: "legacy@example.com", Ciphertext: "old$cipher", Network: "mainnet", Xpub: "xpub-legacy",
	}))

	salt, verifier, err := ComputeVerifier("fresh-password")
	require.NoError(t, err)
	err = server.CompleteUpgrade("legacy@example.com", salt, verifier, WalletBackup{
		Ciphertext: "new$cipher", Network: "mainnet", Xpub: "xpub-DIFFERENT",
	})
	require.Error(t, err)
	require.Equal(t, huberr.KindValidation, huberr.KindOf(err))
}

func TestRegisterValidation(t *testing.T) {
	server, _, _ := newTestServer(t)
	err := server.Register("", []byte("s"), []byte("v"), WalletBackup{})
	require.Error(t, err)
	require.Equal(t, huberr.KindValidation, huberr.KindOf(err))
}
