// Package auth implements the SRP-6a password-authenticated key exchange
// server role: registration, the two-step login handshake,
// and the legacy-password upgrade path. The server never learns the
// password; only a salt and verifier are ever stored.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tadglines/go-pkg-srp/srp"

	"github.com/satlend/hub/huberr"
	"github.com/satlend/hub/observability/logging"
)

// srpGroup selects the 2048-bit RFC-5054 group with SHA-256, the protocol's
// fixed parameter set.
const srpGroup = "rfc5054.2048"

var (
	errInvalidCredentials = errors.New("auth: invalid credentials")
	errUnverifiedEmail    = errors.New("auth: email not verified")
	errAlreadyUpgraded    = errors.New("auth: account already upgraded from legacy password")
)

// Credentials is one user's PAKE (or pre-upgrade legacy) record.
type Credentials struct {
	Email              string
	Salt               []byte
	Verifier           []byte
	LegacyPasswordHash []byte // present only before upgrade
	EmailVerified      bool
}

// upgraded reports whether this record has completed the SRP upgrade.
func (c Credentials) upgraded() bool { return len(c.LegacyPasswordHash) == 0 }

// CredentialStore persists Credentials. Implemented by storage/postgres.
type CredentialStore interface {
	Get(email string) (Credentials, error)
	Save(Credentials) error
}

// WalletBackup is one encrypted-mnemonic row for a user: returned to the client alongside a successful login so
// it can decrypt its seed locally.
type WalletBackup struct {
	Email      string
	Ciphertext string // "hex(salt)$hex(ciphertext)", see crypto.EncryptMnemonicBackup
	Network    string
	Xpub       string
}

// WalletBackupStore persists WalletBackup rows; the newest row per email is
// canonical.
type WalletBackupStore interface {
	Latest(email string) (WalletBackup, error)
	Save(WalletBackup) error
}

// loginSession is the server-held state between login step 1 and step 2: the
// ephemeral private value `b` the server generated, and the live SRP server
// session built from it.
type loginSession struct {
	session *srp.ServerSession
	started time.Time
}

// Server is the hub's side of the PAKE handshake. The in-memory session
// map is per-email, single-entry, last-writer-wins: a second login step 1
// call for the same email simply discards the previous ephemeral state.
type Server struct {
	srp *srp.SRP

	credentials CredentialStore
	backups     WalletBackupStore

	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*loginSession
}

// NewServer constructs a Server. jwtSecret signs the opaque auth token
// minted on a successful login (not an HTTP session cookie: minting only;
// verification and routing belong to the HTTP layer, not here).
func NewServer(credentials CredentialStore, backups WalletBackupStore, jwtSecret []byte) (*Server, error) {
	group, err := srp.NewSRP(srpGroup, sha256.New, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: init srp group: %w", err)
	}
	if credentials == nil || backups == nil {
		return nil, errors.New("auth: credential and backup stores are required")
	}
	if len(jwtSecret) == 0 {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &Server{
		srp:         group,
		credentials: credentials,
		backups:     backups,
		jwtSecret:   jwtSecret,
		tokenTTL:    24 * time.Hour,
		logger:      slog.Default(),
		sessions:    make(map[string]*loginSession),
	}, nil
}

// Register stores a freshly-registered user's salt, verifier and initial
// wallet backup verbatim; the server never sees the password.
func (s *Server) Register(email string, salt, verifier []byte, backup WalletBackup) error {
	if email == "" || len(salt) == 0 || len(verifier) == 0 {
		return huberr.New(huberr.KindValidation, "auth.Register", errors.New("email, salt and verifier are required"))
	}
	if err := s.credentials.Save(Credentials{Email: email, Salt: salt, Verifier: verifier, EmailVerified: true}); err != nil {
		return huberr.New(huberr.KindPersistent, "auth.Register", err)
	}
	backup.Email = email
	if err := s.backups.Save(backup); err != nil {
		return huberr.New(huberr.KindPersistent, "auth.Register", err)
	}
	return nil
}

// LoginStep1 looks up the user's (salt, verifier), generates a fresh
// ephemeral server value, and returns the challenge (salt, B). The session
// is stashed keyed by email, overwriting any prior in-flight login.
func (s *Server) LoginStep1(email string) (salt, B []byte, err error) {
	creds, err := s.credentials.Get(email)
	if err != nil {
		return nil, nil, huberr.New(huberr.KindValidation, "auth.LoginStep1", errInvalidCredentials)
	}
	if !creds.EmailVerified {
		return nil, nil, huberr.New(huberr.KindValidation, "auth.LoginStep1", errUnverifiedEmail)
	}

	session := s.srp.NewServerSession([]byte(email), creds.Salt, creds.Verifier)

	s.mu.Lock()
	s.sessions[email] = &loginSession{session: session, started: time.Now()}
	s.mu.Unlock()

	return creds.Salt, session.GetB(), nil
}

// LoginResult is returned by a successful LoginStep2.
type LoginResult struct {
	M2           []byte
	AuthToken    string
	WalletBackup WalletBackup
}

// LoginStep2 completes the handshake: it derives the shared session key
// from the stashed ephemeral value and the client's A, checks the client's
// proof M1, and on success returns the server's proof M2, a minted auth
// token and the user's wallet backup.
func (s *Server) LoginStep2(email string, A, M1 []byte) (*LoginResult, error) {
	s.mu.Lock()
	entry, ok := s.sessions[email]
	if ok {
		delete(s.sessions, email)
	}
	s.mu.Unlock()
	if !ok {
		return nil, huberr.New(huberr.KindValidation, "auth.LoginStep2", errInvalidCredentials)
	}

	if _, err := entry.session.ComputeKey(A); err != nil {
		return nil, huberr.New(huberr.KindValidation, "auth.LoginStep2", errInvalidCredentials)
	}
	if !entry.session.VerifyClientAuthenticator(M1) {
		s.logger.Warn("auth: login proof rejected", logging.MaskField("email", email))
		return nil, huberr.New(huberr.KindValidation, "auth.LoginStep2", errInvalidCredentials)
	}
	m2 := entry.session.ComputeAuthenticator(M1)

	backup, err := s.backups.Latest(email)
	if err != nil {
		return nil, huberr.New(huberr.KindPersistent, "auth.LoginStep2", err)
	}

	token, err := s.mintToken(email)
	if err != nil {
		return nil, huberr.New(huberr.KindFatal, "auth.LoginStep2", err)
	}

	return &LoginResult{M2: m2, AuthToken: token, WalletBackup: backup}, nil
}

// mintToken signs a short-lived opaque bearer token for the authenticated
// email. This is the one place jwt appears in this package: it mints, it
// does not verify or route.
func (s *Server) mintToken(email string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// BeginUpgrade is step one of the legacy-password upgrade flow: the caller has already verified the old password hash out
// of band (legacy hashing scheme is not specified here); this call returns
// the user's current wallet backup ciphertext so the client can re-encrypt
// it under the new password before completing the upgrade.
func (s *Server) BeginUpgrade(email string) (WalletBackup, error) {
	creds, err := s.credentials.Get(email)
	if err != nil {
		return WalletBackup{}, huberr.New(huberr.KindValidation, "auth.BeginUpgrade", errInvalidCredentials)
	}
	if creds.upgraded() {
		return WalletBackup{}, huberr.New(huberr.KindConflict, "auth.BeginUpgrade", errAlreadyUpgraded)
	}
	backup, err := s.backups.Latest(email)
	if err != nil {
		return WalletBackup{}, huberr.New(huberr.KindPersistent, "auth.BeginUpgrade", err)
	}
	return backup, nil
}

// CompleteUpgrade accepts the client's fresh (verifier, salt) and
// re-encrypted backup, erasing the legacy password column. The re-encrypted backup must still derive the
// same wallet: its Xpub has to equal the previous canonical row's.
func (s *Server) CompleteUpgrade(email string, salt, verifier []byte, newBackup WalletBackup) error {
	creds, err := s.credentials.Get(email)
	if err != nil {
		return huberr.New(huberr.KindValidation, "auth.CompleteUpgrade", errInvalidCredentials)
	}
	if creds.upgraded() {
		return huberr.New(huberr.KindConflict, "auth.CompleteUpgrade", errAlreadyUpgraded)
	}
	if previous, err := s.backups.Latest(email); err == nil && previous.Xpub != newBackup.Xpub {
		return huberr.New(huberr.KindValidation, "auth.CompleteUpgrade",
			fmt.Errorf("re-encrypted backup xpub does not match the existing wallet"))
	}
	creds.Salt = salt
	creds.Verifier = verifier
	creds.LegacyPasswordHash = nil
	if err := s.credentials.Save(creds); err != nil {
		return huberr.New(huberr.KindPersistent, "auth.CompleteUpgrade", err)
	}
	newBackup.Email = email
	if err := s.backups.Save(newBackup); err != nil {
		return huberr.New(huberr.KindPersistent, "auth.CompleteUpgrade", err)
	}
	return nil
}

// ComputeVerifier is a convenience the client side of this protocol (e.g.
// cmd/walletcli) calls during registration: it generates a random salt and
// derives the verifier for password, never transmitting the password
// itself.
func ComputeVerifier(password string) (salt, verifier []byte, err error) {
	group, err := srp.NewSRP(srpGroup, sha256.New, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: init srp group: %w", err)
	}
	return group.ComputeVerifier([]byte(password))
}

// ClientSession is the client-side counterpart used by cmd/walletcli to
// exercise a login round-trip against Server in tests and in the CLI.
type ClientSession struct {
	session *srp.ClientSession
}

// NewClientLogin starts a client login: it derives A from the user's
// password and the email identity.
func NewClientLogin(email, password string) (*ClientSession, error) {
	group, err := srp.NewSRP(srpGroup, sha256.New, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: init srp group: %w", err)
	}
	return &ClientSession{session: group.NewClientSession([]byte(email), []byte(password))}, nil
}

// A returns the client's public ephemeral value to send in login step 2.
func (c *ClientSession) A() []byte { return c.session.GetA() }

// ComputeM1 derives the shared key from the server's (salt, B) and returns
// the client proof M1.
func (c *ClientSession) ComputeM1(salt, B []byte) ([]byte, error) {
	if _, err := c.session.ComputeKey(salt, B); err != nil {
		return nil, fmt.Errorf("auth: compute shared key: %w", err)
	}
	return c.session.ComputeAuthenticator(), nil
}

// VerifyM2 checks the server's proof, completing mutual authentication.
func (c *ClientSession) VerifyM2(m2 []byte) bool {
	return c.session.VerifyServerAuthenticator(m2)
}
