package fiatenvelope

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/satlend/hub/crypto"
)

var testFields = map[string]string{
	"full_name":  "Ada Example",
	"iban":       "DE89370400440532013000",
	"bank_name":  "Example Bank",
	"swift_code": "EXAMPDEF",
}

func newTestEnvelope(t *testing.T) (*Envelope, *crypto.PrivateKey, *crypto.PrivateKey) {
	t.Helper()
	borrower, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	lender, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	env, err := New(uuid.New(), testFields, borrower.PubKey(), lender.PubKey())
	require.NoError(t, err)
	return env, borrower, lender
}

func TestDecryptByEitherParty(t *testing.T) {
	env, borrower, lender := newTestEnvelope(t)

	fromBorrower, err := env.Decrypt(Borrower, borrower)
	require.NoError(t, err)
	require.Equal(t, testFields, fromBorrower)

	fromLender, err := env.Decrypt(Lender, lender)
	require.NoError(t, err)
	require.Equal(t, testFields, fromLender)
}

func TestHubSeesOnlyCiphertext(t *testing.T) {
	env, _, _ := newTestEnvelope(t)

	for name, wire := range env.Fields {
		parts := strings.SplitN(wire, "$", 2)
		require.Len(t, parts, 2, "field %s", name)

		salt, err := hex.DecodeString(parts[0])
		require.NoError(t, err)
		require.Len(t, salt, 32)

		ciphertext, err := hex.DecodeString(parts[1])
		require.NoError(t, err)
		require.NotContains(t, string(ciphertext), testFields[name])
		require.NotEqual(t, testFields[name], wire)
	}
}

func TestWrongKeyFails(t *testing.T) {
	env, _, lender := newTestEnvelope(t)

	// The lender's key cannot unwrap the borrower's copy.
	_, err := env.Decrypt(Borrower, lender)
	require.Error(t, err)

	stranger, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	_, err = env.Decrypt(Lender, stranger)
	require.Error(t, err)
}

func TestPerFieldSalts(t *testing.T) {
	borrower, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	lender, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	env, err := New(uuid.New(), map[string]string{
		"field_a": "same value",
		"field_b": "same value",
	}, borrower.PubKey(), lender.PubKey())
	require.NoError(t, err)

	// Identical plaintexts must not yield identical wire strings.
	require.NotEqual(t, env.Fields["field_a"], env.Fields["field_b"])
}

func TestNewRequiresFields(t *testing.T) {
	borrower, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	lender, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	_, err = New(uuid.New(), nil, borrower.PubKey(), lender.PubKey())
	require.Error(t, err)
}

func TestContentHash(t *testing.T) {
	env, _, _ := newTestEnvelope(t)

	a := env.ContentHash()
	b := env.ContentHash()
	require.Equal(t, a, b)

	mutated := *env
	mutated.Fields = make(map[string]string, len(env.Fields))
	for k, v := range env.Fields {
		mutated.Fields[k] = v
	}
	mutated.Fields["iban"] = env.Fields["swift_code"]
	require.NotEqual(t, a, mutated.ContentHash())
}
