package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys", "fallback.json")
	require.NoError(t, SaveToKeystore(path, key, "passphrase"))
	require.FileExists(t, path)

	loaded, err := LoadFromKeystore(path, "passphrase")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}

func TestSaveToKeystoreValidation(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.Error(t, SaveToKeystore("", key, "pw"))
	require.Error(t, SaveToKeystore(filepath.Join(t.TempDir(), "k.json"), nil, "pw"))
}
