package ore_protocol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallet_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "id.json")
	w := NewWallet()
	require.NoError(t, SaveWalletToFile(w, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadWalletFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey(), loaded.PublicKey())
}

func TestParseWallet_Rejects(t *testing.T) {
	_, err := ParseWallet([]byte(`[1,2,3]`))
	assert.ErrorContains(t, err, "invalid private key length")

	_, err = ParseWallet([]byte(`not json`))
	assert.Error(t, err)
}
