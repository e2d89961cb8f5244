package keygen

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateRSAKeyPair(t *testing.T) {
	t.Parallel()

	pair, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	assert.Contains(t, string(pair.PrivateKey), "RSA PRIVATE KEY")

	pub, _, _, _, err := ssh.ParseAuthorizedKey(pair.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "ssh-rsa", pub.Type())

	assert.True(t, strings.HasPrefix(pair.AuthorizedKey(), "ssh-rsa "))
	assert.False(t, strings.HasSuffix(pair.AuthorizedKey(), "\n"))
}

func TestWriteFiles(t *testing.T) {
	t.Parallel()

	pair, err := GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privatePath, publicPath, err := pair.WriteFiles(dir, "id_rsa")
	require.NoError(t, err)

	info, err := os.Stat(privatePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pubData, err := os.ReadFile(publicPath)
	require.NoError(t, err)
	assert.Equal(t, pair.PublicKey, pubData)
}
