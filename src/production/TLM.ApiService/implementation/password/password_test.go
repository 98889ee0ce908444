package password

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/scrypt"
)

// legacyHash builds an s1: stored hash the way the migrated system did.
func legacyHash(t *testing.T, password string, salt []byte) string {
	t.Helper()
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	require.NoError(t, err)
	return legacyPrefix + hex.EncodeToString(salt) + ":" + hex.EncodeToString(key)
}

func TestHashVerifyRoundTrip(t *testing.T) {
	hash, err := Hash("hunter2")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$2"), "new hashes are bcrypt")
	assert.True(t, Verify("hunter2", hash))
	assert.False(t, Verify("hunter3", hash))
}

func TestVerifyLegacyFormat(t *testing.T) {
	salt := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	hash := legacyHash(t, "hunter2", salt)

	assert.True(t, Verify("hunter2", hash))
	assert.False(t, Verify("hunter3", hash))
}

func TestVerifyMalformedHashes(t *testing.T) {
	for _, stored := range []string{
		"",
		"s1:",
		"s1:not-hex:also-not-hex",
		"s1:0102",
		"s1:0102:abcd", // wrong key length
		"plainly not a hash",
	} {
		assert.False(t, Verify("hunter2", stored), "stored %q", stored)
	}
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("hunter2")
	require.NoError(t, err)
	second, err := Hash("hunter2")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, Verify("hunter2", first))
	assert.True(t, Verify("hunter2", second))
}
