package password

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/scrypt"
)

// Two stored-hash formats coexist. New hashes are bcrypt; hashes carrying
// the legacy "s1:" prefix are scrypt with an explicit salt, kept read-only
// for accounts that predate the migration.
const legacyPrefix = "s1:"

// scrypt parameters for the legacy format.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

const bcryptCost = 10

// Hash derives a stored hash for a new password. Always bcrypt; the legacy
// format is never written.
func Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify checks a plaintext password against a stored hash of either
// format, dispatching on the prefix. Malformed stored hashes verify as
// false; this never returns an error or panics.
func Verify(password, storedHash string) bool {
	if strings.HasPrefix(storedHash, legacyPrefix) {
		return verifyLegacy(password, strings.TrimPrefix(storedHash, legacyPrefix))
	}

	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
	return err == nil
}

// verifyLegacy checks the salted scrypt format salt_hex:hash_hex.
func verifyLegacy(password, rest string) bool {
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return false
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil || len(want) != scryptKeyLen {
		return false
	}

	got, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(got, want) == 1
}
