package devicesecret

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Device secrets are stored as "s1:" + hex(HMAC-SHA256(key=deviceID,
// msg=secret)). Keying the HMAC by device id makes two devices' stored
// hashes incomparable even if the same secret is reused, without a
// separately stored salt.
const storedPrefix = "s1:"

const secretBytes = 16

// Generate returns a new random plaintext secret, hex-encoded. The caller
// hands it out exactly once; only the keyed hash is ever persisted.
func Generate() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Hash derives the stored form of a secret for a device.
func Hash(secret, deviceID string) string {
	mac := hmac.New(sha256.New, []byte(deviceID))
	mac.Write([]byte(secret))
	return storedPrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the keyed hash from the presented secret and compares
// it against the stored hash in constant time. Malformed stored hashes
// verify as false.
func Verify(secret, deviceID, storedHash string) bool {
	if !strings.HasPrefix(storedHash, storedPrefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(storedHash, storedPrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(deviceID))
	mac.Write([]byte(secret))
	return hmac.Equal(mac.Sum(nil), want)
}
