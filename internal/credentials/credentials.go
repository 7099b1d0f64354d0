// Package credentials implements the two hashing regimes of the platform:
// deterministic sha256 digests for machine-generated API secrets (required by
// the lookup-by-digest query) and salted bcrypt for every human-chosen
// password. The deterministic scheme must never be applied to passwords.
package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const (
	// apiSecretBytes is the entropy of generated API secrets. Determinstic
	// hashing is only acceptable because this value is never user-chosen.
	apiSecretBytes = 48

	// PasswordCost is the bcrypt cost factor for all password hashes
	PasswordCost = 10
)

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// CryptoRandomHex generates a random lowercase hex string of the given length
func CryptoRandomHex(length int) (string, error) {
	bytes, err := CryptoRandomBytes(int64((length + 1) / 2))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// HashSecret returns the sha256 digest of s as a lowercase hex string.
// Intended only for high-entropy machine-generated values; for such inputs a
// salt is not required, and determinism is what makes the single-query
// (api_key, api_secret_hash) lookup possible.
func HashSecret(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// GenerateAPISecret returns a fresh secret and its digest. The plaintext is
// handed to the caller exactly once and never persisted.
func GenerateAPISecret() (plaintext, digest string, err error) {
	buf, err := CryptoRandomBytes(apiSecretBytes)
	if err != nil {
		return "", "", err
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	return plaintext, HashSecret(plaintext), nil
}

// GenerateAPIKey returns a new public API key
func GenerateAPIKey() (string, error) {
	buf, err := CryptoRandomBytes(24)
	if err != nil {
		return "", err
	}
	return "ak_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashPassword hashes a human-chosen password with bcrypt
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash. An empty or missing
// hash (Google-only account) short-circuits to false rather than erroring.
func VerifyPassword(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
