package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecretDeterministic(t *testing.T) {
	a := HashSecret("some-high-entropy-value")
	b := HashSecret("some-high-entropy-value")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // sha256 hex

	assert.NotEqual(t, a, HashSecret("some-other-value"))
}

func TestGenerateAPISecret(t *testing.T) {
	plaintext, digest, err := GenerateAPISecret()
	require.NoError(t, err)
	assert.NotEmpty(t, plaintext)
	assert.Equal(t, HashSecret(plaintext), digest)

	// Two calls never collide
	plaintext2, _, err := GenerateAPISecret()
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, plaintext2)
}

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, len(key) > 10)
	assert.Equal(t, "ak_", key[:3])
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, VerifyPassword("correct horse battery staple", hash))
	assert.False(t, VerifyPassword("wrong password", hash))

	// bcrypt salts: same input, different hashes
	hash2, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
}

func TestVerifyPasswordEmptyHash(t *testing.T) {
	// Google-only accounts have no hash; nothing may verify against them
	assert.False(t, VerifyPassword("anything", ""))
	assert.False(t, VerifyPassword("", ""))
}

func TestCryptoRandomHex(t *testing.T) {
	s, err := CryptoRandomHex(64)
	require.NoError(t, err)
	assert.Len(t, s, 64)

	odd, err := CryptoRandomHex(7)
	require.NoError(t, err)
	assert.Len(t, odd, 7)
}
