package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivePasswordHash(t *testing.T) {
	policy := &Policy{Iterations: 10000, KeySize: 32, SaltLength: 16, TokenLength: 32}

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		first := policy.DerivePasswordHash("password123", "somesalt", 10000, 32)
		second := policy.DerivePasswordHash("password123", "somesalt", 10000, 32)
		assert.Equal(t, first, second)
		assert.NotEmpty(t, first)
	})

	t.Run("salt changes the hash", func(t *testing.T) {
		first := policy.DerivePasswordHash("password123", "saltone", 10000, 32)
		second := policy.DerivePasswordHash("password123", "salttwo", 10000, 32)
		assert.NotEqual(t, first, second)
	})

	t.Run("cost parameters change the hash", func(t *testing.T) {
		current := policy.DerivePasswordHash("password123", "somesalt", 10000, 32)
		older := policy.DerivePasswordHash("password123", "somesalt", 5000, 32)
		shorter := policy.DerivePasswordHash("password123", "somesalt", 10000, 16)
		assert.NotEqual(t, current, older)
		assert.NotEqual(t, current, shorter)
	})
}

func TestGenerateOpaqueToken(t *testing.T) {
	policy := &Policy{TokenLength: 32}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := policy.GenerateOpaqueToken()
		assert.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.False(t, seen[token], "token generated twice")
		seen[token] = true
	}
}

func TestGenerateSalt(t *testing.T) {
	policy := &Policy{SaltLength: 16}

	first, err := policy.GenerateSalt()
	assert.NoError(t, err)
	second, err := policy.GenerateSalt()
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestDigest(t *testing.T) {
	policy := &Policy{}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, policy.Digest("token-value"), policy.Digest("token-value"))
	})

	t.Run("distinct inputs distinct digests", func(t *testing.T) {
		assert.NotEqual(t, policy.Digest("token-one"), policy.Digest("token-two"))
	})

	t.Run("not reversible to its input length", func(t *testing.T) {
		// hex-encoded SHA-256 is always 64 characters
		assert.Len(t, policy.Digest("x"), 64)
	})
}
