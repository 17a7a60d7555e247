package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// Policy carries the current password-hashing cost parameters and the sizing
// of generated secrets. Every user record stores the (Iterations, KeySize)
// pair it was hashed with, so a Policy change only affects new hashes and
// rehash-on-login.
type Policy struct {
	Iterations  int
	KeySize     int
	SaltLength  int
	TokenLength int
}

// DerivePasswordHash runs PBKDF2-HMAC-SHA256 over the password with the given
// salt and cost parameters. Deterministic: identical inputs always produce the
// identical base64 hash.
func (p *Policy) DerivePasswordHash(password, salt string, iterations, keySize int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, keySize, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

// GenerateSalt returns a random base64 salt of the configured length.
func (p *Policy) GenerateSalt() (string, error) {
	return randomString(p.SaltLength)
}

// GenerateOpaqueToken returns a random base64 bearer credential. At the
// configured length the collision probability is negligible for the lifetime
// of the system.
func (p *Policy) GenerateOpaqueToken() (string, error) {
	return randomString(p.TokenLength)
}

// Digest is the fast one-way transform used to obscure tokens at rest. Tokens
// are already high-entropy, so a single SHA-256 pass is enough; passwords must
// never go through this, they use DerivePasswordHash.
func (p *Policy) Digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
