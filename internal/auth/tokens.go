package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenSecretBytes is the entropy carried by every issued token.
const tokenSecretBytes = 32

// NewTokenSecret mints an opaque raw token: 256 random bits in URL-safe
// base64, with no embedded structure or claims.
func NewTokenSecret() (string, error) {
	buf := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenDigest maps a raw token to its stored digest. Lookups key on the
// digest, so the raw value never has to be persisted.
func TokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
