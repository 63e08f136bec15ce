package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// argon2id parameters. They are embedded in every digest, so verification
// keeps working after the defaults change.
const (
	argonMemory      = 64 * 1024
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

// HashPassword derives an argon2id digest with a fresh random salt, encoded
// in the PHC string format.
func HashPassword(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether secret matches the stored digest. Malformed
// or foreign digests fail verification; the function never panics. Digests
// produced by the earlier bcrypt scheme still verify.
func VerifyPassword(digest, secret string) bool {
	if digest == "" || secret == "" {
		return false
	}
	if isBcryptDigest(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
	}
	params, salt, key, err := parseArgonDigest(digest)
	if err != nil {
		return false
	}
	derived := argon2.IDKey([]byte(secret), salt, params.iterations, params.memory, params.parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(derived, key) == 1
}

// NeedsRehash reports whether the digest should be regenerated with the
// current algorithm and parameters. Legacy bcrypt digests always qualify.
func NeedsRehash(digest string) bool {
	params, _, key, err := parseArgonDigest(digest)
	if err != nil {
		return true
	}
	return params.memory != argonMemory ||
		params.iterations != argonIterations ||
		params.parallelism != argonParallelism ||
		len(key) != argonKeyLength
}

type argonDigestParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
}

func parseArgonDigest(digest string) (argonDigestParams, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonDigestParams{}, nil, nil, fmt.Errorf("%w: unsupported digest format", ErrInvalidInput)
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonDigestParams{}, nil, nil, fmt.Errorf("%w: unsupported digest version", ErrInvalidInput)
	}
	var p argonDigestParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return argonDigestParams{}, nil, nil, fmt.Errorf("%w: malformed digest parameters", ErrInvalidInput)
	}
	if p.memory == 0 || p.iterations == 0 || p.parallelism == 0 {
		return argonDigestParams{}, nil, nil, fmt.Errorf("%w: malformed digest parameters", ErrInvalidInput)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return argonDigestParams{}, nil, nil, fmt.Errorf("%w: malformed digest salt", ErrInvalidInput)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argonDigestParams{}, nil, nil, fmt.Errorf("%w: malformed digest key", ErrInvalidInput)
	}
	return p, salt, key, nil
}

func isBcryptDigest(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

// PasswordPolicy sets the minimum strength for freshly chosen secrets.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy returns the platform default of eight characters.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8}
}

// Validate checks a candidate secret. Each rule has its own message so
// clients can show actionable feedback.
func (p PasswordPolicy) Validate(secret string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = 8
	}
	if len(secret) < minLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minLen)
	}
	var upper, lower, digit bool
	for _, r := range secret {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return fmt.Errorf("%w: password must contain an uppercase letter", ErrInvalidInput)
	}
	if !lower {
		return fmt.Errorf("%w: password must contain a lowercase letter", ErrInvalidInput)
	}
	if !digit {
		return fmt.Errorf("%w: password must contain a digit", ErrInvalidInput)
	}
	return nil
}
