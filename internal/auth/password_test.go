package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	digest, err := HashPassword("Sup3rSecret!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$") {
		t.Fatalf("unexpected digest format: %s", digest)
	}
	if !VerifyPassword(digest, "Sup3rSecret!") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(digest, "sup3rsecret!") {
		t.Fatal("wrong password accepted")
	}

	// Fresh salt per call: two digests of the same secret must differ.
	second, err := HashPassword("Sup3rSecret!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if digest == second {
		t.Fatal("expected distinct salts to yield distinct digests")
	}
}

func TestVerifyPasswordMalformedDigest(t *testing.T) {
	cases := []string{
		"",
		"not-a-digest",
		"$argon2id$v=19$m=65536,t=2,p=1$short",
		"$argon2id$v=18$m=65536,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=2,p=1$!!!$aGFzaA",
		"$argon2i$v=19$m=65536,t=2,p=1$c2FsdA$aGFzaA",
	}
	for _, digest := range cases {
		if VerifyPassword(digest, "whatever") {
			t.Fatalf("malformed digest verified: %q", digest)
		}
	}
}

func TestVerifyPasswordLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("Sup3rSecret!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt digest: %v", err)
	}
	if !VerifyPassword(string(legacy), "Sup3rSecret!") {
		t.Fatal("legacy bcrypt digest rejected")
	}
	if VerifyPassword(string(legacy), "wrong") {
		t.Fatal("legacy bcrypt digest accepted wrong password")
	}
	if !NeedsRehash(string(legacy)) {
		t.Fatal("legacy digest should need a rehash")
	}
}

func TestNeedsRehash(t *testing.T) {
	digest, err := HashPassword("Sup3rSecret!")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if NeedsRehash(digest) {
		t.Fatal("current digest should not need a rehash")
	}
	outdated := "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	if !NeedsRehash(outdated) {
		t.Fatal("outdated parameters should need a rehash")
	}
}

func TestPasswordPolicy(t *testing.T) {
	policy := DefaultPasswordPolicy()

	cases := map[string]string{
		"Sh0rt!":        "at least 8 characters",
		"lowercase1all": "uppercase",
		"UPPERCASE1ALL": "lowercase",
		"NoDigitsHere!": "digit",
	}
	for secret, wantPart := range cases {
		err := policy.Validate(secret)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", secret, err)
		}
		if !strings.Contains(err.Error(), wantPart) {
			t.Fatalf("expected message about %q, got %q", wantPart, err.Error())
		}
	}

	if err := policy.Validate("Sup3rSecret!"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}

	long := PasswordPolicy{MinLength: 16}
	if err := long.Validate("Sup3rSecret!"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected length failure under stricter policy, got %v", err)
	}
}

func TestTokenSecretProperties(t *testing.T) {
	raw, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("new token secret: %v", err)
	}
	// 32 bytes of entropy encode to 43 characters of unpadded base64url.
	if len(raw) != 43 {
		t.Fatalf("unexpected raw token length: %d", len(raw))
	}
	other, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("new token secret: %v", err)
	}
	if raw == other {
		t.Fatal("two minted tokens must differ")
	}
	if TokenDigest(raw) == TokenDigest(other) {
		t.Fatal("digests of distinct tokens must differ")
	}
	if len(TokenDigest(raw)) != 64 {
		t.Fatalf("unexpected digest length: %d", len(TokenDigest(raw)))
	}
}
