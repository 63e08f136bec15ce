package auth

import (
	"fmt"
	"strings"
	"time"
)

// Account is an authenticated identity belonging to one organization.
// SecretDigest never leaves the service; JSON encoding skips it.
type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	SecretDigest string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	Role         Role       `json:"role"`
	OrgID        string     `json:"org_id"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// TokenKind distinguishes the two session token flavors.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// SessionToken is the persisted form of an issued token: only the digest of
// the raw secret is stored, so a leaked table cannot be replayed.
type SessionToken struct {
	ID          string
	AccountID   string
	Kind        TokenKind
	TokenDigest string
	PairID      string
	CreatedAt   time.Time
	ExpiresAt   time.Time // zero means the token never expires
}

// Expired reports whether the token's expiry has passed at the given instant.
func (t *SessionToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// TokenPair carries freshly minted raw tokens back to the caller. This is
// the only moment the raw values exist outside the client.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// RotationScope selects how far a refresh rotation revokes sibling tokens.
type RotationScope string

const (
	// RotationScopeAccount revokes every live token of the account.
	RotationScopeAccount RotationScope = "account"
	// RotationScopePair revokes only the tokens minted together with the
	// consumed refresh token.
	RotationScopePair RotationScope = "pair"
)

// ParseRotationScope validates a configured rotation scope value.
func ParseRotationScope(raw string) (RotationScope, error) {
	switch RotationScope(strings.ToLower(strings.TrimSpace(raw))) {
	case RotationScopeAccount:
		return RotationScopeAccount, nil
	case RotationScopePair:
		return RotationScopePair, nil
	default:
		return "", fmt.Errorf("%w: unknown rotation scope %q", ErrInvalidInput, raw)
	}
}

// AccountFilter narrows account listings.
type AccountFilter struct {
	OrgID  string
	Limit  int
	Offset int
}

// AccountUpdate is the store-level partial update; nil fields keep their
// current value.
type AccountUpdate struct {
	DisplayName  *string
	Role         *Role
	Active       *bool
	SecretDigest *string
	LastLogin    *time.Time
}

// AccountPatch is the admin-editable subset of an account.
type AccountPatch struct {
	DisplayName *string
	Role        *Role
	Active      *bool
}
