package auth

import (
	"context"
	"time"
)

// Store is the persistence boundary for accounts and session tokens.
// Implementations: InMemory in this package and the Postgres store in
// internal/store/pg. Every method is safe for concurrent use.
type Store interface {
	Accounts() AccountStore
	Tokens() TokenStore

	// RotateRefresh consumes the refresh token identified by digest and
	// installs the pre-minted replacement pair, all inside one transaction so
	// that a concurrently replayed token observes either the old state or
	// nothing at all:
	//   - no refresh row with the digest → ErrUnknownToken
	//   - row found but expired → the deletion stands, ErrExpiredToken
	//   - owning account inactive → ErrInactiveAccount
	// Before the new pair is inserted, sibling tokens are revoked according
	// to scope. The AccountID of both new rows is filled in from the consumed
	// row; the owning account is returned on success.
	RotateRefresh(ctx context.Context, digest string, now time.Time, scope RotationScope, access, refresh *SessionToken) (*Account, error)
}

// AccountStore persists accounts. Create reports ErrConflict for duplicate
// emails; lookups report ErrNotFound.
type AccountStore interface {
	Create(ctx context.Context, acct *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context, f AccountFilter) ([]*Account, error)
	Update(ctx context.Context, id string, upd AccountUpdate) (*Account, error)
}

// TokenStore persists session tokens keyed by digest. The digest column is
// unique; FindByDigest additionally filters on kind so an access token can
// never stand in for a refresh token.
type TokenStore interface {
	Insert(ctx context.Context, token *SessionToken) error
	FindByDigest(ctx context.Context, digest string, kind TokenKind) (*SessionToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByDigest(ctx context.Context, digest string) (int64, error)
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
}
