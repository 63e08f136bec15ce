// Package auth implements accounts, opaque session tokens and role checks.
//
// Tokens carry no claims: the raw value handed to the client is 256 random
// bits, and everything the service knows about a session lives in the token
// store. Verification is therefore a single digest lookup, and revocation is
// a row deletion that takes effect immediately.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tessera.dev/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Service owns the account lifecycle and the session token trust boundary.
type Service struct {
	store Store
	now   func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
	rotation   RotationScope
	policy     PasswordPolicy
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("auth: access ttl must be positive")
		}
		s.accessTTL = ttl
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("auth: refresh ttl must be positive")
		}
		s.refreshTTL = ttl
		return nil
	}
}

// WithRotationScope configures how far a refresh rotation revokes siblings.
func WithRotationScope(scope RotationScope) ServiceOption {
	return func(s *Service) error {
		parsed, err := ParseRotationScope(string(scope))
		if err != nil {
			return err
		}
		s.rotation = parsed
		return nil
	}
}

// WithPasswordPolicy overrides the password strength policy.
func WithPasswordPolicy(policy PasswordPolicy) ServiceOption {
	return func(s *Service) error {
		if policy.MinLength <= 0 {
			return errors.New("auth: password policy minimum length must be positive")
		}
		s.policy = policy
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		rotation:   RotationScopeAccount,
		policy:     DefaultPasswordPolicy(),
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	OrgID       string
	Role        Role
}

// Register creates an active account. The password is policy-checked and
// stored only as an argon2id digest; duplicate emails surface as ErrConflict.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	orgID := strings.TrimSpace(in.OrgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: org_id is required", ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = RoleMember
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, string(in.Role))
	}
	if err := s.policy.Validate(in.Password); err != nil {
		return nil, err
	}
	digest, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	acct := &Account{
		ID:           ids.New(),
		Email:        email,
		SecretDigest: digest,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Role:         role,
		OrgID:        orgID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Accounts().Create(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// Login authenticates the credentials and issues a fresh token pair. Wrong
// email and wrong password are indistinguishable to the caller; only a
// deactivated account is reported separately.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, *Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	acct, err := s.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		return TokenPair{}, nil, err
	}
	if !VerifyPassword(acct.SecretDigest, password) {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if !acct.Active {
		return TokenPair{}, nil, ErrInactiveAccount
	}

	now := s.now().UTC()
	upd := AccountUpdate{LastLogin: &now}
	// Transparent upgrade of digests minted by older schemes or parameters.
	if NeedsRehash(acct.SecretDigest) {
		if digest, err := HashPassword(password); err == nil {
			upd.SecretDigest = &digest
		}
	}
	if updated, err := s.store.Accounts().Update(ctx, acct.ID, upd); err == nil {
		acct = updated
	}

	pair, err := s.mintPair(ctx, acct.ID, now)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, acct, nil
}

// ResolveAccess validates a raw access token and returns the owning account.
// This is the trust boundary every authenticated request passes through. A
// live token is never mutated; an expired one is removed before the caller
// sees the rejection.
func (s *Service) ResolveAccess(ctx context.Context, raw string) (*Account, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrUnknownToken
	}
	token, err := s.store.Tokens().FindByDigest(ctx, TokenDigest(raw), TokenKindAccess)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}
	if token.Expired(s.now().UTC()) {
		if err := s.store.Tokens().Delete(ctx, token.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, ErrExpiredToken
	}
	acct, err := s.store.Accounts().Find(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}
	if !acct.Active {
		return nil, ErrInactiveAccount
	}
	return acct, nil
}

// Refresh exchanges a live refresh token for a new pair. The presented token
// is consumed inside one store transaction, so a replay — sequential or
// concurrent — finds no row and gets ErrUnknownToken.
func (s *Service) Refresh(ctx context.Context, raw string) (TokenPair, *Account, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, nil, ErrUnknownToken
	}
	now := s.now().UTC()
	pairID := ids.New()
	access, rawAccess, err := s.mintToken("", pairID, TokenKindAccess, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, nil, err
	}
	refresh, rawRefresh, err := s.mintToken("", pairID, TokenKindRefresh, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, nil, err
	}
	acct, err := s.store.RotateRefresh(ctx, TokenDigest(raw), now, s.rotation, access, refresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return TokenPair{
		AccessToken:      rawAccess,
		RefreshToken:     rawRefresh,
		TokenType:        "bearer",
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, acct, nil
}

// Logout revokes every presented raw token. Tokens that never existed or are
// already gone are skipped; the count of removed rows is returned.
func (s *Service) Logout(ctx context.Context, raws ...string) (int64, error) {
	seen := make(map[string]struct{}, len(raws))
	var revoked int64
	for _, raw := range raws {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		digest := TokenDigest(raw)
		if _, dup := seen[digest]; dup {
			continue
		}
		seen[digest] = struct{}{}
		n, err := s.store.Tokens().DeleteByDigest(ctx, digest)
		if err != nil {
			return revoked, err
		}
		revoked += n
	}
	return revoked, nil
}

// RevokeAll removes every live session token of the account.
func (s *Service) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return 0, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	return s.store.Tokens().DeleteByAccount(ctx, accountID)
}

// ChangePassword verifies the current secret, installs a policy-checked new
// one and revokes every outstanding session of the account.
func (s *Service) ChangePassword(ctx context.Context, accountID, current, next string) error {
	acct, err := s.store.Accounts().Find(ctx, accountID)
	if err != nil {
		return err
	}
	if !VerifyPassword(acct.SecretDigest, current) {
		return ErrInvalidCredentials
	}
	if err := s.policy.Validate(next); err != nil {
		return err
	}
	digest, err := HashPassword(next)
	if err != nil {
		return err
	}
	if _, err := s.store.Accounts().Update(ctx, accountID, AccountUpdate{SecretDigest: &digest}); err != nil {
		return err
	}
	_, err = s.store.Tokens().DeleteByAccount(ctx, accountID)
	return err
}

// UpdateProfile changes the account's own display name.
func (s *Service) UpdateProfile(ctx context.Context, accountID, displayName string) (*Account, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display_name is required", ErrInvalidInput)
	}
	return s.store.Accounts().Update(ctx, accountID, AccountUpdate{DisplayName: &displayName})
}

// mintPair issues and persists an access+refresh pair sharing one pair id.
func (s *Service) mintPair(ctx context.Context, accountID string, now time.Time) (TokenPair, error) {
	pairID := ids.New()
	access, rawAccess, err := s.mintToken(accountID, pairID, TokenKindAccess, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rawRefresh, err := s.mintToken(accountID, pairID, TokenKindRefresh, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Tokens().Insert(ctx, access); err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Tokens().Insert(ctx, refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      rawAccess,
		RefreshToken:     rawRefresh,
		TokenType:        "bearer",
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// mintToken builds a session token row and returns it with the raw secret.
// The digest is unique by store constraint; a collision of two 256-bit
// secrets is treated as an insert error, not a retry path.
func (s *Service) mintToken(accountID, pairID string, kind TokenKind, now time.Time, ttl time.Duration) (*SessionToken, string, error) {
	raw, err := NewTokenSecret()
	if err != nil {
		return nil, "", err
	}
	token := &SessionToken{
		ID:          ids.New(),
		AccountID:   accountID,
		Kind:        kind,
		TokenDigest: TokenDigest(raw),
		PairID:      pairID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	return token, raw, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
