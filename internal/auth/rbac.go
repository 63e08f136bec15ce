package auth

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Authorize checks an account's role against the required role. Dominance is
// total: any role at or above the requirement passes.
func Authorize(acct *Account, required Role) error {
	if acct == nil {
		return ErrInsufficientRole
	}
	if !required.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, string(required))
	}
	if !acct.Role.AtLeast(required) {
		return fmt.Errorf("%w: requires %s or higher", ErrInsufficientRole, required)
	}
	return nil
}

// TenantContext is the per-request view of the authenticated account. It
// narrows reads and writes to the account's organization; only the top role
// sees across organizations.
type TenantContext struct {
	Account *Account
	OrgID   string
}

// NewTenantContext derives the tenant view for an authenticated account.
func NewTenantContext(acct *Account) TenantContext {
	tc := TenantContext{Account: acct}
	if acct != nil {
		tc.OrgID = acct.OrgID
	}
	return tc
}

// Authorize checks the tenant's role against required.
func (tc TenantContext) Authorize(required Role) error {
	return Authorize(tc.Account, required)
}

// SuperAdmin reports whether the tenant bypasses organization scoping.
func (tc TenantContext) SuperAdmin() bool {
	return tc.Account != nil && tc.Account.Role == RoleSuperAdmin
}

// ScopeFilter pins a list query to the tenant's organization unless the
// tenant holds the top role.
func (tc TenantContext) ScopeFilter(f AccountFilter) AccountFilter {
	if tc.SuperAdmin() {
		return f
	}
	f.OrgID = tc.OrgID
	return f
}

// VerifyResourceOwnership guards point reads that bypass list scoping. An
// empty resource organization means the resource is unscoped.
func (tc TenantContext) VerifyResourceOwnership(resourceOrgID string) error {
	if resourceOrgID == "" || tc.SuperAdmin() {
		return nil
	}
	if tc.OrgID != resourceOrgID {
		return fmt.Errorf("%w: access denied", ErrCrossTenant)
	}
	return nil
}

// ListAccounts returns the accounts visible to the tenant, oldest first.
func (s *Service) ListAccounts(ctx context.Context, tc TenantContext, f AccountFilter) ([]*Account, error) {
	if err := tc.Authorize(RoleOrgAdmin); err != nil {
		return nil, err
	}
	f = tc.ScopeFilter(f)
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.Accounts().List(ctx, f)
}

// GetAccount fetches one account, enforcing tenant ownership.
func (s *Service) GetAccount(ctx context.Context, tc TenantContext, id string) (*Account, error) {
	if err := tc.Authorize(RoleOrgAdmin); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	acct, err := s.store.Accounts().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tc.VerifyResourceOwnership(acct.OrgID); err != nil {
		return nil, err
	}
	return acct, nil
}

// UpdateAccount applies an admin edit inside the tenant boundary. A role may
// not be granted above the caller's own; deactivation revokes the target's
// sessions immediately.
func (s *Service) UpdateAccount(ctx context.Context, tc TenantContext, id string, patch AccountPatch) (*Account, error) {
	if err := tc.Authorize(RoleOrgAdmin); err != nil {
		return nil, err
	}
	current, err := s.store.Accounts().Find(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if err := tc.VerifyResourceOwnership(current.OrgID); err != nil {
		return nil, err
	}

	upd := AccountUpdate{Active: patch.Active}
	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display_name cannot be empty", ErrInvalidInput)
		}
		upd.DisplayName = &name
	}
	if patch.Role != nil {
		role := *patch.Role
		if !role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, string(role))
		}
		if tc.Account != nil && role.Level() > tc.Account.Role.Level() {
			return nil, fmt.Errorf("%w: cannot grant a role above your own", ErrInsufficientRole)
		}
		upd.Role = &role
	}

	updated, err := s.store.Accounts().Update(ctx, current.ID, upd)
	if err != nil {
		return nil, err
	}
	if patch.Active != nil && !*patch.Active {
		if _, err := s.store.Tokens().DeleteByAccount(ctx, current.ID); err != nil {
			return nil, err
		}
	}
	return updated, nil
}
