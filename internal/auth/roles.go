package auth

import (
	"fmt"
	"strings"
)

// Role is one of a closed, totally ordered set of account roles. A higher
// role satisfies every requirement a lower role satisfies.
type Role string

const (
	RoleMember       Role = "member"
	RoleSupportAgent Role = "support_agent"
	RoleBillingAdmin Role = "billing_admin"
	RoleOrgAdmin     Role = "org_admin"
	RoleSuperAdmin   Role = "super_admin"
)

// roleLevels fixes the dominance order. Gaps leave room for future roles
// without renumbering.
var roleLevels = map[Role]int{
	RoleMember:       10,
	RoleSupportAgent: 20,
	RoleBillingAdmin: 30,
	RoleOrgAdmin:     40,
	RoleSuperAdmin:   50,
}

// ParseRole normalizes and validates a wire-format role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	return role, nil
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Level returns the role's rank in the dominance order; unknown roles rank
// below every valid role.
func (r Role) Level() int {
	return roleLevels[r]
}

// AtLeast reports whether r dominates required.
func (r Role) AtLeast(required Role) bool {
	return r.Valid() && required.Valid() && r.Level() >= required.Level()
}
