package auth

import (
	"context"
	"testing"
)

func TestTenantContextRoundTrip(t *testing.T) {
	acct := &Account{ID: "acc-7", Email: "alice@example.com", Role: RoleMember, OrgID: "acme", Active: true}

	ctx := ContextWithTenant(context.Background(), NewTenantContext(acct))

	tc, ok := TenantFromContext(ctx)
	if !ok {
		t.Fatal("expected tenant in context")
	}
	if tc.Account.ID != "acc-7" || tc.OrgID != "acme" {
		t.Fatalf("unexpected tenant: %+v", tc)
	}

	id, ok := AccountIDFromContext(ctx)
	if !ok || id != "acc-7" {
		t.Fatalf("unexpected account id: %q ok=%v", id, ok)
	}
}

func TestTenantFromContextMissing(t *testing.T) {
	if _, ok := TenantFromContext(context.Background()); ok {
		t.Fatal("expected no tenant in empty context")
	}
	// A tenant without an account is not an authenticated caller.
	ctx := ContextWithTenant(context.Background(), TenantContext{})
	if _, ok := TenantFromContext(ctx); ok {
		t.Fatal("expected accountless tenant to be treated as absent")
	}
	if _, ok := AccountIDFromContext(context.Background()); ok {
		t.Fatal("expected no account id")
	}
}

func TestTokenContextRoundTrip(t *testing.T) {
	ctx := ContextWithToken(context.Background(), "raw-token")
	if token, ok := TokenFromContext(ctx); !ok || token != "raw-token" {
		t.Fatalf("unexpected token: %q ok=%v", token, ok)
	}

	// Empty tokens are never stored.
	ctx = ContextWithToken(context.Background(), "")
	if _, ok := TokenFromContext(ctx); ok {
		t.Fatal("expected empty token to be dropped")
	}
}
