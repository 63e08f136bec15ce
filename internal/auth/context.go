package auth

import "context"

type tenantContextKey struct{}
type tokenContextKey struct{}

// ContextWithTenant attaches the authenticated tenant view to the context.
func ContextWithTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, &tc)
}

// TenantFromContext extracts the tenant view set by the authentication layer.
func TenantFromContext(ctx context.Context) (TenantContext, bool) {
	if ctx == nil {
		return TenantContext{}, false
	}
	v, ok := ctx.Value(tenantContextKey{}).(*TenantContext)
	if !ok || v == nil || v.Account == nil {
		return TenantContext{}, false
	}
	return *v, true
}

// AccountIDFromContext returns the id of the authenticated account, if any.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	tc, ok := TenantFromContext(ctx)
	if !ok {
		return "", false
	}
	return tc.Account.ID, true
}

// ContextWithToken stores the raw bearer token inside the context so logout
// can revoke the very token it was called with.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
