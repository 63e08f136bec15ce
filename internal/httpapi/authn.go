package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tessera.dev/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	wwwAuthenticate = `Bearer realm="tessera"`
)

// publicPaths skip bearer authentication. Logout stays public so a
// client holding only a refresh token can still revoke it.
var publicPaths = []string{
	"/register",
	"/login",
	"/refresh",
	"/logout",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/openapi.yaml",
	"/",
}

// withAuth resolves the bearer token into an account and stashes the
// tenant context for downstream handlers. Every resolution hits the
// token store, so revocation takes effect on the next request.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.svc == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", wwwAuthenticate)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		acct, err := a.svc.ResolveAccess(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnknownToken) || errors.Is(err, auth.ErrExpiredToken) {
				w.Header().Set("WWW-Authenticate", wwwAuthenticate)
			}
			handleAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithTenant(r.Context(), auth.NewTenantContext(acct))
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a handler on the caller holding at least the given
// role. It runs after withAuth; the store-level checks still apply, this
// just rejects early with a uniform response.
func RequireRole(required auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := auth.TenantFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", wwwAuthenticate)
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if err := tc.Authorize(required); err != nil {
				w.Header().Set("WWW-Authenticate", wwwAuthenticate)
				writeError(w, r, http.StatusForbidden, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
