package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tessera.dev/internal/auth"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	OrgID       string `json:"org_id"`
	Role        string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

// sessionResponse is the login/refresh payload: the raw token pair plus
// the account it belongs to. Raw tokens appear here and nowhere else.
type sessionResponse struct {
	auth.TokenPair
	Account *auth.Account `json:"account"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := a.svc.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		OrgID:       req.OrgID,
		Role:        auth.Role(req.Role),
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.register", "account", acct.ID, map[string]string{
		"email":  acct.Email,
		"org_id": acct.OrgID,
	})
	w.Header().Set("Location", "/accounts/"+acct.ID)
	writeJSON(w, http.StatusCreated, acct)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, acct, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.audit(r.Context(), "auth.login.denied", "account", "", map[string]string{
			"email": strings.ToLower(strings.TrimSpace(req.Email)),
		})
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.login", "account", acct.ID, map[string]string{
		"org_id": acct.OrgID,
	})
	writeJSON(w, http.StatusOK, sessionResponse{TokenPair: pair, Account: acct})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}
	pair, acct, err := a.svc.Refresh(r.Context(), raw)
	if err != nil {
		a.audit(r.Context(), "auth.refresh.denied", "session", "", nil)
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.refresh", "account", acct.ID, map[string]string{
		"org_id": acct.OrgID,
	})
	writeJSON(w, http.StatusOK, sessionResponse{TokenPair: pair, Account: acct})
}

// handleLogout revokes whatever tokens the caller presents: the bearer
// token from the Authorization header, the body fields, or both. The
// endpoint is public so a client holding only an expired access token
// can still shed its refresh token.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errBodyRequired) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var raws []string
	if bearer, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
		raws = append(raws, bearer)
	}
	for _, raw := range []string{req.AccessToken, req.RefreshToken} {
		if raw = strings.TrimSpace(raw); raw != "" {
			raws = append(raws, raw)
		}
	}
	if len(raws) == 0 {
		writeError(w, r, http.StatusBadRequest, "no tokens presented")
		return
	}

	revoked, err := a.svc.Logout(r.Context(), raws...)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.logout", "session", "", map[string]string{
		"revoked": strconv.FormatInt(revoked, 10),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	tc, ok := auth.TenantFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, tc.Account)
	case http.MethodPut:
		var req updateProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		acct, err := a.svc.UpdateProfile(r.Context(), tc.Account.ID, req.DisplayName)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.audit(r.Context(), "account.update", "account", acct.ID, map[string]string{
			"fields": "display_name",
		})
		writeJSON(w, http.StatusOK, acct)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	tc, ok := auth.TenantFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.svc.ChangePassword(r.Context(), tc.Account.ID, req.CurrentPassword, req.NewPassword); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.password.change", "account", tc.Account.ID, nil)
	w.WriteHeader(http.StatusNoContent)
}
