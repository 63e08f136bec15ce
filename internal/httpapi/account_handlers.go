package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"tessera.dev/internal/auth"
)

type listAccountsResponse struct {
	Items []*auth.Account `json:"items"`
	Count int             `json:"count"`
}

type updateAccountRequest struct {
	DisplayName *string `json:"display_name"`
	Role        *string `json:"role"`
	Active      *bool   `json:"active"`
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tc, ok := auth.TenantFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset := 0
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		v, convErr := strconv.Atoi(raw)
		if convErr != nil || v < 0 {
			writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = v
	}

	accounts, err := a.svc.ListAccounts(r.Context(), tc, auth.AccountFilter{
		OrgID:  q.Get("org_id"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listAccountsResponse{
		Items: accounts,
		Count: len(accounts),
	})
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/accounts/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	tc, ok := auth.TenantFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		acct, err := a.svc.GetAccount(r.Context(), tc, id)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	case http.MethodPut:
		a.updateAccount(w, r, tc, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) updateAccount(w http.ResponseWriter, r *http.Request, tc auth.TenantContext, id string) {
	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	patch := auth.AccountPatch{
		DisplayName: req.DisplayName,
		Active:      req.Active,
	}
	if req.Role != nil {
		role := auth.Role(strings.ToLower(strings.TrimSpace(*req.Role)))
		patch.Role = &role
	}

	acct, err := a.svc.UpdateAccount(r.Context(), tc, id, patch)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	a.audit(r.Context(), "account.update", "account", acct.ID, map[string]string{
		"fields": patchFields(req),
	})
	// Deactivation drops every live session for the account.
	if req.Active != nil && !*req.Active {
		a.audit(r.Context(), "account.tokens.revoke", "account", acct.ID, map[string]string{
			"reason": "deactivated",
		})
	}
	writeJSON(w, http.StatusOK, acct)
}

func patchFields(req updateAccountRequest) string {
	var fields []string
	if req.DisplayName != nil {
		fields = append(fields, "display_name")
	}
	if req.Role != nil {
		fields = append(fields, "role")
	}
	if req.Active != nil {
		fields = append(fields, "active")
	}
	return strings.Join(fields, ",")
}
