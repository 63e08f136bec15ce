package httpapi

import (
	"net/http"
	"net/url"
	"testing"
)

func TestAccountsListScopedByOrg(t *testing.T) {
	api := newTestAPI(t)
	api.register("admin@acme.example", "acme", "org_admin")
	api.register("alice@acme.example", "acme", "member")
	api.register("admin@globex.example", "globex", "org_admin")

	admin := api.login("admin@acme.example", "Sup3rSecret!")

	resp := api.get("/accounts", nil, bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected list status: %d", resp.StatusCode)
	}
	listing := decode[listAccountsResponse](t, resp)
	if listing.Count != 2 {
		t.Fatalf("expected 2 acme accounts, got %d", listing.Count)
	}
	for _, acct := range listing.Items {
		if acct.OrgID != "acme" {
			t.Fatalf("foreign account leaked into listing: %s (%s)", acct.Email, acct.OrgID)
		}
	}

	// An explicit foreign org filter is pinned back to the caller's org.
	resp = api.get("/accounts", url.Values{"org_id": []string{"globex"}}, bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected filtered list status: %d", resp.StatusCode)
	}
	filtered := decode[listAccountsResponse](t, resp)
	if filtered.Count != 2 {
		t.Fatalf("org filter must be pinned to caller org, got %d items", filtered.Count)
	}

	// Plain members never reach the listing.
	member := api.login("alice@acme.example", "Sup3rSecret!")
	resp = api.get("/accounts", nil, bearerHeader(member.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", resp.StatusCode)
	}
}

func TestAccountResourceOwnership(t *testing.T) {
	api := newTestAPI(t)
	api.register("admin@acme.example", "acme", "org_admin")
	alice := api.register("alice@acme.example", "acme", "member")
	outsider := api.register("admin@globex.example", "globex", "org_admin")

	admin := api.login("admin@acme.example", "Sup3rSecret!")

	resp := api.get("/accounts/"+alice["id"].(string), nil, bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected get status: %d", resp.StatusCode)
	}
	got := decode[map[string]any](t, resp)
	if got["email"] != "alice@acme.example" {
		t.Fatalf("unexpected account: %v", got["email"])
	}

	resp = api.get("/accounts/"+outsider["id"].(string), nil, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 across orgs, got %d", resp.StatusCode)
	}

	resp = api.get("/accounts/no-such-id", nil, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", resp.StatusCode)
	}
}

func TestAccountUpdateAndDeactivation(t *testing.T) {
	api := newTestAPI(t)
	api.register("admin@acme.example", "acme", "org_admin")
	alice := api.register("alice@acme.example", "acme", "member")
	aliceID := alice["id"].(string)

	admin := api.login("admin@acme.example", "Sup3rSecret!")
	aliceSession := api.login("alice@acme.example", "Sup3rSecret!")

	resp := api.put("/accounts/"+aliceID, map[string]any{
		"display_name": "Alice Senior",
		"role":         "support_agent",
	}, bearerHeader(admin.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected update status: %d", resp.StatusCode)
	}
	updated := decode[map[string]any](t, resp)
	if updated["role"] != "support_agent" {
		t.Fatalf("unexpected role after update: %v", updated["role"])
	}

	// Promoting above the caller's own level is rejected.
	resp = api.put("/accounts/"+aliceID, map[string]any{
		"role": "super_admin",
	}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for over-promotion, got %d", resp.StatusCode)
	}

	// Deactivation revokes every live session.
	resp = api.put("/accounts/"+aliceID, map[string]any{
		"active": false,
	}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected deactivate status: %d", resp.StatusCode)
	}

	resp = api.get("/me", nil, bearerHeader(aliceSession.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deactivated account session should be dead, got %d", resp.StatusCode)
	}

	resp = api.post("/login", map[string]any{
		"email":    "alice@acme.example",
		"password": "Sup3rSecret!",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for inactive login, got %d", resp.StatusCode)
	}
}

func TestAccountsPaginationValidation(t *testing.T) {
	api := newTestAPI(t)
	api.register("admin@acme.example", "acme", "org_admin")
	admin := api.login("admin@acme.example", "Sup3rSecret!")

	resp := api.get("/accounts", url.Values{"limit": []string{"abc"}}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}

	resp = api.get("/accounts", url.Values{"offset": []string{"-1"}}, bearerHeader(admin.AccessToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad offset, got %d", resp.StatusCode)
	}
}
