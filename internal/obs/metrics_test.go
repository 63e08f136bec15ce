package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                    "/",
		"/metrics":            "/metrics",
		"/login":              "/login",
		"/accounts":           "/accounts",
		"/accounts?limit=10":  "/accounts",
		"/accounts/abc":       "/accounts/:id",
		"/accounts/abc?x=1":   "/accounts/:id",
		"/accounts/abc/extra": "/accounts/abc/extra",
		"/me":                 "/me",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
