// Package remote is a thin HTTP client for the tessera API, used by
// smoke tooling and service-to-service callers.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tessera.dev/internal/auth"
)

// Client talks to a running tessera-api instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient swaps the underlying transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session is the login/refresh payload.
type Session struct {
	auth.TokenPair
	Account *auth.Account `json:"account"`
}

type RegisterParams struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
	OrgID       string `json:"org_id"`
	Role        string `json:"role,omitempty"`
}

func (c *Client) Register(ctx context.Context, params RegisterParams) (*auth.Account, error) {
	var acct auth.Account
	if err := c.do(ctx, http.MethodPost, "/register", params, "", &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/login", body, "", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/refresh", body, "", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Logout revokes the given tokens; either may be empty.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	body := map[string]string{}
	if refreshToken != "" {
		body["refresh_token"] = refreshToken
	}
	return c.do(ctx, http.MethodPost, "/logout", body, accessToken, nil)
}

func (c *Client) Me(ctx context.Context, accessToken string) (*auth.Account, error) {
	var acct auth.Account
	if err := c.do(ctx, http.MethodGet, "/me", nil, accessToken, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// APIError is a non-2xx response decoded from the error envelope. It
// unwraps to the matching auth sentinel so callers can errors.Is.
type APIError struct {
	Status    int
	Message   string
	RequestID string

	mapped error
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api: %s (status %d, request %s)", e.Message, e.Status, e.RequestID)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error { return e.mapped }

// Helpers -----------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
	}
	var envelope struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope); err == nil && envelope.Error != "" {
		apiErr.Message = envelope.Error
		apiErr.RequestID = envelope.RequestID
	}
	apiErr.mapped = mapAuthError(apiErr.Status, apiErr.Message)
	return apiErr
}

// mapAuthError folds an HTTP rejection back into the auth sentinel that
// produced it, as far as the wire lets us tell.
func mapAuthError(status int, message string) error {
	switch status {
	case http.StatusUnauthorized:
		if strings.Contains(message, "token") {
			return auth.ErrUnknownToken
		}
		return auth.ErrInvalidCredentials
	case http.StatusForbidden:
		switch {
		case strings.Contains(message, "inactive"):
			return auth.ErrInactiveAccount
		case strings.Contains(message, "role"):
			return auth.ErrInsufficientRole
		default:
			return auth.ErrCrossTenant
		}
	case http.StatusNotFound:
		return auth.ErrNotFound
	case http.StatusConflict:
		return auth.ErrConflict
	case http.StatusBadRequest:
		return auth.ErrInvalidInput
	}
	return nil
}

// WithTimeout returns a context with a default timeout useful for CLI tools.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(parent, d)
}
