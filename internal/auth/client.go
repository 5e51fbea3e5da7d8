// Package auth wraps the hosted GoTrue authentication service. All credential
// handling, token issuance, and session storage live upstream; this package
// only shapes requests and relays tokens.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/averev/signlink/internal/observability"
)

// ErrUnauthorized indicates a missing, expired, or otherwise invalid credential.
var ErrUnauthorized = errors.New("auth: unauthorized")

// User is the auth provider's view of an account.
type User struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	UserMetadata     map[string]any    `json:"user_metadata"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at"`
	CreatedAt        time.Time         `json:"created_at"`
	LastSignInAt     *time.Time        `json:"last_sign_in_at"`
	AppMetadata      map[string]any    `json:"app_metadata,omitempty"`
	Identities       []json.RawMessage `json:"identities,omitempty"`
}

// FullName extracts the display name from user metadata, if present.
func (u *User) FullName() string {
	if u.UserMetadata == nil {
		return ""
	}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		return name
	}
	return ""
}

// Session is an issued token pair.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// Verifier resolves a bearer token to the user it belongs to. Satisfied by
// *Client; handlers depend on this slice so tests can substitute a fake.
type Verifier interface {
	User(ctx context.Context, accessToken string) (*User, error)
}

// Client talks to a GoTrue endpoint.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates an auth client. serviceKey may be empty if admin
// operations are not needed.
func NewClient(baseURL, anonKey, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SignUpParams carries registration input.
type SignUpParams struct {
	Email    string
	Password string
	FullName string
	Status   string
}

// SignUp registers a new account and returns its first session.
func (c *Client) SignUp(ctx context.Context, params SignUpParams) (*Session, error) {
	payload := map[string]any{
		"email":    params.Email,
		"password": params.Password,
		"data": map[string]any{
			"full_name": params.FullName,
			"status":    params.Status,
		},
	}

	var session Session
	if err := c.post(ctx, "/auth/v1/signup", c.anonKey, payload, &session); err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return &session, nil
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]string{"email": email, "password": password}

	var session Session
	if err := c.post(ctx, "/auth/v1/token?grant_type=password", c.anonKey, payload, &session); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return &session, nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}

	var session Session
	if err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", c.anonKey, payload, &session); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &session, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// User resolves a bearer token to its account. Invalid or expired tokens
// yield ErrUnauthorized.
func (c *Client) User(ctx context.Context, accessToken string) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	var user User
	if err := c.do(req, &user); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// AdminListUsers pages through all accounts using the service-role key. The
// auth provider offers no direct email lookup, so user search lists and
// filters client-side.
func (c *Client) AdminListUsers(ctx context.Context) ([]User, error) {
	if c.serviceKey == "" {
		return nil, fmt.Errorf("admin list users: service key not configured")
	}

	var all []User
	for page := 1; ; page++ {
		req, err := c.newRequest(ctx, http.MethodGet,
			fmt.Sprintf("/auth/v1/admin/users?page=%d&per_page=100", page), c.serviceKey, nil)
		if err != nil {
			return nil, fmt.Errorf("admin list users: %w", err)
		}

		var result struct {
			Users []User `json:"users"`
		}
		if err := c.do(req, &result); err != nil {
			return nil, fmt.Errorf("admin list users: %w", err)
		}
		all = append(all, result.Users...)
		if len(result.Users) < 100 {
			return all, nil
		}
	}
}

func (c *Client) post(ctx context.Context, path, token string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, token, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.anonKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordExternalCall("gotrue", "error")
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		observability.RecordExternalCall("gotrue", strconv.Itoa(resp.StatusCode))
		return ErrUnauthorized
	case resp.StatusCode >= http.StatusBadRequest:
		observability.RecordExternalCall("gotrue", strconv.Itoa(resp.StatusCode))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, gotrueErrorMessage(body))
	}

	observability.RecordExternalCall("gotrue", "ok")
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// gotrueErrorMessage pulls the human-readable message out of a GoTrue error
// body, falling back to the raw body.
func gotrueErrorMessage(body []byte) string {
	var payload struct {
		Msg       string `json:"msg"`
		Message   string `json:"message"`
		ErrorDesc string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Msg != "":
			return payload.Msg
		case payload.Message != "":
			return payload.Message
		case payload.ErrorDesc != "":
			return payload.ErrorDesc
		}
	}
	return string(body)
}
