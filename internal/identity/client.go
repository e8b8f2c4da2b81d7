// Package identity talks to the external identity backend (credential
// storage, sign-up/sign-in). The client is constructed explicitly and
// injected into the auth flow; there is no package-level singleton.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Result is the opaque outcome of an identity lookup: found or not, plus the
// durable user identifier when found.
type Result struct {
	Found  bool
	UserID string
}

// Backend is the identity dependency consumed by the auth flow.
type Backend interface {
	// Identify resolves credentials to a durable user identifier.
	// A definitive "no such user / bad credentials" answer is (Found=false,
	// nil); errors mean the backend could not answer and the call may be
	// retried.
	Identify(ctx context.Context, email, password string) (Result, error)
}

// Client calls the identity backend's login endpoint over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the identity backend at baseURL
// (e.g. https://deafauth.example.com/auth).
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User struct {
		ID json.Number `json:"id"`
	} `json:"user"`
}

// Identify posts credentials to POST <base>/login. 401 is a definitive
// not-found; other non-200 statuses and transport failures are errors. The
// password is never logged.
func (c *Client) Identify(ctx context.Context, email, password string) (Result, error) {
	if c.BaseURL == "" {
		return Result{}, fmt.Errorf("identity: base URL not configured")
	}
	raw, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/login", bytes.NewReader(raw))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var out loginResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return Result{}, fmt.Errorf("identity: decode response: %w", err)
		}
		if out.User.ID == "" {
			return Result{}, fmt.Errorf("identity: response missing user id")
		}
		return Result{Found: true, UserID: out.User.ID.String()}, nil
	case http.StatusUnauthorized:
		return Result{}, nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, fmt.Errorf("identity: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
}
