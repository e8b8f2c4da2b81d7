// Package asl talks to the external liveness and sign-language-recognition
// service and records verification attempts. The service verdict carries two
// independent signals; overall ASL success requires both to be true.
package asl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// VerifyRequest is the exact wire shape sent to the recognition service.
type VerifyRequest struct {
	VideoDataURI  string   `json:"videoDataUri"`
	ExpectedSigns []string `json:"expectedSigns"`
}

// VerifyResponse is the exact wire shape returned by the recognition service.
// IsAuthentic is the sign-content verdict; FaceDetected is the separately
// reported liveness signal.
type VerifyResponse struct {
	IsAuthentic  bool   `json:"isAuthentic"`
	FaceDetected bool   `json:"faceDetected"`
	Message      string `json:"message"`
}

// Accepted reports whether the verdict passes both required signals.
func (r VerifyResponse) Accepted() bool {
	return r.IsAuthentic && r.FaceDetected
}

// Verifier is the liveness/recognition dependency consumed by the auth flow.
// Implementations must not mutate session state.
type Verifier interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error)
}

// Client calls the recognition service over HTTP.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient returns a client for the given base URL. apiKey may be empty for
// unauthenticated dev deployments.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Verify posts the video and expected sign sequence and decodes the verdict.
// Transport and non-200 failures are returned as errors so callers can treat
// them as retryable external failures; only a decoded verdict is a result.
// The video payload is never logged.
func (c *Client) Verify(ctx context.Context, reqBody VerifyRequest) (VerifyResponse, error) {
	if c.BaseURL == "" {
		return VerifyResponse{}, fmt.Errorf("asl: base URL not configured")
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return VerifyResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return VerifyResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return VerifyResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return VerifyResponse{}, fmt.Errorf("asl: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	var out VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return VerifyResponse{}, fmt.Errorf("asl: decode verdict: %w", err)
	}
	return out, nil
}
