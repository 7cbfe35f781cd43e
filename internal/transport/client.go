// Package transport sends finalized wire requests to a remote JMAP
// server and performs the one-time session bootstrap.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/session"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/wire"
)

// Default Fastmail endpoints.
const (
	DefaultAPIURL     = "https://api.fastmail.com/jmap/api/"
	DefaultSessionURL = "https://api.fastmail.com/jmap/session"
)

// maxErrorBody caps how much of an error response body is kept.
const maxErrorBody = 8 * 1024

// HTTPDoer abstracts HTTP client operations for dependency inversion.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPError is a non-2xx response from the remote server. It is
// surfaced unchanged to the operation caller; the transport never
// retries, because a submission must not be attempted twice.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("jmap server returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Config holds transport configuration.
type Config struct {
	APIURL            string
	SessionURL        string
	RequestsPerSecond float64
	Burst             int
}

// Client is the JMAP HTTP transport.
type Client struct {
	apiURL     string
	sessionURL string
	httpClient HTTPDoer
	limiter    *rate.Limiter
}

// NewClient creates a Client with defaults applied for unset config.
func NewClient(httpClient HTTPDoer, cfg Config) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	sessionURL := cfg.SessionURL
	if sessionURL == "" {
		sessionURL = DefaultSessionURL
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &Client{
		apiURL:     apiURL,
		sessionURL: sessionURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Call submits one finalized request as a single round trip and decodes
// the response envelope.
func (c *Client) Call(ctx context.Context, snap *session.Context, req *wire.Request) (*wire.Response, error) {
	if !snap.Configured() {
		return nil, session.ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+snap.Token)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("jmap request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, readHTTPError(httpResp)
	}

	var resp wire.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// sessionDocument is the subset of the JMAP session resource this
// bridge needs.
type sessionDocument struct {
	Username        string            `json:"username"`
	PrimaryAccounts map[string]string `json:"primaryAccounts"`
}

// BootstrapSession resolves a credential to its primary mail account.
// It satisfies session.Bootstrapper.
func (c *Client) BootstrapSession(ctx context.Context, token string) (*session.BootstrapResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("session request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, readHTTPError(httpResp)
	}

	var doc sessionDocument
	if err := json.NewDecoder(httpResp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &session.BootstrapResult{
		AccountID: doc.PrimaryAccounts[wire.CapabilityMail],
		Identity:  doc.Username,
	}, nil
}

func readHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
}
