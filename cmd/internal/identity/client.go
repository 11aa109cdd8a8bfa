package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout  = 10 * time.Second
	maxErrorBodyLen = 4096
)

// Client is an HTTP client for the provider's hosted session API.
//
// All calls are request-scoped: timeouts come from the configured HTTP client
// plus the caller's context. There is no retry loop here; the webhook
// delivery retry of the provider is the retry mechanism.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// ClientConfig configures the provider client.
type ClientConfig struct {
	// BaseURL is the provider API root, e.g. "https://api.idp.example.com".
	BaseURL string
	// APIKey is the secret key sent as a bearer token.
	APIKey string
	// Timeout bounds each provider call. Zero means a 10s default.
	Timeout time.Duration
}

// NewClient constructs a provider client with a tuned transport.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: missing base URL", ErrConfig)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrConfig)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

// ListSessions returns the user's sessions filtered by status.
func (c *Client) ListSessions(ctx context.Context, userID string, status SessionStatus) ([]Session, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	if status != "" {
		q.Set("status", string(status))
	}

	var out struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/sessions?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// GetSession loads one session by id.
func (c *Client) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID), &out); err != nil {
		return Session{}, err
	}
	return out, nil
}

// RevokeSession asks the provider to revoke a session.
func (c *Client) RevokeSession(ctx context.Context, sessionID string) (Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/revoke", &out); err != nil {
		return Session{}, err
	}
	return out, nil
}

// providerError is the provider's error body shape.
type providerError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		if dst == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%w: decode response: %w", ErrProviderUnavailable, err)
		}
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrSessionNotFound
	case http.StatusBadRequest, http.StatusConflict:
		var pe providerError
		if err := json.Unmarshal(body, &pe); err == nil && isAlreadyRevokedCode(pe.Error.Code) {
			return ErrSessionAlreadyRevoked
		}
	}

	return fmt.Errorf("%w: %s %s returned status %d", ErrProviderUnavailable, method, path, resp.StatusCode)
}

func isAlreadyRevokedCode(code string) bool {
	switch code {
	case "session_already_revoked", "session_not_active", "already_revoked":
		return true
	default:
		return false
	}
}
