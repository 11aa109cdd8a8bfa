package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		BaseURL: srv.URL,
		APIKey:  "sk_test_123",
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestClientConfigValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{APIKey: "k"}); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for missing base URL, got %v", err)
	}
	if _, err := NewClient(ClientConfig{BaseURL: "http://idp.local"}); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for missing API key, got %v", err)
	}
}

func TestListSessionsSendsAuthAndFilters(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		if r.URL.Path != "/v1/sessions" {
			t.Fatalf("unexpected path: %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "user_1" {
			t.Fatalf("unexpected user_id: %q", got)
		}
		if got := r.URL.Query().Get("status"); got != "active" {
			t.Fatalf("unexpected status: %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sessions":[
			{"id":"sess_a","user_id":"user_1","status":"active","created_at":"2026-08-01T10:00:00Z","last_active_at":"2026-08-01T11:00:00Z"},
			{"id":"sess_b","user_id":"user_1","status":"active","created_at":"2026-08-02T10:00:00Z","last_active_at":"2026-08-02T11:00:00Z"}
		]}`))
	}))

	sessions, err := c.ListSessions(context.Background(), "user_1", StatusActive)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "sess_a" || sessions[1].ID != "sess_b" {
		t.Fatalf("unexpected session ids: %+v", sessions)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":"not_found"}}`, http.StatusNotFound)
	}))

	if _, err := c.GetSession(context.Background(), "sess_missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRevokeSessionAlreadyRevoked(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"session_already_revoked","message":"no-op"}}`))
	}))

	if _, err := c.RevokeSession(context.Background(), "sess_a"); !errors.Is(err, ErrSessionAlreadyRevoked) {
		t.Fatalf("expected ErrSessionAlreadyRevoked, got %v", err)
	}
}

func TestProviderErrorsMapToUnavailable(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	if _, err := c.ListSessions(context.Background(), "user_1", StatusActive); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
