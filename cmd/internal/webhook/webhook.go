// Package webhook receives signed session and user lifecycle webhooks from
// the external identity provider and routes them to the session-limit
// enforcer and the local user mirror.
package webhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"carteira/cmd/internal/metrics"

	svix "github.com/svix/svix-webhooks/go"
)

const maxBodyBytes = 1 << 20

// SessionSink consumes verified session lifecycle events.
type SessionSink interface {
	// SessionCreated is invoked for session.created events.
	SessionCreated(ctx context.Context, sessionID, userID string) error
	// SessionEnded is invoked for session.ended/removed/revoked events.
	SessionEnded(ctx context.Context, sessionID, userID string) error
}

// UserSink mirrors provider user records locally.
type UserSink interface {
	UserUpserted(ctx context.Context, id, email, name string) error
	UserDeleted(ctx context.Context, id string) error
}

// Handler verifies webhook signatures and dispatches events.
//
// The handler is stateless per request: concurrent deliveries are independent
// and deliveries for the same user are not mutually excluded. Races on the
// same session resolve through idempotent revocation and re-evaluation on the
// next event.
type Handler struct {
	log      *slog.Logger
	verifier *svix.Webhook
	sessions SessionSink
	users    UserSink
}

// NewHandler constructs a webhook handler. secret is the provider's signing
// secret (whsec_... form).
func NewHandler(log *slog.Logger, secret string, sessions SessionSink, users UserSink) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("webhook: missing signing secret")
	}

	verifier, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}

	return &Handler{
		log:      log,
		verifier: verifier,
		sessions: sessions,
		users:    users,
	}, nil
}

// ServeHTTP handles POST /webhooks/identity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if r.Header.Get("svix-id") == "" ||
		r.Header.Get("svix-timestamp") == "" ||
		r.Header.Get("svix-signature") == "" {
		h.log.Info("webhook.reject.headers", "remote", r.RemoteAddr)
		http.Error(w, "missing signature headers", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	if err := h.verifier.Verify(payload, r.Header); err != nil {
		h.log.Info("webhook.reject.signature", "err", err, "remote", r.RemoteAddr)
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}

	evt, err := parseEvent(payload)
	if err != nil {
		h.log.Info("webhook.reject.payload", "err", err)
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	if err := h.dispatch(r.Context(), evt); err != nil {
		metrics.WebhookEvents.WithLabelValues(evt.Type, "error").Inc()
		h.log.Error("webhook.dispatch.fail", "type", evt.Type, "err", err)
		// 5xx so the provider's own delivery retry re-sends the event.
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}

	metrics.WebhookEvents.WithLabelValues(evt.Type, "ok").Inc()
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) dispatch(ctx context.Context, evt Event) error {
	switch {
	case evt.Type == TypeSessionCreated:
		return h.sessions.SessionCreated(ctx, evt.Data.ID, evt.Data.UserID)

	case isSessionEnd(evt.Type):
		return h.sessions.SessionEnded(ctx, evt.Data.ID, evt.Data.UserID)

	case evt.Type == TypeUserCreated, evt.Type == TypeUserUpdated:
		if h.users == nil {
			return nil
		}
		return h.users.UserUpserted(ctx, evt.Data.ID, evt.Data.Email, evt.Data.Name)

	case evt.Type == TypeUserDeleted:
		if h.users == nil {
			return nil
		}
		return h.users.UserDeleted(ctx, evt.Data.ID)

	default:
		h.log.Info("webhook.event.ignored", "type", evt.Type)
		return nil
	}
}
