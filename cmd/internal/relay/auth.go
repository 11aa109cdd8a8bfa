package relay

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"carteira/cmd/internal/httpapi"
	"carteira/cmd/internal/identity"
	pushv1 "carteira/shared/contracts/push/v1"
)

const maxAuthBodyBytes = 4096

// AuthHandler authorizes private-channel subscriptions.
//
// A subscription is granted only when the requested channel is the caller's
// own session channel AND the caller's provider session is still active.
// A valid bearer token alone is not enough: revoked sessions must not be able
// to keep listening for their own revocation events.
type AuthHandler struct {
	log        *slog.Logger
	provider   identity.SessionAPI
	authorizer ChannelAuthorizer
}

// NewAuthHandler constructs the channel authorization handler.
func NewAuthHandler(log *slog.Logger, provider identity.SessionAPI, authorizer ChannelAuthorizer) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{log: log, provider: provider, authorizer: authorizer}
}

// ServeHTTP handles POST /api/pusher/auth.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBodyBytes))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
		return
	}
	defer func() { _ = r.Body.Close() }()

	socketID, channel, ok := parseAuthParams(body)
	if !ok {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_request", "socket_id and channel_name are required")
		return
	}

	channelUser, ok := pushv1.UserForChannel(channel)
	if !ok || channelUser != claims.UserID {
		h.log.Info("relay.auth.reject.channel", "channel", channel, "user_id", claims.UserID)
		httpapi.WriteError(w, http.StatusForbidden, "forbidden", "channel not allowed")
		return
	}

	// Server-authoritative activity check: the token may outlive the session.
	sess, err := h.provider.GetSession(r.Context(), claims.SessionID)
	if err != nil {
		if errors.Is(err, identity.ErrSessionNotFound) {
			httpapi.WriteError(w, http.StatusUnauthorized, "session_not_active", "session not active")
			return
		}
		h.log.Error("relay.auth.session_check.fail", "err", err, "session_id", claims.SessionID)
		httpapi.WriteError(w, http.StatusInternalServerError, "provider_error", "failed to verify session")
		return
	}
	if sess.Status != identity.StatusActive {
		httpapi.WriteError(w, http.StatusUnauthorized, "session_not_active", "session not active")
		return
	}

	resp, err := h.authorizer.AuthorizeChannel(body)
	if err != nil {
		h.log.Error("relay.auth.sign.fail", "err", err, "channel", channel)
		httpapi.WriteError(w, http.StatusInternalServerError, "relay_error", "failed to authorize channel")
		return
	}

	h.log.Info("relay.auth.granted", "channel", channel, "user_id", claims.UserID, "socket_id", socketID)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func parseAuthParams(body []byte) (socketID, channel string, ok bool) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", "", false
	}
	socketID = strings.TrimSpace(values.Get("socket_id"))
	channel = strings.TrimSpace(values.Get("channel_name"))
	if socketID == "" || channel == "" {
		return "", "", false
	}
	return socketID, channel, true
}
