package identity

import (
	"log/slog"
	"net/http"
	"time"

	"carteira/cmd/internal/httpapi"
)

// SessionsHandler serves the authenticated session listing used by account
// settings screens ("where am I signed in?").
type SessionsHandler struct {
	log      *slog.Logger
	provider SessionAPI
}

// NewSessionsHandler constructs the handler.
func NewSessionsHandler(log *slog.Logger, provider SessionAPI) *SessionsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionsHandler{log: log, provider: provider}
}

type sessionListItem struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type sessionListResponse struct {
	Sessions []sessionListItem `json:"sessions"`
}

// ServeHTTP handles GET /api/sessions.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	sessions, err := h.provider.ListSessions(r.Context(), claims.UserID, StatusActive)
	if err != nil {
		h.log.Error("sessions.list.fail", "err", err, "user_id", claims.UserID)
		httpapi.WriteError(w, http.StatusInternalServerError, "provider_error", "failed to fetch sessions")
		return
	}

	items := make([]sessionListItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionListItem{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
		})
	}

	httpapi.WriteJSON(w, http.StatusOK, sessionListResponse{Sessions: items})
}
