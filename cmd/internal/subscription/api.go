package subscription

import (
	"errors"
	"log/slog"
	"net/http"

	"carteira/cmd/internal/httpapi"
	"carteira/cmd/internal/identity"
)

const maxBodyBytes = 64 << 10 // 64KiB

// Handler serves the subscription HTTP API. Every route expects an
// authenticated session in the request context.
type Handler struct {
	log *slog.Logger
	svc *Service
}

func NewHandler(log *slog.Logger, svc *Service) (*Handler, error) {
	if svc == nil {
		return nil, ErrInvalidInput
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, svc: svc}, nil
}

// Register wires subscription routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /api/subscriptions", h.handleCreate)
	mux.HandleFunc("GET /api/subscriptions", h.handleList)
	mux.HandleFunc("GET /api/subscriptions/{id}", h.handleGet)
	mux.HandleFunc("PUT /api/subscriptions/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/subscriptions/{id}", h.handleDelete)
	mux.HandleFunc("GET /api/subscriptions/{id}/members", h.handleListMembers)
	mux.HandleFunc("POST /api/subscriptions/{id}/members", h.handleAddMember)
	mux.HandleFunc("DELETE /api/subscriptions/{id}/members/{userID}", h.handleRemoveMember)
	mux.HandleFunc("GET /api/subscriptions/{id}/account", h.handleRevealAccount)
	mux.HandleFunc("GET /api/templates", h.handleTemplates)
}

type accountPayload struct {
	Username string `json:"account_username"`
	Password string `json:"account_password"`
}

type subscriptionPayload struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	TemplateID   *string         `json:"template_id"`
	Type         Type            `json:"type"`
	MaxMembers   int             `json:"max_members"`
	PriceInCents int64           `json:"price_in_cents"`
	RenewalDay   int             `json:"renewal_day"`
	Account      *accountPayload `json:"account"`
}

func (p subscriptionPayload) draft() (Draft, *AccountDraft) {
	draft := Draft{
		Name:         p.Name,
		Description:  p.Description,
		TemplateID:   p.TemplateID,
		Type:         p.Type,
		MaxMembers:   p.MaxMembers,
		PriceInCents: p.PriceInCents,
		RenewalDay:   p.RenewalDay,
	}
	if p.Account == nil {
		return draft, nil
	}
	return draft, &AccountDraft{Username: p.Account.Username, Password: p.Account.Password}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	var req subscriptionPayload
	if err := httpapi.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	draft, account := req.draft()
	sub, err := h.svc.Create(r.Context(), claims.UserID, draft, account)
	if err != nil {
		h.writeServiceError(w, err, "subscription.create.fail")
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	subs, err := h.svc.List(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, err, "subscription.list.fail")
		return
	}
	if subs == nil {
		subs = []Subscription{}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	sub, err := h.svc.Get(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "subscription.get.fail")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	var req subscriptionPayload
	if err := httpapi.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	draft, account := req.draft()
	sub, err := h.svc.Update(r.Context(), claims.UserID, r.PathValue("id"), draft, account)
	if err != nil {
		h.writeServiceError(w, err, "subscription.update.fail")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	if err := h.svc.Delete(r.Context(), claims.UserID, r.PathValue("id")); err != nil {
		h.writeServiceError(w, err, "subscription.delete.fail")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	members, err := h.svc.ListMembers(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "subscription.members.list.fail")
		return
	}
	if members == nil {
		members = []Member{}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	var req addMemberRequest
	if err := httpapi.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	err := h.svc.AddMember(r.Context(), claims.UserID, r.PathValue("id"), req.UserID)
	if err != nil {
		h.writeServiceError(w, err, "subscription.members.add.fail")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	err := h.svc.RemoveMember(r.Context(), claims.UserID, r.PathValue("id"), r.PathValue("userID"))
	if err != nil {
		h.writeServiceError(w, err, "subscription.members.remove.fail")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevealAccount(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.SessionFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	creds, err := h.svc.RevealAccount(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "subscription.account.reveal.fail")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, creds)
}

func (h *Handler) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity.SessionFromContext(r.Context()); !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	templates, err := h.svc.Templates(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "subscription.templates.fail")
		return
	}
	if templates == nil {
		templates = []Template{}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, event string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httpapi.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "subscription not found")
	case errors.Is(err, ErrForbidden):
		httpapi.WriteError(w, http.StatusForbidden, "forbidden", "owner access required")
	case errors.Is(err, ErrMemberLimit):
		httpapi.WriteError(w, http.StatusConflict, "member_limit", "subscription member limit reached")
	case errors.Is(err, ErrNoAccount):
		httpapi.WriteError(w, http.StatusNotFound, "no_account", "subscription has no shared account")
	default:
		h.log.Error(event, "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
