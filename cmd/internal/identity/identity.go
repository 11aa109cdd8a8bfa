// Package identity talks to the external identity provider that owns users
// and sessions for Carteira.
//
// The provider is the source of truth: sessions are never persisted locally,
// this package only observes them (list/get) and asks the provider to revoke
// them. Inbound requests carry provider-issued session tokens which are
// verified by Verifier.
package identity

import (
	"context"
	"time"
)

// SessionStatus is the provider-side lifecycle state of a session.
type SessionStatus string

const (
	// StatusActive is a live session.
	StatusActive SessionStatus = "active"
	// StatusEnded is a session closed by user action (sign-out).
	StatusEnded SessionStatus = "ended"
	// StatusRevoked is a session terminated by policy or by the provider.
	StatusRevoked SessionStatus = "revoked"
)

// Session mirrors the provider's session resource.
type Session struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
}

// SessionAPI is the outbound port to the provider's session endpoints.
type SessionAPI interface {
	// ListSessions returns the user's sessions with the given status.
	ListSessions(ctx context.Context, userID string, status SessionStatus) ([]Session, error)

	// GetSession loads one session by id.
	GetSession(ctx context.Context, sessionID string) (Session, error)

	// RevokeSession asks the provider to revoke a session.
	// Revoking an already-revoked session returns ErrSessionAlreadyRevoked.
	RevokeSession(ctx context.Context, sessionID string) (Session, error)
}
