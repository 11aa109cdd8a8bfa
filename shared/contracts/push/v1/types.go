// Package v1 defines the Carteira push-relay contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between the server-side publisher and the client session
// monitor to keep the wire payloads authoritative.
package v1

import (
	"errors"
	"fmt"
	"strings"
)

// Event names published on a user's private channel (wire-stable).
const (
	// EventSessionCreated announces that a new session was opened elsewhere.
	EventSessionCreated = "session-created"
	// EventSessionEnded announces that a session was ended or revoked.
	// Clients holding the named session must sign out.
	EventSessionEnded = "session-ended"
)

// ChannelPrefix is the required prefix for per-user session channels.
// Only channels of this shape may be authorized for subscription.
const ChannelPrefix = "private-session-"

// ChannelForUser returns the private channel name for a user.
func ChannelForUser(userID string) string {
	return ChannelPrefix + userID
}

// UserForChannel extracts the user id from a private session channel name.
// It returns false when the name does not match the required pattern.
func UserForChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, ChannelPrefix) {
		return "", false
	}
	userID := strings.TrimPrefix(channel, ChannelPrefix)
	if strings.TrimSpace(userID) == "" {
		return "", false
	}
	return userID, true
}

// SessionEventPayload is the payload carried by session lifecycle events.
//
// SessionID may be empty in degraded publishes; clients treat an empty id as
// applying to their own session.
type SessionEventPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Validate performs strict structural validation for a payload.
func (p SessionEventPayload) Validate() error {
	if strings.TrimSpace(p.Type) == "" {
		return errors.New("missing field: type")
	}
	switch p.Type {
	case EventSessionCreated, EventSessionEnded:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", p.Type)
	}
}
