package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event types delivered by the identity provider (wire-stable).
const (
	TypeSessionCreated = "session.created"
	TypeSessionEnded   = "session.ended"
	TypeSessionRemoved = "session.removed"
	TypeSessionRevoked = "session.revoked"

	TypeUserCreated = "user.created"
	TypeUserUpdated = "user.updated"
	TypeUserDeleted = "user.deleted"
)

// Event is the provider's webhook envelope.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData is the union of fields across session and user events.
// Session events carry ID (the session id) and UserID; user events carry
// ID (the user id) plus profile fields.
type EventData struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// parseEvent decodes and structurally validates a verified payload.
func parseEvent(payload []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if strings.TrimSpace(evt.Type) == "" {
		return Event{}, errors.New("missing event type")
	}
	if strings.TrimSpace(evt.Data.ID) == "" {
		return Event{}, errors.New("missing event data id")
	}
	return evt, nil
}

// isSessionEnd reports whether the event type is one of the terminal session
// lifecycle notifications. They are treated identically: whatever the cause,
// a client still holding that session must be told.
func isSessionEnd(eventType string) bool {
	switch eventType {
	case TypeSessionEnded, TypeSessionRemoved, TypeSessionRevoked:
		return true
	default:
		return false
	}
}
