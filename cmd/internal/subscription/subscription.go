// Package subscription implements shared-subscription pooling: subscriptions
// owned by one user and shared with an allow-list of members, optional shared
// account credentials, and a catalog of curated templates.
package subscription

import (
	"fmt"
	"strings"
	"time"
)

// Type says who may be invited into a subscription.
type Type string

const (
	TypePrivate Type = "private"
	TypePublic  Type = "public"
)

// Status is the subscription lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

const (
	maxNameLen        = 120
	maxDescriptionLen = 1024
	// MaxMembersLimit caps how large a sharing pool may grow.
	MaxMembersLimit = 16
)

// User is a provider identity mirrored locally from webhook events.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subscription is one pooled subscription.
type Subscription struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	TemplateID   *string   `json:"template_id,omitempty"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Type         Type      `json:"type"`
	MaxMembers   int       `json:"max_members"`
	PriceInCents int64     `json:"price_in_cents"`
	RenewalDay   int       `json:"renewal_day"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Template is a curated catalog entry users start subscriptions from.
// Templates are read-only to clients and seeded by migration.
type Template struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Description             string    `json:"description,omitempty"`
	Type                    Type      `json:"type"`
	Category                string    `json:"category"`
	Provider                string    `json:"provider"`
	PlanName                string    `json:"plan_name"`
	RecommendedMaxMembers   int       `json:"recommended_max_members"`
	RecommendedPriceInCents int64     `json:"recommended_price_in_cents"`
	Approved                bool      `json:"approved"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Account holds the shared credentials for a subscription. The password is
// sealed before it reaches the store and only opened by the reveal endpoint.
type Account struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	Username       string    `json:"account_username"`
	SealedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Member is one allow-list row granting a user access to a subscription.
type Member struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Credentials is the reveal endpoint's response.
type Credentials struct {
	Username string `json:"account_username"`
	Password string `json:"account_password"`
}

// Draft is the validated input for creating or updating a subscription.
type Draft struct {
	Name         string
	Description  string
	TemplateID   *string
	Type         Type
	MaxMembers   int
	PriceInCents int64
	RenewalDay   int
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(d.Name) > maxNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, maxNameLen)
	}
	if len(d.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, maxDescriptionLen)
	}
	switch d.Type {
	case TypePrivate, TypePublic:
	default:
		return fmt.Errorf("%w: type must be private or public", ErrInvalidInput)
	}
	if d.MaxMembers < 1 || d.MaxMembers > MaxMembersLimit {
		return fmt.Errorf("%w: max_members must be between 1 and %d", ErrInvalidInput, MaxMembersLimit)
	}
	if d.PriceInCents <= 0 {
		return fmt.Errorf("%w: price_in_cents must be positive", ErrInvalidInput)
	}
	if d.RenewalDay < 1 || d.RenewalDay > 31 {
		return fmt.Errorf("%w: renewal_day must be between 1 and 31", ErrInvalidInput)
	}
	return nil
}
