package subscription

import (
	"context"
	"strings"
	"time"
)

// Directory mirrors identity-provider user events into the local users
// table, so subscriptions and allow-lists can join against known users.
type Directory struct {
	store Store
	now   func() time.Time
}

func NewDirectory(store Store) (*Directory, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	return &Directory{store: store, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (d *Directory) UserUpserted(ctx context.Context, id, email, name string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	now := d.now()
	return d.store.UpsertUser(ctx, User{
		ID:        id,
		Email:     strings.TrimSpace(email),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (d *Directory) UserDeleted(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	return d.store.DeleteUser(ctx, id)
}
