package subscription

import "context"

// Store is the persistence boundary for the subscription domain.
//
// Stores return rows without access checks; the service layer applies the
// permission predicates. Implementations must report missing rows as
// ErrNotFound.
type Store interface {
	UpsertUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id string) error

	CreateSubscription(ctx context.Context, s Subscription) error
	GetSubscription(ctx context.Context, id string) (Subscription, error)
	// ListVisibleSubscriptions returns rows the user owns or is a member of.
	ListVisibleSubscriptions(ctx context.Context, userID string) ([]Subscription, error)
	UpdateSubscription(ctx context.Context, s Subscription) error
	// DeleteSubscription removes the row and cascades members and account.
	DeleteSubscription(ctx context.Context, id string) error

	ListMembers(ctx context.Context, subscriptionID string) ([]Member, error)
	// AddMember inserts an allow-list row. Re-adding an existing member is a
	// no-op, not an error.
	AddMember(ctx context.Context, m Member) error
	RemoveMember(ctx context.Context, subscriptionID, userID string) error

	UpsertAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, subscriptionID string) (Account, error)

	ListApprovedTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, id string) (Template, error)
}
