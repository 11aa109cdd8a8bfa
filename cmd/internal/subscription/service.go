package subscription

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"carteira/cmd/internal/secret"
)

// AccountDraft is the optional inline credentials for a subscription.
type AccountDraft struct {
	Username string
	Password string
}

func (d AccountDraft) validate() error {
	if strings.TrimSpace(d.Username) == "" {
		return fmt.Errorf("%w: account_username is required", ErrInvalidInput)
	}
	if d.Password == "" {
		return fmt.Errorf("%w: account_password is required", ErrInvalidInput)
	}
	return nil
}

// Service applies the access rules on top of a Store and seals account
// credentials before they are persisted.
type Service struct {
	store  Store
	sealer *secret.Sealer
	now    func() time.Time
}

// Option configures the Service.
type Option func(*Service) error

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return ErrInvalidInput
		}
		s.now = now
		return nil
	}
}

func NewService(store Store, sealer *secret.Sealer, opts ...Option) (*Service, error) {
	if store == nil || sealer == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{store: store, sealer: sealer, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create validates the draft and persists a new subscription owned by
// ownerID, with optional shared account credentials.
func (s *Service) Create(ctx context.Context, ownerID string, draft Draft, account *AccountDraft) (Subscription, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Subscription{}, ErrInvalidInput
	}
	if err := draft.Validate(); err != nil {
		return Subscription{}, err
	}
	if account != nil {
		if err := account.validate(); err != nil {
			return Subscription{}, err
		}
	}
	if draft.TemplateID != nil {
		if _, err := s.store.GetTemplate(ctx, *draft.TemplateID); err != nil {
			return Subscription{}, fmt.Errorf("%w: unknown template", ErrInvalidInput)
		}
	}

	now := s.now()
	sub := Subscription{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		TemplateID:   draft.TemplateID,
		Name:         strings.TrimSpace(draft.Name),
		Description:  strings.TrimSpace(draft.Description),
		Type:         draft.Type,
		MaxMembers:   draft.MaxMembers,
		PriceInCents: draft.PriceInCents,
		RenewalDay:   draft.RenewalDay,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return Subscription{}, err
	}

	if account != nil {
		if err := s.saveAccount(ctx, sub.ID, *account, now); err != nil {
			return Subscription{}, err
		}
	}
	return sub, nil
}

// Get returns the subscription if userID may view it; ErrNotFound otherwise.
func (s *Service) Get(ctx context.Context, userID, id string) (Subscription, error) {
	sub, _, err := s.loadVisible(ctx, userID, id)
	return sub, err
}

// List returns the subscriptions userID owns or is a member of.
func (s *Service) List(ctx context.Context, userID string) ([]Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.store.ListVisibleSubscriptions(ctx, userID)
}

// Update replaces the mutable fields. Owner only.
func (s *Service) Update(ctx context.Context, userID, id string, draft Draft, account *AccountDraft) (Subscription, error) {
	if err := draft.Validate(); err != nil {
		return Subscription{}, err
	}
	if account != nil {
		if err := account.validate(); err != nil {
			return Subscription{}, err
		}
	}

	sub, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return Subscription{}, err
	}

	now := s.now()
	sub.Name = strings.TrimSpace(draft.Name)
	sub.Description = strings.TrimSpace(draft.Description)
	sub.Type = draft.Type
	sub.MaxMembers = draft.MaxMembers
	sub.PriceInCents = draft.PriceInCents
	sub.RenewalDay = draft.RenewalDay
	sub.UpdatedAt = now

	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return Subscription{}, err
	}
	if account != nil {
		if err := s.saveAccount(ctx, sub.ID, *account, now); err != nil {
			return Subscription{}, err
		}
	}
	return sub, nil
}

// Delete removes a subscription and everything hanging off it. Owner only.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.loadOwned(ctx, userID, id); err != nil {
		return err
	}
	return s.store.DeleteSubscription(ctx, id)
}

// AddMember puts a user on the allow-list. Owner only, capped at the
// subscription's max_members; re-adding an existing member is a no-op.
func (s *Service) AddMember(ctx context.Context, actorID, subscriptionID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	sub, err := s.loadOwned(ctx, actorID, subscriptionID)
	if err != nil {
		return err
	}
	if userID == sub.OwnerID {
		// The owner always has access; an allow-list row would only
		// double-count them against the cap.
		return nil
	}

	members, err := s.store.ListMembers(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if IsMember(userID, members) {
		return nil
	}
	// The owner occupies one seat of the pool.
	if len(members)+1 >= sub.MaxMembers {
		return ErrMemberLimit
	}

	id, err := newMemberID(s.now())
	if err != nil {
		return err
	}
	return s.store.AddMember(ctx, Member{
		ID:             id,
		SubscriptionID: subscriptionID,
		UserID:         userID,
		CreatedAt:      s.now(),
	})
}

// RemoveMember drops a user from the allow-list. Owner only.
func (s *Service) RemoveMember(ctx context.Context, actorID, subscriptionID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	if _, err := s.loadOwned(ctx, actorID, subscriptionID); err != nil {
		return err
	}
	return s.store.RemoveMember(ctx, subscriptionID, userID)
}

// ListMembers returns the allow-list of a subscription the user can view.
func (s *Service) ListMembers(ctx context.Context, userID, subscriptionID string) ([]Member, error) {
	_, members, err := s.loadVisible(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	return members, nil
}

// RevealAccount opens the shared credentials for anyone who may view the
// subscription.
func (s *Service) RevealAccount(ctx context.Context, userID, subscriptionID string) (Credentials, error) {
	sub, members, err := s.loadVisible(ctx, userID, subscriptionID)
	if err != nil {
		return Credentials{}, err
	}
	if !CanViewAccount(userID, sub, members) {
		return Credentials{}, ErrNotFound
	}

	acct, err := s.store.GetAccount(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credentials{}, ErrNoAccount
		}
		return Credentials{}, err
	}
	password, err := s.sealer.Open(acct.SealedPassword)
	if err != nil {
		return Credentials{}, fmt.Errorf("open account password: %w", err)
	}
	return Credentials{Username: acct.Username, Password: password}, nil
}

// Templates lists the approved catalog.
func (s *Service) Templates(ctx context.Context) ([]Template, error) {
	return s.store.ListApprovedTemplates(ctx)
}

func (s *Service) saveAccount(ctx context.Context, subscriptionID string, draft AccountDraft, now time.Time) error {
	sealed, err := s.sealer.Seal(draft.Password)
	if err != nil {
		return fmt.Errorf("seal account password: %w", err)
	}
	id, err := newMemberID(now)
	if err != nil {
		return err
	}
	return s.store.UpsertAccount(ctx, Account{
		ID:             id,
		SubscriptionID: subscriptionID,
		Username:       strings.TrimSpace(draft.Username),
		SealedPassword: sealed,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// loadVisible loads a subscription and its members, mapping invisible rows
// to ErrNotFound so existence does not leak.
func (s *Service) loadVisible(ctx context.Context, userID, id string) (Subscription, []Member, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(id) == "" {
		return Subscription{}, nil, ErrInvalidInput
	}
	// Subscription ids are UUIDs. A value that cannot be one names no row,
	// and the store's uuid column would reject it before the lookup.
	if _, err := uuid.Parse(id); err != nil {
		return Subscription{}, nil, ErrNotFound
	}
	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return Subscription{}, nil, err
	}
	members, err := s.store.ListMembers(ctx, id)
	if err != nil {
		return Subscription{}, nil, err
	}
	if !CanView(userID, sub, members) {
		return Subscription{}, nil, ErrNotFound
	}
	return sub, members, nil
}

// loadOwned loads a subscription for mutation. Visible non-owners get
// ErrForbidden; everyone else gets ErrNotFound.
func (s *Service) loadOwned(ctx context.Context, userID, id string) (Subscription, error) {
	sub, _, err := s.loadVisible(ctx, userID, id)
	if err != nil {
		return Subscription{}, err
	}
	if !CanEdit(userID, sub) {
		return Subscription{}, ErrForbidden
	}
	return sub, nil
}

// newMemberID returns a ULID. ULIDs sort by creation time, which keeps
// member and account rows readable in the database.
func newMemberID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
