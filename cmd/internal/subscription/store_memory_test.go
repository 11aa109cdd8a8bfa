package subscription

import (
	"context"
	"sync"
)

// memStore is an in-memory Store for service and handler tests.
type memStore struct {
	mu        sync.Mutex
	users     map[string]User
	subs      map[string]Subscription
	members   map[string][]Member  // keyed by subscription id
	accounts  map[string]Account   // keyed by subscription id
	templates map[string]Template
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]User),
		subs:      make(map[string]Subscription),
		members:   make(map[string][]Member),
		accounts:  make(map[string]Account),
		templates: make(map[string]Template),
	}
}

func (m *memStore) UpsertUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *memStore) CreateSubscription(_ context.Context, s Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.ID] = s
	return nil
}

func (m *memStore) GetSubscription(_ context.Context, id string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return Subscription{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) ListVisibleSubscriptions(_ context.Context, userID string) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Subscription
	for _, s := range m.subs {
		if IsOwner(userID, s) || IsMember(userID, m.members[s.ID]) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) UpdateSubscription(_ context.Context, s Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s.ID]; !ok {
		return ErrNotFound
	}
	m.subs[s.ID] = s
	return nil
}

func (m *memStore) DeleteSubscription(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	delete(m.members, id)
	delete(m.accounts, id)
	return nil
}

func (m *memStore) ListMembers(_ context.Context, subscriptionID string) ([]Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Member(nil), m.members[subscriptionID]...), nil
}

func (m *memStore) AddMember(_ context.Context, member Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.members[member.SubscriptionID] {
		if existing.UserID == member.UserID {
			return nil
		}
	}
	m.members[member.SubscriptionID] = append(m.members[member.SubscriptionID], member)
	return nil
}

func (m *memStore) RemoveMember(_ context.Context, subscriptionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.members[subscriptionID][:0]
	for _, existing := range m.members[subscriptionID] {
		if existing.UserID != userID {
			kept = append(kept, existing)
		}
	}
	m.members[subscriptionID] = kept
	return nil
}

func (m *memStore) UpsertAccount(_ context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.SubscriptionID] = a
	return nil
}

func (m *memStore) GetAccount(_ context.Context, subscriptionID string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[subscriptionID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *memStore) ListApprovedTemplates(_ context.Context) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Template
	for _, t := range m.templates {
		if t.Approved {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) GetTemplate(_ context.Context, id string) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return Template{}, ErrNotFound
	}
	return t, nil
}
