package enforcer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"carteira/cmd/internal/identity"
	pushv1 "carteira/shared/contracts/push/v1"
)

type fakeProvider struct {
	mu       sync.Mutex
	sessions map[string]identity.Session
	listErr  error
	// revokeErr, when set for a session id, is returned once by RevokeSession.
	revokeErr map[string]error
	revoked   []string
}

func newFakeProvider(sessions ...identity.Session) *fakeProvider {
	p := &fakeProvider{
		sessions:  make(map[string]identity.Session),
		revokeErr: make(map[string]error),
	}
	for _, s := range sessions {
		p.sessions[s.ID] = s
	}
	return p
}

func (p *fakeProvider) ListSessions(_ context.Context, userID string, status identity.SessionStatus) ([]identity.Session, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []identity.Session
	for _, s := range p.sessions {
		if s.UserID == userID && s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *fakeProvider) GetSession(_ context.Context, sessionID string) (identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return identity.Session{}, identity.ErrSessionNotFound
	}
	return s, nil
}

func (p *fakeProvider) RevokeSession(_ context.Context, sessionID string) (identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.revokeErr[sessionID]; ok {
		return identity.Session{}, err
	}
	s, ok := p.sessions[sessionID]
	if !ok {
		return identity.Session{}, identity.ErrSessionNotFound
	}
	s.Status = identity.StatusRevoked
	p.sessions[sessionID] = s
	p.revoked = append(p.revoked, sessionID)
	return s, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []publishedEvent
}

type publishedEvent struct {
	channel string
	event   string
	data    any
}

func (p *fakePublisher) Trigger(_ context.Context, channel, event string, data any) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{channel: channel, event: event, data: data})
	return nil
}

func activeSession(id, userID string, age time.Duration) identity.Session {
	return identity.Session{
		ID:        id,
		UserID:    userID,
		Status:    identity.StatusActive,
		CreatedAt: time.Now().Add(-age),
	}
}

func newTestEnforcer(t *testing.T, provider identity.SessionAPI, pub *fakePublisher, max int) *Enforcer {
	t.Helper()
	e, err := New(nil, provider, pub, Config{MaxActiveSessions: max, RevokeConcurrency: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestWithinLimitNothingRevoked(t *testing.T) {
	provider := newFakeProvider(
		activeSession("sess_new", "user_1", 0),
	)
	pub := &fakePublisher{}
	e := newTestEnforcer(t, provider, pub, 1)

	if err := e.SessionCreated(context.Background(), "sess_new", "user_1"); err != nil {
		t.Fatalf("SessionCreated: %v", err)
	}
	if len(provider.revoked) != 0 {
		t.Fatalf("expected no revocations, got %v", provider.revoked)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no publishes, got %v", pub.events)
	}
}

func TestOldestSessionsRevokedNewestKept(t *testing.T) {
	provider := newFakeProvider(
		activeSession("sess_old", "user_1", 2*time.Hour),
		activeSession("sess_mid", "user_1", time.Hour),
		activeSession("sess_new", "user_1", 0),
		activeSession("sess_other", "user_2", time.Hour),
	)
	pub := &fakePublisher{}
	e := newTestEnforcer(t, provider, pub, 1)

	if err := e.SessionCreated(context.Background(), "sess_new", "user_1"); err != nil {
		t.Fatalf("SessionCreated: %v", err)
	}

	if got := provider.sessions["sess_new"].Status; got != identity.StatusActive {
		t.Fatalf("newest session revoked: status %q", got)
	}
	for _, id := range []string{"sess_old", "sess_mid"} {
		if got := provider.sessions[id].Status; got != identity.StatusRevoked {
			t.Fatalf("%s: expected revoked, got %q", id, got)
		}
	}
	if got := provider.sessions["sess_other"].Status; got != identity.StatusActive {
		t.Fatalf("another user's session was revoked")
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.channel != pushv1.ChannelForUser("user_1") {
		t.Fatalf("published on %q", ev.channel)
	}
	if ev.event != pushv1.EventSessionEnded {
		t.Fatalf("published event %q", ev.event)
	}
	payload, ok := ev.data.(pushv1.SessionEventPayload)
	if !ok {
		t.Fatalf("payload type %T", ev.data)
	}
	if payload.Type != pushv1.EventSessionEnded || payload.Message == "" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.SessionID != "sess_mid" && payload.SessionID != "sess_old" {
		t.Fatalf("payload names a surviving session: %+v", payload)
	}
}

func TestAlreadyRevokedRaceIsSwallowed(t *testing.T) {
	provider := newFakeProvider(
		activeSession("sess_old", "user_1", time.Hour),
		activeSession("sess_new", "user_1", 0),
	)
	provider.revokeErr["sess_old"] = identity.ErrSessionAlreadyRevoked
	pub := &fakePublisher{}
	e := newTestEnforcer(t, provider, pub, 1)

	if err := e.SessionCreated(context.Background(), "sess_new", "user_1"); err != nil {
		t.Fatalf("SessionCreated: %v", err)
	}
	// The user still gets notified even though the other pass won the race.
	if len(pub.events) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.events))
	}
}

func TestProviderRevokeFailurePropagates(t *testing.T) {
	provider := newFakeProvider(
		activeSession("sess_old", "user_1", time.Hour),
		activeSession("sess_new", "user_1", 0),
	)
	provider.revokeErr["sess_old"] = identity.ErrProviderUnavailable
	pub := &fakePublisher{}
	e := newTestEnforcer(t, provider, pub, 1)

	err := e.SessionCreated(context.Background(), "sess_new", "user_1")
	if !errors.Is(err, identity.ErrProviderUnavailable) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("must not publish when revocation failed")
	}
}

func TestListFailurePropagates(t *testing.T) {
	provider := newFakeProvider()
	provider.listErr = identity.ErrProviderUnavailable
	e := newTestEnforcer(t, provider, &fakePublisher{}, 1)

	if err := e.SessionCreated(context.Background(), "sess_new", "user_1"); !errors.Is(err, identity.ErrProviderUnavailable) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestSessionEndedPublishes(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEnforcer(t, newFakeProvider(), pub, 1)

	if err := e.SessionEnded(context.Background(), "sess_gone", "user_1"); err != nil {
		t.Fatalf("SessionEnded: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.events))
	}
	payload := pub.events[0].data.(pushv1.SessionEventPayload)
	if payload.SessionID != "sess_gone" {
		t.Fatalf("payload session id %q", payload.SessionID)
	}
}

func TestSessionEndedWithoutUserIsIgnored(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEnforcer(t, newFakeProvider(), pub, 1)

	if err := e.SessionEnded(context.Background(), "sess_gone", ""); err != nil {
		t.Fatalf("SessionEnded: %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no publish for ownerless event")
	}
}

func TestConfigValidation(t *testing.T) {
	provider := newFakeProvider()
	if _, err := New(nil, provider, &fakePublisher{}, Config{MaxActiveSessions: 0, RevokeConcurrency: 1}); err == nil {
		t.Fatal("expected error for zero session limit")
	}
	if _, err := New(nil, provider, &fakePublisher{}, Config{MaxActiveSessions: 1, RevokeConcurrency: 0}); err == nil {
		t.Fatal("expected error for zero concurrency")
	}
	if _, err := New(nil, nil, &fakePublisher{}, Config{MaxActiveSessions: 1, RevokeConcurrency: 1}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}
