// Package enforcer applies the single active session policy: whenever the
// identity provider reports a new session for a user, every older active
// session is revoked and the affected user is notified over their private
// push channel.
package enforcer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"carteira/cmd/internal/identity"
	"carteira/cmd/internal/metrics"
	"carteira/cmd/internal/relay"
	pushv1 "carteira/shared/contracts/push/v1"
)

const endedMessage = "You have been signed out because your account was used on another device."

// Config bounds the enforcer's behaviour.
type Config struct {
	// MaxActiveSessions is the number of sessions a user may keep.
	// Values below 1 are rejected.
	MaxActiveSessions int
	// RevokeConcurrency caps parallel revoke calls against the provider.
	RevokeConcurrency int
}

func (c Config) validate() error {
	if c.MaxActiveSessions < 1 {
		return fmt.Errorf("enforcer: max active sessions must be at least 1, got %d", c.MaxActiveSessions)
	}
	if c.RevokeConcurrency < 1 {
		return fmt.Errorf("enforcer: revoke concurrency must be at least 1, got %d", c.RevokeConcurrency)
	}
	return nil
}

// Enforcer reacts to identity provider session events.
type Enforcer struct {
	log      *slog.Logger
	provider identity.SessionAPI
	relay    relay.Publisher
	cfg      Config
}

func New(log *slog.Logger, provider identity.SessionAPI, publisher relay.Publisher, cfg Config) (*Enforcer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, errors.New("enforcer: nil session provider")
	}
	if publisher == nil {
		return nil, errors.New("enforcer: nil publisher")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Enforcer{log: log, provider: provider, relay: publisher, cfg: cfg}, nil
}

// SessionCreated lists the user's active sessions and revokes everything
// beyond the newest MaxActiveSessions. The session named in the event is the
// one the user just opened; it survives because the provider stamps it with
// the latest creation time.
func (e *Enforcer) SessionCreated(ctx context.Context, sessionID, userID string) error {
	sessions, err := e.provider.ListSessions(ctx, userID, identity.StatusActive)
	if err != nil {
		return fmt.Errorf("list active sessions for %s: %w", userID, err)
	}
	if len(sessions) <= e.cfg.MaxActiveSessions {
		e.log.Debug("enforcer.within_limit", "user_id", userID, "active", len(sessions))
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	stale := sessions[e.cfg.MaxActiveSessions:]

	revoked, err := e.revokeAll(ctx, userID, stale)
	if err != nil {
		return err
	}
	if len(revoked) == 0 {
		return nil
	}

	// One notification per enforcement pass, not per revoked session. The
	// payload carries one session id so a monitor bound to that session can
	// match it; monitors with no id of their own treat it as addressed to
	// them regardless.
	if err := e.publishEnded(ctx, userID, revoked[0]); err != nil {
		return err
	}

	e.log.Info("enforcer.sessions_revoked",
		"user_id", userID,
		"kept", sessionID,
		"revoked", len(revoked),
	)
	return nil
}

// SessionEnded republishes provider-side session terminations so monitors
// attached to the ended session sign out promptly.
func (e *Enforcer) SessionEnded(ctx context.Context, sessionID, userID string) error {
	if userID == "" {
		// Some end-of-session events arrive after the user record is gone
		// and carry no owner. Nothing to notify.
		e.log.Debug("enforcer.ended_without_user", "session_id", sessionID)
		return nil
	}
	return e.publishEnded(ctx, userID, sessionID)
}

// revokeAll revokes the given sessions concurrently. A session that another
// enforcement pass already revoked is not an error; it is counted as revoked
// here so the user is still notified.
func (e *Enforcer) revokeAll(ctx context.Context, userID string, stale []identity.Session) ([]string, error) {
	done := make([]bool, len(stale))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.RevokeConcurrency)
	for i, s := range stale {
		g.Go(func() error {
			_, err := e.provider.RevokeSession(gctx, s.ID)
			switch {
			case err == nil:
			case errors.Is(err, identity.ErrSessionAlreadyRevoked), errors.Is(err, identity.ErrSessionNotFound):
				e.log.Debug("enforcer.revoke_raced", "session_id", s.ID, "err", err)
			default:
				return fmt.Errorf("revoke session %s: %w", s.ID, err)
			}
			metrics.SessionsRevoked.Inc()
			done[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Preserve newest-first order so callers publish a stable session id.
	revoked := make([]string, 0, len(stale))
	for i, s := range stale {
		if done[i] {
			revoked = append(revoked, s.ID)
		}
	}
	return revoked, nil
}

func (e *Enforcer) publishEnded(ctx context.Context, userID, sessionID string) error {
	payload := pushv1.SessionEventPayload{
		Type:      pushv1.EventSessionEnded,
		SessionID: sessionID,
		Message:   endedMessage,
	}
	channel := pushv1.ChannelForUser(userID)
	if err := e.relay.Trigger(ctx, channel, pushv1.EventSessionEnded, payload); err != nil {
		metrics.RelayPublishFailures.Inc()
		return fmt.Errorf("publish %s on %s: %w", pushv1.EventSessionEnded, channel, err)
	}
	return nil
}
