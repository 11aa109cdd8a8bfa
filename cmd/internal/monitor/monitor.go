// Package monitor watches a user's private session channel on the push relay
// and signs the local client out when its session is ended elsewhere.
//
// It speaks the relay's websocket wire protocol directly: connect, authorize
// the private channel over HTTP, subscribe, then answer pings while waiting
// for a session-ended event addressed to the local session.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"

	pushv1 "carteira/shared/contracts/push/v1"
)

const maxReadBytes = 1 << 20 // 1MiB

var (
	ErrConfig           = errors.New("monitor: invalid config")
	ErrAttemptsExceeded = errors.New("monitor: reconnect attempts exhausted")
	errChannelAuth      = errors.New("monitor: channel authorization rejected")
)

// Config describes one watched session.
type Config struct {
	// RelayURL is the relay's websocket base, e.g. "wss://ws-mt1.example.com".
	RelayURL string
	// RelayKey is the relay application key included in the endpoint path.
	RelayKey string
	// AuthURL is the server's private-channel authorization endpoint.
	AuthURL string
	// Token is the bearer session token presented to AuthURL.
	Token string

	// UserID selects the private channel to watch.
	UserID string
	// SessionID is the local session. Events naming a different session are
	// ignored; events naming no session apply to every listener.
	SessionID string

	// SignInURL is where the user lands after a forced sign-out.
	SignInURL string

	DialTimeout time.Duration
	StepTimeout time.Duration

	// MaxAttempts bounds consecutive failed connection attempts. The counter
	// resets once a subscription is established.
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c Config) validate() error {
	if strings.TrimSpace(c.RelayURL) == "" || strings.TrimSpace(c.RelayKey) == "" {
		return fmt.Errorf("%w: relay url and key are required", ErrConfig)
	}
	if strings.TrimSpace(c.AuthURL) == "" {
		return fmt.Errorf("%w: auth url is required", ErrConfig)
	}
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrConfig)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1", ErrConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 10 * time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.SignInURL == "" {
		c.SignInURL = "/sign-in"
	}
	return c
}

// Monitor runs the watch loop. SignOut and Navigate fire at most once, in
// that order, the first time a matching session-ended event arrives.
type Monitor struct {
	log  *slog.Logger
	cfg  Config
	http *http.Client

	signOut  func(context.Context) error
	navigate func(url string)
	fired    bool
}

func New(log *slog.Logger, cfg Config, signOut func(context.Context) error, navigate func(url string)) (*Monitor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if signOut == nil {
		return nil, fmt.Errorf("%w: sign-out callback is required", ErrConfig)
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Monitor{
		log:      log,
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.StepTimeout},
		signOut:  signOut,
		navigate: navigate,
	}, nil
}

// Run watches the channel until a matching session-ended event ends the
// session (nil), the context is canceled, or the attempt budget runs out.
func (m *Monitor) Run(ctx context.Context) error {
	channel := pushv1.ChannelForUser(m.cfg.UserID)
	endpoint, err := wsEndpoint(m.cfg.RelayURL, m.cfg.RelayKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	attempt := 0
	for {
		subscribed, err := m.watch(ctx, endpoint, channel)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}

		if subscribed {
			attempt = 0
		}
		attempt++
		if attempt >= m.cfg.MaxAttempts {
			return fmt.Errorf("%w: last error: %v", ErrAttemptsExceeded, err)
		}

		wait := m.backoff(attempt)
		m.log.Warn("monitor.reconnect", "attempt", attempt, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// watch runs one connection. It returns subscribed=true once the channel
// subscription succeeded, so the caller can reset its attempt budget even
// when the connection later drops.
func (m *Monitor) watch(ctx context.Context, endpoint, channel string) (subscribed bool, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	conn, resp, err := websocket.Dial(dialCtx, endpoint, nil)
	cancel()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	conn.SetReadLimit(maxReadBytes)

	socketID, err := m.awaitConnectionEstablished(ctx, conn)
	if err != nil {
		return false, err
	}

	auth, err := m.authorizeChannel(ctx, socketID, channel)
	if err != nil {
		return false, err
	}

	if err := m.subscribe(ctx, conn, channel, auth); err != nil {
		return false, err
	}
	m.log.Info("monitor.subscribed", "channel", channel)

	for {
		f, err := m.readFrame(ctx, conn, 0)
		if err != nil {
			return true, err
		}
		done, err := m.handleFrame(ctx, conn, channel, f)
		if err != nil {
			return true, err
		}
		if done {
			return true, nil
		}
	}
}

func (m *Monitor) awaitConnectionEstablished(ctx context.Context, conn *websocket.Conn) (string, error) {
	f, err := m.readFrame(ctx, conn, m.cfg.StepTimeout)
	if err != nil {
		return "", fmt.Errorf("await connection: %w", err)
	}
	if f.Event != eventConnectionEstablished {
		return "", fmt.Errorf("expected %s, got %q", eventConnectionEstablished, f.Event)
	}
	var data connectionEstablishedData
	if err := decodeFrameData(f.Data, &data); err != nil {
		return "", fmt.Errorf("connection data: %w", err)
	}
	if strings.TrimSpace(data.SocketID) == "" {
		return "", errors.New("connection frame missing socket_id")
	}
	return data.SocketID, nil
}

// authorizeChannel asks the server to sign the private-channel subscription.
func (m *Monitor) authorizeChannel(ctx context.Context, socketID, channel string) (string, error) {
	form := url.Values{}
	form.Set("socket_id", socketID)
	form.Set("channel_name", channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+m.cfg.Token)

	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		return "", fmt.Errorf("auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", errChannelAuth, resp.StatusCode)
	}

	var payload struct {
		Auth string `json:"auth"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("auth response: %w", err)
	}
	if strings.TrimSpace(payload.Auth) == "" {
		return "", fmt.Errorf("%w: empty auth signature", errChannelAuth)
	}
	return payload.Auth, nil
}

func (m *Monitor) subscribe(ctx context.Context, conn *websocket.Conn, channel, auth string) error {
	msg, err := encodeFrame(eventSubscribe, "", subscribeData{Auth: auth, Channel: channel})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, m.cfg.StepTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		f, err := m.readFrame(ctx, conn, m.cfg.StepTimeout)
		if err != nil {
			return fmt.Errorf("await subscription: %w", err)
		}
		switch f.Event {
		case eventSubscriptionSucceeded:
			if f.Channel != channel {
				return fmt.Errorf("subscription confirmed for wrong channel %q", f.Channel)
			}
			return nil
		case eventProtocolError:
			var data protocolErrorData
			_ = decodeFrameData(f.Data, &data)
			return fmt.Errorf("relay error %d: %s", data.Code, data.Message)
		default:
			// The relay may interleave other frames before the confirmation.
		}
	}
}

// handleFrame processes one frame from an established subscription. It
// reports done=true when a matching session-ended event was handled.
func (m *Monitor) handleFrame(ctx context.Context, conn *websocket.Conn, channel string, f frame) (done bool, err error) {
	switch f.Event {
	case eventPing:
		pong, err := encodeFrame(eventPong, "", struct{}{})
		if err != nil {
			return false, err
		}
		writeCtx, cancel := context.WithTimeout(ctx, m.cfg.StepTimeout)
		defer cancel()
		if err := conn.Write(writeCtx, websocket.MessageText, pong); err != nil {
			return false, fmt.Errorf("pong: %w", err)
		}
		return false, nil

	case eventProtocolError:
		var data protocolErrorData
		_ = decodeFrameData(f.Data, &data)
		return false, fmt.Errorf("relay error %d: %s", data.Code, data.Message)

	case pushv1.EventSessionEnded:
		if f.Channel != channel {
			return false, nil
		}
		var payload pushv1.SessionEventPayload
		if err := decodeFrameData(f.Data, &payload); err != nil {
			m.log.Warn("monitor.bad_payload", "err", err)
			return false, nil
		}
		if payload.SessionID != "" && m.cfg.SessionID != "" && payload.SessionID != m.cfg.SessionID {
			m.log.Debug("monitor.other_session_ended", "session_id", payload.SessionID)
			return false, nil
		}
		m.forceSignOut(ctx, payload)
		return true, nil

	default:
		return false, nil
	}
}

func (m *Monitor) forceSignOut(ctx context.Context, payload pushv1.SessionEventPayload) {
	if m.fired {
		return
	}
	m.fired = true

	m.log.Info("monitor.session_ended", "session_id", payload.SessionID, "message", payload.Message)
	if err := m.signOut(ctx); err != nil {
		m.log.Error("monitor.signout_failed", "err", err)
	}
	if m.navigate != nil {
		m.navigate(forcedRedirectURL(m.cfg.SignInURL))
	}
}

// forcedRedirectURL marks the sign-in URL so the destination can explain the
// forced sign-out instead of showing a plain login form.
func forcedRedirectURL(signIn string) string {
	u, err := url.Parse(signIn)
	if err != nil {
		return signIn
	}
	q := u.Query()
	q.Set("forcedRedirect", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

// readFrame reads one frame, skipping non-text messages. A zero timeout
// means the read is bounded only by ctx.
func (m *Monitor) readFrame(ctx context.Context, conn *websocket.Conn, timeout time.Duration) (frame, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			return frame{}, err
		}
		if mt != websocket.MessageText {
			continue
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			return frame{}, fmt.Errorf("bad frame: %w", err)
		}
		return f, nil
	}
}

func (m *Monitor) backoff(attempt int) time.Duration {
	wait := m.cfg.BaseBackoff << (attempt - 1)
	if wait > m.cfg.MaxBackoff || wait <= 0 {
		wait = m.cfg.MaxBackoff
	}
	// Full jitter keeps a fleet of reconnecting clients from thundering in.
	return time.Duration(rand.Int64N(int64(wait)) + 1)
}
