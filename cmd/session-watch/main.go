// session-watch subscribes to a user's private session channel and reports
// when the session it watches is ended elsewhere. It is the command-line
// rendition of the in-app session monitor, useful for smoke-testing the
// full webhook -> enforcement -> relay path against a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"carteira/cmd/internal/app"
	"carteira/cmd/internal/monitor"
)

func main() {
	var (
		relayURL    = flag.String("relay", "", "Relay websocket base URL, e.g. wss://ws-mt1.pusher.com")
		relayKey    = flag.String("key", "", "Relay application key")
		authURL     = flag.String("auth", "http://127.0.0.1:8080/api/pusher/auth", "Channel authorization endpoint")
		token       = flag.String("token", "", "Bearer session token")
		userID      = flag.String("user", "", "User id owning the watched channel")
		sessionID   = flag.String("session", "", "Local session id (empty matches any session-ended event)")
		maxAttempts = flag.Int("max-attempts", 5, "Consecutive failed connection attempts before giving up")
		baseBackoff = flag.Duration("backoff", time.Second, "Base reconnect backoff")
		maxBackoff  = flag.Duration("max-backoff", 30*time.Second, "Reconnect backoff ceiling")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg := monitor.Config{
		RelayURL:    withEnvDefault(*relayURL, "CARTEIRA_RELAY_WS_URL"),
		RelayKey:    withEnvDefault(*relayKey, "CARTEIRA_RELAY_KEY"),
		AuthURL:     *authURL,
		Token:       withEnvDefault(*token, "CARTEIRA_SESSION_TOKEN"),
		UserID:      *userID,
		SessionID:   *sessionID,
		MaxAttempts: *maxAttempts,
		BaseBackoff: *baseBackoff,
		MaxBackoff:  *maxBackoff,
	}

	log := app.NewLogger(app.EnvString("CARTEIRA_LOG_LEVEL", "info"))

	signOut := func(context.Context) error {
		fmt.Println("session ended remotely: signing out")
		return nil
	}
	navigate := func(url string) {
		fmt.Printf("redirect to %s\n", url)
	}

	m, err := monitor.New(log, cfg, signOut, navigate)
	if err != nil {
		fmt.Fprintln(os.Stderr, "session-watch:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "session-watch:", err)
		os.Exit(1)
	}
}

func withEnvDefault(v, envKey string) string {
	if v != "" {
		return v
	}
	return app.EnvString(envKey, "")
}
