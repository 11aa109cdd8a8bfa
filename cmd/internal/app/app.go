// Package app wires the Carteira server runtime: config, logging, storage,
// the webhook pipeline, and the HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"carteira/cmd/internal/enforcer"
	"carteira/cmd/internal/identity"
	"carteira/cmd/internal/relay"
	"carteira/cmd/internal/secret"
	"carteira/cmd/internal/subscription"
	"carteira/cmd/internal/webhook"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App owns the HTTP server wiring and the webhook processing dependencies.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	verifier  *identity.Verifier
	hooks     *webhook.Handler
	sessions  *identity.SessionsHandler
	relayAuth *relay.AuthHandler
	subs      *subscription.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	provider, err := identity.NewClient(identity.ClientConfig{
		BaseURL: cfg.IdentityBaseURL,
		APIKey:  cfg.IdentityAPIKey,
		Timeout: cfg.IdentityTimeout,
	})
	if err != nil {
		return nil, err
	}

	verifier, err := identity.NewVerifier(cfg.SessionTokenSecret)
	if err != nil {
		return nil, err
	}

	pushRelay, err := relay.NewPusherRelay(relay.Config{
		AppID:   cfg.RelayAppID,
		Key:     cfg.RelayKey,
		Secret:  cfg.RelaySecret,
		Cluster: cfg.RelayCluster,
		Timeout: cfg.RelayTimeout,
	})
	if err != nil {
		return nil, err
	}

	enf, err := enforcer.New(log, provider, pushRelay, enforcer.Config{
		MaxActiveSessions: cfg.MaxActiveSessions,
		RevokeConcurrency: cfg.RevokeConcurrency,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		log:       log,
		verifier:  verifier,
		sessions:  identity.NewSessionsHandler(log, provider),
		relayAuth: relay.NewAuthHandler(log, provider, pushRelay),
	}

	// User mirroring and the subscription API need the database; the session
	// enforcement path does not, so the server degrades to webhook-plus-relay
	// mode when no DB is configured.
	var users webhook.UserSink
	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		a.dbPool = pool
		a.dbEnabled = true
		log.Info("db.enabled.postgres_store")

		store, err := subscription.NewPostgresStore(pool, subscription.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		sealer, err := secret.NewSealer(cfg.AccountSealKey)
		if err != nil {
			pool.Close()
			return nil, err
		}
		svc, err := subscription.NewService(store, sealer)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.subs, err = subscription.NewHandler(log, svc)
		if err != nil {
			pool.Close()
			return nil, err
		}
		dir, err := subscription.NewDirectory(store)
		if err != nil {
			pool.Close()
			return nil, err
		}
		users = dir
	} else {
		log.Info("db.disabled.webhook_relay_mode")
	}

	hooks, err := webhook.NewHandler(log, cfg.WebhookSecret, enf, users)
	if err != nil {
		if a.dbPool != nil {
			a.dbPool.Close()
		}
		return nil, err
	}
	a.hooks = hooks

	return a, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.verifier, a.hooks, a.sessions, a.relayAuth, a.subs)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
