package app

import (
	"net/http"
	"time"

	"carteira/cmd/internal/identity"
	"carteira/cmd/internal/metrics"
	"carteira/cmd/internal/relay"
	"carteira/cmd/internal/subscription"
	"carteira/cmd/internal/webhook"

	"github.com/jackc/pgx/v5/pgxpool"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	verifier *identity.Verifier,
	hooks *webhook.Handler,
	sessions *identity.SessionsHandler,
	relayAuth *relay.AuthHandler,
	subs *subscription.Handler,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled && dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", metrics.Handler())

	// Webhooks authenticate by signature, not by session.
	mux.Handle("POST /webhooks/identity", hooks)

	// Everything else requires a bearer session token.
	authed := http.NewServeMux()
	authed.Handle("GET /api/sessions", sessions)
	authed.Handle("POST /api/pusher/auth", relayAuth)
	if subs != nil {
		subs.Register(authed)
	}
	mux.Handle("/api/", identity.RequireSession(verifier, authed))
}
