// Package metrics defines the Prometheus collectors for the Carteira server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookEvents counts received webhook events by type and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carteira",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Identity webhook events received, by event type and result.",
	}, []string{"type", "result"})

	// SessionsRevoked counts excess sessions revoked by the enforcer.
	SessionsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carteira",
		Subsystem: "enforcer",
		Name:      "sessions_revoked_total",
		Help:      "Excess sessions revoked through the identity provider.",
	})

	// RelayPublishFailures counts failed publishes to the push relay.
	RelayPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "carteira",
		Subsystem: "relay",
		Name:      "publish_failures_total",
		Help:      "Failed event publishes to the push relay.",
	})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
