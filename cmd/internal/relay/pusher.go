package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	pusher "github.com/pusher/pusher-http-go/v5"
)

const defaultTimeout = 5 * time.Second

// ErrConfig is returned for invalid relay configuration.
var ErrConfig = errors.New("invalid relay config")

// Config holds the hosted relay credentials.
type Config struct {
	AppID   string
	Key     string
	Secret  string
	Cluster string
	// Timeout bounds each trigger call. Zero means a 5s default.
	Timeout time.Duration
}

// PusherRelay implements Publisher and ChannelAuthorizer on the Pusher
// Channels HTTP API.
//
// It is constructed once by the composition root and injected; there is no
// process-global cached instance, so tests substitute a fake Publisher.
type PusherRelay struct {
	client pusher.Client
}

// NewPusherRelay constructs a relay client from config.
func NewPusherRelay(cfg Config) (*PusherRelay, error) {
	if strings.TrimSpace(cfg.AppID) == "" ||
		strings.TrimSpace(cfg.Key) == "" ||
		strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("%w: app id, key and secret are required", ErrConfig)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &PusherRelay{
		client: pusher.Client{
			AppID:      cfg.AppID,
			Key:        cfg.Key,
			Secret:     cfg.Secret,
			Cluster:    cfg.Cluster,
			Secure:     true,
			HTTPClient: &http.Client{Timeout: timeout},
		},
	}, nil
}

// Trigger publishes one event on a channel.
func (r *PusherRelay) Trigger(ctx context.Context, channel, event string, data any) error {
	// The underlying client has no context plumbing; honor cancellation
	// up-front and rely on the HTTP client timeout for the call itself.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.client.Trigger(channel, event, data); err != nil {
		return fmt.Errorf("relay trigger %s on %s: %w", event, channel, err)
	}
	return nil
}

// AuthorizeChannel signs a private-channel subscription request.
func (r *PusherRelay) AuthorizeChannel(params []byte) ([]byte, error) {
	return r.client.AuthorizePrivateChannel(params)
}
