// Package relay publishes session lifecycle events to connected clients
// through a hosted push-messaging service and guards access to the per-user
// private channels those events travel on.
//
// Delivery is best-effort: there is no acknowledgment and no replay. A client
// that is offline when an event is published learns about the revocation on
// its next authenticated request instead.
package relay

import "context"

// Publisher is the outbound port to the push-messaging relay.
type Publisher interface {
	// Trigger publishes one event on a channel.
	Trigger(ctx context.Context, channel, event string, data any) error
}

// ChannelAuthorizer signs private-channel subscription requests.
//
// params is the relay's raw auth body ("socket_id=...&channel_name=...");
// the response is the relay's auth JSON handed back to the subscribing client.
type ChannelAuthorizer interface {
	AuthorizeChannel(params []byte) ([]byte, error)
}
