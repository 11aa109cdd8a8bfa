package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Relay client protocol, version 7. Frames are JSON objects with an event
// name, an optional channel, and event data. The relay double-encodes the
// data of server-sent frames as a JSON string.
const (
	protocolVersion = "7"
	clientName      = "carteira-session-watch"
	clientVersion   = "1.0"

	eventConnectionEstablished = "pusher:connection_established"
	eventSubscribe             = "pusher:subscribe"
	eventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	eventPing                  = "pusher:ping"
	eventPong                  = "pusher:pong"
	eventProtocolError         = "pusher:error"
)

type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type connectionEstablishedData struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type subscribeData struct {
	Auth    string `json:"auth"`
	Channel string `json:"channel"`
}

type protocolErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// decodeFrameData unwraps the relay's string-wrapped event data. Frames the
// client builds itself carry plain objects, so both encodings are accepted.
func decodeFrameData(raw json.RawMessage, v any) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return errors.New("empty frame data")
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fmt.Errorf("unwrap frame data: %w", err)
		}
		return json.Unmarshal([]byte(inner), v)
	}
	return json.Unmarshal(raw, v)
}

func encodeFrame(event, channel string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", event, err)
	}
	return json.Marshal(frame{Event: event, Channel: channel, Data: raw})
}

// wsEndpoint builds the relay's websocket URL for an app key.
func wsEndpoint(base, key string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("relay url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("relay url: unsupported scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("relay url: missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/app/" + key
	q := url.Values{}
	q.Set("protocol", protocolVersion)
	q.Set("client", clientName)
	q.Set("version", clientVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
