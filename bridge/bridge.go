// Package bridge forwards bus traffic across process boundaries.
//
// # Overview
//
// A bridge is an ordinary bus collaborator: it subscribes to configured
// topic patterns, serializes matching messages onto a transport (NATS
// or WebSocket), and re-publishes messages arriving from the remote end
// onto the local bus. The bus core knows nothing about it.
//
// Every forwarded message crosses a serialization boundary: only
// JSON-marshalable payloads survive the hop, and delivery beyond the
// local bus is at-least-once. Each bridge owns its reconnect policy and
// reports connection lifecycle as ordinary bus messages
// ("nats.connected", "ws.disconnected", ...) instead of surfacing
// transport failures to publishers.
//
// Messages injected by a bridge carry its id in the OriginHeader
// header, so a bridge never forwards back what it just delivered.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/widgetkit/topicbus/bus"
)

// Common errors.
var (
	ErrClosed = errors.New("bridge closed")
	ErrNilBus = errors.New("bridge requires a bus")
	ErrNoURL  = errors.New("bridge requires a URL")
)

// OriginHeader carries the id of the bridge that injected a message
// into the local bus.
const OriginHeader = "bridge-origin"

// Lifecycle event suffixes. The full topic is "<kind>.<event>", e.g.
// "ws.disconnected".
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Lifecycle is the payload published on connection events.
type Lifecycle struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// wireMessage is the JSON envelope carried across the transport.
type wireMessage struct {
	Topic         string            `json:"topic"`
	Data          any               `json:"data,omitempty"`
	Retain        bool              `json:"retain,omitempty"`
	ReplyTo       string            `json:"reply_to,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// encodeWire serializes a bus message for the transport. Payloads that
// cannot be marshaled stop here and never leave the process.
func encodeWire(msg *bus.Message, headers map[string]string) ([]byte, error) {
	w := wireMessage{
		Topic:         msg.Topic,
		Data:          msg.Data,
		Retain:        msg.Retain,
		ReplyTo:       msg.ReplyTo,
		CorrelationID: msg.CorrelationID,
		Headers:       headers,
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode %s: %w", msg.Topic, err)
	}
	return data, nil
}

// decodeWire parses a transport frame back into a wire message.
func decodeWire(data []byte) (*wireMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bridge: decode: %w", err)
	}
	if err := bus.ValidateTopic(w.Topic); err != nil {
		return nil, fmt.Errorf("bridge: decode: %w", err)
	}
	return &w, nil
}

// mergeHeaders copies a message's headers and tags them with the
// bridge origin id.
func mergeHeaders(msg *bus.Message, originID string) map[string]string {
	headers := make(map[string]string, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[OriginHeader] = originID
	return headers
}

// copyHeaders clones headers for mutation (trace injection).
func copyHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}
