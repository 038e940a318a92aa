package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/widgetkit/topicbus/bus"
	"github.com/widgetkit/topicbus/logging"
	"github.com/widgetkit/topicbus/telemetry"
)

// WebSocket lifecycle topics.
const (
	TopicWSConnected    = "ws." + EventConnected
	TopicWSDisconnected = "ws." + EventDisconnected
)

// WSConfig holds WebSocket bridge configuration.
type WSConfig struct {
	// Topics are the local patterns forwarded to the peer.
	// Default: ["*"].
	Topics []string

	// URL is the WebSocket endpoint (e.g., "ws://localhost:8080/bus").
	URL string

	// ReconnectWait is the pause between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects caps reconnection attempts per outage.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout bounds the dial (initial and reconnect).
	ConnectTimeout time.Duration

	// WriteTimeout bounds each outgoing frame.
	WriteTimeout time.Duration

	// Logger for bridge diagnostics. Default: logging.New().
	Logger *logging.Logger
}

// DefaultWSConfig returns configuration with sensible defaults.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		Topics:         []string{bus.MatchAll},
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// WSBridge mirrors local bus traffic over a WebSocket connection. The
// peer is expected to speak the same JSON wire envelope; a second
// WSBridge on the far side completes a bus-to-bus link.
type WSBridge struct {
	id     string
	b      *bus.Bus
	config WSConfig
	log    *logging.Logger
	tracer *telemetry.Tracer

	mu    sync.Mutex // guards conn writes and swaps
	conn  *websocket.Conn
	local *bus.Subscription

	closed atomic.Bool
}

// NewWSBridge dials the peer and starts forwarding. The read loop runs
// until Close; dropped connections are redialed per the configured
// reconnect policy, with each transition reported on "ws.connected" /
// "ws.disconnected".
func NewWSBridge(b *bus.Bus, cfg WSConfig) (*WSBridge, error) {
	if b == nil {
		return nil, ErrNilBus
	}
	if cfg.URL == "" {
		return nil, ErrNoURL
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = []string{bus.MatchAll}
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultWSConfig().ReconnectWait
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultWSConfig().ConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWSConfig().WriteTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	br := &WSBridge{
		id:     uuid.NewString(),
		b:      b,
		config: cfg,
		log:    log.WithComponent("bridge.ws"),
		tracer: telemetry.GetTracer(),
	}

	conn, err := br.dial()
	if err != nil {
		return nil, fmt.Errorf("ws connect: %w", err)
	}
	br.conn = conn

	br.local, err = b.Subscribe(cfg.Topics, bus.SubscriberFunc(br.handleLocal), bus.SubscribeOptions{
		Owner: "bridge.ws",
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	go br.readLoop(conn)

	br.publishLifecycle(TopicWSConnected, nil)
	return br, nil
}

// dial opens one WebSocket connection.
func (br *WSBridge) dial() (*websocket.Conn, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = br.config.ConnectTimeout
	conn, _, err := dialer.Dial(br.config.URL, nil)
	return conn, err
}

// handleLocal forwards a locally published message to the peer.
func (br *WSBridge) handleLocal(msg *bus.Message) error {
	if br.closed.Load() {
		return nil
	}
	if msg.Header(OriginHeader) == br.id {
		return nil
	}
	if isWSLifecycle(msg.Topic) {
		return nil
	}

	ctx := telemetry.ExtractHeaders(context.Background(), msg.Headers)
	ctx, span := br.tracer.StartForwardSpan(ctx, msg.Topic, "out")

	headers := copyHeaders(msg.Headers)
	telemetry.InjectHeaders(ctx, headers)

	data, err := encodeWire(msg, headers)
	if err == nil {
		err = br.write(data)
	}
	telemetry.EndSpan(span, err)

	if err != nil {
		br.log.Warn("forward failed", map[string]interface{}{
			"topic": msg.Topic,
			"error": err.Error(),
		})
	}
	return nil
}

// write sends one frame under the write lock.
func (br *WSBridge) write(data []byte) error {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.conn == nil {
		return ErrClosed
	}
	br.conn.SetWriteDeadline(time.Now().Add(br.config.WriteTimeout))
	return br.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop delivers peer frames onto the local bus and redials on
// failure until Close or the reconnect budget runs out.
func (br *WSBridge) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if br.closed.Load() {
				return
			}
			br.publishLifecycle(TopicWSDisconnected, err)

			conn = br.reconnect()
			if conn == nil {
				return
			}
			continue
		}
		br.handleRemote(data)
	}
}

// reconnect redials per config. Returns nil when the bridge is closed
// or the attempt budget is exhausted.
func (br *WSBridge) reconnect() *websocket.Conn {
	for attempt := 0; br.config.MaxReconnects < 0 || attempt < br.config.MaxReconnects; attempt++ {
		time.Sleep(br.config.ReconnectWait)
		if br.closed.Load() {
			return nil
		}

		conn, err := br.dial()
		if err != nil {
			br.log.Warn("reconnect failed", map[string]interface{}{
				"attempt": attempt + 1,
				"error":   err.Error(),
			})
			continue
		}

		br.mu.Lock()
		br.conn = conn
		br.mu.Unlock()

		br.publishLifecycle(TopicWSConnected, nil)
		return conn
	}

	br.log.Error("reconnect budget exhausted", map[string]interface{}{
		"url": br.config.URL,
	})
	return nil
}

// handleRemote publishes one peer frame onto the local bus.
func (br *WSBridge) handleRemote(data []byte) {
	w, err := decodeWire(data)
	if err != nil {
		br.log.Warn("dropping undecodable frame", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if w.Headers[OriginHeader] == br.id {
		return
	}

	headers := w.Headers
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	headers[OriginHeader] = br.id

	err = br.b.Publish(w.Topic, w.Data, bus.PublishOptions{
		Retain:        w.Retain,
		ReplyTo:       w.ReplyTo,
		CorrelationID: w.CorrelationID,
		Headers:       headers,
	})
	if err != nil {
		br.log.Warn("local publish failed", map[string]interface{}{
			"topic": w.Topic,
			"error": err.Error(),
		})
	}
}

// publishLifecycle reports a connection event on the local bus.
func (br *WSBridge) publishLifecycle(topic string, cause error) {
	ev := Lifecycle{URL: br.config.URL}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := br.b.Publish(topic, ev, bus.PublishOptions{
		Headers: map[string]string{OriginHeader: br.id},
	}); err != nil {
		br.log.Warn("lifecycle publish failed", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
	}
}

// isWSLifecycle reports whether a topic is this bridge's own lifecycle
// channel.
func isWSLifecycle(topic string) bool {
	return strings.HasPrefix(topic, "ws.")
}

// ID returns the bridge's origin id.
func (br *WSBridge) ID() string {
	return br.id
}

// Close stops forwarding and closes the connection. Closing twice is a
// no-op.
func (br *WSBridge) Close() error {
	if br.closed.Swap(true) {
		return nil
	}
	if br.local != nil {
		br.local.Unsubscribe()
	}

	br.mu.Lock()
	conn := br.conn
	br.conn = nil
	br.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
