package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/widgetkit/topicbus/bus"
	"github.com/widgetkit/topicbus/logging"
	"github.com/widgetkit/topicbus/telemetry"
)

// NATS lifecycle topics.
const (
	TopicNATSConnected    = "nats." + EventConnected
	TopicNATSDisconnected = "nats." + EventDisconnected
)

// NATSConfig holds NATS bridge configuration.
type NATSConfig struct {
	// Topics are the local patterns forwarded to NATS and mirrored
	// back. Default: ["*"] (everything).
	Topics []string

	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	// Token for token-based auth.
	Token string

	// User and Password for basic auth.
	User     string
	Password string

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout for initial connection.
	ConnectTimeout time.Duration

	// Logger for bridge diagnostics. Default: logging.New().
	Logger *logging.Logger
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Topics:         []string{bus.MatchAll},
		URL:            nats.DefaultURL,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1, // Unlimited
		ConnectTimeout: 5 * time.Second,
	}
}

// NATSBridge mirrors local bus traffic onto NATS subjects and remote
// traffic back onto the bus.
type NATSBridge struct {
	id     string
	b      *bus.Bus
	conn   *nats.Conn
	config NATSConfig
	log    *logging.Logger
	tracer *telemetry.Tracer

	local  *bus.Subscription
	remote []*nats.Subscription
	closed atomic.Bool
}

// NewNATSBridge connects to NATS and starts forwarding. The bridge is
// live when the constructor returns; a "nats.connected" message has
// already been published locally.
func NewNATSBridge(b *bus.Bus, cfg NATSConfig) (*NATSBridge, error) {
	if b == nil {
		return nil, ErrNilBus
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = []string{bus.MatchAll}
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultNATSConfig().ReconnectWait
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultNATSConfig().ConnectTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	br := &NATSBridge{
		id:     uuid.NewString(),
		b:      b,
		config: cfg,
		log:    log.WithComponent("bridge.nats"),
		tracer: telemetry.GetTracer(),
	}

	conn, err := nats.Connect(cfg.URL, br.buildNATSOptions()...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	br.conn = conn

	for _, topic := range cfg.Topics {
		sub, err := conn.Subscribe(subjectFor(topic), br.handleRemote)
		if err != nil {
			br.Close()
			return nil, fmt.Errorf("nats subscribe %s: %w", topic, err)
		}
		br.remote = append(br.remote, sub)
	}

	br.local, err = b.Subscribe(cfg.Topics, bus.SubscriberFunc(br.handleLocal), bus.SubscribeOptions{
		Owner: "bridge.nats",
	})
	if err != nil {
		br.Close()
		return nil, err
	}

	br.publishLifecycle(TopicNATSConnected, nil)
	return br, nil
}

// buildNATSOptions constructs NATS connection options from config.
// NoEcho keeps our own published subjects from coming straight back.
func (br *NATSBridge) buildNATSOptions() []nats.Option {
	cfg := br.config
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.NoEcho(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			br.publishLifecycle(TopicNATSDisconnected, err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			br.publishLifecycle(TopicNATSConnected, nil)
		}),
	}

	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	return opts
}

// subjectFor maps a local topic pattern to a NATS subject. Dots and
// single-segment "*" translate directly; the bare match-everything
// pattern becomes the NATS full wildcard ">".
func subjectFor(pattern string) string {
	if pattern == bus.MatchAll {
		return ">"
	}
	return pattern
}

// handleLocal forwards a locally published message to NATS.
func (br *NATSBridge) handleLocal(msg *bus.Message) error {
	if br.closed.Load() {
		return nil
	}
	if msg.Header(OriginHeader) == br.id {
		// This bridge injected it; forwarding would loop.
		return nil
	}
	if isNATSLifecycle(msg.Topic) {
		return nil
	}

	ctx := telemetry.ExtractHeaders(context.Background(), msg.Headers)
	ctx, span := br.tracer.StartForwardSpan(ctx, msg.Topic, "out")

	headers := copyHeaders(msg.Headers)
	telemetry.InjectHeaders(ctx, headers)

	data, err := encodeWire(msg, headers)
	if err == nil {
		err = br.conn.Publish(msg.Topic, data)
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

// handleRemote publishes a NATS message onto the local bus.
func (br *NATSBridge) handleRemote(m *nats.Msg) {
	if br.closed.Load() {
		return
	}

	w, err := decodeWire(m.Data)
	if err != nil {
		br.log.Warn("dropping undecodable frame", map[string]interface{}{
			"subject": m.Subject,
			"error":   err.Error(),
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
func (br *NATSBridge) publishLifecycle(topic string, cause error) {
	ev := Lifecycle{URL: br.config.URL}
	if cause != nil {
		ev.Error = cause.Error()
	}
	// Tagged with our origin id so it is never forwarded back out.
	if err := br.b.Publish(topic, ev, bus.PublishOptions{
		Headers: map[string]string{OriginHeader: br.id},
	}); err != nil {
		br.log.Warn("lifecycle publish failed", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
	}
}

// isNATSLifecycle reports whether a topic is this bridge's own
// lifecycle channel.
func isNATSLifecycle(topic string) bool {
	return strings.HasPrefix(topic, "nats.")
}

// ID returns the bridge's origin id.
func (br *NATSBridge) ID() string {
	return br.id
}

// Close stops forwarding and closes the NATS connection. Closing twice
// is a no-op.
func (br *NATSBridge) Close() error {
	if br.closed.Swap(true) {
		return nil
	}
	if br.local != nil {
		br.local.Unsubscribe()
	}
	for _, sub := range br.remote {
		_ = sub.Unsubscribe()
	}
	if br.conn != nil {
		br.conn.Close()
	}
	return nil
}
