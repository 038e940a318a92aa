package bus

import (
	"errors"
	"strings"
	"time"

	"github.com/widgetkit/topicbus/logging"
)

// Common errors.
var (
	ErrInvalidTopic   = errors.New("invalid topic")
	ErrInvalidPattern = errors.New("invalid pattern")
	ErrClosed         = errors.New("bus closed")
	ErrRequestTimeout = errors.New("request timeout")
	ErrNoReplyTo      = errors.New("message has no reply topic")
)

// Message represents a message carried on the bus.
type Message struct {
	// Topic the message was published to. Always a literal topic,
	// never a pattern.
	Topic string

	// Data is the message payload.
	Data any

	// Retain marks the message as the topic's retained message.
	Retain bool

	// ReplyTo is the ephemeral reply topic for request/reply.
	// Empty for plain publishes.
	ReplyTo string

	// CorrelationID pairs a request with its reply.
	// Empty for plain publishes.
	CorrelationID string

	// Headers carries optional string metadata, e.g. bridge origin
	// tags or trace context.
	Headers map[string]string

	// Timestamp is when the bus accepted the message.
	Timestamp time.Time

	// seq orders messages accepted by the same bus. Retained replay
	// sorts on it so replay follows publish order.
	seq uint64
}

// Header returns a header value, or "" when absent.
func (m *Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// Subscriber receives messages whose topics match a subscription.
type Subscriber interface {
	// Deliver handles one message. A returned error is logged and
	// contained by the dispatcher; it never reaches the publisher
	// and never stops delivery to later subscribers.
	Deliver(msg *Message) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(msg *Message) error

// Deliver implements Subscriber.
func (f SubscriberFunc) Deliver(msg *Message) error {
	return f(msg)
}

// PublishOptions control a single publish.
type PublishOptions struct {
	// Retain stores the message as the topic's retained message,
	// replacing any previous one.
	Retain bool

	// ReplyTo is the reply topic for request/reply publishes.
	ReplyTo string

	// CorrelationID pairs the message with a pending request.
	CorrelationID string

	// Headers carries optional string metadata.
	Headers map[string]string
}

// SubscribeOptions control a subscription.
type SubscribeOptions struct {
	// Retained replays matching retained messages to the new
	// subscriber, synchronously, before Subscribe returns.
	Retained bool

	// Owner identifies the subscribing collaborator in logs.
	Owner string
}

// Config holds bus configuration.
type Config struct {
	// Logger receives dispatch diagnostics (subscriber failures).
	// Default: logging.New().
	Logger *logging.Logger

	// DefaultRequestTimeout applies when Request is called with a
	// zero timeout.
	// Default: 5s
	DefaultRequestTimeout time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultRequestTimeout: 5 * time.Second,
	}
}

// ValidateTopic checks that a publish topic is well formed: non-empty,
// dot-separated, no empty segments, no wildcard characters.
func ValidateTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	for _, seg := range strings.Split(topic, ".") {
		if seg == "" || strings.Contains(seg, "*") {
			return ErrInvalidTopic
		}
	}
	return nil
}
