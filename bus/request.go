package bus

import (
	"time"

	"github.com/google/uuid"
)

// ReplyPrefix is the topic prefix for ephemeral reply topics generated
// by Request.
const ReplyPrefix = "_reply."

// Request publishes a message carrying a fresh correlation id and an
// ephemeral reply topic, then waits for the first reply with the same
// correlation id. A zero timeout uses the configured default. On expiry
// before any reply, Request fails with ErrRequestTimeout. Exactly one
// reply is consumed; later replies on the ephemeral topic are dropped,
// and the subscription itself is removed once Request returns.
func (b *Bus) Request(topic string, data any, timeout time.Duration) (*Message, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if timeout <= 0 {
		timeout = b.config.DefaultRequestTimeout
	}

	correlationID := uuid.NewString()
	replyTo := ReplyPrefix + correlationID

	replyCh := make(chan *Message, 1)
	sub, err := b.Subscribe([]string{replyTo}, SubscriberFunc(func(msg *Message) error {
		if msg.CorrelationID != correlationID {
			// Stray traffic on the reply topic, not ours.
			return nil
		}
		select {
		case replyCh <- msg:
		default:
		}
		return nil
	}), SubscribeOptions{Owner: "request"})
	if err != nil {
		return nil, err
	}
	// Unsubscribe is idempotent, so the fulfilled and timed-out paths
	// can both tear down without racing.
	defer sub.Unsubscribe()

	err = b.Publish(topic, data, PublishOptions{
		ReplyTo:       replyTo,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}

	// A synchronous responder has already replied during Publish; the
	// buffered channel holds its message. Otherwise wait.
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		return nil, ErrRequestTimeout
	}
}

// Respond publishes a reply to a request message, carrying the request's
// correlation id back on its reply topic. Messages without a reply
// topic are rejected with ErrNoReplyTo.
func (b *Bus) Respond(req *Message, data any) error {
	if req == nil || req.ReplyTo == "" {
		return ErrNoReplyTo
	}
	return b.Publish(req.ReplyTo, data, PublishOptions{
		CorrelationID: req.CorrelationID,
	})
}
