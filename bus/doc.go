// Package bus provides the topic-based publish/subscribe core that
// widget-toolkit collaborators communicate through.
//
// # Overview
//
// A Bus carries messages between independent collaborators (widgets,
// storage adapters, network bridges) that never hold references to each
// other. Delivery is synchronous and in-process: Publish invokes every
// matching subscriber before it returns. Each Bus instance owns its own
// subscription registry and retained store, so tests can run isolated
// buses side by side.
//
// # Topics and Patterns
//
// Topics are dot-separated strings ("contacts.item.save"). A
// subscription pattern wildcards single segments with "*"
// ("contacts.item.state.*"), and the bare pattern "*" matches every
// topic. Patterns are parsed once at subscribe time; publishing only
// compares pre-split segments.
//
// # Patterns of Use
//
// Pub/Sub - broadcast to all matching subscribers:
//
//	b := bus.New(bus.DefaultConfig())
//	sub, _ := b.Subscribe([]string{"contacts.*.*"}, bus.SubscriberFunc(func(msg *bus.Message) error {
//	    // Handle message
//	    return nil
//	}), bus.SubscribeOptions{})
//	defer sub.Unsubscribe()
//
//	b.Publish("contacts.item.save", item, bus.PublishOptions{})
//
// Retained messages - late joiners see the last value:
//
//	b.Publish("contacts.list.state", list, bus.PublishOptions{Retain: true})
//	// A later Subscribe with SubscribeOptions{Retained: true} replays
//	// the list before any live message.
//
// Request/Reply - synchronous calls over topics:
//
//	// Responder
//	b.Subscribe([]string{"svc.echo"}, bus.SubscriberFunc(func(msg *bus.Message) error {
//	    return b.Respond(msg, msg.Data)
//	}), bus.SubscribeOptions{})
//
//	// Requester
//	reply, err := b.Request("svc.echo", payload, time.Second)
//
// # Failure Containment
//
// A subscriber that returns an error or panics never affects the
// publisher or later subscribers in the same dispatch; failures are
// logged and delivery continues. Publish itself only fails for a
// malformed topic or a closed bus.
package bus
