package bridge

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/widgetkit/topicbus/bus"
)

// getNATSURL returns the NATS URL for testing, or skips the test.
func getNATSURL(t *testing.T) string {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://localhost:4222"
	}

	if testing.Short() {
		t.Skip("skipping NATS test in short mode")
	}

	// Try to connect
	b := quietBus(t)
	cfg := DefaultNATSConfig()
	cfg.URL = url
	cfg.ConnectTimeout = 2 * time.Second
	cfg.MaxReconnects = 0

	br, err := NewNATSBridge(b, cfg)
	if err != nil {
		t.Skipf("skipping: NATS not available at %s: %v", url, err)
	}
	br.Close()

	return url
}

func quietNATSConfig(url string) NATSConfig {
	cfg := DefaultNATSConfig()
	cfg.URL = url
	cfg.Logger = quietLogger()
	return cfg
}

// --- Integration Tests ---

func TestNATSBridge_ForwardsBetweenBuses(t *testing.T) {
	url := getNATSURL(t)

	busA := quietBus(t)
	busB := quietBus(t)

	brA, err := NewNATSBridge(busA, quietNATSConfig(url))
	if err != nil {
		t.Fatalf("NewNATSBridge(A) error: %v", err)
	}
	defer brA.Close()

	brB, err := NewNATSBridge(busB, quietNATSConfig(url))
	if err != nil {
		t.Fatalf("NewNATSBridge(B) error: %v", err)
	}
	defer brB.Close()

	var mu sync.Mutex
	var got []*bus.Message
	busB.Subscribe([]string{"chat.*"}, bus.SubscriberFunc(func(msg *bus.Message) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	}), bus.SubscribeOptions{})

	if err := busA.Publish("chat.room1", "over nats", bus.PublishOptions{}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	waitFor(t, "bridged message", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0].Data != "over nats" {
		t.Errorf("data = %v, want the original payload", got[0].Data)
	}
}

func TestNATSBridge_RequestAcrossBridge(t *testing.T) {
	url := getNATSURL(t)

	busA := quietBus(t)
	busB := quietBus(t)

	brA, _ := NewNATSBridge(busA, quietNATSConfig(url))
	defer brA.Close()
	brB, _ := NewNATSBridge(busB, quietNATSConfig(url))
	defer brB.Close()

	busB.Subscribe([]string{"svc.remote-echo"}, bus.SubscriberFunc(func(msg *bus.Message) error {
		return busB.Respond(msg, msg.Data)
	}), bus.SubscribeOptions{})

	reply, err := busA.Request("svc.remote-echo", "ping", 2*time.Second)
	if err != nil {
		t.Fatalf("Request across bridge error: %v", err)
	}
	if reply.Data != "ping" {
		t.Errorf("reply = %v, want ping", reply.Data)
	}
}

func TestNATSBridge_PublishesConnectedEvent(t *testing.T) {
	url := getNATSURL(t)
	b := quietBus(t)

	var mu sync.Mutex
	connected := 0
	b.Subscribe([]string{TopicNATSConnected}, bus.SubscriberFunc(func(*bus.Message) error {
		mu.Lock()
		connected++
		mu.Unlock()
		return nil
	}), bus.SubscribeOptions{})

	br, err := NewNATSBridge(b, quietNATSConfig(url))
	if err != nil {
		t.Fatalf("NewNATSBridge error: %v", err)
	}
	defer br.Close()

	mu.Lock()
	defer mu.Unlock()
	if connected != 1 {
		t.Errorf("connected events = %d, want 1", connected)
	}
}
