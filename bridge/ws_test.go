package bridge

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/widgetkit/topicbus/bus"
	"github.com/widgetkit/topicbus/logging"
)

// relayServer is a minimal hub: every frame from one client is
// broadcast to all other clients. Two bridges connected to it form a
// bus-to-bus link.
type relayServer struct {
	*httptest.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newRelayServer(t *testing.T) *relayServer {
	t.Helper()

	rs := &relayServer{clients: make(map[*websocket.Conn]bool)}
	upgrader := websocket.Upgrader{}

	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		rs.mu.Lock()
		rs.clients[conn] = true
		rs.mu.Unlock()

		defer func() {
			rs.mu.Lock()
			delete(rs.clients, conn)
			rs.mu.Unlock()
			conn.Close()
		}()

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			rs.mu.Lock()
			for peer := range rs.clients {
				if peer != conn {
					peer.WriteMessage(kind, data)
				}
			}
			rs.mu.Unlock()
		}
	}))

	t.Cleanup(rs.Close)
	return rs
}

func (rs *relayServer) wsURL() string {
	return "ws" + strings.TrimPrefix(rs.URL, "http")
}

func quietLogger() *logging.Logger {
	log := logging.New()
	log.SetOutput(io.Discard)
	return log
}

func quietBus(t *testing.T) *bus.Bus {
	t.Helper()
	b := bus.New(bus.Config{Logger: quietLogger()})
	t.Cleanup(func() { b.Close() })
	return b
}

func quietWSConfig(url string) WSConfig {
	cfg := DefaultWSConfig()
	cfg.URL = url
	cfg.Logger = quietLogger()
	return cfg
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// --- Integration Tests ---

func TestWSBridge_ForwardsBetweenBuses(t *testing.T) {
	rs := newRelayServer(t)

	busA := quietBus(t)
	busB := quietBus(t)

	brA, err := NewWSBridge(busA, quietWSConfig(rs.wsURL()))
	if err != nil {
		t.Fatalf("NewWSBridge(A) error: %v", err)
	}
	defer brA.Close()

	brB, err := NewWSBridge(busB, quietWSConfig(rs.wsURL()))
	if err != nil {
		t.Fatalf("NewWSBridge(B) error: %v", err)
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

	if err := busA.Publish("chat.room1", "hello across", bus.PublishOptions{}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	waitFor(t, "bridged message", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0].Data != "hello across" {
		t.Errorf("data = %v, want the original payload", got[0].Data)
	}
	if got[0].Header(OriginHeader) != brB.ID() {
		t.Error("bridged-in message should carry the receiving bridge's origin id")
	}
}

func TestWSBridge_RetainFlagSurvivesHop(t *testing.T) {
	rs := newRelayServer(t)

	busA := quietBus(t)
	busB := quietBus(t)

	brA, _ := NewWSBridge(busA, quietWSConfig(rs.wsURL()))
	defer brA.Close()
	brB, _ := NewWSBridge(busB, quietWSConfig(rs.wsURL()))
	defer brB.Close()

	busA.Publish("sensor.state", "v1", bus.PublishOptions{Retain: true})

	waitFor(t, "retained entry on bus B", func() bool {
		return busB.Retained("sensor.state") != nil
	})
}

func TestWSBridge_RequestAcrossBridge(t *testing.T) {
	rs := newRelayServer(t)

	busA := quietBus(t)
	busB := quietBus(t)

	brA, _ := NewWSBridge(busA, quietWSConfig(rs.wsURL()))
	defer brA.Close()
	brB, _ := NewWSBridge(busB, quietWSConfig(rs.wsURL()))
	defer brB.Close()

	// Responder lives on bus B; the reply topic is bridged back to A.
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

func TestWSBridge_PublishesConnectedEvent(t *testing.T) {
	rs := newRelayServer(t)
	b := quietBus(t)

	var mu sync.Mutex
	connected := 0
	b.Subscribe([]string{TopicWSConnected}, bus.SubscriberFunc(func(*bus.Message) error {
		mu.Lock()
		connected++
		mu.Unlock()
		return nil
	}), bus.SubscribeOptions{})

	br, err := NewWSBridge(b, quietWSConfig(rs.wsURL()))
	if err != nil {
		t.Fatalf("NewWSBridge error: %v", err)
	}
	defer br.Close()

	mu.Lock()
	defer mu.Unlock()
	if connected != 1 {
		t.Errorf("connected events = %d, want 1", connected)
	}
}

func TestWSBridge_DialFailure(t *testing.T) {
	b := quietBus(t)
	if _, err := NewWSBridge(b, quietWSConfig("ws://127.0.0.1:1/nope")); err == nil {
		t.Error("NewWSBridge should fail when the peer is unreachable")
	}
}

func TestWSBridge_CloseIdempotent(t *testing.T) {
	rs := newRelayServer(t)
	b := quietBus(t)

	br, err := NewWSBridge(b, quietWSConfig(rs.wsURL()))
	if err != nil {
		t.Fatalf("NewWSBridge error: %v", err)
	}

	if err := br.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
	if err := br.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
}
