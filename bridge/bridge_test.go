package bridge

import (
	"strings"
	"testing"

	"github.com/widgetkit/topicbus/bus"
)

// --- Wire codec ---

func TestWireCodec_RoundTrip(t *testing.T) {
	msg := &bus.Message{
		Topic:         "contacts.item.state.42",
		Data:          map[string]any{"id": "42", "name": "Ada"},
		Retain:        true,
		ReplyTo:       "_reply.abc",
		CorrelationID: "abc",
	}

	data, err := encodeWire(msg, map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encodeWire error: %v", err)
	}

	w, err := decodeWire(data)
	if err != nil {
		t.Fatalf("decodeWire error: %v", err)
	}

	if w.Topic != msg.Topic {
		t.Errorf("topic = %q, want %q", w.Topic, msg.Topic)
	}
	if !w.Retain {
		t.Error("retain flag should survive the hop")
	}
	if w.ReplyTo != msg.ReplyTo || w.CorrelationID != msg.CorrelationID {
		t.Error("request/reply fields should survive the hop")
	}
	if w.Headers["k"] != "v" {
		t.Errorf("headers = %v, want k=v", w.Headers)
	}

	payload, ok := w.Data.(map[string]any)
	if !ok || payload["name"] != "Ada" {
		t.Errorf("data = %v, want the decoded object", w.Data)
	}
}

func TestWireCodec_RejectsUnmarshalable(t *testing.T) {
	msg := &bus.Message{
		Topic: "t",
		Data:  make(chan int), // not JSON-marshalable
	}
	if _, err := encodeWire(msg, nil); err == nil {
		t.Error("encodeWire should fail for non-serializable payloads")
	}
}

func TestDecodeWire_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"empty topic", `{"data": 1}`},
		{"wildcard topic", `{"topic": "foo.*"}`},
	}

	for _, tt := range tests {
		if _, err := decodeWire([]byte(tt.data)); err == nil {
			t.Errorf("%s: decodeWire should fail", tt.name)
		}
	}
}

// --- Header helpers ---

func TestMergeHeaders(t *testing.T) {
	msg := &bus.Message{
		Topic:   "t",
		Headers: map[string]string{"trace": "abc"},
	}

	headers := mergeHeaders(msg, "bridge-1")
	if headers[OriginHeader] != "bridge-1" {
		t.Errorf("origin = %q, want bridge-1", headers[OriginHeader])
	}
	if headers["trace"] != "abc" {
		t.Error("existing headers should be preserved")
	}
	if len(msg.Headers) != 1 {
		t.Error("the original message headers must not be mutated")
	}
}

func TestCopyHeaders_NilSafe(t *testing.T) {
	headers := copyHeaders(nil)
	if headers == nil {
		t.Fatal("copyHeaders should return a usable map")
	}
	headers["k"] = "v"
}

// --- Subject mapping ---

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"*", ">"},
		{"contacts.item.state.*", "contacts.item.state.*"},
		{"ui.toast.show", "ui.toast.show"},
	}

	for _, tt := range tests {
		if got := subjectFor(tt.pattern); got != tt.want {
			t.Errorf("subjectFor(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestLifecycleTopics(t *testing.T) {
	for _, topic := range []string{TopicNATSConnected, TopicNATSDisconnected, TopicWSConnected, TopicWSDisconnected} {
		if err := bus.ValidateTopic(topic); err != nil {
			t.Errorf("lifecycle topic %q should be publishable: %v", topic, err)
		}
	}
	if !strings.HasPrefix(TopicWSDisconnected, "ws.") {
		t.Error("ws lifecycle topics should live under ws.*")
	}
}

func TestNewNATSBridge_NilBus(t *testing.T) {
	if _, err := NewNATSBridge(nil, DefaultNATSConfig()); err != ErrNilBus {
		t.Errorf("error = %v, want ErrNilBus", err)
	}
}

func TestNewWSBridge_Validation(t *testing.T) {
	if _, err := NewWSBridge(nil, DefaultWSConfig()); err != ErrNilBus {
		t.Errorf("error = %v, want ErrNilBus", err)
	}

	b := bus.New(bus.DefaultConfig())
	defer b.Close()
	if _, err := NewWSBridge(b, WSConfig{}); err != ErrNoURL {
		t.Errorf("error = %v, want ErrNoURL", err)
	}
}
