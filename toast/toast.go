package toast

import (
	"errors"

	"github.com/widgetkit/topicbus/bus"
)

// Common errors.
var (
	ErrNilBus       = errors.New("toast requires a bus")
	ErrEmptyMessage = errors.New("toast message must not be empty")
)

// Topic carries toast notifications.
const Topic = "ui.toast.show"

// DefaultDuration is how long a toast stays visible, in milliseconds.
const DefaultDuration = 4000

// Severity levels.
const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeError   = "error"
)

// Toast is a transient user-facing notification.
type Toast struct {
	// Message is the text shown to the user.
	Message string `json:"message"`

	// Type is the severity level (info, success, warning, error).
	Type string `json:"type"`

	// Duration is the display time in milliseconds.
	Duration int `json:"duration"`
}

// Notifier publishes toasts on a bus.
type Notifier struct {
	b *bus.Bus
}

// NewNotifier creates a notifier.
func NewNotifier(b *bus.Bus) (*Notifier, error) {
	if b == nil {
		return nil, ErrNilBus
	}
	return &Notifier{b: b}, nil
}

// Show publishes a toast. Missing fields get defaults.
func (n *Notifier) Show(t Toast) error {
	if t.Message == "" {
		return ErrEmptyMessage
	}
	if t.Type == "" {
		t.Type = TypeInfo
	}
	if t.Duration <= 0 {
		t.Duration = DefaultDuration
	}
	return n.b.Publish(Topic, t, bus.PublishOptions{})
}

// Info shows an informational toast.
func (n *Notifier) Info(message string) error {
	return n.Show(Toast{Message: message, Type: TypeInfo})
}

// Success shows a success toast.
func (n *Notifier) Success(message string) error {
	return n.Show(Toast{Message: message, Type: TypeSuccess})
}

// Warning shows a warning toast.
func (n *Notifier) Warning(message string) error {
	return n.Show(Toast{Message: message, Type: TypeWarning})
}

// Error shows an error toast.
func (n *Notifier) Error(message string) error {
	return n.Show(Toast{Message: message, Type: TypeError})
}

// Listen subscribes a handler to the toast topic. Payloads that arrived
// over a bridge come in as generic maps and are coerced back into
// toasts; anything else is ignored.
func Listen(b *bus.Bus, handler func(Toast)) (*bus.Subscription, error) {
	if b == nil {
		return nil, ErrNilBus
	}
	return b.Subscribe([]string{Topic}, bus.SubscriberFunc(func(msg *bus.Message) error {
		t, ok := decode(msg.Data)
		if !ok {
			return nil
		}
		handler(t)
		return nil
	}), bus.SubscribeOptions{Owner: "toast"})
}

func decode(data any) (Toast, bool) {
	switch v := data.(type) {
	case Toast:
		return v, true
	case *Toast:
		if v == nil {
			return Toast{}, false
		}
		return *v, true
	case map[string]any:
		t := Toast{}
		if s, ok := v["message"].(string); ok {
			t.Message = s
		}
		if s, ok := v["type"].(string); ok {
			t.Type = s
		}
		switch d := v["duration"].(type) {
		case int:
			t.Duration = d
		case float64:
			// JSON numbers decode as float64.
			t.Duration = int(d)
		}
		return t, t.Message != ""
	default:
		return Toast{}, false
	}
}
