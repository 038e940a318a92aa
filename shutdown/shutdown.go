package shutdown

import (
	"context"
	"errors"
	"time"

	"github.com/widgetkit/topicbus/bus"
	"github.com/widgetkit/topicbus/logging"
)

// Common errors.
var (
	// ErrAlreadyStopped indicates shutdown was already initiated.
	ErrAlreadyStopped = errors.New("shutdown already initiated")

	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed to stop.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// TopicShuttingDown is published on the configured bus before any
// handler runs.
const TopicShuttingDown = "sys.shutdown"

// Well-known phases. Lower phases stop first.
const (
	// PhaseTransport stops bridges and other remote attachments, so
	// nothing new arrives while the rest winds down.
	PhaseTransport = 10

	// PhaseApp stops stores, views, and application components.
	PhaseApp = 50

	// PhaseCore closes the bus itself.
	PhaseCore = 90

	// PhaseFlush runs last, for telemetry providers and log sinks.
	PhaseFlush = 100
)

// Handler is implemented by components that need graceful teardown.
// The context is cancelled when the shutdown timeout expires.
type Handler interface {
	Stop(ctx context.Context) error
}

// Func adapts a plain function into a Handler.
type Func func(ctx context.Context) error

// Stop implements Handler.
func (f Func) Stop(ctx context.Context) error {
	return f(ctx)
}

// Result records one handler's teardown.
type Result struct {
	// Name of the handler.
	Name string

	// Phase the handler was registered in.
	Phase int

	// Duration of the handler's Stop call.
	Duration time.Duration

	// Err is any error returned by the handler.
	Err error
}

// Config configures the coordinator.
type Config struct {
	// Bus, when set, receives a TopicShuttingDown message before any
	// handler runs.
	Bus *bus.Bus

	// Logger receives per-handler progress. Defaults to a new logger.
	Logger *logging.Logger

	// DefaultTimeout bounds signal-triggered shutdowns.
	// Default: 30 seconds
	DefaultTimeout time.Duration

	// DefaultPhase is assigned by RegisterHandler.
	// Default: PhaseApp
	DefaultPhase int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 30 * time.Second,
		DefaultPhase:   PhaseApp,
	}
}

// registration holds a registered handler with its metadata.
type registration struct {
	name    string
	handler Handler
	phase   int
}
