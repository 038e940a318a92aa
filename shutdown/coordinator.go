package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/widgetkit/topicbus/bus"
	"github.com/widgetkit/topicbus/logging"
)

// Coordinator runs registered stop handlers in phase order.
type Coordinator struct {
	config Config
	log    *logging.Logger

	mu       sync.Mutex
	handlers []registration

	once    sync.Once
	stopErr error
	done    chan struct{}
	signals chan os.Signal
}

// NewCoordinator creates a coordinator.
func NewCoordinator(config Config) *Coordinator {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if config.DefaultPhase == 0 {
		config.DefaultPhase = DefaultConfig().DefaultPhase
	}
	log := config.Logger
	if log == nil {
		log = logging.New()
	}

	return &Coordinator{
		config:  config,
		log:     log.WithComponent("shutdown"),
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
}

// RegisterHandler adds a handler in the default phase.
func (c *Coordinator) RegisterHandler(name string, handler Handler) {
	c.Register(name, handler, c.config.DefaultPhase)
}

// Register adds a handler in a specific phase. Lower phases stop
// first; handlers sharing a phase stop concurrently.
func (c *Coordinator) Register(name string, handler Handler, phase int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{
		name:    name,
		handler: handler,
		phase:   phase,
	})
}

// RegisterFunc adds a plain function as a handler.
func (c *Coordinator) RegisterFunc(name string, fn func(ctx context.Context) error, phase int) {
	c.Register(name, Func(fn), phase)
}

// Shutdown runs all handlers. The first call performs the teardown;
// later calls return ErrAlreadyStopped without waiting.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	ran := false
	c.once.Do(func() {
		ran = true
		c.stopErr = c.run(ctx)
		close(c.done)
	})
	if !ran {
		return ErrAlreadyStopped
	}
	return c.stopErr
}

// ShutdownWithTimeout runs Shutdown bounded by a timeout. A zero
// timeout uses the configured default.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signals, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-c.signals
		c.log.Info("signal received", map[string]interface{}{"signal": sig.String()})
		_ = c.ShutdownWithTimeout(c.config.DefaultTimeout)
	}()
}

// Trigger injects a synthetic SIGTERM. Useful in tests and for
// programmatic shutdown after HandleSignals.
func (c *Coordinator) Trigger() {
	select {
	case c.signals <- syscall.SIGTERM:
	default:
	}
}

// Done is closed when shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns the shutdown error. Only valid after Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.stopErr
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	c.announce()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var overallErr error
	for _, group := range groupByPhase(handlers) {
		select {
		case <-ctx.Done():
			c.log.Error("shutdown timed out", map[string]interface{}{
				"elapsed": time.Since(start).String(),
			})
			return ErrTimeout
		default:
		}

		for _, result := range c.runPhase(ctx, group) {
			if result.Err != nil {
				overallErr = ErrHandlerFailed
				c.log.Warn("handler failed", map[string]interface{}{
					"handler": result.Name,
					"phase":   result.Phase,
					"error":   result.Err.Error(),
				})
				continue
			}
			c.log.Debug("handler stopped", map[string]interface{}{
				"handler":  result.Name,
				"phase":    result.Phase,
				"duration": result.Duration.String(),
			})
		}
	}

	c.log.Info("shutdown complete", map[string]interface{}{
		"duration": time.Since(start).String(),
		"handlers": len(handlers),
	})
	return overallErr
}

// announce gives bus subscribers one last message before teardown.
func (c *Coordinator) announce() {
	if c.config.Bus == nil {
		return
	}
	err := c.config.Bus.Publish(TopicShuttingDown, nil, bus.PublishOptions{})
	if err != nil {
		c.log.Debug("shutdown announcement skipped", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// runPhase stops all handlers in one phase concurrently.
func (c *Coordinator) runPhase(ctx context.Context, handlers []registration) []Result {
	results := make([]Result, len(handlers))
	var wg sync.WaitGroup

	for i, reg := range handlers {
		wg.Add(1)
		go func(idx int, r registration) {
			defer wg.Done()
			start := time.Now()
			err := r.handler.Stop(ctx)
			results[idx] = Result{
				Name:     r.name,
				Phase:    r.phase,
				Duration: time.Since(start),
				Err:      err,
			}
		}(i, reg)
	}

	wg.Wait()
	return results
}

// groupByPhase splits sorted handlers into runs sharing a phase.
func groupByPhase(handlers []registration) [][]registration {
	var groups [][]registration
	var current []registration

	for _, h := range handlers {
		if len(current) > 0 && h.phase != current[0].phase {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, h)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}
