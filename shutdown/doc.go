// Package shutdown coordinates graceful teardown of bus components.
//
// # Overview
//
// A typical process wires a bus, one or more bridges, stores, and a
// telemetry provider together. Stopping them in the wrong order drops
// in-flight messages: bridges must detach before the bus closes, and
// the telemetry provider must flush last. The coordinator runs
// registered stop handlers in phases, lower phases first, with
// handlers inside a phase stopping concurrently.
//
// # Usage
//
//	coord := shutdown.NewCoordinator(shutdown.Config{Bus: b, Logger: log})
//	coord.RegisterFunc("bridge", func(ctx context.Context) error {
//		bridge.Close()
//		return nil
//	}, shutdown.PhaseTransport)
//	coord.RegisterFunc("bus", func(ctx context.Context) error {
//		return b.Close()
//	}, shutdown.PhaseCore)
//	coord.HandleSignals()
//	<-coord.Done()
//
// When a bus is configured, the coordinator publishes "sys.shutdown"
// before any handler runs, giving subscribers one last chance to flush
// state.
package shutdown
