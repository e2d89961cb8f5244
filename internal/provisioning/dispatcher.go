package provisioning

import (
	"context"
	"fmt"
)

// Handler executes one step variant.
type Handler func(ctx context.Context, step Step)

// Dispatcher maps step kinds to handlers. Registration happens once at
// wiring time; dispatch is read-only afterwards.
type Dispatcher struct {
	handlers map[StepKind]Handler
	observer Observer
}

// NewDispatcher builds an empty registry.
func NewDispatcher(observer Observer) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[StepKind]Handler),
		observer: observer,
	}
}

// Register binds a handler to a step kind. Re-registering a kind is a
// wiring bug and panics.
func (d *Dispatcher) Register(kind StepKind, handler Handler) {
	if _, dup := d.handlers[kind]; dup {
		panic(fmt.Sprintf("step kind %q registered twice", kind))
	}
	d.handlers[kind] = handler
}

// Dispatch runs the step's handler. An unregistered kind terminates the
// chain with an event rather than a panic: a scheduled step must never
// crash the worker.
func (d *Dispatcher) Dispatch(ctx context.Context, step Step) {
	handler, ok := d.handlers[step.Kind()]
	if !ok {
		d.observer.Event(Event{
			Type:    EventStepDropped,
			Step:    step.Kind(),
			Message: "no handler registered",
		})
		return
	}
	stepsDispatched.WithLabelValues(string(step.Kind())).Inc()
	handler(ctx, step)
}
