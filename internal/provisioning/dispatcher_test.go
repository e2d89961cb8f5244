package provisioning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRoutesByKind(t *testing.T) {
	t.Parallel()

	observer := NewMockObserver()
	d := NewDispatcher(observer)

	var got Step
	d.Register(StepKind("count"), func(ctx context.Context, step Step) {
		got = step
	})

	d.Dispatch(context.Background(), countStep{n: 42})
	require.NotNil(t, got)
	assert.Equal(t, 42, got.(countStep).n)
}

func TestDispatcherDropsUnregisteredKind(t *testing.T) {
	t.Parallel()

	observer := NewMockObserver()
	d := NewDispatcher(observer)

	d.Dispatch(context.Background(), countStep{n: 1})

	events := observer.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventStepDropped, events[0].Type)
	assert.Equal(t, StepKind("count"), events[0].Step)
}

func TestDispatcherRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(NewMockObserver())
	d.Register(StepKind("count"), func(ctx context.Context, step Step) {})

	assert.Panics(t, func() {
		d.Register(StepKind("count"), func(ctx context.Context, step Step) {})
	})
}

func TestMockObserverSharesLogAcrossFields(t *testing.T) {
	t.Parallel()

	parent := NewMockObserver()
	child := parent.WithFields(map[string]string{"experiment": "7"})

	child.Event(Event{Type: EventPollPending, Message: "waiting"})
	parent.Event(Event{Type: EventChainCompleted})

	events := parent.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "7", events[0].Fields["experiment"])
	assert.Equal(t, EventChainCompleted, events[1].Type)
}
