package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	id, events := bus.Subscribe(4)
	defer bus.Unsubscribe(id)

	bus.PublishNew(TypeTaskCreated, "task-1", map[string]any{"request_id": "req-1"})

	event := <-events
	assert.Equal(t, TypeTaskCreated, event.Type)
	assert.Equal(t, "task-1", event.ResourceID)
	assert.Equal(t, "req-1", event.Payload["request_id"])
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := New()
	id, events := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	// The second publish must not block even though nobody is draining.
	bus.PublishNew(TypeTaskUpdate, "task-1", nil)
	bus.PublishNew(TypeTaskUpdate, "task-2", nil)

	event := <-events
	assert.Equal(t, "task-1", event.ResourceID)
	select {
	case extra := <-events:
		t.Fatalf("expected second event to be dropped, got %v", extra)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	id, events := bus.Subscribe(1)

	bus.Unsubscribe(id)

	_, open := <-events
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.PublishNew(TypeTaskUpdate, "task-1", nil)
}
