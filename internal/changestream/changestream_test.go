package changestream

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/monarch/internal/record"
)

func TestPublishOrderingAndOldDocument(t *testing.T) {
	bus := NewBus(16, zerolog.Nop())
	defer bus.Close()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 3)

	bus.Subscribe(Filter{}, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.Publish(Event{Type: Insert, Collection: "users", Document: record.Record{"_id": "a"}})
	bus.Publish(Event{Type: Update, Collection: "users", Document: record.Record{"_id": "a", "x": 1}, OldDocument: record.Record{"_id": "a"}})
	bus.Publish(Event{Type: Remove, Collection: "users", Document: record.Record{"_id": "a", "x": 1}})

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, Insert, got[0].Type)
	assert.Equal(t, Update, got[1].Type)
	assert.Equal(t, Remove, got[2].Type)
	assert.Equal(t, record.Record{"_id": "a"}, got[1].OldDocument)
}

func TestFilterByCollectionAndType(t *testing.T) {
	bus := NewBus(16, zerolog.Nop())
	defer bus.Close()

	received := make(chan Event, 4)
	bus.Subscribe(Filter{Collection: "orders", Type: Insert}, func(ev Event) {
		received <- ev
	})

	bus.Publish(Event{Type: Insert, Collection: "users"})
	bus.Publish(Event{Type: Update, Collection: "orders"})
	bus.Publish(Event{Type: Insert, Collection: "orders"})

	select {
	case ev := <-received:
		assert.Equal(t, "orders", ev.Collection)
		assert.Equal(t, Insert, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected one matching event")
	}

	select {
	case <-received:
		t.Fatal("unexpected second event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(16, zerolog.Nop())
	defer bus.Close()

	bus.Subscribe(Filter{}, func(Event) { panic("boom") })

	received := make(chan Event, 1)
	bus.Subscribe(Filter{}, func(ev Event) { received <- ev })

	bus.Publish(Event{Type: Insert, Collection: "x"})

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("second subscriber should still receive the event")
	}
}

func TestOverflowDropsSubscriber(t *testing.T) {
	bus := NewBus(1, zerolog.Nop())
	defer bus.Close()

	block := make(chan struct{})
	id := bus.Subscribe(Filter{}, func(Event) { <-block })

	// First event occupies the worker goroutine; second fills the queue;
	// a third must overflow and drop the subscriber.
	bus.Publish(Event{Type: Insert, Collection: "x"})
	bus.Publish(Event{Type: Insert, Collection: "x"})
	bus.Publish(Event{Type: Insert, Collection: "x"})

	time.Sleep(50 * time.Millisecond)
	bus.mu.Lock()
	_, stillSubscribed := bus.subs[id]
	bus.mu.Unlock()
	assert.False(t, stillSubscribed)

	close(block)
}
