// Package changestream implements the engine's publish-subscribe change
// bus (spec.md §4.9): subscribers register with an optional filter and
// receive insert/update/remove events after each mutation is journalled and
// applied. Publish enqueues each event synchronously, in mutation order;
// callbacks then run on a per-subscriber goroutine. Modeled on the teacher's
// pkg/events.Broker, with per-subscriber bounded queues and panic-isolated
// delivery.
package changestream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/monarch/internal/record"
)

// ChangeType identifies the kind of mutation that produced an Event.
type ChangeType string

const (
	Insert ChangeType = "insert"
	Update ChangeType = "update"
	Remove ChangeType = "remove"
)

// Event is delivered to subscribers after a mutation is applied.
type Event struct {
	Type        ChangeType
	Collection  string
	Document    record.Record
	OldDocument record.Record
	Timestamp   time.Time
}

// Filter narrows which events a subscriber receives. A zero Filter matches
// everything. Predicate, if set, is applied last and may inspect Document.
type Filter struct {
	Collection string
	Type       ChangeType
	Predicate  func(Event) bool
}

func (f Filter) matches(ev Event) bool {
	if f.Collection != "" && f.Collection != ev.Collection {
		return false
	}
	if f.Type != "" && f.Type != ev.Type {
		return false
	}
	if f.Predicate != nil && !f.Predicate(ev) {
		return false
	}
	return true
}

// Callback is invoked once per delivered event.
type Callback func(Event)

// DefaultQueueSize is the default bound on a subscriber's pending-event
// queue (spec.md §5 backpressure policy).
const DefaultQueueSize = 1024

type subscriber struct {
	id     int64
	filter Filter
	ch     chan Event
	cb     Callback
}

// Bus is a single database instance's change-event publisher.
type Bus struct {
	mu        sync.Mutex
	subs      map[int64]*subscriber
	nextID    int64
	queueSize int
	log       zerolog.Logger
	wg        sync.WaitGroup
	closed    bool
}

// NewBus constructs a Bus. queueSize <= 0 uses DefaultQueueSize.
func NewBus(queueSize int, log zerolog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		subs:      make(map[int64]*subscriber),
		queueSize: queueSize,
		log:       log,
	}
}

// Subscribe registers cb to receive events matching filter and returns a
// subscription id usable with Unsubscribe. cb runs on a dedicated goroutine
// so a slow or panicking subscriber never blocks Publish or other
// subscribers (spec.md §4.9).
func (b *Bus) Subscribe(filter Filter, cb Callback) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscriber{
		id:     id,
		filter: filter,
		ch:     make(chan Event, b.queueSize),
		cb:     cb,
	}
	b.subs[id] = sub

	b.wg.Add(1)
	go b.drain(sub)
	return id
}

func (b *Bus) drain(sub *subscriber) {
	defer b.wg.Done()
	for ev := range sub.ch {
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("collection", ev.Collection).
				Msg("changestream: subscriber callback panicked, subscriber protected, continuing")
		}
	}()
	sub.cb(ev)
}

// Unsubscribe stops delivery to the given subscription and releases it.
func (b *Bus) Unsubscribe(id int64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish delivers ev to every matching subscriber. Delivery into each
// subscriber's queue is non-blocking: a full queue means that subscriber is
// slow or stuck, so it is dropped and a diagnostic is logged rather than
// applying backpressure to the mutator (spec.md §5).
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	matched := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter.matches(ev) {
			matched = append(matched, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range matched {
		select {
		case sub.ch <- ev:
		default:
			b.log.Warn().
				Int64("subscriber_id", sub.id).
				Str("collection", ev.Collection).
				Msg("changestream: subscriber queue overflow, dropping subscriber")
			b.Unsubscribe(sub.id)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close unsubscribes every subscriber and waits for their drain goroutines
// to finish, used when the database shuts down.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[int64]*subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
	}
	b.wg.Wait()
}
