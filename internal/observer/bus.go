package observer

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// subscriberBuffer is how many pending events a slow subscriber may queue
// before Publish starts dropping its oldest backlog rather than blocking
// the publisher or any other subscriber.
const subscriberBuffer = 64

// Bus is a simple fan-out: a set of subscriber channels keyed by id, written
// once per Subscribe/Unsubscribe call and read on every Publish. A failure
// or stall in one subscriber — a full channel, a panicking callback further
// downstream — never blocks another subscriber or the caller of Publish.
type Bus struct {
	mu    sync.Mutex
	subs  map[int]chan Event
	nextID int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new observer and returns its id (for Unsubscribe)
// and a receive-only channel of events published from this point forward.
func (b *Bus) Subscribe() (id int, events <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id = b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes an observer and closes its channel. Idempotent.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish fans an event out to every current subscriber. A subscriber whose
// buffer is full has its oldest queued event dropped to make room — the
// dashboard is a best-effort observer, not a durable log, and a stalled
// consumer must never apply backpressure to execution.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
				log.Warn().Int("subscriber", id).Msg("observer bus: dropped event for slow subscriber")
			}
		}
	}
}
