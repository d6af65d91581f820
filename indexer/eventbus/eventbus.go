// Package eventbus is an in-process typed publish/subscribe bus: each
// subscriber receives the events published to its topic after it
// subscribed, buffered per-subscriber so one slow reader cannot stall
// publication to the others. Delivery is best-effort: an event published
// while a subscriber's buffer is full is not delivered to that
// subscriber and is not redelivered later.
package eventbus

import (
	"log"
	"sync"

	"github.com/midnight-ntwrk/ledger-indexer-core/internal/metrics"
)

// Event is one published fact, tagged with the topic subscribers filter
// on (e.g. "wallet:<wallet id>", "block").
type Event struct {
	Topic string
	Data  any
}

const subscriberBufferSize = 256

type subscriber struct {
	topic string
	ch    chan Event
}

// Bus fans out published events to every subscriber whose topic matches.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscription is a live subscriber handle; callers must call Close when
// done to release its buffer and stop it from backing up Publish.
type Subscription struct {
	bus *Bus
	id  int
	ch  chan Event
}

func (s *Subscription) Events() <-chan Event { return s.ch }

func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}

// Subscribe registers a new subscriber for topic; it receives every
// event published to that topic from this point on.
func (b *Bus) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBufferSize)
	b.subs[id] = &subscriber{topic: topic, ch: ch}
	return &Subscription{bus: b, id: id, ch: ch}
}

// Publish delivers event to every subscriber on event.Topic. For a
// subscriber whose buffer is full, the event is dropped with a log line
// rather than blocking publication; the subscriber stays attached and
// keeps receiving later events, and it is not told that one was missed.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	metrics.EventsPublished.WithLabelValues(event.Topic).Inc()
	for _, sub := range b.subs {
		if sub.topic != event.Topic {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			log.Printf("[eventbus] subscriber buffer full for topic %q, dropping event", event.Topic)
		}
	}
}

// SubscriberCount reports how many subscribers are attached to topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, sub := range b.subs {
		if sub.topic == topic {
			n++
		}
	}
	return n
}
