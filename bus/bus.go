// Package bus is an in-process publish/subscribe fan-out keyed by topic.
//
// Delivery is synchronous and best-effort: a subscriber that is not registered
// at publish time never sees the event, and nothing is retried or persisted.
package bus

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"boardflow/domain"
)

// Handler receives every event published on a subscribed topic.
type Handler func(domain.Event)

type subscriber struct {
	id uint64
	fn Handler
}

// Bus fans out events to the subscribers of a topic, in subscription order.
// It is confined to one running process; the topic map is the only shared
// mutable state and is guarded by the mutex.
type Bus struct {
	logger *log.Logger

	mu     sync.Mutex
	nextID uint64
	topics map[string][]subscriber
}

// New creates an empty Bus. A nil logger falls back to the logrus standard logger.
func New(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Bus{logger: logger, topics: make(map[string][]subscriber)}
}

// Subscribe registers fn for topic and returns a capability that removes
// exactly this registration. Removing the last subscriber deletes the topic
// entry so churned boards do not accumulate. The returned func is idempotent.
func (b *Bus) Subscribe(topic string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.topics[topic]
			for i := range subs {
				if subs[i].id == id {
					subs = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(subs) == 0 {
				delete(b.topics, topic)
			} else {
				b.topics[topic] = subs
			}
		})
	}
}

// Publish delivers ev to every subscriber currently registered for topic,
// synchronously and in subscription order. A panicking subscriber is logged
// and does not stop delivery to the rest. Publish never fails from the
// caller's point of view.
func (b *Bus) Publish(topic string, ev domain.Event) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.Unlock()

	for i := range subs {
		b.deliver(topic, subs[i], ev)
	}
}

func (b *Bus) deliver(topic string, s subscriber, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(log.Fields{
				"topic": topic,
				"event": ev.Type,
			}).Errorf("bus subscriber panicked: %v", r)
		}
	}()
	s.fn(ev)
}

// ListenerCount reports how many subscribers topic currently has.
func (b *Bus) ListenerCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// ActiveTopics returns every topic with at least one subscriber.
func (b *Bus) ActiveTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	topics := make([]string, 0, len(b.topics))
	for t := range b.topics {
		topics = append(topics, t)
	}
	return topics
}
