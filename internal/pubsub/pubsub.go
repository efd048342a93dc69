// Package pubsub implements the in-process event bus used to fan out new
// link events to GraphQL subscribers. The broker is process-scoped, created
// at startup and passed into the resolver set; the subscriber registry is
// safe under concurrent subscribe/unsubscribe from in-flight requests.
package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"linkfeed/internal/models"
)

// TopicNewLink carries every link created through the post mutation.
const TopicNewLink = "newLink"

// Broker is a typed in-process publish/subscribe channel. Each subscriber
// owns a bounded queue; when it overflows the oldest undelivered event is
// dropped, so slow consumers never block publishers.
type Broker struct {
	mu     sync.RWMutex
	buffer int
	subs   map[string]map[uuid.UUID]chan models.Link
}

// New creates a broker whose subscriber queues hold up to buffer events.
func New(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 1
	}

	return &Broker{
		buffer: buffer,
		subs:   map[string]map[uuid.UUID]chan models.Link{},
	}
}

// Publish delivers the link to every current subscriber of the topic.
// Delivery order to a given subscriber matches publish order.
func (b *Broker) Publish(topic string, link models.Link) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[topic] {
		select {
		case ch <- link:
		default:
			// Queue full: drop the oldest event, then retry once. The
			// second send can still lose the race against a concurrent
			// receiver, in which case the queue has room anyway.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- link:
			default:
			}
		}
	}
}

// Subscribe registers a new subscriber on the topic and returns its event
// channel. The registration is removed and the channel closed as soon as
// ctx is canceled.
func (b *Broker) Subscribe(ctx context.Context, topic string) <-chan models.Link {
	ch := make(chan models.Link, b.buffer)
	id := uuid.New()

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[uuid.UUID]chan models.Link{}
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(topic, id)
	}()

	return ch
}

// Subscribers reports the number of live registrations on the topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[topic])
}

func (b *Broker) unsubscribe(topic string, id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[topic][id]
	if !ok {
		return
	}

	delete(b.subs[topic], id)
	close(ch)
}
