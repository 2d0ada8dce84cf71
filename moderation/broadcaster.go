package moderation

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// subscriberBuffer is how many events a slow subscriber may fall behind before events are dropped.
const subscriberBuffer = 32

// Publisher is what the post workflow depends on.
type Publisher interface {
	Publish(event Event)
}

type subscriber struct {
	events  chan Event
	dropped atomic.Int64
}

// Broadcaster manages moderation subscribers and fans events out to them.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	// `mu` protects the subscribers map. Publishing only needs the read lock.
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	seq         atomic.Int64
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates and returns a new Broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers a new subscriber and returns its id and receive-only event channel.
// The caller must Unsubscribe when it stops reading.
func (b *Broadcaster) Subscribe() (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	sub := &subscriber{events: make(chan Event, subscriberBuffer)}
	b.subscribers[id] = sub
	log.Printf("Moderation subscriber registered: %s", id)
	return id, sub.events
}

// Unsubscribe removes the subscriber and closes its channel. Unknown ids are ignored.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[id]
	if !ok {
		return
	}
	// Closing the channel under the write lock guarantees Publish never sends on it afterwards.
	close(sub.events)
	delete(b.subscribers, id)
	if n := sub.dropped.Load(); n > 0 {
		log.Printf("Moderation subscriber %s removed (%d events dropped)", id, n)
	} else {
		log.Printf("Moderation subscriber %s removed", id)
	}
}

// Publish stamps the event with a sequence id and offers it to every subscriber.
func (b *Broadcaster) Publish(event Event) {
	event.ID = strconv.FormatInt(b.seq.Add(1), 10)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subscribers {
		select {
		case sub.events <- event:
		default:
			if sub.dropped.Add(1) == 1 {
				log.Printf("Moderation subscriber %s is not keeping up; dropping events", id)
			}
		}
	}
}

// Subscribers returns the ids of the connected subscribers.
func (b *Broadcaster) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	return ids
}

// Close disconnects every subscriber. Their streams end once they drain the closed channel.
func (b *Broadcaster) Close() {
	for _, id := range b.Subscribers() {
		b.Unsubscribe(id)
	}
}
