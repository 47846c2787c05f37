package events

import (
	"sync"

	"github.com/google/uuid"
)

// Dispatcher produces the ordered event sequence a subscription consumes.
type Dispatcher interface {
	Subscribe(f Filter) (*Subscription, error)
}

// Subscription is one subscriber's view of the event stream. Events are
// received from Events(); the channel is closed when the subscription ends,
// either by Close or because the subscriber fell too far behind.
type Subscription struct {
	id     uuid.UUID
	filter Filter
	ch     chan Event
	broker *Broker
}

// Events returns the subscription's event channel.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close detaches the subscription from the broker.
func (s *Subscription) Close() {
	s.broker.remove(s.id)
}

// Broker is the in-process event dispatcher. Publishing never blocks: a
// subscriber whose buffer is full is dropped, which bounds memory use no
// matter how slowly sessions acknowledge.
type Broker struct {
	mu     sync.Mutex
	seq    uint64
	buffer int
	subs   map[uuid.UUID]*Subscription
	closed bool
}

// NewBroker creates a broker with the given per-subscription buffer size.
func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Broker{
		buffer: bufferSize,
		subs:   make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers a new subscriber after validating its filter.
func (b *Broker) Subscribe(f Filter) (*Subscription, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s := &Subscription{
		id:     uuid.New(),
		filter: f,
		ch:     make(chan Event, b.buffer),
		broker: b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s, nil
	}
	b.subs[s.id] = s
	return s, nil
}

// Publish assigns the event its sequence number and fans it out to every
// matching subscriber.
func (b *Broker) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.seq++
	e.Sequence = b.seq

	for id, s := range b.subs {
		if !s.filter.Matches(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			// Subscriber lagged past its buffer; drop it.
			delete(b.subs, id)
			close(s.ch)
		}
	}
}

// SubscriberCount reports the number of attached subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches and terminates every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}
}

func (b *Broker) remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(s.ch)
	}
}
