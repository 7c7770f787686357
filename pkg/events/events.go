package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of monitoring event
type EventType string

const (
	EventTargetDown              EventType = "target.down"
	EventRecoveryStarted         EventType = "recovery.started"
	EventRecoveryActionCompleted EventType = "recovery.action.completed"
	EventTargetRecovered         EventType = "target.recovered"
	EventRecoveryExhausted       EventType = "recovery.exhausted"
)

// Event represents one monitoring event
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Target    string            `json:"target"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// New creates an event for a target with a fresh ID and timestamp
func New(t EventType, target, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Target:    target,
		Timestamp: time.Now(),
		Message:   message,
	}
}

// WithMeta attaches a metadata key/value pair
func (e *Event) WithMeta(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker distributes monitoring events to subscribers. Publishing never
// blocks the monitoring path: slow subscribers lose events rather than
// stalling the scheduler.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// Subscribe creates a new subscription and returns its channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish delivers an event to all subscribers, fire-and-forget
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	default:
		// Publish buffer full; monitoring must not block on delivery
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
