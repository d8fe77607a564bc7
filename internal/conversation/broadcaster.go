// ABOUTME: In-memory fan-out broadcaster for conversation turn events
// ABOUTME: Publishes controller events to all subscribers of an owner's session

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
// Draft events arrive at token speed; slow subscribers drop rather than
// stall the controller.
const subscriberBufferSize = 64

// EventBroadcaster provides in-memory pub/sub for conversation events.
// Subscribers register for an owner and receive that session's events as
// the controller publishes them. This lets HTTP handlers surface the
// growing draft without polling.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Event // owner -> subID -> ch
	logger      *slog.Logger
}

// NewEventBroadcaster creates a broadcaster. Pass nil logger for default.
func NewEventBroadcaster(logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		subscribers: make(map[string]map[string]chan *Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for events on the given owner's session.
// Returns a channel that receives events and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled.
func (b *EventBroadcaster) Subscribe(ctx context.Context, owner string) (<-chan *Event, string) {
	subID := uuid.New().String()
	ch := make(chan *Event, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[owner]; !ok {
		b.subscribers[owner] = make(map[string]chan *Event)
	}
	b.subscribers[owner][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "owner", owner, "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(owner, subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscriber and closes its channel.
// Safe to call multiple times.
func (b *EventBroadcaster) Unsubscribe(owner, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[owner]
	if !ok {
		return
	}
	ch, ok := subs[subID]
	if !ok {
		return
	}
	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, owner)
	}

	b.logger.Debug("subscriber removed", "owner", owner, "sub_id", subID)
}

// Publish sends an event to all subscribers of the given owner.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (b *EventBroadcaster) Publish(owner string, event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs, ok := b.subscribers[owner]
	if !ok {
		return
	}
	for subID, ch := range subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"owner", owner,
				"sub_id", subID,
				"event", event.Type)
		}
	}
}

// Close removes all subscribers and closes their channels.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for owner, subs := range b.subscribers {
		for subID, ch := range subs {
			delete(subs, subID)
			close(ch)
		}
		delete(b.subscribers, owner)
	}
}

// SubscriberCount returns the number of active subscribers for an owner.
func (b *EventBroadcaster) SubscriberCount(owner string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[owner])
}
