// ABOUTME: Tests for the conversation event broadcaster
// ABOUTME: Verifies fan-out, owner isolation, unsubscribe, and slow-subscriber drops

package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewEventBroadcaster(nil)
	ctx := context.Background()

	ch1, _ := b.Subscribe(ctx, "alice")
	ch2, _ := b.Subscribe(ctx, "alice")
	chBob, _ := b.Subscribe(ctx, "bob")

	b.Publish("alice", &Event{Type: EventUserMessage})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, EventUserMessage, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}

	select {
	case <-chBob:
		t.Fatal("event leaked across owners")
	default:
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewEventBroadcaster(nil)
	ctx := context.Background()

	ch, subID := b.Subscribe(ctx, "alice")
	require.Equal(t, 1, b.SubscriberCount("alice"))

	b.Unsubscribe("alice", subID)
	assert.Equal(t, 0, b.SubscriberCount("alice"))

	// Channel is closed after unsubscription.
	_, open := <-ch
	assert.False(t, open)

	// Safe to call again.
	b.Unsubscribe("alice", subID)
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewEventBroadcaster(nil)
	ctx, cancel := context.WithCancel(context.Background())

	b.Subscribe(ctx, "alice")
	require.Equal(t, 1, b.SubscriberCount("alice"))

	cancel()
	require.Eventually(t, func() bool {
		return b.SubscriberCount("alice") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcaster_DropsForFullSubscriber(t *testing.T) {
	b := NewEventBroadcaster(nil)
	ctx := context.Background()

	ch, _ := b.Subscribe(ctx, "alice")

	// Fill the buffer and one more: the overflow is dropped, not blocking.
	for i := 0; i < subscriberBufferSize+8; i++ {
		b.Publish("alice", &Event{Type: EventDraft})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			assert.Equal(t, subscriberBufferSize, received)
			return
		}
	}
}

func TestBroadcaster_PublishWithoutSubscribers(t *testing.T) {
	b := NewEventBroadcaster(nil)
	// Must not panic or block.
	b.Publish("nobody", &Event{Type: EventDone})
}
