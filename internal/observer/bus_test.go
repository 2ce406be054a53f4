package observer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	_, events := bus.Subscribe()

	bus.Publish(Event{Kind: KindStats, Data: Stats{TotalExecutions: 1}})

	select {
	case e := <-events:
		assert.Equal(t, KindStats, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	id, events := bus.Subscribe()
	bus.Unsubscribe(id)

	_, open := <-events
	assert.False(t, open)
}

func TestBus_SlowSubscriberDropsOldestRatherThanBlocking(t *testing.T) {
	bus := NewBus()
	_, events := bus.Subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Event{Kind: KindPoolStatus})
	}

	// Publish must not have blocked despite nobody draining events.
	require.Len(t, events, subscriberBuffer)
}

func TestBus_MultipleSubscribersEachGetEvents(t *testing.T) {
	bus := NewBus()
	_, a := bus.Subscribe()
	_, b := bus.Subscribe()

	bus.Publish(Event{Kind: KindHistory})

	select {
	case <-a:
	case <-time.After(time.Second):
		t.Fatal("subscriber a did not receive event")
	}
	select {
	case <-b:
	case <-time.After(time.Second):
		t.Fatal("subscriber b did not receive event")
	}
}
