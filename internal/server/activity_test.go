package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctx/loom/internal/orchestrator"
)

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub := NewActivityHub(nil)
	go hub.Run()
	defer hub.Stop()

	sub := &MockSubscriber{SendChan: make(chan []byte, 4)}
	hub.Register(sub)

	hub.Publish(orchestrator.Event{
		Kind:   orchestrator.EventContextGenerated,
		UserID: "alice",
		Domain: "fiscal",
		At:     time.Now().UTC(),
	})

	select {
	case data := <-sub.SendChan:
		var event orchestrator.Event
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, orchestrator.EventContextGenerated, event.Kind)
		assert.Equal(t, "fiscal", event.Domain)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewActivityHub(nil)
	go hub.Run()
	defer hub.Stop()

	// Buffer of one: the second event finds it full and drops the client.
	slow := &MockSubscriber{SendChan: make(chan []byte, 1)}
	hub.Register(slow)

	hub.Publish(orchestrator.Event{Kind: "first"})
	hub.Publish(orchestrator.Event{Kind: "second"})

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients) == 0
	}, 2*time.Second, 10*time.Millisecond, "slow client was not dropped")
}

func TestHubStopDisconnectsAll(t *testing.T) {
	hub := NewActivityHub(nil)
	go hub.Run()

	sub := &MockSubscriber{SendChan: make(chan []byte, 4)}
	hub.Register(sub)

	hub.Stop()

	select {
	case _, open := <-sub.SendChan:
		assert.False(t, open, "send channel should be closed after Stop")
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed")
	}
}
