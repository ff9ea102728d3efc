package main

import (
	"sync"
	"testing"
	"time"

	"github.com/retroplay/backend/internal/db"
)

func newTestClient(hub *WSHub, id string) *WSClient {
	return &WSClient{
		id:            id,
		send:          make(chan []byte, 256),
		hub:           hub,
		subscriptions: make(map[string]bool),
	}
}

func TestWantsFiltersByCurrentSubscriptions(t *testing.T) {
	c := newTestClient(nil, "c1")

	// No explicit subscriptions means everything is delivered.
	if !c.wants(EventSavesChanged) || !c.wants(EventSettingsChanged) {
		t.Error("Client without subscriptions must receive all events")
	}

	c.subscribe([]string{EventSavesChanged})
	if !c.wants(EventSavesChanged) {
		t.Error("Subscribed event must be delivered")
	}
	if c.wants(EventFavoritesChanged) {
		t.Error("Unsubscribed event must be filtered")
	}

	c.unsubscribe([]string{EventSavesChanged})
	if !c.wants(EventFavoritesChanged) {
		t.Error("Emptied subscription set must fall back to receiving all events")
	}
}

func TestBroadcastDuringSubscriptionChanges(t *testing.T) {
	hub := NewWSHub()
	client := newTestClient(hub, "c1")
	hub.register <- client

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Drain deliveries so the hub never drops the client for a full buffer.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case _, ok := <-client.send:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Flip subscriptions the way readPump does while broadcasts fan out.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			client.subscribe([]string{EventSavesChanged})
			client.unsubscribe([]string{EventSavesChanged})
		}
	}()

	for i := 0; i < 500; i++ {
		hub.Broadcast(EventSavesChanged, map[string]interface{}{"collection": "save_states"})
	}

	// Let the run loop work through the queue before stopping the drain.
	time.Sleep(100 * time.Millisecond)
	close(done)
	wg.Wait()

	hub.unregister <- client
}

func TestCollectionChangedMapsToWireEvents(t *testing.T) {
	cases := map[db.Collection]string{
		db.CollectionSaveStates:   EventSavesChanged,
		db.CollectionFavorites:    EventFavoritesChanged,
		db.CollectionPlaySessions: EventSessionsChanged,
		db.CollectionSettings:     EventSettingsChanged,
	}
	for col, want := range cases {
		if got := eventForCollection(col); got != want {
			t.Errorf("Collection %s mapped to %q, want %q", col, got, want)
		}
	}
	if got := eventForCollection(db.Collection("unknown")); got != "" {
		t.Errorf("Unknown collection mapped to %q, want empty", got)
	}
}
