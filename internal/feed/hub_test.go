package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gooeytea/backend/internal/domain"
)

func mockClient(hub *Hub) *Client {
	return &Client{hub: hub, send: make(chan []byte, 256)}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if hub.Subscribers() != 1 {
		t.Fatalf("expected one subscriber, got %d", hub.Subscribers())
	}

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after unregister, got %d", hub.Subscribers())
	}
	if _, ok := <-client.send; ok {
		t.Fatalf("expected send channel to be closed")
	}
}

func TestPublishOrderReachesEverySubscriber(t *testing.T) {
	hub := startHub(t)
	first := mockClient(hub)
	second := mockClient(hub)
	hub.register <- first
	hub.register <- second
	time.Sleep(10 * time.Millisecond)

	hub.PublishOrder(domain.OrderCommitted{OrderID: 42, Price: 8.75, EmployeeID: 2, Drinks: 1})

	for _, client := range []*Client{first, second} {
		select {
		case raw := <-client.send:
			var event Event
			if err := json.Unmarshal(raw, &event); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if event.Type != EventOrderCommitted || event.ID == "" {
				t.Fatalf("unexpected event envelope: %+v", event)
			}
			var payload domain.OrderCommitted
			if err := json.Unmarshal(event.Payload, &payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if payload.OrderID != 42 || payload.Price != 8.75 {
				t.Fatalf("unexpected payload: %+v", payload)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublishOrderDoesNotBlockWithoutRunningHub(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.PublishOrder(domain.OrderCommitted{OrderID: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full queue")
	}
}

func TestStoppedHubClosesClientsAndRejectsNewOnes(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := mockClient(hub)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client was not closed on shutdown")
	}
	if hub.attach(mockClient(hub)) {
		t.Fatal("expected attach to fail after shutdown")
	}
	hub.detach(client)
}
