package api

import (
	"testing"

	"github.com/jiin/lookout/internal/models"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	client := &wsClient{send: make(chan wsMessage, 4)}
	if !hub.add(client) {
		t.Fatal("expected add to succeed")
	}

	hub.BroadcastStatus(models.DisplayUpdate{TargetName: "web", Status: models.StatusDown})

	select {
	case msg := <-client.send:
		if msg.Type != "status" || msg.Status.TargetName != "web" {
			t.Errorf("unexpected message: %+v", msg)
		}
	default:
		t.Fatal("expected a buffered message")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	client := &wsClient{send: make(chan wsMessage, 1)}
	hub.add(client)

	hub.BroadcastSummary(models.Summary{Total: 1})
	hub.BroadcastSummary(models.Summary{Total: 2}) // buffer full, client dropped

	if _, ok := <-client.send; !ok {
		t.Fatal("expected first message before close")
	}
	if _, ok := <-client.send; ok {
		t.Error("expected channel closed after drop")
	}

	hub.mu.Lock()
	n := len(hub.clients)
	hub.mu.Unlock()
	if n != 0 {
		t.Errorf("expected no clients left, got %d", n)
	}
}

func TestHubClosedRejectsClients(t *testing.T) {
	hub := NewHub()
	hub.Close()

	client := &wsClient{send: make(chan wsMessage, 1)}
	if hub.add(client) {
		t.Error("expected add to fail after close")
	}
}
