package operator

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHub_BroadcastFiltersByOrg(t *testing.T) {
	hub := NewHub(zap.NewNop())
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	clientA := &Client{ID: "a", OrgID: "org-1", send: make(chan []byte, 4), hub: hub, logger: hub.logger}
	clientB := &Client{ID: "b", OrgID: "org-2", send: make(chan []byte, 4), hub: hub, logger: hub.logger}
	hub.register <- clientA
	hub.register <- clientB
	time.Sleep(20 * time.Millisecond)

	hub.Broadcast(EventMessage{Type: "conversation.updated", OrgID: "org-1", Payload: map[string]any{"stage": "PRICING"}})

	select {
	case msg := <-clientA.send:
		if len(msg) == 0 {
			t.Error("expected a non-empty message for clientA")
		}
	case <-time.After(time.Second):
		t.Fatal("expected clientA (matching org) to receive the broadcast")
	}

	select {
	case msg := <-clientB.send:
		t.Fatalf("expected clientB (different org) to receive nothing, got %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(zap.NewNop())
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)

	client := &Client{ID: "c", OrgID: "org-1", send: make(chan []byte, 4), hub: hub, logger: hub.logger}
	hub.register <- client
	time.Sleep(20 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(20 * time.Millisecond)

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected client.send to be closed after unregister")
		}
	default:
		t.Error("expected client.send to be closed (readable as closed) after unregister")
	}
}
