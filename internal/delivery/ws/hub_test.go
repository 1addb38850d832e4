package ws

import (
	"sync"
	"testing"

	"github.com/avolkov/tidechat/internal/domain"
)

func TestHubRegisterUnregister(t *testing.T) {
	store := newFakeStore()
	_, hub, _, _ := newTestCore(store)

	c := newTestClient(hub)
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Fatalf("client count = %d, want 0", hub.ClientCount())
	}

	// Unregister closes the send channel.
	if _, open := <-c.send; open {
		t.Error("send channel should be closed")
	}
}

func TestHubDoubleUnregister(t *testing.T) {
	store := newFakeStore()
	_, hub, _, _ := newTestCore(store)

	c := newTestClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// A second unregister for the same connection must not panic on the
	// already-closed send channel.
	hub.Unregister(c)
}

func TestHubUnregisterClearsRooms(t *testing.T) {
	store := newFakeStore()
	registry, hub, _, _ := newTestCore(store)

	c := newTestClient(hub)
	hub.Register(c)
	registry.Join(c, "channel:1")
	registry.Join(c, "thread:10")

	hub.Unregister(c)

	if registry.MemberCount("channel:1") != 0 || registry.MemberCount("thread:10") != 0 {
		t.Error("expected all room memberships cleared on unregister")
	}
}

func TestHubBroadcastAll(t *testing.T) {
	store := newFakeStore()
	_, hub, _, _ := newTestCore(store)

	a := newTestClient(hub)
	b := newTestClient(hub)
	hub.Register(a)
	hub.Register(b)

	n, err := hub.BroadcastAll(domain.EventUserStatus, domain.UserStatusPayload{UserID: 1, Status: domain.StatusOnline})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered to %d clients, want 2", n)
	}
	for _, c := range []*Client{a, b} {
		env := recvEvent(t, c)
		if env.Type != domain.EventUserStatus {
			t.Errorf("got %s, want user_status", env.Type)
		}
	}
}

// Broadcasts snapshot members outside the locks, so a disconnect can
// close a client's send channel while a broadcast still holds it. Churn
// the two against each other; a send on a closed channel panics and
// fails the run.
func TestHubBroadcastDuringDisconnect(t *testing.T) {
	store := newFakeStore()
	registry, hub, _, _ := newTestCore(store)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					registry.Broadcast("channel:1", domain.EventTyping, domain.TypingEvent{ChannelID: 1}, "")
					hub.BroadcastAll(domain.EventUserStatus, domain.UserStatusPayload{})
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		c := newTestClient(hub)
		hub.Register(c)
		registry.Join(c, "channel:1")
		hub.Unregister(c)
	}

	close(done)
	wg.Wait()
}

func TestHubBroadcastAllNoClients(t *testing.T) {
	store := newFakeStore()
	_, hub, _, _ := newTestCore(store)

	n, err := hub.BroadcastAll(domain.EventUserStatus, domain.UserStatusPayload{})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if n != 0 {
		t.Errorf("delivered to %d clients, want 0", n)
	}
}
