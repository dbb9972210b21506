package game

import (
	"testing"

	"crashcore/internal/logging"
)

func TestClientEnqueueDropsNewNonTerminalWhenFull(t *testing.T) {
	c := newClient(nil, &Session{ID: "s1"})
	for i := 0; i < outboxSize; i++ {
		c.enqueue([]byte{byte(i)}, false)
	}
	c.enqueue([]byte{99}, false) // outbox is full; this frame should be dropped

	if len(c.outbox) != outboxSize {
		t.Fatalf("len(outbox) = %d, want %d", len(c.outbox), outboxSize)
	}
	first := <-c.outbox
	if first[0] != 0 {
		t.Fatalf("first queued frame = %v, want the original oldest frame", first)
	}
}

func TestClientEnqueueTerminalEvictsOldest(t *testing.T) {
	c := newClient(nil, &Session{ID: "s1"})
	for i := 0; i < outboxSize; i++ {
		c.enqueue([]byte{byte(i)}, false)
	}
	c.enqueue([]byte("terminal"), true)

	var last []byte
	for len(c.outbox) > 0 {
		last = <-c.outbox
	}
	if string(last) != "terminal" {
		t.Fatalf("last frame = %q, want the terminal frame to survive eviction", last)
	}
}

func TestHubDetachRemovesClientAndLimiter(t *testing.T) {
	h := NewHub(10, 2, nil)
	sess := &Session{ID: "s1"}
	client := newClient(nil, sess)

	h.mu.Lock()
	h.clients["s1"] = client
	h.mu.Unlock()
	h.limiter.Allow("s1")

	if _, ok := h.Get("s1"); !ok {
		t.Fatal("expected client to be registered")
	}

	h.Detach("s1")

	if _, ok := h.Get("s1"); ok {
		t.Fatal("expected client to be removed after Detach")
	}
	if h.limiter.Count() != 0 {
		t.Fatalf("limiter count = %d, want 0 after Detach", h.limiter.Count())
	}
}

func TestHubCountReflectsRegisteredClients(t *testing.T) {
	h := NewHub(10, 2, nil)
	h.mu.Lock()
	h.clients["s1"] = newClient(nil, &Session{ID: "s1"})
	h.clients["s2"] = newClient(nil, &Session{ID: "s2"})
	h.mu.Unlock()

	if h.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", h.Count())
	}
}

func TestIsTerminalFrame(t *testing.T) {
	cases := []struct {
		frame any
		want  bool
	}{
		{connectedFrame{}, true},
		{cashedOutFrame{}, true},
		{errorFrame{}, true},
		{betPlacedFrame{}, true},
		{PublicFrame{}, false},
		{warningFrame{}, false},
	}
	for _, c := range cases {
		if got := isTerminalFrame(c.frame); got != c.want {
			t.Errorf("isTerminalFrame(%T) = %v, want %v", c.frame, got, c.want)
		}
	}
}

func TestHubAllowRateLimitsPerSession(t *testing.T) {
	h := NewHub(1, 1, logging.NewDefault("test"))
	if !h.Allow("s1") {
		t.Fatal("first message should be allowed")
	}
	if h.Allow("s1") {
		t.Fatal("second immediate message should be rejected once burst is spent")
	}
}
