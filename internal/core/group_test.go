package core

import (
	"sync"
	"testing"
	"time"
)

func TestGroupJoinLeaveIdempotent(t *testing.T) {
	g := NewGroup(GroupCheckIns)
	c := NewClient("a", 1, "alice")

	if !g.Join(c) {
		t.Fatalf("expected first join to add client")
	}
	if g.Join(c) {
		t.Fatalf("expected second join to be a no-op")
	}
	if g.Size() != 1 {
		t.Fatalf("expected size 1, got %d", g.Size())
	}

	if !g.Leave(c) {
		t.Fatalf("expected leave to remove client")
	}
	if g.Leave(c) {
		t.Fatalf("expected repeated leave to be a no-op")
	}

	// Leaving a client that never joined must be safe.
	stranger := NewClient("b", 2, "bob")
	if g.Leave(stranger) {
		t.Fatalf("expected leave of non-member to be a no-op")
	}
}

func TestGroupBroadcastReachesAllClients(t *testing.T) {
	g := NewGroup(GroupCheckIns)
	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	g.Join(alice)
	g.Join(bob)

	g.Broadcast(&Event{Kind: EventStatsUpdate, Stats: &Stats{CurrentlyIn: 3}})

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventStatsUpdate)
		if ev.Stats.CurrentlyIn != 3 {
			t.Fatalf("unexpected stats for %s: %+v", c.ID, ev.Stats)
		}
	}
}

func TestGroupBroadcastSkipsSlowConsumer(t *testing.T) {
	g := NewGroup(GroupCheckIns)
	slow := NewClient("slow", 1, "slow")
	fast := NewClient("fast", 2, "fast")
	g.Join(slow)
	g.Join(fast)

	// Fill the slow client's buffer so further sends would block.
	for i := 0; i < cap(slow.Events); i++ {
		slow.send(&Event{Kind: EventHeartbeatAck})
	}

	done := make(chan struct{})
	go func() {
		g.Broadcast(&Event{Kind: EventStatsUpdate, Stats: &Stats{}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked on slow consumer")
	}

	mustEvent(t, fast.Events, EventStatsUpdate)
}

func TestGroupConcurrentJoinLeave(t *testing.T) {
	g := NewGroup(GroupCheckIns)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := NewClient(string(rune('a'+n%26)), int64(n), "user")
			g.Join(c)
			g.Broadcast(&Event{Kind: EventHeartbeatAck})
			g.Leave(c)
			g.Leave(c)
		}(i)
	}
	wg.Wait()

	if g.Size() != 0 {
		t.Fatalf("expected empty group, got %d", g.Size())
	}
}

func TestRegistryReturnsSameGroup(t *testing.T) {
	r := NewRegistry()

	a := r.Get(GroupCheckIns)
	b := r.Get(GroupCheckIns)
	if a != b {
		t.Fatalf("expected the same group instance for one name")
	}
	if r.Get("other") == a {
		t.Fatalf("expected a distinct group for a different name")
	}
}
