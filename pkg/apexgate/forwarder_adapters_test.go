package apexgate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCallbackForwarderDeliversInOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	fwd := NewCallbackForwarder("test", 8, func(ev ViolationEvent) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.VehicleID)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	for _, id := range []string{"CAR_1", "CAR_2", "CAR_3"} {
		if !fwd.Submit(ViolationEvent{VehicleID: id}) {
			t.Fatalf("Submit(%s) reported a drop", id)
		}
	}

	// Cancellation flushes the backlog before Run returns.
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("delivered %d events, want 3", len(seen))
	}
	for i, want := range []string{"CAR_1", "CAR_2", "CAR_3"} {
		if seen[i] != want {
			t.Fatalf("event %d = %s, want %s", i, seen[i], want)
		}
	}
}

func TestCallbackForwarderNilHandler(t *testing.T) {
	fwd := NewCallbackForwarder("test", 8, nil)
	if err := fwd.Run(context.Background()); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestChannelForwarderDeliversAndDropsWhenFull(t *testing.T) {
	fwd, events, closeFn := NewChannelForwarder("test", 1)
	defer closeFn()

	if !fwd.Submit(ViolationEvent{VehicleID: "CAR_1"}) {
		t.Fatal("first Submit should be accepted")
	}
	if fwd.Submit(ViolationEvent{VehicleID: "CAR_2"}) {
		t.Fatal("Submit into a full channel must drop, not block")
	}

	ev := <-events
	if ev.VehicleID != "CAR_1" {
		t.Fatalf("received %s, want CAR_1", ev.VehicleID)
	}
}

func TestFanoutForwarderDeliversToEveryChild(t *testing.T) {
	var (
		mu sync.Mutex
		a  []string
		b  []string
	)
	childA := NewCallbackForwarder("a", 4, func(ev ViolationEvent) error {
		mu.Lock()
		defer mu.Unlock()
		a = append(a, ev.VehicleID)
		return nil
	})
	childB := NewCallbackForwarder("b", 4, func(ev ViolationEvent) error {
		mu.Lock()
		defer mu.Unlock()
		b = append(b, ev.VehicleID)
		return nil
	})
	fan := NewFanoutForwarder(childA, childB)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fan.Run(ctx) }()

	if !fan.Submit(ViolationEvent{VehicleID: "CAR_7"}) {
		t.Fatal("Submit reported a drop")
	}

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fanout did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(a) != 1 || a[0] != "CAR_7" {
		t.Fatalf("child a saw %v, want [CAR_7]", a)
	}
	if len(b) != 1 || b[0] != "CAR_7" {
		t.Fatalf("child b saw %v, want [CAR_7]", b)
	}
}

func TestChannelForwarderClosedRejectsAndRunStops(t *testing.T) {
	fwd, events, closeFn := NewChannelForwarder("test", 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	closeFn()
	if fwd.Submit(ViolationEvent{VehicleID: "CAR_1"}) {
		t.Fatal("Submit after close must be rejected")
	}
	if _, ok := <-events; ok {
		t.Fatal("channel should be closed and empty")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
