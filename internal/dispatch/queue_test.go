package dispatch

import (
	"sync"
	"testing"
	"time"
)

func TestQueueSetRunsInArrivalOrder(t *testing.T) {
	t.Parallel()

	qs := newQueueSet()
	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < 20; i++ {
		i := i
		qs.enqueue("u1", func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	qs.enqueue("u1", func() { close(done) })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queue did not drain")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("position %d: expected %d, got %d", i, i, got)
		}
	}
}

func TestQueueSetRemovesDrainedEntries(t *testing.T) {
	t.Parallel()

	qs := newQueueSet()
	done := make(chan struct{})
	qs.enqueue("u1", func() {})
	qs.enqueue("u2", func() { close(done) })

	<-done

	// The drain goroutines delete their entries right after the last unit
	// of work runs; give them a moment.
	deadline := time.Now().Add(5 * time.Second)
	for qs.size() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected empty queue map, %d entries remain", qs.size())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestQueueSetReusableAfterDrain(t *testing.T) {
	t.Parallel()

	qs := newQueueSet()
	for round := 0; round < 3; round++ {
		done := make(chan struct{})
		qs.enqueue("u1", func() { close(done) })
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d did not run", round)
		}
	}
}
