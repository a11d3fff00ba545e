package bus

import (
	"errors"
	"testing"

	"main/internal/schema"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(8)
	for _, symbol := range []string{"A", "B", "C"} {
		if err := q.TryPublish(schema.Signal{Symbol: symbol}); err != nil {
			t.Fatalf("publish %s: %v", symbol, err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}

	drained := q.Drain()
	if len(drained) != 3 {
		t.Fatalf("drained %d, want 3", len(drained))
	}
	for i, want := range []string{"A", "B", "C"} {
		if drained[i].Symbol != want {
			t.Fatalf("drained[%d] = %s, want %s", i, drained[i].Symbol, want)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("len after drain = %d, want 0", q.Len())
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(2)
	if err := q.TryPublish(schema.Signal{Symbol: "A"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.TryPublish(schema.Signal{Symbol: "B"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.TryPublish(schema.Signal{Symbol: "C"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	// draining frees capacity
	q.Drain()
	if err := q.TryPublish(schema.Signal{Symbol: "C"}); err != nil {
		t.Fatalf("publish after drain: %v", err)
	}
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(2)
	if err := q.TryPublish(schema.Signal{Symbol: "A"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	q.Close()
	if err := q.TryPublish(schema.Signal{Symbol: "B"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}

	// queued signals stay drainable after close
	drained := q.Drain()
	if len(drained) != 1 || drained[0].Symbol != "A" {
		t.Fatalf("drained = %+v, want the one pre-close signal", drained)
	}
}

func TestQueueConsumeEmpty(t *testing.T) {
	q := NewQueue(1)
	if _, ok := q.TryConsume(); ok {
		t.Fatal("consume on empty queue should report false")
	}
	if got := q.Drain(); len(got) != 0 {
		t.Fatalf("drain on empty queue = %+v", got)
	}
}
