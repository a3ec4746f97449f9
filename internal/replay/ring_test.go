package replay

import (
	"errors"
	"testing"
)

func item(topic string) Item {
	return Item{Kind: KindReading, Topic: topic, Payload: []byte("{}")}
}

func TestRingFIFO(t *testing.T) {
	ring, err := NewRing(3)
	if err != nil {
		t.Fatalf("new ring: %v", err)
	}
	for _, topic := range []string{"a", "b", "c"} {
		if evicted := ring.Push(item(topic)); evicted {
			t.Fatalf("unexpected eviction pushing %s", topic)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		got, ok := ring.Pop()
		if !ok || got.Topic != want {
			t.Fatalf("expected %s, got %q ok=%v", want, got.Topic, ok)
		}
	}
	if _, ok := ring.Pop(); ok {
		t.Fatal("expected empty ring")
	}
}

func TestRingEvictsOldestWhenFull(t *testing.T) {
	ring, err := NewRing(2)
	if err != nil {
		t.Fatalf("new ring: %v", err)
	}
	ring.Push(item("a"))
	ring.Push(item("b"))
	if evicted := ring.Push(item("c")); !evicted {
		t.Fatal("expected eviction of oldest item")
	}
	if ring.Len() != 2 {
		t.Fatalf("capacity bound violated: len=%d", ring.Len())
	}
	got, _ := ring.Pop()
	if got.Topic != "b" {
		t.Fatalf("expected oldest surviving item b, got %q", got.Topic)
	}
}

func TestRingProcessHeadRemovesOnSuccess(t *testing.T) {
	ring, err := NewRing(3)
	if err != nil {
		t.Fatalf("new ring: %v", err)
	}
	ring.Push(item("a"))
	ring.Push(item("b"))

	var seen []string
	processed, err := ring.ProcessHead(func(i Item) error {
		seen = append(seen, i.Topic)
		return nil
	})
	if err != nil || !processed {
		t.Fatalf("expected processed head, got %v %v", processed, err)
	}
	if len(seen) != 1 || seen[0] != "a" {
		t.Fatalf("expected oldest item first, got %v", seen)
	}
	if ring.Len() != 1 {
		t.Fatalf("expected head removed, len=%d", ring.Len())
	}
}

func TestRingProcessHeadKeepsFailedItem(t *testing.T) {
	ring, err := NewRing(2)
	if err != nil {
		t.Fatalf("new ring: %v", err)
	}
	// A full ring is the worst case: the failed item must still hold its
	// slot at the head.
	ring.Push(item("a"))
	ring.Push(item("b"))

	processed, err := ring.ProcessHead(func(Item) error {
		return errors.New("publish refused")
	})
	if processed || err == nil {
		t.Fatalf("expected failure to keep the item, got %v %v", processed, err)
	}
	if ring.Len() != 2 {
		t.Fatalf("failed item must not be dropped, len=%d", ring.Len())
	}
	head, _ := ring.Pop()
	if head.Topic != "a" {
		t.Fatalf("expected failed item still at head, got %q", head.Topic)
	}
}

func TestRingProcessHeadEmpty(t *testing.T) {
	ring, err := NewRing(1)
	if err != nil {
		t.Fatalf("new ring: %v", err)
	}
	processed, err := ring.ProcessHead(func(Item) error { return nil })
	if processed || err != nil {
		t.Fatalf("expected no-op on empty ring, got %v %v", processed, err)
	}
}

func TestRingRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := NewRing(0); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}
