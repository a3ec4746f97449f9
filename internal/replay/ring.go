package replay

import (
	"errors"
	"sync"

	"coldchain-bridge/internal/observability/metrics"
)

// Kind labels what a buffered item carries.
type Kind string

const (
	KindReading Kind = "reading"
	KindAlert   Kind = "alert"
)

// Item is a pre-encoded publish held while the cloud broker is down.
type Item struct {
	Kind    Kind
	Topic   string
	Payload []byte
}

// Ring is a bounded FIFO buffer. When full, pushing evicts the oldest item
// first; the buffer never exceeds its capacity.
type Ring struct {
	mu       sync.Mutex
	items    []Item
	capacity int
}

// NewRing constructs a ring with the given capacity.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, errors.New("replay: ring capacity must be positive")
	}
	return &Ring{capacity: capacity}, nil
}

// Push appends an item, evicting the oldest when full. Returns true when an
// item was evicted.
func (r *Ring) Push(item Item) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := false
	if len(r.items) >= r.capacity {
		r.items = r.items[1:]
		evicted = true
		metrics.IncBufferDropped()
	}
	r.items = append(r.items, item)
	metrics.SetBufferDepth(len(r.items))
	return evicted
}

// ProcessHead runs publish on the oldest item under the ring lock, removing
// the item only after publish succeeds. A failed item stays at the head with
// nothing to re-queue, so a concurrent Push filling the ring can never force
// it out mid-flight. publish must be bounded; Push blocks for its duration.
func (r *Ring) ProcessHead(publish func(Item) error) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return false, nil
	}
	if err := publish(r.items[0]); err != nil {
		return false, err
	}
	r.items = r.items[1:]
	metrics.SetBufferDepth(len(r.items))
	return true, nil
}

// Pop removes and returns the oldest item.
func (r *Ring) Pop() (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Item{}, false
	}
	item := r.items[0]
	r.items = r.items[1:]
	metrics.SetBufferDepth(len(r.items))
	return item, true
}

// Len returns the number of buffered items.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
