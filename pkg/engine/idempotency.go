package engine

import (
	"container/list"
	"sync"
)

// DefaultIdempotencyCapacity bounds the engine-lifetime idempotency key set.
// The reference kept keys forever; a bounded LRU avoids unbounded growth at
// the cost of very old keys eventually deduplicating again.
const DefaultIdempotencyCapacity = 10000

// keyTracker is an LRU set of processed idempotency keys, shared across all
// runs for the life of the engine instance.
type keyTracker struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	seen     map[string]*list.Element
}

func newKeyTracker(capacity int) *keyTracker {
	if capacity <= 0 {
		capacity = DefaultIdempotencyCapacity
	}
	return &keyTracker{
		capacity: capacity,
		order:    list.New(),
		seen:     make(map[string]*list.Element),
	}
}

// CheckAndRecord returns true when key was already processed. Otherwise it
// records the key, evicting the least recently seen entry when full.
func (t *keyTracker) CheckAndRecord(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if el, ok := t.seen[key]; ok {
		t.order.MoveToFront(el)
		return true
	}
	if t.order.Len() >= t.capacity {
		oldest := t.order.Back()
		if oldest != nil {
			t.order.Remove(oldest)
			delete(t.seen, oldest.Value.(string))
		}
	}
	t.seen[key] = t.order.PushFront(key)
	return false
}

func (t *keyTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
