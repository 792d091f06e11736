package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// FrameDeduper records frame IDs so each frame is accepted at most once.
type FrameDeduper interface {
	// SeenAndRecord reports whether id was already recorded, and records it
	// if it was not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be submitted again. Used when a frame was
	// recorded but could not be queued.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryFrames keeps IDs in insertion order and evicts the oldest once
// capacity is reached. A capacity <= 0 never evicts.
type inMemoryFrames struct {
	mu       sync.Mutex
	seen     map[string]*list.Element
	order    *list.List
	capacity int
}

// NewFrameDeduper creates an in-memory FrameDeduper.
func NewFrameDeduper(opts ...FrameOption) FrameDeduper {
	d := &inMemoryFrames{
		capacity: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryFrames) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.capacity > 0 && d.order.Len() >= d.capacity {
		if oldest := d.order.Front(); oldest != nil {
			d.order.Remove(oldest)
			delete(d.seen, oldest.Value.(string))
		}
	}
	d.seen[id] = d.order.PushBack(id)
	return false
}

func (d *inMemoryFrames) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.seen[id]; ok {
		d.order.Remove(e)
		delete(d.seen, id)
	}
}

func (d *inMemoryFrames) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
