// Package queue defines the contract for enqueuing and consuming frames.
package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Frame is the payload type flowing through the queue.
type Frame = model.Frame

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a frame to the queue.
	// Returns false if the queue is full or closed and the frame was not enqueued.
	Enqueue(ctx context.Context, f Frame) bool

	// Dequeue returns a channel that receives frames as they become available.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Frame

	Len(ctx context.Context) int
	Capacity() int

	// Close stops accepting frames. Frames already queued can still be dequeued.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	frames   chan Frame
	capacity int

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.frames = make(chan Frame, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue adds a frame to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, f Frame) bool { //nolint:gocritic // hugeParam: frames travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
	}

	select {
	case q.frames <- f:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.frames), q.capacity)
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives frames as they become available.
// Each call starts its own forwarder, which stops when ctx is done. A frame
// taken from the buffer but not delivered before ctx ends is put back, or
// counted as dropped if the queue has been closed or refilled meanwhile.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Frame {
	out := make(chan Frame)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-q.frames:
				if !ok {
					return
				}
				select {
				case out <- f:
					metrics.RecordQueueDequeue()
					metrics.UpdateQueueSize(len(q.frames), q.capacity)
				case <-ctx.Done():
					q.requeue(f)
					return
				}
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) requeue(f Frame) { //nolint:gocritic // hugeParam: frames travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.closed {
		select {
		case q.frames <- f:
			metrics.UpdateQueueSize(len(q.frames), q.capacity)
			return
		default:
		}
	}
	q.dropped.Add(1)
	metrics.RecordErrorByComponent("queue", "dropped")
}

// Dropped is the number of frames lost because no consumer took them.
func (q *InMemoryQueue) Dropped() int64 {
	return q.dropped.Load()
}

// Len returns the current number of queued frames.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.frames)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Capacity returns the maximum number of queued frames.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops the queue accepting frames.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.frames)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
