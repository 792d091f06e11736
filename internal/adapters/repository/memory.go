package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/pkg/metrics"
)

// MemoryStore keeps results in a fixed-size ring indexed by frame ID.
type MemoryStore struct {
	mu       sync.RWMutex
	ring     []model.FrameResult
	byID     map[string]int
	next     int // slot the next new result is written to
	size     int
	latest   int // slot of the most recent Put, -1 when empty
	capacity int
	closed   bool

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
}

// NewMemoryStore constructs a MemoryStore. The background metrics updater
// stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		capacity:              1024,
		latest:                -1,
		metricsUpdateInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ring = make([]model.FrameResult, s.capacity)
	s.byID = make(map[string]int, s.capacity)
	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)
	return s
}

// Put implements Store.Put.
func (s *MemoryStore) Put(_ context.Context, r model.FrameResult) error {
	if r.FrameID == "" {
		metrics.RecordRepositoryError()
		return ErrInvalidResult
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if slot, ok := s.byID[r.FrameID]; ok {
		s.ring[slot] = r
		s.latest = slot
	} else {
		if s.size == s.capacity {
			delete(s.byID, s.ring[s.next].FrameID)
		} else {
			s.size++
		}
		s.ring[s.next] = r
		s.byID[r.FrameID] = s.next
		s.latest = s.next
		s.next = (s.next + 1) % s.capacity
	}

	metrics.RecordRepositoryPutLatency(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, frameID string) (model.FrameResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.byID[frameID]
	if !ok {
		return model.FrameResult{}, ErrNotFound
	}
	return s.ring[slot], nil
}

// Latest implements Store.Latest.
func (s *MemoryStore) Latest(_ context.Context) (model.FrameResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest < 0 {
		return model.FrameResult{}, ErrNotFound
	}
	return s.ring[s.latest], nil
}

// Recent implements Store.Recent. Order follows first insertion, so a
// replaced result keeps its original position.
func (s *MemoryStore) Recent(_ context.Context, n int) ([]model.FrameResult, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n = min(n, s.size)
	out := make([]model.FrameResult, 0, n)
	for i := 1; i <= n; i++ {
		slot := (s.next - i + s.capacity) % s.capacity
		out = append(out, s.ring[slot])
	}
	return out, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size, nil
}

// Close stops the metrics updater. Further Puts fail with ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stopChan)
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdateRepositoryResults(n)
			}
		}
	}()
}
