// Package replay feeds recorded detector frames to a running advisor over
// HTTP and summarises the advice it gets back.
package replay

import (
	"sync"
	"time"

	"github.com/okian/blackjack/internal/domain/model"
)

// Config holds configuration for a replay run.
type Config struct {
	BaseURL string        // Base URL of the service
	Workers int           // Number of concurrent submitters
	Timeout time.Duration // HTTP request timeout
	Async   bool          // Queue frames via POST /frames instead of analyzing them inline
	Verbose bool          // Log every frame result
}

// ackResponse represents the response from POST /frames.
type ackResponse struct {
	Status    string `json:"status"`
	FrameID   string `json:"frame_id"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds replay statistics.
type Stats struct {
	mu sync.Mutex

	FramesRead  int
	FramesSent  int
	Advised     int
	Skipped     int
	Queued      int
	Duplicate   int
	Failed      int
	Actions     map[string]int
	SkipReasons map[string]int
	Latencies   []float64 // per-request round trip in milliseconds
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

func newStats() *Stats {
	return &Stats{
		Actions:     make(map[string]int),
		SkipReasons: make(map[string]int),
		StartTime:   time.Now(),
	}
}

func (s *Stats) recordResult(res model.FrameResult) { //nolint:gocritic // hugeParam: results travel by value
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesSent++
	if res.HasAction {
		s.Advised++
		s.Actions[res.Action.String()]++
		return
	}
	s.Skipped++
	s.SkipReasons[res.SkipReason]++
}

func (s *Stats) recordAck(duplicate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesSent++
	if duplicate {
		s.Duplicate++
		return
	}
	s.Queued++
}

func (s *Stats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesSent++
	s.Failed++
}

func (s *Stats) recordRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesRead++
}

func (s *Stats) recordLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Latencies = append(s.Latencies, float64(d)/float64(time.Millisecond))
}
