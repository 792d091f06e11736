// Package service wires the frame pipeline to the queue, the worker pool and
// the results store, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/okian/blackjack/internal/adapters/mq/queue"
	"github.com/okian/blackjack/internal/adapters/mq/worker"
	"github.com/okian/blackjack/internal/adapters/repository"
	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/dedupe"
	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/internal/domain/strategy"
	"github.com/okian/blackjack/pkg/logger"
	"github.com/okian/blackjack/pkg/metrics"
)

// Service implements the API dependencies for the card advisor.
type Service struct {
	mu sync.RWMutex

	pipeline *Pipeline
	store    repository.Store
	frames   dedupe.FrameDeduper
	queue    queue.Queue
	pool     *worker.Pool

	// ownsStore marks a store opened by Start; Stop closes and forgets it.
	ownsStore   bool
	storeClosed bool

	workerCount     int
	queueSize       int
	frameDedupeSize int
	resultsSize     int
	sqlitePath      string
	pipelineOpts    []PipelineOption

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the frame queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithFrameDedupeSize sets how many frame IDs are remembered.
func WithFrameDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.frameDedupeSize = size
		}
	}
}

// WithResultsSize caps the in-memory results store.
func WithResultsSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.resultsSize = size
		}
	}
}

// WithSQLite keeps results in the SQLite database at path.
func WithSQLite(path string) Option {
	return func(s *Service) {
		s.sqlitePath = path
	}
}

// WithStore uses a caller-provided results store. The service closes it on
// Stop, so a service built this way cannot be started again afterwards.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPipelineOptions configures the frame pipeline.
func WithPipelineOptions(opts ...PipelineOption) Option {
	return func(s *Service) {
		s.pipelineOpts = append(s.pipelineOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		frameDedupeSize: 50_000,
		resultsSize:     1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.storeClosed {
		return fmt.Errorf("restart with a caller-provided store: %w", repository.ErrStoreClosed)
	}

	s.logger.Info(ctx, "starting advisor service...")

	if s.store == nil {
		s.ownsStore = true
		if s.sqlitePath != "" {
			st, err := repository.NewSQLiteStore(ctx, s.sqlitePath)
			if err != nil {
				return fmt.Errorf("open results store: %w", err)
			}
			s.store = st
			s.logger.Info(ctx, "using sqlite results store", logger.String("path", s.sqlitePath))
		} else {
			s.store = repository.NewMemoryStore(ctx, repository.WithCapacity(s.resultsSize))
			s.logger.Info(ctx, "using memory results store", logger.Int("capacity", s.resultsSize))
		}
	}

	s.pipeline = NewPipeline(append([]PipelineOption{WithPipelineLogger(s.logger.Named("pipeline"))}, s.pipelineOpts...)...)
	s.frames = dedupe.NewFrameDeduper(dedupe.WithCapacity(s.frameDedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	s.pool = worker.NewPool(s.workerCount, s.queue, s.pipeline, s.store, worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "advisor service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("frameDedupeSize", s.frameDedupeSize),
	)
	return nil
}

// Stop drains queued frames, then closes the results store. Errors from
// both steps are combined.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping advisor service...")

	var err error
	if perr := s.pool.Shutdown(ctx); perr != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(perr))
		err = multierr.Append(err, fmt.Errorf("drain workers: %w", perr))
	}
	if cerr := s.store.Close(); cerr != nil {
		s.logger.Error(ctx, "error closing results store", logger.Error(cerr))
		err = multierr.Append(err, fmt.Errorf("close results store: %w", cerr))
	}
	if s.ownsStore {
		s.store = nil
		s.ownsStore = false
	} else {
		s.storeClosed = true
	}

	s.started = false
	s.logger.Info(ctx, "advisor service stopped")
	return err
}

// NormalizeFrame fills in a frame ID and receive time when missing.
func NormalizeFrame(f *model.Frame) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.ReceivedAt.IsZero() {
		f.ReceivedAt = time.Now()
	}
}

// SeenAndRecord reports whether a frame ID was already accepted and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	s.mu.RLock()
	frames := s.frames
	s.mu.RUnlock()
	if frames == nil {
		return false
	}
	seen := frames.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordFrameDuplicate()
	}
	return seen
}

// Unrecord forgets a frame ID so it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.mu.RLock()
	frames := s.frames
	s.mu.RUnlock()
	if frames != nil {
		frames.Unrecord(ctx, id)
	}
}

// Enqueue submits a frame for asynchronous processing. It returns false if
// the queue is full or closed.
func (s *Service) Enqueue(ctx context.Context, f model.Frame) bool { //nolint:gocritic // hugeParam: frames travel by value
	if !s.isStarted() {
		return false
	}
	NormalizeFrame(&f)
	ok := s.queue.Enqueue(ctx, f)
	if ok {
		s.logger.Debug(ctx, "frame queued", logger.String("frame_id", f.ID), logger.Int("detections", len(f.Detections)))
	}
	return ok
}

// Analyze processes a frame synchronously and stores the result.
func (s *Service) Analyze(ctx context.Context, f model.Frame) (model.FrameResult, error) { //nolint:gocritic // hugeParam: frames travel by value
	s.mu.RLock()
	started, pipeline, store := s.started, s.pipeline, s.store
	s.mu.RUnlock()
	if !started {
		return model.FrameResult{}, ErrNotStarted
	}
	NormalizeFrame(&f)

	res, err := pipeline.Process(ctx, f)
	if err != nil {
		return model.FrameResult{}, err
	}
	if err := store.Put(ctx, res); err != nil {
		return res, fmt.Errorf("store result: %w", err)
	}
	return res, nil
}

// Advise validates a hand and returns the recommendation.
func (s *Service) Advise(ctx context.Context, hand strategy.Hand, dealer card.Rank) (strategy.Action, error) {
	act, err := strategy.AdviseStrict(hand, dealer)
	if err != nil {
		metrics.RecordAdviceSkipped(model.SkipInvalidRank)
		s.log().Debug(ctx, "rejected advice request", logger.Error(err))
		return act, err
	}
	metrics.RecordAdvice(act.String())
	return act, nil
}

// Result returns the stored result for a frame.
func (s *Service) Result(ctx context.Context, frameID string) (model.FrameResult, error) {
	store, err := s.openStore()
	if err != nil {
		return model.FrameResult{}, err
	}
	return store.Get(ctx, frameID)
}

// Latest returns the most recently stored result.
func (s *Service) Latest(ctx context.Context) (model.FrameResult, error) {
	store, err := s.openStore()
	if err != nil {
		return model.FrameResult{}, err
	}
	return store.Latest(ctx)
}

// Recent returns up to n stored results, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]model.FrameResult, error) {
	store, err := s.openStore()
	if err != nil {
		return nil, err
	}
	return store.Recent(ctx, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"frameDedupeSize": s.frameDedupeSize,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["framesSeen"] = s.frames.Size()
		stats["framesProcessed"] = s.pool.Processed()
		if n, err := s.store.Count(ctx); err == nil {
			stats["results"] = n
			metrics.UpdateRepositoryResults(n)
		}
	}
	return stats
}

// Size returns the number of frame IDs currently remembered.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frames == nil {
		return 0
	}
	return s.frames.Size()
}

// openStore returns the results store of a running service.
func (s *Service) openStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.NewNop()
	}
	return s.logger
}
