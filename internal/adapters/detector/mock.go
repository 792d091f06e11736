package detector

import (
	"context"
	"io"
	"sync"

	"github.com/okian/blackjack/internal/domain/model"
)

// MockDetector replays preset frames, then returns io.EOF.
type MockDetector struct {
	mu     sync.Mutex
	frames []model.Frame
	err    error
	closed bool
}

// NewMockDetector creates a MockDetector that yields frames in order.
func NewMockDetector(frames ...model.Frame) *MockDetector {
	return &MockDetector{frames: frames}
}

// SetFrames replaces the frames still to be returned.
func (m *MockDetector) SetFrames(frames ...model.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
}

// SetError makes every following Detect fail with err.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the next preset frame.
func (m *MockDetector) Detect(ctx context.Context) (model.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return model.Frame{}, ErrClosed
	case m.err != nil:
		return model.Frame{}, m.err
	case ctx.Err() != nil:
		return model.Frame{}, ctx.Err()
	case len(m.frames) == 0:
		return model.Frame{}, io.EOF
	}
	f := m.frames[0]
	m.frames = m.frames[1:]
	return f, nil
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
