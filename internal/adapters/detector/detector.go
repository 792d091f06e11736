// Package detector is the boundary to the external card detector. Detectors
// yield one model.Frame per video frame and io.EOF when the stream ends.
package detector

import (
	"context"
	"errors"

	"github.com/okian/blackjack/internal/domain/model"
)

// Detector produces detection frames.
type Detector interface {
	// Detect returns the next frame. It returns io.EOF once the source is
	// exhausted.
	Detect(ctx context.Context) (model.Frame, error)

	// Close releases any resources held by the detector.
	Close() error
}

var (
	// ErrMalformedFrame wraps a line that is not a valid frame record.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrClosed is returned by Detect after Close.
	ErrClosed = errors.New("detector closed")
)
