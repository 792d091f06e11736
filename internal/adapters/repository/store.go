// Package repository stores processed frame results.
package repository

import (
	"context"

	"github.com/okian/blackjack/internal/domain/model"
)

// Store provides read/write access to processed frame results.
type Store interface {
	// Put saves r, replacing any earlier result with the same frame ID.
	Put(ctx context.Context, r model.FrameResult) error

	// Get returns the result for frameID, or ErrNotFound.
	Get(ctx context.Context, frameID string) (model.FrameResult, error)

	// Latest returns the most recently saved result, or ErrNotFound.
	Latest(ctx context.Context) (model.FrameResult, error)

	// Recent returns up to n results, newest first.
	// Returns ErrInvalidLimit if n <= 0.
	Recent(ctx context.Context, n int) ([]model.FrameResult, error)

	// Count returns the number of stored results.
	Count(ctx context.Context) (int, error)

	Close() error
}
