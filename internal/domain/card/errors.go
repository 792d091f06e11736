package card

import "errors"

// Sentinel errors for card parsing and construction.
var (
	ErrUnparseableRank  = errors.New("unparseable rank")
	ErrInvalidDetection = errors.New("invalid detection")
)
