package service

import "errors"

// Sentinel errors returned by the service layer.
var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrNotStarted   = errors.New("service not started")
)
