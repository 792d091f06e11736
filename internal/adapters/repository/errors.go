package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrNotFound      = errors.New("frame result not found")
	ErrInvalidLimit  = errors.New("invalid result limit")
	ErrInvalidResult = errors.New("invalid frame result")
	ErrStoreClosed   = errors.New("store closed")
)
