package strategy

import "errors"

var (
	// ErrEmptyHand is returned when advice is requested for no cards.
	ErrEmptyHand = errors.New("empty hand")
	// ErrInvalidRank is returned when a hand or dealer card is not 2..11.
	ErrInvalidRank = errors.New("invalid rank")
	// ErrUnknownAction is returned when decoding an unrecognised action name.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidToken is returned for a typed card that is neither a number nor A.
	ErrInvalidToken = errors.New("invalid card token")
)
