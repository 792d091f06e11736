package strategy

import (
	"fmt"
	"strings"
)

// Action is a basic-strategy recommendation.
type Action int

const (
	// NoAction is the zero value; Advise never returns it.
	NoAction Action = iota
	Hit
	Stand
	Split
)

func (a Action) String() string {
	switch a {
	case Hit:
		return "Hit"
	case Stand:
		return "Stand"
	case Split:
		return "Split"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Matching is
// case-insensitive; an empty value decodes to NoAction.
func (a *Action) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "":
		*a = NoAction
	case "hit":
		*a = Hit
	case "stand":
		*a = Stand
	case "split":
		*a = Split
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, string(b))
	}
	return nil
}
