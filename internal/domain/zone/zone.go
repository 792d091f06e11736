// Package zone splits a frame's detections into the dealer's and the
// player's side of the table.
package zone

import (
	"fmt"
	"math"

	"github.com/okian/blackjack/internal/domain/card"
)

// Zone is a table region.
type Zone int

const (
	// Dealer is the upper half of the frame.
	Dealer Zone = iota
	// Player is the lower half of the frame.
	Player
)

// DefaultConfidenceFloor drops detections the model is unsure about.
const DefaultConfidenceFloor = 0.5

func (z Zone) String() string {
	switch z {
	case Dealer:
		return "dealer"
	case Player:
		return "player"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (z Zone) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// ZoneOf places d by the floor of its vertical centre against the floor of
// half the frame height. Cards on the midline belong to the player.
func ZoneOf(d card.Detection, frameHeight int) Zone {
	centerY := math.Floor((d.Box.YMin + d.Box.YMax) / 2)
	midline := math.Floor(float64(frameHeight) / 2)
	if centerY < midline {
		return Dealer
	}
	return Player
}

// Classify drops detections below the confidence floor and partitions the
// rest by zone. Input order is kept within each side.
func Classify(dets []card.Detection, frameHeight int, opts ...Option) (dealer, player []card.Detection) {
	c := classifier{floor: DefaultConfidenceFloor}
	for _, opt := range opts {
		opt(&c)
	}

	dealer = make([]card.Detection, 0, len(dets))
	player = make([]card.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < c.floor {
			continue
		}
		if ZoneOf(d, frameHeight) == Dealer {
			dealer = append(dealer, d)
		} else {
			player = append(player, d)
		}
	}
	return dealer, player
}
