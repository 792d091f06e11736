// Package model contains the records passed between the detector, the frame
// pipeline and the results store.
package model

import (
	"time"

	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/dedupe"
	"github.com/okian/blackjack/internal/domain/strategy"
)

// Reasons a processed frame carries no advice.
const (
	SkipDealerEmpty = "dealer_empty"
	SkipPlayerEmpty = "player_empty"
	SkipInvalidRank = "invalid_rank"
)

// RawDetection is one detector output tuple before any parsing.
// BBox is x_min, y_min, x_max, y_max in pixels.
type RawDetection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// Frame is a single detector pass over one video frame.
type Frame struct {
	ID         string         `json:"frame_id"`
	Height     int            `json:"height"`
	Detections []RawDetection `json:"detections"`
	ReceivedAt time.Time      `json:"received_at,omitzero"`
}

// FrameResult is what the pipeline produced for one frame.
type FrameResult struct {
	FrameID string           `json:"frame_id"`
	Dealer  []card.Detection `json:"dealer"`
	Player  []card.Detection `json:"player"`

	// Action is only meaningful when HasAction is set.
	Action    strategy.Action `json:"action,omitempty"`
	HasAction bool            `json:"has_action"`

	// PlayerSum is the face sum of the player's ranks, aces as 11.
	// PlayerTotal is the total the advice is based on: PlayerSum less 10
	// when Soft.
	PlayerSum   int    `json:"player_sum"`
	PlayerTotal int    `json:"player_total"`
	Soft        bool   `json:"soft"`
	SkipReason  string `json:"skip_reason,omitempty"`

	// Rejected counts raw detections that failed validation.
	Rejected     int           `json:"rejected"`
	LowConf      int           `json:"low_confidence"`
	DealerReport dedupe.Report `json:"dealer_report"`
	PlayerReport dedupe.Report `json:"player_report"`

	ProcessedAt time.Time `json:"processed_at"`
}

// DealerCard is the dealer's most confident unique card.
func (r FrameResult) DealerCard() (card.Detection, bool) {
	if len(r.Dealer) == 0 {
		return card.Detection{}, false
	}
	return r.Dealer[0], true
}

// Hand is the player's unique cards as rank values.
func (r FrameResult) Hand() strategy.Hand {
	return strategy.Hand(card.Ranks(r.Player))
}
