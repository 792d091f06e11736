// Package strategy is the basic-strategy decision table for a single
// blackjack hand against the dealer's up-card.
package strategy

import (
	"fmt"

	"github.com/okian/blackjack/internal/domain/card"
)

// Hand is the rank values of the player's cards. Aces are 11.
type Hand []card.Rank

// Sum adds the rank values as given.
func (h Hand) Sum() int {
	s := 0
	for _, r := range h {
		s += int(r)
	}
	return s
}

// Pair returns the shared rank when h is exactly two cards of equal value.
func (h Hand) Pair() (card.Rank, bool) {
	if len(h) == 2 && h[0] == h[1] {
		return h[0], true
	}
	return card.RankUnknown, false
}

func (h Hand) hasAce() bool {
	for _, r := range h {
		if r == card.RankAce {
			return true
		}
	}
	return false
}

// Total returns the value the decision table works with. A hand holding an
// ace whose raw sum is at most 21 is soft, and its total counts one ace as 1.
// Only one ace is ever reduced.
func Total(h Hand) (total int, soft bool) {
	total = h.Sum()
	if h.hasAce() && total <= 21 {
		return total - 10, true
	}
	return total, false
}

// Advise returns the action for hand h against dealer. It is total over all
// inputs: out-of-range values are not rejected and simply flow through the
// comparisons. Use AdviseStrict to reject them.
func Advise(h Hand, dealer card.Rank) Action {
	if v, ok := h.Pair(); ok && splits(v, dealer) {
		return Split
	}

	total, soft := Total(h)
	if soft {
		switch {
		case total <= 17:
			return Hit
		case total == 18 && dealer >= 9 && dealer <= card.RankAce:
			return Hit
		default:
			return Stand
		}
	}

	switch {
	case total <= 11:
		return Hit
	case total == 12 && dealer >= 4 && dealer <= 6:
		return Stand
	case total >= 13 && total <= 16 && dealer >= 7:
		return Hit
	default:
		return Stand
	}
}

func splits(v, dealer card.Rank) bool {
	switch v {
	case 8, card.RankAce:
		return true
	case 2, 3, 7:
		return dealer <= 7
	case 6:
		return dealer <= 6
	case 9:
		return dealer != 7 && dealer != card.RankTen && dealer != card.RankAce
	case 4:
		return dealer == 5 || dealer == 6
	}
	return false
}

// Validate checks that h is non-empty and that every rank, including the
// dealer's, is a real card value.
func Validate(h Hand, dealer card.Rank) error {
	if len(h) == 0 {
		return ErrEmptyHand
	}
	for i, r := range h {
		if !r.Valid() {
			return fmt.Errorf("%w: player card %d has value %d", ErrInvalidRank, i, int(r))
		}
	}
	if !dealer.Valid() {
		return fmt.Errorf("%w: dealer card has value %d", ErrInvalidRank, int(dealer))
	}
	return nil
}

// AdviseStrict validates its input before calling Advise.
func AdviseStrict(h Hand, dealer card.Rank) (Action, error) {
	if err := Validate(h, dealer); err != nil {
		return NoAction, err
	}
	return Advise(h, dealer), nil
}
