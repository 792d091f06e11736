package strategy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/blackjack/internal/domain/card"
)

// ParseCardToken reads one typed card value: a decimal integer or an
// upper-case "A" for an ace. Range is not checked here; AdviseStrict does that.
func ParseCardToken(token string) (card.Rank, error) {
	token = strings.TrimSpace(token)
	if token == "A" {
		return card.RankAce, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return card.RankUnknown, fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return card.Rank(n), nil
}

// ParseHandTokens parses whitespace-separated card tokens into a hand.
func ParseHandTokens(line string) (Hand, error) {
	return ParseTokens(strings.Fields(line))
}

// ParseTokens parses each token with ParseCardToken.
func ParseTokens(tokens []string) (Hand, error) {
	hand := make(Hand, 0, len(tokens))
	for _, tok := range tokens {
		r, err := ParseCardToken(tok)
		if err != nil {
			return nil, err
		}
		hand = append(hand, r)
	}
	return hand, nil
}
