package card

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/okian/blackjack/pkg/logger"
	"github.com/okian/blackjack/pkg/metrics"
)

// ParseRank converts a detector label such as "10D", "KH" or "AS" into a
// rank. The last character is the suit and is ignored; the rest is matched
// case-insensitively. Unknown tokens return RankUnknown and
// ErrUnparseableRank.
func ParseRank(label string) (Rank, error) {
	_, size := utf8.DecodeLastRuneInString(label)
	token := strings.ToUpper(label[:len(label)-size])

	switch token {
	case "A":
		return RankAce, nil
	case "J", "Q", "K":
		return RankTen, nil
	}

	if token != "" && isDigits(token) {
		n, err := strconv.Atoi(token)
		if err == nil {
			return Rank(n), nil
		}
	}
	return RankUnknown, fmt.Errorf("%w: %q", ErrUnparseableRank, label)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Parser is the never-failing form of ParseRank used by the frame pipeline.
// Unparseable labels produce a diagnostic and RankUnknown.
type Parser struct {
	logger logger.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets where diagnostics are written.
func WithLogger(l logger.Logger) ParserOption {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser creates a Parser. Without WithLogger diagnostics are only counted.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{logger: logger.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the rank of label, or RankUnknown after emitting a diagnostic.
func (p *Parser) Parse(ctx context.Context, label string) Rank {
	r, err := ParseRank(label)
	if err != nil {
		metrics.RecordUnparseableRank()
		p.logger.Warn(ctx, "couldn't parse card value", logger.String("label", label), logger.Error(err))
	}
	return r
}
