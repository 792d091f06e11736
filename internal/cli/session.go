// Package cli implements the interactive text mode: the user types a hand
// and the dealer's up-card and gets the basic-strategy action back.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/strategy"
	"github.com/okian/blackjack/pkg/logger"
)

// Session is one interactive advice loop over a reader and a writer.
type Session struct {
	in     *bufio.Reader
	out    io.Writer
	logger logger.Logger

	info    *pterm.PrefixPrinter
	warning *pterm.PrefixPrinter
	success *pterm.PrefixPrinter
	box     *pterm.BoxPrinter

	hands int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger records each answered hand at debug level.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession creates a session reading answers from in and writing prompts
// and results to out.
func NewSession(in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		in:      bufio.NewReader(in),
		out:     out,
		logger:  logger.NewNop(),
		info:    pterm.Info.WithWriter(out),
		warning: pterm.Warning.WithWriter(out),
		success: pterm.Success.WithWriter(out),
		box:     pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hands is the number of hands answered so far.
func (s *Session) Hands() int {
	return s.hands
}

// Run loops until the user declines another hand, the input ends or ctx is
// cancelled. Bad input is re-prompted and never ends the session.
func (s *Session) Run(ctx context.Context) error {
	s.info.Println("Type your cards separated by spaces. Use A for an ace and numbers for the rest, e.g. 10 A")

	for {
		hand, err := s.askHand(ctx)
		if err != nil {
			return s.finish(err)
		}
		dealer, err := s.askDealer(ctx)
		if err != nil {
			return s.finish(err)
		}

		s.render(hand, dealer, strategy.Advise(hand, dealer))
		s.hands++
		s.logger.Debug(ctx, "hand answered", logger.Int("cards", len(hand)), logger.Int("dealer", int(dealer)))

		again, err := s.readLine(ctx, "Another hand? (y/n): ")
		if err != nil {
			return s.finish(err)
		}
		if again != "y" {
			return s.finish(nil)
		}
	}
}

func (s *Session) finish(err error) error {
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	s.success.Printfln("Done after %d hand(s).", s.hands)
	return nil
}

func (s *Session) askHand(ctx context.Context) (strategy.Hand, error) {
	for {
		line, err := s.readLine(ctx, "Your cards: ")
		if err != nil {
			return nil, err
		}
		hand, err := strategy.ParseHandTokens(line)
		switch {
		case err != nil:
			s.warning.Printfln("%v; use numbers or A", err)
		case len(hand) == 0:
			s.warning.Println("enter at least one card")
		default:
			return hand, nil
		}
	}
}

func (s *Session) askDealer(ctx context.Context) (card.Rank, error) {
	for {
		line, err := s.readLine(ctx, "Dealer's card: ")
		if err != nil {
			return card.RankUnknown, err
		}
		fields := strings.Fields(line)
		if len(fields) != 1 {
			s.warning.Println("enter exactly one dealer card")
			continue
		}
		r, err := strategy.ParseCardToken(fields[0])
		if err != nil {
			s.warning.Printfln("%v; use a number or A", err)
			continue
		}
		return r, nil
	}
}

// readLine prompts and returns the trimmed answer. A final line without a
// newline is still returned; io.EOF is reported only when nothing was read.
func (s *Session) readLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(s.out, pterm.LightCyan(prompt))

	line, err := s.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		fmt.Fprintln(s.out)
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) render(hand strategy.Hand, dealer card.Rank, act strategy.Action) {
	total, soft := strategy.Total(hand)
	kind := "hard"
	if soft {
		kind = "soft"
	}

	cards := make([]string, len(hand))
	for i, r := range hand {
		cards[i] = r.String()
	}

	body := pterm.Sprintf("Hand:   %s (sum %d, %s %d)\nDealer: %s\nAction: %s",
		strings.Join(cards, " "), hand.Sum(), kind, total, dealer, pterm.LightGreen(act.String()))
	fmt.Fprintln(s.out, s.box.WithTitle(pterm.LightYellow("|ADVICE|")).WithTitleTopCenter().Sprint(body))
}
