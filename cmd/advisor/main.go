// Command advisor is the interactive text mode: type a hand and the dealer's
// card, get the basic-strategy action.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/okian/blackjack/internal/cli"
	"github.com/okian/blackjack/pkg/logger"
)

func main() {
	debug := flag.Bool("debug", false, "Log each answered hand to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	log := logger.New(os.Stderr, level).Named("advisor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pterm.DefaultHeader.WithFullWidth().Println("Blackjack Advisor")

	session := cli.NewSession(os.Stdin, os.Stdout, cli.WithLogger(log))
	if err := session.Run(ctx); err != nil {
		log.Error(ctx, "session ended with error", logger.Error(err))
		os.Exit(1)
	}
}
