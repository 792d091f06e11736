// Command replay feeds a JSON-lines file of detector frames to a running
// advisor and prints a summary of the advice it returned.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/blackjack/internal/adapters/detector"
	"github.com/okian/blackjack/internal/replay"
	"github.com/okian/blackjack/pkg/logger"
)

// Default configuration constants.
const (
	defaultTimeout = 10 * time.Second
	defaultHeight  = 720
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		input   = flag.String("frames", "", "JSON-lines file of frames (default: stdin)")
		command = flag.String("detector", "", "Detector command whose stdout is read instead of -frames")
		height  = flag.Int("height", defaultHeight, "Frame height used when a record omits it")
		workers = flag.Int("workers", runtime.NumCPU(), "Number of concurrent submitters")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		async   = flag.Bool("async", false, "Queue frames instead of analyzing them inline")
		verbose = flag.Bool("verbose", false, "Log every frame result")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var det detector.Detector
	switch {
	case *command != "":
		det = detector.NewCommandDetector(*command, flag.Args(), detector.WithDefaultHeight(*height))
	case *input != "":
		d, err := detector.OpenFile(*input, detector.WithDefaultHeight(*height))
		if err != nil {
			log.Error(ctx, "failed to open frames", logger.Error(err))
			os.Exit(1)
		}
		det = d
	default:
		det = detector.NewJSONLinesDetector(os.Stdin, detector.WithDefaultHeight(*height))
	}
	defer det.Close()

	cfg := &replay.Config{
		BaseURL: *baseURL,
		Workers: *workers,
		Timeout: *timeout,
		Async:   *async,
		Verbose: *verbose,
	}
	if _, err := replay.Run(ctx, cfg, det, os.Stdout); err != nil {
		log.Error(ctx, "replay failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}
