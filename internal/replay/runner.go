package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	mstats "github.com/montanaflynn/stats"
	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"github.com/okian/blackjack/internal/adapters/detector"
	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/pkg/logger"
)

// Run reads every frame from det, submits it to the service and writes a
// summary table to out. Frames without an ID get a random one. A read error
// stops the replay after in-flight frames finish and is returned alongside
// the stats gathered so far.
func Run(ctx context.Context, cfg *Config, det detector.Detector, out io.Writer) (*Stats, error) {
	stats := newStats()
	log := logger.Get().Named("replay")

	log.Info(ctx, "starting replay",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()),
		logger.Bool("async", cfg.Async))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	workers := max(cfg.Workers, 1)
	frames := make(chan model.Frame, workers*2)

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for f := range frames {
				submitFrame(ctx, cfg, client, log, f, stats)
			}
			return nil
		})
	}
	g.Go(func() error {
		return feed(ctx, det, frames, stats)
	})
	readErr := g.Wait()

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if err := writeSummary(out, stats); err != nil {
		log.Warn(ctx, "failed to render summary", logger.Error(err))
	}
	log.Info(ctx, "replay finished",
		logger.Int("framesRead", stats.FramesRead),
		logger.Int("framesSent", stats.FramesSent),
		logger.Int("failed", stats.Failed),
		logger.String("duration", stats.Duration.String()))

	if readErr != nil {
		return stats, fmt.Errorf("read frames: %w", readErr)
	}
	return stats, nil
}

// feed pushes detector frames to the workers and closes the channel.
func feed(ctx context.Context, det detector.Detector, frames chan<- model.Frame, stats *Stats) error {
	defer close(frames)
	for {
		f, err := det.Detect(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		stats.recordRead()
		if f.ID == "" {
			f.ID = uuid.NewString()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case frames <- f:
		}
	}
}

func submitFrame(ctx context.Context, cfg *Config, client *httpClient, log logger.Logger, f model.Frame, stats *Stats) { //nolint:gocritic // hugeParam: frames travel by value
	start := time.Now()
	defer func() { stats.recordLatency(time.Since(start)) }()

	if cfg.Async {
		dup, err := client.queueFrame(ctx, f)
		if err != nil {
			stats.recordFailure()
			log.Warn(ctx, "frame rejected", logger.String("frame_id", f.ID), logger.Error(err))
			return
		}
		stats.recordAck(dup)
		if cfg.Verbose {
			log.Info(ctx, "frame queued", logger.String("frame_id", f.ID), logger.Bool("duplicate", dup))
		}
		return
	}

	res, err := client.analyzeFrame(ctx, f)
	if err != nil {
		stats.recordFailure()
		log.Warn(ctx, "frame rejected", logger.String("frame_id", f.ID), logger.Error(err))
		return
	}
	stats.recordResult(res)
	if cfg.Verbose {
		log.Info(ctx, "frame advised",
			logger.String("frame_id", res.FrameID),
			logger.String("action", res.Action.String()),
			logger.Int("total", res.PlayerTotal),
			logger.String("skip", res.SkipReason))
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *httpClient) error {
	resp, err := client.get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// writeSummary renders the stats as a table.
func writeSummary(out io.Writer, stats *Stats) error {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	data := pterm.TableData{
		{"Metric", "Value"},
		{"Frames read", strconv.Itoa(stats.FramesRead)},
		{"Frames sent", strconv.Itoa(stats.FramesSent)},
		{"Advised", strconv.Itoa(stats.Advised)},
		{"Skipped", strconv.Itoa(stats.Skipped)},
		{"Queued", strconv.Itoa(stats.Queued)},
		{"Duplicate", strconv.Itoa(stats.Duplicate)},
		{"Failed", strconv.Itoa(stats.Failed)},
	}
	for _, action := range slices.Sorted(maps.Keys(stats.Actions)) {
		data = append(data, []string{"Action " + action, strconv.Itoa(stats.Actions[action])})
	}
	for _, reason := range slices.Sorted(maps.Keys(stats.SkipReasons)) {
		data = append(data, []string{"Skip " + reason, strconv.Itoa(stats.SkipReasons[reason])})
	}
	data = append(data, latencyRows(stats.Latencies)...)
	data = append(data, []string{"Duration", stats.Duration.Round(time.Millisecond).String()})

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, table)
	return err
}

// latencyRows summarises request latencies in milliseconds. Nothing is
// reported when no request was made.
func latencyRows(latencies []float64) [][]string {
	if len(latencies) == 0 {
		return nil
	}
	data := mstats.Float64Data(latencies)
	mean, _ := data.Mean()
	p50, _ := data.Percentile(50)
	p95, _ := data.Percentile(95)
	maxMs, _ := data.Max()
	return [][]string{
		{"Latency mean", formatMillis(mean)},
		{"Latency p50", formatMillis(p50)},
		{"Latency p95", formatMillis(p95)},
		{"Latency max", formatMillis(maxMs)},
	}
}

func formatMillis(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 1, 64) + "ms"
}
