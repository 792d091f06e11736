package service

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/dedupe"
	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/internal/domain/strategy"
	"github.com/okian/blackjack/internal/domain/zone"
	"github.com/okian/blackjack/pkg/logger"
	"github.com/okian/blackjack/pkg/metrics"
)

// Pipeline turns one detector frame into unique dealer and player cards and,
// when both sides have cards, a recommendation. It holds no per-frame state
// and is safe for concurrent use.
type Pipeline struct {
	parser            *card.Parser
	confidenceFloor   float64
	distanceThreshold float64
	overlapThreshold  float64
	clock             clock.Clock
	logger            logger.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithConfidenceFloor sets the minimum detection confidence.
func WithConfidenceFloor(floor float64) PipelineOption {
	return func(p *Pipeline) { p.confidenceFloor = floor }
}

// WithDistanceThreshold sets the dedupe centre-distance threshold in pixels.
func WithDistanceThreshold(px float64) PipelineOption {
	return func(p *Pipeline) { p.distanceThreshold = px }
}

// WithOverlapThreshold sets the dedupe IoU threshold.
func WithOverlapThreshold(iou float64) PipelineOption {
	return func(p *Pipeline) { p.overlapThreshold = iou }
}

// WithPipelineLogger sets the logger for diagnostics.
func WithPipelineLogger(l logger.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the clock used for ProcessedAt and latency.
func WithClock(c clock.Clock) PipelineOption {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// NewPipeline builds a Pipeline with the default thresholds.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		confidenceFloor:   zone.DefaultConfidenceFloor,
		distanceThreshold: dedupe.DefaultDistanceThreshold,
		overlapThreshold:  dedupe.DefaultOverlapThreshold,
		clock:             clock.New(),
		logger:            logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.parser = card.NewParser(card.WithLogger(p.logger))
	return p
}

// Process runs one frame. It fails only for a frame that cannot be
// interpreted at all; bad individual detections are dropped and counted.
func (p *Pipeline) Process(ctx context.Context, f model.Frame) (model.FrameResult, error) { //nolint:gocritic // hugeParam: frames travel by value
	if err := ctx.Err(); err != nil {
		return model.FrameResult{}, err
	}
	if f.Height <= 0 {
		return model.FrameResult{}, fmt.Errorf("%w: frame %q height %d", ErrInvalidFrame, f.ID, f.Height)
	}
	start := p.clock.Now()

	res := model.FrameResult{FrameID: f.ID}

	dets := make([]card.Detection, 0, len(f.Detections))
	for _, raw := range f.Detections {
		d, err := card.NewDetection(raw.Label, card.RankUnknown, raw.Confidence, card.Box(raw.BBox[0], raw.BBox[1], raw.BBox[2], raw.BBox[3]))
		if err != nil {
			res.Rejected++
			p.logger.Warn(ctx, "dropping detection", logger.String("frame_id", f.ID), logger.String("label", raw.Label), logger.Error(err))
			continue
		}
		if d.Confidence < p.confidenceFloor {
			res.LowConf++
			continue
		}
		// Only labels that clear the floor are parsed.
		d.Rank = p.parser.Parse(ctx, raw.Label)
		dets = append(dets, d)
	}

	dealerRaw, playerRaw := zone.Classify(dets, f.Height, zone.WithConfidenceFloor(p.confidenceFloor))

	uopts := []dedupe.Option{
		dedupe.WithDistanceThreshold(p.distanceThreshold),
		dedupe.WithOverlapThreshold(p.overlapThreshold),
	}
	res.Dealer, res.DealerReport = dedupe.UniqueWithReport(dealerRaw, uopts...)
	res.Player, res.PlayerReport = dedupe.UniqueWithReport(playerRaw, uopts...)

	p.advise(ctx, &res)
	res.ProcessedAt = p.clock.Now()

	p.record(&res, len(f.Detections), p.clock.Since(start))
	return res, nil
}

func (p *Pipeline) advise(ctx context.Context, res *model.FrameResult) {
	hand := res.Hand()
	if len(hand) > 0 {
		res.PlayerSum = hand.Sum()
		res.PlayerTotal, res.Soft = strategy.Total(hand)
	}

	dealer, ok := res.DealerCard()
	switch {
	case !ok:
		res.SkipReason = model.SkipDealerEmpty
	case len(hand) == 0:
		res.SkipReason = model.SkipPlayerEmpty
	default:
		act, err := strategy.AdviseStrict(hand, dealer.Rank)
		if err != nil {
			res.SkipReason = model.SkipInvalidRank
			p.logger.Warn(ctx, "no advice for frame", logger.String("frame_id", res.FrameID), logger.Error(err))
			return
		}
		res.Action = act
		res.HasAction = true
	}
}

func (p *Pipeline) record(res *model.FrameResult, raw int, took time.Duration) {
	metrics.RecordDetections(raw, res.LowConf, len(res.Dealer), len(res.Player))
	metrics.RecordSuppressed(metrics.ReasonLabel, res.DealerReport.Label+res.PlayerReport.Label)
	metrics.RecordSuppressed(metrics.ReasonOverlap, res.DealerReport.Overlap+res.PlayerReport.Overlap)
	metrics.RecordSuppressed(metrics.ReasonProximity, res.DealerReport.Proximity+res.PlayerReport.Proximity)
	if res.HasAction {
		metrics.RecordAdvice(res.Action.String())
	} else {
		metrics.RecordAdviceSkipped(res.SkipReason)
	}
	metrics.RecordFrameProcessed(float64(took.Microseconds()) / 1000)
}
