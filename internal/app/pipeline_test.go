package service_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	service "github.com/okian/blackjack/internal/app"
	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/internal/domain/strategy"
	"github.com/okian/blackjack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func raw(label string, conf, x1, y1, x2, y2 float64) model.RawDetection {
	return model.RawDetection{Label: label, Confidence: conf, BBox: [4]float64{x1, y1, x2, y2}}
}

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newPipeline(opts ...service.PipelineOption) *service.Pipeline {
	mock := clock.NewMock()
	mock.Set(fixed)
	return service.NewPipeline(append([]service.PipelineOption{service.WithClock(mock)}, opts...)...)
}

func TestPipelineProcess(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pipeline with default thresholds", t, func() {
		p := newPipeline()

		Convey("When a frame has cards on both sides", func() {
			f := model.Frame{ID: "f-1", Height: 720, Detections: []model.RawDetection{
				raw("6H", 0.92, 100, 50, 180, 170),
				raw("10D", 0.88, 100, 500, 180, 620),
				raw("10H", 0.61, 105, 505, 185, 625),
				raw("7S", 0.83, 300, 500, 380, 620),
				raw("3C", 0.30, 500, 500, 580, 620),
			}}
			res, err := p.Process(ctx, f)

			Convey("Then duplicates and weak detections are removed and advice is given", func() {
				So(err, ShouldBeNil)
				So(res.FrameID, ShouldEqual, "f-1")
				So(card.Labels(res.Dealer), ShouldResemble, []string{"6H"})
				So(card.Labels(res.Player), ShouldResemble, []string{"10D", "7S"})
				So(res.HasAction, ShouldBeTrue)
				So(res.Action, ShouldEqual, strategy.Stand)
				So(res.PlayerSum, ShouldEqual, 17)
				So(res.PlayerTotal, ShouldEqual, 17)
				So(res.Soft, ShouldBeFalse)
				So(res.LowConf, ShouldEqual, 1)
				So(res.PlayerReport.Overlap, ShouldEqual, 1)
				So(res.SkipReason, ShouldBeEmpty)
				So(res.ProcessedAt, ShouldEqual, fixed)
			})
		})

		Convey("When the dealer has several cards", func() {
			f := model.Frame{ID: "f-2", Height: 720, Detections: []model.RawDetection{
				raw("2C", 0.70, 400, 50, 480, 170),
				raw("KS", 0.95, 100, 50, 180, 170),
				raw("8D", 0.90, 100, 500, 180, 620),
				raw("8C", 0.85, 300, 500, 380, 620),
			}}
			res, err := p.Process(ctx, f)

			Convey("Then the most confident dealer card is used", func() {
				So(err, ShouldBeNil)
				So(card.Labels(res.Dealer), ShouldResemble, []string{"KS", "2C"})
				So(res.Action, ShouldEqual, strategy.Split)
			})
		})

		Convey("When the player holds a soft hand", func() {
			f := model.Frame{ID: "f-3", Height: 720, Detections: []model.RawDetection{
				raw("10C", 0.9, 100, 50, 180, 170),
				raw("AS", 0.9, 100, 500, 180, 620),
				raw("6D", 0.9, 300, 500, 380, 620),
			}}
			res, err := p.Process(ctx, f)

			Convey("Then the total counts one ace low", func() {
				So(err, ShouldBeNil)
				So(res.Soft, ShouldBeTrue)
				So(res.PlayerSum, ShouldEqual, 17)
				So(res.PlayerTotal, ShouldEqual, 7)
				So(res.Action, ShouldEqual, strategy.Hit)
			})
		})

		Convey("When the dealer zone is empty", func() {
			f := model.Frame{ID: "f-4", Height: 720, Detections: []model.RawDetection{
				raw("10D", 0.88, 100, 500, 180, 620),
			}}
			res, err := p.Process(ctx, f)

			Convey("Then no advice is given", func() {
				So(err, ShouldBeNil)
				So(res.HasAction, ShouldBeFalse)
				So(res.Action, ShouldEqual, strategy.NoAction)
				So(res.SkipReason, ShouldEqual, model.SkipDealerEmpty)
				So(res.PlayerTotal, ShouldEqual, 10)
			})
		})

		Convey("When the player zone is empty", func() {
			f := model.Frame{ID: "f-5", Height: 720, Detections: []model.RawDetection{
				raw("6H", 0.92, 100, 50, 180, 170),
			}}
			res, err := p.Process(ctx, f)

			Convey("Then no advice is given", func() {
				So(err, ShouldBeNil)
				So(res.SkipReason, ShouldEqual, model.SkipPlayerEmpty)
			})
		})

		Convey("When a label cannot be parsed", func() {
			f := model.Frame{ID: "f-6", Height: 720, Detections: []model.RawDetection{
				raw("6H", 0.92, 100, 50, 180, 170),
				raw("??", 0.88, 100, 500, 180, 620),
			}}
			res, err := p.Process(ctx, f)

			Convey("Then the card is kept but advice is withheld", func() {
				So(err, ShouldBeNil)
				So(res.Player, ShouldHaveLength, 1)
				So(res.Player[0].Rank, ShouldEqual, card.RankUnknown)
				So(res.HasAction, ShouldBeFalse)
				So(res.SkipReason, ShouldEqual, model.SkipInvalidRank)
			})
		})

		Convey("When detections are malformed", func() {
			f := model.Frame{ID: "f-7", Height: 720, Detections: []model.RawDetection{
				raw("6H", 1.5, 100, 50, 180, 170),
				raw("7H", 0.9, 180, 50, 100, 170),
				raw("8H", 0.9, 100, 500, 180, 620),
				raw("9H", 0.9, 300, 500, 380, math.NaN()),
			}}
			res, err := p.Process(ctx, f)

			Convey("Then bad confidence and non-finite boxes are rejected", func() {
				So(err, ShouldBeNil)
				So(res.Rejected, ShouldEqual, 2)
				So(card.Labels(res.Player), ShouldResemble, []string{"8H"})
			})

			Convey("Then an inverted box is still classified", func() {
				So(card.Labels(res.Dealer), ShouldResemble, []string{"7H"})
			})
		})

		Convey("When a player card has an inverted box", func() {
			f := model.Frame{ID: "f-7b", Height: 720, Detections: []model.RawDetection{
				raw("6D", 0.92, 100, 50, 180, 170),
				raw("10H", 0.88, 100, 500, 180, 620),
				raw("7S", 0.83, 600, 500, 400, 600),
			}}
			res, err := p.Process(ctx, f)

			Convey("Then it counts toward the hand", func() {
				So(err, ShouldBeNil)
				So(res.Rejected, ShouldEqual, 0)
				So(card.Labels(res.Player), ShouldResemble, []string{"10H", "7S"})
				So(res.PlayerTotal, ShouldEqual, 17)
				So(res.Action, ShouldEqual, strategy.Stand)
			})
		})

		Convey("When an unparseable label is below the confidence floor", func() {
			var buf bytes.Buffer
			lp := newPipeline(service.WithPipelineLogger(logger.New(&buf, slog.LevelDebug)))
			f := model.Frame{ID: "f-7c", Height: 720, Detections: []model.RawDetection{
				raw("6H", 0.92, 100, 50, 180, 170),
				raw("??", 0.20, 100, 500, 180, 620),
				raw("10D", 0.88, 300, 500, 380, 620),
			}}
			res, err := lp.Process(ctx, f)

			Convey("Then it is dropped without a parse diagnostic", func() {
				So(err, ShouldBeNil)
				So(res.LowConf, ShouldEqual, 1)
				So(card.Labels(res.Player), ShouldResemble, []string{"10D"})
				So(buf.String(), ShouldNotContainSubstring, "couldn't parse card value")
			})
		})

		Convey("When the frame has no detections", func() {
			res, err := p.Process(ctx, model.Frame{ID: "f-8", Height: 720})

			Convey("Then it is an empty result, not an error", func() {
				So(err, ShouldBeNil)
				So(res.Dealer, ShouldBeEmpty)
				So(res.Player, ShouldBeEmpty)
				So(res.SkipReason, ShouldEqual, model.SkipDealerEmpty)
			})
		})

		Convey("When the frame height is missing", func() {
			_, err := p.Process(ctx, model.Frame{ID: "f-9"})
			So(errors.Is(err, service.ErrInvalidFrame), ShouldBeTrue)
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := p.Process(cctx, model.Frame{ID: "f-10", Height: 720})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given a pipeline with custom thresholds", t, func() {
		p := newPipeline(
			service.WithConfidenceFloor(0.2),
			service.WithDistanceThreshold(10),
			service.WithOverlapThreshold(0.9),
		)
		f := model.Frame{ID: "f-11", Height: 720, Detections: []model.RawDetection{
			raw("6H", 0.92, 100, 50, 180, 170),
			raw("2D", 0.30, 100, 500, 180, 620),
			raw("3D", 0.25, 150, 500, 230, 620),
		}}
		res, err := p.Process(ctx, f)

		Convey("Then they change what survives", func() {
			So(err, ShouldBeNil)
			So(res.LowConf, ShouldEqual, 0)
			So(card.Labels(res.Player), ShouldResemble, []string{"2D", "3D"})
			So(res.Action, ShouldEqual, strategy.Hit)
		})
	})
}
