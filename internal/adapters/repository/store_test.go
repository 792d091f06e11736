package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/blackjack/internal/adapters/repository"
	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/internal/domain/strategy"
	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func result(id string, action strategy.Action) model.FrameResult {
	return model.FrameResult{
		FrameID:     id,
		Dealer:      []card.Detection{{Label: "6H", Rank: 6, Confidence: 0.9, Box: card.Box(10, 10, 60, 90)}},
		Player:      []card.Detection{{Label: "10D", Rank: 10, Confidence: 0.8, Box: card.Box(10, 500, 60, 580)}},
		Action:      action,
		HasAction:   action != strategy.NoAction,
		PlayerTotal: 10,
		ProcessedAt: epoch,
	}
}

// storeContract runs the behaviour every Store must share.
func storeContract(newStore func() repository.Store) {
	ctx := context.Background()

	Convey("When the store is empty", func() {
		s := newStore()
		defer func() { _ = s.Close() }()

		_, err := s.Latest(ctx)
		So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		_, err = s.Get(ctx, "missing")
		So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		n, err := s.Count(ctx)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 0)
	})

	Convey("When results are stored", func() {
		s := newStore()
		defer func() { _ = s.Close() }()

		So(s.Put(ctx, result("f-1", strategy.Hit)), ShouldBeNil)
		So(s.Put(ctx, result("f-2", strategy.Stand)), ShouldBeNil)

		Convey("Then they can be read back by ID", func() {
			got, err := s.Get(ctx, "f-1")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, result("f-1", strategy.Hit))
		})

		Convey("Then the latest is the last one put", func() {
			got, err := s.Latest(ctx)
			So(err, ShouldBeNil)
			So(got.FrameID, ShouldEqual, "f-2")
			So(got.Action, ShouldEqual, strategy.Stand)
		})

		Convey("Then recent results come newest first", func() {
			got, err := s.Recent(ctx, 10)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(got[0].FrameID, ShouldEqual, "f-2")
			So(got[1].FrameID, ShouldEqual, "f-1")

			_, err = s.Recent(ctx, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("Then a repeated frame ID replaces the earlier result", func() {
			So(s.Put(ctx, result("f-1", strategy.Split)), ShouldBeNil)

			got, err := s.Get(ctx, "f-1")
			So(err, ShouldBeNil)
			So(got.Action, ShouldEqual, strategy.Split)

			latest, err := s.Latest(ctx)
			So(err, ShouldBeNil)
			So(latest.FrameID, ShouldEqual, "f-1")

			n, err := s.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
		})

		Convey("Then a result without an ID is rejected", func() {
			err := s.Put(ctx, model.FrameResult{})
			So(errors.Is(err, repository.ErrInvalidResult), ShouldBeTrue)
		})
	})

	Convey("When a skipped frame is stored", func() {
		s := newStore()
		defer func() { _ = s.Close() }()

		r := model.FrameResult{FrameID: "f-skip", SkipReason: model.SkipDealerEmpty, ProcessedAt: epoch}
		So(s.Put(ctx, r), ShouldBeNil)

		got, err := s.Get(ctx, "f-skip")
		So(err, ShouldBeNil)
		So(got.HasAction, ShouldBeFalse)
		So(got.SkipReason, ShouldEqual, model.SkipDealerEmpty)
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		storeContract(func() repository.Store {
			return repository.NewMemoryStore(context.Background())
		})
	})

	Convey("Given a memory store with a small capacity", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(ctx, repository.WithCapacity(3), repository.WithMetricsUpdateInterval(time.Millisecond))
		defer func() { _ = s.Close() }()

		for i := 1; i <= 5; i++ {
			So(s.Put(ctx, result(fmt.Sprintf("f-%d", i), strategy.Hit)), ShouldBeNil)
		}

		Convey("Then the oldest results are evicted", func() {
			n, _ := s.Count(ctx)
			So(n, ShouldEqual, 3)

			_, err := s.Get(ctx, "f-1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = s.Get(ctx, "f-2")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			recent, err := s.Recent(ctx, 5)
			So(err, ShouldBeNil)
			ids := []string{}
			for _, r := range recent {
				ids = append(ids, r.FrameID)
			}
			So(ids, ShouldResemble, []string{"f-5", "f-4", "f-3"})
		})
	})

	Convey("Given a closed memory store", t, func() {
		s := repository.NewMemoryStore(context.Background())
		So(s.Close(), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		err := s.Put(context.Background(), result("f-1", strategy.Hit))
		So(errors.Is(err, repository.ErrStoreClosed), ShouldBeTrue)
	})

	Convey("Given concurrent writers", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(ctx, repository.WithCapacity(50))
		defer func() { _ = s.Close() }()

		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_ = s.Put(ctx, result(fmt.Sprintf("w%d-%d", w, i), strategy.Stand))
					_, _ = s.Latest(ctx)
				}
			}(w)
		}
		wg.Wait()

		n, _ := s.Count(ctx)
		So(n, ShouldEqual, 50)
	})
}

func TestSQLiteStore(t *testing.T) {
	Convey("Given a sqlite store", t, func() {
		dir := t.TempDir()
		i := 0
		storeContract(func() repository.Store {
			i++
			s, err := repository.NewSQLiteStore(context.Background(), filepath.Join(dir, fmt.Sprintf("results-%d.db", i)))
			So(err, ShouldBeNil)
			return s
		})
	})

	Convey("Given a sqlite store that is reopened", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "results.db")

		s, err := repository.NewSQLiteStore(ctx, path)
		So(err, ShouldBeNil)
		So(s.Path(), ShouldEqual, path)
		So(s.Put(ctx, result("f-1", strategy.Split)), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		s, err = repository.NewSQLiteStore(ctx, path)
		So(err, ShouldBeNil)
		defer func() { _ = s.Close() }()

		Convey("Then earlier results are still there", func() {
			got, err := s.Get(ctx, "f-1")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, result("f-1", strategy.Split))
		})
	})

	Convey("Given an in-memory sqlite database", t, func() {
		s, err := repository.NewSQLiteStore(context.Background(), ":memory:")
		So(err, ShouldBeNil)
		defer func() { _ = s.Close() }()

		So(s.Put(context.Background(), result("f-1", strategy.Hit)), ShouldBeNil)
		n, err := s.Count(context.Background())
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)
	})
}
