package zone_test

import (
	"testing"

	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/zone"
	. "github.com/smartystreets/goconvey/convey"
)

func det(label string, conf, y1, y2 float64) card.Detection {
	r, _ := card.ParseRank(label)
	return card.Detection{Label: label, Rank: r, Confidence: conf, Box: card.Box(0, y1, 50, y2)}
}

func TestZoneOf(t *testing.T) {
	Convey("Given a 720px frame", t, func() {
		const h = 720

		Convey("When a card sits in the top half", func() {
			So(zone.ZoneOf(det("KH", 0.9, 100, 200), h), ShouldEqual, zone.Dealer)
		})

		Convey("When a card sits in the bottom half", func() {
			So(zone.ZoneOf(det("KH", 0.9, 500, 600), h), ShouldEqual, zone.Player)
		})

		Convey("When a card is centred on the midline", func() {
			So(zone.ZoneOf(det("KH", 0.9, 300, 420), h), ShouldEqual, zone.Player)
		})

		Convey("When the centre is fractionally above the midline", func() {
			// (300+419.5)/2 = 359.75 floors to 359.
			So(zone.ZoneOf(det("KH", 0.9, 300, 419.5), h), ShouldEqual, zone.Dealer)
		})

		Convey("When the centre floors onto the midline", func() {
			// (360+360.8)/2 = 360.4 floors to 360.
			So(zone.ZoneOf(det("KH", 0.9, 360, 360.8), h), ShouldEqual, zone.Player)
		})
	})

	Convey("Given an odd frame height", t, func() {
		// 721/2 floors to 360.
		So(zone.ZoneOf(det("KH", 0.9, 359, 361), 721), ShouldEqual, zone.Player)
		So(zone.ZoneOf(det("KH", 0.9, 358, 360), 721), ShouldEqual, zone.Dealer)
	})
}

func TestClassify(t *testing.T) {
	Convey("Given detections from a whole frame", t, func() {
		dets := []card.Detection{
			det("KH", 0.95, 100, 200),
			det("10D", 0.49, 100, 200),
			det("7C", 0.5, 500, 600),
			det("AS", 0.8, 450, 560),
			det("2S", 0.7, 50, 150),
		}

		Convey("When classified with the default floor", func() {
			dealer, player := zone.Classify(dets, 720)

			Convey("Then low-confidence detections are dropped and order is kept", func() {
				So(card.Labels(dealer), ShouldResemble, []string{"KH", "2S"})
				So(card.Labels(player), ShouldResemble, []string{"7C", "AS"})
			})
		})

		Convey("When classified with a higher floor", func() {
			dealer, player := zone.Classify(dets, 720, zone.WithConfidenceFloor(0.75))

			Convey("Then more detections are dropped", func() {
				So(card.Labels(dealer), ShouldResemble, []string{"KH"})
				So(card.Labels(player), ShouldResemble, []string{"AS"})
			})
		})

		Convey("When the floor option is out of range", func() {
			dealer, player := zone.Classify(dets, 720, zone.WithConfidenceFloor(3))

			Convey("Then the default applies", func() {
				So(len(dealer)+len(player), ShouldEqual, 4)
			})
		})
	})

	Convey("Given no detections", t, func() {
		dealer, player := zone.Classify(nil, 720)
		So(dealer, ShouldBeEmpty)
		So(player, ShouldBeEmpty)
	})

	Convey("Given zone names", t, func() {
		So(zone.Dealer.String(), ShouldEqual, "dealer")
		So(zone.Player.String(), ShouldEqual, "player")
		b, err := zone.Player.MarshalText()
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, "player")
	})
}
