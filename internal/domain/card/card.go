// Package card holds the per-frame card detection model: bounding boxes,
// rank values and the detection record itself.
package card

import (
	"fmt"
	"math"
)

// Rank is the blackjack value of a card. Aces are 11, faces are 10.
type Rank int

// Well-known rank values.
const (
	// RankUnknown marks a label whose rank could not be parsed.
	RankUnknown Rank = 0
	RankTen     Rank = 10
	RankAce     Rank = 11
)

// Valid reports whether r is a real card value (2..11).
func (r Rank) Valid() bool {
	return r >= 2 && r <= RankAce
}

// String renders the rank the way the text interface accepts it.
func (r Rank) String() string {
	switch {
	case r == RankAce:
		return "A"
	case r == RankUnknown:
		return "?"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

// BBox is an axis-aligned box in pixel coordinates.
type BBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Box builds a BBox from corner coordinates.
func Box(xMin, yMin, xMax, yMax float64) BBox {
	return BBox{XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax}
}

// Area is width times height. Inverted boxes are not corrected.
func (b BBox) Area() float64 {
	return (b.XMax - b.XMin) * (b.YMax - b.YMin)
}

// Center returns the box midpoint.
func (b BBox) Center() (x, y float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// IoU returns intersection-over-union of b and o. Disjoint boxes and boxes
// with a non-positive union yield 0.
func (b BBox) IoU(o BBox) float64 {
	left := math.Max(b.XMin, o.XMin)
	top := math.Max(b.YMin, o.YMin)
	right := math.Min(b.XMax, o.XMax)
	bottom := math.Min(b.YMax, o.YMax)

	intersection := 0.0
	if right >= left && bottom >= top {
		intersection = (right - left) * (bottom - top)
	}

	union := b.Area() + o.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// CenterDistance is the Euclidean distance between the two box centres.
func (b BBox) CenterDistance(o BBox) float64 {
	bx, by := b.Center()
	ox, oy := o.Center()
	return math.Hypot(bx-ox, by-oy)
}

func (b BBox) validate() error {
	for _, v := range [...]float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bbox coordinate", ErrInvalidDetection)
		}
	}
	return nil
}

// Detection is one recognised card in one frame. Values are copied, never
// shared, so a Detection is effectively immutable once built.
type Detection struct {
	Label      string  `json:"label"`
	Rank       Rank    `json:"rank"`
	Confidence float64 `json:"confidence"`
	Box        BBox    `json:"bbox"`
}

// NewDetection validates and builds a Detection. Confidence must lie in
// [0,1] and box coordinates must be finite. Zero-area and inverted boxes
// are kept as given; IoU and centre distance stay defined for them.
func NewDetection(label string, rank Rank, confidence float64, box BBox) (Detection, error) {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Detection{}, fmt.Errorf("%w: confidence %v out of [0,1]", ErrInvalidDetection, confidence)
	}
	if err := box.validate(); err != nil {
		return Detection{}, err
	}
	return Detection{
		Label:      label,
		Rank:       rank,
		Confidence: confidence,
		Box:        box,
	}, nil
}

// Ranks extracts the rank values of ds in order.
func Ranks(ds []Detection) []Rank {
	out := make([]Rank, len(ds))
	for i, d := range ds {
		out[i] = d.Rank
	}
	return out
}

// Labels extracts the labels of ds in order.
func Labels(ds []Detection) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Label
	}
	return out
}
