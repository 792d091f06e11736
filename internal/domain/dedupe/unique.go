// Package dedupe removes duplicate card detections within a zone and tracks
// frame IDs that were already accepted for processing.
package dedupe

import (
	"cmp"
	"slices"

	"github.com/okian/blackjack/internal/domain/card"
)

// Default suppression thresholds, in pixels and IoU respectively.
const (
	DefaultDistanceThreshold = 100.0
	DefaultOverlapThreshold  = 0.2
)

// Report counts why detections were suppressed by UniqueWithReport.
type Report struct {
	Input     int `json:"input"`
	Kept      int `json:"kept"`
	Label     int `json:"label"`
	Overlap   int `json:"overlap"`
	Proximity int `json:"proximity"`
}

// Suppressed is the total number of dropped detections.
func (r Report) Suppressed() int {
	return r.Label + r.Overlap + r.Proximity
}

// Unique keeps at most one detection per label and drops detections that
// overlap or sit close to a higher-confidence detection already kept.
// The result is ordered by confidence, highest first. raw is not modified.
func Unique(raw []card.Detection, opts ...Option) []card.Detection {
	kept, _ := UniqueWithReport(raw, opts...)
	return kept
}

// UniqueWithReport is Unique plus suppression counts.
//
// Candidates are visited by descending confidence, ties in input order. A
// candidate is dropped when its label was already kept, when its IoU with a
// kept detection exceeds the overlap threshold, or when its centre lies
// closer than the distance threshold to a kept centre. A dropped candidate
// does not reserve its label.
func UniqueWithReport(raw []card.Detection, opts ...Option) ([]card.Detection, Report) {
	cfg := config{
		distance: DefaultDistanceThreshold,
		overlap:  DefaultOverlapThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	rep := Report{Input: len(raw)}
	sorted := slices.Clone(raw)
	slices.SortStableFunc(sorted, func(a, b card.Detection) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})

	kept := make([]card.Detection, 0, len(sorted))
	labels := make(map[string]struct{}, len(sorted))

candidates:
	for _, d := range sorted {
		if _, ok := labels[d.Label]; ok {
			rep.Label++
			continue
		}
		for _, k := range kept {
			if d.Box.IoU(k.Box) > cfg.overlap {
				rep.Overlap++
				continue candidates
			}
			if d.Box.CenterDistance(k.Box) < cfg.distance {
				rep.Proximity++
				continue candidates
			}
		}
		kept = append(kept, d)
		labels[d.Label] = struct{}{}
	}

	rep.Kept = len(kept)
	return kept, rep
}
