package dedupe

type config struct {
	distance float64
	overlap  float64
}

// Option configures Unique.
type Option func(*config)

// WithDistanceThreshold sets the minimum centre distance, in pixels, between
// two kept detections. Negative values are ignored.
func WithDistanceThreshold(px float64) Option {
	return func(c *config) {
		if px >= 0 {
			c.distance = px
		}
	}
}

// WithOverlapThreshold sets the IoU above which a detection is dropped.
// Values outside [0,1] are ignored.
func WithOverlapThreshold(iou float64) Option {
	return func(c *config) {
		if iou >= 0 && iou <= 1 {
			c.overlap = iou
		}
	}
}

// FrameOption configures a FrameDeduper.
type FrameOption func(*inMemoryFrames)

// WithCapacity sets how many frame IDs are remembered. If n <= 0 the
// deduper is unbounded.
func WithCapacity(n int) FrameOption {
	return func(d *inMemoryFrames) {
		d.capacity = n
	}
}
