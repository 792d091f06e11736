package zone

type classifier struct {
	floor float64
}

// Option configures Classify.
type Option func(*classifier)

// WithConfidenceFloor sets the minimum confidence a detection needs to be
// placed in a zone. Values outside [0,1] are ignored.
func WithConfidenceFloor(floor float64) Option {
	return func(c *classifier) {
		if floor >= 0 && floor <= 1 {
			c.floor = floor
		}
	}
}
