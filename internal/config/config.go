// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Results store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, also writes logs to a rotated file.
	LogFile       string `koanf:"log_file"`
	LogMaxSizeMB  int    `koanf:"log_max_size_mb"`
	LogMaxBackups int    `koanf:"log_max_backups"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CORSOrigins is a comma-separated list of allowed browser origins.
	// Empty disables CORS headers; "*" allows any origin.
	CORSOrigins string `koanf:"cors_origins"`

	// IngestRateLimit caps frame submissions per second across clients.
	// Zero disables the limiter.
	IngestRateLimit float64 `koanf:"ingest_rate_limit"`
	IngestRateBurst int     `koanf:"ingest_rate_burst"`

	// QueueSize bounds the in-memory frame queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of frame workers.
	WorkerCount int `koanf:"worker_count"`

	// FrameDedupeSize is how many frame IDs are remembered for idempotency.
	FrameDedupeSize int `koanf:"frame_dedupe_size"`

	// ResultsSize caps the in-memory results store.
	ResultsSize int `koanf:"results_size"`

	// ResultsStore selects the results backend: memory or sqlite.
	ResultsStore string `koanf:"results_store"`
	SQLitePath   string `koanf:"sqlite_path"`

	// Detection tuning.
	ConfidenceFloor   float64 `koanf:"confidence_floor"`
	DistanceThreshold float64 `koanf:"distance_threshold"`
	OverlapThreshold  float64 `koanf:"overlap_threshold"`
}

// New creates a Config with defaults. The context is unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogMaxSizeMB:      100,
		LogMaxBackups:     3,
		Addr:              ":9080",
		IngestRateBurst:   50,
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU(),
		FrameDedupeSize:   50_000,
		ResultsSize:       1024,
		ResultsStore:      StoreMemory,
		SQLitePath:        "blackjack.db",
		ConfidenceFloor:   0.5,
		DistanceThreshold: 100,
		OverlapThreshold:  0.2,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.ResultsSize <= 0:
		return fmt.Errorf("%w: results_size must be positive, got %d", ErrInvalidConfig, c.ResultsSize)
	case c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1:
		return fmt.Errorf("%w: confidence_floor must be within [0,1], got %g", ErrInvalidConfig, c.ConfidenceFloor)
	case c.DistanceThreshold < 0:
		return fmt.Errorf("%w: distance_threshold must not be negative, got %g", ErrInvalidConfig, c.DistanceThreshold)
	case c.OverlapThreshold < 0 || c.OverlapThreshold > 1:
		return fmt.Errorf("%w: overlap_threshold must be within [0,1], got %g", ErrInvalidConfig, c.OverlapThreshold)
	case c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0:
		return fmt.Errorf("%w: log rotation limits must not be negative", ErrInvalidConfig)
	case c.IngestRateLimit < 0:
		return fmt.Errorf("%w: ingest_rate_limit must not be negative, got %g", ErrInvalidConfig, c.IngestRateLimit)
	case c.IngestRateLimit > 0 && c.IngestRateBurst <= 0:
		return fmt.Errorf("%w: ingest_rate_burst must be positive when rate limiting, got %d", ErrInvalidConfig, c.IngestRateBurst)
	}

	switch strings.ToLower(c.ResultsStore) {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path must be set for the sqlite store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown results_store %q", ErrInvalidConfig, c.ResultsStore)
	}
	return nil
}

// AllowedOrigins splits CORSOrigins into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
