package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/pkg/metrics"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists results in a SQLite database so they survive
// restarts. The full result is kept as JSON next to a few queryable columns.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens the database at path and runs migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS frame_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			frame_id TEXT NOT NULL UNIQUE,
			action TEXT NOT NULL DEFAULT '',
			has_action INTEGER NOT NULL DEFAULT 0,
			skip_reason TEXT NOT NULL DEFAULT '',
			player_total INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			processed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_frame_results_processed_at ON frame_results(processed_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Put implements Store.Put. A replaced result becomes the latest.
func (s *SQLiteStore) Put(ctx context.Context, r model.FrameResult) error {
	if r.FrameID == "" {
		metrics.RecordRepositoryError()
		return ErrInvalidResult
	}
	start := time.Now()

	payload, err := json.Marshal(r)
	if err != nil {
		metrics.RecordRepositoryError()
		return fmt.Errorf("encode result %s: %w", r.FrameID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO frame_results
			(frame_id, action, has_action, skip_reason, player_total, payload, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.FrameID, r.Action.String(), r.HasAction, r.SkipReason, r.PlayerTotal,
		string(payload), r.ProcessedAt.UnixNano(),
	)
	if err != nil {
		metrics.RecordRepositoryError()
		return fmt.Errorf("store result %s: %w", r.FrameID, err)
	}

	metrics.RecordRepositoryPutLatency(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, frameID string) (model.FrameResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM frame_results WHERE frame_id = ?`, frameID)
	return scanResult(row)
}

// Latest implements Store.Latest.
func (s *SQLiteStore) Latest(ctx context.Context) (model.FrameResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM frame_results ORDER BY id DESC LIMIT 1`)
	return scanResult(row)
}

// Recent implements Store.Recent.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]model.FrameResult, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM frame_results ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		metrics.RecordRepositoryError()
		return nil, fmt.Errorf("query recent results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.FrameResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count implements Store.Count.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frame_results`).Scan(&n); err != nil {
		metrics.RecordRepositoryError()
		return 0, fmt.Errorf("count results: %w", err)
	}
	metrics.UpdateRepositoryResults(n)
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path is the database location the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (model.FrameResult, error) {
	var payload string
	if err := sc.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.FrameResult{}, ErrNotFound
		}
		metrics.RecordRepositoryError()
		return model.FrameResult{}, fmt.Errorf("read result: %w", err)
	}

	var r model.FrameResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		metrics.RecordRepositoryError()
		return model.FrameResult{}, fmt.Errorf("decode result: %w", err)
	}
	return r, nil
}
