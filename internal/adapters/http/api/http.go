// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/okian/blackjack/internal/adapters/repository"
	service "github.com/okian/blackjack/internal/app"
	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/dedupe"
	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/internal/domain/strategy"
)

// maxBodyBytes bounds request bodies; a frame carries a handful of detections.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.FrameDeduper

	// Enqueue pushes a frame for async processing. Returns false on backpressure.
	Enqueue(ctx context.Context, f model.Frame) bool

	// Analyze runs the pipeline synchronously and stores the result.
	Analyze(ctx context.Context, f model.Frame) (model.FrameResult, error)

	// Advise returns the action for a typed hand.
	Advise(ctx context.Context, hand strategy.Hand, dealer card.Rank) (strategy.Action, error)

	// Read operations expose stored results.
	Result(ctx context.Context, frameID string) (model.FrameResult, error)
	Latest(ctx context.Context) (model.FrameResult, error)
	Recent(ctx context.Context, n int) ([]model.FrameResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	framesHandler *FramesHandler
	adviceHandler *AdviceHandler
	ingestLimiter *rate.Limiter
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithIngestLimit caps frame submissions at rps per second with the given
// burst. A non-positive rps leaves ingest unlimited.
func WithIngestLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.ingestLimiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		framesHandler: NewFramesHandler(deps),
		adviceHandler: NewAdviceHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /frames", MetricsMiddleware(
		RateLimitMiddleware(s.framesHandler.HandlePostFrame, s.ingestLimiter, "api.post_frame"), "frames"))
	mux.HandleFunc("GET /frames", MetricsMiddleware(s.framesHandler.HandleListFrames, "frames_list"))
	mux.HandleFunc("POST /frames/analyze", MetricsMiddleware(
		RateLimitMiddleware(s.framesHandler.HandleAnalyze, s.ingestLimiter, "api.analyze_frame"), "frames_analyze"))
	mux.HandleFunc("GET /frames/{id}", MetricsMiddleware(s.framesHandler.HandleGetFrame, "frames_get"))
	mux.HandleFunc("GET /latest", MetricsMiddleware(s.framesHandler.HandleLatest, "latest"))
	mux.HandleFunc("POST /advice", MetricsMiddleware(s.adviceHandler.HandleAdvice, "advice"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeUpstreamError translates service errors into API responses.
func writeUpstreamError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, service.ErrInvalidFrame),
		errors.Is(err, strategy.ErrEmptyHand),
		errors.Is(err, strategy.ErrInvalidRank),
		errors.Is(err, strategy.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, repository.ErrStoreClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
