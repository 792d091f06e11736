package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/blackjack/internal/domain/model"
)

// List bounds for GET /frames.
const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// FramesHandler handles frame submission and result lookups.
type FramesHandler struct {
	deps Dependencies
}

// NewFramesHandler creates a new frames handler.
func NewFramesHandler(deps Dependencies) *FramesHandler {
	return &FramesHandler{deps: deps}
}

// frameRequest mirrors the OpenAPI schema for POST /frames.
type frameRequest struct {
	FrameID    string               `json:"frame_id"`
	Height     int                  `json:"height"`
	Detections []model.RawDetection `json:"detections"`
}

func (f frameRequest) validate() error {
	if f.Height <= 0 {
		return errors.New("height must be positive")
	}
	for i, d := range f.Detections {
		if strings.TrimSpace(d.Label) == "" {
			return fmt.Errorf("detection %d: missing label", i)
		}
	}
	return nil
}

func (f frameRequest) frame() model.Frame {
	id := strings.TrimSpace(f.FrameID)
	if id == "" {
		id = uuid.NewString()
	}
	return model.Frame{ID: id, Height: f.Height, Detections: f.Detections}
}

type ackResponse struct {
	Status    string `json:"status"`
	FrameID   string `json:"frame_id"`
	Duplicate bool   `json:"duplicate"`
}

type listResponse struct {
	Count   int                 `json:"count"`
	Results []model.FrameResult `json:"results"`
}

func (h *FramesHandler) readFrame(w http.ResponseWriter, r *http.Request, op string) (model.Frame, bool) {
	var req frameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return model.Frame{}, false
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return model.Frame{}, false
	}
	return req.frame(), true
}

// HandlePostFrame handles POST /frames requests. The frame is queued and
// processed asynchronously.
func (h *FramesHandler) HandlePostFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_frame"
	f, ok := h.readFrame(w, r, op)
	if !ok {
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), f.ID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", FrameID: f.ID, Duplicate: true})
		return
	}

	if ok := h.deps.Enqueue(r.Context(), f); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), f.ID)
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", FrameID: f.ID})
}

// HandleAnalyze handles POST /frames/analyze requests and returns the
// processed result directly.
func (h *FramesHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "api.analyze_frame"
	f, ok := h.readFrame(w, r, op)
	if !ok {
		return
	}

	res, err := h.deps.Analyze(r.Context(), f)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetFrame handles GET /frames/{id} requests.
func (h *FramesHandler) HandleGetFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_frame"
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	h.writeResult(r.Context(), w, op, func(ctx context.Context) (model.FrameResult, error) {
		return h.deps.Result(ctx, id)
	})
}

// HandleLatest handles GET /latest requests.
func (h *FramesHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	h.writeResult(r.Context(), w, "api.latest", h.deps.Latest)
}

func (h *FramesHandler) writeResult(ctx context.Context, w http.ResponseWriter, op string, get func(context.Context) (model.FrameResult, error)) {
	res, err := get(ctx)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleListFrames handles GET /frames?limit=N requests, newest first.
func (h *FramesHandler) HandleListFrames(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_frames"
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", raw)))
			return
		}
		limit = min(n, maxListLimit)
	}

	results, err := h.deps.Recent(r.Context(), limit)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	if results == nil {
		results = []model.FrameResult{}
	}
	writeJSON(w, http.StatusOK, listResponse{Count: len(results), Results: results})
}
