package api

import (
	"errors"
	"net/http"

	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/strategy"
)

// AdviceHandler answers typed-hand advice requests.
type AdviceHandler struct {
	deps Dependencies
}

// NewAdviceHandler creates a new advice handler.
func NewAdviceHandler(deps Dependencies) *AdviceHandler {
	return &AdviceHandler{deps: deps}
}

// adviceRequest uses the same card grammar as the text interface:
// decimal numbers or "A".
type adviceRequest struct {
	Hand   []string `json:"hand"`
	Dealer string   `json:"dealer"`
}

type adviceResponse struct {
	Action strategy.Action `json:"action"`
	Hand   strategy.Hand   `json:"hand"`
	Dealer card.Rank       `json:"dealer"`
	Sum    int             `json:"sum"`
	Total  int             `json:"total"`
	Soft   bool            `json:"soft"`
}

// HandleAdvice handles POST /advice requests.
func (h *AdviceHandler) HandleAdvice(w http.ResponseWriter, r *http.Request) {
	const op = "api.advice"
	var req adviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Hand) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, strategy.ErrEmptyHand))
		return
	}
	if req.Dealer == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing dealer")))
		return
	}

	hand, err := strategy.ParseTokens(req.Hand)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	dealer, err := strategy.ParseCardToken(req.Dealer)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}

	act, err := h.deps.Advise(r.Context(), hand, dealer)
	if err != nil {
		writeUpstreamError(w, op, err)
		return
	}
	total, soft := strategy.Total(hand)
	writeJSON(w, http.StatusOK, adviceResponse{Action: act, Hand: hand, Dealer: dealer, Sum: hand.Sum(), Total: total, Soft: soft})
}
