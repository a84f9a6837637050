package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/engine"
)

// PreviewRequest is the body of the stateless scoring endpoint.
// Dates are RFC 3339 timestamps; only the calendar date is used.
// Thresholds may be partial: omitted fields keep their defaults.
type PreviewRequest struct {
	Bars       []contracts.PriceBar        `json:"bars"`
	Context    contracts.MarketContext     `json:"context"`
	Config     *contracts.ScoreConfig      `json:"config,omitempty"`
	Thresholds *contracts.FactorThresholds `json:"thresholds,omitempty"`
	MinGainPct *float64                    `json:"min_gain_pct,omitempty"`
}

// PreviewHandler runs the engine without storing anything
type PreviewHandler struct {
	recorder engine.Recorder
	log      zerolog.Logger
}

// NewPreviewHandler creates a new preview handler
func NewPreviewHandler(recorder engine.Recorder, log zerolog.Logger) *PreviewHandler {
	return &PreviewHandler{recorder: recorder, log: log}
}

// Preview scores a posted series
// POST /api/score/preview
func (h *PreviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	// 부분 지정된 thresholds는 기본값 위에 덮어씀
	defaults := contracts.DefaultFactorThresholds()
	req := PreviewRequest{Thresholds: &defaults}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if err := contracts.ValidateSeries(req.Bars); err != nil {
		respondErr(w, err)
		return
	}
	if req.Config != nil {
		if err := req.Config.Validate(); err != nil {
			respondErr(w, err)
			return
		}
	}
	if req.Thresholds != nil {
		if err := req.Thresholds.Validate(); err != nil {
			if ve, ok := err.(contracts.ValidationError); ok {
				ve.Field = "thresholds." + ve.Field
				err = ve
			}
			respondErr(w, err)
			return
		}
	}
	if req.MinGainPct != nil && (*req.MinGainPct < 0 || math.IsNaN(*req.MinGainPct)) {
		respondErr(w, contracts.ValidationError{Field: "min_gain_pct", Message: "must be >= 0"})
		return
	}

	opts := []engine.Option{engine.WithRecorder(h.recorder)}
	if req.Thresholds != nil {
		opts = append(opts, engine.WithThresholds(*req.Thresholds))
	}
	eng := engine.New(h.log, opts...)

	result := eng.Run(engine.Input{
		Bars:       req.Bars,
		Context:    req.Context,
		Config:     req.Config,
		MinGainPct: req.MinGainPct,
	})
	respondJSON(w, http.StatusOK, result)
}
