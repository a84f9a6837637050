package handlers

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/wonny/factorlab/internal/analysis"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/csvimport"
	"github.com/wonny/factorlab/internal/engine"
	"github.com/wonny/factorlab/internal/scoreconfig"
	"github.com/wonny/factorlab/pkg/logger"
)

// AnalysisService is the part of analysis.Service the handlers use
type AnalysisService interface {
	Create(ctx context.Context, req analysis.CreateRequest) (*analysis.Analysis, error)
	Get(ctx context.Context, id int64) (*analysis.Analysis, error)
	Process(ctx context.Context, id int64) (*engine.Result, error)
	Result(ctx context.Context, id int64) (*engine.Result, error)
	Transactions(ctx context.Context, id int64, minGainPct float64) ([]contracts.EnrichedTransaction, error)
}

// AnalysisHandler handles stored analysis endpoints
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type AnalysisHandler struct {
	svc    AnalysisService
	logger *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(svc AnalysisService, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, logger: log}
}

// Create stores a draft analysis from an uploaded CSV
// POST /api/analyses?symbol=005930&min_gain=5&benchmark=KOSPI&sector=091160&corp_code=00126380&short_interest=18
// Body: text/csv, or multipart/form-data with "file" (CSV) and optional "config" (YAML).
// The config may set scoring and transactions; thresholds and quality are rejected.
func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	minGain, err := queryFloat(r, "min_gain")
	if err != nil {
		respondErr(w, err)
		return
	}
	shortInterest, err := queryFloat(r, "short_interest")
	if err != nil {
		respondErr(w, err)
		return
	}

	bars, upload, err := readUpload(w, r)
	if err != nil {
		respondErr(w, err)
		return
	}
	var cfg *contracts.ScoreConfig
	if upload != nil {
		cfg = &upload.Score
		// 쿼리 min_gain이 문서의 transactions 섹션보다 우선
		if minGain == nil {
			minGain = upload.MinGainPct
		}
	}

	a, err := h.svc.Create(r.Context(), analysis.CreateRequest{
		Symbol:           q.Get("symbol"),
		Bars:             bars,
		MinGainPct:       minGain,
		ScoreConfig:      cfg,
		Benchmark:        strings.ToUpper(q.Get("benchmark")),
		SectorProxy:      q.Get("sector"),
		CorpCode:         q.Get("corp_code"),
		ShortInterestPct: shortInterest,
	})
	if err != nil {
		h.logError(err, "Failed to create analysis")
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, a)
}

// Get returns an analysis
// GET /api/analyses/{id}
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.logError(err, "Failed to get analysis")
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Process runs the engine for an analysis
// POST /api/analyses/{id}/process
func (h *AnalysisHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	result, err := h.svc.Process(r.Context(), id)
	if err != nil {
		h.logError(err, "Failed to process analysis")
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Result returns the stored engine result
// GET /api/analyses/{id}/result
func (h *AnalysisHandler) Result(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondErr(w, err)
		return
	}

	result, err := h.svc.Result(r.Context(), id)
	if err != nil {
		h.logError(err, "Failed to get analysis result")
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// TransactionsResponse is the body of the transactions endpoint
type TransactionsResponse struct {
	MinGainPct   float64                         `json:"min_gain_pct"`
	Count        int                             `json:"count"`
	Transactions []contracts.EnrichedTransaction `json:"transactions"`
}

// Transactions returns the enriched transactions, optionally with another minimum gain
// GET /api/analyses/{id}/transactions?min_gain=3
func (h *AnalysisHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondErr(w, err)
		return
	}
	minGain, err := queryFloat(r, "min_gain")
	if err != nil {
		respondErr(w, err)
		return
	}

	var resp TransactionsResponse
	if minGain == nil {
		result, err := h.svc.Result(r.Context(), id)
		if err != nil {
			h.logError(err, "Failed to get analysis result")
			respondErr(w, err)
			return
		}
		resp.MinGainPct = result.MinGainPct
		resp.Transactions = result.Transactions
	} else {
		txs, err := h.svc.Transactions(r.Context(), id, *minGain)
		if err != nil {
			h.logError(err, "Failed to get transactions")
			respondErr(w, err)
			return
		}
		resp.MinGainPct = *minGain
		resp.Transactions = txs
	}
	if resp.Transactions == nil {
		resp.Transactions = []contracts.EnrichedTransaction{}
	}
	resp.Count = len(resp.Transactions)

	respondJSON(w, http.StatusOK, resp)
}

func (h *AnalysisHandler) logError(err error, msg string) {
	if errorStatus(err) == http.StatusInternalServerError {
		h.logger.WithError(err).Error(msg)
		return
	}
	h.logger.WithError(err).Debug(msg)
}

// readUpload extracts the CSV series and optional YAML analysis config of a request
func readUpload(w http.ResponseWriter, r *http.Request) ([]contracts.PriceBar, *scoreconfig.AnalysisConfig, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		bars, err := csvimport.Read(r.Body)
		return bars, nil, err
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, contracts.ValidationError{Field: "body", Message: fmt.Sprintf("invalid multipart form: %v", err)}
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, contracts.ValidationError{Field: "file", Message: "is required"}
	}
	defer file.Close()

	bars, err := csvimport.Read(file)
	if err != nil {
		return nil, nil, err
	}

	cfgPart, _, err := r.FormFile("config")
	if err != nil {
		return bars, nil, nil
	}
	defer cfgPart.Close()

	data, err := io.ReadAll(cfgPart)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := scoreconfig.ParseAnalysis(data)
	if err != nil {
		return nil, nil, contracts.ValidationError{Field: "config", Message: err.Error()}
	}
	return bars, cfg, nil
}
