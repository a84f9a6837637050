package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
)

// ErrBusy is returned when another worker holds the processing lock
var ErrBusy = errors.New("analysis is being processed")

// Analysis is one stored analysis of a price series
type Analysis struct {
	ID          int64                    `json:"id"`
	Symbol      string                   `json:"symbol"`
	Status      contracts.AnalysisStatus `json:"status"`
	MinGainPct  float64                  `json:"min_gain_pct"`
	ScoreConfig *contracts.ScoreConfig   `json:"score_config,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Attempts    int                      `json:"attempts"` // failed 전이 횟수

	// Feed hints (empty → feed not fetched)
	Benchmark        string   `json:"benchmark,omitempty"`
	SectorProxy      string   `json:"sector_proxy,omitempty"`
	CorpCode         string   `json:"corp_code,omitempty"`
	ShortInterestPct *float64 `json:"short_interest_pct,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// transitions 허용 상태 전이
var transitions = map[contracts.AnalysisStatus][]contracts.AnalysisStatus{
	contracts.StatusDraft:      {contracts.StatusProcessing},
	contracts.StatusProcessing: {contracts.StatusCompleted, contracts.StatusFailed},
	contracts.StatusFailed:     {contracts.StatusProcessing}, // retry
}

// CanTransition reports whether an analysis may move from one status to another
func CanTransition(from, to contracts.AnalysisStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition wraps ErrInvalidTransition with the offending move
func checkTransition(from, to contracts.AnalysisStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s → %s", contracts.ErrInvalidTransition, from, to)
	}
	return nil
}

// Event builds the status event of an analysis
func (a *Analysis) Event(at time.Time) contracts.StatusEvent {
	return contracts.StatusEvent{
		AnalysisID: a.ID,
		Symbol:     a.Symbol,
		Status:     a.Status,
		Error:      a.Error,
		At:         at,
	}
}
