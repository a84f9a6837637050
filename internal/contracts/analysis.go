package contracts

import "time"

// AnalysisStatus is the lifecycle state of a stock analysis
type AnalysisStatus string

const (
	StatusDraft      AnalysisStatus = "draft"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// StatusEvent announces an analysis status change
type StatusEvent struct {
	AnalysisID int64          `json:"analysis_id"`
	Symbol     string         `json:"symbol"`
	Status     AnalysisStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	At         time.Time      `json:"at"`
}
