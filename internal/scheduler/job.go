package scheduler

import (
	"context"
	"time"
)

// Job is a unit of scheduled work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string
	Run(ctx context.Context) error
	// Schedule is a cron spec with a seconds field ("0 */5 * * * *") or a descriptor ("@hourly")
	Schedule() string
}

// JobResult is the outcome of one run, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// maxHistory 작업별 보관 결과 수
const maxHistory = 100

// JobHistory keeps the latest maxHistory results of a job, oldest first
type JobHistory struct {
	Results []JobResult
}

// AddResult appends r, dropping the oldest result past maxHistory
func (h *JobHistory) AddResult(r JobResult) {
	if len(h.Results) == maxHistory {
		copy(h.Results, h.Results[1:])
		h.Results[maxHistory-1] = r
		return
	}
	h.Results = append(h.Results, r)
}

// GetLatestResults returns up to n of the newest results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	n = max(0, min(n, len(h.Results)))
	return h.Results[len(h.Results)-n:]
}

// FailureCount counts the unsuccessful runs kept
func (h *JobHistory) FailureCount() int {
	failed := 0
	for _, r := range h.Results {
		if !r.Success {
			failed++
		}
	}
	return failed
}

// GetSuccessRate is the share of successful runs kept, in [0, 1]
func (h *JobHistory) GetSuccessRate() float64 {
	total := len(h.Results)
	if total == 0 {
		return 0
	}
	return 1 - float64(h.FailureCount())/float64(total)
}
