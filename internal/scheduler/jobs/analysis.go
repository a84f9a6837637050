package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/factorlab/pkg/logger"
)

// Processor is the part of analysis.Service the jobs drive
type Processor interface {
	ProcessPending(ctx context.Context, limit int) (int, error)
	RetryFailed(ctx context.Context, limit int) (int, error)
	RecoverStale(ctx context.Context, limit int) (int, error)
}

// Job names
const (
	ProcessPendingJobName = "process_pending"
	RetryFailedJobName    = "retry_failed"
)

// ProcessPendingJob runs the engine for queued draft analyses
// ⭐ SSOT: 분석 백그라운드 처리 스케줄은 이 Job에서만
type ProcessPendingJob struct {
	processor Processor
	schedule  string
	batchSize int
	logger    *logger.Logger
}

// NewProcessPendingJob creates a new pending-analysis job
func NewProcessPendingJob(p Processor, schedule string, batchSize int, log *logger.Logger) *ProcessPendingJob {
	return &ProcessPendingJob{processor: p, schedule: schedule, batchSize: batchSize, logger: log}
}

// Name returns the job name
func (j *ProcessPendingJob) Name() string {
	return ProcessPendingJobName
}

// Schedule returns the cron schedule
func (j *ProcessPendingJob) Schedule() string {
	return j.schedule
}

// Run processes one batch of drafts
func (j *ProcessPendingJob) Run(ctx context.Context) error {
	done, err := j.processor.ProcessPending(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("process pending: %w", err)
	}
	if done > 0 {
		j.logger.WithField("processed", done).Info("Pending analyses processed")
	}
	return nil
}

// RetryFailedJob reprocesses failed analyses (e.g. after a database outage).
// Analyses a dead worker left in processing are marked failed first.
type RetryFailedJob struct {
	processor Processor
	batchSize int
	logger    *logger.Logger
}

// NewRetryFailedJob creates a new retry job
func NewRetryFailedJob(p Processor, batchSize int, log *logger.Logger) *RetryFailedJob {
	return &RetryFailedJob{processor: p, batchSize: batchSize, logger: log}
}

// Name returns the job name
func (j *RetryFailedJob) Name() string {
	return RetryFailedJobName
}

// Schedule returns the cron schedule (hourly)
func (j *RetryFailedJob) Schedule() string {
	return "0 30 * * * *"
}

// Run recovers stale analyses, then retries one batch of failed ones
func (j *RetryFailedJob) Run(ctx context.Context) error {
	stale, err := j.processor.RecoverStale(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("recover stale: %w", err)
	}
	if stale > 0 {
		j.logger.WithField("stale", stale).Warn("Interrupted analyses marked failed")
	}

	done, err := j.processor.RetryFailed(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}
	if done > 0 {
		j.logger.WithField("recovered", done).Info("Failed analyses reprocessed")
	}
	return nil
}
