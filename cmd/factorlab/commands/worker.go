package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/factorlab/internal/scheduler"
	"github.com/wonny/factorlab/internal/scheduler/jobs"
	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/logger"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "백그라운드 워커",
	Long: `draft 상태 분석을 주기적으로 처리하는 워커입니다.

이 워커는:
- WORKER_SCHEDULE 마다 draft 분석을 WORKER_BATCH_SIZE 개씩 처리
- 매시간 실패한 분석 재처리
- Redis 락으로 API 서버/다른 워커와 중복 처리 방지
- Graceful shutdown 지원

Example:
  go run ./cmd/factorlab worker
  go run ./cmd/factorlab worker --once`,
	RunE: runWorker,
}

var (
	// Worker flags
	workerOnce bool
)

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "대기 중인 분석을 한 번 처리하고 종료")
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := connectDatabase(ctx, a)
	if err != nil {
		return err
	}
	defer db.Close()

	// 워커는 websocket 구독자가 없으므로 notifier 없음
	svc := newAnalysisService(a, db, nil)

	sched, err := newWorkerScheduler(a.cfg.Worker, a.log, svc)
	if err != nil {
		return err
	}

	if workerOnce {
		result, err := runPendingOnce(sched)
		if err != nil {
			return err
		}
		PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s finished in %s (%d attempts)",
			result.JobName, result.Duration.Round(time.Millisecond), result.Attempts))
		return nil
	}

	sched.Start()
	a.log.WithFields(map[string]interface{}{
		"jobs":       sched.GetAllJobs(),
		"schedule":   a.cfg.Worker.Schedule,
		"batch_size": a.cfg.Worker.BatchSize,
	}).Info("Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.log.Info("Shutdown signal received, waiting for running jobs")
	sched.Stop()

	for name, st := range sched.GetJobStats() {
		a.log.WithFields(map[string]interface{}{
			"job":      name,
			"runs":     st.TotalRuns,
			"failures": st.FailureCount,
		}).Info("Job summary")
	}
	return nil
}

// newWorkerScheduler registers the analysis jobs with the configured retry policy
func newWorkerScheduler(cfg config.WorkerConfig, log *logger.Logger, p jobs.Processor) (*scheduler.Scheduler, error) {
	sched := scheduler.New(log, scheduler.WithRetry(cfg.JobRetries, cfg.RetryDelay))
	if err := sched.AddJob(jobs.NewProcessPendingJob(p, cfg.Schedule, cfg.BatchSize, log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewRetryFailedJob(p, cfg.BatchSize, log)); err != nil {
		return nil, err
	}
	return sched, nil
}

// runPendingOnce runs the pending job immediately, outside its schedule
func runPendingOnce(sched *scheduler.Scheduler) (scheduler.JobResult, error) {
	result, err := sched.RunJob(jobs.ProcessPendingJobName)
	if err != nil {
		return result, err
	}
	if !result.Success {
		return result, fmt.Errorf("%s failed after %d attempts: %s", result.JobName, result.Attempts, result.Error)
	}
	return result, nil
}
