package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/factorlab/pkg/logger"
)

// Scheduler runs registered jobs on their cron specs. A run that fails is
// retried in place; an overlapping tick is skipped.
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron *cron.Cron
	log  *logger.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	// Stop 시 실행 중인 작업에 취소 전파
	ctx    context.Context
	cancel context.CancelFunc

	retries    int
	retryDelay time.Duration
}

type entry struct {
	job     Job
	history JobHistory
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRetry sets how often and how far apart a failed run is retried
func WithRetry(retries int, delay time.Duration) Option {
	return func(s *Scheduler) {
		s.retries = max(0, retries)
		s.retryDelay = delay
	}
}

// New defaults to 3 retries one minute apart
func New(log *logger.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:        log,
		entries:    make(map[string]*entry),
		ctx:        ctx,
		cancel:     cancel,
		retries:    3,
		retryDelay: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob registers job under its name; names are unique
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	if _, err := s.cron.AddFunc(job.Schedule(), func() { s.runJob(job) }); err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	s.entries[name] = &entry{job: job}

	s.log.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job registered")
	return nil
}

func (s *Scheduler) Start() {
	s.log.Info("Scheduler starting")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// RunJob runs the named job now, outside its schedule, and waits for the result
func (s *Scheduler) RunJob(name string) (JobResult, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return JobResult{}, fmt.Errorf("job %s not registered", name)
	}
	return s.runJob(e.job), nil
}

func (s *Scheduler) runJob(job Job) JobResult {
	res := JobResult{JobName: job.Name(), StartTime: time.Now()}
	err := s.attempt(job, &res.Attempts)

	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	res.Success = err == nil
	if err != nil {
		res.Error = err.Error()
	}
	s.record(res)

	log := s.log.WithFields(map[string]interface{}{
		"job":      res.JobName,
		"attempts": res.Attempts,
		"duration": res.Duration,
	})
	if err != nil {
		log.WithError(err).Error("Job failed, retries exhausted")
	} else {
		log.Debug("Job done")
	}
	return res
}

// attempt runs job until it succeeds, the retries run out or Stop is called
func (s *Scheduler) attempt(job Job, attempts *int) error {
	for {
		*attempts++
		err := job.Run(s.ctx)
		if err == nil || s.ctx.Err() != nil || *attempts > s.retries {
			return err
		}

		s.log.WithFields(map[string]interface{}{
			"job":     job.Name(),
			"attempt": *attempts,
		}).WithError(err).Warn("Job failed, retrying")

		t := time.NewTimer(s.retryDelay)
		select {
		case <-s.ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

func (s *Scheduler) record(res JobResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[res.JobName]; ok {
		e.history.AddResult(res)
	}
}

// GetAllJobs returns the registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JobStats summarizes the kept history of one job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}

// GetJobStats returns the stats of every registered job, keyed by name
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]JobStats, len(s.entries))
	for name, e := range s.entries {
		h := &e.history
		st := JobStats{
			JobName:      name,
			Schedule:     e.job.Schedule(),
			TotalRuns:    len(h.Results),
			FailureCount: h.FailureCount(),
			SuccessRate:  h.GetSuccessRate(),
		}
		st.SuccessCount = st.TotalRuns - st.FailureCount

		if latest := h.GetLatestResults(1); len(latest) == 1 {
			at := latest[0].StartTime
			st.LastRun = &at
			if latest[0].Success {
				st.LastSuccess = &at
			} else {
				st.LastFailure = &at
			}
		}
		out[name] = st
	}
	return out
}
