package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/engine"
	"github.com/wonny/factorlab/internal/feeds"
	"github.com/wonny/factorlab/internal/transactions"
	"github.com/wonny/factorlab/pkg/redis"
)

const (
	// lockTTL 처리 락 유지 시간
	lockTTL = redis.TTLShort
	// staleAfter 이보다 오래 processing에 머문 분석은 중단된 것으로 간주
	staleAfter = 2 * lockTTL
	// MaxAttempts caps automatic retries; Process may still be called by hand
	MaxAttempts = 3
)

// errInterrupted is recorded on analyses recovered from a dead worker
const errInterrupted = "processing interrupted"

// ResultCache stores engine results by key (redis.Cache)
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ProcessLocker serializes processing of one analysis (redis.Locker)
type ProcessLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Notifier publishes status events (realtime.Hub)
type Notifier interface {
	Publish(evt contracts.StatusEvent)
}

// ContextBuilder assembles the market context of an analysis (feeds.Provider)
type ContextBuilder interface {
	Build(ctx context.Context, req feeds.Request) (contracts.MarketContext, error)
}

// TransitionRecorder counts status transitions (metrics.Recorder)
type TransitionRecorder interface {
	RecordTransition(status string)
}

type nopNotifier struct{}

func (nopNotifier) Publish(contracts.StatusEvent) {}

type nopTransitionRecorder struct{}

func (nopTransitionRecorder) RecordTransition(string) {}

type emptyContext struct{}

func (emptyContext) Build(_ context.Context, req feeds.Request) (contracts.MarketContext, error) {
	return contracts.MarketContext{ShortInterestPct: req.ShortInterestPct}, nil
}

// CreateRequest is the input of Service.Create
type CreateRequest struct {
	Symbol           string
	Bars             []contracts.PriceBar
	MinGainPct       *float64
	ScoreConfig      *contracts.ScoreConfig
	Benchmark        string
	SectorProxy      string
	CorpCode         string
	ShortInterestPct *float64
}

// Service runs the analysis lifecycle: create → process → result
// ⭐ SSOT: 분석 상태 전이는 여기서만
type Service struct {
	store      Store
	engine     *engine.Engine
	feeds      ContextBuilder
	cache      ResultCache
	locker     ProcessLocker
	notifier   Notifier
	metrics    TransitionRecorder
	defaultCfg *contracts.ScoreConfig
	minGain    float64
	log        zerolog.Logger
	now        func() time.Time
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithContextBuilder sets the feed provider
func WithContextBuilder(b ContextBuilder) ServiceOption {
	return func(s *Service) { s.feeds = b }
}

// WithCache caches results in Redis and guards processing with a Redis lock
func WithCache(client *redis.Client) ServiceOption {
	return func(s *Service) {
		s.cache = redis.NewCache(client, "factorlab")
		s.locker = redis.NewLocker(client, "factorlab")
	}
}

// WithResultCache sets the result cache and the processing locker directly
func WithResultCache(cache ResultCache, locker ProcessLocker) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		s.locker = locker
	}
}

// WithNotifier sets the status event sink
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithTransitionRecorder sets the transition metrics sink
func WithTransitionRecorder(r TransitionRecorder) ServiceOption {
	return func(s *Service) { s.metrics = r }
}

// WithDefaults sets the score config and minimum gain used when a request leaves them out
func WithDefaults(cfg *contracts.ScoreConfig, minGainPct float64) ServiceOption {
	return func(s *Service) {
		s.defaultCfg = cfg
		s.minGain = minGainPct
	}
}

// NewService creates a new analysis service
func NewService(store Store, eng *engine.Engine, log zerolog.Logger, opts ...ServiceOption) *Service {
	disabled := redis.Disabled()
	s := &Service{
		store:    store,
		engine:   eng,
		feeds:    emptyContext{},
		cache:    redis.NewCache(disabled, "factorlab"),
		locker:   redis.NewLocker(disabled, "factorlab"),
		notifier: nopNotifier{},
		metrics:  nopTransitionRecorder{},
		minGain:  transactions.DefaultMinGainPct,
		log:      log.With().Str("component", "analysis.service").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new draft analysis
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Analysis, error) {
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return nil, contracts.ValidationError{Field: "symbol", Message: "is required"}
	}
	if err := contracts.ValidateSeries(req.Bars); err != nil {
		return nil, err
	}

	cfg := req.ScoreConfig
	if cfg == nil {
		cfg = s.defaultCfg
	}
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	minGain := s.minGain
	if req.MinGainPct != nil {
		minGain = *req.MinGainPct
	}
	if minGain < 0 {
		return nil, contracts.ValidationError{Field: "min_gain_pct", Message: "must be >= 0"}
	}

	a := &Analysis{
		Symbol:           symbol,
		Status:           contracts.StatusDraft,
		MinGainPct:       minGain,
		ScoreConfig:      cfg,
		Benchmark:        req.Benchmark,
		SectorProxy:      req.SectorProxy,
		CorpCode:         req.CorpCode,
		ShortInterestPct: req.ShortInterestPct,
	}
	if err := s.store.Create(ctx, a, req.Bars); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	s.announce(a)
	s.log.Info().
		Int64("analysis_id", a.ID).
		Str("symbol", a.Symbol).
		Int("bars", len(req.Bars)).
		Msg("analysis created")
	return a, nil
}

// Get returns an analysis by id
func (s *Service) Get(ctx context.Context, id int64) (*Analysis, error) {
	return s.store.Get(ctx, id)
}

// Process runs the engine for a draft (or failed) analysis and stores the result
func (s *Service) Process(ctx context.Context, id int64) (*engine.Result, error) {
	lockKey := redis.LockKey(id)
	acquired, err := s.locker.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		s.log.Warn().Err(err).Int64("analysis_id", id).Msg("lock unavailable, continuing without it")
	} else if !acquired {
		return nil, ErrBusy
	} else {
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
				s.log.Warn().Err(err).Int64("analysis_id", id).Msg("unlock failed")
			}
		}()
	}

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	retry := a.Status == contracts.StatusFailed
	if err := s.transition(ctx, a, contracts.StatusProcessing, ""); err != nil {
		return nil, err
	}
	if retry {
		// 이전 시도의 결과가 캐시에 남아 있을 수 있음
		if err := s.cache.Delete(ctx, redis.AnalysisResultKey(id)); err != nil {
			s.log.Warn().Err(err).Int64("analysis_id", id).Msg("result cache delete failed")
		}
	}

	result, err := s.run(ctx, a)
	if err != nil {
		if terr := s.transition(context.WithoutCancel(ctx), a, contracts.StatusFailed, err.Error()); terr != nil {
			s.log.Error().Err(terr).Int64("analysis_id", id).Msg("failed to mark analysis failed")
		}
		return nil, err
	}

	// 결과는 이미 저장됨: 요청이 끊겨도 completed 전이는 마무리
	if err := s.transition(context.WithoutCancel(ctx), a, contracts.StatusCompleted, ""); err != nil {
		return nil, err
	}
	return result, nil
}

// run loads bars, builds the context, runs the engine and persists the result
func (s *Service) run(ctx context.Context, a *Analysis) (*engine.Result, error) {
	start := s.now()

	bars, err := s.store.LoadBars(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, contracts.ErrEmptySeries
	}

	from, to := feeds.RangeOf(bars)
	mctx, err := s.feeds.Build(ctx, feeds.Request{
		From:             from,
		To:               to,
		Benchmark:        a.Benchmark,
		SectorProxy:      a.SectorProxy,
		CorpCode:         a.CorpCode,
		ShortInterestPct: a.ShortInterestPct,
	})
	if err != nil {
		// 피드 실패는 해당 팩터만 unknown 처리
		s.log.Warn().Err(err).Int64("analysis_id", a.ID).Msg("some feeds unavailable")
	}

	minGain := a.MinGainPct
	result := s.engine.Run(engine.Input{
		Bars:       bars,
		Context:    mctx,
		Config:     a.ScoreConfig,
		MinGainPct: &minGain,
	})

	if !result.Quality.Passed {
		s.log.Warn().
			Int64("analysis_id", a.ID).
			Float64("quality_score", result.Quality.QualityScore).
			Int("issues", len(result.Quality.Issues)).
			Msg("input series failed quality checks")
	}

	if err := s.store.SaveResult(ctx, a.ID, result); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	if err := s.cache.Set(ctx, redis.AnalysisResultKey(a.ID), result, 0); err != nil { // REDIS_TTL
		s.log.Warn().Err(err).Int64("analysis_id", a.ID).Msg("result cache write failed")
	}

	s.log.Info().
		Int64("analysis_id", a.ID).
		Int("bars", len(bars)).
		Int("high_score_days", result.ScoreSummary.HighScoreDays).
		Dur("elapsed", s.now().Sub(start)).
		Msg("analysis processed")
	return result, nil
}

// Result returns the stored result, from cache when possible
func (s *Service) Result(ctx context.Context, id int64) (*engine.Result, error) {
	key := redis.AnalysisResultKey(id)

	var cached engine.Result
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.log.Warn().Err(err).Int64("analysis_id", id).Msg("result cache read failed")
	} else if hit {
		return &cached, nil
	}

	result, err := s.store.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, result, 0); err != nil { // REDIS_TTL
		s.log.Warn().Err(err).Int64("analysis_id", id).Msg("result cache write failed")
	}
	return result, nil
}

// Transactions re-derives the enriched transactions with another minimum gain
func (s *Service) Transactions(ctx context.Context, id int64, minGainPct float64) ([]contracts.EnrichedTransaction, error) {
	if minGainPct < 0 {
		return nil, contracts.ValidationError{Field: "min_gain", Message: "must be >= 0"}
	}
	result, err := s.Result(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.Reenrich(result, minGainPct), nil
}

// ProcessPending processes up to limit draft analyses, oldest first.
// It returns how many completed; individual failures are logged.
func (s *Service) ProcessPending(ctx context.Context, limit int) (int, error) {
	return s.processByStatus(ctx, contracts.StatusDraft, limit)
}

// RetryFailed reprocesses up to limit failed analyses that have failed
// fewer than MaxAttempts times
func (s *Service) RetryFailed(ctx context.Context, limit int) (int, error) {
	failed, err := s.store.ListRetryable(ctx, MaxAttempts, limit)
	if err != nil {
		return 0, fmt.Errorf("list retryable analyses: %w", err)
	}
	return s.processAll(ctx, failed)
}

// RecoverStale marks analyses stuck in processing as failed so RetryFailed
// picks them up. Rows whose processing lock is still held are left alone.
func (s *Service) RecoverStale(ctx context.Context, limit int) (int, error) {
	stale, err := s.store.ListStale(ctx, s.now().Add(-staleAfter), limit)
	if err != nil {
		return 0, fmt.Errorf("list stale analyses: %w", err)
	}

	recovered := 0
	for _, a := range stale {
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}
		if s.markStale(ctx, a) {
			recovered++
		}
	}
	return recovered, nil
}

func (s *Service) markStale(ctx context.Context, a *Analysis) bool {
	lockKey := redis.LockKey(a.ID)
	acquired, err := s.locker.TryLock(ctx, lockKey, lockTTL)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Int64("analysis_id", a.ID).Msg("lock unavailable, recovering without it")
	case !acquired:
		// 다른 워커가 아직 처리 중
		return false
	default:
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
				s.log.Warn().Err(err).Int64("analysis_id", a.ID).Msg("unlock failed")
			}
		}()
	}

	if err := s.transition(ctx, a, contracts.StatusFailed, errInterrupted); err != nil {
		s.log.Error().Err(err).Int64("analysis_id", a.ID).Msg("stale analysis recovery failed")
		return false
	}
	s.log.Warn().
		Int64("analysis_id", a.ID).
		Int("attempts", a.Attempts).
		Msg("stale analysis marked failed")
	return true
}

func (s *Service) processByStatus(ctx context.Context, status contracts.AnalysisStatus, limit int) (int, error) {
	pending, err := s.store.ListByStatus(ctx, status, limit)
	if err != nil {
		return 0, fmt.Errorf("list %s analyses: %w", status, err)
	}
	return s.processAll(ctx, pending)
}

func (s *Service) processAll(ctx context.Context, queue []*Analysis) (int, error) {
	done := 0
	for _, a := range queue {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if _, err := s.Process(ctx, a.ID); err != nil {
			if !errors.Is(err, ErrBusy) {
				s.log.Error().Err(err).Int64("analysis_id", a.ID).Str("status", string(a.Status)).Msg("queued analysis failed")
			}
			continue
		}
		done++
	}
	return done, nil
}

// transition persists a status change and announces it
func (s *Service) transition(ctx context.Context, a *Analysis, to contracts.AnalysisStatus, errMsg string) error {
	if err := s.store.UpdateStatus(ctx, a.ID, a.Status, to, errMsg); err != nil {
		return err
	}
	if to == contracts.StatusFailed {
		a.Attempts++
	}
	a.Status = to
	a.Error = errMsg
	a.UpdatedAt = s.now()

	s.announce(a)
	return nil
}

func (s *Service) announce(a *Analysis) {
	s.metrics.RecordTransition(string(a.Status))
	s.notifier.Publish(a.Event(s.now()))
}
