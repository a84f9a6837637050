package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/factorlab/internal/aggregate"
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/factors"
	"github.com/wonny/factorlab/internal/indicators"
	"github.com/wonny/factorlab/internal/quality"
	"github.com/wonny/factorlab/internal/scoring"
	"github.com/wonny/factorlab/internal/transactions"
)

// Recorder receives run metrics (pkg/metrics.Recorder implements it)
type Recorder interface {
	RecordRun(bars, aboveThreshold int, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(int, int, time.Duration) {}

// Input is one engine run request.
// Config nil means scoring.DefaultConfig(); MinGainPct nil means transactions.DefaultMinGainPct.
type Input struct {
	Bars       []contracts.PriceBar
	Context    contracts.MarketContext
	Config     *contracts.ScoreConfig
	MinGainPct *float64
}

// Result is the complete output of one run
// ⭐ SSOT: 엔진 출력 구조
type Result struct {
	Bars         []contracts.DerivedBar                             `json:"bars"`
	Factors      []contracts.DayFactors                             `json:"factors"`
	Scores       []contracts.DailyScoreResult                       `json:"scores"`
	Summary      contracts.FactorSummary                            `json:"summary"`
	Correlation  map[contracts.FactorID]contracts.CorrelationResult `json:"correlation"`
	Ranking      []contracts.CorrelationResult                      `json:"ranking"`
	ScoreSummary contracts.ScoreSummary                             `json:"score_summary"`
	Transactions []contracts.EnrichedTransaction                    `json:"transactions"`
	Config       contracts.ScoreConfig                              `json:"config"`
	MinGainPct   float64                                            `json:"min_gain_pct"`
	Quality      quality.Report                                     `json:"quality"`
}

// BestFactor returns the factor with the highest average return
func (r *Result) BestFactor() (contracts.CorrelationResult, bool) {
	if len(r.Ranking) == 0 {
		return contracts.CorrelationResult{}, false
	}
	return r.Ranking[0], true
}

// WorstFactor returns the factor with the lowest average return
func (r *Result) WorstFactor() (contracts.CorrelationResult, bool) {
	if len(r.Ranking) == 0 {
		return contracts.CorrelationResult{}, false
	}
	return r.Ranking[len(r.Ranking)-1], true
}

// Engine chains indicators → factors → scoring → aggregation → transactions
type Engine struct {
	detector   *factors.Detector
	scorer     *scoring.Scorer
	aggregator *aggregate.Aggregator
	gate       *quality.Gate
	recorder   Recorder
	base       zerolog.Logger // 하위 컴포넌트용 (component 태그 없음)
	log        zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithThresholds overrides the factor thresholds
func WithThresholds(t contracts.FactorThresholds) Option {
	return func(e *Engine) {
		e.detector = factors.NewDetectorWithThresholds(t, e.base)
	}
}

// New creates a new engine
func New(log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		detector:   factors.NewDetector(log),
		scorer:     scoring.NewScorer(log),
		aggregator: aggregate.NewAggregator(log),
		gate:       quality.NewGate(quality.DefaultConfig()),
		recorder:   nopRecorder{},
		base:       log,
		log:        log.With().Str("component", "engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithQualityConfig overrides the input quality thresholds
func WithQualityConfig(cfg quality.Config) Option {
	return func(e *Engine) {
		e.gate = quality.NewGate(cfg)
	}
}

// Run executes the full pipeline. It never fails: short history and
// missing feeds only leave fields absent. The input is not mutated.
func (e *Engine) Run(in Input) *Result {
	start := time.Now()

	cfg := scoring.DefaultConfig()
	if in.Config != nil {
		cfg = *in.Config
	}
	minGain := transactions.DefaultMinGainPct
	if in.MinGainPct != nil {
		minGain = *in.MinGainPct
	}

	bars := indicators.Derive(in.Bars)
	days := e.detector.Detect(bars, in.Context)
	scores := e.scorer.ScoreAll(days, cfg)
	corr := e.aggregator.Correlate(days, bars)

	result := &Result{
		Bars:         bars,
		Factors:      days,
		Scores:       scores,
		Summary:      e.aggregator.Summarize(days),
		Correlation:  corr,
		Ranking:      aggregate.RankFactors(corr),
		ScoreSummary: e.aggregator.SummarizeScores(scores, bars),
		Config:       cfg,
		MinGainPct:   minGain,
		Quality:      e.gate.Check(indicators.SortBars(in.Bars)),
	}
	result.Transactions = transactions.Enrich(transactions.Detect(bars, minGain), days, scores, bars)

	elapsed := time.Since(start)
	e.recorder.RecordRun(len(bars), result.ScoreSummary.HighScoreDays, elapsed)

	e.log.Debug().
		Int("bars", len(bars)).
		Int("high_score_days", result.ScoreSummary.HighScoreDays).
		Int("transactions", len(result.Transactions)).
		Float64("quality_score", result.Quality.QualityScore).
		Dur("elapsed", elapsed).
		Msg("engine run completed")

	return result
}

// Reenrich recomputes transactions of an existing result with a different minimum gain
func (e *Engine) Reenrich(r *Result, minGainPct float64) []contracts.EnrichedTransaction {
	return transactions.Enrich(transactions.Detect(r.Bars, minGainPct), r.Factors, r.Scores, r.Bars)
}
