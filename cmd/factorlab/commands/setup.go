package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/factorlab/internal/engine"
	"github.com/wonny/factorlab/internal/external/dart"
	"github.com/wonny/factorlab/internal/external/naver"
	"github.com/wonny/factorlab/internal/feeds"
	"github.com/wonny/factorlab/internal/scoreconfig"
	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/httputil"
	"github.com/wonny/factorlab/pkg/logger"
	"github.com/wonny/factorlab/pkg/metrics"
	"github.com/wonny/factorlab/pkg/redis"
)

// applyGlobalFlags maps --env/--verbose onto the environment read by config.Load
func applyGlobalFlags(cmd *cobra.Command) error {
	if env != "" {
		if err := os.Setenv("ENV", env); err != nil {
			return err
		}
	}
	if verbose {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			return err
		}
	}
	return nil
}

// app holds the shared components of the long-running commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	redis    *redis.Client
	metrics  *metrics.Recorder // nil when METRICS_ENABLED=false
	scoring  *scoreconfig.Config
	naver    *naver.Client
	provider *feeds.Provider
}

// loadScoring reads SCORING_CONFIG_PATH (or the built-in defaults)
func loadScoring(path string) (*scoreconfig.Config, error) {
	if path == "" {
		return scoreconfig.Default(), nil
	}
	cfg, _, err := scoreconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load scoring config: %w", err)
	}
	return cfg, nil
}

// newApp loads configuration and connects the ambient services.
// The log writer is stderr for analyze so that --json output stays clean.
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewWithWriter(cfg, logOut)

	scoring, err := loadScoring(cfg.Engine.ScoringConfigPath)
	if err != nil {
		return nil, err
	}
	for _, w := range scoreconfig.CheckWarnings(scoring) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	rdb, err := redis.New(ctx, cfg)
	if err != nil {
		// 캐시는 선택 사항
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		rdb = redis.Disabled()
	}

	a := &app{cfg: cfg, log: log, redis: rdb, scoring: scoring}
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}
	a.provider = a.newProvider()
	return a, nil
}

// newProvider wires the Naver and DART clients into a feed provider
func (a *app) newProvider() *feeds.Provider {
	a.naver = naver.NewClient(newNaverHTTPClient(a.cfg.Naver, a.log), a.log, a.cfg.Naver.BaseURL)

	opts := []feeds.Option{
		feeds.WithIndexSource(a.naver),
		feeds.WithSectorSource(a.naver),
		feeds.WithCache(redis.NewCache(a.redis, "factorlab")),
	}
	if a.cfg.DART.APIKey != "" {
		opts = append(opts, feeds.WithEarningsSource(dart.NewClient(a.cfg.DART.APIKey, a.cfg.DART.BaseURL, a.log)))
	} else {
		a.log.Info("DART_API_KEY not set, earnings feed disabled")
	}
	if a.metrics != nil {
		opts = append(opts, feeds.WithRecorder(a.metrics))
	}
	return feeds.NewProvider(a.log.Zerolog(), opts...)
}

// newNaverHTTPClient applies the Naver timeout, rate limit and retry policy
func newNaverHTTPClient(cfg config.NaverConfig, log *logger.Logger) *httputil.Client {
	c := httputil.New(log).
		WithTimeout(cfg.Timeout).
		WithRateLimit(cfg.RequestsPerSec, 1)
	if cfg.MaxRetries == 0 {
		return c.DisableRetry()
	}
	return c.WithRetry(cfg.MaxRetries, cfg.RetryDelay)
}

// newEngine builds an engine with the configured thresholds and metrics
func (a *app) newEngine() *engine.Engine {
	opts := []engine.Option{
		engine.WithThresholds(a.scoring.Thresholds),
		engine.WithQualityConfig(a.scoring.Quality),
	}
	if a.metrics != nil {
		opts = append(opts, engine.WithRecorder(a.metrics))
	}
	return engine.New(a.log.Zerolog(), opts...)
}

// engineRecorder returns the metrics recorder as an engine.Recorder (nil interface when disabled)
func (a *app) engineRecorder() engine.Recorder {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Redis close failed")
	}
}
