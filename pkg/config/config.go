package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production
	HTTP HTTPConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External feeds
	DART  DARTConfig
	Naver NaverConfig

	// Engine
	Engine EngineConfig

	// Worker
	Worker WorkerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// HTTPConfig holds API server timeouts
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration // 동기 처리(POST /process) 포함
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration // 종료 시 처리 중 요청 대기
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration // 분석 결과/피드 캐시 TTL
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DARTConfig holds DART (전자공시) API configuration
type DARTConfig struct {
	APIKey  string
	BaseURL string
}

// NaverConfig holds Naver Finance configuration
type NaverConfig struct {
	BaseURL        string
	RequestsPerSec float64
	Timeout        time.Duration
	MaxRetries     int           // 0 → 재시도 없음
	RetryDelay     time.Duration // 첫 재시도 대기 (지수 증가)
}

// EngineConfig holds scoring engine defaults
type EngineConfig struct {
	ScoringConfigPath string  // YAML 가중치 파일 (비어있으면 기본값)
	MinGainPct        float64 // 거래일 최소 상승률 (%)
	BenchmarkIndex    string  // KOSPI, KOSDAQ
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Schedule   string // cron spec (초 단위 포함)
	BatchSize  int
	JobRetries int           // 실패한 Job 재실행 횟수
	RetryDelay time.Duration // Job 재실행 간격
}

// Load reads configuration from the environment (and .env when present).
// Malformed values are errors rather than silent defaults.
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	var e env
	cfg := &Config{
		Port: e.text("PORT", "8089"),
		Env:  e.text("ENV", "development"),
		HTTP: HTTPConfig{
			ReadTimeout:     e.duration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    e.duration("HTTP_WRITE_TIMEOUT", time.Minute),
			IdleTimeout:     e.duration("HTTP_IDLE_TIMEOUT", time.Minute),
			ShutdownTimeout: e.duration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             e.text("DATABASE_URL", ""),
			MaxConns:        e.integer("DB_MAX_CONNS", 25),
			MinConns:        e.integer("DB_MIN_CONNS", 5),
			MaxConnLifetime: e.duration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: e.duration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     e.text("REDIS_HOST", "localhost"),
			Port:     e.text("REDIS_PORT", "6379"),
			Password: e.text("REDIS_PASSWORD", ""),
			DB:       e.integer("REDIS_DB", 0),
			Enabled:  e.flag("REDIS_ENABLED", true),
			TTL:      e.duration("REDIS_TTL", 6*time.Hour),
		},
		DART: DARTConfig{
			APIKey:  e.text("DART_API_KEY", ""),
			BaseURL: e.text("DART_BASE_URL", "https://opendart.fss.or.kr/api"),
		},
		Naver: NaverConfig{
			BaseURL:        e.text("NAVER_BASE_URL", "https://finance.naver.com"),
			RequestsPerSec: e.number("NAVER_RATE_LIMIT", 5),
			Timeout:        e.duration("NAVER_TIMEOUT", 10*time.Second),
			MaxRetries:     e.integer("NAVER_MAX_RETRIES", 3),
			RetryDelay:     e.duration("NAVER_RETRY_DELAY", time.Second),
		},
		Engine: EngineConfig{
			ScoringConfigPath: e.text("SCORING_CONFIG_PATH", ""),
			MinGainPct:        e.number("TRANSACTION_MIN_GAIN_PCT", 5.0),
			BenchmarkIndex:    e.text("BENCHMARK_INDEX", "KOSPI"),
		},
		Worker: WorkerConfig{
			Schedule:   e.text("WORKER_SCHEDULE", "0 */5 * * * *"),
			BatchSize:  e.integer("WORKER_BATCH_SIZE", 10),
			JobRetries: e.integer("WORKER_JOB_RETRIES", 3),
			RetryDelay: e.duration("WORKER_RETRY_DELAY", time.Minute),
		},
		LogLevel:       e.text("LOG_LEVEL", "debug"),
		LogFormat:      e.text("LOG_FORMAT", "json"),
		MetricsEnabled: e.flag("METRICS_ENABLED", true),
	}

	if err := errors.Join(append(e.errs, cfg.validate()...)...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// validate lists every unusable value
func (c *Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(oneOf(c.Env, "development", "staging", "production"), "ENV must be one of: development, staging, production")
	check(oneOf(c.Engine.BenchmarkIndex, "KOSPI", "KOSDAQ"), "BENCHMARK_INDEX must be one of: KOSPI, KOSDAQ")
	check(c.Engine.MinGainPct >= 0, "TRANSACTION_MIN_GAIN_PCT must be >= 0")
	check(c.Naver.MaxRetries >= 0, "NAVER_MAX_RETRIES must be >= 0")
	check(c.Worker.JobRetries >= 0, "WORKER_JOB_RETRIES must be >= 0")
	check(c.Worker.BatchSize > 0, "WORKER_BATCH_SIZE must be > 0")
	return errs
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// RequireDatabase checks that DATABASE_URL is set (api, worker, test-db)
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// loadEnvFile loads the first .env found in the working directory or next to the binary.
// Variables already set in the environment win.
func loadEnvFile() {
	candidates := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates, filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env"))
	}
	for _, path := range candidates {
		if godotenv.Load(path) == nil {
			return
		}
	}
}

// env reads typed variables; unset or empty means the default
type env struct {
	errs []error
}

func (e *env) text(key, def string) string {
	return lookup(e, key, def, func(s string) (string, error) { return s, nil })
}

func (e *env) integer(key string, def int) int {
	return lookup(e, key, def, strconv.Atoi)
}

func (e *env) number(key string, def float64) float64 {
	return lookup(e, key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (e *env) flag(key string, def bool) bool {
	return lookup(e, key, def, strconv.ParseBool)
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	return lookup(e, key, def, time.ParseDuration)
}

func lookup[T any](e *env, key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
		return def
	}
	return v
}
