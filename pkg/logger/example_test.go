package logger_test

import (
	"errors"

	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Analysis service started")
	log.WithField("retries", 3).Warn("Naver feed unavailable, running without benchmark")
}

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	log := logger.New(&config.Config{Env: "production", LogLevel: "info", LogFormat: "json"})

	log.WithFields(map[string]interface{}{
		"analysis_id":     7,
		"symbol":          "005930",
		"high_score_days": 12,
	}).Info("Analysis completed")
	// {"level":"info","analysis_id":7,"symbol":"005930","high_score_days":12,"message":"Analysis completed",...}
}

// Example_withError demonstrates error logging
func Example_withError() {
	log := logger.New(&config.Config{Env: "production", LogLevel: "error", LogFormat: "json"})

	err := errors.New("duplicate date 2024-01-02")
	log.WithError(err).
		WithField("file", "prices.csv").
		Error("Failed to import price series")
}

// Example_zerolog demonstrates passing the zerolog.Logger to core components
func Example_zerolog() {
	log := logger.New(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"})

	engineLog := log.Zerolog().With().Str("component", "engine").Logger()
	engineLog.Debug().Int("bars", 250).Msg("engine run started")
}
