package scoreconfig

import (
	"fmt"
	"math"

	"github.com/wonny/factorlab/internal/contracts"
)

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 contracts.ValidationError 반환
func Validate(cfg *Config) error {
	// === Scoring ===
	if cfg.Scoring.Threshold < 0 {
		return contracts.ValidationError{Field: "scoring.threshold", Message: "must be >= 0"}
	}
	if err := cfg.ScoreConfig().Validate(); err != nil {
		if ve, ok := err.(contracts.ValidationError); ok {
			ve.Field = "scoring." + ve.Field
			return ve
		}
		return err
	}

	// === Thresholds ===
	if err := cfg.Thresholds.Validate(); err != nil {
		if ve, ok := err.(contracts.ValidationError); ok {
			ve.Field = "thresholds." + ve.Field
			return ve
		}
		return err
	}

	// === Transactions ===
	if cfg.Transactions.MinGainPct < 0 {
		return contracts.ValidationError{Field: "transactions.min_gain_pct", Message: "must be >= 0"}
	}

	// === Quality ===
	q := cfg.Quality
	for field, v := range map[string]float64{
		"quality.min_ohlc_coverage":       q.MinOHLCCoverage,
		"quality.min_volume_coverage":     q.MinVolumeCoverage,
		"quality.min_continuity_coverage": q.MinContinuityCoverage,
	} {
		if v < 0 || v > 1 {
			return contracts.ValidationError{Field: field, Message: "must be in [0, 1]"}
		}
	}
	if q.MaxGapDays < 1 {
		return contracts.ValidationError{Field: "quality.max_gap_days", Message: "must be >= 1"}
	}

	return nil
}

// CheckWarnings returns recommended-practice violations
// 엔진은 가중치 합 = 1을 가정하지 않으므로 경고만
func CheckWarnings(cfg *Config) []Warning {
	var warnings []Warning

	total := cfg.ScoreConfig().TotalWeight()
	if math.Abs(total-1.0) > 1e-6 {
		warnings = append(warnings, Warning{
			Code:    "WEIGHTS_SUM",
			Message: fmt.Sprintf("weights sum to %.4f, threshold %.2f is relative to that total", total, cfg.Scoring.Threshold),
		})
	}

	if cfg.Scoring.Threshold > total {
		warnings = append(warnings, Warning{
			Code:    "THRESHOLD_UNREACHABLE",
			Message: fmt.Sprintf("threshold %.2f exceeds the maximum score %.2f", cfg.Scoring.Threshold, total),
		})
	}

	if len(cfg.Scoring.Weights) < len(contracts.AllFactors) {
		seen := make(map[contracts.FactorID]bool, len(cfg.Scoring.Weights))
		for _, w := range cfg.Scoring.Weights {
			seen[w.Factor] = true
		}
		for _, id := range contracts.AllFactors {
			if !seen[id] {
				warnings = append(warnings, Warning{
					Code:    "FACTOR_UNWEIGHTED",
					Message: fmt.Sprintf("factor %s has no weight and never contributes", id),
				})
			}
		}
	}

	if m := cfg.Scoring.MinFactorsRequired; m != nil && *m > len(cfg.Scoring.Weights) {
		warnings = append(warnings, Warning{
			Code:    "MIN_FACTORS_UNREACHABLE",
			Message: fmt.Sprintf("min_factors_required %d exceeds the %d weighted factors", *m, len(cfg.Scoring.Weights)),
		})
	}

	return warnings
}
