package scoring

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/factorlab/internal/contracts"
)

// Score computes the weighted score of one day.
// Only factors present in the weight table contribute; ActiveFactors and
// Breakdown follow the table order. The function is pure.
// ⭐ SSOT: 일별 점수 계산은 여기서만
func Score(date time.Time, flags contracts.FactorFlags, cfg contracts.ScoreConfig) contracts.DailyScoreResult {
	result := contracts.DailyScoreResult{
		Date:          date,
		ActiveFactors: []contracts.FactorID{},
		Breakdown:     make([]contracts.FactorContribution, 0, len(cfg.Weights)),
	}

	for _, w := range cfg.Weights {
		active := flags.IsActive(w.Factor)
		row := contracts.FactorContribution{
			Factor: w.Factor,
			Weight: w.Weight,
			Active: active,
		}
		if active {
			row.Contribution = w.Weight
			result.Score += w.Weight
			result.ActiveFactors = append(result.ActiveFactors, w.Factor)
		}
		result.Breakdown = append(result.Breakdown, row)
	}

	result.FactorCount = len(result.ActiveFactors)
	result.AboveThreshold = result.Score >= cfg.Threshold && meetsMinimum(result.FactorCount, cfg.MinFactorsRequired)

	return result
}

func meetsMinimum(count int, min *int) bool {
	return min == nil || count >= *min
}

// Scorer scores a whole series of days with logging
type Scorer struct {
	log zerolog.Logger
}

// NewScorer creates a new scorer
func NewScorer(log zerolog.Logger) *Scorer {
	return &Scorer{
		log: log.With().Str("component", "scoring.scorer").Logger(),
	}
}

// ScoreAll scores every day in order
func (s *Scorer) ScoreAll(days []contracts.DayFactors, cfg contracts.ScoreConfig) []contracts.DailyScoreResult {
	results := make([]contracts.DailyScoreResult, len(days))
	above := 0
	for i, d := range days {
		results[i] = Score(d.Date, d.Flags, cfg)
		if results[i].AboveThreshold {
			above++
		}
	}

	s.log.Debug().
		Int("days", len(results)).
		Int("above_threshold", above).
		Float64("threshold", cfg.Threshold).
		Msg("daily scoring completed")

	return results
}
