package contracts

// FactorSummary holds factor frequency statistics across a series
type FactorSummary struct {
	TotalDays            int                  `json:"total_days"`
	FactorCounts         map[FactorID]int     `json:"factor_counts"`
	FactorFrequency      map[FactorID]float64 `json:"factor_frequency"` // % of total days
	AverageFactorsPerDay float64              `json:"average_factors_per_day"`
}

// CorrelationResult relates a factor's presence to the day's percentage change.
// Correlation is a coarse sign against the series-wide mean, not a coefficient.
type CorrelationResult struct {
	Factor      FactorID `json:"factor"`
	Occurrences int      `json:"occurrences"`
	AvgReturn   float64  `json:"avg_return"`
	Correlation int      `json:"correlation"` // +1, -1, 0
}

// ScoreSummary holds statistics of the daily scores
type ScoreSummary struct {
	TotalDays          int     `json:"total_days"`
	HighScoreDays      int     `json:"high_score_days"`
	HighScoreRate      float64 `json:"high_score_rate"` // % of total days
	AverageScore       float64 `json:"average_score"`
	MaxScore           float64 `json:"max_score"`
	AvgChangeHighScore float64 `json:"avg_change_high_score"` // 고득점일 평균 등락률
	NextDayWinRate     float64 `json:"next_day_win_rate"`     // 고득점 다음날 상승 비율 (%)
}
