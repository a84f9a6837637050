package aggregate

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/wonny/factorlab/internal/contracts"
)

// Aggregator computes series-wide factor and score statistics
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With().Str("component", "aggregate").Logger(),
	}
}

// Summarize counts how often each factor was active.
// Frequency is a percentage of total days; all ten factors are present in the maps.
func (a *Aggregator) Summarize(days []contracts.DayFactors) contracts.FactorSummary {
	summary := contracts.FactorSummary{
		TotalDays:       len(days),
		FactorCounts:    make(map[contracts.FactorID]int, len(contracts.AllFactors)),
		FactorFrequency: make(map[contracts.FactorID]float64, len(contracts.AllFactors)),
	}
	for _, id := range contracts.AllFactors {
		summary.FactorCounts[id] = 0
		summary.FactorFrequency[id] = 0
	}

	totalActive := 0
	for _, d := range days {
		for _, id := range d.Flags.Active() {
			summary.FactorCounts[id]++
			totalActive++
		}
	}

	if summary.TotalDays > 0 {
		for _, id := range contracts.AllFactors {
			summary.FactorFrequency[id] = float64(summary.FactorCounts[id]) / float64(summary.TotalDays) * 100
		}
		summary.AverageFactorsPerDay = float64(totalActive) / float64(summary.TotalDays)
	}

	return summary
}

// Correlate relates each factor's presence to the day's percentage change.
// Days are joined to bars by calendar date. Occurrences counts every active day;
// AvgReturn and the all-days mean use only days with a defined change.
// Correlation is +1 when the factor's average return beats the all-days mean,
// -1 otherwise and 0 when the factor never occurred.
func (a *Aggregator) Correlate(days []contracts.DayFactors, bars []contracts.DerivedBar) map[contracts.FactorID]contracts.CorrelationResult {
	changes := make(map[string]float64, len(bars))
	for _, b := range bars {
		if b.ChangePct == nil {
			continue
		}
		key := contracts.DateKey(b.Date)
		if _, exists := changes[key]; !exists {
			changes[key] = *b.ChangePct
		}
	}

	// 전체 평균 (등락률이 있는 날만)
	var allSum float64
	var allCount int
	counts := make(map[contracts.FactorID]int, len(contracts.AllFactors))
	sums := make(map[contracts.FactorID]float64, len(contracts.AllFactors))
	priced := make(map[contracts.FactorID]int, len(contracts.AllFactors))

	for _, d := range days {
		active := d.Flags.Active()
		for _, id := range active {
			counts[id]++
		}

		change, ok := changes[contracts.DateKey(d.Date)]
		if !ok {
			continue
		}
		allSum += change
		allCount++
		for _, id := range active {
			sums[id] += change
			priced[id]++
		}
	}

	overall := 0.0
	if allCount > 0 {
		overall = allSum / float64(allCount)
	}

	results := make(map[contracts.FactorID]contracts.CorrelationResult, len(contracts.AllFactors))
	for _, id := range contracts.AllFactors {
		r := contracts.CorrelationResult{Factor: id, Occurrences: counts[id]}
		if r.Occurrences > 0 {
			if priced[id] > 0 {
				r.AvgReturn = sums[id] / float64(priced[id])
			}
			if r.AvgReturn > overall {
				r.Correlation = 1
			} else {
				r.Correlation = -1
			}
		}
		results[id] = r
	}

	a.log.Debug().
		Int("days", len(days)).
		Int("days_with_change", allCount).
		Float64("mean_change", overall).
		Msg("factor correlation completed")

	return results
}

// RankFactors orders occurring factors by average return, best first.
// Ties keep canonical factor order.
func RankFactors(corr map[contracts.FactorID]contracts.CorrelationResult) []contracts.CorrelationResult {
	ranked := make([]contracts.CorrelationResult, 0, len(corr))
	for _, id := range contracts.AllFactors {
		if r, ok := corr[id]; ok && r.Occurrences > 0 {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AvgReturn > ranked[j].AvgReturn
	})
	return ranked
}

// SummarizeScores computes the high-score statistics of a scored series.
// Next-day win rate is the share of high-score days followed by a positive change.
func (a *Aggregator) SummarizeScores(scores []contracts.DailyScoreResult, bars []contracts.DerivedBar) contracts.ScoreSummary {
	summary := contracts.ScoreSummary{TotalDays: len(scores)}
	if len(scores) == 0 {
		return summary
	}

	// 날짜 → 봉 인덱스
	index := make(map[string]int, len(bars))
	for i, b := range bars {
		key := contracts.DateKey(b.Date)
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	var scoreSum, highChangeSum float64
	var highChangeCount, nextDays, nextWins int
	summary.MaxScore = scores[0].Score

	for _, s := range scores {
		scoreSum += s.Score
		if s.Score > summary.MaxScore {
			summary.MaxScore = s.Score
		}
		if !s.AboveThreshold {
			continue
		}
		summary.HighScoreDays++

		i, ok := index[contracts.DateKey(s.Date)]
		if !ok {
			continue
		}
		if c := bars[i].ChangePct; c != nil {
			highChangeSum += *c
			highChangeCount++
		}
		if i+1 < len(bars) && bars[i+1].ChangePct != nil {
			nextDays++
			if *bars[i+1].ChangePct > 0 {
				nextWins++
			}
		}
	}

	summary.AverageScore = scoreSum / float64(len(scores))
	summary.HighScoreRate = float64(summary.HighScoreDays) / float64(summary.TotalDays) * 100
	if highChangeCount > 0 {
		summary.AvgChangeHighScore = highChangeSum / float64(highChangeCount)
	}
	if nextDays > 0 {
		summary.NextDayWinRate = float64(nextWins) / float64(nextDays) * 100
	}

	return summary
}
