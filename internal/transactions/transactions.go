package transactions

import (
	"github.com/wonny/factorlab/internal/contracts"
)

// DefaultMinGainPct is the default minimum daily gain of a transaction
const DefaultMinGainPct = 5.0

// Detect returns every day whose percentage change meets or exceeds minGainPct.
// Days without a defined change are never transactions.
func Detect(bars []contracts.DerivedBar, minGainPct float64) []contracts.Transaction {
	txs := []contracts.Transaction{}
	for i, b := range bars {
		if b.ChangePct == nil || *b.ChangePct < minGainPct {
			continue
		}
		txs = append(txs, contracts.Transaction{
			Index:     i,
			Date:      b.Date,
			Close:     b.Close,
			ChangePct: *b.ChangePct,
		})
	}
	return txs
}

// Enrich joins each transaction with its day's factors, score and indicators by calendar date.
// A missing factor entry yields an empty factor list, count 0 and no indicators.
// ⭐ SSOT: 거래일 보강 규칙
func Enrich(
	txs []contracts.Transaction,
	days []contracts.DayFactors,
	scores []contracts.DailyScoreResult,
	bars []contracts.DerivedBar,
) []contracts.EnrichedTransaction {
	dayByDate := make(map[string]contracts.FactorFlags, len(days))
	for _, d := range days {
		key := contracts.DateKey(d.Date)
		if _, exists := dayByDate[key]; !exists {
			dayByDate[key] = d.Flags
		}
	}
	scoreByDate := make(map[string]contracts.DailyScoreResult, len(scores))
	for _, s := range scores {
		key := contracts.DateKey(s.Date)
		if _, exists := scoreByDate[key]; !exists {
			scoreByDate[key] = s
		}
	}
	barByDate := make(map[string]contracts.DerivedBar, len(bars))
	for _, b := range bars {
		key := contracts.DateKey(b.Date)
		if _, exists := barByDate[key]; !exists {
			barByDate[key] = b
		}
	}

	enriched := make([]contracts.EnrichedTransaction, len(txs))
	for i, tx := range txs {
		key := contracts.DateKey(tx.Date)
		e := contracts.EnrichedTransaction{
			Transaction: tx,
			Factors:     []contracts.FactorID{},
		}

		flags, ok := dayByDate[key]
		if !ok {
			enriched[i] = e
			continue
		}
		e.Factors = flags.Active()
		e.FactorCount = len(e.Factors)

		if s, ok := scoreByDate[key]; ok {
			score := s.Score
			above := s.AboveThreshold
			e.Score = &score
			e.AboveThreshold = &above
		}
		if b, ok := barByDate[key]; ok {
			e.Indicators = &contracts.IndicatorSnapshot{
				MA20:   b.MA20,
				MA50:   b.MA50,
				MA200:  b.MA200,
				RSI:    b.RSI14,
				Volume: b.Volume,
			}
		}
		enriched[i] = e
	}
	return enriched
}
