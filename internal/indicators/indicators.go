package indicators

import (
	"math"
	"sort"

	"github.com/wonny/factorlab/internal/contracts"
)

// Indicator windows
const (
	MA20Window   = 20
	MA50Window   = 50
	MA200Window  = 200
	RSIPeriod    = 14
	VolumeWindow = 20
)

// SMA calculates the simple moving average of values over window.
// Entry i is the mean of values[i-window+1 : i+1] once i >= window-1, NaN before.
// ⭐ SSOT: 이동평균 계산은 여기서만
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || window > len(values) {
		return out
	}

	// 윈도우마다 새로 합산 (누적 오차 방지)
	for i := window - 1; i < len(values); i++ {
		var sum float64
		for _, v := range values[i-window+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(window)
	}
	return out
}

// RSI calculates the Relative Strength Index for every index.
// Average gain and loss are plain means over the trailing `period` changes,
// recomputed at each index (no Wilder smoothing). Indices before period are NaN.
// ⭐ SSOT: RSI 계산은 여기서만
func RSI(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(prices) <= period {
		return out
	}

	// changes[i] = prices[i] - prices[i-1], changes[0] unused
	changes := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		changes[i] = prices[i] - prices[i-1]
	}

	for i := period; i < len(prices); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			if changes[j] > 0 {
				gains += changes[j]
			} else {
				losses -= changes[j]
			}
		}

		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)

		if avgLoss == 0 {
			out[i] = 100.0 // 하락일 없음
			continue
		}

		rs := avgGain / avgLoss
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}

// PercentChanges calculates the day-over-day percentage change of closes.
// The first entry is NaN; a zero previous close yields 0.
func PercentChanges(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		prev := closes[i-1]
		if prev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (closes[i] - prev) / prev * 100
	}
	return out
}

// SortBars returns a copy of bars sorted ascending by date
func SortBars(bars []contracts.PriceBar) []contracts.PriceBar {
	sorted := make([]contracts.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// Derive sorts bars ascending and attaches percentage change, moving averages,
// RSI and 20-day volume average where their windows are satisfied.
func Derive(bars []contracts.PriceBar) []contracts.DerivedBar {
	sorted := SortBars(bars)

	closes := make([]float64, len(sorted))
	volumes := make([]float64, len(sorted))
	for i, b := range sorted {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}

	changes := PercentChanges(closes)
	ma20 := SMA(closes, MA20Window)
	ma50 := SMA(closes, MA50Window)
	ma200 := SMA(closes, MA200Window)
	rsi := RSI(closes, RSIPeriod)
	volMA := SMA(volumes, VolumeWindow)

	derived := make([]contracts.DerivedBar, len(sorted))
	for i, b := range sorted {
		derived[i] = contracts.DerivedBar{
			PriceBar:   b,
			ChangePct:  optional(changes[i]),
			MA20:       optional(ma20[i]),
			MA50:       optional(ma50[i]),
			MA200:      optional(ma200[i]),
			RSI14:      optional(rsi[i]),
			VolumeMA20: optional(volMA[i]),
		}
	}
	return derived
}

// optional converts NaN into an absent field
func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
