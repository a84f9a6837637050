package contracts

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-date format used for keys, JSON and logs
const DateLayout = "2006-01-02"

// PriceBar represents one trading day of OHLCV data
// ⭐ SSOT: CSV 파서 → 엔진 입력 데이터
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// DerivedBar is a PriceBar extended with derived indicator fields.
// A nil field means the window did not have enough preceding bars.
type DerivedBar struct {
	PriceBar

	ChangePct  *float64 `json:"change_pct,omitempty"` // 전일 종가 대비 등락률 (%)
	MA20       *float64 `json:"ma20,omitempty"`
	MA50       *float64 `json:"ma50,omitempty"`
	MA200      *float64 `json:"ma200,omitempty"`
	RSI14      *float64 `json:"rsi14,omitempty"`
	VolumeMA20 *float64 `json:"volume_ma20,omitempty"` // 20일 평균 거래량
}

// DateKey returns the calendar date of t with the time of day stripped
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// CalendarDay returns t truncated to midnight UTC of its own calendar date
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Float returns a pointer to v (helper for optional fields)
func Float(v float64) *float64 {
	return &v
}

// ValidateSeries rejects an empty series, duplicate calendar dates,
// non-finite prices and negative volume
func ValidateSeries(bars []PriceBar) error {
	if len(bars) == 0 {
		return ErrEmptySeries
	}
	seen := make(map[string]bool, len(bars))
	for i, b := range bars {
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return ValidationError{fmt.Sprintf("bars[%d]", i), "prices must be finite numbers"}
			}
		}
		if b.Volume < 0 {
			return ValidationError{fmt.Sprintf("bars[%d]", i), "volume must be >= 0"}
		}
		key := DateKey(b.Date)
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateDate, key)
		}
		seen[key] = true
	}
	return nil
}
