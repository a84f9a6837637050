package contracts

import "time"

// Transaction is a day whose percentage gain met the configured minimum.
// It is not a financial trade.
type Transaction struct {
	Index     int       `json:"index"` // 시계열 내 위치
	Date      time.Time `json:"date"`
	Close     float64   `json:"close"`
	ChangePct float64   `json:"change_pct"`
}

// IndicatorSnapshot is the indicator state of a transaction day
type IndicatorSnapshot struct {
	MA20   *float64 `json:"ma20,omitempty"`
	MA50   *float64 `json:"ma50,omitempty"`
	MA200  *float64 `json:"ma200,omitempty"`
	RSI    *float64 `json:"rsi,omitempty"`
	Volume int64    `json:"volume"`
}

// EnrichedTransaction is a transaction joined with its day's factors and score
type EnrichedTransaction struct {
	Transaction

	Factors        []FactorID         `json:"factors"`
	FactorCount    int                `json:"factor_count"`
	Score          *float64           `json:"score,omitempty"`
	AboveThreshold *bool              `json:"above_threshold,omitempty"`
	Indicators     *IndicatorSnapshot `json:"technical_indicators,omitempty"`
}
