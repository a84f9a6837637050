package contracts

import "time"

// ChangePoint is one dated percentage change of a benchmark or sector series
type ChangePoint struct {
	Date      time.Time `json:"date"`
	ChangePct float64   `json:"change_pct"`
}

// Sentiment values of a news feed
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// NewsSentiment is one dated entry of a news-sentiment feed
type NewsSentiment struct {
	Date      time.Time `json:"date"`
	Sentiment string    `json:"sentiment"`
	Headline  string    `json:"headline,omitempty"`
}

// MacroEvent is one dated entry of a macro-event calendar
type MacroEvent struct {
	Date      time.Time `json:"date"`
	Name      string    `json:"name,omitempty"`
	Favorable bool      `json:"favorable"`
}

// MarketContext carries every optional context feed of an analysis.
// A nil feed suppresses the factors that depend on it.
// ⭐ SSOT: 외부 컨텍스트 데이터 전달
type MarketContext struct {
	Benchmark        []ChangePoint   `json:"benchmark,omitempty"`
	Sector           []ChangePoint   `json:"sector,omitempty"`
	EarningsDates    []time.Time     `json:"earnings_dates,omitempty"`
	News             []NewsSentiment `json:"news,omitempty"`
	ShortInterestPct *float64        `json:"short_interest_pct,omitempty"`
	Macro            []MacroEvent    `json:"macro,omitempty"`
}
