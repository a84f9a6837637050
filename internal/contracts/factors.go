package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// FactorID identifies one of the ten daily factors
type FactorID string

const (
	FactorMarketUp       FactorID = "market_up"
	FactorSectorUp       FactorID = "sector_up"
	FactorEarningsWindow FactorID = "earnings_window"
	FactorVolumeSpike    FactorID = "volume_spike"
	FactorBreakMA50      FactorID = "break_ma50"
	FactorBreakMA200     FactorID = "break_ma200"
	FactorRSIOver60      FactorID = "rsi_over_60"
	FactorNewsPositive   FactorID = "news_positive"
	FactorShortCovering  FactorID = "short_covering"
	FactorMacroTailwind  FactorID = "macro_tailwind"
)

// AllFactors lists every factor in canonical order
// ⭐ SSOT: 팩터 목록과 순서는 여기서만 정의
var AllFactors = []FactorID{
	FactorMarketUp,
	FactorSectorUp,
	FactorEarningsWindow,
	FactorVolumeSpike,
	FactorBreakMA50,
	FactorBreakMA200,
	FactorRSIOver60,
	FactorNewsPositive,
	FactorShortCovering,
	FactorMacroTailwind,
}

// FactorCategory groups factors for presentation
type FactorCategory string

const (
	CategoryMarket      FactorCategory = "market"
	CategoryTechnical   FactorCategory = "technical"
	CategoryFundamental FactorCategory = "fundamental"
	CategorySentiment   FactorCategory = "sentiment"
)

// Category returns the category of the factor
func (f FactorID) Category() FactorCategory {
	switch f {
	case FactorMarketUp, FactorSectorUp, FactorMacroTailwind:
		return CategoryMarket
	case FactorVolumeSpike, FactorBreakMA50, FactorBreakMA200, FactorRSIOver60:
		return CategoryTechnical
	case FactorEarningsWindow:
		return CategoryFundamental
	default:
		return CategorySentiment
	}
}

// Valid reports whether f is one of the ten known factors
func (f FactorID) Valid() bool {
	for _, id := range AllFactors {
		if id == f {
			return true
		}
	}
	return false
}

// FactorState is the evaluation outcome of one factor on one day
type FactorState int8

const (
	// FactorUnknown means the input needed to decide the factor was not supplied
	FactorUnknown FactorState = iota
	FactorInactive
	FactorActive
)

// Active reports whether the state counts as an active factor
func (s FactorState) Active() bool {
	return s == FactorActive
}

// StateOf converts a decided boolean into a FactorState
func StateOf(active bool) FactorState {
	if active {
		return FactorActive
	}
	return FactorInactive
}

// FactorFlags holds the state of every factor for one day.
// Unknown is never treated as active by scoring or aggregation.
type FactorFlags struct {
	MarketUp       FactorState
	SectorUp       FactorState
	EarningsWindow FactorState
	VolumeSpike    FactorState
	BreakMA50      FactorState
	BreakMA200     FactorState
	RSIOver60      FactorState
	NewsPositive   FactorState
	ShortCovering  FactorState
	MacroTailwind  FactorState
}

// field returns a pointer to the state field of id, nil for unknown ids
func (f *FactorFlags) field(id FactorID) *FactorState {
	switch id {
	case FactorMarketUp:
		return &f.MarketUp
	case FactorSectorUp:
		return &f.SectorUp
	case FactorEarningsWindow:
		return &f.EarningsWindow
	case FactorVolumeSpike:
		return &f.VolumeSpike
	case FactorBreakMA50:
		return &f.BreakMA50
	case FactorBreakMA200:
		return &f.BreakMA200
	case FactorRSIOver60:
		return &f.RSIOver60
	case FactorNewsPositive:
		return &f.NewsPositive
	case FactorShortCovering:
		return &f.ShortCovering
	case FactorMacroTailwind:
		return &f.MacroTailwind
	}
	return nil
}

// Get returns the state of a factor (FactorUnknown for unknown ids)
func (f FactorFlags) Get(id FactorID) FactorState {
	if p := f.field(id); p != nil {
		return *p
	}
	return FactorUnknown
}

// Set stores the state of a factor; unknown ids are ignored
func (f *FactorFlags) Set(id FactorID, state FactorState) {
	if p := f.field(id); p != nil {
		*p = state
	}
}

// IsActive reports whether the factor is active
func (f FactorFlags) IsActive(id FactorID) bool {
	return f.Get(id).Active()
}

// Active returns the active factors in canonical order
func (f FactorFlags) Active() []FactorID {
	active := make([]FactorID, 0, len(AllFactors))
	for _, id := range AllFactors {
		if f.IsActive(id) {
			active = append(active, id)
		}
	}
	return active
}

// Count returns the number of active factors
func (f FactorFlags) Count() int {
	n := 0
	for _, id := range AllFactors {
		if f.IsActive(id) {
			n++
		}
	}
	return n
}

// MarshalJSON encodes flags as {"factor": true|false|null}
func (f FactorFlags) MarshalJSON() ([]byte, error) {
	out := make(map[FactorID]*bool, len(AllFactors))
	for _, id := range AllFactors {
		switch f.Get(id) {
		case FactorActive:
			v := true
			out[id] = &v
		case FactorInactive:
			v := false
			out[id] = &v
		default:
			out[id] = nil
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the format written by MarshalJSON
func (f *FactorFlags) UnmarshalJSON(data []byte) error {
	var raw map[FactorID]*bool
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FactorFlags{}
	for id, v := range raw {
		if !id.Valid() {
			return fmt.Errorf("unknown factor %q", id)
		}
		if v != nil {
			f.Set(id, StateOf(*v))
		}
	}
	return nil
}

// DayFactors is the factor evaluation of one trading day
type DayFactors struct {
	Date  time.Time   `json:"date"`
	Flags FactorFlags `json:"flags"`
}

// FactorThresholds holds the detection thresholds of the factor rules
type FactorThresholds struct {
	MarketUpPct         float64 `yaml:"market_up_pct" json:"market_up_pct"`                 // 벤치마크 등락률 (기본: 1.5%)
	SectorUpPct         float64 `yaml:"sector_up_pct" json:"sector_up_pct"`                 // 섹터 등락률 (기본: 1.0%)
	EarningsWindowDays  int     `yaml:"earnings_window_days" json:"earnings_window_days"`   // 실적 발표 전후 일수 (기본: ±3일)
	VolumeSpikeRatio    float64 `yaml:"volume_spike_ratio" json:"volume_spike_ratio"`       // 20일 평균 거래량 배수 (기본: 1.5)
	RSIOver             float64 `yaml:"rsi_over" json:"rsi_over"`                           // RSI 기준 (기본: 60)
	ShortInterestPct    float64 `yaml:"short_interest_pct" json:"short_interest_pct"`       // 공매도 비율 (기본: 15%)
	ShortCoveringChange float64 `yaml:"short_covering_change" json:"short_covering_change"` // 숏커버링 당일 등락률 (기본: 2%)
}

// DefaultFactorThresholds returns the standard thresholds
func DefaultFactorThresholds() FactorThresholds {
	return FactorThresholds{
		MarketUpPct:         1.5,
		SectorUpPct:         1.0,
		EarningsWindowDays:  3,
		VolumeSpikeRatio:    1.5,
		RSIOver:             60,
		ShortInterestPct:    15,
		ShortCoveringChange: 2,
	}
}

// Validate rejects thresholds that would make a rule meaningless
func (t FactorThresholds) Validate() error {
	for field, v := range map[string]float64{
		"market_up_pct":         t.MarketUpPct,
		"sector_up_pct":         t.SectorUpPct,
		"volume_spike_ratio":    t.VolumeSpikeRatio,
		"rsi_over":              t.RSIOver,
		"short_interest_pct":    t.ShortInterestPct,
		"short_covering_change": t.ShortCoveringChange,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ValidationError{field, "must be a finite number"}
		}
	}
	if t.EarningsWindowDays < 0 {
		return ValidationError{"earnings_window_days", "must be >= 0"}
	}
	if t.VolumeSpikeRatio <= 0 {
		return ValidationError{"volume_spike_ratio", "must be > 0"}
	}
	if t.RSIOver < 0 || t.RSIOver > 100 {
		return ValidationError{"rsi_over", "must be in [0, 100]"}
	}
	if t.ShortInterestPct < 0 || t.ShortInterestPct > 100 {
		return ValidationError{"short_interest_pct", "must be in [0, 100]"}
	}
	return nil
}
