package quality

import (
	"fmt"

	"github.com/wonny/factorlab/internal/contracts"
)

// Coverage keys
const (
	CoverageOHLC       = "ohlc"       // High ≥ max(Open, Close), Low ≤ min(Open, Close)
	CoverageVolume     = "volume"     // 거래량 > 0
	CoverageContinuity = "continuity" // 전일과의 간격이 MaxGapDays 이하
	CoverageHistory    = "history"    // 장기 이동평균 계산 가능 정도
)

// Config holds quality gate thresholds
type Config struct {
	MinOHLCCoverage       float64 `yaml:"min_ohlc_coverage" json:"min_ohlc_coverage"`
	MinVolumeCoverage     float64 `yaml:"min_volume_coverage" json:"min_volume_coverage"`
	MinContinuityCoverage float64 `yaml:"min_continuity_coverage" json:"min_continuity_coverage"`
	MaxGapDays            int     `yaml:"max_gap_days" json:"max_gap_days"`
	FullHistoryBars       int     `yaml:"full_history_bars" json:"full_history_bars"`
}

// DefaultConfig returns the built-in thresholds
func DefaultConfig() Config {
	return Config{
		MinOHLCCoverage:       1.0,
		MinVolumeCoverage:     0.95,
		MinContinuityCoverage: 0.95,
		MaxGapDays:            7, // 연휴 포함
		FullHistoryBars:       201,
	}
}

// Issue is one failed coverage check
type Issue struct {
	Check    string  `json:"check"`
	Coverage float64 `json:"coverage"`
	Minimum  float64 `json:"minimum"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s coverage %.1f%% below %.1f%%", i.Check, i.Coverage*100, i.Minimum*100)
}

// Report is the quality snapshot of one price series.
// Quality never blocks an analysis; it qualifies the result.
type Report struct {
	TotalBars    int                `json:"total_bars"`
	Coverage     map[string]float64 `json:"coverage"`
	QualityScore float64            `json:"quality_score"` // 0.0 - 1.0
	Passed       bool               `json:"passed"`
	Issues       []Issue            `json:"issues,omitempty"`
}

// Gate validates price series quality
type Gate struct {
	config Config
}

// NewGate creates a new Gate
func NewGate(config Config) *Gate {
	return &Gate{config: config}
}

// Check validates a series sorted ascending by date
// ⭐ SSOT: 입력 시계열 품질 검증
func (g *Gate) Check(bars []contracts.PriceBar) Report {
	report := Report{
		TotalBars: len(bars),
		Coverage:  make(map[string]float64, 4),
	}
	if len(bars) == 0 {
		return report
	}

	report.Coverage[CoverageOHLC] = share(bars, consistentOHLC)
	report.Coverage[CoverageVolume] = share(bars, func(b contracts.PriceBar) bool { return b.Volume > 0 })
	report.Coverage[CoverageContinuity] = g.continuity(bars)
	report.Coverage[CoverageHistory] = g.history(len(bars))

	report.QualityScore = calculateScore(report.Coverage)

	checks := []struct {
		key string
		min float64
	}{
		{CoverageOHLC, g.config.MinOHLCCoverage},
		{CoverageVolume, g.config.MinVolumeCoverage},
		{CoverageContinuity, g.config.MinContinuityCoverage},
	}
	for _, c := range checks {
		if cov := report.Coverage[c.key]; cov < c.min {
			report.Issues = append(report.Issues, Issue{Check: c.key, Coverage: cov, Minimum: c.min})
		}
	}
	report.Passed = len(report.Issues) == 0

	return report
}

func consistentOHLC(b contracts.PriceBar) bool {
	if b.Close <= 0 {
		return false
	}
	hi, lo := b.Open, b.Close
	if lo > hi {
		hi, lo = lo, hi
	}
	return b.High >= hi && b.Low <= lo && b.Low >= 0
}

func share(bars []contracts.PriceBar, ok func(contracts.PriceBar) bool) float64 {
	n := 0
	for _, b := range bars {
		if ok(b) {
			n++
		}
	}
	return float64(n) / float64(len(bars))
}

// continuity is the share of day-to-day steps within MaxGapDays
func (g *Gate) continuity(bars []contracts.PriceBar) float64 {
	if len(bars) < 2 {
		return 1.0
	}
	ok := 0
	for i := 1; i < len(bars); i++ {
		gap := contracts.CalendarDay(bars[i].Date).Sub(contracts.CalendarDay(bars[i-1].Date)).Hours() / 24
		if gap <= float64(g.config.MaxGapDays) {
			ok++
		}
	}
	return float64(ok) / float64(len(bars)-1)
}

func (g *Gate) history(n int) float64 {
	if g.config.FullHistoryBars <= 0 || n >= g.config.FullHistoryBars {
		return 1.0
	}
	return float64(n) / float64(g.config.FullHistoryBars)
}

// calculateScore calculates overall quality score using weighted average
func calculateScore(coverage map[string]float64) float64 {
	// 가중치 (합계 = 1.0)
	weights := map[string]float64{
		CoverageOHLC:       0.35, // 가격 정합성 필수
		CoverageVolume:     0.25, // 거래량 팩터
		CoverageContinuity: 0.25, // 누락 거래일
		CoverageHistory:    0.15, // MA200 계산 가능 여부
	}

	score := 0.0
	for key, weight := range weights {
		if cov, exists := coverage[key]; exists {
			score += cov * weight
		}
	}
	return score
}
