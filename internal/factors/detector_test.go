package factors

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/internal/contracts"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time {
	return day0.AddDate(0, 0, i)
}

func bar(i int, close float64) contracts.DerivedBar {
	return contracts.DerivedBar{
		PriceBar: contracts.PriceBar{Date: day(i), Open: close, High: close, Low: close, Close: close, Volume: 1000},
	}
}

func TestDetect_MissingFeedsAreUnknown(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	days := d.Detect([]contracts.DerivedBar{bar(0, 100)}, contracts.MarketContext{})
	require.Len(t, days, 1)

	flags := days[0].Flags
	for _, id := range contracts.AllFactors {
		assert.Equal(t, contracts.FactorUnknown, flags.Get(id), "factor %s", id)
	}
	assert.Equal(t, 0, flags.Count())
	assert.Equal(t, day(0), days[0].Date)
}

func TestDetect_MarketAndSector(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	bars := []contracts.DerivedBar{bar(0, 100), bar(1, 100), bar(2, 100)}
	mctx := contracts.MarketContext{
		Benchmark: []contracts.ChangePoint{
			{Date: day(0), ChangePct: 1.6},
			{Date: day(1), ChangePct: 1.5}, // 경계값은 불충족
		},
		Sector: []contracts.ChangePoint{
			{Date: day(0), ChangePct: 0.5},
			{Date: day(1), ChangePct: 1.01},
		},
	}

	days := d.Detect(bars, mctx)

	assert.Equal(t, contracts.FactorActive, days[0].Flags.MarketUp)
	assert.Equal(t, contracts.FactorInactive, days[1].Flags.MarketUp)
	// feed supplied but no entry for the date
	assert.Equal(t, contracts.FactorInactive, days[2].Flags.MarketUp)

	assert.Equal(t, contracts.FactorInactive, days[0].Flags.SectorUp)
	assert.Equal(t, contracts.FactorActive, days[1].Flags.SectorUp)
}

func TestDetect_DateMatchingIgnoresTimeOfDay(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	b := bar(0, 100)
	b.Date = day(0).Add(15 * time.Hour)

	mctx := contracts.MarketContext{
		Benchmark: []contracts.ChangePoint{
			{Date: day(0).Add(9 * time.Hour), ChangePct: 2.0},
			{Date: day(0), ChangePct: -1.0}, // 같은 날짜는 첫 항목만 사용
		},
	}

	days := d.Detect([]contracts.DerivedBar{b}, mctx)
	assert.Equal(t, contracts.FactorActive, days[0].Flags.MarketUp)
}

func TestDetect_EarningsWindow(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	var bars []contracts.DerivedBar
	for i := 0; i < 10; i++ {
		bars = append(bars, bar(i, 100))
	}
	mctx := contracts.MarketContext{
		EarningsDates: []time.Time{day(5).Add(18 * time.Hour)},
	}

	days := d.Detect(bars, mctx)

	for i, df := range days {
		want := contracts.FactorInactive
		if i >= 2 && i <= 8 {
			want = contracts.FactorActive
		}
		assert.Equal(t, want, df.Flags.EarningsWindow, "day %d", i)
	}
}

func TestDetect_EmptyEarningsListIsInactive(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	days := d.Detect([]contracts.DerivedBar{bar(0, 100)}, contracts.MarketContext{EarningsDates: []time.Time{}})
	assert.Equal(t, contracts.FactorInactive, days[0].Flags.EarningsWindow)
}

func TestDetect_VolumeSpike(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	tests := []struct {
		name   string
		volume int64
		avg    *float64
		want   contracts.FactorState
	}{
		{"above ratio", 1600, contracts.Float(1000), contracts.FactorActive},
		{"exactly at ratio", 1500, contracts.Float(1000), contracts.FactorInactive},
		{"below ratio", 900, contracts.Float(1000), contracts.FactorInactive},
		{"average undefined", 5000, nil, contracts.FactorUnknown},
		{"average zero", 5000, contracts.Float(0), contracts.FactorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bar(0, 100)
			b.Volume = tt.volume
			b.VolumeMA20 = tt.avg

			days := d.Detect([]contracts.DerivedBar{b}, contracts.MarketContext{})
			assert.Equal(t, tt.want, days[0].Flags.VolumeSpike)
		})
	}
}

func TestDetect_BreakMA50IsACrossing(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	// day0: below MA, day1: crosses above, day2: stays above (no new break)
	bars := []contracts.DerivedBar{bar(0, 98), bar(1, 102), bar(2, 105)}
	for i := range bars {
		bars[i].MA50 = contracts.Float(100)
	}

	days := d.Detect(bars, contracts.MarketContext{})

	assert.Equal(t, contracts.FactorUnknown, days[0].Flags.BreakMA50, "no previous bar")
	assert.Equal(t, contracts.FactorActive, days[1].Flags.BreakMA50)
	assert.Equal(t, contracts.FactorInactive, days[2].Flags.BreakMA50, "above the line is not a break")
}

func TestDetect_BreakMA200(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	tests := []struct {
		name      string
		prevClose float64
		prevMA    *float64
		close     float64
		ma        *float64
		want      contracts.FactorState
	}{
		{"prev equal to MA then above", 100, contracts.Float(100), 101, contracts.Float(100), contracts.FactorActive},
		{"today equal to MA", 99, contracts.Float(100), 100, contracts.Float(100), contracts.FactorInactive},
		{"prev MA missing", 99, nil, 101, contracts.Float(100), contracts.FactorUnknown},
		{"today MA missing", 99, contracts.Float(100), 101, nil, contracts.FactorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := bar(0, tt.prevClose)
			prev.MA200 = tt.prevMA
			cur := bar(1, tt.close)
			cur.MA200 = tt.ma

			days := d.Detect([]contracts.DerivedBar{prev, cur}, contracts.MarketContext{})
			assert.Equal(t, tt.want, days[1].Flags.BreakMA200)
		})
	}
}

func TestDetect_RSIOver60(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	bars := []contracts.DerivedBar{bar(0, 100), bar(1, 100), bar(2, 100)}
	bars[0].RSI14 = contracts.Float(60)
	bars[1].RSI14 = contracts.Float(60.01)

	days := d.Detect(bars, contracts.MarketContext{})

	assert.Equal(t, contracts.FactorInactive, days[0].Flags.RSIOver60)
	assert.Equal(t, contracts.FactorActive, days[1].Flags.RSIOver60)
	assert.Equal(t, contracts.FactorUnknown, days[2].Flags.RSIOver60)
}

func TestDetect_NewsAndMacro(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	bars := []contracts.DerivedBar{bar(0, 100), bar(1, 100), bar(2, 100)}
	mctx := contracts.MarketContext{
		News: []contracts.NewsSentiment{
			{Date: day(0), Sentiment: contracts.SentimentPositive},
			{Date: day(1), Sentiment: contracts.SentimentNegative},
		},
		Macro: []contracts.MacroEvent{
			{Date: day(1), Name: "rate cut", Favorable: true},
			{Date: day(2), Name: "tariff", Favorable: false},
		},
	}

	days := d.Detect(bars, mctx)

	assert.Equal(t, contracts.FactorActive, days[0].Flags.NewsPositive)
	assert.Equal(t, contracts.FactorInactive, days[1].Flags.NewsPositive)
	assert.Equal(t, contracts.FactorInactive, days[2].Flags.NewsPositive)

	assert.Equal(t, contracts.FactorInactive, days[0].Flags.MacroTailwind)
	assert.Equal(t, contracts.FactorActive, days[1].Flags.MacroTailwind)
	assert.Equal(t, contracts.FactorInactive, days[2].Flags.MacroTailwind)
}

func TestDetect_ShortCovering(t *testing.T) {
	d := NewDetector(zerolog.Nop())

	tests := []struct {
		name     string
		interest *float64
		change   *float64
		want     contracts.FactorState
	}{
		{"high interest and strong day", contracts.Float(18), contracts.Float(2.5), contracts.FactorActive},
		{"interest at threshold", contracts.Float(15), contracts.Float(2.5), contracts.FactorInactive},
		{"weak day", contracts.Float(18), contracts.Float(2.0), contracts.FactorInactive},
		{"no change on first bar", contracts.Float(18), nil, contracts.FactorInactive},
		{"interest not supplied", nil, contracts.Float(5), contracts.FactorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bar(0, 100)
			b.ChangePct = tt.change

			days := d.Detect([]contracts.DerivedBar{b}, contracts.MarketContext{ShortInterestPct: tt.interest})
			assert.Equal(t, tt.want, days[0].Flags.ShortCovering)
		})
	}
}

func TestDetect_CustomThresholds(t *testing.T) {
	th := contracts.DefaultFactorThresholds()
	th.MarketUpPct = 0.5
	d := NewDetectorWithThresholds(th, zerolog.Nop())

	assert.Equal(t, 0.5, d.Thresholds().MarketUpPct)

	days := d.Detect([]contracts.DerivedBar{bar(0, 100)}, contracts.MarketContext{
		Benchmark: []contracts.ChangePoint{{Date: day(0), ChangePct: 0.8}},
	})
	assert.Equal(t, contracts.FactorActive, days[0].Flags.MarketUp)
}

func TestDetect_Empty(t *testing.T) {
	d := NewDetector(zerolog.Nop())
	assert.Empty(t, d.Detect(nil, contracts.MarketContext{}))
}
