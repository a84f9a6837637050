package factors

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/factorlab/internal/contracts"
)

// Detector evaluates the ten daily factors
// ⭐ SSOT: 팩터 판정 규칙은 여기서만
type Detector struct {
	thresholds contracts.FactorThresholds
	log        zerolog.Logger
}

// NewDetector 기본 임계값으로 감지기 생성
func NewDetector(log zerolog.Logger) *Detector {
	return NewDetectorWithThresholds(contracts.DefaultFactorThresholds(), log)
}

// NewDetectorWithThresholds 커스텀 임계값으로 감지기 생성
func NewDetectorWithThresholds(thresholds contracts.FactorThresholds, log zerolog.Logger) *Detector {
	return &Detector{
		thresholds: thresholds,
		log:        log.With().Str("component", "factors.detector").Logger(),
	}
}

// Thresholds returns the thresholds in use
func (d *Detector) Thresholds() contracts.FactorThresholds {
	return d.thresholds
}

// Detect evaluates every factor for every bar.
// bars must be sorted ascending (indicators.Derive does this).
func (d *Detector) Detect(bars []contracts.DerivedBar, mctx contracts.MarketContext) []contracts.DayFactors {
	feeds := newFeedIndex(mctx)

	days := make([]contracts.DayFactors, len(bars))
	activeTotal := 0
	for i := range bars {
		var prev *contracts.DerivedBar
		if i > 0 {
			prev = &bars[i-1]
		}

		flags := d.evaluate(bars[i], prev, feeds, mctx.ShortInterestPct)
		days[i] = contracts.DayFactors{Date: bars[i].Date, Flags: flags}
		activeTotal += flags.Count()
	}

	d.log.Debug().
		Int("days", len(days)).
		Int("active_total", activeTotal).
		Bool("benchmark", feeds.benchmark != nil).
		Bool("sector", feeds.sector != nil).
		Bool("earnings", feeds.earnings != nil).
		Bool("news", feeds.news != nil).
		Bool("macro", feeds.macro != nil).
		Bool("short_interest", mctx.ShortInterestPct != nil).
		Msg("factor detection completed")

	return days
}

// evaluate 하루치 팩터 판정
func (d *Detector) evaluate(bar contracts.DerivedBar, prev *contracts.DerivedBar, feeds *feedIndex, shortInterest *float64) contracts.FactorFlags {
	var flags contracts.FactorFlags
	key := contracts.DateKey(bar.Date)
	t := d.thresholds

	// Market
	if feeds.benchmark != nil {
		change, ok := feeds.benchmark[key]
		flags.MarketUp = contracts.StateOf(ok && change > t.MarketUpPct)
	}
	if feeds.sector != nil {
		change, ok := feeds.sector[key]
		flags.SectorUp = contracts.StateOf(ok && change > t.SectorUpPct)
	}
	if feeds.macro != nil {
		favorable, ok := feeds.macro[key]
		flags.MacroTailwind = contracts.StateOf(ok && favorable)
	}

	// Fundamental
	if feeds.earnings != nil {
		flags.EarningsWindow = contracts.StateOf(feeds.nearEarnings(bar.Date, t.EarningsWindowDays))
	}

	// Technical
	flags.VolumeSpike = volumeSpike(bar, t.VolumeSpikeRatio)
	flags.BreakMA50 = crossAbove(bar, prev, func(b *contracts.DerivedBar) *float64 { return b.MA50 })
	flags.BreakMA200 = crossAbove(bar, prev, func(b *contracts.DerivedBar) *float64 { return b.MA200 })
	if bar.RSI14 != nil {
		flags.RSIOver60 = contracts.StateOf(*bar.RSI14 > t.RSIOver)
	}

	// Sentiment
	if feeds.news != nil {
		sentiment, ok := feeds.news[key]
		flags.NewsPositive = contracts.StateOf(ok && sentiment == contracts.SentimentPositive)
	}
	if shortInterest != nil {
		covering := *shortInterest > t.ShortInterestPct &&
			bar.ChangePct != nil && *bar.ChangePct > t.ShortCoveringChange
		flags.ShortCovering = contracts.StateOf(covering)
	}

	return flags
}

// volumeSpike 거래량 > 20일 평균 × ratio
func volumeSpike(bar contracts.DerivedBar, ratio float64) contracts.FactorState {
	if bar.VolumeMA20 == nil || *bar.VolumeMA20 <= 0 {
		return contracts.FactorUnknown
	}
	return contracts.StateOf(float64(bar.Volume) > ratio*(*bar.VolumeMA20))
}

// crossAbove reports a crossing from at-or-below the line yesterday to strictly above it today
func crossAbove(bar contracts.DerivedBar, prev *contracts.DerivedBar, line func(*contracts.DerivedBar) *float64) contracts.FactorState {
	if prev == nil {
		return contracts.FactorUnknown
	}
	today, yesterday := line(&bar), line(prev)
	if today == nil || yesterday == nil {
		return contracts.FactorUnknown
	}
	return contracts.StateOf(prev.Close <= *yesterday && bar.Close > *today)
}

// feedIndex holds the context feeds keyed by calendar date.
// A nil map means the feed was not supplied.
type feedIndex struct {
	benchmark map[string]float64
	sector    map[string]float64
	news      map[string]string
	macro     map[string]bool
	earnings  []time.Time
}

func newFeedIndex(mctx contracts.MarketContext) *feedIndex {
	idx := &feedIndex{}

	if mctx.Benchmark != nil {
		idx.benchmark = indexChanges(mctx.Benchmark)
	}
	if mctx.Sector != nil {
		idx.sector = indexChanges(mctx.Sector)
	}
	if mctx.News != nil {
		idx.news = make(map[string]string, len(mctx.News))
		for _, n := range mctx.News {
			key := contracts.DateKey(n.Date)
			if _, exists := idx.news[key]; !exists {
				idx.news[key] = n.Sentiment
			}
		}
	}
	if mctx.Macro != nil {
		idx.macro = make(map[string]bool, len(mctx.Macro))
		for _, m := range mctx.Macro {
			key := contracts.DateKey(m.Date)
			if _, exists := idx.macro[key]; !exists {
				idx.macro[key] = m.Favorable
			}
		}
	}
	if mctx.EarningsDates != nil {
		idx.earnings = make([]time.Time, len(mctx.EarningsDates))
		for i, e := range mctx.EarningsDates {
			idx.earnings[i] = contracts.CalendarDay(e)
		}
	}

	return idx
}

// indexChanges keys a change series by date; the first entry of a date wins
func indexChanges(points []contracts.ChangePoint) map[string]float64 {
	m := make(map[string]float64, len(points))
	for _, p := range points {
		key := contracts.DateKey(p.Date)
		if _, exists := m[key]; !exists {
			m[key] = p.ChangePct
		}
	}
	return m
}

// nearEarnings reports whether date is within ±days calendar days of an earnings date
func (f *feedIndex) nearEarnings(date time.Time, days int) bool {
	day := contracts.CalendarDay(date)
	for _, e := range f.earnings {
		diff := int(day.Sub(e).Hours() / 24)
		if diff < 0 {
			diff = -diff
		}
		if diff <= days {
			return true
		}
	}
	return false
}
