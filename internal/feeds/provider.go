package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/pkg/redis"
)

// Feed source names (cache keys, metrics labels)
const (
	SourceBenchmark = "benchmark"
	SourceSector    = "sector"
	SourceEarnings  = "earnings"
)

// IndexSource fetches a benchmark index change series (naver.Client)
type IndexSource interface {
	FetchIndexChanges(ctx context.Context, code string, from, to time.Time) ([]contracts.ChangePoint, error)
}

// SectorSource fetches a sector change series from a proxy instrument (naver.Client)
type SectorSource interface {
	FetchSectorChanges(ctx context.Context, proxyCode string, from, to time.Time) ([]contracts.ChangePoint, error)
}

// EarningsSource fetches earnings disclosure dates (dart.Client)
type EarningsSource interface {
	EarningsDates(ctx context.Context, corpCode string, from, to time.Time) ([]time.Time, error)
}

// FetchRecorder records feed fetch outcomes (metrics.Recorder)
type FetchRecorder interface {
	RecordFetch(source string, err error)
}

type nopFetchRecorder struct{}

func (nopFetchRecorder) RecordFetch(string, error) {}

// Request describes the context wanted for one analysis.
// An empty code skips that feed, which leaves its factor unknown.
type Request struct {
	From time.Time
	To   time.Time

	Benchmark   string // KOSPI, KOSDAQ
	SectorProxy string // 업종 대표 ETF/종목 코드
	CorpCode    string // DART 고유번호

	// Caller supplied feeds (no upstream source)
	News             []contracts.NewsSentiment
	Macro            []contracts.MacroEvent
	ShortInterestPct *float64
}

// Provider assembles a MarketContext from the external feeds
// ⭐ SSOT: 외부 컨텍스트 조립은 여기서만
type Provider struct {
	index    IndexSource
	sector   SectorSource
	earnings EarningsSource
	cache    *redis.Cache
	metrics  FetchRecorder
	log      zerolog.Logger
}

// Option configures a Provider
type Option func(*Provider)

// WithIndexSource sets the benchmark source
func WithIndexSource(s IndexSource) Option {
	return func(p *Provider) { p.index = s }
}

// WithSectorSource sets the sector source
func WithSectorSource(s SectorSource) Option {
	return func(p *Provider) { p.sector = s }
}

// WithEarningsSource sets the earnings source
func WithEarningsSource(s EarningsSource) Option {
	return func(p *Provider) { p.earnings = s }
}

// WithCache caches fetched feeds
func WithCache(c *redis.Cache) Option {
	return func(p *Provider) { p.cache = c }
}

// WithRecorder records fetch outcomes
func WithRecorder(r FetchRecorder) Option {
	return func(p *Provider) { p.metrics = r }
}

// NewProvider creates a provider; sources not given are never fetched
func NewProvider(log zerolog.Logger, opts ...Option) *Provider {
	p := &Provider{
		cache:   redis.NewCache(redis.Disabled(), "factorlab"),
		metrics: nopFetchRecorder{},
		log:     log.With().Str("component", "feeds.provider").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build fetches the requested feeds concurrently.
// The returned context is always usable: a failed feed stays nil (its factor
// is unknown) and the failure is reported in the joined error.
func (p *Provider) Build(ctx context.Context, req Request) (contracts.MarketContext, error) {
	mctx := contracts.MarketContext{
		News:             req.News,
		Macro:            req.Macro,
		ShortInterestPct: req.ShortInterestPct,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(source string, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, fmt.Errorf("%s feed: %w", source, err))
	}

	if req.Benchmark != "" && p.index != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			points, err := p.changes(ctx, SourceBenchmark, req.Benchmark, req, func(ctx context.Context) ([]contracts.ChangePoint, error) {
				return p.index.FetchIndexChanges(ctx, req.Benchmark, req.From, req.To)
			})
			if err != nil {
				fail(SourceBenchmark, err)
				return
			}
			mctx.Benchmark = points
		}()
	}

	if req.SectorProxy != "" && p.sector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			points, err := p.changes(ctx, SourceSector, req.SectorProxy, req, func(ctx context.Context) ([]contracts.ChangePoint, error) {
				return p.sector.FetchSectorChanges(ctx, req.SectorProxy, req.From, req.To)
			})
			if err != nil {
				fail(SourceSector, err)
				return
			}
			mctx.Sector = points
		}()
	}

	if req.CorpCode != "" && p.earnings != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dates, err := p.earningsDates(ctx, req)
			if err != nil {
				fail(SourceEarnings, err)
				return
			}
			mctx.EarningsDates = dates
		}()
	}

	wg.Wait()

	err := errors.Join(errs...)
	event := p.log.Debug()
	if err != nil {
		event = p.log.Warn().Err(err)
	}
	event.
		Int("benchmark", len(mctx.Benchmark)).
		Int("sector", len(mctx.Sector)).
		Int("earnings", len(mctx.EarningsDates)).
		Msg("market context built")

	return mctx, err
}

// changes returns a change series from cache or the source
func (p *Provider) changes(ctx context.Context, source, code string, req Request, fetch func(context.Context) ([]contracts.ChangePoint, error)) ([]contracts.ChangePoint, error) {
	key := feedKey(source, code, req)

	var cached []contracts.ChangePoint
	if hit, err := p.cache.Get(ctx, key, &cached); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("feed cache read failed")
	} else if hit {
		return cached, nil
	}

	points, err := fetch(ctx)
	p.metrics.RecordFetch(source, err)
	if err != nil {
		return nil, err
	}
	if points == nil {
		points = []contracts.ChangePoint{}
	}

	if err := p.cache.Set(ctx, key, points, redis.TTLDaily); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("feed cache write failed")
	}
	return points, nil
}

func (p *Provider) earningsDates(ctx context.Context, req Request) ([]time.Time, error) {
	key := feedKey(SourceEarnings, req.CorpCode, req)

	var cached []time.Time
	if hit, err := p.cache.Get(ctx, key, &cached); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("feed cache read failed")
	} else if hit {
		return cached, nil
	}

	dates, err := p.earnings.EarningsDates(ctx, req.CorpCode, req.From, req.To)
	p.metrics.RecordFetch(SourceEarnings, err)
	if err != nil {
		return nil, err
	}
	if dates == nil {
		dates = []time.Time{}
	}

	if err := p.cache.Set(ctx, key, dates, redis.TTLDaily); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("feed cache write failed")
	}
	return dates, nil
}

func feedKey(source, code string, req Request) string {
	return redis.FeedKey(source, code, contracts.DateKey(req.From), contracts.DateKey(req.To))
}

// RangeOf returns the first and last bar dates of a series
func RangeOf(bars []contracts.PriceBar) (from, to time.Time) {
	for i, b := range bars {
		if i == 0 || b.Date.Before(from) {
			from = b.Date
		}
		if i == 0 || b.Date.After(to) {
			to = b.Date
		}
	}
	return from, to
}
