package feeds

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/internal/contracts"
)

var (
	from = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

type fakeIndex struct {
	points []contracts.ChangePoint
	err    error
	code   string
}

func (f *fakeIndex) FetchIndexChanges(_ context.Context, code string, _, _ time.Time) ([]contracts.ChangePoint, error) {
	f.code = code
	return f.points, f.err
}

type fakeSector struct {
	points []contracts.ChangePoint
	err    error
}

func (f *fakeSector) FetchSectorChanges(context.Context, string, time.Time, time.Time) ([]contracts.ChangePoint, error) {
	return f.points, f.err
}

type fakeEarnings struct {
	dates []time.Time
	err   error
}

func (f *fakeEarnings) EarningsDates(context.Context, string, time.Time, time.Time) ([]time.Time, error) {
	return f.dates, f.err
}

type countingRecorder struct {
	mu     sync.Mutex
	ok     map[string]int
	failed map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ok: map[string]int{}, failed: map[string]int{}}
}

func (r *countingRecorder) RecordFetch(source string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed[source]++
		return
	}
	r.ok[source]++
}

func TestBuild_AllFeeds(t *testing.T) {
	index := &fakeIndex{points: []contracts.ChangePoint{{Date: from, ChangePct: 1.2}}}
	rec := newCountingRecorder()

	p := NewProvider(zerolog.Nop(),
		WithIndexSource(index),
		WithSectorSource(&fakeSector{points: []contracts.ChangePoint{{Date: from, ChangePct: 0.4}}}),
		WithEarningsSource(&fakeEarnings{dates: []time.Time{from}}),
		WithRecorder(rec),
	)

	interest := 18.0
	mctx, err := p.Build(context.Background(), Request{
		From:             from,
		To:               to,
		Benchmark:        "KOSDAQ",
		SectorProxy:      "091160",
		CorpCode:         "00126380",
		News:             []contracts.NewsSentiment{{Date: from, Sentiment: contracts.SentimentPositive}},
		ShortInterestPct: &interest,
	})
	require.NoError(t, err)

	assert.Equal(t, "KOSDAQ", index.code)
	assert.Len(t, mctx.Benchmark, 1)
	assert.Len(t, mctx.Sector, 1)
	assert.Equal(t, []time.Time{from}, mctx.EarningsDates)
	assert.Len(t, mctx.News, 1)
	assert.Nil(t, mctx.Macro)
	require.NotNil(t, mctx.ShortInterestPct)
	assert.Equal(t, 18.0, *mctx.ShortInterestPct)

	assert.Equal(t, 1, rec.ok[SourceBenchmark])
	assert.Equal(t, 1, rec.ok[SourceSector])
	assert.Equal(t, 1, rec.ok[SourceEarnings])
}

func TestBuild_SkippedFeedsStayNil(t *testing.T) {
	p := NewProvider(zerolog.Nop(),
		WithIndexSource(&fakeIndex{}),
		WithEarningsSource(&fakeEarnings{}),
	)

	// 코드 없음 → 조회 생략, 소스 없음 → 조회 생략
	mctx, err := p.Build(context.Background(), Request{From: from, To: to, SectorProxy: "091160"})
	require.NoError(t, err)

	assert.Nil(t, mctx.Benchmark)
	assert.Nil(t, mctx.Sector)
	assert.Nil(t, mctx.EarningsDates)
}

func TestBuild_EmptyResultIsSuppliedFeed(t *testing.T) {
	p := NewProvider(zerolog.Nop(),
		WithIndexSource(&fakeIndex{}),
		WithEarningsSource(&fakeEarnings{}),
	)

	mctx, err := p.Build(context.Background(), Request{From: from, To: to, Benchmark: "KOSPI", CorpCode: "00126380"})
	require.NoError(t, err)

	// 조회는 성공했지만 데이터가 없으면 빈 피드 (팩터는 inactive)
	assert.NotNil(t, mctx.Benchmark)
	assert.Empty(t, mctx.Benchmark)
	assert.NotNil(t, mctx.EarningsDates)
}

func TestBuild_PartialFailure(t *testing.T) {
	boom := errors.New("upstream down")
	rec := newCountingRecorder()

	p := NewProvider(zerolog.Nop(),
		WithIndexSource(&fakeIndex{err: boom}),
		WithSectorSource(&fakeSector{points: []contracts.ChangePoint{{Date: from, ChangePct: 0.4}}}),
		WithRecorder(rec),
	)

	mctx, err := p.Build(context.Background(), Request{From: from, To: to, Benchmark: "KOSPI", SectorProxy: "091160"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "benchmark feed")

	assert.Nil(t, mctx.Benchmark)
	assert.Len(t, mctx.Sector, 1)
	assert.Equal(t, 1, rec.failed[SourceBenchmark])
	assert.Equal(t, 1, rec.ok[SourceSector])
}

func TestRangeOf(t *testing.T) {
	bars := []contracts.PriceBar{
		{Date: to},
		{Date: from},
		{Date: from.AddDate(0, 0, 3)},
	}

	gotFrom, gotTo := RangeOf(bars)
	assert.Equal(t, from, gotFrom)
	assert.Equal(t, to, gotTo)

	zeroFrom, zeroTo := RangeOf(nil)
	assert.True(t, zeroFrom.IsZero())
	assert.True(t, zeroTo.IsZero())
}
