package naver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartBody = `[['날짜', '시가', '고가', '저가', '종가', '거래량', '외국인소진율'],
["20240110", 100, 101, 99, 100, 1000, 52.1],
["20240111", 100, 103, 99, 102, 1500, 52.2],
["20240112", 102, 104, 100, 102, 1200, 52.2],
["20240115", 102, 106, 101, 105.06, 2000, 52.3],
]`

func TestParseChartResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"trailing comma falls back to regex", chartBody, 4},
		{"strict json", `[["날짜","시가","고가","저가","종가","거래량"],["20240115",72300,73000,72000,72500,1000000]]`, 1},
		{"string numbers", `[["날짜","시가","고가","저가","종가","거래량"],["20240115","72300","73000","72000","72500","1000000"]]`, 1},
		{"insufficient columns", `[["날짜","시가"],["20240115",72300,73000]]`, 0},
		{"not an array", `{"invalid": "json"}`, 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseChartResponse(tt.body)
			require.Len(t, got, tt.want)
			for _, b := range got {
				assert.False(t, b.Date.IsZero())
				assert.Greater(t, b.Close, 0.0)
			}
		})
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  float64
	}{
		{"float64", 123.45, 123.45},
		{"int64", int64(123), 123},
		{"int", 123, 123},
		{"string", " 123.5 ", 123.5},
		{"invalid string", "abc", 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toFloat64(tt.input))
		})
	}
}

func TestFetchBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/siseJson.naver", r.URL.Path)
		assert.Equal(t, "005930", r.URL.Query().Get("symbol"))
		assert.Equal(t, "day", r.URL.Query().Get("timeframe"))
		_, _ = io.WriteString(w, chartBody)
	}))
	defer srv.Close()

	from := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	bars, err := newTestClient(srv).FetchBars(context.Background(), "005930", from, to)
	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.Equal(t, from, bars[0].Date)
	assert.Equal(t, int64(2000), bars[3].Volume)
	assert.Equal(t, 105.06, bars[3].Close)
}

func TestFetchSectorChanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chartBody)
	}))
	defer srv.Close()

	from := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	got, err := newTestClient(srv).FetchSectorChanges(context.Background(), "091160", from, to)
	require.NoError(t, err)

	// 01-10 is lookback only
	require.Len(t, got, 3)
	assert.Equal(t, from, got[0].Date)
	assert.InDelta(t, 2.0, got[0].ChangePct, 1e-9)
	assert.InDelta(t, 0.0, got[1].ChangePct, 1e-9)
	assert.InDelta(t, 3.0, got[2].ChangePct, 1e-6)
}
