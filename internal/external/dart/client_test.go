package dart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/pkg/logger"
)

func TestIsEarningsDisclosure(t *testing.T) {
	tests := []struct {
		name       string
		reportName string
		want       bool
	}{
		{"사업보고서", "사업보고서 (2023.12)", true},
		{"분기보고서", "분기보고서 (2024.03)", true},
		{"반기보고서", "반기보고서 (2024.06)", true},
		{"잠정실적", "연결재무제표기준영업(잠정)실적(공정공시)", true},
		{"잠정실적 띄어쓰기", "영업(잠정) 실적(공정공시)", true},
		{"정정", "[기재정정]사업보고서 (2023.12)", true},
		{"손익구조", "매출액또는손익구조30%(대규모법인은15%)이상변동", true},
		{"유상증자", "주요사항보고서(유상증자결정)", false},
		{"감사보고서", "감사보고서제출", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEarningsDisclosure(tt.reportName); got != tt.want {
				t.Errorf("IsEarningsDisclosure(%q) = %v, want %v", tt.reportName, got, tt.want)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"connection reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"truncated body", fmt.Errorf("decode list.json: %w", io.ErrUnexpectedEOF), true},
		{"timeout", &net.DNSError{Err: "i/o timeout", IsTimeout: true}, true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"server error", httpStatusError(http.StatusServiceUnavailable), true},
		{"client error", httpStatusError(http.StatusNotFound), false},
		{"api error", &APIError{Status: "020", Message: "요청 제한을 초과하였습니다."}, false},
		{"cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFetchDisclosures_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(ListResponse{Status: "000", TotalPage: 1, Disclosures: []Disclosure{
			{ReportNm: "사업보고서 (2023.12)", RceptDt: "20240312"},
		}})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, logger.Nop())
	got, err := c.FetchDisclosures(context.Background(), "00126380", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func listServer(t *testing.T, pages map[int]ListResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/list.json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("crtfc_key"))
		assert.Equal(t, "00126380", r.URL.Query().Get("corp_code"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page_no"))
		_ = json.NewEncoder(w).Encode(pages[page])
	}))
}

func TestEarningsDates(t *testing.T) {
	srv := listServer(t, map[int]ListResponse{
		1: {Status: "000", PageNo: 1, TotalPage: 2, Disclosures: []Disclosure{
			{ReportNm: "분기보고서 (2024.03)", RceptDt: "20240515"},
			{ReportNm: "임원ㆍ주요주주특정증권등소유상황보고서", RceptDt: "20240510"},
			{ReportNm: "연결재무제표기준영업(잠정)실적(공정공시)", RceptDt: "20240405"},
		}},
		2: {Status: "000", PageNo: 2, TotalPage: 2, Disclosures: []Disclosure{
			{ReportNm: "[기재정정]분기보고서 (2024.03)", RceptDt: "20240515"},
			{ReportNm: "사업보고서 (2023.12)", RceptDt: "20240312"},
			{ReportNm: "사업보고서 (2023.12)", RceptDt: "invalid"},
		}},
	})
	defer srv.Close()

	c := NewClient("test-key", srv.URL, logger.Nop())
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	dates, err := c.EarningsDates(context.Background(), "00126380", from, to)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
	}, dates)
}

func TestEarningsDates_NoData(t *testing.T) {
	srv := listServer(t, map[int]ListResponse{
		1: {Status: "013", Message: "조회된 데이타가 없습니다."},
	})
	defer srv.Close()

	c := NewClient("test-key", srv.URL, logger.Nop())
	dates, err := c.EarningsDates(context.Background(), "00126380", time.Now(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, dates)
	assert.Empty(t, dates)
}

func TestFetchDisclosures_APIError(t *testing.T) {
	srv := listServer(t, map[int]ListResponse{
		1: {Status: "020", Message: "요청 제한을 초과하였습니다."},
	})
	defer srv.Close()

	c := NewClient("test-key", srv.URL, logger.Nop())
	_, err := c.FetchDisclosures(context.Background(), "00126380", time.Now(), time.Now())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "020", apiErr.Status)
}

func TestFetchDisclosures_NotConfigured(t *testing.T) {
	c := NewClient("", "", logger.Nop())
	assert.False(t, c.Configured())

	_, err := c.FetchDisclosures(context.Background(), "00126380", time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
