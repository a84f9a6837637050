package dart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
)

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("dart: api key not configured")

const (
	// maxListPages list.json 페이지 상한
	maxListPages = 20

	pageAttempts = 3
	firstBackoff = 500 * time.Millisecond
	lastBackoff  = 5 * time.Second

	dartDate = "20060102"
)

// list.json status codes
const (
	statusOK     = "000"
	statusNoData = "013" // 조회된 데이터 없음
)

// ListResponse is the list.json response envelope
type ListResponse struct {
	Status      string       `json:"status"`
	Message     string       `json:"message"`
	PageNo      int          `json:"page_no"`
	TotalPage   int          `json:"total_page"`
	Disclosures []Disclosure `json:"list"`
}

// Disclosure is one entry of list.json
type Disclosure struct {
	CorpCode  string `json:"corp_code"`
	CorpName  string `json:"corp_name"`
	StockCode string `json:"stock_code"`
	ReportNm  string `json:"report_nm"` // 공시 제목
	RceptNo   string `json:"rcept_no"`  // 접수번호
	RceptDt   string `json:"rcept_dt"`  // 접수일자 (YYYYMMDD)
}

// ReceivedAt parses RceptDt
func (d Disclosure) ReceivedAt() (time.Time, error) {
	return time.Parse(dartDate, d.RceptDt)
}

// APIError is a non-success status inside a 200 list.json response
type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dart api status %s: %s", e.Status, e.Message)
}

type httpStatusError int

func (e httpStatusError) Error() string {
	return "dart http status " + strconv.Itoa(int(e))
}

// FetchDisclosures fetches every disclosure of corpCode within [from, to]
// ⭐ SSOT: DART 공시 목록 호출은 이 함수에서만
func (c *Client) FetchDisclosures(ctx context.Context, corpCode string, from, to time.Time) ([]Disclosure, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var all []Disclosure
	for page := 1; page <= maxListPages; page++ {
		resp, err := c.listPage(ctx, corpCode, from, to, page)
		if err != nil {
			return nil, fmt.Errorf("dart list %s page %d: %w", corpCode, page, err)
		}
		all = append(all, resp.Disclosures...)
		if page >= resp.TotalPage {
			break
		}
	}

	c.log.WithFields(map[string]interface{}{
		"corp_code": corpCode,
		"count":     len(all),
	}).Debug("DART disclosures fetched")
	return all, nil
}

// EarningsDates returns the distinct receipt dates of earnings disclosures, ascending
func (c *Client) EarningsDates(ctx context.Context, corpCode string, from, to time.Time) ([]time.Time, error) {
	disclosures, err := c.FetchDisclosures(ctx, corpCode, from, to)
	if err != nil {
		return nil, err
	}
	return earningsDates(disclosures), nil
}

// earningsDates keeps earnings disclosures with a valid date, one per calendar day
func earningsDates(disclosures []Disclosure) []time.Time {
	seen := make(map[string]bool)
	dates := make([]time.Time, 0)
	for _, d := range disclosures {
		if !IsEarningsDisclosure(d.ReportNm) {
			continue
		}
		at, err := d.ReceivedAt()
		if err != nil || seen[contracts.DateKey(at)] {
			continue
		}
		seen[contracts.DateKey(at)] = true
		dates = append(dates, at)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// listPage retries transient failures of one page with doubling backoff
func (c *Client) listPage(ctx context.Context, corpCode string, from, to time.Time, page int) (*ListResponse, error) {
	wait := firstBackoff
	for attempt := 1; ; attempt++ {
		resp, err := c.fetchPage(ctx, corpCode, from, to, page)
		if err == nil || attempt == pageAttempts || !isRetryableError(err) {
			return resp, err
		}

		c.log.WithError(err).WithFields(map[string]interface{}{
			"corp_code": corpCode,
			"attempt":   attempt,
			"wait":      wait,
		}).Debug("Retrying DART list page")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		wait = min(2*wait, lastBackoff)
	}
}

func (c *Client) fetchPage(ctx context.Context, corpCode string, from, to time.Time, page int) (*ListResponse, error) {
	q := url.Values{
		"crtfc_key":  {c.apiKey},
		"corp_code":  {corpCode},
		"bgn_de":     {from.Format(dartDate)},
		"end_de":     {to.Format(dartDate)},
		"page_no":    {strconv.Itoa(page)},
		"page_count": {strconv.Itoa(listPageSize)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/list.json?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpStatusError(resp.StatusCode)
	}

	var out ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode list.json: %w", err)
	}
	switch out.Status {
	case statusOK:
		return &out, nil
	case statusNoData:
		return &ListResponse{Status: out.Status}, nil
	default:
		return nil, &APIError{Status: out.Status, Message: out.Message}
	}
}

// isRetryableError: network failures, truncated bodies and 5xx are transient;
// API status errors and 4xx are not
func isRetryableError(err error) bool {
	var status httpStatusError
	if errors.As(err, &status) {
		return status >= 500
	}
	var apiErr *APIError
	if err == nil || errors.As(err, &apiErr) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH)
}
