package naver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/factorlab/internal/contracts"
)

// Supported benchmark index codes of sise_index_day
const (
	IndexKOSPI  = "KOSPI"
	IndexKOSDAQ = "KOSDAQ"
	IndexKPI200 = "KPI200"
)

var dateCellRe = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}$`)

// IsSupportedIndex reports whether code can be fetched by FetchIndexChanges
func IsSupportedIndex(code string) bool {
	switch code {
	case IndexKOSPI, IndexKOSDAQ, IndexKPI200:
		return true
	}
	return false
}

// FetchIndexChanges fetches the daily percentage change of a benchmark index
// within [from, to], sorted ascending.
// ⭐ SSOT: 지수 일별 등락률 조회는 이 함수에서만
func (c *Client) FetchIndexChanges(ctx context.Context, code string, from, to time.Time) ([]contracts.ChangePoint, error) {
	if !IsSupportedIndex(code) {
		return nil, fmt.Errorf("unsupported index code: %s", code)
	}

	from, to = contracts.CalendarDay(from), contracts.CalendarDay(to)
	var all []contracts.ChangePoint

	for page := 1; page <= c.maxPages; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		params := url.Values{}
		params.Set("code", code)
		params.Set("page", strconv.Itoa(page))

		doc, err := c.fetchDocument(ctx, "/sise/sise_index_day.naver", params)
		if err != nil {
			return nil, err
		}

		points, oldest, hasMore := parseIndexPage(doc)
		all = append(all, points...)

		// 기준일보다 이전 데이터까지 내려왔으면 종료
		if len(points) == 0 || oldest.Before(from) || !hasMore {
			break
		}
	}

	result := filterChanges(all, from, to)

	c.logger.WithFields(map[string]interface{}{
		"index": code,
		"count": len(result),
	}).Debug("Fetched index changes")
	return result, nil
}

// parseIndexPage parses one sise_index_day page.
// 컬럼: 날짜 | 체결가 | 전일비 | 등락률 | 거래량 | 거래대금
func parseIndexPage(doc *goquery.Document) ([]contracts.ChangePoint, time.Time, bool) {
	var points []contracts.ChangePoint
	var oldest time.Time

	doc.Find("table.type_1 tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		date, ok := parseDateCell(cells.Eq(0).Text())
		if !ok {
			return
		}
		change, err := parsePercent(cells.Eq(3).Text())
		if err != nil {
			return
		}

		points = append(points, contracts.ChangePoint{Date: date, ChangePct: change})
		if oldest.IsZero() || date.Before(oldest) {
			oldest = date
		}
	})

	hasMore := doc.Find(".pgRR").Length() > 0
	return points, oldest, hasMore
}

// parseDateCell parses "2024.01.15"
func parseDateCell(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if !dateCellRe.MatchString(text) {
		return time.Time{}, false
	}
	t, err := time.Parse("2006.01.02", text)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parsePercent parses "+0.52%", "-1.20 %", "0.00%"
func parsePercent(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, fmt.Errorf("empty percent")
	}
	return strconv.ParseFloat(s, 64)
}

// filterChanges keeps points within [from, to], one per date, sorted ascending
func filterChanges(points []contracts.ChangePoint, from, to time.Time) []contracts.ChangePoint {
	seen := make(map[string]bool, len(points))
	result := make([]contracts.ChangePoint, 0, len(points))

	for _, p := range points {
		day := contracts.CalendarDay(p.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		key := contracts.DateKey(day)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, contracts.ChangePoint{Date: day, ChangePct: p.ChangePct})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result
}
