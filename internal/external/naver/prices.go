package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/indicators"
)

// sectorLookbackDays 첫 거래일 등락률 계산용 여유 기간
const sectorLookbackDays = 10

var chartRowRe = regexp.MustCompile(`\["(\d{8})",\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*(\d+)`)

// FetchBars fetches daily OHLCV bars of a stock or ETF from the Naver chart API
// ⭐ SSOT: Naver 일봉 조회는 이 함수에서만
func (c *Client) FetchBars(ctx context.Context, code string, from, to time.Time) ([]contracts.PriceBar, error) {
	params := url.Values{}
	params.Set("symbol", code)
	params.Set("requestType", "1")
	params.Set("startTime", from.Format("20060102"))
	params.Set("endTime", to.Format("20060102"))
	params.Set("timeframe", "day")

	fullURL := fmt.Sprintf("%s/siseJson.naver?%s", c.chartURL, params.Encode())

	body, err := c.httpClient.GetBody(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fetch chart: %w", err)
	}

	bars := parseChartResponse(string(body))

	c.logger.WithFields(map[string]interface{}{
		"code":  code,
		"count": len(bars),
	}).Debug("Fetched bars")
	return bars, nil
}

// FetchSectorChanges derives a daily change series for a sector from the closes of
// a proxy instrument (sector ETF or index tracker) within [from, to].
func (c *Client) FetchSectorChanges(ctx context.Context, proxyCode string, from, to time.Time) ([]contracts.ChangePoint, error) {
	from, to = contracts.CalendarDay(from), contracts.CalendarDay(to)

	bars, err := c.FetchBars(ctx, proxyCode, from.AddDate(0, 0, -sectorLookbackDays), to)
	if err != nil {
		return nil, err
	}
	bars = indicators.SortBars(bars)

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	changes := indicators.PercentChanges(closes)

	points := make([]contracts.ChangePoint, 0, len(bars))
	for i, b := range bars {
		if math.IsNaN(changes[i]) {
			continue
		}
		points = append(points, contracts.ChangePoint{Date: b.Date, ChangePct: changes[i]})
	}
	return filterChanges(points, from, to), nil
}

// parseChartResponse parses the siseJson body.
// The API returns a JS-style array (single quotes, trailing commas), so JSON
// decoding is tried first and the row regex is the fallback.
func parseChartResponse(body string) []contracts.PriceBar {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	var rows [][]interface{}
	if err := json.Unmarshal([]byte(body), &rows); err == nil {
		return parseChartRows(rows)
	}
	return parseChartRegex(body)
}

func parseChartRows(rows [][]interface{}) []contracts.PriceBar {
	var bars []contracts.PriceBar
	for i, row := range rows {
		if i == 0 || len(row) < 6 {
			continue // header
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		date, err := time.Parse("20060102", strings.TrimSpace(dateStr))
		if err != nil {
			continue
		}

		bars = append(bars, contracts.PriceBar{
			Date:   date,
			Open:   toFloat64(row[1]),
			High:   toFloat64(row[2]),
			Low:    toFloat64(row[3]),
			Close:  toFloat64(row[4]),
			Volume: int64(toFloat64(row[5])),
		})
	}
	return bars
}

func parseChartRegex(body string) []contracts.PriceBar {
	var bars []contracts.PriceBar
	for _, m := range chartRowRe.FindAllStringSubmatch(body, -1) {
		date, err := time.Parse("20060102", m[1])
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(m[2], 64)
		high, _ := strconv.ParseFloat(m[3], 64)
		low, _ := strconv.ParseFloat(m[4], 64)
		closePrice, _ := strconv.ParseFloat(m[5], 64)
		volume, _ := strconv.ParseInt(m[6], 10, 64)

		bars = append(bars, contracts.PriceBar{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}
	return bars
}

// toFloat64 converts JSON scalars to float64
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		n, _ := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return n
	default:
		return 0
	}
}
