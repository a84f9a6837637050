package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/indicators"
)

// ErrInvalidCSV marks input that is not a readable OHLCV table
var ErrInvalidCSV = errors.New("invalid csv")

// Accepted date layouts, tried in order
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"20060102",
	"2006.01.02",
}

// RowError describes an unparsable cell
type RowError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d, column %s: invalid value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// columns holds header positions (-1 = absent)
type columns struct {
	date, open, high, low, close, volume int
}

// ReadFile parses an OHLCV CSV file
func ReadFile(path string) ([]contracts.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses OHLCV CSV rows into bars sorted ascending by date.
// The header row is required; Close falls back to Adj Close.
// ⭐ SSOT: CSV → PriceBar 변환은 여기서만
func Read(r io.Reader) ([]contracts.PriceBar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, contracts.ErrEmptySeries
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidCSV, err)
	}

	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var bars []contracts.PriceBar
	seen := make(map[string]int)
	line := 1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: read line %d: %v", ErrInvalidCSV, line, err)
		}
		if blank(record) {
			continue
		}

		bar, err := parseRow(record, cols, line)
		if err != nil {
			return nil, err
		}

		key := contracts.DateKey(bar.Date)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s (lines %d and %d)", contracts.ErrDuplicateDate, key, prev, line)
		}
		seen[key] = line
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, contracts.ErrEmptySeries
	}

	return indicators.SortBars(bars), nil
}

// mapHeader locates the required columns (case-insensitive)
func mapHeader(header []string) (columns, error) {
	cols := columns{-1, -1, -1, -1, -1, -1}
	adjClose := -1

	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch name {
		case "date", "날짜", "일자":
			cols.date = i
		case "open", "시가":
			cols.open = i
		case "high", "고가":
			cols.high = i
		case "low", "저가":
			cols.low = i
		case "close", "종가":
			cols.close = i
		case "adj close", "adj_close", "adjclose":
			adjClose = i
		case "volume", "거래량":
			cols.volume = i
		}
	}

	if cols.close < 0 {
		cols.close = adjClose
	}

	missing := []string{}
	if cols.date < 0 {
		missing = append(missing, "Date")
	}
	if cols.open < 0 {
		missing = append(missing, "Open")
	}
	if cols.high < 0 {
		missing = append(missing, "High")
	}
	if cols.low < 0 {
		missing = append(missing, "Low")
	}
	if cols.close < 0 {
		missing = append(missing, "Close")
	}
	if cols.volume < 0 {
		missing = append(missing, "Volume")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: missing columns: %s", ErrInvalidCSV, strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRow(record []string, cols columns, line int) (contracts.PriceBar, error) {
	var bar contracts.PriceBar

	cell := func(i int) string {
		if i < len(record) {
			return record[i]
		}
		return ""
	}

	date, err := ParseDate(cell(cols.date))
	if err != nil {
		return bar, &RowError{Line: line, Column: "Date", Value: cell(cols.date), Err: err}
	}
	bar.Date = date

	prices := []struct {
		name string
		idx  int
		dst  *float64
	}{
		{"Open", cols.open, &bar.Open},
		{"High", cols.high, &bar.High},
		{"Low", cols.low, &bar.Low},
		{"Close", cols.close, &bar.Close},
	}
	for _, p := range prices {
		v, err := ParseNumber(cell(p.idx))
		if err != nil {
			return bar, &RowError{Line: line, Column: p.name, Value: cell(p.idx), Err: err}
		}
		*p.dst = v
	}

	vol, err := ParseNumber(cell(cols.volume))
	if err != nil {
		return bar, &RowError{Line: line, Column: "Volume", Value: cell(cols.volume), Err: err}
	}
	if vol < 0 {
		return bar, &RowError{Line: line, Column: "Volume", Value: cell(cols.volume), Err: errors.New("negative volume")}
	}
	// 2^63 이상은 int64 변환 시 overflow
	if vol >= math.MaxInt64 {
		return bar, &RowError{Line: line, Column: "Volume", Value: cell(cols.volume), Err: errors.New("volume out of range")}
	}
	bar.Volume = int64(vol)

	return bar, nil
}

// ParseDate parses a calendar date in any accepted layout (UTC midnight)
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseNumber parses a number after stripping currency symbols, thousands separators and quotes
func ParseNumber(s string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", "\"", "", "₩", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
