package contracts

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestValidateSeries(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		bars    []PriceBar
		wantErr error
	}{
		{"empty", nil, ErrEmptySeries},
		{"single", []PriceBar{{Date: day}}, nil},
		{"distinct days", []PriceBar{{Date: day}, {Date: day.AddDate(0, 0, 1)}}, nil},
		{"same day different time", []PriceBar{{Date: day}, {Date: day.Add(9 * time.Hour)}}, ErrDuplicateDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSeries(tt.bars)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSeries() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSeries_BadValues(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		bar  PriceBar
	}{
		{"nan close", PriceBar{Date: day, Close: math.NaN()}},
		{"infinite high", PriceBar{Date: day, High: math.Inf(1)}},
		{"negative volume", PriceBar{Date: day, Close: 1, Volume: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok := PriceBar{Date: day.AddDate(0, 0, -1), Open: 1, High: 1, Low: 1, Close: 1}
			err := ValidateSeries([]PriceBar{ok, tt.bar})

			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != "bars[1]" {
				t.Errorf("field = %s, want bars[1]", ve.Field)
			}
		})
	}
}

func TestFactorThresholds_Validate(t *testing.T) {
	if err := DefaultFactorThresholds().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*FactorThresholds)
		field  string
	}{
		{"zero volume ratio", func(th *FactorThresholds) { th.VolumeSpikeRatio = 0 }, "volume_spike_ratio"},
		{"rsi above 100", func(th *FactorThresholds) { th.RSIOver = 101 }, "rsi_over"},
		{"negative window", func(th *FactorThresholds) { th.EarningsWindowDays = -1 }, "earnings_window_days"},
		{"nan market", func(th *FactorThresholds) { th.MarketUpPct = math.NaN() }, "market_up_pct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultFactorThresholds()
			tt.modify(&th)

			var ve ValidationError
			if !errors.As(th.Validate(), &ve) {
				t.Fatal("expected ValidationError")
			}
			if ve.Field != tt.field {
				t.Errorf("field = %s, want %s", ve.Field, tt.field)
			}
		})
	}
}

func TestCalendarDay(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	in := time.Date(2024, 3, 5, 23, 30, 0, 0, kst)

	got := CalendarDay(in)
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("CalendarDay() = %v, want %v", got, want)
	}
	if DateKey(in) != "2024-03-05" {
		t.Errorf("DateKey() = %s", DateKey(in))
	}
}
