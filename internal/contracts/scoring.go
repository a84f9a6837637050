package contracts

import (
	"fmt"
	"math"
	"time"
)

// FactorWeight is one entry of the scoring weight table
type FactorWeight struct {
	Factor FactorID `json:"factor" yaml:"factor"`
	Weight float64  `json:"weight" yaml:"weight"`
}

// ScoreConfig configures the daily scorer.
// Weights is an ordered table; factors missing from it never contribute.
// ⭐ SSOT: 점수 설정 구조
type ScoreConfig struct {
	Weights            []FactorWeight `json:"weights"`
	Threshold          float64        `json:"threshold"`
	MinFactorsRequired *int           `json:"min_factors_required,omitempty"`
}

// ValidationError describes an invalid configuration field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the weight table and the minimum factor gate
func (c ScoreConfig) Validate() error {
	seen := make(map[FactorID]bool, len(c.Weights))
	for i, w := range c.Weights {
		field := fmt.Sprintf("weights[%d]", i)
		if !w.Factor.Valid() {
			return ValidationError{field, fmt.Sprintf("unknown factor %q", w.Factor)}
		}
		if seen[w.Factor] {
			return ValidationError{field, fmt.Sprintf("duplicate factor %q", w.Factor)}
		}
		if w.Weight < 0 || math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
			return ValidationError{field, "weight must be a finite number >= 0"}
		}
		seen[w.Factor] = true
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return ValidationError{"threshold", "must be a finite number"}
	}
	if c.MinFactorsRequired != nil && *c.MinFactorsRequired < 0 {
		return ValidationError{"min_factors_required", "must be >= 0"}
	}
	return nil
}

// Weight returns the weight of a factor and whether it is in the table
func (c ScoreConfig) Weight(id FactorID) (float64, bool) {
	for _, w := range c.Weights {
		if w.Factor == id {
			return w.Weight, true
		}
	}
	return 0, false
}

// TotalWeight returns the sum of all weights
func (c ScoreConfig) TotalWeight() float64 {
	total := 0.0
	for _, w := range c.Weights {
		total += w.Weight
	}
	return total
}

// FactorContribution is one row of a score breakdown
type FactorContribution struct {
	Factor       FactorID `json:"factor"`
	Weight       float64  `json:"weight"`
	Active       bool     `json:"active"`
	Contribution float64  `json:"contribution"`
}

// DailyScoreResult is the weighted score of one day
type DailyScoreResult struct {
	Date           time.Time            `json:"date"`
	Score          float64              `json:"score"`
	ActiveFactors  []FactorID           `json:"active_factors"`
	FactorCount    int                  `json:"factor_count"`
	AboveThreshold bool                 `json:"above_threshold"`
	Breakdown      []FactorContribution `json:"breakdown"`
}

// ContributionSum returns the sum of breakdown contributions
func (r DailyScoreResult) ContributionSum() float64 {
	sum := 0.0
	for _, c := range r.Breakdown {
		sum += c.Contribution
	}
	return sum
}
