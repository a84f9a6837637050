package scoring

import (
	"github.com/wonny/factorlab/internal/contracts"
)

// Default scoring parameters
const (
	DefaultThreshold  = 0.45
	DefaultMinFactors = 2
)

// DefaultWeights returns the default weight table in canonical factor order.
// Weights sum to 1.0; volume_spike carries the most weight.
func DefaultWeights() []contracts.FactorWeight {
	return []contracts.FactorWeight{
		{Factor: contracts.FactorMarketUp, Weight: 0.10},
		{Factor: contracts.FactorSectorUp, Weight: 0.05},
		{Factor: contracts.FactorEarningsWindow, Weight: 0.10},
		{Factor: contracts.FactorVolumeSpike, Weight: 0.20},
		{Factor: contracts.FactorBreakMA50, Weight: 0.15},
		{Factor: contracts.FactorBreakMA200, Weight: 0.10},
		{Factor: contracts.FactorRSIOver60, Weight: 0.10},
		{Factor: contracts.FactorNewsPositive, Weight: 0.10},
		{Factor: contracts.FactorShortCovering, Weight: 0.05},
		{Factor: contracts.FactorMacroTailwind, Weight: 0.05},
	}
}

// DefaultConfig returns the default scoring configuration
// ⭐ SSOT: 기본 가중치/임계값
func DefaultConfig() contracts.ScoreConfig {
	minFactors := DefaultMinFactors
	return contracts.ScoreConfig{
		Weights:            DefaultWeights(),
		Threshold:          DefaultThreshold,
		MinFactorsRequired: &minFactors,
	}
}

// WithThreshold returns a copy of cfg with a different threshold
func WithThreshold(cfg contracts.ScoreConfig, threshold float64) contracts.ScoreConfig {
	out := clone(cfg)
	out.Threshold = threshold
	return out
}

// WithMinFactors returns a copy of cfg with a different minimum factor count.
// A negative n removes the minimum.
func WithMinFactors(cfg contracts.ScoreConfig, n int) contracts.ScoreConfig {
	out := clone(cfg)
	if n < 0 {
		out.MinFactorsRequired = nil
		return out
	}
	out.MinFactorsRequired = &n
	return out
}

// WithWeights returns a copy of cfg with a different weight table
func WithWeights(cfg contracts.ScoreConfig, weights []contracts.FactorWeight) contracts.ScoreConfig {
	out := clone(cfg)
	out.Weights = append([]contracts.FactorWeight(nil), weights...)
	return out
}

// clone copies cfg so the caller's table and minimum are never shared
func clone(cfg contracts.ScoreConfig) contracts.ScoreConfig {
	out := contracts.ScoreConfig{
		Weights:   append([]contracts.FactorWeight(nil), cfg.Weights...),
		Threshold: cfg.Threshold,
	}
	if cfg.MinFactorsRequired != nil {
		n := *cfg.MinFactorsRequired
		out.MinFactorsRequired = &n
	}
	return out
}
