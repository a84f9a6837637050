package scoreconfig

import (
	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/quality"
	"github.com/wonny/factorlab/internal/scoring"
	"github.com/wonny/factorlab/internal/transactions"
)

// Config는 팩터 점수화 전체 설정 (YAML)
type Config struct {
	Meta         Meta                       `yaml:"meta" json:"meta"`
	Scoring      Scoring                    `yaml:"scoring" json:"scoring"`
	Thresholds   contracts.FactorThresholds `yaml:"thresholds" json:"thresholds"`
	Transactions Transactions               `yaml:"transactions" json:"transactions"`
	Quality      quality.Config             `yaml:"quality" json:"quality"`
}

// Meta 메타 정보
type Meta struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// Scoring 가중치 테이블과 임계값
type Scoring struct {
	Threshold          float64                  `yaml:"threshold" json:"threshold"`
	MinFactorsRequired *int                     `yaml:"min_factors_required" json:"min_factors_required"`
	Weights            []contracts.FactorWeight `yaml:"weights" json:"weights"`
}

// Transactions 거래일 검출 설정
type Transactions struct {
	MinGainPct float64 `yaml:"min_gain_pct" json:"min_gain_pct"`
}

// Default returns the built-in configuration
func Default() *Config {
	sc := scoring.DefaultConfig()
	return &Config{
		Meta: Meta{Name: "default", Version: "1"},
		Scoring: Scoring{
			Threshold:          sc.Threshold,
			MinFactorsRequired: sc.MinFactorsRequired,
			Weights:            sc.Weights,
		},
		Thresholds:   contracts.DefaultFactorThresholds(),
		Transactions: Transactions{MinGainPct: transactions.DefaultMinGainPct},
		Quality:      quality.DefaultConfig(),
	}
}

// ScoreConfig converts the scoring section into the engine's configuration
func (c *Config) ScoreConfig() contracts.ScoreConfig {
	out := contracts.ScoreConfig{
		Weights:   append([]contracts.FactorWeight(nil), c.Scoring.Weights...),
		Threshold: c.Scoring.Threshold,
	}
	if c.Scoring.MinFactorsRequired != nil {
		n := *c.Scoring.MinFactorsRequired
		out.MinFactorsRequired = &n
	}
	return out
}
