package scoreconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/factorlab/internal/contracts"
)

// serverSections are fixed by the engine at startup and cannot vary per analysis
var serverSections = []string{"thresholds", "quality"}

// AnalysisConfig is the part of a document that applies to a single analysis
type AnalysisConfig struct {
	Score      contracts.ScoreConfig
	MinGainPct *float64 // nil when the document has no transactions section
}

// Load reads a YAML file and returns Config with raw bytes
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, data, nil
}

// Parse decodes YAML over the defaults and validates the result.
// Sections omitted from the document keep their default values;
// a weights list, when present, replaces the default table entirely.
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Scoring.Weights = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	if cfg.Scoring.Weights == nil {
		cfg.Scoring.Weights = Default().Scoring.Weights
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseAnalysis parses a document uploaded with one analysis.
// The scoring and transactions sections apply to that analysis; thresholds
// and quality are rejected.
func ParseAnalysis(data []byte) (*AnalysisConfig, error) {
	var sections map[string]yaml.Node
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, err
	}
	for _, name := range serverSections {
		if _, ok := sections[name]; ok {
			return nil, contracts.ValidationError{Field: name, Message: "is server-wide and cannot be set per analysis"}
		}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	out := &AnalysisConfig{Score: cfg.ScoreConfig()}
	if _, ok := sections["transactions"]; ok {
		minGain := cfg.Transactions.MinGainPct
		out.MinGainPct = &minGain
	}
	return out, nil
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct/slice 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
