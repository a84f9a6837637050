package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/factorlab/internal/scoreconfig"
)

// configCmd groups scoring config utilities
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "점수 가중치 설정 도구",
}

// configHashCmd prints the canonical hash of a scoring config
var configHashCmd = &cobra.Command{
	Use:   "hash [file]",
	Short: "설정 검증 + SHA-256 해시 출력",
	Long: `YAML 점수 설정을 검증하고 canonical JSON의 SHA-256 해시를 출력합니다.
파일을 생략하면 내장 기본값의 해시를 출력합니다.

Example:
  go run ./cmd/factorlab config hash configs/scoring.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigHash,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configHashCmd)
}

func runConfigHash(cmd *cobra.Command, args []string) error {
	cfg := scoreconfig.Default()
	source := "built-in defaults"
	if len(args) == 1 {
		loaded, _, err := scoreconfig.Load(args[0])
		if err != nil {
			return err
		}
		cfg, source = loaded, args[0]
	}

	hash, err := scoreconfig.Hash(cfg)
	if err != nil {
		return fmt.Errorf("hash config: %w", err)
	}

	out := cmd.OutOrStdout()
	PrintKeyValue(out, "Source", source, 8)
	PrintKeyValue(out, "Name", fmt.Sprintf("%s v%s", cfg.Meta.Name, cfg.Meta.Version), 8)
	PrintKeyValue(out, "Weights", fmt.Sprintf("%d (total %.2f)", len(cfg.Scoring.Weights), cfg.ScoreConfig().TotalWeight()), 8)
	PrintKeyValue(out, "SHA-256", hash, 8)

	for _, w := range scoreconfig.CheckWarnings(cfg) {
		PrintWarning(out, fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	return nil
}
