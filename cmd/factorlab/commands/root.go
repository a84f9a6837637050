package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "factorlab",
	Short: "FactorLab - 일별 팩터 점수 분석 엔진",
	Long: `FactorLab Unified CLI

주가 시계열(OHLCV)에 대해 10개 일별 팩터를 판정하고
가중 점수, 팩터 통계, 급등일(transaction) 분석을 수행합니다.

Usage:
  go run ./cmd/factorlab [command]

Examples:
  go run ./cmd/factorlab analyze --file prices.csv
  go run ./cmd/factorlab analyze --symbol 005930 --benchmark KOSPI
  go run ./cmd/factorlab api
  go run ./cmd/factorlab worker
  go run ./cmd/factorlab config hash configs/scoring.yaml
  go run ./cmd/factorlab test-db`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyGlobalFlags(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production), overrides ENV")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging, overrides LOG_LEVEL")
}
