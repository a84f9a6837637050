package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/database"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "PostgreSQL 연결 테스트",
	Long: `데이터베이스 연결을 테스트하고 풀 통계를 표시합니다.

이 명령어는:
- config에서 DATABASE_URL 로드
- 데이터베이스 연결 생성
- Health Check 실행
- --migrate 시 스키마 적용
- Connection Pool 통계 표시

Example:
  go run ./cmd/factorlab test-db
  go run ./cmd/factorlab test-db --migrate`,
	RunE: runTestDB,
}

var testDBMigrate bool

func init() {
	rootCmd.AddCommand(testDBCmd)
	testDBCmd.Flags().BoolVar(&testDBMigrate, "migrate", false, "스키마 적용")
}

func runTestDB(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	PrintHeader(out, "FactorLab Database Connection Test")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	PrintSuccess(out, fmt.Sprintf("Config loaded (ENV: %s)", cfg.Env))
	PrintKeyValue(out, "Database URL", maskPassword(cfg.Database.URL), 12)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	PrintSuccess(out, "Database connection established")

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	PrintKeyValue(out, "Healthy", fmt.Sprintf("%v", status.Healthy), 12)
	PrintKeyValue(out, "Response", status.ResponseTime.String(), 12)

	if testDBMigrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		PrintSuccess(out, "Schema applied")
	}

	PrintSection(out, "Connection Pool Statistics")
	PrintKeyValue(out, "Max", fmt.Sprintf("%d", status.Stats.MaxConns), 12)
	PrintKeyValue(out, "Total", fmt.Sprintf("%d", status.Stats.TotalConns), 12)
	PrintKeyValue(out, "Acquired", fmt.Sprintf("%d", status.Stats.AcquiredConns), 12)
	PrintKeyValue(out, "Idle", fmt.Sprintf("%d", status.Stats.IdleConns), 12)

	fmt.Fprintln(out)
	PrintSuccess(out, "All checks passed")
	return nil
}

// maskPassword hides the password of a database URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
