package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/factorlab/internal/analysis"
	"github.com/wonny/factorlab/internal/api"
	"github.com/wonny/factorlab/internal/api/handlers"
	"github.com/wonny/factorlab/internal/realtime"
	"github.com/wonny/factorlab/pkg/database"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                             - Health check
  GET  /metrics                            - Prometheus metrics
  POST /api/analyses                       - CSV 업로드 → draft 분석 생성
  GET  /api/analyses/{id}                  - 분석 상태 조회
  POST /api/analyses/{id}/process          - 분석 실행
  GET  /api/analyses/{id}/result           - 분석 결과
  GET  /api/analyses/{id}/transactions     - 급등일 (min_gain 지정 가능)
  POST /api/score/preview                  - 저장 없이 점수 계산
  GET  /ws/analyses                        - 분석 상태 스트림 (websocket)

Example:
  go run ./cmd/factorlab api
  go run ./cmd/factorlab api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

// newAnalysisService wires the repository, engine, feeds, cache and metrics into a service
func newAnalysisService(a *app, db *database.DB, notifier analysis.Notifier) *analysis.Service {
	scoreCfg := a.scoring.ScoreConfig()
	opts := []analysis.ServiceOption{
		analysis.WithContextBuilder(a.provider),
		analysis.WithCache(a.redis),
		analysis.WithDefaults(&scoreCfg, a.cfg.Engine.MinGainPct),
	}
	if notifier != nil {
		opts = append(opts, analysis.WithNotifier(notifier))
	}
	if a.metrics != nil {
		opts = append(opts, analysis.WithTransitionRecorder(a.metrics))
	}
	return analysis.NewService(analysis.NewRepository(db.Pool), a.newEngine(), a.log.Zerolog(), opts...)
}

// connectDatabase opens the pool and applies the schema
func connectDatabase(ctx context.Context, a *app) (*database.DB, error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := database.New(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.log.Info("Connected to database")
	return db, nil
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// 1. Config, logger, redis, metrics, feeds
	a, err := newApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port":    a.cfg.Port,
		"env":     a.cfg.Env,
		"redis":   a.redis.Enabled(),
		"metrics": a.metrics != nil,
	}).Info("Initializing API server")

	// 2. Database
	db, err := connectDatabase(ctx, a)
	if err != nil {
		return err
	}
	defer db.Close()

	// 3. Realtime hub and service
	hub := realtime.NewHub(a.log.Zerolog())
	defer hub.Close()
	svc := newAnalysisService(a, db, hub)

	// 4. Router
	deps := api.Deps{
		Analysis: handlers.NewAnalysisHandler(svc, a.log),
		Preview:  handlers.NewPreviewHandler(a.engineRecorder(), a.log.Zerolog()),
		Events:   hub.ServeWS,
		Logger:   a.log,
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics.Handler()
		deps.Recorder = a.metrics
	}

	server := api.New(a.cfg, a.log, api.NewRouter(deps))

	// 5. Serve until SIGINT/SIGTERM, then drain
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.ListenAndServe(sigCtx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}
