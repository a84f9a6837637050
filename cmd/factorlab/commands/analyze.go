package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/csvimport"
	"github.com/wonny/factorlab/internal/engine"
	"github.com/wonny/factorlab/internal/external/naver"
	"github.com/wonny/factorlab/internal/feeds"
	"github.com/wonny/factorlab/internal/indicators"
	"github.com/wonny/factorlab/internal/scoreconfig"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "주가 시계열 팩터 분석 (DB 불필요)",
	Long: `CSV 파일 또는 네이버 차트에서 읽은 시계열을 분석합니다.

컨텍스트 피드:
- --benchmark: 지수 코드(KOSPI, KOSDAQ, KPI200) 또는 지수 CSV 파일
- --sector: 업종 대표 종목/ETF 코드 또는 CSV 파일
- --corp-code: DART 고유번호 (DART_API_KEY 필요)
- --earnings: 실적 발표일 목록 (쉼표 구분)
- --context: 뉴스/매크로 이벤트 JSON 파일
- --short-interest: 공매도 잔고 비율 (%)

주어지지 않은 피드의 팩터는 unknown으로 남습니다.

Example:
  go run ./cmd/factorlab analyze --file prices.csv
  go run ./cmd/factorlab analyze --file prices.csv --benchmark kospi.csv --earnings 2024-01-25,2024-04-25
  go run ./cmd/factorlab analyze --symbol 005930 --from 2024-01-01 --benchmark KOSPI --sector 091160 --json`,
	RunE: runAnalyze,
}

// analyzeOptions holds the analyze flags
type analyzeOptions struct {
	file          string
	symbol        string
	from          string
	to            string
	configPath    string
	minGain       float64
	minGainSet    bool
	benchmark     string
	sector        string
	corpCode      string
	earnings      []string
	contextPath   string
	shortInterest float64
	shortSet      bool
	jsonOutput    bool
}

var analyzeOpts analyzeOptions

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.StringVar(&analyzeOpts.file, "file", "", "OHLCV CSV 파일")
	f.StringVar(&analyzeOpts.symbol, "symbol", "", "종목 코드 (네이버 차트에서 조회)")
	f.StringVar(&analyzeOpts.from, "from", "", "조회 시작일 (--symbol, 기본: 1년 전)")
	f.StringVar(&analyzeOpts.to, "to", "", "조회 종료일 (--symbol, 기본: 오늘)")
	f.StringVar(&analyzeOpts.configPath, "config", "", "점수 가중치 YAML (기본: SCORING_CONFIG_PATH)")
	f.Float64Var(&analyzeOpts.minGain, "min-gain", 0, "급등일 최소 상승률 (%)")
	f.StringVar(&analyzeOpts.benchmark, "benchmark", "", "벤치마크 지수 코드 또는 CSV 파일")
	f.StringVar(&analyzeOpts.sector, "sector", "", "업종 대표 코드 또는 CSV 파일")
	f.StringVar(&analyzeOpts.corpCode, "corp-code", "", "DART 고유번호 (8자리)")
	f.StringSliceVar(&analyzeOpts.earnings, "earnings", nil, "실적 발표일 (YYYY-MM-DD, 쉼표 구분)")
	f.StringVar(&analyzeOpts.contextPath, "context", "", "뉴스/매크로 JSON 파일")
	f.Float64Var(&analyzeOpts.shortInterest, "short-interest", 0, "공매도 잔고 비율 (%)")
	f.BoolVar(&analyzeOpts.jsonOutput, "json", false, "JSON 출력")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	opts := analyzeOpts
	opts.minGainSet = cmd.Flags().Changed("min-gain")
	opts.shortSet = cmd.Flags().Changed("short-interest")

	if (opts.file == "") == (opts.symbol == "") {
		return fmt.Errorf("exactly one of --file or --symbol is required")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	scoring := a.scoring
	if opts.configPath != "" {
		if scoring, err = loadScoring(opts.configPath); err != nil {
			return err
		}
	}
	minGain := a.cfg.Engine.MinGainPct
	switch {
	case opts.minGainSet:
		minGain = opts.minGain
	case opts.configPath != "":
		minGain = scoring.Transactions.MinGainPct
	}
	if minGain < 0 {
		return fmt.Errorf("--min-gain must be >= 0")
	}

	bars, err := loadBars(ctx, a.naver, opts)
	if err != nil {
		return err
	}

	mctx, err := buildContext(ctx, a.provider, bars, opts)
	if err != nil {
		return err
	}

	a.scoring = scoring
	scoreCfg := scoring.ScoreConfig()
	result := a.newEngine().Run(engine.Input{
		Bars:       bars,
		Context:    mctx,
		Config:     &scoreCfg,
		MinGainPct: &minGain,
	})

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	title := opts.file
	if opts.symbol != "" {
		title = opts.symbol
	}
	printReport(out, title, scoring, result)
	return nil
}

// loadBars reads the series from --file or fetches it for --symbol
func loadBars(ctx context.Context, client *naver.Client, opts analyzeOptions) ([]contracts.PriceBar, error) {
	if opts.file != "" {
		return csvimport.ReadFile(opts.file)
	}

	to := time.Now()
	if opts.to != "" {
		t, err := csvimport.ParseDate(opts.to)
		if err != nil {
			return nil, fmt.Errorf("--to: %w", err)
		}
		to = t
	}
	from := to.AddDate(-1, 0, 0)
	if opts.from != "" {
		t, err := csvimport.ParseDate(opts.from)
		if err != nil {
			return nil, fmt.Errorf("--from: %w", err)
		}
		from = t
	}

	bars, err := client.FetchBars(ctx, opts.symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", opts.symbol, err)
	}
	if err := contracts.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", opts.symbol, err)
	}
	return bars, nil
}

// buildContext assembles the market context from local files, flags and the online feeds
func buildContext(ctx context.Context, provider *feeds.Provider, bars []contracts.PriceBar, opts analyzeOptions) (contracts.MarketContext, error) {
	var base contracts.MarketContext
	if opts.contextPath != "" {
		data, err := os.ReadFile(opts.contextPath)
		if err != nil {
			return base, err
		}
		if err := json.Unmarshal(data, &base); err != nil {
			return base, fmt.Errorf("%s: %w", opts.contextPath, err)
		}
	}

	from, to := feeds.RangeOf(bars)
	req := feeds.Request{
		From:     from,
		To:       to,
		CorpCode: opts.corpCode,
		News:     base.News,
		Macro:    base.Macro,
	}

	var localBenchmark, localSector []contracts.ChangePoint
	var err error
	if opts.benchmark != "" {
		if code := strings.ToUpper(opts.benchmark); naver.IsSupportedIndex(code) {
			req.Benchmark = code
		} else if localBenchmark, err = changesFromCSV(opts.benchmark); err != nil {
			return base, fmt.Errorf("--benchmark: %w", err)
		}
	}
	if opts.sector != "" {
		if isFile(opts.sector) {
			if localSector, err = changesFromCSV(opts.sector); err != nil {
				return base, fmt.Errorf("--sector: %w", err)
			}
		} else {
			req.SectorProxy = opts.sector
		}
	}

	mctx, err := provider.Build(ctx, req)
	if err != nil {
		// 실패한 피드는 unknown으로 남기고 계속
		fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
	}

	if localBenchmark != nil {
		mctx.Benchmark = localBenchmark
	} else if mctx.Benchmark == nil {
		mctx.Benchmark = base.Benchmark
	}
	if localSector != nil {
		mctx.Sector = localSector
	} else if mctx.Sector == nil {
		mctx.Sector = base.Sector
	}
	if mctx.EarningsDates == nil {
		mctx.EarningsDates = base.EarningsDates
	}
	if len(opts.earnings) > 0 {
		dates, err := parseDates(opts.earnings)
		if err != nil {
			return mctx, fmt.Errorf("--earnings: %w", err)
		}
		mctx.EarningsDates = append(mctx.EarningsDates, dates...)
	}

	switch {
	case opts.shortSet:
		v := opts.shortInterest
		mctx.ShortInterestPct = &v
	case base.ShortInterestPct != nil:
		mctx.ShortInterestPct = base.ShortInterestPct
	}
	return mctx, nil
}

// changesFromCSV derives a daily change series from the closes of an OHLCV file
func changesFromCSV(path string) ([]contracts.ChangePoint, error) {
	bars, err := csvimport.ReadFile(path)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	points := []contracts.ChangePoint{}
	for i, change := range indicators.PercentChanges(closes) {
		if math.IsNaN(change) {
			continue
		}
		points = append(points, contracts.ChangePoint{Date: bars[i].Date, ChangePct: change})
	}
	return points, nil
}

func parseDates(values []string) ([]time.Time, error) {
	dates := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, err := csvimport.ParseDate(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// printReport renders the engine result as text
func printReport(w io.Writer, title string, scoring *scoreconfig.Config, r *engine.Result) {
	PrintHeader(w, "Factor Analysis: "+title)
	PrintKeyValue(w, "Days", fmt.Sprintf("%d", len(r.Bars)), 14)
	if len(r.Bars) > 0 {
		PrintKeyValue(w, "Period", fmt.Sprintf("%s ~ %s",
			contracts.DateKey(r.Bars[0].Date), contracts.DateKey(r.Bars[len(r.Bars)-1].Date)), 14)
	}
	PrintKeyValue(w, "Config", fmt.Sprintf("%s v%s", scoring.Meta.Name, scoring.Meta.Version), 14)
	PrintKeyValue(w, "Threshold", fmt.Sprintf("%.2f", r.Config.Threshold), 14)
	PrintKeyValue(w, "Min gain", fmt.Sprintf("%.2f%%", r.MinGainPct), 14)
	PrintKeyValue(w, "Data quality", fmt.Sprintf("%.2f", r.Quality.QualityScore), 14)
	for _, issue := range r.Quality.Issues {
		PrintWarning(w, issue.String())
	}
	PrintSeparator(w)

	PrintSection(w, "Factor frequency")
	widths := []int{16, 6, 9, 10, 5}
	PrintTableHeader(w, []string{"FACTOR", "DAYS", "FREQ", "AVG RET", "CORR"}, widths)
	for _, id := range contracts.AllFactors {
		corr := r.Correlation[id]
		avg := "-"
		if corr.Occurrences > 0 {
			avg = fmt.Sprintf("%+.2f%%", corr.AvgReturn)
		}
		PrintTableRow(w, []string{
			string(id),
			fmt.Sprintf("%d", r.Summary.FactorCounts[id]),
			fmt.Sprintf("%.1f%%", r.Summary.FactorFrequency[id]),
			avg,
			fmt.Sprintf("%+d", corr.Correlation),
		}, widths)
	}
	PrintKeyValue(w, "Avg factors/day", fmt.Sprintf("%.2f", r.Summary.AverageFactorsPerDay), 16)
	if best, ok := r.BestFactor(); ok {
		worst, _ := r.WorstFactor()
		PrintKeyValue(w, "Best factor", fmt.Sprintf("%s (%+.2f%%)", best.Factor, best.AvgReturn), 16)
		PrintKeyValue(w, "Worst factor", fmt.Sprintf("%s (%+.2f%%)", worst.Factor, worst.AvgReturn), 16)
	}

	s := r.ScoreSummary
	PrintSection(w, "Scores")
	PrintKeyValue(w, "High-score days", fmt.Sprintf("%d (%.1f%%)", s.HighScoreDays, s.HighScoreRate), 16)
	PrintKeyValue(w, "Average score", fmt.Sprintf("%.3f", s.AverageScore), 16)
	PrintKeyValue(w, "Max score", fmt.Sprintf("%.3f", s.MaxScore), 16)
	PrintKeyValue(w, "Avg change (high)", fmt.Sprintf("%+.2f%%", s.AvgChangeHighScore), 16)
	PrintKeyValue(w, "Next-day win rate", fmt.Sprintf("%.1f%%", s.NextDayWinRate), 16)

	PrintSection(w, fmt.Sprintf("Transactions (>= %.1f%%)", r.MinGainPct))
	if len(r.Transactions) == 0 {
		PrintWarning(w, "no transactions")
		return
	}
	widths = []int{10, 8, 6, 5, 30}
	PrintTableHeader(w, []string{"DATE", "CHANGE", "SCORE", "N", "FACTORS"}, widths)
	for _, tx := range r.Transactions {
		score := "-"
		if tx.Score != nil {
			score = fmt.Sprintf("%.2f", *tx.Score)
			if tx.AboveThreshold != nil && *tx.AboveThreshold {
				score += "*"
			}
		}
		names := make([]string, len(tx.Factors))
		for i, f := range tx.Factors {
			names[i] = string(f)
		}
		PrintTableRow(w, []string{
			contracts.DateKey(tx.Date),
			fmt.Sprintf("%+.2f%%", tx.ChangePct),
			score,
			fmt.Sprintf("%d", tx.FactorCount),
			strings.Join(names, ","),
		}, widths)
	}
}
