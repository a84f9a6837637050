package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/factorlab/internal/contracts"
	"github.com/wonny/factorlab/internal/engine"
)

// Store persists analyses, their price series and results
type Store interface {
	Create(ctx context.Context, a *Analysis, bars []contracts.PriceBar) error
	Get(ctx context.Context, id int64) (*Analysis, error)
	LoadBars(ctx context.Context, id int64) ([]contracts.PriceBar, error)
	UpdateStatus(ctx context.Context, id int64, from, to contracts.AnalysisStatus, errMsg string) error
	SaveResult(ctx context.Context, id int64, r *engine.Result) error
	GetResult(ctx context.Context, id int64) (*engine.Result, error)
	ListByStatus(ctx context.Context, status contracts.AnalysisStatus, limit int) ([]*Analysis, error)
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*Analysis, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]*Analysis, error)
}

// Repository implements Store on PostgreSQL
// ⭐ SSOT: 분석 저장소는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new analysis repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const analysisColumns = `
	id, symbol, status, min_gain_pct, score_config, error, attempts,
	benchmark, sector_proxy, corp_code, short_interest, created_at, updated_at`

// Create inserts the analysis and its price rows in one transaction.
// a.ID, CreatedAt and UpdatedAt are filled in.
func (r *Repository) Create(ctx context.Context, a *Analysis, bars []contracts.PriceBar) error {
	cfgJSON, err := marshalNullable(a.ScoreConfig)
	if err != nil {
		return fmt.Errorf("marshal score config: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO analyses (symbol, status, min_gain_pct, score_config, benchmark, sector_proxy, corp_code, short_interest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		a.Symbol, string(a.Status), a.MinGainPct, cfgJSON,
		a.Benchmark, a.SectorProxy, a.CorpCode, a.ShortInterestPct,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(`
			INSERT INTO analysis_prices (analysis_id, trade_date, open_price, high_price, low_price, close_price, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, a.ID, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert prices: %w", err)
	}

	return tx.Commit(ctx)
}

// Get retrieves an analysis by id
func (r *Repository) Get(ctx context.Context, id int64) (*Analysis, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)

	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("analysis %d: %w", id, contracts.ErrNotFound)
	}
	return a, err
}

// LoadBars loads the price series of an analysis, ascending
func (r *Repository) LoadBars(ctx context.Context, id int64) ([]contracts.PriceBar, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume
		FROM analysis_prices
		WHERE analysis_id = $1
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var b contracts.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// UpdateStatus moves an analysis from one status to another.
// The update only applies while the row is still in from; a move to failed
// counts one attempt.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to contracts.AnalysisStatus, errMsg string) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE analyses SET
			status = $3,
			error = $4,
			attempts = attempts + CASE WHEN $3 = 'failed' THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), errMsg)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: analysis %d is not %s", contracts.ErrInvalidTransition, id, from)
	}
	return nil
}

// SaveResult replaces the score rows and the result document of an analysis
func (r *Repository) SaveResult(ctx context.Context, id int64, res *engine.Result) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM analysis_scores WHERE analysis_id = $1`, id)
	for _, s := range res.Scores {
		factors, err := json.Marshal(s.ActiveFactors)
		if err != nil {
			return err
		}
		breakdown, err := json.Marshal(s.Breakdown)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO analysis_scores (analysis_id, trade_date, factors, score, factor_count, above_threshold, breakdown)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, s.Date, factors, s.Score, s.FactorCount, s.AboveThreshold, breakdown)
	}
	batch.Queue(`
		INSERT INTO analysis_results (analysis_id, result)
		VALUES ($1, $2)
		ON CONFLICT (analysis_id) DO UPDATE SET
			result = EXCLUDED.result,
			created_at = NOW()
	`, id, doc)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return tx.Commit(ctx)
}

// GetResult retrieves the stored result document
func (r *Repository) GetResult(ctx context.Context, id int64) (*engine.Result, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT result FROM analysis_results WHERE analysis_id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("result of analysis %d: %w", id, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var res engine.Result
	if err := json.Unmarshal(doc, &res); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &res, nil
}

// ListByStatus lists analyses in a status, oldest first
func (r *Repository) ListByStatus(ctx context.Context, status contracts.AnalysisStatus, limit int) ([]*Analysis, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectAnalyses(rows)
}

// ListRetryable lists failed analyses with fewer than maxAttempts failures,
// least recently touched first
func (r *Repository) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*Analysis, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE status = 'failed' AND attempts < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	return collectAnalyses(rows)
}

// ListStale lists analyses left in processing since before
func (r *Repository) ListStale(ctx context.Context, before time.Time, limit int) ([]*Analysis, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE status = 'processing' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	return collectAnalyses(rows)
}

func collectAnalyses(rows pgx.Rows) ([]*Analysis, error) {
	defer rows.Close()

	var list []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var (
		a       Analysis
		status  string
		cfgJSON []byte
	)
	err := row.Scan(
		&a.ID, &a.Symbol, &status, &a.MinGainPct, &cfgJSON, &a.Error, &a.Attempts,
		&a.Benchmark, &a.SectorProxy, &a.CorpCode, &a.ShortInterestPct, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = contracts.AnalysisStatus(status)

	if len(cfgJSON) > 0 {
		var cfg contracts.ScoreConfig
		if err := json.Unmarshal(cfgJSON, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal score config: %w", err)
		}
		a.ScoreConfig = &cfg
	}
	return &a, nil
}

// marshalNullable returns nil for a nil config so the column stays NULL
func marshalNullable(cfg *contracts.ScoreConfig) ([]byte, error) {
	if cfg == nil {
		return nil, nil
	}
	return json.Marshal(cfg)
}
