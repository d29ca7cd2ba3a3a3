package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/internal/pipeline"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// ErrNotFound no matching run
var ErrNotFound = errors.New("scan run not found")

// RunSummary one row of history.scan_runs
type RunSummary struct {
	RunID         string                            `json:"run_id"`
	StartedAt     time.Time                         `json:"started_at"`
	FinishedAt    time.Time                         `json:"finished_at"`
	DurationMs    int64                             `json:"duration_ms"`
	Candidates    int                               `json:"candidates"`
	UsedFallback  bool                              `json:"used_fallback"`
	MaxScore      float64                           `json:"scorecard_max"`
	ScannerCounts map[contracts.DiscoverySource]int `json:"scanner_counts"`
	Warnings      []string                          `json:"warnings"`
}

// TradeEvent one row of history.trade_events
type TradeEvent struct {
	ID        int64                 `json:"id"`
	Kind      string                `json:"kind"` // buy, sell, exit
	Result    contracts.TradeResult `json:"result"`
	CreatedAt time.Time             `json:"created_at"`
}

// Repository handles scan history persistence
// ⭐ SSOT: 스캔 이력 저장/조회는 여기서만
type Repository struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewRepository creates a new history repository
func NewRepository(pool *pgxpool.Pool, log *logger.Logger) *Repository {
	return &Repository{pool: pool, logger: log.WithComponent("history")}
}

// =============================================================================
// Scan runs
// =============================================================================

// SaveRun stores the run and its scorecards in one transaction
func (r *Repository) SaveRun(ctx context.Context, run *pipeline.Run) error {
	counts, err := json.Marshal(run.ScannerCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal scanner counts: %w", err)
	}
	marketJSON, err := nullableJSON(run.Market)
	if err != nil {
		return fmt.Errorf("failed to marshal market context: %w", err)
	}
	gexJSON, err := nullableJSON(run.GEX)
	if err != nil {
		return fmt.Errorf("failed to marshal gex: %w", err)
	}
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO history.scan_runs (
			run_id, started_at, finished_at, duration_ms, candidates,
			used_fallback, max_score, scanner_counts, market, gex, warnings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO NOTHING`,
		run.ID, run.StartedAt, run.FinishedAt, run.Duration.Milliseconds(), len(run.Scorecards),
		run.UsedFallback, run.MaxScore, counts, marketJSON, gexJSON, warnings,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scan run: %w", err)
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO history.scorecards (
			run_id, rank, symbol, direction, source, composite, max_score, tier, earnings_risk, card
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, rank) DO NOTHING`

	for i, sc := range run.Scorecards {
		card, err := json.Marshal(sc)
		if err != nil {
			return fmt.Errorf("failed to marshal scorecard %s: %w", sc.Candidate.Symbol, err)
		}
		batch.Queue(query,
			run.ID, i+1, sc.Candidate.Symbol, sc.Candidate.Direction, sc.Candidate.Source,
			sc.Composite, sc.MaxScore, sc.Tier, sc.EarningsRisk, card,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range run.Scorecards {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert scorecard: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id":     run.ID,
		"scorecards": len(run.Scorecards),
	}).Info("Scan run saved")
	return nil
}

// ListRuns returns the most recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT run_id::text, started_at, finished_at, duration_ms, candidates,
		       used_fallback, max_score, scanner_counts, warnings
		FROM history.scan_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scan runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the newest run
func (r *Repository) LatestRun(ctx context.Context) (*RunSummary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT run_id::text, started_at, finished_at, duration_ms, candidates,
		       used_fallback, max_score, scanner_counts, warnings
		FROM history.scan_runs
		ORDER BY started_at DESC
		LIMIT 1`)
	s, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// Scorecards returns a run's scorecards in rank order
func (r *Repository) Scorecards(ctx context.Context, runID string) ([]contracts.Scorecard, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT card
		FROM history.scorecards
		WHERE run_id = $1
		ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scorecards: %w", err)
	}
	defer rows.Close()

	cards := []contracts.Scorecard{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan scorecard: %w", err)
		}
		var sc contracts.Scorecard
		if err := json.Unmarshal(raw, &sc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scorecard: %w", err)
		}
		cards = append(cards, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scorecards: %w", err)
	}
	return cards, nil
}

// SymbolHistory returns the symbol's scorecards across the latest runs, newest first
func (r *Repository) SymbolHistory(ctx context.Context, symbol string, limit int) ([]contracts.Scorecard, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT s.card
		FROM history.scorecards s
		JOIN history.scan_runs r ON r.run_id = s.run_id
		WHERE s.symbol = $1
		ORDER BY r.started_at DESC
		LIMIT $2`, contracts.NormalizeSymbol(symbol), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol history: %w", err)
	}
	defer rows.Close()

	cards := []contracts.Scorecard{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan scorecard: %w", err)
		}
		var sc contracts.Scorecard
		if err := json.Unmarshal(raw, &sc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scorecard: %w", err)
		}
		cards = append(cards, sc)
	}
	return cards, rows.Err()
}

// =============================================================================
// Trade events
// =============================================================================

// RecordTrade appends a manual trade or monitor exit result
func (r *Repository) RecordTrade(ctx context.Context, kind string, res *contracts.TradeResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal trade result: %w", err)
	}

	var contract *string
	if res.Contract != nil {
		s := res.Contract.String()
		contract = &s
	}
	var positionID *int
	if res.PositionID != 0 {
		positionID = &res.PositionID
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO history.trade_events (
			kind, order_id, contract, side, status, quantity, filled, fill_price, position_id, message, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		kind, res.OrderID, contract, res.Side, res.Status, res.Quantity, res.Filled,
		res.FillPrice, positionID, res.Message, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade event: %w", err)
	}
	return nil
}

// RecentTrades returns the latest trade events, newest first
func (r *Repository) RecentTrades(ctx context.Context, limit int) ([]TradeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, result, created_at
		FROM history.trade_events
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade events: %w", err)
	}
	defer rows.Close()

	events := []TradeEvent{}
	for rows.Next() {
		var e TradeEvent
		var raw []byte
		if err := rows.Scan(&e.ID, &e.Kind, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade event: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// NotifyMonitor records every executed exit of a monitor pass
func (r *Repository) NotifyMonitor(ctx context.Context, report *contracts.MonitorReport) {
	for _, check := range report.Trades {
		if check.Executed == nil {
			continue
		}
		if err := r.RecordTrade(ctx, "exit", check.Executed); err != nil {
			r.logger.WithFields(map[string]interface{}{
				"position_id": check.PositionID,
				"error":       err.Error(),
			}).Warn("Failed to record exit")
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func scanSummary(row pgx.Row) (*RunSummary, error) {
	var s RunSummary
	var counts []byte
	err := row.Scan(
		&s.RunID, &s.StartedAt, &s.FinishedAt, &s.DurationMs, &s.Candidates,
		&s.UsedFallback, &s.MaxScore, &counts, &s.Warnings,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &s.ScannerCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scanner counts: %w", err)
		}
	}
	return &s, nil
}

// nullableJSON marshals v, or returns nil for a nil pointer
func nullableJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
