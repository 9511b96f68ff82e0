// Package persistence stores sweep results in SQLite.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/freight-market/internal/agents"
	"github.com/talgya/freight-market/internal/batch"
	"github.com/talgya/freight-market/internal/engine"
)

// ErrNoSweep is returned when a sweep lookup finds nothing.
var ErrNoSweep = errors.New("no such sweep")

// DB wraps a SQLite connection holding sweeps and their per-run records.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite has a single writer.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sweeps (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		seed TEXT NOT NULL,
		runs INTEGER NOT NULL,
		plan_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		sweep_id TEXT NOT NULL REFERENCES sweeps(id),
		cell INTEGER NOT NULL,
		iteration INTEGER NOT NULL,
		scenario TEXT NOT NULL,
		container_cost REAL NOT NULL,
		requests INTEGER NOT NULL,
		forwarders INTEGER NOT NULL,
		seed TEXT NOT NULL,
		mean_net_profit REAL NOT NULL,
		success_rate REAL NOT NULL,
		wastage_rate REAL NOT NULL,
		secondary_trades INTEGER NOT NULL,
		mean_cleared_price REAL NOT NULL,
		profit_stability REAL NOT NULL,
		strategy_profit_json TEXT NOT NULL,
		duration_us INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_sweep ON runs(sweep_id, cell, iteration);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Sweep is a stored sweep header.
type Sweep struct {
	ID        string
	CreatedAt time.Time
	Seed      uint64
	Runs      int    // Planned runs
	Plan      string // Plan as JSON
}

type sweepRow struct {
	ID        string `db:"id"`
	CreatedAt string `db:"created_at"`
	Seed      string `db:"seed"`
	Runs      int    `db:"runs"`
	Plan      string `db:"plan_json"`
}

func (r sweepRow) sweep() (Sweep, error) {
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return Sweep{}, fmt.Errorf("sweep %s created_at: %w", r.ID, err)
	}
	seed, err := strconv.ParseUint(r.Seed, 10, 64)
	if err != nil {
		return Sweep{}, fmt.Errorf("sweep %s seed: %w", r.ID, err)
	}
	return Sweep{ID: r.ID, CreatedAt: created, Seed: seed, Runs: r.Runs, Plan: r.Plan}, nil
}

// CreateSweep records a new sweep and returns its id.
func (db *DB) CreateSweep(ctx context.Context, plan batch.Plan) (string, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.ExecContext(ctx,
		"INSERT INTO sweeps (id, created_at, seed, runs, plan_json) VALUES (?, ?, ?, ?, ?)",
		id, time.Now().UTC().Format(time.RFC3339Nano),
		strconv.FormatUint(plan.Seed, 10), plan.Runs(), string(planJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert sweep: %w", err)
	}
	return id, nil
}

// GetSweep loads one sweep header.
func (db *DB) GetSweep(ctx context.Context, id string) (Sweep, error) {
	var r sweepRow
	err := db.conn.GetContext(ctx, &r,
		"SELECT id, created_at, seed, runs, plan_json FROM sweeps WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Sweep{}, fmt.Errorf("%w: %s", ErrNoSweep, id)
	}
	if err != nil {
		return Sweep{}, err
	}
	return r.sweep()
}

// LatestSweep returns the most recently created sweep.
func (db *DB) LatestSweep(ctx context.Context) (Sweep, error) {
	var r sweepRow
	err := db.conn.GetContext(ctx, &r,
		"SELECT id, created_at, seed, runs, plan_json FROM sweeps ORDER BY rowid DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return Sweep{}, ErrNoSweep
	}
	if err != nil {
		return Sweep{}, err
	}
	return r.sweep()
}

// SaveRows appends finished runs to a sweep in one transaction.
func (db *DB) SaveRows(ctx context.Context, sweepID string, rows []batch.Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO runs
		(run_id, sweep_id, cell, iteration, scenario, container_cost, requests, forwarders,
		 seed, mean_net_profit, success_rate, wastage_rate, secondary_trades,
		 mean_cleared_price, profit_stability, strategy_profit_json, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rows {
		profitJSON, err := json.Marshal(r.Record.StrategyProfit)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		rec := r.Record
		_, err = stmt.ExecContext(ctx,
			r.RunID, sweepID, r.Cell.Index, r.Iteration, r.Cell.Scenario.String(),
			r.Cell.Cost, r.Cell.Requests, r.Cell.Forwarders, strconv.FormatUint(r.Seed, 10),
			rec.MeanNetProfit, rec.SuccessRate, rec.WastageRate, rec.SecondaryTrades,
			rec.MeanClearedPrice, rec.ProfitStability, string(profitJSON), r.Duration.Microseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("rows saved", "sweep", sweepID, "rows", len(rows))
	return nil
}

type runRow struct {
	RunID            string  `db:"run_id"`
	Cell             int     `db:"cell"`
	Iteration        int     `db:"iteration"`
	Scenario         string  `db:"scenario"`
	ContainerCost    float64 `db:"container_cost"`
	Requests         int     `db:"requests"`
	Forwarders       int     `db:"forwarders"`
	Seed             string  `db:"seed"`
	MeanNetProfit    float64 `db:"mean_net_profit"`
	SuccessRate      float64 `db:"success_rate"`
	WastageRate      float64 `db:"wastage_rate"`
	SecondaryTrades  int     `db:"secondary_trades"`
	MeanClearedPrice float64 `db:"mean_cleared_price"`
	ProfitStability  float64 `db:"profit_stability"`
	StrategyProfit   string  `db:"strategy_profit_json"`
	DurationUS       int64   `db:"duration_us"`
}

func (r runRow) row() (batch.Row, error) {
	scenario, err := engine.ParseScenario(r.Scenario)
	if err != nil {
		return batch.Row{}, err
	}
	seed, err := strconv.ParseUint(r.Seed, 10, 64)
	if err != nil {
		return batch.Row{}, fmt.Errorf("run %s seed: %w", r.RunID, err)
	}
	var profit map[agents.Strategy]float64
	if err := json.Unmarshal([]byte(r.StrategyProfit), &profit); err != nil {
		return batch.Row{}, fmt.Errorf("run %s strategy profit: %w", r.RunID, err)
	}

	return batch.Row{
		RunID: r.RunID,
		Cell: batch.Cell{
			Index:      r.Cell,
			Scenario:   scenario,
			Cost:       r.ContainerCost,
			Requests:   r.Requests,
			Forwarders: r.Forwarders,
		},
		Iteration: r.Iteration,
		Seed:      seed,
		Record: engine.Record{
			MeanNetProfit:    r.MeanNetProfit,
			SuccessRate:      r.SuccessRate,
			WastageRate:      r.WastageRate,
			SecondaryTrades:  r.SecondaryTrades,
			MeanClearedPrice: r.MeanClearedPrice,
			ProfitStability:  r.ProfitStability,
			StrategyProfit:   profit,
		},
		Duration: time.Duration(r.DurationUS) * time.Microsecond,
	}, nil
}

// Rows returns every run of a sweep ordered by cell and iteration.
func (db *DB) Rows(ctx context.Context, sweepID string) ([]batch.Row, error) {
	var raw []runRow
	err := db.conn.SelectContext(ctx, &raw,
		`SELECT run_id, cell, iteration, scenario, container_cost, requests, forwarders, seed,
		        mean_net_profit, success_rate, wastage_rate, secondary_trades,
		        mean_cleared_price, profit_stability, strategy_profit_json, duration_us
		 FROM runs WHERE sweep_id = ? ORDER BY cell, iteration`, sweepID)
	if err != nil {
		return nil, err
	}

	rows := make([]batch.Row, 0, len(raw))
	for _, r := range raw {
		row, err := r.row()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CellSummary averages the KPIs of every run in one cell.
type CellSummary struct {
	Scenario         string  `db:"scenario"`
	ContainerCost    float64 `db:"container_cost"`
	Requests         int     `db:"requests"`
	Forwarders       int     `db:"forwarders"`
	Runs             int     `db:"runs"`
	MeanNetProfit    float64 `db:"mean_net_profit"`
	SuccessRate      float64 `db:"success_rate"`
	WastageRate      float64 `db:"wastage_rate"`
	SecondaryTrades  float64 `db:"secondary_trades"`
	MeanClearedPrice float64 `db:"mean_cleared_price"`
	ProfitStability  float64 `db:"profit_stability"`
}

// Summary groups a sweep by scenario, container cost, request level and forwarder
// count, in sweep order.
func (db *DB) Summary(ctx context.Context, sweepID string) ([]CellSummary, error) {
	var out []CellSummary
	err := db.conn.SelectContext(ctx, &out,
		`SELECT scenario, container_cost, requests, forwarders,
		        COUNT(*) AS runs,
		        AVG(mean_net_profit) AS mean_net_profit,
		        AVG(success_rate) AS success_rate,
		        AVG(wastage_rate) AS wastage_rate,
		        AVG(secondary_trades) AS secondary_trades,
		        AVG(mean_cleared_price) AS mean_cleared_price,
		        AVG(profit_stability) AS profit_stability
		 FROM runs WHERE sweep_id = ?
		 GROUP BY scenario, container_cost, requests, forwarders
		 ORDER BY MIN(cell)`, sweepID)
	return out, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
