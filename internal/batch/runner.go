package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/freight-market/internal/engine"
)

// Row is one run's record tagged with the configuration that produced it.
type Row struct {
	RunID     string        `json:"run_id"`
	Cell      Cell          `json:"cell"`
	Iteration int           `json:"iteration"`
	Seed      uint64        `json:"seed"`
	Record    engine.Record `json:"record"`
	Duration  time.Duration `json:"duration"`
}

// Sink stores finished rows.
type Sink interface {
	SaveRows(ctx context.Context, sweepID string, rows []Row) error
}

// ExecuteFunc runs one simulation. engine.Execute in production.
type ExecuteFunc func(ctx context.Context, spec engine.RunSpec, params engine.Params) (engine.Record, error)

// Runner fans a plan out over a bounded worker pool.
type Runner struct {
	Workers int
	Execute ExecuteFunc
	Metrics *Metrics

	// ProgressEvery logs progress after this many finished runs. 0 disables it.
	ProgressEvery int
}

// NewRunner creates a runner using engine.Execute. workers <= 0 means one per CPU.
func NewRunner(workers int, metrics *Metrics) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Runner{
		Workers:       workers,
		Execute:       engine.Execute,
		Metrics:       metrics,
		ProgressEvery: 500,
	}
}

type job struct {
	cell      Cell
	iteration int
	slot      int
}

// Run executes every run in the plan. Rows come back in plan order (cell, then
// iteration) whatever the scheduling. The first failure cancels the remaining runs.
func (r *Runner) Run(ctx context.Context, plan Plan) ([]Row, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	cells := plan.Cells()
	total := plan.Runs()
	rows := make([]Row, total)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)

	slog.Info("sweep started", "cells", len(cells), "runs", total, "workers", r.Workers)
	start := time.Now()

	for _, cell := range cells {
		for it := 0; it < plan.Iterations; it++ {
			j := job{cell: cell, iteration: it, slot: cell.Index*plan.Iterations + it}
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				row, err := r.runOne(gctx, plan, j)
				if err != nil {
					return err
				}
				rows[j.slot] = row

				n := done.Add(1)
				if r.ProgressEvery > 0 && n%int64(r.ProgressEvery) == 0 {
					slog.Info("sweep progress", "done", n, "total", total, "elapsed", time.Since(start).Round(time.Millisecond))
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("sweep finished", "runs", total, "elapsed", time.Since(start).Round(time.Millisecond))
	return rows, nil
}

func (r *Runner) runOne(ctx context.Context, plan Plan, j job) (Row, error) {
	spec := plan.Spec(j.cell, j.iteration)
	scenario := spec.Scenario.String()

	t0 := time.Now()
	rec, err := r.Execute(ctx, spec, plan.Params)
	elapsed := time.Since(t0)
	if err != nil {
		r.Metrics.runs.WithLabelValues(scenario, "error").Inc()
		return Row{}, fmt.Errorf("cell %d iteration %d: %w", j.cell.Index, j.iteration, err)
	}

	r.Metrics.runs.WithLabelValues(scenario, "ok").Inc()
	r.Metrics.duration.WithLabelValues(scenario).Observe(elapsed.Seconds())
	r.Metrics.trades.Add(float64(rec.SecondaryTrades))
	r.Metrics.successRate.WithLabelValues(scenario).Set(rec.SuccessRate)

	return Row{
		RunID:     uuid.NewString(),
		Cell:      j.cell,
		Iteration: j.iteration,
		Seed:      spec.Seed,
		Record:    rec,
		Duration:  elapsed,
	}, nil
}

// RunAndStore runs the plan and hands all rows to sink under sweepID.
func (r *Runner) RunAndStore(ctx context.Context, plan Plan, sweepID string, sink Sink) ([]Row, error) {
	rows, err := r.Run(ctx, plan)
	if err != nil {
		return nil, err
	}
	if err := sink.SaveRows(ctx, sweepID, rows); err != nil {
		return nil, fmt.Errorf("save rows: %w", err)
	}
	return rows, nil
}
