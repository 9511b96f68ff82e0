// Command sweepreport prints the grouped summary of a stored sweep and the
// request level at which demand volume meets fleet capacity.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/talgya/freight-market/internal/batch"
	"github.com/talgya/freight-market/internal/entropy"
	"github.com/talgya/freight-market/internal/engine"
	"github.com/talgya/freight-market/internal/logging"
	"github.com/talgya/freight-market/internal/persistence"
)

func main() {
	logger, closer, err := logging.New(logging.Options{
		Level: os.Getenv("MARKETSIM_LOG_LEVEL"),
		Out:   os.Stderr,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	// Configuration from environment.
	dbPath := envOrDefault("MARKETSIM_DB", "data/marketsim.db")
	sweepID := os.Getenv("SWEEP_ID")
	samples := envIntOrDefault("EQUILIBRIUM_SAMPLES", 10000)

	if err := report(context.Background(), os.Stdout, dbPath, sweepID, samples); err != nil {
		slog.Error("report failed", "error", err)
		os.Exit(1)
	}
}

func report(ctx context.Context, out io.Writer, dbPath, sweepID string, samples int) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("result database: %w", err)
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var sweep persistence.Sweep
	if sweepID == "" {
		sweep, err = db.LatestSweep(ctx)
	} else {
		sweep, err = db.GetSweep(ctx, sweepID)
	}
	if err != nil {
		return err
	}

	var plan batch.Plan
	if err := json.Unmarshal([]byte(sweep.Plan), &plan); err != nil {
		return fmt.Errorf("decode plan of sweep %s: %w", sweep.ID, err)
	}

	summary, err := db.Summary(ctx, sweep.ID)
	if err != nil {
		return err
	}
	slog.Info("sweep loaded", "sweep", sweep.ID, "cells", len(summary), "created", humanize.Time(sweep.CreatedAt))

	fmt.Fprintf(out, "sweep %s (seed %d, %s runs)\n\n", sweep.ID, sweep.Seed, humanize.Comma(int64(sweep.Runs)))
	persistence.WriteSummary(out, summary)
	fmt.Fprintln(out)
	printEquilibrium(out, plan, samples)
	return nil
}

// printEquilibrium lists, per forwarder count, the requests per round whose expected
// volume fills the fleet's nominal capacity.
func printEquilibrium(out io.Writer, plan batch.Plan, samples int) {
	counts := slices.Clone(plan.Forwarders)
	slices.Sort(counts)
	counts = slices.Compact(counts)

	t := persistence.NewTable(out, "forwarders", "equilibrium requests")
	for _, n := range counts {
		eq := engine.EquilibriumRequests(n, plan.Params, entropy.NewStream(plan.Seed), samples)
		t.Append([]string{strconv.Itoa(n), persistence.Amount(eq, 1)})
	}
	t.Render()
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
