package main

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/talgya/freight-market/internal/batch"
	"github.com/talgya/freight-market/internal/persistence"
)

func newSweepCmd(root *rootFlags) *cobra.Command {
	var (
		workers  int
		textfile string
		dbPath   string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the configured parameter sweep and store every run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if textfile != "" {
				cfg.Metrics.Textfile = textfile
			}
			if dbPath != "" {
				cfg.Store.Path = dbPath
			}
			ctx := cmd.Context()

			if err := ensureDir(cfg.Store.Path); err != nil {
				return err
			}
			db, err := persistence.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			slog.Info("database opened", "path", cfg.Store.Path)

			plan := cfg.Plan()
			sweepID, err := db.CreateSweep(ctx, plan)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			runner := batch.NewRunner(cfg.Workers, batch.NewMetrics(reg))
			slog.Info("sweep created", "sweep", sweepID, "runs", humanize.Comma(int64(plan.Runs())))

			if _, err := runner.RunAndStore(ctx, plan, sweepID, db); err != nil {
				return fmt.Errorf("sweep %s: %w", sweepID, err)
			}
			if err := db.SaveMeta(ctx, "last_sweep", sweepID); err != nil {
				return fmt.Errorf("save meta: %w", err)
			}

			if cfg.Metrics.Textfile != "" {
				if err := ensureDir(cfg.Metrics.Textfile); err != nil {
					return err
				}
				if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
				slog.Info("metrics written", "path", cfg.Metrics.Textfile)
			}

			summary, err := db.Summary(ctx, sweepID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sweep %s\n", sweepID)
			persistence.WriteSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel runs (0 means one per CPU)")
	cmd.Flags().StringVar(&textfile, "metrics", "", "write Prometheus metrics to this textfile")
	cmd.Flags().StringVar(&dbPath, "db", "", "result database path (default from config)")
	return cmd
}

