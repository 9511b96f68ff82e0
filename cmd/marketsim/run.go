package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/talgya/freight-market/internal/agents"
	"github.com/talgya/freight-market/internal/engine"
	"github.com/talgya/freight-market/internal/persistence"
)

type runFlags struct {
	scenario   string
	requests   int
	spread     int
	cost       float64
	forwarders int
	seed       uint64
	rounds     int
	json       bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	f := runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and print its KPIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.setup()
			if err != nil {
				return err
			}
			scenario, err := engine.ParseScenario(f.scenario)
			if err != nil {
				return err
			}

			params := cfg.Params
			if f.rounds > 0 {
				params.Rounds = f.rounds
			}
			spread := cfg.Sweep.Spread
			if cmd.Flags().Changed("spread") {
				spread = f.spread
			}
			spec := engine.RunSpec{
				Scenario:      scenario,
				Demand:        engine.Demand{Base: f.requests, Spread: spread},
				ContainerCost: f.cost,
				AgentCount:    f.forwarders,
				Mix:           cfg.Mix,
				Seed:          f.seed,
			}

			slog.Info("run started", "scenario", scenario, "requests", f.requests, "forwarders", f.forwarders, "seed", f.seed)
			start := time.Now()
			rec, err := engine.Execute(cmd.Context(), spec, params)
			if err != nil {
				return err
			}
			slog.Info("run finished", "elapsed", time.Since(start).Round(time.Microsecond))

			if f.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec.Values())
			}
			printRecord(cmd.OutOrStdout(), spec, rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.scenario, "scenario", "enabled", "primitive, open or enabled")
	cmd.Flags().IntVar(&f.requests, "requests", 100, "base shipping requests per round")
	cmd.Flags().IntVar(&f.spread, "spread", 0, "request spread around the base (default from config)")
	cmd.Flags().Float64Var(&f.cost, "cost", 1500, "container cost")
	cmd.Flags().IntVar(&f.forwarders, "forwarders", 15, "number of forwarders")
	cmd.Flags().Uint64Var(&f.seed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&f.rounds, "rounds", 0, "rounds per run (default from config)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the record as a flat JSON object")
	return cmd
}

func printRecord(out io.Writer, spec engine.RunSpec, rec engine.Record) {
	t := persistence.NewTable(out, "metric", "value")
	t.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	t.Append([]string{"scenario", spec.Scenario.String()})
	t.Append([]string{"forwarders", strconv.Itoa(spec.AgentCount)})
	t.Append([]string{"container cost", persistence.Amount(spec.ContainerCost, 2)})
	t.Append([]string{"mean net profit", persistence.Amount(rec.MeanNetProfit, 2)})
	t.Append([]string{"success rate", fmt.Sprintf("%.2f%%", rec.SuccessRate)})
	t.Append([]string{"wastage rate", fmt.Sprintf("%.2f%%", rec.WastageRate)})
	t.Append([]string{"secondary trades", humanize.Comma(int64(rec.SecondaryTrades))})
	t.Append([]string{"mean cleared price", persistence.Amount(rec.MeanClearedPrice, 2)})
	t.Append([]string{"profit stability", fmt.Sprintf("%.4f", rec.ProfitStability)})
	for _, s := range agents.Strategies {
		if v, ok := rec.StrategyProfit[s]; ok {
			t.Append([]string{"profit (" + s.String() + ")", persistence.Amount(v, 2)})
		}
	}
	t.Render()
}
