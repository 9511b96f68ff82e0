// Result summary: reduces a finished run to its KPI record.
package engine

import (
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/freight-market/internal/agents"
)

// Record keys.
const (
	KeyMeanNetProfit    = "mean_net_profit"
	KeySuccessRate      = "success_rate_pct"
	KeyWastageRate      = "wastage_rate_pct"
	KeySecondaryTrades  = "secondary_trades"
	KeyMeanClearedPrice = "mean_cleared_price"
	KeyProfitStability  = "profit_stability_cv"
)

// StrategyProfitKey returns the record key for a strategy group's mean net profit.
func StrategyProfitKey(s agents.Strategy) string {
	return KeyMeanNetProfit + "_" + s.String()
}

// Record holds the KPIs of one run.
type Record struct {
	MeanNetProfit    float64 `json:"mean_net_profit"`
	SuccessRate      float64 `json:"success_rate_pct"`
	WastageRate      float64 `json:"wastage_rate_pct"`
	SecondaryTrades  int     `json:"secondary_trades"`
	MeanClearedPrice float64 `json:"mean_cleared_price"`
	ProfitStability  float64 `json:"profit_stability_cv"`

	// StrategyProfit holds mean net profit per strategy present in the population.
	StrategyProfit map[agents.Strategy]float64 `json:"strategy_profit"`
}

// Values flattens the record into its fixed keys.
func (r Record) Values() map[string]float64 {
	out := map[string]float64{
		KeyMeanNetProfit:    r.MeanNetProfit,
		KeySuccessRate:      r.SuccessRate,
		KeyWastageRate:      r.WastageRate,
		KeySecondaryTrades:  float64(r.SecondaryTrades),
		KeyMeanClearedPrice: r.MeanClearedPrice,
		KeyProfitStability:  r.ProfitStability,
	}
	for s, v := range r.StrategyProfit {
		out[StrategyProfitKey(s)] = v
	}
	return out
}

// ratio divides and degrades to 0 on a non-positive denominator.
func ratio[N, D constraints.Integer | constraints.Float](num N, den D) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Summarize reduces a run's logs to its record. It never mutates the simulation.
func Summarize(sim *Simulation) Record {
	final := finalCapitals(sim)
	initial := sim.Params.InitialCapital
	log := &sim.Market.Log

	rec := Record{
		SecondaryTrades: log.SecondaryTrades,
		StrategyProfit:  make(map[agents.Strategy]float64),
	}

	if len(final) > 0 {
		meanFinal := stat.Mean(final, nil)
		rec.MeanNetProfit = meanFinal - initial
		rec.ProfitStability = ratio(meanVolatility(sim.Capitals), meanFinal)
	}

	rec.SuccessRate = ratio(log.SoldRequests, log.TotalRequests) * 100
	rec.WastageRate = ratio(log.TotalUllage, log.TotalUllage+log.SoldVolume) * 100
	rec.MeanClearedPrice = ratio(log.SoldRevenue, log.SoldRequests)

	for _, s := range agents.Strategies {
		var group []float64
		for i, f := range sim.Forwarders {
			if f.Strategy == s {
				group = append(group, final[i])
			}
		}
		if len(group) > 0 {
			rec.StrategyProfit[s] = stat.Mean(group, nil) - initial
		}
	}
	return rec
}

// finalCapitals returns the last recorded capital vector, or current capital before
// any round has run.
func finalCapitals(sim *Simulation) []float64 {
	if n := len(sim.Capitals); n > 0 {
		return sim.Capitals[n-1]
	}
	out := make([]float64, len(sim.Forwarders))
	for i, f := range sim.Forwarders {
		out[i] = f.Capital
	}
	return out
}

// meanVolatility is the mean over forwarders of the population standard deviation of
// each forwarder's capital across rounds.
func meanVolatility(capitals [][]float64) float64 {
	if len(capitals) == 0 || len(capitals[0]) == 0 {
		return 0
	}
	agentsN := len(capitals[0])
	devs := make([]float64, agentsN)
	column := make([]float64, len(capitals))
	for j := 0; j < agentsN; j++ {
		for i, row := range capitals {
			column[i] = row[j]
		}
		_, devs[j] = stat.PopMeanStdDev(column, nil)
	}
	return stat.Mean(devs, nil)
}
