package persistence

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// Amount formats v with thousands separators, rounded half away from zero to digits
// decimal places.
func Amount(v float64, digits int) string {
	p := math.Pow10(digits)
	return humanize.CommafWithDigits(math.Round(v*p)/p, digits)
}

// NewTable returns a borderless table writer with right-aligned cells and the header
// left as given.
func NewTable(out io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(out)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_RIGHT)
	t.SetHeaderAlignment(tablewriter.ALIGN_RIGHT)
	t.SetBorder(false)
	t.SetColumnSeparator("")
	t.SetCenterSeparator("")
	t.SetRowSeparator("-")
	t.SetTablePadding("  ")
	return t
}

// WriteSummary renders grouped cell summaries as an aligned table.
func WriteSummary(out io.Writer, rows []CellSummary) {
	t := NewTable(out,
		"scenario", "cost", "requests", "forwarders", "runs", "net profit",
		"success %", "wastage %", "trades", "price", "stability")
	for _, r := range rows {
		t.Append([]string{
			r.Scenario,
			Amount(r.ContainerCost, 0),
			strconv.Itoa(r.Requests),
			strconv.Itoa(r.Forwarders),
			strconv.Itoa(r.Runs),
			Amount(r.MeanNetProfit, 1),
			fmt.Sprintf("%.1f", r.SuccessRate),
			fmt.Sprintf("%.1f", r.WastageRate),
			fmt.Sprintf("%.1f", r.SecondaryTrades),
			Amount(r.MeanClearedPrice, 1),
			fmt.Sprintf("%.3f", r.ProfitStability),
		})
	}
	t.Render()
}
