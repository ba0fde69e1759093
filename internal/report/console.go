// Package report renders run outcomes as console tables, CSV files and an
// XLSX workbook.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"cfd-hedge-backtest/internal/analysis"
	"cfd-hedge-backtest/internal/backtest"
	"cfd-hedge-backtest/internal/model"
	"cfd-hedge-backtest/internal/pipeline"
)

// Money formats a currency amount rounded half away from zero to cents.
func Money(x float64) string {
	if !model.Finite(x) {
		return "N/A"
	}
	d := decimal.NewFromFloat(x).Round(2)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// Print writes the complete console report for a run.
func Print(w io.Writer, out *pipeline.Outcome) {
	fmt.Fprintf(w, "Backtest %s..%s (%d trading days), policy %s\n\n",
		out.Timeline.Start().Format(model.DateLayout), out.Timeline.End().Format(model.DateLayout),
		out.Timeline.Len(), out.Policy)

	CostTable(w, out.Classic, out.Hedged)
	fmt.Fprintln(w)

	if out.Analysis == nil {
		return
	}
	MetricsTable(w, out.Analysis.Full)
	for _, pm := range out.Analysis.Periods {
		fmt.Fprintln(w)
		MetricsTable(w, pm)
	}
	for _, name := range out.Analysis.Skipped {
		fmt.Fprintf(w, "\nperiod %s skipped: no data in range\n", name)
	}
	fmt.Fprintln(w)
	VerdictTable(w, out.Analysis.Verdicts)
}

// MetricsTable renders one period's metrics side by side for both models.
func MetricsTable(w io.Writer, pm analysis.PeriodMetrics) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	if pm.Name == analysis.FullPeriod {
		t.SetTitle(fmt.Sprintf("FULL PERIOD %s..%s", pm.Start.Format(model.DateLayout), pm.End.Format(model.DateLayout)))
	} else {
		t.SetTitle(fmt.Sprintf("%s %s..%s", pm.Name, pm.Start.Format(model.DateLayout), pm.End.Format(model.DateLayout)))
	}

	t.AppendHeader(table.Row{"Metric", "Model A", "Model B"})
	for _, name := range analysis.MetricNames {
		a, b := pm.A.Get(name), pm.B.Get(name)
		if name == analysis.SharpeRatio {
			t.AppendRow(table.Row{name.Label(), a.String(), b.String()})
			continue
		}
		t.AppendRow(table.Row{name.Label(), a.Percent(), b.Percent()})
	}
	t.AppendFooter(table.Row{"Points", pm.Points, pm.Points})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 12, Align: text.AlignRight},
		{Number: 3, WidthMin: 12, Align: text.AlignRight},
	})
	t.Render()
}

// VerdictTable renders hypothesis verdicts with any detail figures.
func VerdictTable(w io.Writer, verdicts []analysis.Verdict) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("HYPOTHESES")
	t.AppendHeader(table.Row{"Hypothesis", "Period", "Verdict", "Details"})
	for _, v := range verdicts {
		t.AppendRow(table.Row{v.Label, v.Period, v.Result, detailText(v.Details)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 30, Align: text.AlignLeft},
		{Number: 3, WidthMin: 13, Align: text.AlignLeft},
	})
	t.Render()
}

// CostTable renders the cumulative cost and outcome summary for both models.
func CostTable(w io.Writer, classic, hedged *backtest.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("COST SUMMARY")
	t.AppendHeader(table.Row{"", "Model A", "Model B"})

	a, b := classic.Summary, hedged.Summary
	t.AppendRows([]table.Row{
		{"Final Value", Money(a.FinalValue), Money(b.FinalValue)},
		{"Hedge P&L", "-", Money(b.TotalHedgePNL)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Financing", "-", Money(b.TotalFinancing)},
		{"Borrowing", "-", Money(b.TotalBorrowing)},
		{"Spread", "-", Money(b.TotalSpread)},
		{"Total Costs", "-", Money(b.TotalCosts)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Days Hedged", "-", b.DaysHedged},
		{"Liquidations", "-", b.Liquidations},
		{"Anomalies", a.Anomalies, b.Anomalies},
		{"Recovered Days", a.Recoveries, b.Recoveries},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 16, Align: text.AlignRight},
		{Number: 3, WidthMin: 16, Align: text.AlignRight},
	})
	t.Render()
}

func detailText(details map[string]analysis.Figure) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += k + "=" + details[k].Percent()
	}
	return s
}
