package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"cfd-hedge-backtest/internal/analysis"
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/model"
	"cfd-hedge-backtest/internal/pipeline"
)

func testOutcome(t *testing.T) *pipeline.Outcome {
	t.Helper()
	start := time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC)
	prices := []float64{4000, 3900, 3800, 3850}
	vols := []float64{20, 30, 30, 18}
	days := make([]model.MarketDay, len(prices))
	prev := 4000.0
	for i := range prices {
		days[i] = model.MarketDay{
			Date:       start.AddDate(0, 0, i),
			Price:      prices[i],
			Volatility: vols[i],
			Rate:       0.05,
			Return:     prices[i]/prev - 1,
			PrevPrice:  prev,
		}
		prev = prices[i]
	}
	tl, err := model.NewTimeline(days)
	require.NoError(t, err)

	r := pipeline.NewRunner(pipeline.Options{})
	defer r.Close()
	out, err := r.Run(context.Background(), pipeline.Request{Timeline: tl, Config: config.Default()})
	require.NoError(t, err)
	return out
}

func TestMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{1234.565, "$1234.57"},
		{-12.5, "-$12.50"},
		{970023.83333, "$970023.83"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Money(c.in), "Money(%v)", c.in)
	}
}

func TestPrint(t *testing.T) {
	out := testOutcome(t)
	var buf bytes.Buffer
	Print(&buf, out)

	s := buf.String()
	assert.Contains(t, s, "COST SUMMARY")
	assert.Contains(t, s, "FULL PERIOD 2020-03-01..2020-03-05")
	assert.Contains(t, s, "COVID")
	assert.Contains(t, s, "HYPOTHESES")
	assert.Contains(t, s, "H1_Higher_Return_B")
	assert.Contains(t, s, Money(out.Hedged.Summary.FinalValue))
}

func TestMetricsTable_RendersNA(t *testing.T) {
	var buf bytes.Buffer
	MetricsTable(&buf, analysis.PeriodMetrics{
		Name:  "short",
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, len(analysis.MetricNames)*2, strings.Count(buf.String(), "N/A"))
}

func TestEncodeValuesCSV(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeValuesCSV(&buf, []analysis.JoinedPoint{
		{Date: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), A: 1_000_000, B: 1_000_000},
		{Date: time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC), A: 990000, B: 995000.5},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,model_a,model_b", lines[0])
	assert.Equal(t, "2020-03-02,990000.000000,995000.500000", lines[2])
}

func TestWriteAll(t *testing.T) {
	out := testOutcome(t)
	dir := t.TempDir()
	cfg := config.OutputConfig{
		Dir:       filepath.Join(dir, "results"),
		LedgerCSV: "ledger.csv",
		SeriesCSV: "values.csv",
		XLSX:      "report.xlsx",
	}

	written, err := WriteAll(out, cfg)
	require.NoError(t, err)
	require.Len(t, written, 3)
	for _, p := range written {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	ledger, err := os.ReadFile(filepath.Join(cfg.Dir, "ledger.csv"))
	require.NoError(t, err)
	assert.Equal(t, len(out.Hedged.Ledger)+1, len(strings.Split(strings.TrimSpace(string(ledger)), "\n")))
}

func TestWorkbook(t *testing.T) {
	out := testOutcome(t)
	var buf bytes.Buffer
	require.NoError(t, EncodeXLSX(&buf, out))

	fx, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{SeriesSheet, LedgerSheet, MetricsSheet, HypothesesSheet}, fx.GetSheetList())

	series, err := fx.GetRows(SeriesSheet)
	require.NoError(t, err)
	assert.Len(t, series, len(out.Analysis.Joined)+1)

	ledger, err := fx.GetRows(LedgerSheet)
	require.NoError(t, err)
	require.Len(t, ledger, len(out.Hedged.Ledger)+1)
	assert.Equal(t, "Action", ledger[0][3])
	assert.Equal(t, string(out.Hedged.Ledger[0].Action), ledger[1][3])

	metrics, err := fx.GetRows(MetricsSheet)
	require.NoError(t, err)
	assert.Len(t, metrics, 1+len(analysis.MetricNames)*(1+len(out.Analysis.Periods)))

	hyps, err := fx.GetRows(HypothesesSheet)
	require.NoError(t, err)
	require.Len(t, hyps, len(out.Analysis.Verdicts)+1)
	assert.Equal(t, out.Analysis.Verdicts[0].Label, hyps[1][0])
	assert.Equal(t, out.Analysis.Verdicts[0].Result, hyps[1][2])
}
