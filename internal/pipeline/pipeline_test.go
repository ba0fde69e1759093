package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfd-hedge-backtest/internal/analysis"
	"cfd-hedge-backtest/internal/backtest"
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/data"
	"cfd-hedge-backtest/internal/model"
)

func spikeTimeline(t *testing.T) *model.Timeline {
	t.Helper()
	start := time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC)
	prices := []float64{4000, 3900, 3800}
	vols := []float64{20, 30, 30}
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
	return tl
}

func TestRun_EndToEnd(t *testing.T) {
	r := NewRunner(Options{})
	defer r.Close()

	out, err := r.Run(context.Background(), Request{Timeline: spikeTimeline(t), Config: config.Default()})
	require.NoError(t, err)

	assert.Equal(t, "threshold", out.Policy)
	require.Len(t, out.Classic.Series, 4)
	require.Len(t, out.Hedged.Ledger, 3)
	assert.Greater(t, out.Hedged.Summary.FinalValue, out.Classic.Summary.FinalValue)

	require.NotNil(t, out.Analysis)
	assert.Equal(t, 4, out.Analysis.Full.Points)
	require.Len(t, out.Analysis.Periods, 1)
	assert.Equal(t, "COVID", out.Analysis.Periods[0].Name)
	// recovery window extends past the data; the check is skipped
	assert.Nil(t, out.Analysis.Recovery)

	labels := map[string]string{}
	for _, v := range out.Analysis.Verdicts {
		labels[v.Label] = v.Result
	}
	assert.Equal(t, analysis.Supported, labels["H1_Higher_Return_B"])
	assert.Contains(t, labels, "H5_Stronger_React_B_COVID_Return")
}

func TestRun_EmptyTimelineIsDataStageError(t *testing.T) {
	r := NewRunner(Options{})
	_, err := r.Run(context.Background(), Request{Config: config.Default()})

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageData, se.Stage)
	assert.Equal(t, "DATA_ERROR", se.Code())
	assert.ErrorIs(t, err, model.ErrEmptyTimeline)
	assert.Contains(t, err.Error(), "data stage failed")
}

func TestRun_InvalidParamsIsSimulationStageError(t *testing.T) {
	cfg := config.Default()
	cfg.LotSize = -1

	_, err := NewRunner(Options{}).Run(context.Background(), Request{Timeline: spikeTimeline(t), Config: cfg})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageSimulation, se.Stage)
}

func TestRun_BadPeriodIsAnalysisStageError(t *testing.T) {
	cfg := config.Default()
	cfg.CrisisPeriods = map[string]config.PeriodConfig{"bad": {Start: "2020-13-01", End: "2020-12-01"}}

	_, err := NewRunner(Options{}).Run(context.Background(), Request{Timeline: spikeTimeline(t), Config: cfg})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageAnalysis, se.Stage)
	assert.Equal(t, "ANALYSIS_ERROR", se.Code())
}

func TestRun_Memoizes(t *testing.T) {
	r := NewRunner(Options{MemoTTL: time.Minute, MemoEntries: 4})
	defer r.Close()
	tl := spikeTimeline(t)

	first, err := r.Run(context.Background(), Request{Timeline: tl, Config: config.Default()})
	require.NoError(t, err)
	second, err := r.Run(context.Background(), Request{Timeline: tl, Config: config.Default()})
	require.NoError(t, err)
	assert.Same(t, first, second)

	other := config.Default()
	other.HedgingStrategy.HedgeRatio = 0.25
	third, err := r.Run(context.Background(), Request{Timeline: tl, Config: other})
	require.NoError(t, err)
	assert.NotSame(t, first, third)

	// streaming runs are never served from the memo
	var rows int
	fourth, err := r.Run(context.Background(), Request{
		Timeline: tl,
		Config:   config.Default(),
		OnDay:    func(backtest.LedgerRow) { rows++ },
	})
	require.NoError(t, err)
	assert.NotSame(t, first, fourth)
	assert.Equal(t, 3, rows)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(Options{}).Run(ctx, Request{Timeline: spikeTimeline(t), Config: config.Default()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadTimeline_FromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"date,price,volatility,rate\n"+
			"2020-03-02,4000,20,0.01\n"+
			"2020-03-03,3900,30,\n"+
			"2020-03-04,3800,30,0.02\n"), 0o644))

	cfg := config.Default()
	cfg.Data.File = path
	cfg.Data.StartDate = ""

	tl, err := LoadTimeline(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, 2, tl.Len())
	assert.Equal(t, cfg.Rate(), tl.Day(0).Rate)
	assert.Equal(t, 0.02, tl.Day(1).Rate)
}

func TestLoadTimeline_MissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Data.File = filepath.Join(t.TempDir(), "nope.csv")

	_, err := LoadTimeline(context.Background(), cfg, nil)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageData, se.Stage)
}

func f(x float64) *float64 { return &x }

func TestBuildTimeline_InlineRows(t *testing.T) {
	cfg := config.Default()
	cfg.Data.StartDate = ""

	tl, err := BuildTimeline(cfg, []data.Row{
		{Date: "2020-03-03", Price: f(3900), Volatility: f(30)},
		{Date: "2020-03-02", Price: f(4000), Volatility: f(20), Rate: f(0.01)},
		{Date: "2020-03-04", Price: f(3800), Volatility: f(30), Rate: f(0.02)},
	})
	require.NoError(t, err)
	require.Equal(t, 2, tl.Len())
	assert.InDelta(t, 3900.0/4000-1, tl.Day(0).Return, 1e-12)
	assert.Equal(t, 4000.0, tl.Day(0).PrevPrice)
	assert.Equal(t, cfg.Rate(), tl.Day(0).Rate)
}

func TestBuildTimeline_BadDateIsDataStageError(t *testing.T) {
	_, err := BuildTimeline(config.Default(), []data.Row{{Date: "03/02/2020", Price: f(1), Volatility: f(1)}})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageData, se.Stage)
}

func TestNewFMPClient_UsesConfigCacheTTL(t *testing.T) {
	cfg := config.Default()
	cfg.Data.CacheTTL = "90m"

	c := newFMPClient(cfg, "key", nil)
	assert.Equal(t, 90*time.Minute, c.CacheTTL)
	assert.Equal(t, cfg.Data.BaseURL, c.BaseURL)
}
